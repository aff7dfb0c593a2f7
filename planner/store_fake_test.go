package planner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dclsuite/loadplan/repository"
	"github.com/dclsuite/loadplan/repository/models"
)

// fakeStore is an in-memory, immediately-consistent StoreService. failOn
// maps an operation name to an error injected on its next invocation.
type fakeStore struct {
	mu         sync.Mutex
	seq        int
	plans      map[string]*models.LoadingPlan
	containers map[string]*models.Container
	items      map[string]*models.ContainerItem
	totals     map[string]models.ShipmentTotals
	calls      map[string]int
	failOn     map[string]*repository.RepositoryError
	failAt     map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		plans:      make(map[string]*models.LoadingPlan),
		containers: make(map[string]*models.Container),
		items:      make(map[string]*models.ContainerItem),
		totals:     make(map[string]models.ShipmentTotals),
		calls:      make(map[string]int),
		failOn:     make(map[string]*repository.RepositoryError),
		failAt:     make(map[string]int),
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%03d", prefix, f.seq)
}

func (f *fakeStore) enter(op string) *repository.RepositoryError {
	f.calls[op]++
	if repoErr, ok := f.failOn[op]; ok {
		delete(f.failOn, op)
		return repoErr
	}
	if target, ok := f.failAt[op]; ok && f.calls[op] == target {
		delete(f.failAt, op)
		return &repository.RepositoryError{
			Code:    repository.ErrStoreRejected,
			Message: "injected failure",
			Detail:  op,
		}
	}
	return nil
}

func (f *fakeStore) failNext(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op] = &repository.RepositoryError{
		Code:    repository.ErrStoreRejected,
		Message: "injected failure",
		Detail:  op,
	}
}

// failNthFromNow fails the n-th future invocation of op (1 = the next one).
func (f *fakeStore) failNthFromNow(op string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt[op] = f.calls[op] + n
}

func (f *fakeStore) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) ListLoadingPlans(_ context.Context, shipmentID string) ([]models.LoadingPlan, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("ListLoadingPlans"); repoErr != nil {
		return nil, repoErr
	}
	var out []models.LoadingPlan
	for _, p := range f.plans {
		if p.ShipmentID == shipmentID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateLoadingPlan(_ context.Context, plan *models.LoadingPlan) (*models.LoadingPlan, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("CreateLoadingPlan"); repoErr != nil {
		return nil, repoErr
	}
	created := *plan
	created.ID = f.nextID("plan")
	f.plans[created.ID] = &created
	out := created
	return &out, nil
}

func (f *fakeStore) UpdateLoadingPlan(_ context.Context, plan *models.LoadingPlan) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("UpdateLoadingPlan"); repoErr != nil {
		return repoErr
	}
	if _, ok := f.plans[plan.ID]; !ok {
		return &repository.RepositoryError{Code: repository.ErrEntityNotFound, Message: "no such plan", Detail: plan.ID}
	}
	stored := *plan
	f.plans[plan.ID] = &stored
	return nil
}

func (f *fakeStore) DeleteLoadingPlan(_ context.Context, planID string) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("DeleteLoadingPlan"); repoErr != nil {
		return repoErr
	}
	if _, ok := f.plans[planID]; !ok {
		return &repository.RepositoryError{Code: repository.ErrEntityNotFound, Message: "no such plan", Detail: planID}
	}
	delete(f.plans, planID)
	return nil
}

func (f *fakeStore) ListContainers(_ context.Context, shipmentID string) ([]models.Container, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("ListContainers"); repoErr != nil {
		return nil, repoErr
	}
	var out []models.Container
	for _, c := range f.containers {
		if c.ShipmentID == shipmentID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateContainer(_ context.Context, container *models.Container) (*models.Container, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("CreateContainer"); repoErr != nil {
		return nil, repoErr
	}
	created := *container
	created.ID = f.nextID("con")
	f.containers[created.ID] = &created
	out := created
	return &out, nil
}

func (f *fakeStore) DeleteContainer(_ context.Context, containerID string) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("DeleteContainer"); repoErr != nil {
		return repoErr
	}
	if _, ok := f.containers[containerID]; !ok {
		return &repository.RepositoryError{Code: repository.ErrEntityNotFound, Message: "no such container", Detail: containerID}
	}
	delete(f.containers, containerID)
	return nil
}

func (f *fakeStore) ListContainerItems(_ context.Context, shipmentID string) ([]models.ContainerItem, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("ListContainerItems"); repoErr != nil {
		return nil, repoErr
	}
	var out []models.ContainerItem
	for _, ci := range f.items {
		if ci.ShipmentID == shipmentID {
			out = append(out, *ci)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateContainerItem(_ context.Context, item *models.ContainerItem) (*models.ContainerItem, *repository.RepositoryError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("CreateContainerItem"); repoErr != nil {
		return nil, repoErr
	}
	created := *item
	created.ID = f.nextID("item")
	f.items[created.ID] = &created
	out := created
	return &out, nil
}

func (f *fakeStore) itemOr404(itemID string) (*models.ContainerItem, *repository.RepositoryError) {
	ci, ok := f.items[itemID]
	if !ok {
		return nil, &repository.RepositoryError{Code: repository.ErrEntityNotFound, Message: "no such container item", Detail: itemID}
	}
	return ci, nil
}

func (f *fakeStore) UpdateContainerItemQuantity(_ context.Context, itemID string, quantity float64) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("UpdateContainerItemQuantity"); repoErr != nil {
		return repoErr
	}
	ci, repoErr := f.itemOr404(itemID)
	if repoErr != nil {
		return repoErr
	}
	ci.Quantity = quantity
	return nil
}

func (f *fakeStore) MarkContainerItemSplit(_ context.Context, itemID string, quantity float64) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("MarkContainerItemSplit"); repoErr != nil {
		return repoErr
	}
	ci, repoErr := f.itemOr404(itemID)
	if repoErr != nil {
		return repoErr
	}
	ci.Quantity = quantity
	ci.IsSplitItem = true
	return nil
}

func (f *fakeStore) AssignContainerItem(_ context.Context, itemID, containerID string) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("AssignContainerItem"); repoErr != nil {
		return repoErr
	}
	ci, repoErr := f.itemOr404(itemID)
	if repoErr != nil {
		return repoErr
	}
	id := containerID
	ci.ContainerID = &id
	return nil
}

func (f *fakeStore) UnassignContainerItem(_ context.Context, itemID string) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("UnassignContainerItem"); repoErr != nil {
		return repoErr
	}
	ci, repoErr := f.itemOr404(itemID)
	if repoErr != nil {
		return repoErr
	}
	ci.ContainerID = nil
	return nil
}

func (f *fakeStore) DeleteContainerItem(_ context.Context, itemID string) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("DeleteContainerItem"); repoErr != nil {
		return repoErr
	}
	if _, repoErr := f.itemOr404(itemID); repoErr != nil {
		return repoErr
	}
	delete(f.items, itemID)
	return nil
}

func (f *fakeStore) UpdateShipmentTotals(_ context.Context, shipmentID string, totals models.ShipmentTotals) *repository.RepositoryError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repoErr := f.enter("UpdateShipmentTotals"); repoErr != nil {
		return repoErr
	}
	f.totals[shipmentID] = totals
	return nil
}
