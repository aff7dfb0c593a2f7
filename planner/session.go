package planner

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dclsuite/loadplan/repository"
	"github.com/dclsuite/loadplan/repository/models"
)

// readbackAttempts and readbackDelay bound the polling done when the store
// lags behind its own writes.
const (
	readbackAttempts = 5
	readbackDelay    = 600 * time.Millisecond
)

// Session owns all in-memory state for one shipment's loading-plan editing
// session: the line-item rows, the container list and the container items.
// Caches are rebuilt wholesale from the store after every mutating
// operation rather than patched in place.
type Session struct {
	ShipmentID string

	store          repository.StoreService
	items          []*LineItem
	containers     []models.Container
	containerItems []models.ContainerItem

	// reloading guards the full-reload path against re-entrant invocation
	// (the shipment-switch handler can fire while a reload is in flight).
	reloading bool
}

// NewSession creates an empty session bound to a shipment. Call Reload to
// populate it.
func NewSession(store repository.StoreService, shipmentID string) *Session {
	return &Session{
		ShipmentID: shipmentID,
		store:      store,
	}
}

// Reload drops every cache and refetches the shipment's rows, containers
// and container items from the store.
func (s *Session) Reload(ctx context.Context) error {
	if s.reloading {
		return fmt.Errorf("reload already in progress for shipment %s", s.ShipmentID)
	}
	s.reloading = true
	defer func() { s.reloading = false }()

	plans, repoErr := s.store.ListLoadingPlans(ctx, s.ShipmentID)
	if repoErr != nil {
		return repoErr
	}
	items := make([]*LineItem, 0, len(plans))
	for _, rec := range plans {
		items = append(items, LineItemFromRecord(rec))
	}
	s.items = items

	if repoErr := s.refreshContainers(ctx); repoErr != nil {
		return repoErr
	}
	if repoErr := s.refreshContainerItems(ctx); repoErr != nil {
		return repoErr
	}
	return nil
}

func (s *Session) refreshContainers(ctx context.Context) *repository.RepositoryError {
	containers, repoErr := s.store.ListContainers(ctx, s.ShipmentID)
	if repoErr != nil {
		return repoErr
	}
	s.containers = containers
	return nil
}

func (s *Session) refreshContainerItems(ctx context.Context) *repository.RepositoryError {
	items, repoErr := s.store.ListContainerItems(ctx, s.ShipmentID)
	if repoErr != nil {
		return repoErr
	}
	s.containerItems = items
	return nil
}

// refreshContainerItemsUntilSynced refetches the container-item set until
// every row with a loaded quantity has at least one container item, or the
// retry budget runs out. The store is eventually consistent; a fetch right
// after a burst of creates can miss records.
func (s *Session) refreshContainerItemsUntilSynced(ctx context.Context) *repository.RepositoryError {
	var lastErr *repository.RepositoryError
	for attempt := 1; attempt <= readbackAttempts; attempt++ {
		lastErr = s.refreshContainerItems(ctx)
		if lastErr == nil && s.containerItemsCoverLoadedRows() {
			return nil
		}
		if attempt == readbackAttempts {
			break
		}
		log.Printf("container item sync attempt %d/%d incomplete for shipment %s", attempt, readbackAttempts, s.ShipmentID)
		select {
		case <-ctx.Done():
			return &repository.RepositoryError{
				Code:    repository.ErrRequest,
				Message: "container item sync cancelled",
				Detail:  ctx.Err().Error(),
			}
		case <-time.After(readbackDelay):
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return &repository.RepositoryError{
		Code:    repository.ErrReadbackTimeout,
		Message: "container items did not converge",
		Detail:  fmt.Sprintf("shipment %s still has loaded rows without container items after %d refetches", s.ShipmentID, readbackAttempts),
	}
}

func (s *Session) containerItemsCoverLoadedRows() bool {
	byLine := s.containerItemsByLine()
	for _, li := range s.items {
		if li.ID == "" {
			// Unsaved rows cannot have allocation records yet.
			continue
		}
		if li.LoadedQuantity > 0 && len(byLine[li.ID]) == 0 {
			return false
		}
	}
	return true
}

// LineItems returns the current rows.
func (s *Session) LineItems() []*LineItem {
	return s.items
}

// Containers returns the current container list.
func (s *Session) Containers() []models.Container {
	return s.containers
}

// ContainerItems returns the current container-item cache.
func (s *Session) ContainerItems() []models.ContainerItem {
	return s.containerItems
}

func (s *Session) lineItemByID(id string) *LineItem {
	for _, li := range s.items {
		if li.ID == id {
			return li
		}
	}
	return nil
}

func (s *Session) containerItemsByLine() map[string][]*models.ContainerItem {
	grouped := make(map[string][]*models.ContainerItem)
	for i := range s.containerItems {
		ci := &s.containerItems[i]
		grouped[ci.LineItemID] = append(grouped[ci.LineItemID], ci)
	}
	return grouped
}

// AddLineItem recalculates and persists a new row. The input carries the
// user-entered fields; derived fields are computed here.
func (s *Session) AddLineItem(ctx context.Context, item *LineItem) ([]Notice, error) {
	if item.LoadedQuantity < 0 {
		return []Notice{errorf(item.RowRef(), "loading quantity cannot be negative")}, nil
	}
	item.ShipmentID = s.ShipmentID
	if item.ClientRef == "" {
		item.ClientRef = uuid.NewString()
	}
	item.Recalculate()

	created, repoErr := s.store.CreateLoadingPlan(ctx, item.Record())
	if repoErr != nil {
		return []Notice{errorf(item.RowRef(), "failed to save row: %s", repoErr.Message)}, repoErr
	}
	item.ID = created.ID
	s.items = append(s.items, item)

	notices := []Notice{successf(item.RowRef(), "row added")}
	if repoErr := s.pushTotals(ctx); repoErr != nil {
		notices = append(notices, warningf("", "totals not updated: %s", repoErr.Message))
	}
	return notices, nil
}

// EditLineItemField applies one field edit with the full override cascade,
// persists the row and refreshes the shipment totals.
func (s *Session) EditLineItemField(ctx context.Context, lineItemID, field, value string) ([]Notice, error) {
	li := s.lineItemByID(lineItemID)
	if li == nil {
		return []Notice{errorf(lineItemID, "row not found")}, nil
	}

	if err := applyFieldEdit(li, field, value); err != nil {
		return []Notice{errorf(li.RowRef(), "%s", err.Error())}, nil
	}

	if repoErr := s.store.UpdateLoadingPlan(ctx, li.Record()); repoErr != nil {
		return []Notice{errorf(li.RowRef(), "failed to save row: %s", repoErr.Message)}, repoErr
	}

	notices := []Notice{successf(li.RowRef(), "%s updated", field)}
	if repoErr := s.pushTotals(ctx); repoErr != nil {
		notices = append(notices, warningf("", "totals not updated: %s", repoErr.Message))
	}
	return notices, nil
}

// applyFieldEdit routes a textual field edit to the calculator entry point
// that implements its override cascade.
func applyFieldEdit(li *LineItem, field, value string) error {
	numeric := func() (float64, error) {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q", field, value)
		}
		return v, nil
	}

	switch field {
	case "packagingDetails":
		li.EditPackagingDetails(value)
	case "description":
		li.EditDescription(value)
	case "unitOfMeasure":
		v, err := numeric()
		if err != nil {
			return err
		}
		li.EditUnitOfMeasure(v)
	case "totalVolume":
		v, err := numeric()
		if err != nil {
			return err
		}
		li.EditTotalVolume(v)
	case "netWeight":
		v, err := numeric()
		if err != nil {
			return err
		}
		li.EditNetWeight(v)
	case "grossWeight":
		v, err := numeric()
		if err != nil {
			return err
		}
		li.EditGrossWeight(v)
	case "loadedQuantity":
		v, err := numeric()
		if err != nil {
			return err
		}
		return li.EditLoadedQuantity(v)
	case "orderedQuantity":
		v, err := numeric()
		if err != nil {
			return err
		}
		return li.EditOrderedQuantity(v)
	case "palletCount":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid pallet count: %q", value)
		}
		return li.EditPalletCount(v)
	case "isPalletized":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid palletized flag: %q", value)
		}
		li.EditPalletized(v)
	case "orderNumber":
		li.OrderNumber = value
	case "itemCode":
		li.ItemCode = value
	case "packType":
		li.PackType = value
	case "releaseStatus":
		v, err := strconv.Atoi(value)
		if err != nil || (v != models.ReleaseStatusNo && v != models.ReleaseStatusYes) {
			return fmt.Errorf("invalid release status: %q", value)
		}
		li.ReleaseStatus = v
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// DeleteLineItem removes a row and cascades to its container items. This is
// the only path that deletes container items; reconciliation never does.
func (s *Session) DeleteLineItem(ctx context.Context, lineItemID string) ([]Notice, error) {
	li := s.lineItemByID(lineItemID)
	if li == nil {
		return []Notice{errorf(lineItemID, "row not found")}, nil
	}

	for _, ci := range s.containerItemsByLine()[lineItemID] {
		if repoErr := s.store.DeleteContainerItem(ctx, ci.ID); repoErr != nil && !repository.NotFound(repoErr) {
			return []Notice{errorf(li.RowRef(), "failed to remove container item: %s", repoErr.Message)}, repoErr
		}
	}
	if repoErr := s.store.DeleteLoadingPlan(ctx, lineItemID); repoErr != nil {
		return []Notice{errorf(li.RowRef(), "failed to remove row: %s", repoErr.Message)}, repoErr
	}

	kept := s.items[:0]
	for _, it := range s.items {
		if it.ID != lineItemID {
			kept = append(kept, it)
		}
	}
	s.items = kept

	if repoErr := s.refreshContainerItems(ctx); repoErr != nil {
		return []Notice{warningf(li.RowRef(), "row removed, but container items could not be refreshed: %s", repoErr.Message)}, nil
	}
	notices := []Notice{successf(li.RowRef(), "row removed")}
	if repoErr := s.pushTotals(ctx); repoErr != nil {
		notices = append(notices, warningf("", "totals not updated: %s", repoErr.Message))
	}
	return notices, nil
}

// SaveAll persists every row, five writes in flight at a time. Failures do
// not abort siblings; each failed row gets its own notice.
func (s *Session) SaveAll(ctx context.Context) ([]Notice, error) {
	errs := runBatches(s.items, persistBatchSize, func(li *LineItem) error {
		li.Recalculate()
		if repoErr := s.store.UpdateLoadingPlan(ctx, li.Record()); repoErr != nil {
			return repoErr
		}
		return nil
	})

	var notices []Notice
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			notices = append(notices, errorf(s.items[i].RowRef(), "failed to save: %s", err.Error()))
		}
	}
	if failed == 0 {
		notices = append(notices, successf("", "all %d rows saved", len(s.items)))
	} else {
		notices = append(notices, warningf("", "%d of %d rows saved", len(s.items)-failed, len(s.items)))
	}
	if repoErr := s.pushTotals(ctx); repoErr != nil {
		notices = append(notices, warningf("", "totals not updated: %s", repoErr.Message))
	}
	return notices, nil
}

// Totals sums the quantities and weights of every current row.
func (s *Session) Totals() models.ShipmentTotals {
	var t models.ShipmentTotals
	for _, li := range s.items {
		t.OrderedQuantity += li.OrderedQuantity
		t.LoadedQuantity += li.LoadedQuantity
		t.PendingQuantity += li.PendingQuantity
		t.Volume += li.TotalVolume.Value
		t.NetWeight += li.NetWeightKg.Value
		t.GrossWeight += li.GrossWeightKg.Value
	}
	t.Volume = round2(t.Volume)
	t.NetWeight = round2(t.NetWeight)
	t.GrossWeight = round2(t.GrossWeight)
	return t
}

func (s *Session) pushTotals(ctx context.Context) *repository.RepositoryError {
	return s.store.UpdateShipmentTotals(ctx, s.ShipmentID, s.Totals())
}

// AddContainers books count containers of the given type, numbering codes
// per type ("20FT-CONTAINER-03").
func (s *Session) AddContainers(ctx context.Context, containerType models.ContainerType, count int) ([]Notice, error) {
	if !containerType.Valid() {
		return []Notice{errorf("", "unknown container type %q", containerType)}, nil
	}
	if count < 1 {
		return []Notice{errorf("", "container count must be at least 1")}, nil
	}

	existing := 0
	for _, c := range s.containers {
		if c.Type == containerType {
			existing++
		}
	}

	var notices []Notice
	created := 0
	for i := 0; i < count; i++ {
		container := &models.Container{
			ShipmentID: s.ShipmentID,
			Code:       fmt.Sprintf("%s-CONTAINER-%02d", containerType, existing+i+1),
			Type:       containerType,
			MaxWeight:  containerType.DefaultMaxWeightKg(),
			MaxVolume:  containerType.DefaultMaxVolumeM3(),
			ClientRef:  uuid.NewString(),
		}
		if _, repoErr := s.store.CreateContainer(ctx, container); repoErr != nil {
			notices = append(notices, errorf(container.Code, "failed to add container: %s", repoErr.Message))
			break
		}
		created++
	}

	if repoErr := s.refreshContainers(ctx); repoErr != nil {
		notices = append(notices, warningf("", "container list could not be refreshed: %s", repoErr.Message))
	}
	if created == count {
		notices = append(notices, successf("", "%d container(s) added", created))
	} else {
		notices = append(notices, warningf("", "%d of %d containers added", created, count))
	}
	return notices, nil
}

// DeleteContainer removes a container after unassigning every item in it.
func (s *Session) DeleteContainer(ctx context.Context, containerID string) ([]Notice, error) {
	var code string
	for _, c := range s.containers {
		if c.ID == containerID {
			code = c.Code
		}
	}
	if code == "" {
		return []Notice{errorf(containerID, "container not found")}, nil
	}

	for i := range s.containerItems {
		ci := &s.containerItems[i]
		if ci.Assigned() && *ci.ContainerID == containerID {
			if repoErr := s.store.UnassignContainerItem(ctx, ci.ID); repoErr != nil {
				return []Notice{errorf(code, "failed to unassign item %s: %s", ci.ID, repoErr.Message)}, repoErr
			}
		}
	}
	if repoErr := s.store.DeleteContainer(ctx, containerID); repoErr != nil {
		return []Notice{errorf(code, "failed to remove container: %s", repoErr.Message)}, repoErr
	}

	if repoErr := s.refreshContainers(ctx); repoErr != nil {
		return []Notice{warningf(code, "container removed, but list could not be refreshed: %s", repoErr.Message)}, nil
	}
	if repoErr := s.refreshContainerItems(ctx); repoErr != nil {
		return []Notice{warningf(code, "container removed, but items could not be refreshed: %s", repoErr.Message)}, nil
	}
	return []Notice{successf(code, "container removed, items unassigned")}, nil
}
