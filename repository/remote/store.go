package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dclsuite/loadplan/repository"
	"github.com/dclsuite/loadplan/repository/models"
)

// Entity set names on the store.
const (
	setShipments      = "shipments"
	setLoadingPlans   = "loadingplans"
	setContainers     = "containers"
	setContainerItems = "containeritems"
)

// Store implements repository.StoreService over a Client.
type Store struct {
	client *Client
}

// NewStore wraps a client as a store service.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

var _ repository.StoreService = (*Store)(nil)

func listPath(set, shipmentID string) string {
	return fmt.Sprintf("/%s?filter=%s", set, url.QueryEscape(fmt.Sprintf("shipmentId eq '%s'", shipmentID)))
}

func clientRefPath(set, clientRef string) string {
	return fmt.Sprintf("/%s?filter=%s", set, url.QueryEscape(fmt.Sprintf("clientRef eq '%s'", clientRef)))
}

func entityPath(set, id string) string {
	return fmt.Sprintf("/%s(%s)", set, id)
}

// withBinds flattens an entity to a map, strips the raw FK id fields and
// replaces them with navigation-property binds. The store rejects plain FK
// columns on create; lookups must be bound by entity path.
func withBinds(entity any, drop []string, binds map[string]string) (map[string]any, *repository.RepositoryError) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, &repository.RepositoryError{Code: repository.ErrRequest, Message: "failed to encode entity", Detail: err.Error()}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &repository.RepositoryError{Code: repository.ErrRequest, Message: "failed to flatten entity", Detail: err.Error()}
	}
	delete(m, "id")
	for _, k := range drop {
		delete(m, k)
	}
	for nav, path := range binds {
		m[nav+"@bind"] = path
	}
	return m, nil
}

// create POSTs a new record preferring a returned representation. When the
// store answers with an empty body the id is taken from the entity-id
// header; failing that the record is re-fetched by its clientRef with
// bounded retries (the store is eventually consistent).
func (s *Store) create(ctx context.Context, set string, payload any, clientRef string) (json.RawMessage, *repository.RepositoryError) {
	data, header, status, repoErr := s.client.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/" + set,
		Body:    payload,
		Headers: map[string]string{"Prefer": "return=representation"},
	})
	if repoErr != nil {
		return nil, repoErr
	}

	if status != http.StatusNoContent && len(data) > 0 {
		return json.RawMessage(data), nil
	}

	if id := extractEntityID(header); id != "" {
		return json.RawMessage(fmt.Sprintf(`{"id":%q,"clientRef":%q}`, id, clientRef)), nil
	}

	// Read-back by idempotency key: fixed-delay polling, not backoff. The
	// delay always precedes the fetch; the record is never readable
	// immediately after a 204.
	var lastErr *repository.RepositoryError
	for attempt := 1; attempt <= readbackAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, &repository.RepositoryError{
				Code:    repository.ErrRequest,
				Message: "id read-back cancelled",
				Detail:  ctx.Err().Error(),
			}
		case <-time.After(readbackDelay):
		}
		rows, repoErr := s.client.FetchAll(ctx, clientRefPath(set, clientRef))
		if repoErr != nil {
			lastErr = repoErr
			continue
		}
		if len(rows) > 0 {
			return rows[0], nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &repository.RepositoryError{
		Code:    repository.ErrReadbackTimeout,
		Message: "created record never became readable",
		Detail:  fmt.Sprintf("%s with clientRef %s not found after %d attempts", set, clientRef, readbackAttempts),
	}
}

// Loading plan rows

func (s *Store) ListLoadingPlans(ctx context.Context, shipmentID string) ([]models.LoadingPlan, *repository.RepositoryError) {
	rows, repoErr := s.client.FetchAll(ctx, listPath(setLoadingPlans, shipmentID))
	if repoErr != nil {
		return nil, repoErr
	}
	plans := make([]models.LoadingPlan, 0, len(rows))
	for _, row := range rows {
		var plan models.LoadingPlan
		if err := json.Unmarshal(row, &plan); err != nil {
			return nil, &repository.RepositoryError{Code: repository.ErrParse, Message: "failed to decode loading plan", Detail: err.Error()}
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (s *Store) CreateLoadingPlan(ctx context.Context, plan *models.LoadingPlan) (*models.LoadingPlan, *repository.RepositoryError) {
	payload, repoErr := withBinds(plan, []string{"shipmentId"}, map[string]string{
		"shipment": entityPath(setShipments, plan.ShipmentID),
	})
	if repoErr != nil {
		return nil, repoErr
	}
	row, repoErr := s.create(ctx, setLoadingPlans, payload, plan.ClientRef)
	if repoErr != nil {
		return nil, repoErr
	}
	created := *plan
	var echo models.LoadingPlan
	if err := json.Unmarshal(row, &echo); err != nil {
		return nil, &repository.RepositoryError{Code: repository.ErrParse, Message: "failed to decode created loading plan", Detail: err.Error()}
	}
	created.ID = echo.ID
	return &created, nil
}

func (s *Store) UpdateLoadingPlan(ctx context.Context, plan *models.LoadingPlan) *repository.RepositoryError {
	if plan.ID == "" {
		return &repository.RepositoryError{Code: repository.ErrInvalidState, Message: "loading plan has no id", Detail: "update requires a persisted record"}
	}
	payload, repoErr := withBinds(plan, []string{"shipmentId", "clientRef"}, nil)
	if repoErr != nil {
		return repoErr
	}
	_, _, _, repoErr = s.client.Do(ctx, Request{Method: http.MethodPatch, Path: entityPath(setLoadingPlans, plan.ID), Body: payload})
	return repoErr
}

func (s *Store) DeleteLoadingPlan(ctx context.Context, planID string) *repository.RepositoryError {
	_, _, _, repoErr := s.client.Do(ctx, Request{Method: http.MethodDelete, Path: entityPath(setLoadingPlans, planID)})
	return repoErr
}

// Containers

func (s *Store) ListContainers(ctx context.Context, shipmentID string) ([]models.Container, *repository.RepositoryError) {
	rows, repoErr := s.client.FetchAll(ctx, listPath(setContainers, shipmentID))
	if repoErr != nil {
		return nil, repoErr
	}
	containers := make([]models.Container, 0, len(rows))
	for _, row := range rows {
		var c models.Container
		if err := json.Unmarshal(row, &c); err != nil {
			return nil, &repository.RepositoryError{Code: repository.ErrParse, Message: "failed to decode container", Detail: err.Error()}
		}
		containers = append(containers, c)
	}
	return containers, nil
}

func (s *Store) CreateContainer(ctx context.Context, container *models.Container) (*models.Container, *repository.RepositoryError) {
	payload, repoErr := withBinds(container, []string{"shipmentId"}, map[string]string{
		"shipment": entityPath(setShipments, container.ShipmentID),
	})
	if repoErr != nil {
		return nil, repoErr
	}
	row, repoErr := s.create(ctx, setContainers, payload, container.ClientRef)
	if repoErr != nil {
		return nil, repoErr
	}
	created := *container
	var echo models.Container
	if err := json.Unmarshal(row, &echo); err != nil {
		return nil, &repository.RepositoryError{Code: repository.ErrParse, Message: "failed to decode created container", Detail: err.Error()}
	}
	created.ID = echo.ID
	return &created, nil
}

func (s *Store) DeleteContainer(ctx context.Context, containerID string) *repository.RepositoryError {
	_, _, _, repoErr := s.client.Do(ctx, Request{Method: http.MethodDelete, Path: entityPath(setContainers, containerID)})
	return repoErr
}

// Container items

func (s *Store) ListContainerItems(ctx context.Context, shipmentID string) ([]models.ContainerItem, *repository.RepositoryError) {
	rows, repoErr := s.client.FetchAll(ctx, listPath(setContainerItems, shipmentID))
	if repoErr != nil {
		return nil, repoErr
	}
	items := make([]models.ContainerItem, 0, len(rows))
	for _, row := range rows {
		var ci models.ContainerItem
		if err := json.Unmarshal(row, &ci); err != nil {
			return nil, &repository.RepositoryError{Code: repository.ErrParse, Message: "failed to decode container item", Detail: err.Error()}
		}
		items = append(items, ci)
	}
	return items, nil
}

func (s *Store) CreateContainerItem(ctx context.Context, item *models.ContainerItem) (*models.ContainerItem, *repository.RepositoryError) {
	if item.LineItemID == "" {
		return nil, &repository.RepositoryError{Code: repository.ErrInvalidState, Message: "container item has no owning row", Detail: "lineItemId is required on create"}
	}
	binds := map[string]string{
		"lineItem": entityPath(setLoadingPlans, item.LineItemID),
		"shipment": entityPath(setShipments, item.ShipmentID),
	}
	drop := []string{"shipmentId", "lineItemId", "containerId"}
	if item.Assigned() {
		binds["container"] = entityPath(setContainers, *item.ContainerID)
	}
	payload, repoErr := withBinds(item, drop, binds)
	if repoErr != nil {
		return nil, repoErr
	}
	row, repoErr := s.create(ctx, setContainerItems, payload, item.ClientRef)
	if repoErr != nil {
		return nil, repoErr
	}
	created := *item
	var echo models.ContainerItem
	if err := json.Unmarshal(row, &echo); err != nil {
		return nil, &repository.RepositoryError{Code: repository.ErrParse, Message: "failed to decode created container item", Detail: err.Error()}
	}
	created.ID = echo.ID
	return &created, nil
}

func (s *Store) UpdateContainerItemQuantity(ctx context.Context, itemID string, quantity float64) *repository.RepositoryError {
	_, _, _, repoErr := s.client.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   entityPath(setContainerItems, itemID),
		Body:   map[string]any{"quantity": quantity},
	})
	return repoErr
}

func (s *Store) MarkContainerItemSplit(ctx context.Context, itemID string, quantity float64) *repository.RepositoryError {
	_, _, _, repoErr := s.client.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   entityPath(setContainerItems, itemID),
		Body:   map[string]any{"quantity": quantity, "isSplitItem": true},
	})
	return repoErr
}

func (s *Store) AssignContainerItem(ctx context.Context, itemID, containerID string) *repository.RepositoryError {
	_, _, _, repoErr := s.client.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   entityPath(setContainerItems, itemID),
		Body:   map[string]any{"container@bind": entityPath(setContainers, containerID)},
	})
	return repoErr
}

// UnassignContainerItem clears the container lookup with an explicit unset
// on the navigation reference. The store rejects PATCHing a lookup to
// null.
func (s *Store) UnassignContainerItem(ctx context.Context, itemID string) *repository.RepositoryError {
	_, _, _, repoErr := s.client.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   entityPath(setContainerItems, itemID) + "/container/$ref",
	})
	return repoErr
}

func (s *Store) DeleteContainerItem(ctx context.Context, itemID string) *repository.RepositoryError {
	_, _, _, repoErr := s.client.Do(ctx, Request{Method: http.MethodDelete, Path: entityPath(setContainerItems, itemID)})
	return repoErr
}

// Shipment aggregates

func (s *Store) UpdateShipmentTotals(ctx context.Context, shipmentID string, totals models.ShipmentTotals) *repository.RepositoryError {
	_, _, _, repoErr := s.client.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   entityPath(setShipments, shipmentID),
		Body:   totals,
	})
	return repoErr
}
