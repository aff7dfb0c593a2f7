package repository

import (
	"context"
	"fmt"

	"github.com/dclsuite/loadplan/repository/models"
)

// Error codes returned by store implementations.
const (
	ErrEntityNotFound  = "ENTITY_NOT_FOUND"
	ErrNetwork         = "NETWORK_ERROR"
	ErrRequest         = "REQUEST_ERROR"
	ErrParse           = "PARSE_ERROR"
	ErrStoreRejected   = "STORE_REJECTED"
	ErrReadbackTimeout = "READBACK_TIMEOUT"
	ErrDatabase        = "DATABASE_ERROR"
	ErrInvalidState    = "INVALID_STATE"
)

// RepositoryError represents an error in the store access layer.
type RepositoryError struct {
	Code    string
	Message string
	Detail  string
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
}

// NotFound reports whether err is a missing-entity error.
func NotFound(err *RepositoryError) bool {
	return err != nil && err.Code == ErrEntityNotFound
}

// StoreService is the contract every store backend implements. The remote
// backend speaks the hosted record store's HTTP protocol; the local backend
// keeps the same records in a relational database. Engines depend on this
// interface only.
type StoreService interface {
	// Loading plan rows
	ListLoadingPlans(ctx context.Context, shipmentID string) ([]models.LoadingPlan, *RepositoryError)
	CreateLoadingPlan(ctx context.Context, plan *models.LoadingPlan) (*models.LoadingPlan, *RepositoryError)
	UpdateLoadingPlan(ctx context.Context, plan *models.LoadingPlan) *RepositoryError
	DeleteLoadingPlan(ctx context.Context, planID string) *RepositoryError

	// Containers
	ListContainers(ctx context.Context, shipmentID string) ([]models.Container, *RepositoryError)
	CreateContainer(ctx context.Context, container *models.Container) (*models.Container, *RepositoryError)
	DeleteContainer(ctx context.Context, containerID string) *RepositoryError

	// Container items
	ListContainerItems(ctx context.Context, shipmentID string) ([]models.ContainerItem, *RepositoryError)
	CreateContainerItem(ctx context.Context, item *models.ContainerItem) (*models.ContainerItem, *RepositoryError)
	UpdateContainerItemQuantity(ctx context.Context, itemID string, quantity float64) *RepositoryError
	MarkContainerItemSplit(ctx context.Context, itemID string, quantity float64) *RepositoryError
	AssignContainerItem(ctx context.Context, itemID, containerID string) *RepositoryError
	UnassignContainerItem(ctx context.Context, itemID string) *RepositoryError
	DeleteContainerItem(ctx context.Context, itemID string) *RepositoryError

	// Shipment aggregates
	UpdateShipmentTotals(ctx context.Context, shipmentID string, totals models.ShipmentTotals) *RepositoryError
}
