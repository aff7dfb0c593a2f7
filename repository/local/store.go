// Package local implements the store contract on a relational database via
// GORM, for self-hosted deployments and integration testing. PostgreSQL is
// the production target; a DSN that looks like a file path opens SQLite.
package local

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dclsuite/loadplan/repository"
	"github.com/dclsuite/loadplan/repository/models"
)

// Store is the database-backed store service.
type Store struct {
	db *gorm.DB
}

var _ repository.StoreService = (*Store)(nil)

// Open connects to the database named by dsn and migrates the schema.
// "postgres://..." and key=value DSNs go to PostgreSQL, anything else is
// treated as an SQLite file path.
func Open(dsn string) (*Store, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&models.Shipment{},
		&models.LoadingPlan{},
		&models.Container{},
		&models.ContainerItem{},
	); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-opened database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func dbError(op string, err error) *repository.RepositoryError {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &repository.RepositoryError{
			Code:    repository.ErrEntityNotFound,
			Message: "record does not exist",
			Detail:  op,
		}
	}
	return &repository.RepositoryError{
		Code:    repository.ErrDatabase,
		Message: "database operation failed",
		Detail:  op + ": " + err.Error(),
	}
}

func notFound(op string) *repository.RepositoryError {
	return &repository.RepositoryError{
		Code:    repository.ErrEntityNotFound,
		Message: "record does not exist",
		Detail:  op,
	}
}

// Loading plan rows

func (s *Store) ListLoadingPlans(ctx context.Context, shipmentID string) ([]models.LoadingPlan, *repository.RepositoryError) {
	var plans []models.LoadingPlan
	if err := s.db.WithContext(ctx).Where("shipment_id = ?", shipmentID).Order("order_number, item_code").Find(&plans).Error; err != nil {
		return nil, dbError("list loading plans", err)
	}
	return plans, nil
}

func (s *Store) CreateLoadingPlan(ctx context.Context, plan *models.LoadingPlan) (*models.LoadingPlan, *repository.RepositoryError) {
	created := *plan
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, dbError("create loading plan", err)
	}
	return &created, nil
}

func (s *Store) UpdateLoadingPlan(ctx context.Context, plan *models.LoadingPlan) *repository.RepositoryError {
	if plan.ID == "" {
		return &repository.RepositoryError{Code: repository.ErrInvalidState, Message: "loading plan has no id", Detail: "update requires a persisted record"}
	}
	res := s.db.WithContext(ctx).Model(&models.LoadingPlan{}).Where("loading_plan_id = ?", plan.ID).Select("*").
		Omit("loading_plan_id", "shipment_id", "client_ref").Updates(plan)
	if res.Error != nil {
		return dbError("update loading plan", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("update loading plan " + plan.ID)
	}
	return nil
}

func (s *Store) DeleteLoadingPlan(ctx context.Context, planID string) *repository.RepositoryError {
	res := s.db.WithContext(ctx).Delete(&models.LoadingPlan{}, "loading_plan_id = ?", planID)
	if res.Error != nil {
		return dbError("delete loading plan", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("delete loading plan " + planID)
	}
	return nil
}

// Containers

func (s *Store) ListContainers(ctx context.Context, shipmentID string) ([]models.Container, *repository.RepositoryError) {
	var containers []models.Container
	if err := s.db.WithContext(ctx).Where("shipment_id = ?", shipmentID).Order("code").Find(&containers).Error; err != nil {
		return nil, dbError("list containers", err)
	}
	return containers, nil
}

func (s *Store) CreateContainer(ctx context.Context, container *models.Container) (*models.Container, *repository.RepositoryError) {
	created := *container
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, dbError("create container", err)
	}
	return &created, nil
}

func (s *Store) DeleteContainer(ctx context.Context, containerID string) *repository.RepositoryError {
	res := s.db.WithContext(ctx).Delete(&models.Container{}, "container_id = ?", containerID)
	if res.Error != nil {
		return dbError("delete container", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("delete container " + containerID)
	}
	return nil
}

// Container items

func (s *Store) ListContainerItems(ctx context.Context, shipmentID string) ([]models.ContainerItem, *repository.RepositoryError) {
	var items []models.ContainerItem
	if err := s.db.WithContext(ctx).Where("shipment_id = ?", shipmentID).Find(&items).Error; err != nil {
		return nil, dbError("list container items", err)
	}
	return items, nil
}

func (s *Store) CreateContainerItem(ctx context.Context, item *models.ContainerItem) (*models.ContainerItem, *repository.RepositoryError) {
	if item.LineItemID == "" {
		return nil, &repository.RepositoryError{Code: repository.ErrInvalidState, Message: "container item has no owning row", Detail: "lineItemId is required on create"}
	}
	created := *item
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, dbError("create container item", err)
	}
	return &created, nil
}

func (s *Store) UpdateContainerItemQuantity(ctx context.Context, itemID string, quantity float64) *repository.RepositoryError {
	res := s.db.WithContext(ctx).Model(&models.ContainerItem{}).Where("container_item_id = ?", itemID).Update("quantity", quantity)
	if res.Error != nil {
		return dbError("update container item quantity", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("update container item " + itemID)
	}
	return nil
}

func (s *Store) MarkContainerItemSplit(ctx context.Context, itemID string, quantity float64) *repository.RepositoryError {
	res := s.db.WithContext(ctx).Model(&models.ContainerItem{}).Where("container_item_id = ?", itemID).
		Updates(map[string]any{"quantity": quantity, "is_split_item": true})
	if res.Error != nil {
		return dbError("mark container item split", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("mark container item " + itemID)
	}
	return nil
}

func (s *Store) AssignContainerItem(ctx context.Context, itemID, containerID string) *repository.RepositoryError {
	res := s.db.WithContext(ctx).Model(&models.ContainerItem{}).Where("container_item_id = ?", itemID).Update("container_id", containerID)
	if res.Error != nil {
		return dbError("assign container item", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("assign container item " + itemID)
	}
	return nil
}

func (s *Store) UnassignContainerItem(ctx context.Context, itemID string) *repository.RepositoryError {
	res := s.db.WithContext(ctx).Model(&models.ContainerItem{}).Where("container_item_id = ?", itemID).Update("container_id", nil)
	if res.Error != nil {
		return dbError("unassign container item", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("unassign container item " + itemID)
	}
	return nil
}

func (s *Store) DeleteContainerItem(ctx context.Context, itemID string) *repository.RepositoryError {
	res := s.db.WithContext(ctx).Delete(&models.ContainerItem{}, "container_item_id = ?", itemID)
	if res.Error != nil {
		return dbError("delete container item", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("delete container item " + itemID)
	}
	return nil
}

// Shipment aggregates

func (s *Store) UpdateShipmentTotals(ctx context.Context, shipmentID string, totals models.ShipmentTotals) *repository.RepositoryError {
	res := s.db.WithContext(ctx).Model(&models.Shipment{}).Where("shipment_id = ?", shipmentID).Updates(map[string]any{
		"total_ordered_quantity": totals.OrderedQuantity,
		"total_loaded_quantity":  totals.LoadedQuantity,
		"total_pending_quantity": totals.PendingQuantity,
		"total_volume":           totals.Volume,
		"total_net_weight":       totals.NetWeight,
		"total_gross_weight":     totals.GrossWeight,
	})
	if res.Error != nil {
		return dbError("update shipment totals", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("update shipment " + shipmentID)
	}
	return nil
}
