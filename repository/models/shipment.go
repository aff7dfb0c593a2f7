package models

import "time"

// Shipment is the parent declaration record a loading plan belongs to.
// Only the aggregate totals are written back to it; everything else on the
// shipment form is maintained elsewhere.
type Shipment struct {
	ID        string    `gorm:"column:shipment_id;primaryKey;type:varchar(50)" json:"id"`
	Reference string    `gorm:"column:reference;type:varchar(100)" json:"reference"`
	Locked    bool      `gorm:"column:locked;default:false" json:"locked"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	TotalOrderedQuantity float64 `gorm:"column:total_ordered_quantity" json:"totalOrderedQuantity"`
	TotalLoadedQuantity  float64 `gorm:"column:total_loaded_quantity" json:"totalLoadedQuantity"`
	TotalPendingQuantity float64 `gorm:"column:total_pending_quantity" json:"totalPendingQuantity"`
	TotalVolume          float64 `gorm:"column:total_volume" json:"totalVolume"`
	TotalNetWeight       float64 `gorm:"column:total_net_weight" json:"totalNetWeight"`
	TotalGrossWeight     float64 `gorm:"column:total_gross_weight" json:"totalGrossWeight"`

	// Relationships
	LoadingPlans   []LoadingPlan   `gorm:"foreignKey:ShipmentID" json:"-"`
	Containers     []Container     `gorm:"foreignKey:ShipmentID" json:"-"`
	ContainerItems []ContainerItem `gorm:"foreignKey:ShipmentID" json:"-"`
}

// ShipmentTotals are the aggregates pushed back to the shipment record
// after every structural change to the loading plan.
type ShipmentTotals struct {
	OrderedQuantity float64 `json:"totalOrderedQuantity"`
	LoadedQuantity  float64 `json:"totalLoadedQuantity"`
	PendingQuantity float64 `json:"totalPendingQuantity"`
	Volume          float64 `json:"totalVolume"`
	NetWeight       float64 `json:"totalNetWeight"`
	GrossWeight     float64 `json:"totalGrossWeight"`
}
