package models

// ContainerItem links a quantity of one loading-plan row to at most one
// container. A row that has never been split owns exactly one of these;
// splitting produces several, all flagged IsSplitItem, whose quantities sum
// to the row group's loaded quantity.
type ContainerItem struct {
	ID         string  `gorm:"column:container_item_id;primaryKey;type:varchar(50)" json:"id"`
	ShipmentID string  `gorm:"column:shipment_id;type:varchar(50);index" json:"shipmentId"`
	LineItemID string  `gorm:"column:loading_plan_id;type:varchar(50);index" json:"lineItemId"`
	Quantity   float64 `gorm:"column:quantity" json:"quantity"`
	// ContainerID is nil while the item is unassigned.
	ContainerID *string `gorm:"column:container_id;type:varchar(50);index" json:"containerId"`
	IsSplitItem bool    `gorm:"column:is_split_item;default:false" json:"isSplitItem"`
	ClientRef   string  `gorm:"column:client_ref;type:varchar(50);index" json:"clientRef"`

	LineItem  *LoadingPlan `gorm:"foreignKey:LineItemID" json:"-"`
	Container *Container   `gorm:"foreignKey:ContainerID" json:"-"`
}

// Assigned reports whether the item currently sits in a container.
func (ci *ContainerItem) Assigned() bool {
	return ci.ContainerID != nil && *ci.ContainerID != ""
}
