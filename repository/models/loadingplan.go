package models

// Release status values as the store encodes them.
const (
	ReleaseStatusNo  = 0
	ReleaseStatusYes = 1
)

// LoadingPlan is one order-line row of a shipment's loading plan as the
// record store holds it. Derived fields (unit of measure, volume, weights)
// are stored as plain values; which of them were manually overridden is
// session state and never persisted.
type LoadingPlan struct {
	ID               string  `gorm:"column:loading_plan_id;primaryKey;type:varchar(50)" json:"id"`
	ShipmentID       string  `gorm:"column:shipment_id;type:varchar(50);index" json:"shipmentId"`
	OrderNumber      string  `gorm:"column:order_number;type:varchar(50)" json:"orderNumber"`
	ItemCode         string  `gorm:"column:item_code;type:varchar(50)" json:"itemCode"`
	Description      string  `gorm:"column:description;type:varchar(200)" json:"description"`
	ReleaseStatus    int     `gorm:"column:release_status;default:0" json:"releaseStatus"`
	PackagingDetails string  `gorm:"column:packaging_details;type:varchar(50)" json:"packagingDetails"`
	PackType         string  `gorm:"column:pack_type;type:varchar(50)" json:"packType"`
	UnitOfMeasure    float64 `gorm:"column:unit_of_measure" json:"unitOfMeasure"`
	OrderedQuantity  float64 `gorm:"column:ordered_quantity" json:"orderedQuantity"`
	LoadedQuantity   float64 `gorm:"column:loaded_quantity" json:"loadedQuantity"`
	PendingQuantity  float64 `gorm:"column:pending_quantity" json:"pendingQuantity"`
	IsPalletized     bool    `gorm:"column:is_palletized;default:false" json:"isPalletized"`
	PalletCount      int     `gorm:"column:pallet_count;default:0" json:"palletCount"`
	PalletWeight     float64 `gorm:"column:pallet_weight" json:"palletWeight"`
	TotalVolume      float64 `gorm:"column:total_volume" json:"totalVolume"`
	NetWeight        float64 `gorm:"column:net_weight" json:"netWeight"`
	GrossWeight      float64 `gorm:"column:gross_weight" json:"grossWeight"`

	// ClientRef is a client-generated idempotency key. A create whose
	// response omits the new id is re-fetched by this value.
	ClientRef string `gorm:"column:client_ref;type:varchar(50);index" json:"clientRef"`

	// Relationships
	ContainerItems []ContainerItem `gorm:"foreignKey:LineItemID" json:"-"`
}
