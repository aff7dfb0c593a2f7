package models

// ContainerType enumerates the equipment kinds a shipment can book.
type ContainerType string

const (
	Container20FT    ContainerType = "20FT"
	Container40FT    ContainerType = "40FT"
	Container40FTHC  ContainerType = "40FT-HC"
	ContainerISOTank ContainerType = "ISO-TANK"
	ContainerFlexi20 ContainerType = "FLEXI-20"
	ContainerFlexi40 ContainerType = "FLEXI-40"
	ContainerBulk    ContainerType = "BULK-TANKER"
	ContainerTruck   ContainerType = "TRUCK"
)

// ContainerTypes lists every valid type, in display order.
var ContainerTypes = []ContainerType{
	Container20FT,
	Container40FT,
	Container40FTHC,
	ContainerISOTank,
	ContainerFlexi20,
	ContainerFlexi40,
	ContainerBulk,
	ContainerTruck,
}

// capacity holds the default payload limits for a container type. Volume 0
// means the type has no volume ceiling (bulk equipment).
type capacity struct {
	WeightKg float64
	VolumeM3 float64
}

var defaultCapacities = map[ContainerType]capacity{
	Container20FT:    {WeightKg: 21770, VolumeM3: 33.2},
	Container40FT:    {WeightKg: 26780, VolumeM3: 67.7},
	Container40FTHC:  {WeightKg: 26512, VolumeM3: 76.4},
	ContainerISOTank: {WeightKg: 26000, VolumeM3: 26.0},
	ContainerFlexi20: {WeightKg: 24000, VolumeM3: 24.0},
	ContainerFlexi40: {WeightKg: 24000, VolumeM3: 24.0},
	ContainerBulk:    {WeightKg: 30000},
	ContainerTruck:   {WeightKg: 24000},
}

// Valid reports whether t is one of the eight known types.
func (t ContainerType) Valid() bool {
	_, ok := defaultCapacities[t]
	return ok
}

// DefaultMaxWeightKg returns the default weight ceiling for the type.
func (t ContainerType) DefaultMaxWeightKg() float64 {
	return defaultCapacities[t].WeightKg
}

// DefaultMaxVolumeM3 returns the default volume ceiling, or nil for bulk
// equipment that has none.
func (t ContainerType) DefaultMaxVolumeM3() *float64 {
	c := defaultCapacities[t]
	if c.VolumeM3 == 0 {
		return nil
	}
	v := c.VolumeM3
	return &v
}

// Container is one bookable unit of equipment on a shipment.
type Container struct {
	ID         string        `gorm:"column:container_id;primaryKey;type:varchar(50)" json:"id"`
	ShipmentID string        `gorm:"column:shipment_id;type:varchar(50);index" json:"shipmentId"`
	Code       string        `gorm:"column:code;type:varchar(50)" json:"code"`
	Type       ContainerType `gorm:"column:container_type;type:varchar(20)" json:"type"`
	MaxWeight  float64       `gorm:"column:max_weight" json:"maxWeight"`
	// MaxVolume is nil for bulk tankers and trucks.
	MaxVolume        *float64 `gorm:"column:max_volume" json:"maxVolume"`
	TotalGrossWeight float64  `gorm:"column:total_gross_weight" json:"totalGrossWeight"`
	ClientRef        string   `gorm:"column:client_ref;type:varchar(50);index" json:"clientRef"`

	// Relationships
	Items []ContainerItem `gorm:"foreignKey:ContainerID" json:"-"`
}
