package planner

import (
	"github.com/dclsuite/loadplan/repository/models"
)

// LineItem is the session-side view of one loading-plan row: the persisted
// record fields plus the per-field override state that only lives for the
// duration of the editing session.
type LineItem struct {
	ID               string  `json:"id"`
	ShipmentID       string  `json:"shipmentId"`
	OrderNumber      string  `json:"orderNumber"`
	ItemCode         string  `json:"itemCode"`
	Description      string  `json:"description"`
	ReleaseStatus    int     `json:"releaseStatus"`
	PackagingDetails string  `json:"packagingDetails"`
	PackType         string  `json:"packType"`
	OrderedQuantity  float64 `json:"orderedQuantity"`
	LoadedQuantity   float64 `json:"loadedQuantity"`
	PendingQuantity  float64 `json:"pendingQuantity"`
	IsPalletized     bool    `json:"isPalletized"`
	PalletCount      int     `json:"palletCount"`
	PalletWeightKg   float64 `json:"palletWeight"`
	ClientRef        string  `json:"clientRef"`

	UnitOfMeasure Derived `json:"unitOfMeasure"`
	TotalVolume   Derived `json:"totalVolume"`
	NetWeightKg   Derived `json:"netWeight"`
	GrossWeightKg Derived `json:"grossWeight"`
}

// LineItemFromRecord builds the session view of a stored row. Overrides
// always start cleared; they are not persisted.
func LineItemFromRecord(rec models.LoadingPlan) *LineItem {
	return &LineItem{
		ID:               rec.ID,
		ShipmentID:       rec.ShipmentID,
		OrderNumber:      rec.OrderNumber,
		ItemCode:         rec.ItemCode,
		Description:      rec.Description,
		ReleaseStatus:    rec.ReleaseStatus,
		PackagingDetails: rec.PackagingDetails,
		PackType:         rec.PackType,
		OrderedQuantity:  rec.OrderedQuantity,
		LoadedQuantity:   rec.LoadedQuantity,
		PendingQuantity:  rec.PendingQuantity,
		IsPalletized:     rec.IsPalletized,
		PalletCount:      rec.PalletCount,
		PalletWeightKg:   rec.PalletWeight,
		ClientRef:        rec.ClientRef,
		UnitOfMeasure:    Derived{Value: rec.UnitOfMeasure},
		TotalVolume:      Derived{Value: rec.TotalVolume},
		NetWeightKg:      Derived{Value: rec.NetWeight},
		GrossWeightKg:    Derived{Value: rec.GrossWeight},
	}
}

// Record flattens the session view back into the persistable row.
func (li *LineItem) Record() *models.LoadingPlan {
	return &models.LoadingPlan{
		ID:               li.ID,
		ShipmentID:       li.ShipmentID,
		OrderNumber:      li.OrderNumber,
		ItemCode:         li.ItemCode,
		Description:      li.Description,
		ReleaseStatus:    li.ReleaseStatus,
		PackagingDetails: li.PackagingDetails,
		PackType:         li.PackType,
		UnitOfMeasure:    li.UnitOfMeasure.Value,
		OrderedQuantity:  li.OrderedQuantity,
		LoadedQuantity:   li.LoadedQuantity,
		PendingQuantity:  li.PendingQuantity,
		IsPalletized:     li.IsPalletized,
		PalletCount:      li.PalletCount,
		PalletWeight:     li.PalletWeightKg,
		TotalVolume:      li.TotalVolume.Value,
		NetWeight:        li.NetWeightKg.Value,
		GrossWeight:      li.GrossWeightKg.Value,
		ClientRef:        li.ClientRef,
	}
}

// RowRef is the identifier shown to the user in notices.
func (li *LineItem) RowRef() string {
	if li.OrderNumber != "" || li.ItemCode != "" {
		return li.OrderNumber + "/" + li.ItemCode
	}
	return li.ID
}
