package planner

import (
	"fmt"
	"math"
	"strings"
)

const (
	// PalletUnitWeightKg is the weight of one standard pallet.
	PalletUnitWeightKg = 19.38

	// DensityCoolant applies to coolant products, DensityDefault to
	// everything else (kg per liter).
	DensityCoolant = 1.07
	DensityDefault = 0.90
)

// DensityFor picks the product density from the line description.
func DensityFor(description string) float64 {
	if strings.Contains(strings.ToUpper(description), "COOLANT") {
		return DensityCoolant
	}
	return DensityDefault
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recalculate brings every non-overridden derived field back in line with
// its inputs. Calling it twice without intervening edits is a no-op.
//
// Dependency chain: packaging -> unit of measure -> total volume ->
// net weight -> gross weight; pallet weight and pending quantity are
// recomputed unconditionally.
func (li *LineItem) Recalculate() {
	li.UnitOfMeasure.Compute(ParsePackLiters(li.PackagingDetails))
	li.TotalVolume.Compute(round2(li.LoadedQuantity * li.UnitOfMeasure.Value))
	li.NetWeightKg.Compute(round2(li.TotalVolume.Value * DensityFor(li.Description)))
	if li.IsPalletized {
		li.PalletWeightKg = round2(float64(li.PalletCount) * PalletUnitWeightKg)
	} else {
		li.PalletWeightKg = 0
	}
	li.GrossWeightKg.Compute(round2(li.PalletWeightKg + li.NetWeightKg.Value + li.LoadedQuantity))
	li.PendingQuantity = math.Max(0, li.OrderedQuantity-li.LoadedQuantity)
}

// EditPackagingDetails replaces the packaging text. Everything downstream
// derives from it, so all four overrides are released.
func (li *LineItem) EditPackagingDetails(v string) {
	li.PackagingDetails = v
	li.UnitOfMeasure.ClearOverride()
	li.TotalVolume.ClearOverride()
	li.NetWeightKg.ClearOverride()
	li.GrossWeightKg.ClearOverride()
	li.Recalculate()
}

// EditDescription replaces the description. Density may change, so only
// the weight overrides are released.
func (li *LineItem) EditDescription(v string) {
	li.Description = v
	li.NetWeightKg.ClearOverride()
	li.GrossWeightKg.ClearOverride()
	li.Recalculate()
}

// EditUnitOfMeasure pins the pack size and releases everything downstream.
func (li *LineItem) EditUnitOfMeasure(v float64) {
	li.UnitOfMeasure.Override(v)
	li.TotalVolume.ClearOverride()
	li.NetWeightKg.ClearOverride()
	li.GrossWeightKg.ClearOverride()
	li.Recalculate()
}

// EditTotalVolume pins the volume and releases the weights.
func (li *LineItem) EditTotalVolume(v float64) {
	li.TotalVolume.Override(v)
	li.NetWeightKg.ClearOverride()
	li.GrossWeightKg.ClearOverride()
	li.Recalculate()
}

// EditNetWeight pins the net weight and releases the gross weight.
func (li *LineItem) EditNetWeight(v float64) {
	li.NetWeightKg.Override(v)
	li.GrossWeightKg.ClearOverride()
	li.Recalculate()
}

// EditGrossWeight pins the gross weight. Nothing derives from it.
func (li *LineItem) EditGrossWeight(v float64) {
	li.GrossWeightKg.Override(v)
	li.Recalculate()
}

// EditLoadedQuantity changes the quantity to load. Volume and both weights
// depend on it, so their overrides are released.
func (li *LineItem) EditLoadedQuantity(v float64) error {
	if v < 0 {
		return fmt.Errorf("loading quantity cannot be negative: %v", v)
	}
	li.LoadedQuantity = v
	li.clearQuantityDependents()
	li.Recalculate()
	return nil
}

// EditOrderedQuantity changes the ordered quantity; only the pending
// quantity follows from it.
func (li *LineItem) EditOrderedQuantity(v float64) error {
	if v < 0 {
		return fmt.Errorf("ordered quantity cannot be negative: %v", v)
	}
	li.OrderedQuantity = v
	li.Recalculate()
	return nil
}

// EditPalletCount changes the pallet count and recomputes pallet weight.
func (li *LineItem) EditPalletCount(v int) error {
	if v < 0 {
		return fmt.Errorf("pallet count cannot be negative: %d", v)
	}
	li.PalletCount = v
	li.clearQuantityDependents()
	li.Recalculate()
	return nil
}

// EditPalletized toggles palletization.
func (li *LineItem) EditPalletized(v bool) {
	li.IsPalletized = v
	li.clearQuantityDependents()
	li.Recalculate()
}

func (li *LineItem) clearQuantityDependents() {
	li.TotalVolume.ClearOverride()
	li.NetWeightKg.ClearOverride()
	li.GrossWeightKg.ClearOverride()
}
