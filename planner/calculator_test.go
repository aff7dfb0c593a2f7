package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRow() *LineItem {
	li := &LineItem{
		OrderNumber:      "SO-1001",
		ItemCode:         "OIL-15W40",
		Description:      "Engine oil 15W40",
		PackagingDetails: "4x5L",
		OrderedQuantity:  120,
		LoadedQuantity:   100,
	}
	li.Recalculate()
	return li
}

func TestRecalculateDerivesFullChain(t *testing.T) {
	li := newTestRow()

	assert.Equal(t, 20.0, li.UnitOfMeasure.Value)
	assert.Equal(t, 2000.0, li.TotalVolume.Value)
	assert.Equal(t, 1800.0, li.NetWeightKg.Value)
	assert.Equal(t, 0.0, li.PalletWeightKg)
	assert.Equal(t, 1900.0, li.GrossWeightKg.Value)
	assert.Equal(t, 20.0, li.PendingQuantity)
}

func TestRecalculateCoolantDensity(t *testing.T) {
	li := newTestRow()
	li.EditDescription("Coolant concentrate")

	assert.Equal(t, 2140.0, li.NetWeightKg.Value)
	assert.Equal(t, 2240.0, li.GrossWeightKg.Value)
}

func TestDensityForIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, DensityCoolant, DensityFor("Premium COOLANT 50/50"))
	assert.Equal(t, DensityCoolant, DensityFor("coolant concentrate"))
	assert.Equal(t, DensityDefault, DensityFor("Engine oil"))
	assert.Equal(t, DensityDefault, DensityFor(""))
}

func TestRecalculateIsIdempotent(t *testing.T) {
	li := newTestRow()
	before := *li
	li.Recalculate()
	li.Recalculate()
	assert.Equal(t, before, *li)
}

func TestRecalculatePalletWeight(t *testing.T) {
	li := newTestRow()
	li.EditPalletized(true)
	require.NoError(t, li.EditPalletCount(4))

	assert.Equal(t, 77.52, li.PalletWeightKg)
	assert.Equal(t, 1800.0+77.52+100, li.GrossWeightKg.Value)

	li.EditPalletized(false)
	assert.Equal(t, 0.0, li.PalletWeightKg)
	assert.Equal(t, 1900.0, li.GrossWeightKg.Value)
}

func TestOverrideSurvivesRecalculate(t *testing.T) {
	li := newTestRow()
	li.EditGrossWeight(2500)

	li.Recalculate()
	assert.Equal(t, 2500.0, li.GrossWeightKg.Value)
	assert.True(t, li.GrossWeightKg.Overridden)
}

func TestLoadedQuantityEditReleasesDownstreamOverrides(t *testing.T) {
	li := newTestRow()
	li.EditTotalVolume(1234)
	li.EditGrossWeight(2500)

	require.NoError(t, li.EditLoadedQuantity(50))

	assert.False(t, li.TotalVolume.Overridden)
	assert.False(t, li.GrossWeightKg.Overridden)
	assert.Equal(t, 1000.0, li.TotalVolume.Value)
	assert.Equal(t, 900.0, li.NetWeightKg.Value)
	assert.Equal(t, 950.0, li.GrossWeightKg.Value)
	assert.Equal(t, 70.0, li.PendingQuantity)
}

func TestPackagingEditReleasesAllOverrides(t *testing.T) {
	li := newTestRow()
	li.EditUnitOfMeasure(99)
	li.EditNetWeight(1)
	li.EditGrossWeight(2)

	li.EditPackagingDetails("12x1L")

	assert.False(t, li.UnitOfMeasure.Overridden)
	assert.False(t, li.NetWeightKg.Overridden)
	assert.False(t, li.GrossWeightKg.Overridden)
	assert.Equal(t, 12.0, li.UnitOfMeasure.Value)
	assert.Equal(t, 1200.0, li.TotalVolume.Value)
}

func TestUnitOfMeasureOverrideKeepsDownstreamDerived(t *testing.T) {
	li := newTestRow()
	li.EditUnitOfMeasure(10)

	assert.True(t, li.UnitOfMeasure.Overridden)
	assert.Equal(t, 1000.0, li.TotalVolume.Value)
	assert.Equal(t, 900.0, li.NetWeightKg.Value)
	assert.Equal(t, 1000.0, li.GrossWeightKg.Value)
}

func TestNetWeightOverrideReleasesOnlyGross(t *testing.T) {
	li := newTestRow()
	li.EditGrossWeight(9999)

	li.EditNetWeight(1500)

	assert.True(t, li.NetWeightKg.Overridden)
	assert.False(t, li.GrossWeightKg.Overridden)
	assert.Equal(t, 1600.0, li.GrossWeightKg.Value)
}

func TestNegativeEditsRejected(t *testing.T) {
	li := newTestRow()
	assert.Error(t, li.EditLoadedQuantity(-1))
	assert.Error(t, li.EditOrderedQuantity(-5))
	assert.Error(t, li.EditPalletCount(-2))
	// Values untouched after rejected edits.
	assert.Equal(t, 100.0, li.LoadedQuantity)
	assert.Equal(t, 120.0, li.OrderedQuantity)
	assert.Equal(t, 0, li.PalletCount)
}

func TestPendingQuantityNeverNegative(t *testing.T) {
	li := newTestRow()
	require.NoError(t, li.EditLoadedQuantity(150))
	assert.Equal(t, 0.0, li.PendingQuantity)
}
