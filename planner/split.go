package planner

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/dclsuite/loadplan/repository/models"
)

// SplitResult reports what a split produced. Created counts the additional
// records persisted beyond the mutated original; on partial failure it is
// smaller than Requested-1.
type SplitResult struct {
	LineItemIDs []string `json:"lineItemIds"`
	Requested   int      `json:"requested"`
	Created     int      `json:"created"`
	Partial     bool     `json:"partial"`
}

// EqualDistribution divides total into parts equal shares, floor for all
// but the last, remainder added to the last.
func EqualDistribution(total float64, parts int) []float64 {
	if parts < 2 || total <= 0 {
		return nil
	}
	base := math.Floor(total / float64(parts))
	dist := make([]float64, parts)
	for i := 0; i < parts-1; i++ {
		dist[i] = base
	}
	dist[parts-1] = total - base*float64(parts-1)
	return dist
}

// FixedSizeDistribution cuts total into chunks of size; the last chunk
// holds the remainder (or a full chunk when total divides evenly).
func FixedSizeDistribution(total, size float64) []float64 {
	if size <= 0 || total <= 0 {
		return nil
	}
	n := int(math.Ceil(total / size))
	dist := make([]float64, n)
	for i := 0; i < n-1; i++ {
		dist[i] = size
	}
	dist[n-1] = total - size*float64(n-1)
	return dist
}

// validateDistribution enforces the split preconditions against the
// source row's loaded quantity.
func validateDistribution(total float64, dist []float64) error {
	if len(dist) < 2 {
		return fmt.Errorf("a split needs at least 2 parts, got %d", len(dist))
	}
	sum := 0.0
	for i, q := range dist {
		if q <= 0 {
			return fmt.Errorf("split quantity at position %d must be positive, got %v", i+1, q)
		}
		sum += q
	}
	if math.Abs(sum-total) > 1e-9 {
		return fmt.Errorf("split quantities sum to %v, loaded quantity is %v", sum, total)
	}
	return nil
}

// splitPalletCounts shares the original pallet count across the
// distribution. Positions 1..k get their rounded proportional share, each
// capped at the pool still left; the first record absorbs the rounding
// remainder so the counts always sum to the original exactly.
func splitPalletCounts(original int, total float64, dist []float64) []int {
	counts := make([]int, len(dist))
	remaining := original
	for i := 1; i < len(dist); i++ {
		share := int(math.Round(float64(original) * dist[i] / total))
		if share > remaining {
			share = remaining
		}
		counts[i] = share
		remaining -= share
	}
	counts[0] = remaining
	return counts
}

// scaleShare freezes a proportional share of a pre-split value. The result
// is pinned as overridden: it represents a physical re-partition of an
// already-finalized figure, not something to re-derive from the new
// loaded quantity.
func scaleShare(d *Derived, ratio float64) {
	d.Override(round2(d.Value * ratio))
}

// SplitLineItem divides one row's loaded quantity into the given
// distribution. The original row keeps the first share in place; every
// further share becomes a new row with its own container item. Already
// persisted records are never rolled back on a later failure; the result
// reports partial completion instead.
func (s *Session) SplitLineItem(ctx context.Context, lineItemID string, dist []float64) (*SplitResult, []Notice, error) {
	li := s.lineItemByID(lineItemID)
	if li == nil {
		return nil, []Notice{errorf(lineItemID, "row not found")}, nil
	}
	if li.ID == "" {
		return nil, nil, fmt.Errorf("line item %s has no persisted id", li.RowRef())
	}
	if li.LoadedQuantity <= 1 {
		return nil, []Notice{errorf(li.RowRef(), "loaded quantity %v is too small to split", li.LoadedQuantity)}, nil
	}

	ownItems := s.containerItemsByLine()[lineItemID]
	if len(ownItems) == 0 {
		return nil, []Notice{errorf(li.RowRef(), "no container item yet; run Start Allocation first")}, nil
	}
	for _, ci := range ownItems {
		if ci.IsSplitItem {
			return nil, []Notice{errorf(li.RowRef(), "row is already split; adjust the existing split instead")}, nil
		}
	}
	sourceItem := ownItems[0]

	total := li.LoadedQuantity
	if err := validateDistribution(total, dist); err != nil {
		return nil, []Notice{errorf(li.RowRef(), "%s", err.Error())}, nil
	}

	palletCounts := splitPalletCounts(li.PalletCount, total, dist)
	original := *li // frozen copy; shares scale from pre-split values

	// First share mutates the row in place.
	ratio := dist[0] / total
	li.LoadedQuantity = dist[0]
	li.OrderedQuantity = round2(original.OrderedQuantity * ratio)
	scaleShare(&li.TotalVolume, ratio)
	scaleShare(&li.NetWeightKg, ratio)
	scaleShare(&li.GrossWeightKg, ratio)
	li.PalletCount = palletCounts[0]
	if li.IsPalletized {
		li.PalletWeightKg = round2(float64(li.PalletCount) * PalletUnitWeightKg)
	}
	li.PendingQuantity = math.Max(0, li.OrderedQuantity-li.LoadedQuantity)

	if repoErr := s.store.UpdateLoadingPlan(ctx, li.Record()); repoErr != nil {
		// Nothing persisted yet; restore the in-memory row.
		*li = original
		return nil, []Notice{errorf(li.RowRef(), "split aborted, row not saved: %s", repoErr.Message)}, repoErr
	}
	if repoErr := s.store.MarkContainerItemSplit(ctx, sourceItem.ID, dist[0]); repoErr != nil {
		return nil, []Notice{errorf(li.RowRef(), "split record saved but container item not marked: %s", repoErr.Message)}, repoErr
	}

	result := &SplitResult{
		LineItemIDs: []string{li.ID},
		Requested:   len(dist),
	}

	// Remaining shares become new rows, each with its own container item.
	var notices []Notice
	for i := 1; i < len(dist); i++ {
		ratio := dist[i] / total
		clone := &LineItem{
			ShipmentID:       s.ShipmentID,
			OrderNumber:      original.OrderNumber,
			ItemCode:         original.ItemCode,
			Description:      original.Description,
			ReleaseStatus:    original.ReleaseStatus,
			PackagingDetails: original.PackagingDetails,
			PackType:         original.PackType,
			LoadedQuantity:   dist[i],
			OrderedQuantity:  round2(original.OrderedQuantity * ratio),
			IsPalletized:     original.IsPalletized,
			PalletCount:      palletCounts[i],
			ClientRef:        uuid.NewString(),
			UnitOfMeasure:    Derived{Value: original.UnitOfMeasure.Value, Overridden: original.UnitOfMeasure.Overridden},
		}
		clone.TotalVolume.Override(round2(original.TotalVolume.Value * ratio))
		clone.NetWeightKg.Override(round2(original.NetWeightKg.Value * ratio))
		clone.GrossWeightKg.Override(round2(original.GrossWeightKg.Value * ratio))
		if clone.IsPalletized {
			clone.PalletWeightKg = round2(float64(clone.PalletCount) * PalletUnitWeightKg)
		}
		clone.PendingQuantity = math.Max(0, clone.OrderedQuantity-clone.LoadedQuantity)

		created, repoErr := s.store.CreateLoadingPlan(ctx, clone.Record())
		if repoErr != nil {
			notices = append(notices, errorf(li.RowRef(), "split part %d of %d failed: %s", i+1, len(dist), repoErr.Message))
			break
		}
		clone.ID = created.ID
		s.items = append(s.items, clone)
		result.LineItemIDs = append(result.LineItemIDs, clone.ID)

		containerItem := &models.ContainerItem{
			ShipmentID:  s.ShipmentID,
			LineItemID:  clone.ID,
			Quantity:    dist[i],
			IsSplitItem: true,
			ClientRef:   uuid.NewString(),
		}
		if _, repoErr := s.store.CreateContainerItem(ctx, containerItem); repoErr != nil {
			notices = append(notices, errorf(li.RowRef(), "split part %d of %d saved without container item: %s", i+1, len(dist), repoErr.Message))
			break
		}
		result.Created++
	}

	result.Partial = result.Created < len(dist)-1
	if result.Partial {
		notices = append(notices, warningf(li.RowRef(), "split partially completed: %d of %d additional records created", result.Created, len(dist)-1))
	} else {
		notices = append(notices, successf(li.RowRef(), "split into %d records", len(dist)))
	}

	// Authoritative re-sync, then totals.
	if repoErr := s.refreshContainerItemsUntilSynced(ctx); repoErr != nil {
		notices = append(notices, warningf(li.RowRef(), "container items did not fully re-sync: %s", repoErr.Message))
	}
	if repoErr := s.pushTotals(ctx); repoErr != nil {
		notices = append(notices, warningf("", "totals not updated: %s", repoErr.Message))
	}
	return result, notices, nil
}
