package planner

import (
	"context"

	"github.com/dclsuite/loadplan/repository/models"
)

// itemGrossWeightKg is the proportional gross-weight contribution of one
// container item: the owning row's gross weight scaled by the item's share
// of the loaded quantity. Rows with zero loaded quantity (and orphaned
// items) fall back to the raw quantity.
func (s *Session) itemGrossWeightKg(ci *models.ContainerItem) float64 {
	li := s.lineItemByID(ci.LineItemID)
	if li == nil || li.LoadedQuantity == 0 {
		return ci.Quantity
	}
	return round2(li.GrossWeightKg.Value / li.LoadedQuantity * ci.Quantity)
}

// itemVolumeM3 is the proportional volume contribution, used for the
// informational volume utilization figures.
func (s *Session) itemVolumeM3(ci *models.ContainerItem) float64 {
	li := s.lineItemByID(ci.LineItemID)
	if li == nil || li.LoadedQuantity == 0 {
		return 0
	}
	return round2(li.TotalVolume.Value / li.LoadedQuantity * ci.Quantity / 1000)
}

// AutoAssign places every unassigned container item into the container
// with the largest remaining weight capacity at that moment (worst-fit:
// spreads load instead of packing tight, leaving physical and regulatory
// headroom). Ties go to the earlier container. Capacity is never a hard
// ceiling; overcapacity shows up in the summary as a warning.
func (s *Session) AutoAssign(ctx context.Context) ([]Notice, error) {
	if len(s.containers) == 0 {
		return []Notice{warningf("", "no containers exist; add containers before assigning")}, nil
	}

	var unassigned []*models.ContainerItem
	usedKg := make(map[string]float64, len(s.containers))
	for i := range s.containerItems {
		ci := &s.containerItems[i]
		if ci.Assigned() {
			// Seed from prior assignments so a re-run never double-counts.
			usedKg[*ci.ContainerID] += s.itemGrossWeightKg(ci)
		} else {
			unassigned = append(unassigned, ci)
		}
	}
	if len(unassigned) == 0 {
		return []Notice{infof("", "nothing to assign; all container items are already placed")}, nil
	}

	var notices []Notice
	assigned := 0
	for _, ci := range unassigned {
		best := -1
		bestRemaining := 0.0
		for idx, c := range s.containers {
			remaining := c.MaxWeight - usedKg[c.ID]
			if best == -1 || remaining > bestRemaining {
				best = idx
				bestRemaining = remaining
			}
		}
		target := s.containers[best]

		if repoErr := s.store.AssignContainerItem(ctx, ci.ID, target.ID); repoErr != nil {
			notices = append(notices, errorf(ci.ID, "failed to assign item: %s", repoErr.Message))
			notices = append(notices, warningf("", "%d of %d items assigned before the failure", assigned, len(unassigned)))
			return notices, repoErr
		}
		id := target.ID
		ci.ContainerID = &id
		usedKg[target.ID] += s.itemGrossWeightKg(ci)
		assigned++
	}

	notices = append(notices, successf("", "%d item(s) assigned across %d container(s)", assigned, len(s.containers)))
	notices = append(notices, s.capacityWarnings()...)
	return notices, nil
}

// ResetAssignments clears every assignment, five unassign calls in flight
// at a time, all-settled.
func (s *Session) ResetAssignments(ctx context.Context) ([]Notice, error) {
	var assigned []*models.ContainerItem
	for i := range s.containerItems {
		if s.containerItems[i].Assigned() {
			assigned = append(assigned, &s.containerItems[i])
		}
	}
	if len(assigned) == 0 {
		return []Notice{infof("", "no assignments to reset")}, nil
	}

	errs := runBatches(assigned, persistBatchSize, func(ci *models.ContainerItem) error {
		if repoErr := s.store.UnassignContainerItem(ctx, ci.ID); repoErr != nil {
			return repoErr
		}
		ci.ContainerID = nil
		return nil
	})

	var notices []Notice
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			notices = append(notices, errorf(assigned[i].ID, "failed to unassign: %s", err.Error()))
		}
	}
	if failed == 0 {
		notices = append(notices, successf("", "%d assignment(s) cleared", len(assigned)))
	} else {
		notices = append(notices, warningf("", "%d of %d assignments cleared", len(assigned)-failed, len(assigned)))
	}
	return notices, nil
}

// ContainerSummary is the per-container utilization view.
type ContainerSummary struct {
	Container     models.Container `json:"container"`
	ItemCount     int              `json:"itemCount"`
	UsedWeightKg  float64          `json:"usedWeightKg"`
	UsedVolumeM3  float64          `json:"usedVolumeM3"`
	WeightUtilPct float64          `json:"weightUtilPct"`
	VolumeUtilPct float64          `json:"volumeUtilPct"`
}

// Summary computes utilization for every container from the current
// caches. Weight and volume figures are derived, never read from the
// store.
func (s *Session) Summary() []ContainerSummary {
	summaries := make([]ContainerSummary, 0, len(s.containers))
	for _, c := range s.containers {
		sum := ContainerSummary{Container: c}
		for i := range s.containerItems {
			ci := &s.containerItems[i]
			if !ci.Assigned() || *ci.ContainerID != c.ID {
				continue
			}
			sum.ItemCount++
			sum.UsedWeightKg += s.itemGrossWeightKg(ci)
			sum.UsedVolumeM3 += s.itemVolumeM3(ci)
		}
		sum.UsedWeightKg = round2(sum.UsedWeightKg)
		sum.UsedVolumeM3 = round2(sum.UsedVolumeM3)
		if c.MaxWeight > 0 {
			sum.WeightUtilPct = round2(sum.UsedWeightKg / c.MaxWeight * 100)
		}
		if c.MaxVolume != nil && *c.MaxVolume > 0 {
			sum.VolumeUtilPct = round2(sum.UsedVolumeM3 / *c.MaxVolume * 100)
		}
		summaries = append(summaries, sum)
	}
	return summaries
}

// capacityWarnings flags containers loaded past 100% of weight or volume.
// Overcapacity never blocks an assignment.
func (s *Session) capacityWarnings() []Notice {
	var notices []Notice
	for _, sum := range s.Summary() {
		if sum.WeightUtilPct > 100 {
			notices = append(notices, warningf(sum.Container.Code, "weight utilization %.1f%% exceeds capacity (%.0f of %.0f kg)", sum.WeightUtilPct, sum.UsedWeightKg, sum.Container.MaxWeight))
		}
		if sum.VolumeUtilPct > 100 {
			notices = append(notices, warningf(sum.Container.Code, "volume utilization %.1f%% exceeds capacity", sum.VolumeUtilPct))
		}
	}
	return notices
}
