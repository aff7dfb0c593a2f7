package planner

import (
	"context"

	"github.com/google/uuid"

	"github.com/dclsuite/loadplan/repository/models"
)

// ReconcileReport records what the reconciliation pass did and what it
// refused to touch.
type ReconcileReport struct {
	Created      int      `json:"created"`
	Updated      int      `json:"updated"`
	SkippedSplit []string `json:"skippedSplit,omitempty"`
	Orphaned     []string `json:"orphaned,omitempty"`
	Notices      []Notice `json:"notices"`
}

// Reconcile converges the container-item records onto the current rows
// without discarding existing assignments:
//
//   - a row with loaded quantity and no container item gets one, unassigned;
//   - a non-split group whose single item drifted gets its quantity updated;
//   - split groups are never auto-adjusted, only flagged;
//   - orphaned container items are flagged, never deleted here.
//
// Afterwards the container-item set is refetched with bounded retries and
// the shipment totals are recomputed.
func (s *Session) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	byLine := s.containerItemsByLine()

	for _, li := range s.items {
		if li.ID == "" {
			report.Notices = append(report.Notices, errorf(li.RowRef(), "row has no persisted id; save it before allocating"))
			continue
		}
		group := byLine[li.ID]

		switch {
		case len(group) == 0:
			if li.LoadedQuantity <= 0 {
				continue
			}
			item := &models.ContainerItem{
				ShipmentID: s.ShipmentID,
				LineItemID: li.ID,
				Quantity:   li.LoadedQuantity,
				ClientRef:  uuid.NewString(),
			}
			if _, repoErr := s.store.CreateContainerItem(ctx, item); repoErr != nil {
				report.Notices = append(report.Notices, errorf(li.RowRef(), "failed to create container item: %s", repoErr.Message))
				continue
			}
			report.Created++

		case len(group) == 1:
			ci := group[0]
			if ci.Quantity == li.LoadedQuantity {
				continue
			}
			if ci.IsSplitItem {
				// A lone split remnant; treat like a split group.
				report.SkippedSplit = append(report.SkippedSplit, li.ID)
				report.Notices = append(report.Notices, warningf(li.RowRef(), "split row quantity drifted (%v loaded vs %v allocated); rework the split manually", li.LoadedQuantity, ci.Quantity))
				continue
			}
			if repoErr := s.store.UpdateContainerItemQuantity(ctx, ci.ID, li.LoadedQuantity); repoErr != nil {
				report.Notices = append(report.Notices, errorf(li.RowRef(), "failed to update container item quantity: %s", repoErr.Message))
				continue
			}
			report.Updated++

		default:
			// Split group: quantities are managed by the split engine only.
			total := 0.0
			for _, ci := range group {
				total += ci.Quantity
			}
			if total != li.LoadedQuantity {
				report.SkippedSplit = append(report.SkippedSplit, li.ID)
				report.Notices = append(report.Notices, warningf(li.RowRef(), "split quantities sum to %v but loaded quantity is %v; rework the split manually", total, li.LoadedQuantity))
			}
		}
	}

	// Orphans: container items whose owning row is gone. Flag only;
	// deletion requires an explicit user action.
	known := make(map[string]bool, len(s.items))
	for _, li := range s.items {
		known[li.ID] = true
	}
	for i := range s.containerItems {
		ci := &s.containerItems[i]
		if !known[ci.LineItemID] {
			report.Orphaned = append(report.Orphaned, ci.ID)
			report.Notices = append(report.Notices, warningf(ci.ID, "container item references a deleted row (qty %v); remove it manually if no longer needed", ci.Quantity))
		}
	}

	if repoErr := s.refreshContainerItemsUntilSynced(ctx); repoErr != nil {
		report.Notices = append(report.Notices, errorf("", "allocation records did not converge: %s", repoErr.Message))
		return report, repoErr
	}
	if repoErr := s.pushTotals(ctx); repoErr != nil {
		report.Notices = append(report.Notices, warningf("", "totals not updated: %s", repoErr.Message))
	}

	if report.Created > 0 || report.Updated > 0 {
		report.Notices = append(report.Notices, successf("", "allocation synced: %d created, %d updated", report.Created, report.Updated))
	} else {
		report.Notices = append(report.Notices, infof("", "allocation already in sync"))
	}
	return report, nil
}
