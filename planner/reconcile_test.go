package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dclsuite/loadplan/repository/models"
)

func TestReconcileCreatesMissingItems(t *testing.T) {
	s, store := newTestSession(t)
	_, err := s.AddLineItem(context.Background(), &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", LoadedQuantity: 100})
	require.NoError(t, err)
	_, err = s.AddLineItem(context.Background(), &LineItem{ItemCode: "OIL-B", PackagingDetails: "4x5L", LoadedQuantity: 50})
	require.NoError(t, err)
	// Zero loaded quantity never gets an allocation record.
	_, err = s.AddLineItem(context.Background(), &LineItem{ItemCode: "OIL-C", PackagingDetails: "4x5L", LoadedQuantity: 0})
	require.NoError(t, err)

	report, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Empty(t, report.Orphaned)

	byLine := s.containerItemsByLine()
	for _, li := range s.LineItems() {
		if li.LoadedQuantity > 0 {
			require.Len(t, byLine[li.ID], 1)
			assert.Equal(t, li.LoadedQuantity, byLine[li.ID][0].Quantity)
			assert.False(t, byLine[li.ID][0].Assigned())
		} else {
			assert.Empty(t, byLine[li.ID])
		}
	}
	_ = store
}

func TestReconcileIsConvergent(t *testing.T) {
	s, store := newTestSession(t)
	_, err := s.AddLineItem(context.Background(), &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", LoadedQuantity: 100})
	require.NoError(t, err)

	_, err = s.Reconcile(context.Background())
	require.NoError(t, err)
	creates := store.callCount("CreateContainerItem")

	report, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, creates, store.callCount("CreateContainerItem"))
	assert.True(t, hasLevel(report.Notices, LevelInfo))
}

func TestReconcileUpdatesDriftedQuantity(t *testing.T) {
	s, _ := newTestSession(t)
	li := seedRow(t, s, &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", LoadedQuantity: 100})

	// A later quantity edit leaves the allocation record behind.
	_, err := s.EditLineItemField(context.Background(), li.ID, "loadedQuantity", "80")
	require.NoError(t, err)

	report, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Created)

	group := s.containerItemsByLine()[li.ID]
	require.Len(t, group, 1)
	assert.Equal(t, 80.0, group[0].Quantity)
}

func TestReconcileNeverAdjustsSplitGroups(t *testing.T) {
	s, store := newTestSession(t)
	li := seedRow(t, s, &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", LoadedQuantity: 100})
	_, _, err := s.SplitLineItem(context.Background(), li.ID, []float64{40, 60})
	require.NoError(t, err)

	// Drift the original row's quantity; its allocation is a split item,
	// so reconciliation must flag it instead of touching it.
	_, err = s.EditLineItemField(context.Background(), li.ID, "loadedQuantity", "55")
	require.NoError(t, err)
	updatesBefore := store.callCount("UpdateContainerItemQuantity")

	report, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.SkippedSplit, li.ID)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, updatesBefore, store.callCount("UpdateContainerItemQuantity"))
	assert.True(t, hasLevel(report.Notices, LevelWarning))

	group := s.containerItemsByLine()[li.ID]
	require.Len(t, group, 1)
	assert.Equal(t, 40.0, group[0].Quantity)
}

func TestReconcileFlagsOrphansWithoutDeleting(t *testing.T) {
	s, store := newTestSession(t)
	seedRow(t, s, &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", LoadedQuantity: 100})

	// An allocation record pointing at a row this session does not know.
	orphan, repoErr := store.CreateContainerItem(context.Background(), &models.ContainerItem{
		ShipmentID: s.ShipmentID,
		LineItemID: "plan-gone",
		Quantity:   25,
	})
	require.Nil(t, repoErr)
	require.NoError(t, s.Reload(context.Background()))

	report, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.Orphaned, orphan.ID)
	assert.True(t, hasLevel(report.Notices, LevelWarning))
	assert.Equal(t, 0, store.callCount("DeleteContainerItem"))
}

func TestReconcileFlagsUnsavedRows(t *testing.T) {
	s, _ := newTestSession(t)
	// A row that was never persisted cannot be allocated.
	s.items = append(s.items, &LineItem{ItemCode: "OIL-X", LoadedQuantity: 10})

	report, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.True(t, hasLevel(report.Notices, LevelError))
}

func TestReconcilePushesTotals(t *testing.T) {
	s, store := newTestSession(t)
	seedRow(t, s, &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", OrderedQuantity: 120, LoadedQuantity: 100})

	store.mu.Lock()
	totals := store.totals[s.ShipmentID]
	store.mu.Unlock()
	assert.Equal(t, 100.0, totals.LoadedQuantity)
	assert.Equal(t, 20.0, totals.PendingQuantity)
	assert.Equal(t, 2000.0, totals.Volume)
	assert.Equal(t, 1800.0, totals.NetWeight)
	assert.Equal(t, 1900.0, totals.GrossWeight)
}
