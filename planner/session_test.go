package planner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dclsuite/loadplan/repository"
	"github.com/dclsuite/loadplan/repository/models"
)

func TestAddLineItemPersistsAndComputes(t *testing.T) {
	s, store := newTestSession(t)

	li := &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", OrderedQuantity: 120, LoadedQuantity: 100}
	notices, err := s.AddLineItem(context.Background(), li)
	require.NoError(t, err)
	assert.True(t, hasLevel(notices, LevelSuccess))

	assert.NotEmpty(t, li.ID)
	assert.NotEmpty(t, li.ClientRef)
	assert.Equal(t, s.ShipmentID, li.ShipmentID)
	assert.Equal(t, 1900.0, li.GrossWeightKg.Value)
	assert.Equal(t, 1, store.callCount("CreateLoadingPlan"))
	assert.Equal(t, 1, store.callCount("UpdateShipmentTotals"))
}

func TestAddLineItemRejectsNegativeQuantity(t *testing.T) {
	s, store := newTestSession(t)

	notices, err := s.AddLineItem(context.Background(), &LineItem{ItemCode: "OIL-A", LoadedQuantity: -5})
	require.NoError(t, err)
	assert.True(t, hasLevel(notices, LevelError))
	assert.Equal(t, 0, store.callCount("CreateLoadingPlan"))
	assert.Empty(t, s.LineItems())
}

func TestEditLineItemFieldPersists(t *testing.T) {
	s, store := newTestSession(t)
	li := seedRow(t, s, &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", LoadedQuantity: 100})

	notices, err := s.EditLineItemField(context.Background(), li.ID, "description", "Coolant premix")
	require.NoError(t, err)
	assert.True(t, hasLevel(notices, LevelSuccess))
	assert.Equal(t, 2140.0, li.NetWeightKg.Value)

	store.mu.Lock()
	stored := *store.plans[li.ID]
	store.mu.Unlock()
	assert.Equal(t, "Coolant premix", stored.Description)
	assert.Equal(t, 2140.0, stored.NetWeight)
}

func TestEditLineItemFieldValidation(t *testing.T) {
	s, _ := newTestSession(t)
	li := seedRow(t, s, &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", LoadedQuantity: 100})

	cases := []struct {
		field string
		value string
	}{
		{"loadedQuantity", "abc"},
		{"loadedQuantity", "-3"},
		{"palletCount", "1.5"},
		{"releaseStatus", "7"},
		{"isPalletized", "maybe"},
		{"noSuchField", "1"},
	}
	for _, tc := range cases {
		t.Run(tc.field+"="+tc.value, func(t *testing.T) {
			notices, err := s.EditLineItemField(context.Background(), li.ID, tc.field, tc.value)
			require.NoError(t, err)
			assert.True(t, hasLevel(notices, LevelError))
		})
	}
}

func TestEditLineItemFieldUnknownRow(t *testing.T) {
	s, _ := newTestSession(t)
	notices, err := s.EditLineItemField(context.Background(), "missing", "description", "x")
	require.NoError(t, err)
	assert.True(t, hasLevel(notices, LevelError))
}

func TestDeleteLineItemCascades(t *testing.T) {
	s, store := newTestSession(t)
	li := seedRow(t, s, &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", LoadedQuantity: 100})

	notices, err := s.DeleteLineItem(context.Background(), li.ID)
	require.NoError(t, err)
	assert.True(t, hasLevel(notices, LevelSuccess))
	assert.Empty(t, s.LineItems())
	assert.Empty(t, s.ContainerItems())
	assert.Equal(t, 1, store.callCount("DeleteContainerItem"))
	assert.Equal(t, 1, store.callCount("DeleteLoadingPlan"))
}

func TestSaveAllIsAllSettled(t *testing.T) {
	s, store := newTestSession(t)
	for i := 0; i < 7; i++ {
		_, err := s.AddLineItem(context.Background(), &LineItem{
			ItemCode:         fmt.Sprintf("OIL-%02d", i),
			PackagingDetails: "4x5L",
			LoadedQuantity:   10,
		})
		require.NoError(t, err)
	}

	store.failNext("UpdateLoadingPlan")
	notices, err := s.SaveAll(context.Background())
	require.NoError(t, err)

	// One failure, six successes; every row was attempted.
	assert.True(t, hasLevel(notices, LevelError))
	assert.True(t, hasLevel(notices, LevelWarning))
	assert.Equal(t, 7, store.callCount("UpdateLoadingPlan"))
}

func TestReloadGuardsReentry(t *testing.T) {
	s, _ := newTestSession(t)
	s.reloading = true
	assert.Error(t, s.Reload(context.Background()))
	s.reloading = false
	assert.NoError(t, s.Reload(context.Background()))
}

func TestReloadRebuildsCachesWholesale(t *testing.T) {
	s, store := newTestSession(t)
	seedRow(t, s, &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", LoadedQuantity: 100})

	// A record created behind the session's back appears after a reload.
	_, repoErr := store.CreateLoadingPlan(context.Background(), &models.LoadingPlan{
		ShipmentID: s.ShipmentID,
		ItemCode:   "OIL-B",
	})
	require.Nil(t, repoErr)

	require.NoError(t, s.Reload(context.Background()))
	assert.Len(t, s.LineItems(), 2)
}

func TestAddContainersNumbersPerType(t *testing.T) {
	s, _ := newTestSession(t)

	notices, err := s.AddContainers(context.Background(), models.Container20FT, 2)
	require.NoError(t, err)
	assert.True(t, hasLevel(notices, LevelSuccess))

	_, err = s.AddContainers(context.Background(), models.Container40FT, 1)
	require.NoError(t, err)
	_, err = s.AddContainers(context.Background(), models.Container20FT, 1)
	require.NoError(t, err)

	var codes []string
	for _, c := range s.Containers() {
		codes = append(codes, c.Code)
	}
	assert.ElementsMatch(t, []string{
		"20FT-CONTAINER-01",
		"20FT-CONTAINER-02",
		"20FT-CONTAINER-03",
		"40FT-CONTAINER-01",
	}, codes)
}

func TestAddContainersAppliesDefaultCapacities(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.AddContainers(context.Background(), models.ContainerBulk, 1)
	require.NoError(t, err)

	containers := s.Containers()
	require.Len(t, containers, 1)
	assert.Equal(t, 30000.0, containers[0].MaxWeight)
	assert.Nil(t, containers[0].MaxVolume)
}

func TestAddContainersRejectsUnknownType(t *testing.T) {
	s, store := newTestSession(t)
	notices, err := s.AddContainers(context.Background(), "10FT", 1)
	require.NoError(t, err)
	assert.True(t, hasLevel(notices, LevelError))
	assert.Equal(t, 0, store.callCount("CreateContainer"))
}

func TestDeleteContainerUnassignsItems(t *testing.T) {
	s, store := newTestSession(t)
	containerID := seedContainer(t, store, s, "C1", 21770)
	seedAllocatable(t, store, s, "ITEM-A", 8000)

	_, err := s.AutoAssign(context.Background())
	require.NoError(t, err)

	notices, err := s.DeleteContainer(context.Background(), containerID)
	require.NoError(t, err)
	assert.True(t, hasLevel(notices, LevelSuccess))
	assert.Empty(t, s.Containers())
	assert.Equal(t, 1, store.callCount("UnassignContainerItem"))
	for _, ci := range s.ContainerItems() {
		assert.False(t, ci.Assigned())
	}
}

func TestTotalsAggregateRows(t *testing.T) {
	s, _ := newTestSession(t)
	seedRow(t, s, &LineItem{ItemCode: "OIL-A", PackagingDetails: "4x5L", OrderedQuantity: 120, LoadedQuantity: 100})
	seedRow(t, s, &LineItem{ItemCode: "OIL-B", PackagingDetails: "2x10L", OrderedQuantity: 60, LoadedQuantity: 50})

	totals := s.Totals()
	assert.Equal(t, 180.0, totals.OrderedQuantity)
	assert.Equal(t, 150.0, totals.LoadedQuantity)
	assert.Equal(t, 30.0, totals.PendingQuantity)
	assert.Equal(t, 3000.0, totals.Volume)
	assert.Equal(t, 2700.0, totals.NetWeight)
	assert.Equal(t, 2850.0, totals.GrossWeight)
}

func TestContainerItemSyncStopsOnCancelledContext(t *testing.T) {
	s, store := newTestSession(t)

	// A persisted loaded row with no container item keeps the sync loop
	// polling until its retry budget runs out.
	_, repoErr := store.CreateLoadingPlan(context.Background(), &models.LoadingPlan{
		ShipmentID:     s.ShipmentID,
		ItemCode:       "OIL-A",
		LoadedQuantity: 100,
	})
	require.Nil(t, repoErr)
	require.NoError(t, s.Reload(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	repoErr = s.refreshContainerItemsUntilSynced(ctx)
	require.NotNil(t, repoErr)
	assert.Equal(t, repository.ErrRequest, repoErr.Code)
	assert.Contains(t, repoErr.Detail, "context canceled")
	// Cancellation must pre-empt the inter-attempt delay.
	assert.Less(t, time.Since(start), readbackDelay)
}
