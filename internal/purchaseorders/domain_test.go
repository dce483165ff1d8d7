package purchaseorders

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusLifecycle(t *testing.T) {
	require.True(t, StatusPending.Mergeable())
	require.True(t, StatusApproved.Mergeable())
	require.False(t, StatusDraft.Mergeable())
	require.False(t, StatusDelivered.Mergeable())
	require.False(t, StatusCancelled.Mergeable())
	require.False(t, StatusMerged.Mergeable())

	require.True(t, StatusMerged.IsTerminal())
	require.True(t, StatusDelivered.IsTerminal())
	require.True(t, StatusCancelled.IsTerminal())
	require.False(t, StatusApproved.IsTerminal())

	require.False(t, Status("shipped").IsValid())
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusPending, true},
		{StatusPending, StatusApproved, true},
		{StatusApproved, StatusDelivered, true},
		{StatusDraft, StatusCancelled, true},
		{StatusPending, StatusCancelled, true},
		{StatusApproved, StatusCancelled, true},
		{StatusPending, StatusMerged, true},
		{StatusApproved, StatusMerged, true},

		{StatusDraft, StatusApproved, false},
		{StatusDraft, StatusDelivered, false},
		{StatusDraft, StatusMerged, false},
		{StatusPending, StatusDelivered, false},
		{StatusMerged, StatusPending, false},
		{StatusMerged, StatusCancelled, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tc := range cases {
		err := CanTransition(tc.from, tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
		}
	}
}

func TestRecomputedTotalRoundsToCents(t *testing.T) {
	po := PurchaseOrder{Lines: []LineItem{
		{ProductID: 1, Quantity: 3, UnitPrice: 0.1},
		{ProductID: 2, Quantity: 1, UnitPrice: 0.2},
	}}
	require.Equal(t, 0.5, po.RecomputedTotal())
}

func TestCheckInvariants(t *testing.T) {
	valid := PurchaseOrder{
		ID:          1,
		Status:      StatusPending,
		Lines:       []LineItem{{ProductID: 1, Quantity: 2, UnitPrice: 50}},
		TotalAmount: 100,
	}
	require.NoError(t, valid.CheckInvariants())

	drifted := valid
	drifted.TotalAmount = 120
	require.Error(t, drifted.CheckInvariants())

	danglingLink := valid
	danglingLink.MergedPOID = 9
	require.Error(t, danglingLink.CheckInvariants())

	cancelled := valid
	cancelled.Status = StatusCancelled
	require.Error(t, cancelled.CheckInvariants())
	cancelled.CancellationReason = "vendor out of stock"
	require.NoError(t, cancelled.CheckInvariants())

	bothChannels := valid
	bothChannels.BankOrderID = 1
	bothChannels.BIPOrderID = 2
	require.Error(t, bothChannels.CheckInvariants())
}
