package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	allowed := []struct {
		from, to DeliveryStatus
	}{
		{StatusPending, StatusAwaitingConfirmation},
		{StatusAwaitingConfirmation, StatusReady},
		{StatusAwaitingConfirmation, StatusCorrectionRequested},
		{StatusAwaitingConfirmation, StatusStale},
		{StatusCorrectionRequested, StatusReady},
		{StatusCorrectionRequested, StatusStale},
	}
	for _, tc := range allowed {
		require.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	rejected := []struct {
		from, to DeliveryStatus
	}{
		{StatusReady, StatusAwaitingConfirmation},
		{StatusReady, StatusPending},
		{StatusReady, StatusCorrectionRequested},
		{StatusReady, StatusStale},
		{StatusStale, StatusReady},
		{StatusPending, StatusReady},
		{StatusPending, StatusCorrectionRequested},
		{StatusCorrectionRequested, StatusAwaitingConfirmation},
		{DeliveryStatus("confirmed"), StatusReady},
	}
	for _, tc := range rejected {
		require.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestIsActive(t *testing.T) {
	require.True(t, StatusAwaitingConfirmation.IsActive())
	require.True(t, StatusCorrectionRequested.IsActive())
	require.False(t, StatusPending.IsActive())
	require.False(t, StatusReady.IsActive())
	require.False(t, StatusStale.IsActive())
}

func TestValidStatus(t *testing.T) {
	for _, s := range []DeliveryStatus{StatusPending, StatusAwaitingConfirmation, StatusCorrectionRequested, StatusReady, StatusStale} {
		require.True(t, ValidStatus(s))
	}
	require.False(t, ValidStatus(DeliveryStatus("confirmed")))
	require.False(t, ValidStatus(DeliveryStatus("")))
	require.False(t, ValidStatus(DeliveryStatus("READY")))
}
