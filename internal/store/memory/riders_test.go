package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizza-tracker/internal/domain"
)

func TestRiderAssignRequiresOnline(t *testing.T) {
	ctx := context.Background()
	s := NewRiderStore()
	r, err := s.Create(ctx, "Marco", "+111")
	require.NoError(t, err)
	assert.Equal(t, domain.RiderOffline, r.Status)

	_, err = s.Assign(ctx, r.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrRiderNotAvailable)
	// The failed attempt must not leave any partial state.
	got, err := s.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RiderOffline, got.Status)
	assert.Nil(t, got.AssignedOrderID)
}

func TestRiderAssignLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewRiderStore()
	r, err := s.Create(ctx, "Marco", "+111")
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, r.ID, domain.RiderOnline)
	require.NoError(t, err)

	orderID := uuid.New()
	a, err := s.Assign(ctx, r.ID, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAssigned, a.State)

	busy, err := s.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RiderBusy, busy.Status)
	require.NotNil(t, busy.AssignedOrderID)
	assert.Equal(t, orderID, *busy.AssignedOrderID)

	// A busy rider cannot take a second order.
	_, err = s.Assign(ctx, r.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrRiderNotAvailable)

	freed, err := s.Unassign(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RiderOnline, freed.Status)
	assert.Nil(t, freed.AssignedOrderID)

	// The assignment record is retained for history.
	history, err := s.ListAssignments(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, a.ID, history[0].ID)
}

func TestRiderAdvanceAssignment(t *testing.T) {
	ctx := context.Background()
	s := NewRiderStore()
	r, err := s.Create(ctx, "Marco", "+111")
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, r.ID, domain.RiderOnline)
	require.NoError(t, err)
	a, err := s.Assign(ctx, r.ID, uuid.New())
	require.NoError(t, err)

	// Skipping a sub-state is rejected.
	_, err = s.AdvanceAssignment(ctx, a.ID, domain.AssignmentPickedUp)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	for _, next := range []domain.AssignmentState{
		domain.AssignmentAccepted, domain.AssignmentPickedUp, domain.AssignmentDone,
	} {
		a, err = s.AdvanceAssignment(ctx, a.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, a.State)
	}
}

func TestRiderUpdateLocationLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewRiderStore()
	r, err := s.Create(ctx, "Marco", "+111")
	require.NoError(t, err)

	first := domain.Location{Lat: 40.71, Lng: -74.00, At: time.Now().UTC()}
	_, err = s.UpdateLocation(ctx, r.ID, first)
	require.NoError(t, err)

	second := domain.Location{Lat: 40.72, Lng: -74.01, At: time.Now().UTC()}
	got, err := s.UpdateLocation(ctx, r.ID, second)
	require.NoError(t, err)
	require.NotNil(t, got.Location)
	assert.Equal(t, second.Lat, got.Location.Lat)
	assert.Equal(t, second.Lng, got.Location.Lng)

	_, err = s.UpdateLocation(ctx, uuid.New(), first)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
