package relay

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizza-tracker/internal/domain"
)

func TestTrackingRoomsArePublic(t *testing.T) {
	a := NewTokenAuthorizer([]byte("secret"), time.Hour)
	assert.NoError(t, a.Authorize(TrackRoom("TRKAB12345"), ""))
}

func TestPrivateRoomsRequireToken(t *testing.T) {
	a := NewTokenAuthorizer([]byte("secret"), time.Hour)
	orderRoom := OrderRoom(uuid.New())
	riderRoom := RiderRoom(uuid.New())

	assert.ErrorIs(t, a.Authorize(orderRoom, ""), domain.ErrUnauthorized)
	assert.ErrorIs(t, a.Authorize(riderRoom, ""), domain.ErrUnauthorized)
	assert.ErrorIs(t, a.Authorize(orderRoom, "not-a-jwt"), domain.ErrUnauthorized)
}

func TestTokenAdmitsOnlyItsRoom(t *testing.T) {
	a := NewTokenAuthorizer([]byte("secret"), time.Hour)
	room := RiderRoom(uuid.New())
	other := RiderRoom(uuid.New())

	token, err := a.Issue(room)
	require.NoError(t, err)
	assert.NoError(t, a.Authorize(room, token))
	// A rider token must not open another rider's location stream.
	assert.ErrorIs(t, a.Authorize(other, token), domain.ErrUnauthorized)
}

func TestTokenSignedWithOtherSecretRejected(t *testing.T) {
	issuer := NewTokenAuthorizer([]byte("other-secret"), time.Hour)
	a := NewTokenAuthorizer([]byte("secret"), time.Hour)
	room := OrderRoom(uuid.New())

	token, err := issuer.Issue(room)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Authorize(room, token), domain.ErrUnauthorized)
}

func TestExpiredTokenRejected(t *testing.T) {
	a := NewTokenAuthorizer([]byte("secret"), time.Minute)
	room := OrderRoom(uuid.New())
	token, err := a.Issue(room)
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.ErrorIs(t, a.Authorize(room, token), domain.ErrUnauthorized)
}

func TestUnknownRoomScheme(t *testing.T) {
	a := NewTokenAuthorizer([]byte("secret"), time.Hour)
	assert.Error(t, a.Authorize("lobby", ""))
}
