package relay

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pizza-tracker/internal/domain"
)

// JoinClaims name the single room a capability token admits.
type JoinClaims struct {
	Room string `json:"room"`
	jwt.RegisteredClaims
}

// TokenAuthorizer guards order and rider rooms. Tracking rooms stay
// public: the tracking code itself is the public identifier, so anyone
// holding one may subscribe. Order and rider rooms carry the live GPS
// stream and are only admitted with a signed capability token naming
// that exact room.
type TokenAuthorizer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenAuthorizer(secret []byte, ttl time.Duration) *TokenAuthorizer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenAuthorizer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue returns a signed token admitting joins to room.
func (a *TokenAuthorizer) Issue(room string) (string, error) {
	now := a.now()
	claims := JoinClaims{
		Room: room,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authorize admits or refuses a join. Public rooms need no token.
func (a *TokenAuthorizer) Authorize(room, token string) error {
	if !validRoomName(room) {
		return domain.ErrNotFound
	}
	if PublicRoom(room) {
		return nil
	}
	if token == "" {
		return domain.ErrUnauthorized
	}
	var claims JoinClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return domain.ErrUnauthorized
	}
	if claims.Room != room {
		return domain.ErrUnauthorized
	}
	return nil
}

// Authorizer is what the transport consults before admitting a join.
type Authorizer interface {
	Authorize(room, token string) error
}
