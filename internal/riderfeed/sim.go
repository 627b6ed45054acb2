package riderfeed

import (
	"context"
	"math"
	"math/rand"
	"sync"
)

// SimSource is a random-walk geolocation source for the rider-sim mode
// and tests: it drifts from a starting point at roughly scooter speed.
type SimSource struct {
	mu      sync.Mutex
	lat     float64
	lng     float64
	heading float64
	rng     *rand.Rand
}

func NewSimSource(lat, lng float64, seed int64) *SimSource {
	return &SimSource{
		lat: lat, lng: lng,
		heading: 0,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (s *SimSource) Read(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heading += (s.rng.Float64() - 0.5) * 30
	if s.heading < 0 {
		s.heading += 360
	}
	if s.heading >= 360 {
		s.heading -= 360
	}
	// ~25 km/h over a 4 s tick, in degrees.
	const step = 0.00025
	rad := s.heading * math.Pi / 180
	s.lat += step * math.Cos(rad)
	s.lng += step * math.Sin(rad)
	heading := s.heading
	speed := 25.0 + (s.rng.Float64()-0.5)*6
	return Fix{Lat: s.lat, Lng: s.lng, Heading: &heading, Speed: &speed}, nil
}
