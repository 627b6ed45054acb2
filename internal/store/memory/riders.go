package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pizza-tracker/internal/domain"
)

// RiderStore holds riders and their assignment history. Assignment rows
// are append-only; only the sub-state moves, forward.
type RiderStore struct {
	mu          sync.RWMutex
	riders      map[uuid.UUID]*domain.Rider
	assignments map[uuid.UUID]*domain.RiderAssignment
	now         func() time.Time
}

func NewRiderStore() *RiderStore {
	return &RiderStore{
		riders:      make(map[uuid.UUID]*domain.Rider),
		assignments: make(map[uuid.UUID]*domain.RiderAssignment),
		now:         time.Now,
	}
}

func (s *RiderStore) Create(ctx context.Context, name, phone string) (domain.Rider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	r := &domain.Rider{
		ID:        uuid.New(),
		Name:      name,
		Phone:     phone,
		Status:    domain.RiderOffline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.riders[r.ID] = r
	return *r, nil
}

func (s *RiderStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Rider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.riders[id]
	if !ok {
		return domain.Rider{}, domain.ErrNotFound
	}
	return *r, nil
}

func (s *RiderStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.RiderStatus) (domain.Rider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.riders[id]
	if !ok {
		return domain.Rider{}, domain.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = s.now().UTC()
	return *r, nil
}

func (s *RiderStore) UpdateLocation(ctx context.Context, id uuid.UUID, loc domain.Location) (domain.Rider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.riders[id]
	if !ok {
		return domain.Rider{}, domain.ErrNotFound
	}
	// Last write wins; the stream is a latest-position feed, not a log.
	l := loc
	r.Location = &l
	r.UpdatedAt = s.now().UTC()
	return *r, nil
}

func (s *RiderStore) Assign(ctx context.Context, riderID, orderID uuid.UUID) (domain.RiderAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.riders[riderID]
	if !ok {
		return domain.RiderAssignment{}, domain.ErrNotFound
	}
	if r.Status != domain.RiderOnline {
		return domain.RiderAssignment{}, domain.ErrRiderNotAvailable
	}
	now := s.now().UTC()
	a := &domain.RiderAssignment{
		ID:         uuid.New(),
		OrderID:    orderID,
		RiderID:    riderID,
		State:      domain.AssignmentAssigned,
		AssignedAt: now,
		UpdatedAt:  now,
	}
	s.assignments[a.ID] = a
	oid := orderID
	r.Status = domain.RiderBusy
	r.AssignedOrderID = &oid
	r.UpdatedAt = now
	return *a, nil
}

func (s *RiderStore) Unassign(ctx context.Context, riderID uuid.UUID) (domain.Rider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.riders[riderID]
	if !ok {
		return domain.Rider{}, domain.ErrNotFound
	}
	r.AssignedOrderID = nil
	if r.Status == domain.RiderBusy {
		r.Status = domain.RiderOnline
	}
	r.UpdatedAt = s.now().UTC()
	return *r, nil
}

func (s *RiderStore) AdvanceAssignment(ctx context.Context, assignmentID uuid.UUID, next domain.AssignmentState) (domain.RiderAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok {
		return domain.RiderAssignment{}, domain.ErrNotFound
	}
	if !a.State.CanAdvance(next) {
		return domain.RiderAssignment{}, domain.ErrInvalidTransition
	}
	a.State = next
	a.UpdatedAt = s.now().UTC()
	return *a, nil
}

func (s *RiderStore) ListAssignments(ctx context.Context, riderID uuid.UUID) ([]domain.RiderAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RiderAssignment
	for _, a := range s.assignments {
		if a.RiderID == riderID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (s *RiderStore) List(ctx context.Context) ([]domain.Rider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Rider, 0, len(s.riders))
	for _, r := range s.riders {
		out = append(out, *r)
	}
	return out, nil
}
