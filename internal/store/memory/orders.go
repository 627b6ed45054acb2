package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pizza-tracker/internal/domain"
)

// OrderStore keeps orders in two maps kept consistent on every mutation:
// primary by id, secondary by tracking code. Every operation takes the
// store lock because handlers and socket readers run concurrently.
type OrderStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*domain.Order
	byCode map[string]uuid.UUID
	now    func() time.Time
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		byID:   make(map[uuid.UUID]*domain.Order),
		byCode: make(map[string]uuid.UUID),
		now:    time.Now,
	}
}

func (s *OrderStore) Create(ctx context.Context, customer domain.Customer, items []domain.LineItem, payment domain.Payment) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := domain.NewTrackingCode()
	for {
		if _, taken := s.byCode[code]; !taken {
			break
		}
		code = domain.NewTrackingCode()
	}

	now := s.now().UTC()
	o := &domain.Order{
		ID:           uuid.New(),
		TrackingCode: code,
		Status:       domain.StatusPendingPayment,
		Customer:     customer,
		Items:        items,
		Total:        domain.ComputeTotal(items),
		Payment:      payment,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[o.ID] = o
	s.byCode[o.TrackingCode] = o.ID
	return *o, nil
}

func (s *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return *o, nil
}

func (s *OrderStore) GetByTrackingCode(ctx context.Context, code string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return *s.byID[id], nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, notes string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if !o.Status.CanTransition(status) {
		return domain.Order{}, domain.ErrInvalidTransition
	}
	if o.Status == status {
		// Idempotent re-apply: no state change, caller still re-notifies.
		return *o, nil
	}
	o.Status = status
	if notes != "" {
		o.StatusNotes = notes
	}
	o.UpdatedAt = s.now().UTC()
	return *o, nil
}

func (s *OrderStore) AssignRider(ctx context.Context, id, riderID uuid.UUID) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if o.AssignedRiderID != nil {
		// One rider per order; the link must be cleared before another
		// rider can take it.
		return domain.Order{}, domain.ErrConflict
	}
	rid := riderID
	o.AssignedRiderID = &rid
	o.UpdatedAt = s.now().UTC()
	return *o, nil
}

func (s *OrderStore) ClearRider(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	o.AssignedRiderID = nil
	o.UpdatedAt = s.now().UTC()
	return *o, nil
}

func (s *OrderStore) UpdatePayment(ctx context.Context, id uuid.UUID, patch domain.PaymentPatch) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if patch.Provider != nil {
		o.Payment.Provider = *patch.Provider
	}
	if patch.ExternalRef != nil {
		o.Payment.ExternalRef = *patch.ExternalRef
	}
	if patch.Amount != nil {
		o.Payment.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		o.Payment.Currency = *patch.Currency
	}
	if patch.Status != nil {
		o.Payment.Status = *patch.Status
	}
	o.UpdatedAt = s.now().UTC()
	return *o, nil
}

func (s *OrderStore) List(ctx context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.byID))
	for _, o := range s.byID {
		out = append(out, *o)
	}
	return out, nil
}
