package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pizza-tracker/internal/domain"
	"pizza-tracker/internal/relay"
)

func nowUTC() time.Time { return time.Now().UTC() }

func (s *Service) CreateRider(ctx context.Context, name, phone string) (domain.Rider, error) {
	rider, err := s.riders.Create(ctx, name, phone)
	if err != nil {
		return domain.Rider{}, err
	}
	s.lg.Info("rider_created", map[string]any{"rider_id": rider.ID.String()})
	return rider, nil
}

func (s *Service) GetRider(ctx context.Context, id uuid.UUID) (domain.Rider, error) {
	return s.riders.GetByID(ctx, id)
}

func (s *Service) ListRiders(ctx context.Context) ([]domain.Rider, error) {
	return s.riders.List(ctx)
}

func (s *Service) SetRiderStatus(ctx context.Context, id uuid.UUID, status domain.RiderStatus) (domain.Rider, error) {
	if status != domain.RiderOnline && status != domain.RiderOffline {
		// busy is derived from assignments, never set directly.
		return domain.Rider{}, domain.ErrInvalidTransition
	}
	return s.riders.SetStatus(ctx, id, status)
}

func (s *Service) AdvanceAssignment(ctx context.Context, assignmentID uuid.UUID, next domain.AssignmentState) (domain.RiderAssignment, error) {
	return s.riders.AdvanceAssignment(ctx, assignmentID, next)
}

func (s *Service) ListAssignments(ctx context.Context, riderID uuid.UUID) ([]domain.RiderAssignment, error) {
	return s.riders.ListAssignments(ctx, riderID)
}

// PublishLocation implements relay.LocationSink: store the fix
// (last write wins), then relay it to the order's rooms only.
func (s *Service) PublishLocation(ctx context.Context, p relay.LocationPayload) error {
	loc := domain.Location{Lat: p.Lat, Lng: p.Lng, Heading: p.Heading, Speed: p.Speed, At: nowUTC()}
	if _, err := s.riders.UpdateLocation(ctx, p.RiderID, loc); err != nil {
		return err
	}
	order, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return err
	}
	s.hub.PublishLocation(domain.LocationUpdateEvent{
		RiderID:  p.RiderID,
		OrderID:  p.OrderID,
		Location: loc,
	}, order.TrackingCode)
	return nil
}
