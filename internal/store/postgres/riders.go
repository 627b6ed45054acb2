package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pizza-tracker/internal/domain"
)

type RiderStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewRiderStore(pool *pgxpool.Pool) *RiderStore {
	return &RiderStore{pool: pool, now: time.Now}
}

const riderColumns = `id, name, phone, status, location, assigned_order_id, created_at, updated_at`

func scanRider(row pgx.Row) (domain.Rider, error) {
	var (
		r      domain.Rider
		status string
		loc    []byte
	)
	err := row.Scan(&r.ID, &r.Name, &r.Phone, &status, &loc, &r.AssignedOrderID, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Rider{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Rider{}, err
	}
	r.Status = domain.RiderStatus(status)
	if len(loc) > 0 {
		var l domain.Location
		if err := json.Unmarshal(loc, &l); err != nil {
			return domain.Rider{}, err
		}
		r.Location = &l
	}
	return r, nil
}

func (s *RiderStore) Create(ctx context.Context, name, phone string) (domain.Rider, error) {
	now := s.now().UTC()
	r := domain.Rider{
		ID:        uuid.New(),
		Name:      name,
		Phone:     phone,
		Status:    domain.RiderOffline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO riders (id, name, phone, status, location, assigned_order_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,NULL,NULL,$5,$6)
`, r.ID, r.Name, r.Phone, string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return domain.Rider{}, err
	}
	return r, nil
}

func (s *RiderStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Rider, error) {
	return scanRider(s.pool.QueryRow(ctx, `SELECT `+riderColumns+` FROM riders WHERE id=$1`, id))
}

func (s *RiderStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.RiderStatus) (domain.Rider, error) {
	now := s.now().UTC()
	tag, err := s.pool.Exec(ctx, `UPDATE riders SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), now)
	if err != nil {
		return domain.Rider{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Rider{}, domain.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *RiderStore) UpdateLocation(ctx context.Context, id uuid.UUID, loc domain.Location) (domain.Rider, error) {
	lb, _ := json.Marshal(loc)
	now := s.now().UTC()
	tag, err := s.pool.Exec(ctx, `UPDATE riders SET location=$2, updated_at=$3 WHERE id=$1`, id, lb, now)
	if err != nil {
		return domain.Rider{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Rider{}, domain.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

// Assign locks the rider row so two concurrent assignment requests for
// the same rider cannot both pass the online check.
func (s *RiderStore) Assign(ctx context.Context, riderID, orderID uuid.UUID) (domain.RiderAssignment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.RiderAssignment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r, err := scanRider(tx.QueryRow(ctx, `SELECT `+riderColumns+` FROM riders WHERE id=$1 FOR UPDATE`, riderID))
	if err != nil {
		return domain.RiderAssignment{}, err
	}
	if r.Status != domain.RiderOnline {
		return domain.RiderAssignment{}, domain.ErrRiderNotAvailable
	}
	now := s.now().UTC()
	a := domain.RiderAssignment{
		ID:         uuid.New(),
		OrderID:    orderID,
		RiderID:    riderID,
		State:      domain.AssignmentAssigned,
		AssignedAt: now,
		UpdatedAt:  now,
	}
	_, err = tx.Exec(ctx, `
INSERT INTO rider_assignments (id, order_id, rider_id, state, assigned_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, a.ID, a.OrderID, a.RiderID, string(a.State), a.AssignedAt, a.UpdatedAt)
	if err != nil {
		return domain.RiderAssignment{}, err
	}
	_, err = tx.Exec(ctx, `UPDATE riders SET status=$2, assigned_order_id=$3, updated_at=$4 WHERE id=$1`,
		riderID, string(domain.RiderBusy), orderID, now)
	if err != nil {
		return domain.RiderAssignment{}, err
	}
	return a, tx.Commit(ctx)
}

func (s *RiderStore) Unassign(ctx context.Context, riderID uuid.UUID) (domain.Rider, error) {
	now := s.now().UTC()
	tag, err := s.pool.Exec(ctx, `
UPDATE riders SET assigned_order_id=NULL,
  status=CASE WHEN status=$2 THEN $3 ELSE status END,
  updated_at=$4
WHERE id=$1
`, riderID, string(domain.RiderBusy), string(domain.RiderOnline), now)
	if err != nil {
		return domain.Rider{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Rider{}, domain.ErrNotFound
	}
	return s.GetByID(ctx, riderID)
}

func (s *RiderStore) AdvanceAssignment(ctx context.Context, assignmentID uuid.UUID, next domain.AssignmentState) (domain.RiderAssignment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.RiderAssignment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var a domain.RiderAssignment
	var state string
	err = tx.QueryRow(ctx, `
SELECT id, order_id, rider_id, state, assigned_at, updated_at
FROM rider_assignments WHERE id=$1 FOR UPDATE
`, assignmentID).Scan(&a.ID, &a.OrderID, &a.RiderID, &state, &a.AssignedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RiderAssignment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RiderAssignment{}, err
	}
	a.State = domain.AssignmentState(state)
	if !a.State.CanAdvance(next) {
		return domain.RiderAssignment{}, domain.ErrInvalidTransition
	}
	a.State = next
	a.UpdatedAt = s.now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE rider_assignments SET state=$2, updated_at=$3 WHERE id=$1`,
		assignmentID, string(a.State), a.UpdatedAt); err != nil {
		return domain.RiderAssignment{}, err
	}
	return a, tx.Commit(ctx)
}

func (s *RiderStore) ListAssignments(ctx context.Context, riderID uuid.UUID) ([]domain.RiderAssignment, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, order_id, rider_id, state, assigned_at, updated_at
FROM rider_assignments WHERE rider_id=$1 ORDER BY assigned_at
`, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RiderAssignment
	for rows.Next() {
		var a domain.RiderAssignment
		var state string
		if err := rows.Scan(&a.ID, &a.OrderID, &a.RiderID, &state, &a.AssignedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.State = domain.AssignmentState(state)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *RiderStore) List(ctx context.Context) ([]domain.Rider, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+riderColumns+` FROM riders ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Rider
	for rows.Next() {
		r, err := scanRider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
