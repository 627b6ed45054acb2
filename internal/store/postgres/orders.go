// Package postgres is the persistent implementation of the store
// interfaces, substitutable for the memory one via config. Transition
// checks run inside a row-locking transaction so concurrent writers
// cannot race the status machine.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pizza-tracker/internal/domain"
)

type OrderStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool, now: time.Now}
}

const orderColumns = `id, tracking_code, status, customer, items, total, payment, assigned_rider_id, status_notes, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                        domain.Order
		status                   string
		customer, items, payment []byte
	)
	err := row.Scan(&o.ID, &o.TrackingCode, &status, &customer, &items, &o.Total,
		&payment, &o.AssignedRiderID, &o.StatusNotes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(payment, &o.Payment); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *OrderStore) Create(ctx context.Context, customer domain.Customer, items []domain.LineItem, payment domain.Payment) (domain.Order, error) {
	now := s.now().UTC()
	o := domain.Order{
		ID:           uuid.New(),
		TrackingCode: domain.NewTrackingCode(),
		Status:       domain.StatusPendingPayment,
		Customer:     customer,
		Items:        items,
		Total:        domain.ComputeTotal(items),
		Payment:      payment,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	cb, _ := json.Marshal(o.Customer)
	ib, _ := json.Marshal(o.Items)
	pb, _ := json.Marshal(o.Payment)
	_, err := s.pool.Exec(ctx, `
INSERT INTO orders (`+orderColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, o.ID, o.TrackingCode, string(o.Status), cb, ib, o.Total, pb, nil, "", o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}
	return o, nil
}

func (s *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (s *OrderStore) GetByTrackingCode(ctx context.Context, code string) (domain.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE tracking_code=$1`, code))
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, notes string) (domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return domain.Order{}, err
	}
	if !cur.Status.CanTransition(status) {
		return domain.Order{}, domain.ErrInvalidTransition
	}
	if cur.Status == status {
		return cur, tx.Commit(ctx)
	}
	cur.Status = status
	if notes != "" {
		cur.StatusNotes = notes
	}
	cur.UpdatedAt = s.now().UTC()
	_, err = tx.Exec(ctx, `UPDATE orders SET status=$2, status_notes=$3, updated_at=$4 WHERE id=$1`,
		id, string(cur.Status), cur.StatusNotes, cur.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	return cur, tx.Commit(ctx)
}

func (s *OrderStore) AssignRider(ctx context.Context, id, riderID uuid.UUID) (domain.Order, error) {
	now := s.now().UTC()
	// The NULL predicate makes the link first-writer-wins under
	// concurrent assignment attempts.
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET assigned_rider_id=$2, updated_at=$3 WHERE id=$1 AND assigned_rider_id IS NULL`,
		id, riderID, now)
	if err != nil {
		return domain.Order{}, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return domain.Order{}, err
		}
		return domain.Order{}, domain.ErrConflict
	}
	return s.GetByID(ctx, id)
}

func (s *OrderStore) ClearRider(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	now := s.now().UTC()
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET assigned_rider_id=NULL, updated_at=$2 WHERE id=$1`, id, now)
	if err != nil {
		return domain.Order{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Order{}, domain.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *OrderStore) UpdatePayment(ctx context.Context, id uuid.UUID, patch domain.PaymentPatch) (domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return domain.Order{}, err
	}
	if patch.Provider != nil {
		cur.Payment.Provider = *patch.Provider
	}
	if patch.ExternalRef != nil {
		cur.Payment.ExternalRef = *patch.ExternalRef
	}
	if patch.Amount != nil {
		cur.Payment.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		cur.Payment.Currency = *patch.Currency
	}
	if patch.Status != nil {
		cur.Payment.Status = *patch.Status
	}
	cur.UpdatedAt = s.now().UTC()
	pb, _ := json.Marshal(cur.Payment)
	if _, err := tx.Exec(ctx, `UPDATE orders SET payment=$2, updated_at=$3 WHERE id=$1`, id, pb, cur.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	return cur, tx.Commit(ctx)
}

func (s *OrderStore) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
