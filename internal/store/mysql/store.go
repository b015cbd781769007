// Package mysql is the MySQL store backend. Reads inside a transaction take
// row locks with SELECT ... FOR UPDATE; transactions that lose a deadlock or
// time out waiting for a lock are retried a bounded number of times.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	driver "github.com/go-sql-driver/mysql"

	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// MySQL error numbers that mean the transaction may succeed when retried.
const (
	errDeadlock        = 1213
	errLockWaitTimeout = 1205
)

const maxTxAttempts = 3

// Store implements store.Store on a *sql.DB.
type Store struct {
	db *sql.DB
	conn
}

// New wraps an open connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db, conn: conn{q: db}}
}

// Close closes the pool.
func (s *Store) Close(context.Context) error { return s.db.Close() }

// RunInTx runs fn in a serializable-enough InnoDB transaction: every read
// through tx locks the rows it touches until commit.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.runOnce(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if retryable(err) {
			log.Printf("store/mysql: transaction conflict (attempt %d/%d): %v", attempt, maxTxAttempts, err)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTxAttempts))
	if err != nil && retryable(err) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func (s *Store) runOnce(ctx context.Context, fn store.TxFunc) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, &tx{conn{q: sqlTx, lock: " FOR UPDATE"}}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

func retryable(err error) bool {
	var me *driver.MySQLError
	if errors.As(err, &me) {
		return me.Number == errDeadlock || me.Number == errLockWaitTimeout
	}
	return false
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements store.Reader on either the pool or a transaction. lock is
// appended to every SELECT.
type conn struct {
	q    querier
	lock string
}

// tx adds the write methods.
type tx struct{ conn }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// ---- classes ----

func (c conn) GetClass(ctx context.Context, id string) (*model.Class, error) {
	var (
		cl    model.Class
		sched jsonValue[model.ScheduleRule]
	)
	err := c.q.QueryRowContext(ctx, `SELECT id, title, instructor_name, location, start_time, end_time, recurrence, capacity, is_active, created_at
		FROM classes WHERE id = ?`+c.lock, id).Scan(
		&cl.ID, &cl.Title, &cl.InstructorName, &cl.Location, &cl.StartTime, &cl.EndTime,
		&sched, &cl.Capacity, &cl.IsActive, &cl.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	cl.Schedule = sched.V
	return &cl, nil
}

func (t *tx) PutClass(ctx context.Context, cl *model.Class) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO classes
		(id, title, instructor_name, location, start_time, end_time, recurrence, capacity, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE title = VALUES(title), instructor_name = VALUES(instructor_name),
		location = VALUES(location), start_time = VALUES(start_time), end_time = VALUES(end_time),
		recurrence = VALUES(recurrence), capacity = VALUES(capacity), is_active = VALUES(is_active)`,
		cl.ID, cl.Title, cl.InstructorName, cl.Location, cl.StartTime, cl.EndTime,
		jsonValue[model.ScheduleRule]{V: cl.Schedule}, cl.Capacity, cl.IsActive, cl.CreatedAt.UTC())
	return err
}

// ---- children ----

func (c conn) GetChild(ctx context.Context, id string) (*model.Child, error) {
	var ch model.Child
	err := c.q.QueryRowContext(ctx, `SELECT id, parent_id, first_name, last_name FROM children WHERE id = ?`+c.lock, id).
		Scan(&ch.ID, &ch.ParentID, &ch.FirstName, &ch.LastName)
	if err != nil {
		return nil, notFound(err)
	}
	return &ch, nil
}

func (t *tx) PutChild(ctx context.Context, ch *model.Child) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO children (id, parent_id, first_name, last_name) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE parent_id = VALUES(parent_id), first_name = VALUES(first_name), last_name = VALUES(last_name)`,
		ch.ID, ch.ParentID, ch.FirstName, ch.LastName)
	return err
}

// ---- plans ----

func (c conn) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	var (
		p        model.Plan
		limits   jsonValue[model.CreditLimits]
		validity jsonValue[model.Validity]
	)
	err := c.q.QueryRowContext(ctx, `SELECT id, type, name, price_cents, currency, scope, limits, validity, is_active, created_at
		FROM plans WHERE id = ?`+c.lock, id).Scan(
		&p.ID, &p.Type, &p.Name, &p.PriceCents, &p.Currency, &p.Scope, &limits, &validity, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.Limits, p.Validity = limits.V, validity.V
	p.Normalize()
	return &p, nil
}

func (t *tx) PutPlan(ctx context.Context, p *model.Plan) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO plans
		(id, type, name, price_cents, currency, scope, limits, validity, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE type = VALUES(type), name = VALUES(name), price_cents = VALUES(price_cents),
		currency = VALUES(currency), scope = VALUES(scope), limits = VALUES(limits),
		validity = VALUES(validity), is_active = VALUES(is_active)`,
		p.ID, p.Type, p.Name, p.PriceCents, p.Currency, p.Scope,
		jsonValue[model.CreditLimits]{V: p.Limits}, jsonValue[model.Validity]{V: p.Validity}, p.IsActive, p.CreatedAt.UTC())
	return err
}

// ---- entitlements ----

const entitlementColumns = `id, parent_id, child_id, plan_id, type, status, valid_from, valid_to, limits, usage_counts, created_from_intent_id, created_at, updated_at`

type scanner interface{ Scan(dest ...any) error }

func scanEntitlement(row scanner) (model.Entitlement, error) {
	var (
		e      model.Entitlement
		limits jsonValue[model.CreditLimits]
		usage  jsonValue[map[string]int]
	)
	err := row.Scan(&e.ID, &e.ParentID, &e.ChildID, &e.PlanID, &e.Type, &e.Status, &e.ValidFrom, &e.ValidTo,
		&limits, &usage, &e.CreatedFromIntentID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Entitlement{}, err
	}
	e.Limits, e.Usage = limits.V, usage.V
	e.Normalize()
	return e, nil
}

func (c conn) GetEntitlement(ctx context.Context, id string) (*model.Entitlement, error) {
	e, err := scanEntitlement(c.q.QueryRowContext(ctx, `SELECT `+entitlementColumns+` FROM entitlements WHERE id = ?`+c.lock, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (c conn) ListEntitlements(ctx context.Context, f store.EntitlementFilter) ([]model.Entitlement, error) {
	q := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE 1 = 1`
	var args []any
	if f.ParentID != "" {
		q += ` AND parent_id = ?`
		args = append(args, f.ParentID)
	}
	if f.PlanID != "" {
		q += ` AND plan_id = ?`
		args = append(args, f.PlanID)
	}
	if f.ChildID != "" {
		q += ` AND child_id = ?`
		args = append(args, f.ChildID)
	}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, f.Status)
	}
	q += ` ORDER BY id` + c.lock

	rows, err := c.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *tx) PutEntitlement(ctx context.Context, e *model.Entitlement) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO entitlements (`+entitlementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE parent_id = VALUES(parent_id), child_id = VALUES(child_id), plan_id = VALUES(plan_id),
		type = VALUES(type), status = VALUES(status), valid_from = VALUES(valid_from), valid_to = VALUES(valid_to),
		limits = VALUES(limits), usage_counts = VALUES(usage_counts), updated_at = VALUES(updated_at)`,
		e.ID, e.ParentID, e.ChildID, e.PlanID, e.Type, e.Status, e.ValidFrom.UTC(), e.ValidTo.UTC(),
		jsonValue[model.CreditLimits]{V: e.Limits}, jsonValue[map[string]int]{V: e.Usage},
		e.CreatedFromIntentID, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	return err
}

// ---- reservations ----

func (c conn) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var r model.Reservation
	err := c.q.QueryRowContext(ctx, `SELECT id, parent_id, child_id, class_id, date_ymd, status, payment_method,
		entitlement_id, payment_intent_id, provider_transaction_id, created_at
		FROM reservations WHERE id = ?`+c.lock, id).Scan(
		&r.ID, &r.ParentID, &r.ChildID, &r.ClassID, &r.Date, &r.Status, &r.PaymentMethod,
		&r.EntitlementID, &r.PaymentIntentID, &r.ProviderTransactionID, &r.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (t *tx) PutReservation(ctx context.Context, r *model.Reservation) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO reservations
		(id, parent_id, child_id, class_id, date_ymd, status, payment_method, entitlement_id, payment_intent_id, provider_transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), payment_method = VALUES(payment_method),
		entitlement_id = VALUES(entitlement_id), payment_intent_id = VALUES(payment_intent_id),
		provider_transaction_id = VALUES(provider_transaction_id)`,
		r.ID, r.ParentID, r.ChildID, r.ClassID, r.Date, r.Status, r.PaymentMethod,
		r.EntitlementID, r.PaymentIntentID, r.ProviderTransactionID, r.CreatedAt.UTC())
	return err
}

// ---- payment intents ----

func (c conn) GetPaymentIntent(ctx context.Context, id string) (*model.PaymentIntent, error) {
	var (
		p                           model.PaymentIntent
		meta                        jsonValue[model.IntentMetadata]
		paid, finalized, processing sql.NullTime
	)
	err := c.q.QueryRowContext(ctx, `SELECT id, parent_id, plan_id, amount_cents, currency, email, description, provider,
		provider_transaction_id, provider_title, status, metadata, created_at, updated_at, paid_at, finalized_at, processing_at
		FROM payment_intents WHERE id = ?`+c.lock, id).Scan(
		&p.ID, &p.ParentID, &p.PlanID, &p.AmountCents, &p.Currency, &p.Email, &p.Description, &p.Provider,
		&p.ProviderTransactionID, &p.ProviderTitle, &p.Status, &meta, &p.CreatedAt, &p.UpdatedAt,
		&paid, &finalized, &processing)
	if err != nil {
		return nil, notFound(err)
	}
	p.Metadata = meta.V
	p.PaidAt, p.FinalizedAt, p.ProcessingAt = timePtr(paid), timePtr(finalized), timePtr(processing)
	p.Normalize()
	return &p, nil
}

func (t *tx) PutPaymentIntent(ctx context.Context, p *model.PaymentIntent) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO payment_intents
		(id, parent_id, plan_id, amount_cents, currency, email, description, provider, provider_transaction_id,
		provider_title, status, metadata, created_at, updated_at, paid_at, finalized_at, processing_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE amount_cents = VALUES(amount_cents), currency = VALUES(currency), email = VALUES(email),
		description = VALUES(description), provider = VALUES(provider), provider_transaction_id = VALUES(provider_transaction_id),
		provider_title = VALUES(provider_title), status = VALUES(status), metadata = VALUES(metadata),
		updated_at = VALUES(updated_at), paid_at = VALUES(paid_at), finalized_at = VALUES(finalized_at),
		processing_at = VALUES(processing_at)`,
		p.ID, p.ParentID, p.PlanID, p.AmountCents, p.Currency, p.Email, p.Description, p.Provider,
		p.ProviderTransactionID, p.ProviderTitle, p.Status, jsonValue[model.IntentMetadata]{V: p.Metadata},
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(), nullTime(p.PaidAt), nullTime(p.FinalizedAt), nullTime(p.ProcessingAt))
	return err
}

// ---- enrollment requests ----

func (c conn) GetEnrollmentRequest(ctx context.Context, id string) (*model.EnrollmentRequest, error) {
	var (
		r     model.EnrollmentRequest
		dates jsonValue[[]string]
	)
	err := c.q.QueryRowContext(ctx, `SELECT id, parent_id, child_id, class_id, status, payment_method,
		payment_intent_id, provider_transaction_id, dates, created_at, updated_at
		FROM enrollment_requests WHERE id = ?`+c.lock, id).Scan(
		&r.ID, &r.ParentID, &r.ChildID, &r.ClassID, &r.Status, &r.PaymentMethod,
		&r.PaymentIntentID, &r.ProviderTransactionID, &dates, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	r.Dates = dates.V
	return &r, nil
}

func (t *tx) PutEnrollmentRequest(ctx context.Context, r *model.EnrollmentRequest) error {
	dates := r.Dates
	if dates == nil {
		dates = []string{}
	}
	_, err := t.q.ExecContext(ctx, `INSERT INTO enrollment_requests
		(id, parent_id, child_id, class_id, status, payment_method, payment_intent_id, provider_transaction_id, dates, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), payment_method = VALUES(payment_method),
		payment_intent_id = VALUES(payment_intent_id), provider_transaction_id = VALUES(provider_transaction_id),
		dates = VALUES(dates), updated_at = VALUES(updated_at)`,
		r.ID, r.ParentID, r.ChildID, r.ClassID, r.Status, r.PaymentMethod, r.PaymentIntentID,
		r.ProviderTransactionID, jsonValue[[]string]{V: dates}, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	return err
}
