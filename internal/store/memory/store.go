// Package memory is an in-process store backend. Transactions are
// serialised under a mutex and stage their writes, so a failing transaction
// leaves no trace. It backs tests and single-instance development runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type tables struct {
	classes      map[string]model.Class
	children     map[string]model.Child
	plans        map[string]model.Plan
	entitlements map[string]model.Entitlement
	reservations map[string]model.Reservation
	intents      map[string]model.PaymentIntent
	enrollments  map[string]model.EnrollmentRequest
}

func newTables() *tables {
	return &tables{
		classes:      make(map[string]model.Class),
		children:     make(map[string]model.Child),
		plans:        make(map[string]model.Plan),
		entitlements: make(map[string]model.Entitlement),
		reservations: make(map[string]model.Reservation),
		intents:      make(map[string]model.PaymentIntent),
		enrollments:  make(map[string]model.EnrollmentRequest),
	}
}

// Store keeps every collection in maps guarded by one lock.
type Store struct {
	mu   sync.RWMutex
	data *tables
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newTables()}
}

// RunInTx holds the write lock for the whole transaction. fn must not call
// back into the Store (only into tx) or it will deadlock.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txn{base: s.data, staged: newTables()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) view() *txn { return &txn{base: s.data, staged: newTables()} }

func (s *Store) GetClass(ctx context.Context, id string) (*model.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetClass(ctx, id)
}

func (s *Store) GetChild(ctx context.Context, id string) (*model.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetChild(ctx, id)
}

func (s *Store) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetPlan(ctx, id)
}

func (s *Store) GetEntitlement(ctx context.Context, id string) (*model.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetEntitlement(ctx, id)
}

func (s *Store) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetReservation(ctx, id)
}

func (s *Store) GetPaymentIntent(ctx context.Context, id string) (*model.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetPaymentIntent(ctx, id)
}

func (s *Store) GetEnrollmentRequest(ctx context.Context, id string) (*model.EnrollmentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetEnrollmentRequest(ctx, id)
}

func (s *Store) ListEntitlements(ctx context.Context, f store.EntitlementFilter) ([]model.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListEntitlements(ctx, f)
}

// Reservations returns every reservation sorted by id. Used by tests to
// assert on the full reservation set.
func (s *Store) Reservations() []model.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0, len(s.data.reservations))
	for _, r := range s.data.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// txn reads through its staged writes to the committed base.
type txn struct {
	base   *tables
	staged *tables
}

func (t *txn) commit() {
	for k, v := range t.staged.classes {
		t.base.classes[k] = v
	}
	for k, v := range t.staged.children {
		t.base.children[k] = v
	}
	for k, v := range t.staged.plans {
		t.base.plans[k] = v
	}
	for k, v := range t.staged.entitlements {
		t.base.entitlements[k] = v
	}
	for k, v := range t.staged.reservations {
		t.base.reservations[k] = v
	}
	for k, v := range t.staged.intents {
		t.base.intents[k] = v
	}
	for k, v := range t.staged.enrollments {
		t.base.enrollments[k] = v
	}
}

func lookup[T any](staged, base map[string]T, id string) (T, bool) {
	if v, ok := staged[id]; ok {
		return v, true
	}
	v, ok := base[id]
	return v, ok
}

func (t *txn) GetClass(_ context.Context, id string) (*model.Class, error) {
	c, ok := lookup(t.staged.classes, t.base.classes, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (t *txn) GetChild(_ context.Context, id string) (*model.Child, error) {
	c, ok := lookup(t.staged.children, t.base.children, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (t *txn) GetPlan(_ context.Context, id string) (*model.Plan, error) {
	p, ok := lookup(t.staged.plans, t.base.plans, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Normalize()
	return &p, nil
}

func (t *txn) GetEntitlement(_ context.Context, id string) (*model.Entitlement, error) {
	e, ok := lookup(t.staged.entitlements, t.base.entitlements, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	e = e.Clone()
	e.Normalize()
	return &e, nil
}

func (t *txn) GetReservation(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := lookup(t.staged.reservations, t.base.reservations, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (t *txn) GetPaymentIntent(_ context.Context, id string) (*model.PaymentIntent, error) {
	p, ok := lookup(t.staged.intents, t.base.intents, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	p = p.Clone()
	p.Normalize()
	return &p, nil
}

func (t *txn) GetEnrollmentRequest(_ context.Context, id string) (*model.EnrollmentRequest, error) {
	r, ok := lookup(t.staged.enrollments, t.base.enrollments, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	r = r.Clone()
	return &r, nil
}

func (t *txn) ListEntitlements(_ context.Context, f store.EntitlementFilter) ([]model.Entitlement, error) {
	seen := make(map[string]bool)
	var out []model.Entitlement
	add := func(id string, e model.Entitlement) {
		if seen[id] {
			return
		}
		seen[id] = true
		e = e.Clone()
		e.Normalize()
		if f.Match(&e) {
			out = append(out, e)
		}
	}
	for id, e := range t.staged.entitlements {
		add(id, e)
	}
	for id, e := range t.base.entitlements {
		add(id, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *txn) PutClass(_ context.Context, c *model.Class) error {
	t.staged.classes[c.ID] = *c
	return nil
}

func (t *txn) PutChild(_ context.Context, c *model.Child) error {
	t.staged.children[c.ID] = *c
	return nil
}

func (t *txn) PutPlan(_ context.Context, p *model.Plan) error {
	t.staged.plans[p.ID] = *p
	return nil
}

func (t *txn) PutEntitlement(_ context.Context, e *model.Entitlement) error {
	t.staged.entitlements[e.ID] = e.Clone()
	return nil
}

func (t *txn) PutReservation(_ context.Context, r *model.Reservation) error {
	t.staged.reservations[r.ID] = *r
	return nil
}

func (t *txn) PutPaymentIntent(_ context.Context, p *model.PaymentIntent) error {
	t.staged.intents[p.ID] = p.Clone()
	return nil
}

func (t *txn) PutEnrollmentRequest(_ context.Context, r *model.EnrollmentRequest) error {
	t.staged.enrollments[r.ID] = r.Clone()
	return nil
}
