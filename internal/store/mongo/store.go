// Package mongo is the MongoDB store backend. Transactions run through a
// session's WithTransaction, which retries the callback on transient
// transaction errors such as write conflicts. Transactions need a replica
// set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/store"
)

// Collection name constants.
const (
	colClasses      = "classes"
	colChildren     = "children"
	colPlans        = "plans"
	colEntitlements = "entitlements"
	colReservations = "reservations"
	colIntents      = "payment_intents"
	colEnrollments  = "enrollment_requests"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	docs
}

// Connect dials uri and returns a Store on database name.
func Connect(ctx context.Context, uri, name string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store/mongo: ping: %w", err)
	}
	return New(client, name), nil
}

// New wraps a connected client.
func New(client *mongo.Client, name string) *Store {
	db := client.Database(name)
	return &Store{client: client, db: db, docs: docs{db: db}}
}

// Migrate creates the secondary indexes.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colEntitlements: {
			{Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "planId", Value: 1}, {Key: "childId", Value: 1}, {Key: "status", Value: 1}}},
		},
		colReservations: {
			{Keys: bson.D{{Key: "childId", Value: 1}, {Key: "classId", Value: 1}, {Key: "dateYMD", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "parentId", Value: 1}}},
		},
		colChildren: {
			{Keys: bson.D{{Key: "parentId", Value: 1}}},
		},
		colIntents: {
			{Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("store/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// RunInTx runs fn inside a session transaction.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("store/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, &tx{docs: s.docs})
	})
	if err != nil {
		var ce mongo.CommandError
		if errors.As(err, &ce) && ce.HasErrorLabel("TransientTransactionError") {
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
		return err
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// docs implements store.Reader. Inside a transaction the session travels in
// ctx, so the same methods serve transactional reads.
type docs struct {
	db *mongo.Database
}

type tx struct{ docs }

func getOne[T any](ctx context.Context, db *mongo.Database, col, id string) (*T, error) {
	var v T
	err := db.Collection(col).FindOne(ctx, bson.M{"_id": id}).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("store/mongo: get %s: %w", col, err)
	}
	return &v, nil
}

func replace(ctx context.Context, db *mongo.Database, col, id string, doc any) error {
	_, err := db.Collection(col).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store/mongo: put %s: %w", col, err)
	}
	return nil
}

func (d docs) GetClass(ctx context.Context, id string) (*model.Class, error) {
	return getOne[model.Class](ctx, d.db, colClasses, id)
}

func (d docs) GetChild(ctx context.Context, id string) (*model.Child, error) {
	return getOne[model.Child](ctx, d.db, colChildren, id)
}

func (d docs) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	p, err := getOne[model.Plan](ctx, d.db, colPlans, id)
	if err != nil {
		return nil, err
	}
	p.Normalize()
	return p, nil
}

func (d docs) GetEntitlement(ctx context.Context, id string) (*model.Entitlement, error) {
	e, err := getOne[model.Entitlement](ctx, d.db, colEntitlements, id)
	if err != nil {
		return nil, err
	}
	e.Normalize()
	return e, nil
}

func (d docs) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return getOne[model.Reservation](ctx, d.db, colReservations, id)
}

func (d docs) GetPaymentIntent(ctx context.Context, id string) (*model.PaymentIntent, error) {
	p, err := getOne[model.PaymentIntent](ctx, d.db, colIntents, id)
	if err != nil {
		return nil, err
	}
	p.Normalize()
	return p, nil
}

func (d docs) GetEnrollmentRequest(ctx context.Context, id string) (*model.EnrollmentRequest, error) {
	return getOne[model.EnrollmentRequest](ctx, d.db, colEnrollments, id)
}

func (d docs) ListEntitlements(ctx context.Context, f store.EntitlementFilter) ([]model.Entitlement, error) {
	filter := bson.M{}
	if f.ParentID != "" {
		filter["parentId"] = f.ParentID
	}
	if f.PlanID != "" {
		filter["planId"] = f.PlanID
	}
	if f.ChildID != "" {
		filter["childId"] = f.ChildID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	cur, err := d.db.Collection(colEntitlements).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("store/mongo: list entitlements: %w", err)
	}
	var out []model.Entitlement
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("store/mongo: list entitlements: %w", err)
	}
	for i := range out {
		out[i].Normalize()
	}
	return out, nil
}

func (t *tx) PutClass(ctx context.Context, c *model.Class) error {
	return replace(ctx, t.db, colClasses, c.ID, c)
}

func (t *tx) PutChild(ctx context.Context, c *model.Child) error {
	return replace(ctx, t.db, colChildren, c.ID, c)
}

func (t *tx) PutPlan(ctx context.Context, p *model.Plan) error {
	return replace(ctx, t.db, colPlans, p.ID, p)
}

func (t *tx) PutEntitlement(ctx context.Context, e *model.Entitlement) error {
	return replace(ctx, t.db, colEntitlements, e.ID, e)
}

func (t *tx) PutReservation(ctx context.Context, r *model.Reservation) error {
	return replace(ctx, t.db, colReservations, r.ID, r)
}

func (t *tx) PutPaymentIntent(ctx context.Context, p *model.PaymentIntent) error {
	return replace(ctx, t.db, colIntents, p.ID, p)
}

func (t *tx) PutEnrollmentRequest(ctx context.Context, r *model.EnrollmentRequest) error {
	return replace(ctx, t.db, colEnrollments, r.ID, r)
}
