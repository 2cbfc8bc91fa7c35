// Package mongostore implements the dataset capability interfaces over a
// MongoDB collection, one document per feature. Chunk ranges become _id
// range filters, attribute writes are bulk $set updates, and edit sessions
// map onto MongoDB transactions.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nodeweld/nodeweld/pkg/dataset"
	apperrors "github.com/nodeweld/nodeweld/pkg/errors"
	"github.com/nodeweld/nodeweld/pkg/ident"
	"github.com/nodeweld/nodeweld/pkg/topology"
)

// Config describes the collection to connect to and the identifier domain
// of each attribute field. Domains are declared rather than sampled: BSON
// cannot reliably distinguish an integer field from a float field by
// inspecting documents.
type Config struct {
	URI            string
	Database       string
	Collection     string
	Schema         map[string]ident.Domain
	ConnectTimeout time.Duration
}

// Store is a MongoDB-backed feature store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	schema map[string]ident.Domain
}

// featureDoc is the persisted feature shape.
type featureDoc struct {
	ID    int64               `bson:"_id"`
	From  topology.Coordinate `bson:"from"`
	To    topology.Coordinate `bson:"to"`
	Attrs bson.M              `bson:"attrs,omitempty"`
}

// Connect establishes a client and verifies connectivity with a ping.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "connect to %s", cfg.URI)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "ping %s", cfg.URI)
	}
	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		schema: cfg.Schema,
	}, nil
}

// Name identifies the backend in logs and metric labels.
func (s *Store) Name() string { return "mongo" }

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// FieldType reports the declared domain of a field.
func (s *Store) FieldType(ctx context.Context, field string) (ident.Domain, error) {
	domain, ok := s.schema[field]
	if !ok {
		return ident.Domain{}, apperrors.New(apperrors.ErrCodeFieldNotFound, "field %q not in dataset", field)
	}
	return domain, nil
}

// ReadFeatures streams features in a single forward pass. Filter
// expressions are interpreted as MongoDB extended-JSON query documents.
func (s *Store) ReadFeatures(ctx context.Context, q dataset.Query) (dataset.Cursor, error) {
	fromDomain, err := s.FieldType(ctx, q.FromIDField)
	if err != nil {
		return nil, err
	}
	toDomain, err := s.FieldType(ctx, q.ToIDField)
	if err != nil {
		return nil, err
	}
	if fromDomain != toDomain {
		return nil, apperrors.New(apperrors.ErrCodeMixedIDKinds,
			"fields %q (%s) and %q (%s) have different identifier domains",
			q.FromIDField, fromDomain, q.ToIDField, toDomain)
	}

	filter, err := s.filterDoc(q.Filter)
	if err != nil {
		return nil, err
	}
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "read features")
	}
	return &mongoCursor{
		ctx:       ctx,
		cur:       cur,
		fromField: q.FromIDField,
		toField:   q.ToIDField,
		domain:    fromDomain,
	}, nil
}

// ReadSortedIDs enumerates feature IDs in ascending _id order.
func (s *Store) ReadSortedIDs(ctx context.Context, f dataset.Filter) ([]int64, error) {
	filter, err := s.filterDoc(f)
	if err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "read sorted ids")
	}
	defer cur.Close(ctx)

	var ids []int64
	for cur.Next(ctx) {
		var doc struct {
			ID int64 `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "read sorted ids")
	}
	return ids, nil
}

// WriteAttribute bulk-applies a value mapping with one $set per feature.
// A rejected value surfaces as WRITE_CONFLICT naming the value; nothing is
// retried here.
func (s *Store) WriteAttribute(ctx context.Context, field string, values map[int64]ident.Value) error {
	domain, err := s.FieldType(ctx, field)
	if err != nil {
		return err
	}
	models := make([]mongo.WriteModel, 0, len(values))
	for id, v := range values {
		if err := domain.Check(v); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeWriteConflict, err,
				"write %s=%s rejected for feature %d", field, ident.Format(v), id)
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: id}}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{{Key: "attrs." + field, Value: toWire(v)}}}}))
	}
	if len(models) == 0 {
		return nil
	}
	res, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
			we := bwe.WriteErrors[0]
			return apperrors.Wrap(apperrors.ErrCodeWriteConflict, err,
				"write %s rejected at operation %d: %s", field, we.Index, we.Message)
		}
		return apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "write %s", field)
	}
	if int(res.MatchedCount) != len(models) {
		return apperrors.New(apperrors.ErrCodeWriteConflict,
			"write %s matched %d of %d features", field, res.MatchedCount, len(models))
	}
	return nil
}

// Begin opens a MongoDB transaction-backed edit session.
func (s *Store) Begin(ctx context.Context) (dataset.Tx, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "start session")
	}
	if err := sess.StartTransaction(); err != nil {
		sess.EndSession(ctx)
		return nil, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "start transaction")
	}
	return &mongoTx{store: s, sess: sess}, nil
}

type mongoTx struct {
	store *Store
	sess  mongo.Session
}

func (tx *mongoTx) WriteAttribute(ctx context.Context, field string, values map[int64]ident.Value) error {
	return mongo.WithSession(ctx, tx.sess, func(sc mongo.SessionContext) error {
		return tx.store.WriteAttribute(sc, field, values)
	})
}

func (tx *mongoTx) Commit(ctx context.Context) error {
	defer tx.sess.EndSession(ctx)
	return tx.sess.CommitTransaction(ctx)
}

func (tx *mongoTx) Rollback(ctx context.Context) error {
	defer tx.sess.EndSession(ctx)
	return tx.sess.AbortTransaction(ctx)
}

// filterDoc translates a dataset filter into a query document.
func (s *Store) filterDoc(f dataset.Filter) (bson.M, error) {
	doc := bson.M{}
	if f.Expr != "" {
		if err := bson.UnmarshalExtJSON([]byte(f.Expr), false, &doc); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidFilter, err, "parse filter expression %q", f.Expr)
		}
	}
	if f.IDRange != nil {
		doc["_id"] = bson.M{"$gte": f.IDRange.Min, "$lte": f.IDRange.Max}
	}
	return doc, nil
}

// toWire converts a canonical identifier value into its persisted form.
// Tokens are stored as canonical UUID strings.
func toWire(v ident.Value) any {
	if t, ok := v.(uuid.UUID); ok {
		return t.String()
	}
	return v
}

type mongoCursor struct {
	ctx       context.Context
	cur       *mongo.Cursor
	fromField string
	toField   string
	domain    ident.Domain
}

func (c *mongoCursor) Next() (topology.Feature, bool, error) {
	if !c.cur.Next(c.ctx) {
		if err := c.cur.Err(); err != nil {
			return topology.Feature{}, false, apperrors.Wrap(apperrors.ErrCodeStoreUnavailable, err, "advance cursor")
		}
		return topology.Feature{}, false, nil
	}
	var doc featureDoc
	if err := c.cur.Decode(&doc); err != nil {
		return topology.Feature{}, false, fmt.Errorf("decode feature: %w", err)
	}
	fromID, err := c.domain.FromWire(doc.Attrs[c.fromField])
	if err != nil {
		return topology.Feature{}, false, fmt.Errorf("feature %d field %q: %w", doc.ID, c.fromField, err)
	}
	toID, err := c.domain.FromWire(doc.Attrs[c.toField])
	if err != nil {
		return topology.Feature{}, false, fmt.Errorf("feature %d field %q: %w", doc.ID, c.toField, err)
	}
	return topology.Feature{
		ID:     doc.ID,
		FromID: fromID,
		ToID:   toID,
		From:   doc.From,
		To:     doc.To,
	}, true, nil
}

func (c *mongoCursor) Close() error { return c.cur.Close(c.ctx) }

var (
	_ dataset.Store  = (*Store)(nil)
	_ dataset.Editor = (*Store)(nil)
)
