// Package mongodb stores notes in a MongoDB collection. Title uniqueness is
// enforced by a unique index with a case- and accent-insensitive collation,
// and title ordering uses the same collation.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/kuitang/notes-api/internal/notes"
)

const (
	// CollectionName is the collection holding notes.
	CollectionName = "notes"
	// DefaultDatabase is used when no database name is configured.
	DefaultDatabase = "notes"

	titleIndexName = "title_unique_ci"
	disconnectWait = 5 * time.Second
)

// titleCollation compares base letters only, so case and accents do not
// distinguish titles.
var titleCollation = &options.Collation{Locale: "en", Strength: 1}

var sortFields = map[notes.SortField]string{
	notes.SortTitle:     "title",
	notes.SortCreatedAt: "createdAt",
	notes.SortUpdatedAt: "updatedAt",
	notes.SortBody:      "body",
	notes.SortID:        "_id",
}

type noteDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Body      string    `bson:"body"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d noteDoc) toNote() notes.Note {
	return notes.Note{
		ID:        d.ID,
		Title:     d.Title,
		Body:      d.Body,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// Store implements notes.Store on MongoDB.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Open connects to uri, verifies the connection and ensures indexes exist.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		database = DefaultDatabase
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{
		client: client,
		coll:   client.Database(database).Collection(CollectionName),
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique title index and the timestamp indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "title", Value: 1}},
			Options: options.Index().SetName(titleIndexName).SetUnique(true).SetCollation(titleCollation),
		},
		{
			Keys:    bson.D{{Key: "updatedAt", Value: -1}},
			Options: options.Index().SetName("updatedAt_desc"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Drop removes the collection. Tests use it to start clean.
func (s *Store) Drop(ctx context.Context) error {
	return s.coll.Drop(ctx)
}

func (s *Store) List(ctx context.Context, params notes.ListParams) ([]notes.Note, int64, error) {
	field, ok := sortFields[params.Sort.Field]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort field %q", params.Sort.Field)
	}
	dir := 1
	if params.Sort.Desc {
		dir = -1
	}

	total, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(params.Offset())).
		SetLimit(int64(params.Limit)).
		SetCollation(titleCollation)
	cur, err := s.coll.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("find notes: %w", err)
	}
	var docs []noteDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode notes: %w", err)
	}

	items := make([]notes.Note, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toNote())
	}
	return items, total, nil
}

func (s *Store) Get(ctx context.Context, id string) (*notes.Note, error) {
	var doc noteDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notes.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find note: %w", err)
	}
	note := doc.toNote()
	return &note, nil
}

func (s *Store) Insert(ctx context.Context, draft notes.Draft, now time.Time) (*notes.Note, error) {
	doc := noteDoc{
		ID:        notes.NewID(),
		Title:     draft.Title,
		Body:      draft.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, notes.DuplicateTitle(draft.Title)
	}
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	note := doc.toNote()
	return &note, nil
}

func (s *Store) Update(ctx context.Context, id string, patch notes.Patch, now time.Time) (*notes.Note, error) {
	// Pipeline update so updatedAt stays strictly increasing; $literal keeps
	// titles that start with "$" from being read as field paths.
	set := bson.D{{Key: "updatedAt", Value: bson.D{{Key: "$max", Value: bson.A{
		now,
		bson.D{{Key: "$add", Value: bson.A{"$updatedAt", 1}}},
	}}}}}
	if patch.Title != nil {
		set = append(set, bson.E{Key: "title", Value: bson.D{{Key: "$literal", Value: *patch.Title}}})
	}
	if patch.Body != nil {
		set = append(set, bson.E{Key: "body", Value: bson.D{{Key: "$literal", Value: *patch.Body}}})
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}

	var doc noteDoc
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, notes.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, notes.DuplicateTitle(*patch.Title)
	case err != nil:
		return nil, fmt.Errorf("update note: %w", err)
	}
	note := doc.toNote()
	return &note, nil
}

func (s *Store) Delete(ctx context.Context, id string) (*notes.Note, error) {
	var doc noteDoc
	err := s.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notes.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete note: %w", err)
	}
	note := doc.toNote()
	return &note, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectWait)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ notes.Store = (*Store)(nil)
