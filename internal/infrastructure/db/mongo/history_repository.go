package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// HistoryRepository stores analysis and solution records. The parsed model
// output is kept as a native sub-document so it stays queryable.
type HistoryRepository struct {
	col *mongo.Collection
}

func NewHistoryRepository(db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{col: db.Collection(collectionHistory)}
}

type historyDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Kind      string    `bson:"kind"`
	Language  string    `bson:"language,omitempty"`
	Input     string    `bson:"input"`
	Result    bson.D    `bson:"result"`
	Provider  string    `bson:"provider"`
	CreatedAt time.Time `bson:"created_at"`
}

func toHistoryDoc(e *domain.HistoryEntry) (historyDoc, error) {
	var result bson.D
	if err := bson.UnmarshalExtJSON(e.Result, false, &result); err != nil {
		return historyDoc{}, fmt.Errorf("convert result: %w", err)
	}
	return historyDoc{
		ID:        e.ID,
		UserID:    e.UserID,
		Kind:      string(e.Kind),
		Language:  e.Language,
		Input:     e.Input,
		Result:    result,
		Provider:  string(e.Provider),
		CreatedAt: e.CreatedAt.UTC(),
	}, nil
}

func (d historyDoc) toDomain() (domain.HistoryEntry, error) {
	result, err := bson.MarshalExtJSON(d.Result, false, false)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("convert result: %w", err)
	}
	return domain.HistoryEntry{
		ID:        d.ID,
		UserID:    d.UserID,
		Kind:      domain.HistoryKind(d.Kind),
		Language:  d.Language,
		Input:     d.Input,
		Result:    json.RawMessage(result),
		Provider:  domain.AIProvider(d.Provider),
		CreatedAt: d.CreatedAt,
	}, nil
}

// Insert adds a new history document.
func (r *HistoryRepository) Insert(ctx context.Context, e *domain.HistoryEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := toHistoryDoc(e)
	if err != nil {
		return err
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// List returns a page of the user's entries, newest first, and the total.
func (r *HistoryRepository) List(ctx context.Context, f ports.HistoryFilter) ([]domain.HistoryEntry, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"user_id": f.UserID}
	if f.Kind != "" {
		filter["kind"] = string(f.Kind)
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip(f.Page, f.Limit)).
		SetLimit(int64(f.Limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}

	var docs []historyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode history: %w", err)
	}
	out := make([]domain.HistoryEntry, 0, len(docs))
	for _, d := range docs {
		e, err := d.toDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, nil
}

// EnsureIndexes creates necessary indexes on the analysis_history collection.
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
