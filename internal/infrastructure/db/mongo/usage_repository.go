package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// UsageRepository keeps one counters document per user.
type UsageRepository struct {
	col *mongo.Collection
}

func NewUsageRepository(db *mongo.Database) *UsageRepository {
	return &UsageRepository{col: db.Collection(collectionUsageStats)}
}

type usageDoc struct {
	UserID         string    `bson:"_id"`
	AnalysesCount  int64     `bson:"analyses_count"`
	ProblemsSolved int64     `bson:"problems_solved"`
	ChatMessages   int64     `bson:"chat_messages"`
	LastActivity   time.Time `bson:"last_activity,omitempty"`
}

func (d usageDoc) toDomain() domain.UsageStats {
	return domain.UsageStats{
		UserID:         d.UserID,
		AnalysesCount:  d.AnalysesCount,
		ProblemsSolved: d.ProblemsSolved,
		ChatMessages:   d.ChatMessages,
		LastActivity:   d.LastActivity,
	}
}

// Apply atomically increments the counters, creating the document when the
// user has none. A zero delta only initialises it.
func (r *UsageRepository) Apply(ctx context.Context, d ports.UsageDelta) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx, bson.M{"_id": d.UserID}, usageUpdate(d), options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("apply usage: %w", err)
	}
	return nil
}

func usageUpdate(d ports.UsageDelta) bson.M {
	update := bson.M{
		"$inc": bson.M{
			"analyses_count":  d.Analyses,
			"problems_solved": d.ProblemsSolved,
			"chat_messages":   d.ChatMessages,
		},
	}
	if !d.At.IsZero() {
		update["$max"] = bson.M{"last_activity": d.At.UTC()}
	}
	return update
}

func (r *UsageRepository) Get(ctx context.Context, userID string) (*domain.UsageStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc usageDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find usage: %w", err)
	}
	st := doc.toDomain()
	return &st, nil
}

// List returns a page of counters, most recently active first, and the total.
func (r *UsageRepository) List(ctx context.Context, page, limit int) ([]domain.UsageStats, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count usage: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "last_activity", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(skip(page, limit)).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list usage: %w", err)
	}

	var docs []usageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode usage: %w", err)
	}
	out := make([]domain.UsageStats, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, total, nil
}

// Totals sums the counters of every user.
func (r *UsageRepository) Totals(ctx context.Context) (ports.UsageTotals, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "users", Value: bson.M{"$sum": 1}},
			{Key: "analyses", Value: bson.M{"$sum": "$analyses_count"}},
			{Key: "problems_solved", Value: bson.M{"$sum": "$problems_solved"}},
			{Key: "chat_messages", Value: bson.M{"$sum": "$chat_messages"}},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return ports.UsageTotals{}, fmt.Errorf("aggregate usage: %w", err)
	}

	var rows []struct {
		Users          int64 `bson:"users"`
		Analyses       int64 `bson:"analyses"`
		ProblemsSolved int64 `bson:"problems_solved"`
		ChatMessages   int64 `bson:"chat_messages"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return ports.UsageTotals{}, fmt.Errorf("decode usage totals: %w", err)
	}
	if len(rows) == 0 {
		return ports.UsageTotals{}, nil
	}
	return ports.UsageTotals{
		Users:          rows[0].Users,
		Analyses:       rows[0].Analyses,
		ProblemsSolved: rows[0].ProblemsSolved,
		ChatMessages:   rows[0].ChatMessages,
	}, nil
}

// EnsureIndexes creates necessary indexes on the usage_stats collection.
func (r *UsageRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "last_activity", Value: -1}}})
	return err
}
