package mongo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// ConversationRepository stores chat threads and their append-only
// messages in two collections.
type ConversationRepository struct {
	convos   *mongo.Collection
	messages *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{
		convos:   db.Collection(collectionConversations),
		messages: db.Collection(collectionMessages),
	}
}

type conversationDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Title     string    `bson:"title"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type messageDoc struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	UserID         string    `bson:"user_id"`
	Role           string    `bson:"role"`
	Content        string    `bson:"content"`
	Provider       string    `bson:"provider,omitempty"`
	Timestamp      time.Time `bson:"timestamp"`
}

func (d conversationDoc) toDomain() domain.Conversation {
	return domain.Conversation{ID: d.ID, UserID: d.UserID, Title: d.Title, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (d messageDoc) toDomain() domain.Message {
	return domain.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		UserID:         d.UserID,
		Role:           domain.Role(d.Role),
		Content:        d.Content,
		Provider:       domain.AIProvider(d.Provider),
		Timestamp:      d.Timestamp,
	}
}

func (r *ConversationRepository) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := conversationDoc{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
	if _, err := r.convos.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// FindConversation retrieves a thread owned by userID.
func (r *ConversationRepository) FindConversation(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc conversationDoc
	if err := r.convos.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	c := doc.toDomain()
	return &c, nil
}

// ListConversations returns the user's threads, most recently active first.
func (r *ConversationRepository) ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := r.convos.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	var docs []conversationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	out := make([]domain.Conversation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// AppendMessages inserts msgs in order and moves the thread's updated_at to
// the last message. All messages must belong to the same thread.
func (r *ConversationRepository) AppendMessages(ctx context.Context, msgs ...*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	docs := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		docs = append(docs, messageDoc{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			UserID:         m.UserID,
			Role:           string(m.Role),
			Content:        m.Content,
			Provider:       string(m.Provider),
			Timestamp:      m.Timestamp.UTC(),
		})
	}
	if _, err := r.messages.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("insert messages: %w", err)
	}

	last := msgs[len(msgs)-1]
	filter := bson.M{"_id": last.ConversationID}
	update := bson.M{"$max": bson.M{"updated_at": last.Timestamp.UTC()}}
	if _, err := r.convos.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// ListMessages returns the newest limit messages of a thread, oldest first.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID, userID string, limit int) ([]domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID, "user_id": userID}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	slices.Reverse(docs)

	out := make([]domain.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// EnsureIndexes creates necessary indexes on both collections.
func (r *ConversationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.convos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = r.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return err
}
