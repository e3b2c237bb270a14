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
)

// ProfileRepository stores one document per user keyed by the provider's
// user id.
type ProfileRepository struct {
	col *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{col: db.Collection(collectionProfiles)}
}

type profileDoc struct {
	UserID    string    `bson:"_id"`
	Email     string    `bson:"email"`
	FullName  string    `bson:"full_name"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Upsert creates the profile or refreshes its email and name. created_at is
// only written on insert.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"email": p.Email, "updated_at": p.UpdatedAt.UTC()}
	if p.FullName != "" {
		set["full_name"] = p.FullName
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": p.CreatedAt.UTC()},
	}

	_, err := r.col.UpdateOne(ctx, bson.M{"_id": p.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc profileDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &domain.Profile{
		UserID:    doc.UserID,
		Email:     doc.Email,
		FullName:  doc.FullName,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// EnsureIndexes creates necessary indexes on the profiles collection.
func (r *ProfileRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}})
	return err
}
