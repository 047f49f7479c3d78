package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
)

const collectionUsers = "users"

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

// userDocument is the persistence shape of a LocalUser. It exists so the
// domain type never carries bson tags and the stored layout can evolve
// independently.
type userDocument struct {
	ID                 string     `bson:"_id"`
	Provider           string     `bson:"provider"`
	Subject            string     `bson:"subject"`
	Email              string     `bson:"email"`
	DisplayName        string     `bson:"display_name,omitempty"`
	DownstreamUsername string     `bson:"downstream_username,omitempty"`
	ShadowPassword     string     `bson:"shadow_password,omitempty"`
	RawGroups          []string   `bson:"raw_groups,omitempty"`
	ExpiresAt          *time.Time `bson:"expires_at,omitempty"`
	ExpiryWarningSent  bool       `bson:"expiry_warning_sent"`
	CreatedAt          time.Time  `bson:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at"`
}

func toDocument(u *domain.LocalUser) *userDocument {
	return &userDocument{
		ID:                 u.ID,
		Provider:           u.Provider,
		Subject:            u.Subject,
		Email:              u.Email,
		DisplayName:        u.DisplayName,
		DownstreamUsername: u.DownstreamUsername,
		ShadowPassword:     u.ShadowPassword,
		RawGroups:          u.RawGroups,
		ExpiresAt:          u.ExpiresAt,
		ExpiryWarningSent:  u.ExpiryWarningSent,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func (d *userDocument) toDomain() *domain.LocalUser {
	return &domain.LocalUser{
		ID:                 d.ID,
		Provider:           d.Provider,
		Subject:            d.Subject,
		Email:              d.Email,
		DisplayName:        d.DisplayName,
		DownstreamUsername: d.DownstreamUsername,
		ShadowPassword:     d.ShadowPassword,
		RawGroups:          d.RawGroups,
		ExpiresAt:          d.ExpiresAt,
		ExpiryWarningSent:  d.ExpiryWarningSent,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// FindByEmail retrieves the user linked to the given (already lowercased)
// email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.LocalUser, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// FindByID retrieves the user by its downstream account id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.LocalUser, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// Upsert writes the full user document keyed by email, replacing any
// previous version. Keying on email rather than _id lets a repaired user
// keep one record when its downstream id is rebound.
func (r *UserRepository) Upsert(ctx context.Context, user *domain.LocalUser) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"email": user.Email}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.col.ReplaceOne(ctx, filter, toDocument(user), opts); err != nil {
		return err
	}
	return nil
}

// ListWithExpiry returns every user that has an expiry date set.
func (r *UserRepository) ListWithExpiry(ctx context.Context) ([]*domain.LocalUser, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"expires_at": bson.M{"$ne": nil}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []*domain.LocalUser
	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		users = append(users, doc.toDomain())
	}
	return users, cur.Err()
}

// userIndexModels returns the indexes the repository queries rely on.
// The (provider, subject) pair is unique for linked identities; the
// partial filter keeps legacy records without provider linkage out of
// the uniqueness constraint.
func userIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "provider", Value: 1}, {Key: "subject", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "provider", Value: bson.D{{Key: "$gt", Value: ""}}},
					{Key: "subject", Value: bson.D{{Key: "$gt", Value: ""}}},
				}),
		},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}
}

// EnsureIndexes creates the indexes the repository queries rely on.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, userIndexModels())
	return err
}
