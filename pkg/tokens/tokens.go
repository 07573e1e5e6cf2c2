// Package tokens issues and redeems the single-use tokens of the account
// flows: registration invites and password resets. Tokens are opaque uuids
// living in redis under a TTL; redemption is atomic, so a token can never be
// consumed twice.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
)

// Kind separates token namespaces.
type Kind string

const (
	KindRegistration  Kind = "registration"
	KindPasswordReset Kind = "password_reset"
)

// Default lifetimes, mirrored by the config package.
const (
	DefaultRegistrationTTL  = 72 * time.Hour
	DefaultPasswordResetTTL = 30 * time.Minute
)

// Store issues and redeems tokens.
type Store struct {
	client *redis.Client
}

// New wraps a redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(kind Kind, token string) string {
	return fmt.Sprintf("token:%s:%s", kind, token)
}

// Issue creates a token of the given kind bound to userID, valid for ttl.
func (s *Store) Issue(ctx context.Context, kind Kind, userID primitive.ObjectID, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, key(kind, token), userID.Hex(), ttl).Err(); err != nil {
		return "", apperrors.StorageFailure("issue token", err)
	}
	return token, nil
}

// Redeem consumes a token and returns the user it was bound to. The
// delete-on-read is atomic; a second redemption, or a redemption after
// expiry, is NotFound.
func (s *Store) Redeem(ctx context.Context, kind Kind, token string) (primitive.ObjectID, error) {
	val, err := s.client.GetDel(ctx, key(kind, token)).Result()
	if errors.Is(err, redis.Nil) {
		return primitive.NilObjectID, fmt.Errorf("token: %w", apperrors.NotFound("unknown or expired token"))
	}
	if err != nil {
		return primitive.NilObjectID, apperrors.StorageFailure("redeem token", err)
	}
	userID, err := primitive.ObjectIDFromHex(val)
	if err != nil {
		return primitive.NilObjectID, apperrors.StorageFailure("decode token payload", err)
	}
	return userID, nil
}

// Revoke invalidates an outstanding token without redeeming it.
func (s *Store) Revoke(ctx context.Context, kind Kind, token string) error {
	if err := s.client.Del(ctx, key(kind, token)).Err(); err != nil {
		return apperrors.StorageFailure("revoke token", err)
	}
	return nil
}
