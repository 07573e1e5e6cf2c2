package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestIssueAndRedeem(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	token, err := s.Issue(ctx, KindRegistration, userID, DefaultRegistrationTTL)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := s.Redeem(ctx, KindRegistration, token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestRedeemIsOneShot(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	token, err := s.Issue(ctx, KindPasswordReset, primitive.NewObjectID(), DefaultPasswordResetTTL)
	require.NoError(t, err)

	_, err = s.Redeem(ctx, KindPasswordReset, token)
	require.NoError(t, err)

	_, err = s.Redeem(ctx, KindPasswordReset, token)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRedeemWrongKind(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	token, err := s.Issue(ctx, KindRegistration, primitive.NewObjectID(), time.Hour)
	require.NoError(t, err)

	// Namespaces do not cross.
	_, err = s.Redeem(ctx, KindPasswordReset, token)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRedeemExpired(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	token, err := s.Issue(ctx, KindPasswordReset, primitive.NewObjectID(), time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = s.Redeem(ctx, KindPasswordReset, token)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRevoke(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	token, err := s.Issue(ctx, KindRegistration, primitive.NewObjectID(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Revoke(ctx, KindRegistration, token))

	_, err = s.Redeem(ctx, KindRegistration, token)
	assert.True(t, apperrors.IsNotFound(err))

	// Revoking an unknown token is a no-op.
	assert.NoError(t, s.Revoke(ctx, KindRegistration, "missing"))
}
