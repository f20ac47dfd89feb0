package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenStore_WithoutRedis(t *testing.T) {
	store := NewTokenStore(nil)
	ctx := context.Background()

	assert.NoError(t, store.StoreRefreshToken(ctx, "jti", "user", time.Minute))
	_, err := store.GetRefreshToken(ctx, "jti")
	assert.Error(t, err, "nothing is remembered without redis")

	assert.NoError(t, store.BlacklistAccessToken(ctx, "jti", time.Minute))
	revoked, err := store.IsAccessTokenBlacklisted(ctx, "jti")
	assert.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokenStore_BlacklistIgnoresExpired(t *testing.T) {
	store := NewTokenStore(nil)
	assert.NoError(t, store.BlacklistAccessToken(context.Background(), "jti", -time.Second))
}
