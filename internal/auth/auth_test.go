package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestBcryptHasher(t *testing.T) {
	ctx := context.Background()
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash(ctx, "s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	ok, err := h.Compare(ctx, "s3cret", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(ctx, "wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Compare(ctx, "s3cret", "not-a-hash")
	require.Error(t, err)
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).Cost)
	assert.Equal(t, 12, NewBcryptHasher(12).Cost)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenConfig{Secret: testSecret, Issuer: "model-graphql", TTL: time.Hour})
	require.NoError(t, err)

	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	subject, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestTokenRejections(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenConfig{Secret: testSecret, Issuer: "model-graphql", TTL: time.Hour})
	require.NoError(t, err)

	_, err = issuer.Verify("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokenIssuer(TokenConfig{Secret: []byte("ffffffffffffffffffffffffffffffff"), Issuer: "model-graphql"})
	require.NoError(t, err)
	foreign, err := other.Issue("user-1")
	require.NoError(t, err)
	_, err = issuer.Verify(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := issuer.Issue("user-1")
	require.NoError(t, err)
	issuer.now = time.Now
	_, err = issuer.Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Issue("")
	require.Error(t, err)
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer(TokenConfig{Secret: []byte("short")})
	require.Error(t, err)
}
