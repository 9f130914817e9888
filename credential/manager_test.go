package credential

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vetcare/apperrors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(testSecret, bcrypt.MinCost, 2, opts...)
	require.NoError(t, err)
	return m
}

func TestManager_HashAndVerify(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	digest, err := m.Hash(ctx, "s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", digest)
	assert.True(t, strings.HasPrefix(digest, "$2a$"), "unexpected digest prefix: %s", digest)

	ok, err := m.Verify(ctx, "s3cret-pass", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Verify(ctx, "wrong-pass", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_HashRejectsLongPassword(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Hash(ctx, strings.Repeat("a", 73))
	assert.ErrorIs(t, err, apperrors.ErrPasswordTooLong)

	digest, err := m.Hash(ctx, strings.Repeat("a", 72))
	require.NoError(t, err)
	ok, err := m.Verify(ctx, strings.Repeat("a", 72), digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManager_VerifyMalformedDigest(t *testing.T) {
	m := newTestManager(t)

	for _, digest := range []string{"", "plaintext", "$9x$10$abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz0"} {
		ok, err := m.Verify(context.Background(), "anything", digest)
		assert.False(t, ok)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentialFormat), "digest %q: got %v", digest, err)
	}
}

func TestManager_HashHonorsCancellation(t *testing.T) {
	m, err := NewManager(testSecret, bcrypt.MinCost, 1)
	require.NoError(t, err)

	// hold the only slot so Hash has to wait
	require.NoError(t, m.sem.Acquire(context.Background(), 1))
	defer m.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = m.Hash(ctx, "pw")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_IssueAndParseToken(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	m := newTestManager(t, WithClock(func() time.Time { return clock }))

	token, err := m.IssueToken(42, "ana@example.com")
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, issued.Add(TokenTTL).Unix(), claims.ExpiresAt.Unix())

	id, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	clock = issued.Add(TokenTTL + time.Second)
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestManager_ParseTokenRejectsForeignTokens(t *testing.T) {
	m := newTestManager(t)

	other, err := NewManager("ffffffffffffffffffffffffffffffff", bcrypt.MinCost, 1)
	require.NoError(t, err)
	foreign, err := other.IssueToken(1, "x@example.com")
	require.NoError(t, err)

	_, err = m.ParseToken(foreign)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "x@example.com"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.ParseToken(raw)
	assert.Error(t, err)
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager("", DefaultCost, 1)
	assert.Error(t, err)

	_, err = NewManager(testSecret, 99, 1)
	assert.Error(t, err)

	m, err := NewManager(testSecret, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCost, m.cost)
}
