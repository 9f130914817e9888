package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"vetcare/apperrors"
)

const (
	// DefaultCost is the bcrypt cost used when none is configured.
	DefaultCost = 10
	// TokenTTL is the lifetime of an issued session token.
	TokenTTL = time.Hour
)

// Claims is the payload carried by a session token. Subject holds the account id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager hashes and verifies passwords and issues signed session tokens.
// bcrypt work is bounded by a weighted semaphore shared by all callers.
type Manager struct {
	cost   int
	secret []byte
	sem    *semaphore.Weighted
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for token timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a Manager. A cost of zero selects DefaultCost; concurrency
// below one is treated as one.
func NewManager(secret string, cost int, concurrency int64, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("credential: empty signing secret")
	}
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("credential: cost %d out of range", cost)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	m := &Manager{
		cost:   cost,
		secret: []byte(secret),
		sem:    semaphore.NewWeighted(concurrency),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Hash returns the bcrypt digest of plaintext. It blocks while the hashing
// semaphore is exhausted and fails if ctx is done first. Passwords over 72
// bytes fail with ErrPasswordTooLong.
func (m *Manager) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("credential: hash: %w", err)
	}
	defer m.sem.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), m.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("credential: hash: %w", apperrors.ErrPasswordTooLong)
	}
	if err != nil {
		return "", fmt.Errorf("credential: hash: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A mismatch is (false, nil);
// a digest that bcrypt cannot parse fails with ErrInvalidCredentialFormat.
func (m *Manager) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("credential: verify: %w", err)
	}
	defer m.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("credential: verify: %w: %v", apperrors.ErrInvalidCredentialFormat, err)
	}
}

// IssueToken signs an HS256 token for the account that expires after TokenTTL.
func (m *Manager) IssueToken(subjectID int64, email string) (string, error) {
	now := m.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("credential: sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature, algorithm and expiry and returns the claims.
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("credential: parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("credential: invalid token")
	}
	return claims, nil
}

// SubjectID returns the numeric account id carried in Subject.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("credential: subject %q: %w", c.Subject, apperrors.ErrMalformedInput)
	}
	return id, nil
}
