package account

import "context"

// RegisterInput carries the fields needed to open an account.
type RegisterInput struct {
	Name     string
	Surname  string
	Email    string
	Phone    string
	Password string
}

// Patch lists the fields an update may overwrite. Nil means "not supplied".
type Patch struct {
	Name     *string
	Surname  *string
	Email    *string
	Phone    *string
	Password *string
}

// AuthResult is returned after a successful login.
type AuthResult struct {
	Email     string
	Token     string
	AccountID int64
}

// Credentials is the subset of credential.Manager the service depends on.
type Credentials interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
	IssueToken(subjectID int64, email string) (string, error)
}
