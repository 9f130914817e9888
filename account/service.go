package account

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vetcare/apperrors"
	"vetcare/logging"
	"vetcare/profile"
)

// Service handles pet-owner accounts: registration, login and maintenance.
type Service struct {
	pool   profile.TxBeginner
	repo   profile.Repository
	creds  Credentials
	logger *zap.Logger
}

// NewService creates a new account service.
func NewService(pool profile.TxBeginner, repo profile.Repository, creds Credentials, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pool:   pool,
		repo:   repo,
		creds:  creds,
		logger: logger.Named("account"),
	}
}

// Register creates a new account with an empty pet collection.
func (s *Service) Register(ctx context.Context, in RegisterInput) (profile.Account, error) {
	email := profile.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return profile.Account{}, fmt.Errorf("account: email and password are required: %w", apperrors.ErrMalformedInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return profile.Account{}, fmt.Errorf("account: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inUse, err := s.repo.EmailInUse(ctx, tx, profile.KindAccount, email)
	if err != nil {
		return profile.Account{}, err
	}
	if inUse {
		return profile.Account{}, apperrors.ErrDuplicateEmail
	}

	digest, err := s.creds.Hash(ctx, in.Password)
	if err != nil {
		return profile.Account{}, err
	}

	acc := profile.Account{
		Name:         in.Name,
		Surname:      in.Surname,
		Email:        email,
		Phone:        in.Phone,
		PasswordHash: digest,
		PetIDs:       []int64{},
	}
	if err := s.repo.SaveAccount(ctx, tx, &acc); err != nil {
		return profile.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return profile.Account{}, fmt.Errorf("account: commit: %w", err)
	}

	s.logger.Info("account registered", zap.Int64("account_id", acc.ID), logging.Email("email", email))
	return acc, nil
}

// Authenticate verifies the password for email and issues a session token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (AuthResult, error) {
	email = profile.NormalizeEmail(email)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AuthResult{}, fmt.Errorf("account: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	acc, err := s.repo.FindAccountByEmail(ctx, tx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return AuthResult{}, apperrors.ErrAccountNotFound
		}
		return AuthResult{}, err
	}

	ok, err := s.creds.Verify(ctx, password, acc.PasswordHash)
	if err != nil {
		s.logger.Error("stored credential unreadable", zap.Int64("account_id", acc.ID), zap.Error(err))
		return AuthResult{}, err
	}
	if !ok {
		return AuthResult{}, apperrors.ErrInvalidCredential
	}

	token, err := s.creds.IssueToken(acc.ID, acc.Email)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Email: acc.Email, Token: token, AccountID: acc.ID}, nil
}

// Get returns the account with its pet references.
func (s *Service) Get(ctx context.Context, id int64) (profile.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return profile.Account{}, fmt.Errorf("account: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	return s.repo.FindAccount(ctx, tx, id, profile.RelPets)
}

// Update overwrites only the supplied fields. A new password is hashed and a
// new email must not belong to another account.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (profile.Account, error) {
	if patch.Email != nil && profile.NormalizeEmail(*patch.Email) == "" {
		return profile.Account{}, fmt.Errorf("account: email must not be empty: %w", apperrors.ErrMalformedInput)
	}
	if patch.Password != nil && *patch.Password == "" {
		return profile.Account{}, fmt.Errorf("account: password must not be empty: %w", apperrors.ErrMalformedInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return profile.Account{}, fmt.Errorf("account: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	acc, err := s.repo.FindAccount(ctx, tx, id, profile.RelPets)
	if err != nil {
		return profile.Account{}, err
	}

	if patch.Name != nil {
		acc.Name = *patch.Name
	}
	if patch.Surname != nil {
		acc.Surname = *patch.Surname
	}
	if patch.Phone != nil {
		acc.Phone = *patch.Phone
	}
	if patch.Email != nil {
		email := profile.NormalizeEmail(*patch.Email)
		if email != acc.Email {
			inUse, err := s.repo.EmailInUse(ctx, tx, profile.KindAccount, email)
			if err != nil {
				return profile.Account{}, err
			}
			if inUse {
				return profile.Account{}, apperrors.ErrDuplicateEmail
			}
			acc.Email = email
		}
	}
	if patch.Password != nil {
		digest, err := s.creds.Hash(ctx, *patch.Password)
		if err != nil {
			return profile.Account{}, err
		}
		acc.PasswordHash = digest
	}

	if err := s.repo.SaveAccount(ctx, tx, &acc); err != nil {
		return profile.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return profile.Account{}, fmt.Errorf("account: commit: %w", err)
	}
	return acc, nil
}

// Remove deletes the account without loading it first.
func (s *Service) Remove(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("account: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.DeleteAccount(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("account: commit: %w", err)
	}
	s.logger.Info("account removed", zap.Int64("account_id", id))
	return nil
}
