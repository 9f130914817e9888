package professional

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"vetcare/apperrors"
	"vetcare/logging"
	"vetcare/profile"
)

var clockTime = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Builder creates and maintains professional aggregates: the professional,
// its schedule entries and its species links.
type Builder struct {
	pool   profile.TxBeginner
	repo   profile.Repository
	hasher Hasher
	logger *zap.Logger
}

// NewBuilder creates a new professional builder.
func NewBuilder(pool profile.TxBeginner, repo profile.Repository, hasher Hasher, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		pool:   pool,
		repo:   repo,
		hasher: hasher,
		logger: logger.Named("professional"),
	}
}

// Create validates and persists a professional together with its schedule
// entries and species links in one transaction. Any failure persists nothing.
func (b *Builder) Create(ctx context.Context, req CreateRequest) (profile.Professional, error) {
	email := profile.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return profile.Professional{}, fmt.Errorf("professional: email and password are required: %w", apperrors.ErrMalformedInput)
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return profile.Professional{}, fmt.Errorf("professional: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inUse, err := b.repo.EmailInUse(ctx, tx, profile.KindProfessional, email)
	if err != nil {
		return profile.Professional{}, err
	}
	if inUse {
		return profile.Professional{}, apperrors.ErrDuplicateEmail
	}

	schedules, err := buildSchedules(req.Schedules)
	if err != nil {
		return profile.Professional{}, err
	}

	digest, err := b.hasher.Hash(ctx, req.Password)
	if err != nil {
		return profile.Professional{}, err
	}

	species, err := b.resolveSpecies(ctx, tx, req.SpeciesIDs)
	if err != nil {
		return profile.Professional{}, err
	}

	p := profile.Professional{
		License:      req.License,
		Name:         req.Name,
		Surname:      req.Surname,
		Address:      req.Address,
		Phone:        req.Phone,
		Email:        email,
		PasswordHash: digest,
		Schedules:    schedules,
		Species:      species,
	}
	if err := b.repo.SaveProfessional(ctx, tx, &p); err != nil {
		return profile.Professional{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return profile.Professional{}, fmt.Errorf("professional: commit: %w", err)
	}

	b.logger.Info("professional created",
		zap.Int64("professional_id", p.ID),
		logging.Email("email", email),
		zap.Int("schedules", len(p.Schedules)),
		zap.Int("species", len(p.Species)),
	)
	return p, nil
}

// Update overwrites only the supplied fields under a row lock. Replacement
// schedules and species are validated exactly as in Create, and any failure
// persists nothing.
func (b *Builder) Update(ctx context.Context, id int64, patch Patch) (profile.Professional, error) {
	if patch.Email != nil && profile.NormalizeEmail(*patch.Email) == "" {
		return profile.Professional{}, fmt.Errorf("professional: email must not be empty: %w", apperrors.ErrMalformedInput)
	}
	if patch.Password != nil && *patch.Password == "" {
		return profile.Professional{}, fmt.Errorf("professional: password must not be empty: %w", apperrors.ErrMalformedInput)
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return profile.Professional{}, fmt.Errorf("professional: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := b.repo.LockProfessional(ctx, tx, id); err != nil {
		return profile.Professional{}, err
	}
	p, err := b.repo.FindProfessional(ctx, tx, id, profile.RelSchedules, profile.RelSpecies)
	if err != nil {
		return profile.Professional{}, err
	}

	assign(&p.License, patch.License)
	assign(&p.Name, patch.Name)
	assign(&p.Surname, patch.Surname)
	assign(&p.Address, patch.Address)
	assign(&p.Phone, patch.Phone)

	if patch.Email != nil {
		email := profile.NormalizeEmail(*patch.Email)
		if email != p.Email {
			inUse, err := b.repo.EmailInUse(ctx, tx, profile.KindProfessional, email)
			if err != nil {
				return profile.Professional{}, err
			}
			if inUse {
				return profile.Professional{}, apperrors.ErrDuplicateEmail
			}
			p.Email = email
		}
	}

	if patch.Schedules != nil {
		schedules, err := buildSchedules(patch.Schedules)
		if err != nil {
			return profile.Professional{}, err
		}
		p.Schedules = schedules
	}

	if patch.Password != nil {
		digest, err := b.hasher.Hash(ctx, *patch.Password)
		if err != nil {
			return profile.Professional{}, err
		}
		p.PasswordHash = digest
	}

	if patch.SpeciesIDs != nil {
		species, err := b.resolveSpecies(ctx, tx, patch.SpeciesIDs)
		if err != nil {
			return profile.Professional{}, err
		}
		p.Species = species
	}

	if err := b.repo.SaveProfessional(ctx, tx, &p); err != nil {
		return profile.Professional{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return profile.Professional{}, fmt.Errorf("professional: commit: %w", err)
	}

	b.logger.Info("professional updated", zap.Int64("professional_id", p.ID))
	return p, nil
}

func assign(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func buildSchedules(in []ScheduleInput) ([]profile.ScheduleEntry, error) {
	out := make([]profile.ScheduleEntry, 0, len(in))
	for i, s := range in {
		start := strings.TrimSpace(s.Start)
		end := strings.TrimSpace(s.End)
		if !clockTime.MatchString(start) {
			return nil, fmt.Errorf("professional: schedule %d start %q: %w", i, s.Start, apperrors.ErrInvalidTimeFormat)
		}
		if !clockTime.MatchString(end) {
			return nil, fmt.Errorf("professional: schedule %d end %q: %w", i, s.End, apperrors.ErrInvalidTimeFormat)
		}
		out = append(out, profile.ScheduleEntry{Day: s.Day, Start: start, End: end})
	}
	return out, nil
}

// resolveSpecies returns the referenced species in request order, dropping
// repeated ids. Every id must exist.
func (b *Builder) resolveSpecies(ctx context.Context, tx pgx.Tx, ids []int64) ([]profile.Species, error) {
	if len(ids) == 0 {
		return []profile.Species{}, nil
	}

	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	found, err := b.repo.ResolveSpecies(ctx, tx, unique)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]profile.Species, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}

	out := make([]profile.Species, 0, len(unique))
	for _, id := range unique {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("professional: species %d: %w", id, apperrors.ErrSpeciesNotFound)
		}
		out = append(out, s)
	}
	return out, nil
}

// Get returns the professional with schedules and species populated.
func (b *Builder) Get(ctx context.Context, id int64) (profile.Professional, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return profile.Professional{}, fmt.Errorf("professional: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	return b.repo.FindProfessional(ctx, tx, id, profile.RelSchedules, profile.RelSpecies)
}

// ListBySpecies returns the professionals that treat the species.
func (b *Builder) ListBySpecies(ctx context.Context, speciesID int64) ([]profile.Professional, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("professional: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	return b.repo.ListProfessionalsBySpecies(ctx, tx, speciesID, profile.RelSchedules, profile.RelSpecies)
}

// Remove deletes the professional. Schedule entries go with it; species stay.
func (b *Builder) Remove(ctx context.Context, id int64) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("professional: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := b.repo.DeleteProfessional(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("professional: commit: %w", err)
	}
	b.logger.Info("professional removed", zap.Int64("professional_id", id))
	return nil
}
