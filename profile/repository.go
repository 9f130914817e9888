package profile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"vetcare/apperrors"
)

// Repository persists accounts, professionals and the records they reference.
// Every method runs inside the caller's transaction.
type Repository interface {
	EmailInUse(ctx context.Context, tx pgx.Tx, kind Kind, email string) (bool, error)

	FindAccount(ctx context.Context, tx pgx.Tx, id int64, rels ...Relation) (Account, error)
	FindAccountByEmail(ctx context.Context, tx pgx.Tx, email string) (Account, error)
	SaveAccount(ctx context.Context, tx pgx.Tx, account *Account) error
	DeleteAccount(ctx context.Context, tx pgx.Tx, id int64) error

	FindProfessional(ctx context.Context, tx pgx.Tx, id int64, rels ...Relation) (Professional, error)
	FindProfessionalByEmail(ctx context.Context, tx pgx.Tx, email string) (Professional, error)
	SaveProfessional(ctx context.Context, tx pgx.Tx, p *Professional) error
	DeleteProfessional(ctx context.Context, tx pgx.Tx, id int64) error
	ListProfessionalsBySpecies(ctx context.Context, tx pgx.Tx, speciesID int64, rels ...Relation) ([]Professional, error)

	ResolveSpecies(ctx context.Context, tx pgx.Tx, ids []int64) ([]Species, error)

	LockProfessional(ctx context.Context, tx pgx.Tx, id int64) error
	ListRatingScores(ctx context.Context, tx pgx.Tx, professionalID int64) ([]int, error)
	SetProfessionalRating(ctx context.Context, tx pgx.Tx, id int64, rating *float64) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct{}

// NewRepository creates a PostgreSQL-backed profile repository.
func NewRepository() *PGRepository {
	return &PGRepository{}
}

const uniqueViolation = "23505"

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperrors.ErrDuplicateEmail
	}
	return fmt.Errorf("profile: %s: %w", op, err)
}

func mapReadErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	return fmt.Errorf("profile: %s: %w", op, err)
}

// EmailInUse reports whether email is registered for the given kind.
func (r *PGRepository) EmailInUse(ctx context.Context, tx pgx.Tx, kind Kind, email string) (bool, error) {
	var query string
	switch kind {
	case KindAccount:
		query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`
	case KindProfessional:
		query = `SELECT EXISTS (SELECT 1 FROM professionals WHERE email = $1)`
	default:
		return false, fmt.Errorf("profile: unknown kind %q", kind)
	}

	var exists bool
	if err := tx.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("profile: email in use: %w", err)
	}
	return exists, nil
}

const accountColumns = `id, name, surname, email, phone, password_hash`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Surname, &a.Email, &a.Phone, &a.PasswordHash)
	return a, err
}

// FindAccount loads an account by id. RelPets fills PetIDs.
func (r *PGRepository) FindAccount(ctx context.Context, tx pgx.Tx, id int64, rels ...Relation) (Account, error) {
	a, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return Account{}, mapReadErr("find account", err)
	}
	if slices.Contains(rels, RelPets) {
		if a.PetIDs, err = r.petIDs(ctx, tx, a.ID); err != nil {
			return Account{}, err
		}
	}
	return a, nil
}

// FindAccountByEmail loads an account by its normalized email.
func (r *PGRepository) FindAccountByEmail(ctx context.Context, tx pgx.Tx, email string) (Account, error) {
	a, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err != nil {
		return Account{}, mapReadErr("find account by email", err)
	}
	return a, nil
}

func (r *PGRepository) petIDs(ctx context.Context, tx pgx.Tx, ownerID int64) ([]int64, error) {
	rows, err := tx.Query(ctx, `SELECT id FROM pets WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("profile: list pets: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("profile: list pets: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// SaveAccount inserts the account when ID is zero and updates it otherwise.
// Pets are owned by the pets table and are not written here.
func (r *PGRepository) SaveAccount(ctx context.Context, tx pgx.Tx, a *Account) error {
	if a.ID == 0 {
		const insertSQL = `
			INSERT INTO accounts (name, surname, email, phone, password_hash)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`
		if err := tx.QueryRow(ctx, insertSQL, a.Name, a.Surname, a.Email, a.Phone, a.PasswordHash).Scan(&a.ID); err != nil {
			return mapWriteErr("insert account", err)
		}
		return nil
	}

	const updateSQL = `
		UPDATE accounts
		SET name = $2, surname = $3, email = $4, phone = $5, password_hash = $6, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, updateSQL, a.ID, a.Name, a.Surname, a.Email, a.Phone, a.PasswordHash)
	if err != nil {
		return mapWriteErr("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteAccount removes an account; its pets cascade.
func (r *PGRepository) DeleteAccount(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("profile: delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

const professionalColumns = `id, license, name, surname, address, phone, email, password_hash, rating`

func scanProfessional(row pgx.Row) (Professional, error) {
	var p Professional
	err := row.Scan(&p.ID, &p.License, &p.Name, &p.Surname, &p.Address, &p.Phone, &p.Email, &p.PasswordHash, &p.Rating)
	return p, err
}

// FindProfessional loads a professional by id with the requested relations.
func (r *PGRepository) FindProfessional(ctx context.Context, tx pgx.Tx, id int64, rels ...Relation) (Professional, error) {
	p, err := scanProfessional(tx.QueryRow(ctx, `SELECT `+professionalColumns+` FROM professionals WHERE id = $1`, id))
	if err != nil {
		return Professional{}, mapReadErr("find professional", err)
	}
	if err := r.populate(ctx, tx, &p, rels); err != nil {
		return Professional{}, err
	}
	return p, nil
}

// FindProfessionalByEmail loads a professional by its normalized email.
func (r *PGRepository) FindProfessionalByEmail(ctx context.Context, tx pgx.Tx, email string) (Professional, error) {
	p, err := scanProfessional(tx.QueryRow(ctx, `SELECT `+professionalColumns+` FROM professionals WHERE email = $1`, email))
	if err != nil {
		return Professional{}, mapReadErr("find professional by email", err)
	}
	return p, nil
}

// ListProfessionalsBySpecies returns every professional linked to the species, ordered by id.
func (r *PGRepository) ListProfessionalsBySpecies(ctx context.Context, tx pgx.Tx, speciesID int64, rels ...Relation) ([]Professional, error) {
	const listSQL = `
		SELECT p.id, p.license, p.name, p.surname, p.address, p.phone, p.email, p.password_hash, p.rating
		FROM professionals p
		JOIN professional_species ps ON ps.professional_id = p.id
		WHERE ps.species_id = $1
		ORDER BY p.id
	`
	rows, err := tx.Query(ctx, listSQL, speciesID)
	if err != nil {
		return nil, fmt.Errorf("profile: list professionals: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Professional, error) {
		return scanProfessional(row)
	})
	if err != nil {
		return nil, fmt.Errorf("profile: list professionals: %w", err)
	}

	for i := range out {
		if err := r.populate(ctx, tx, &out[i], rels); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PGRepository) populate(ctx context.Context, tx pgx.Tx, p *Professional, rels []Relation) error {
	if slices.Contains(rels, RelSchedules) {
		rows, err := tx.Query(ctx, `
			SELECT id, professional_id, day, start_time, end_time
			FROM schedule_entries WHERE professional_id = $1 ORDER BY id`, p.ID)
		if err != nil {
			return fmt.Errorf("profile: load schedules: %w", err)
		}
		p.Schedules, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (ScheduleEntry, error) {
			var s ScheduleEntry
			err := row.Scan(&s.ID, &s.ProfessionalID, &s.Day, &s.Start, &s.End)
			return s, err
		})
		if err != nil {
			return fmt.Errorf("profile: load schedules: %w", err)
		}
	}

	if slices.Contains(rels, RelSpecies) {
		rows, err := tx.Query(ctx, `
			SELECT s.id, s.name
			FROM species s
			JOIN professional_species ps ON ps.species_id = s.id
			WHERE ps.professional_id = $1
			ORDER BY s.id`, p.ID)
		if err != nil {
			return fmt.Errorf("profile: load species: %w", err)
		}
		p.Species, err = pgx.CollectRows(rows, scanSpecies)
		if err != nil {
			return fmt.Errorf("profile: load species: %w", err)
		}
	}
	return nil
}

// SaveProfessional inserts or updates the professional and replaces its
// schedule entries and species links, all within tx. Schedule ids are
// assigned on the entries in place.
func (r *PGRepository) SaveProfessional(ctx context.Context, tx pgx.Tx, p *Professional) error {
	if p.ID == 0 {
		const insertSQL = `
			INSERT INTO professionals (license, name, surname, address, phone, email, password_hash, rating)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		err := tx.QueryRow(ctx, insertSQL, p.License, p.Name, p.Surname, p.Address, p.Phone, p.Email, p.PasswordHash, p.Rating).Scan(&p.ID)
		if err != nil {
			return mapWriteErr("insert professional", err)
		}
	} else {
		const updateSQL = `
			UPDATE professionals
			SET license = $2, name = $3, surname = $4, address = $5, phone = $6, email = $7,
			    password_hash = $8, updated_at = NOW()
			WHERE id = $1
		`
		tag, err := tx.Exec(ctx, updateSQL, p.ID, p.License, p.Name, p.Surname, p.Address, p.Phone, p.Email, p.PasswordHash)
		if err != nil {
			return mapWriteErr("update professional", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM schedule_entries WHERE professional_id = $1`, p.ID); err != nil {
			return fmt.Errorf("profile: clear schedules: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM professional_species WHERE professional_id = $1`, p.ID); err != nil {
			return fmt.Errorf("profile: clear species links: %w", err)
		}
	}

	const scheduleSQL = `
		INSERT INTO schedule_entries (professional_id, day, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	for i := range p.Schedules {
		s := &p.Schedules[i]
		s.ProfessionalID = p.ID
		if err := tx.QueryRow(ctx, scheduleSQL, p.ID, s.Day, s.Start, s.End).Scan(&s.ID); err != nil {
			return fmt.Errorf("profile: insert schedule %d: %w", i, err)
		}
	}

	if len(p.Species) > 0 {
		ids := make([]int64, len(p.Species))
		for i, s := range p.Species {
			ids[i] = s.ID
		}
		const linkSQL = `
			INSERT INTO professional_species (professional_id, species_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING
		`
		if _, err := tx.Exec(ctx, linkSQL, p.ID, ids); err != nil {
			return fmt.Errorf("profile: link species: %w", err)
		}
	}
	return nil
}

// DeleteProfessional removes the professional. Schedules, species links and
// ratings cascade.
func (r *PGRepository) DeleteProfessional(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM professionals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("profile: delete professional: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanSpecies(row pgx.CollectableRow) (Species, error) {
	var s Species
	err := row.Scan(&s.ID, &s.Name)
	return s, err
}

// ResolveSpecies returns the species that exist among ids. Missing ids are
// simply absent from the result.
func (r *PGRepository) ResolveSpecies(ctx context.Context, tx pgx.Tx, ids []int64) ([]Species, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := tx.Query(ctx, `SELECT id, name FROM species WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("profile: resolve species: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanSpecies)
	if err != nil {
		return nil, fmt.Errorf("profile: resolve species: %w", err)
	}
	return out, nil
}

// LockProfessional takes a row lock on the professional for the rest of tx.
func (r *PGRepository) LockProfessional(ctx context.Context, tx pgx.Tx, id int64) error {
	var got int64
	if err := tx.QueryRow(ctx, `SELECT id FROM professionals WHERE id = $1 FOR UPDATE`, id).Scan(&got); err != nil {
		return mapReadErr("lock professional", err)
	}
	return nil
}

// ListRatingScores returns every stored score for the professional.
func (r *PGRepository) ListRatingScores(ctx context.Context, tx pgx.Tx, professionalID int64) ([]int, error) {
	rows, err := tx.Query(ctx, `SELECT score FROM ratings WHERE professional_id = $1`, professionalID)
	if err != nil {
		return nil, fmt.Errorf("profile: list ratings: %w", err)
	}
	scores, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("profile: list ratings: %w", err)
	}
	return scores, nil
}

// SetProfessionalRating stores the aggregate rating; nil clears it.
func (r *PGRepository) SetProfessionalRating(ctx context.Context, tx pgx.Tx, id int64, rating *float64) error {
	tag, err := tx.Exec(ctx, `UPDATE professionals SET rating = $2, updated_at = NOW() WHERE id = $1`, id, rating)
	if err != nil {
		return fmt.Errorf("profile: set rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
