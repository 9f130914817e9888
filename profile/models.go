package profile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"vetcare/apperrors"
)

// Kind distinguishes the two actor types that hold credentials. Email
// uniqueness is scoped per kind.
type Kind string

const (
	KindAccount      Kind = "account"
	KindProfessional Kind = "professional"
)

// Relation names an association to populate when loading an aggregate.
type Relation int

const (
	RelSchedules Relation = iota + 1
	RelSpecies
	RelPets
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Account is a pet owner. It mirrors the accounts table and should not carry
// JSON annotations so presentation layers can shape it themselves.
type Account struct {
	ID           int64
	Name         string
	Surname      string
	Email        string
	Phone        string
	PasswordHash string
	PetIDs       []int64
}

// Professional is a veterinarian together with the schedule entries it owns
// and the species it treats.
type Professional struct {
	ID           int64
	License      string
	Name         string
	Surname      string
	Address      string
	Phone        string
	Email        string
	PasswordHash string
	// Rating is nil until at least one rating exists.
	Rating    *float64
	Schedules []ScheduleEntry
	Species   []Species
}

// ScheduleEntry is one working window. Start and End are HH:MM.
type ScheduleEntry struct {
	ID             int64
	ProfessionalID int64
	Day            string
	Start          string
	End            string
}

// Species is a reference record shared by many professionals.
type Species struct {
	ID   int64
	Name string
}

// NormalizeEmail trims and lower-cases an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseID converts an external identifier into a record id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("profile: id %q: %w", raw, apperrors.ErrMalformedInput)
	}
	return id, nil
}
