package professional

import "context"

// CreateRequest carries everything needed to register a professional.
type CreateRequest struct {
	License    string
	Name       string
	Surname    string
	Address    string
	Phone      string
	Email      string
	Password   string
	Schedules  []ScheduleInput
	SpeciesIDs []int64
}

// Patch lists the fields an update may overwrite. Nil means "not supplied".
// A non-nil Schedules or SpeciesIDs replaces the whole collection, so an
// empty slice clears it.
type Patch struct {
	License    *string
	Name       *string
	Surname    *string
	Address    *string
	Phone      *string
	Email      *string
	Password   *string
	Schedules  []ScheduleInput
	SpeciesIDs []int64
}

// ScheduleInput is one working window as supplied by the caller. Start and
// End are trimmed before validation.
type ScheduleInput struct {
	Day   string
	Start string
	End   string
}

// Hasher is the subset of credential.Manager the builder depends on.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
}
