// Package profiletest provides in-memory stand-ins for the profile
// repository and the pgx pool so services can be tested without a database.
package profiletest

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"vetcare/apperrors"
	"vetcare/profile"
)

// Store is an in-memory profile.Repository. Writes made through a *Tx are
// staged and only become visible when the transaction commits.
type Store struct {
	mu            sync.Mutex
	nextID        int64
	accounts      map[int64]profile.Account
	professionals map[int64]profile.Professional
	species       map[int64]profile.Species
	pets          map[int64][]int64
	ratings       map[int64][]int

	// Err, when set, is returned by the named method instead of running it.
	Err map[string]error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		nextID:        1,
		accounts:      make(map[int64]profile.Account),
		professionals: make(map[int64]profile.Professional),
		species:       make(map[int64]profile.Species),
		pets:          make(map[int64][]int64),
		ratings:       make(map[int64][]int),
		Err:           make(map[string]error),
	}
}

func (s *Store) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// AddSpecies registers a species and returns its id.
func (s *Store) AddSpecies(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.species[id] = profile.Species{ID: id, Name: name}
	return id
}

// AddPet attaches a pet to an owner and returns its id.
func (s *Store) AddPet(ownerID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.pets[ownerID] = append(s.pets[ownerID], id)
	return id
}

// AddRating stores a score for a professional.
func (s *Store) AddRating(professionalID int64, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[professionalID] = append(s.ratings[professionalID], score)
}

// AccountCount reports committed accounts.
func (s *Store) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// ProfessionalCount reports committed professionals.
func (s *Store) ProfessionalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.professionals)
}

// Professional returns a committed professional with all relations.
func (s *Store) Professional(id int64) (profile.Professional, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.professionals[id]
	return cloneProfessional(p), ok
}

// Account returns a committed account.
func (s *Store) Account(id int64) (profile.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *Store) stage(tx pgx.Tx, fn func()) {
	if ftx, ok := tx.(*Tx); ok {
		ftx.pending = append(ftx.pending, fn)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Store) fail(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Err[method]
}

func (s *Store) EmailInUse(ctx context.Context, tx pgx.Tx, kind profile.Kind, email string) (bool, error) {
	if err := s.fail("EmailInUse"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emailTaken(kind, email, 0), nil
}

func (s *Store) emailTaken(kind profile.Kind, email string, except int64) bool {
	switch kind {
	case profile.KindAccount:
		for id, a := range s.accounts {
			if a.Email == email && id != except {
				return true
			}
		}
	case profile.KindProfessional:
		for id, p := range s.professionals {
			if p.Email == email && id != except {
				return true
			}
		}
	}
	return false
}

func (s *Store) FindAccount(ctx context.Context, tx pgx.Tx, id int64, rels ...profile.Relation) (profile.Account, error) {
	if err := s.fail("FindAccount"); err != nil {
		return profile.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return profile.Account{}, apperrors.ErrNotFound
	}
	if slices.Contains(rels, profile.RelPets) {
		a.PetIDs = append([]int64{}, s.pets[id]...)
	}
	return a, nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, tx pgx.Tx, email string) (profile.Account, error) {
	if err := s.fail("FindAccountByEmail"); err != nil {
		return profile.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return profile.Account{}, apperrors.ErrNotFound
}

func (s *Store) SaveAccount(ctx context.Context, tx pgx.Tx, a *profile.Account) error {
	if err := s.fail("SaveAccount"); err != nil {
		return err
	}
	s.mu.Lock()
	if s.emailTaken(profile.KindAccount, a.Email, a.ID) {
		s.mu.Unlock()
		return apperrors.ErrDuplicateEmail
	}
	if a.ID == 0 {
		a.ID = s.id()
	} else if _, ok := s.accounts[a.ID]; !ok {
		s.mu.Unlock()
		return apperrors.ErrNotFound
	}
	s.mu.Unlock()

	saved := *a
	saved.PetIDs = nil
	s.stage(tx, func() { s.accounts[saved.ID] = saved })
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, tx pgx.Tx, id int64) error {
	if err := s.fail("DeleteAccount"); err != nil {
		return err
	}
	s.mu.Lock()
	_, ok := s.accounts[id]
	s.mu.Unlock()
	if !ok {
		return apperrors.ErrNotFound
	}
	s.stage(tx, func() {
		delete(s.accounts, id)
		delete(s.pets, id)
	})
	return nil
}

func (s *Store) FindProfessional(ctx context.Context, tx pgx.Tx, id int64, rels ...profile.Relation) (profile.Professional, error) {
	if err := s.fail("FindProfessional"); err != nil {
		return profile.Professional{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.professionals[id]
	if !ok {
		return profile.Professional{}, apperrors.ErrNotFound
	}
	return withRelations(p, rels), nil
}

func (s *Store) FindProfessionalByEmail(ctx context.Context, tx pgx.Tx, email string) (profile.Professional, error) {
	if err := s.fail("FindProfessionalByEmail"); err != nil {
		return profile.Professional{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.professionals {
		if p.Email == email {
			return withRelations(p, nil), nil
		}
	}
	return profile.Professional{}, apperrors.ErrNotFound
}

func (s *Store) SaveProfessional(ctx context.Context, tx pgx.Tx, p *profile.Professional) error {
	if err := s.fail("SaveProfessional"); err != nil {
		return err
	}
	s.mu.Lock()
	if s.emailTaken(profile.KindProfessional, p.Email, p.ID) {
		s.mu.Unlock()
		return apperrors.ErrDuplicateEmail
	}
	if p.ID == 0 {
		p.ID = s.id()
	} else if _, ok := s.professionals[p.ID]; !ok {
		s.mu.Unlock()
		return apperrors.ErrNotFound
	}
	for i := range p.Schedules {
		p.Schedules[i].ID = s.id()
		p.Schedules[i].ProfessionalID = p.ID
	}
	s.mu.Unlock()

	saved := cloneProfessional(*p)
	s.stage(tx, func() { s.professionals[saved.ID] = saved })
	return nil
}

func (s *Store) DeleteProfessional(ctx context.Context, tx pgx.Tx, id int64) error {
	if err := s.fail("DeleteProfessional"); err != nil {
		return err
	}
	s.mu.Lock()
	_, ok := s.professionals[id]
	s.mu.Unlock()
	if !ok {
		return apperrors.ErrNotFound
	}
	s.stage(tx, func() {
		delete(s.professionals, id)
		delete(s.ratings, id)
	})
	return nil
}

func (s *Store) ListProfessionalsBySpecies(ctx context.Context, tx pgx.Tx, speciesID int64, rels ...profile.Relation) ([]profile.Professional, error) {
	if err := s.fail("ListProfessionalsBySpecies"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []profile.Professional{}
	for _, p := range s.professionals {
		for _, sp := range p.Species {
			if sp.ID == speciesID {
				out = append(out, withRelations(p, rels))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ResolveSpecies(ctx context.Context, tx pgx.Tx, ids []int64) ([]profile.Species, error) {
	if err := s.fail("ResolveSpecies"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []profile.Species
	for _, id := range ids {
		if sp, ok := s.species[id]; ok {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (s *Store) LockProfessional(ctx context.Context, tx pgx.Tx, id int64) error {
	if err := s.fail("LockProfessional"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.professionals[id]; !ok {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *Store) ListRatingScores(ctx context.Context, tx pgx.Tx, professionalID int64) ([]int, error) {
	if err := s.fail("ListRatingScores"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int{}, s.ratings[professionalID]...), nil
}

func (s *Store) SetProfessionalRating(ctx context.Context, tx pgx.Tx, id int64, rating *float64) error {
	if err := s.fail("SetProfessionalRating"); err != nil {
		return err
	}
	s.mu.Lock()
	_, ok := s.professionals[id]
	s.mu.Unlock()
	if !ok {
		return apperrors.ErrNotFound
	}
	var stored *float64
	if rating != nil {
		v := *rating
		stored = &v
	}
	s.stage(tx, func() {
		p := s.professionals[id]
		p.Rating = stored
		s.professionals[id] = p
	})
	return nil
}

func withRelations(p profile.Professional, rels []profile.Relation) profile.Professional {
	p = cloneProfessional(p)
	if !slices.Contains(rels, profile.RelSchedules) {
		p.Schedules = nil
	}
	if !slices.Contains(rels, profile.RelSpecies) {
		p.Species = nil
	}
	return p
}

func cloneProfessional(p profile.Professional) profile.Professional {
	if p.Rating != nil {
		v := *p.Rating
		p.Rating = &v
	}
	p.Schedules = append([]profile.ScheduleEntry(nil), p.Schedules...)
	p.Species = append([]profile.Species(nil), p.Species...)
	return p
}

// Pool hands out Tx values bound to a Store.
type Pool struct {
	Store    *Store
	BeginErr error

	mu  sync.Mutex
	txs []*Tx
}

func (p *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.BeginErr != nil {
		return nil, p.BeginErr
	}
	tx := &Tx{store: p.Store}
	p.mu.Lock()
	p.txs = append(p.txs, tx)
	p.mu.Unlock()
	return tx, nil
}

// Last returns the most recently started transaction.
func (p *Pool) Last() *Tx {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.txs) == 0 {
		return nil
	}
	return p.txs[len(p.txs)-1]
}

// Tx records whether it was committed or rolled back and applies staged
// writes on commit.
type Tx struct {
	store     *Store
	pending   []func()
	Committed bool
	Rolled    bool
}

func (f *Tx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("profiletest: nested transactions are not supported")
}

func (f *Tx) Commit(context.Context) error {
	if f.Committed || f.Rolled {
		return pgx.ErrTxClosed
	}
	f.store.mu.Lock()
	for _, fn := range f.pending {
		fn()
	}
	f.store.mu.Unlock()
	f.pending = nil
	f.Committed = true
	return nil
}

func (f *Tx) Rollback(context.Context) error {
	if f.Committed || f.Rolled {
		return pgx.ErrTxClosed
	}
	f.pending = nil
	f.Rolled = true
	return nil
}

func (f *Tx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *Tx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *Tx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *Tx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *Tx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *Tx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *Tx) Conn() *pgx.Conn {
	return nil
}

var (
	_ profile.Repository = (*Store)(nil)
	_ profile.TxBeginner = (*Pool)(nil)
	_ pgx.Tx             = (*Tx)(nil)
)
