package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vetcare/account"
	"vetcare/apperrors"
	"vetcare/professional"
	"vetcare/rating"
)

// Faults counts errors an actor did not expect. Under chaos these are
// connection failures; without it any fault is a bug.
type Faults struct {
	n    atomic.Int64
	last atomic.Value
}

func (f *Faults) record(actor string, err error) {
	f.n.Add(1)
	f.last.Store(fmt.Sprintf("%s: %v", actor, err))
}

// Count returns the number of unexpected errors.
func (f *Faults) Count() int64 { return f.n.Load() }

// Last describes the most recent unexpected error.
func (f *Faults) Last() string {
	if v, ok := f.last.Load().(string); ok {
		return v
	}
	return ""
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Registrant races other registrants for a small set of emails. Only one
// registration per email may ever succeed.
func Registrant(ctx context.Context, svc *account.Service, emails []string, faults *Faults, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		email := emails[rand.Intn(len(emails))]
		_, err := svc.Register(ctx, account.RegisterInput{
			Name:     "Stress",
			Surname:  "Owner",
			Email:    email,
			Password: "stress-pass",
		})
		switch {
		case err == nil, errors.Is(err, apperrors.ErrDuplicateEmail):
		case canceled(err):
			return nil
		default:
			faults.record("registrant", err)
		}
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
	return nil
}

// Creator builds professionals, sometimes with malformed schedule times that
// must be rejected without leaving rows behind.
func Creator(ctx context.Context, b *professional.Builder, emails []string, speciesIDs []int64, faults *Faults, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		start := "09:00"
		malformed := rand.Intn(4) == 0
		if malformed {
			start = []string{"9:00", "09-00", "0900", " 9:0 "}[rand.Intn(4)]
		}
		_, err := b.Create(ctx, professional.CreateRequest{
			License:  fmt.Sprintf("MP-%d", rand.Intn(100000)),
			Name:     "Stress",
			Surname:  "Vet",
			Email:    emails[rand.Intn(len(emails))],
			Password: "stress-pass",
			Schedules: []professional.ScheduleInput{
				{Day: "Lunes", Start: start, End: "13:00"},
				{Day: "Jueves", Start: "15:00", End: "19:00"},
			},
			SpeciesIDs: []int64{speciesIDs[rand.Intn(len(speciesIDs))]},
		})
		switch {
		case err == nil && malformed:
			faults.record("creator", fmt.Errorf("malformed start %q accepted", start))
		case err == nil, errors.Is(err, apperrors.ErrDuplicateEmail):
		case malformed && errors.Is(err, apperrors.ErrInvalidTimeFormat):
		case canceled(err):
			return nil
		default:
			faults.record("creator", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
	return nil
}

// Rater stores a rating for a random professional and recomputes its
// aggregate, contending with other raters on the same rows.
func Rater(ctx context.Context, pool *pgxpool.Pool, agg *rating.Aggregator, emails []string, faults *Faults, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		var id int64
		err := pool.QueryRow(ctx, `SELECT id FROM professionals WHERE email = $1`, emails[rand.Intn(len(emails))]).Scan(&id)
		if err != nil {
			// not created yet
			time.Sleep(20 * time.Millisecond)
			continue
		}
		if _, err := pool.Exec(ctx, `INSERT INTO ratings (professional_id, score) VALUES ($1, $2)`, id, 1+rand.Intn(5)); err != nil {
			if canceled(err) {
				return nil
			}
			faults.record("rater insert", err)
			continue
		}
		if _, err := agg.Recompute(ctx, id); err != nil {
			if canceled(err) {
				return nil
			}
			faults.record("rater recompute", err)
		}
		time.Sleep(time.Duration(5+rand.Intn(10)) * time.Millisecond)
	}
	return nil
}
