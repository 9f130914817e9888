//go:build integration

package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"vetcare/account"
	"vetcare/credential"
	"vetcare/professional"
	"vetcare/profile"
	"vetcare/rating"
	"vetcare/test/actors"
	"vetcare/test/chaos"
	"vetcare/test/infra"
	"vetcare/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 20*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 6, "number of concurrent actors per role")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
	flChaos       = flag.Bool("chaos", false, "terminate random backends while actors run")
)

func TestVetcareConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test skipped in short mode")
	}
	seed := *flSeed
	rand.Seed(seed)

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+2*time.Minute)
	defer cancel()

	if *flDSN == "" && !dockerAvailable(ctx) {
		t.Skip("docker unavailable and no -dsn given")
	}
	pgC, dsn, err := infra.StartPostgres16(ctx, *flDSN)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, pgC.Shared())
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	species := mustSpecies(t, ctx, pool)

	creds, err := credential.NewManager("stress-secret-stress-secret-stress-secret", bcrypt.MinCost, 4)
	if err != nil {
		t.Fatalf("credential manager: %v", err)
	}
	repo := profile.NewRepository()
	accounts := account.NewService(pool, repo, creds, nil)
	builder := professional.NewBuilder(pool, repo, creds, nil)
	agg := rating.NewAggregator(pool, repo, nil)

	ownerEmails := emails("owner", 5)
	vetEmails := emails("vet", 4)

	var faults actors.Faults
	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error { return actors.Registrant(ctx2, accounts, ownerEmails, &faults, stop) })
		g.Go(func() error { return actors.Creator(ctx2, builder, vetEmails, species, &faults, stop) })
		g.Go(func() error { return actors.Rater(ctx2, pool, agg, vetEmails, &faults, stop) })
	}
	if *flChaos {
		go chaos.TerminateRandomBackend(ctx2, pool, time.Second, stop)
	}

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool, oracles.Continuous())
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				if *flChaos {
					t.Logf("oracle query interrupted: %v", err)
					continue
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				close(stop)
				dumpRecent(t, ctx, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("actors errored: %v", err)
	}

	if n := faults.Count(); n > 0 {
		if !*flChaos {
			t.Fatalf("%d unexpected actor errors, last: %s (seed=%d)", n, faults.Last(), seed)
		}
		t.Logf("%d actor errors under chaos, last: %s", n, faults.Last())
		// a rater killed between insert and recompute leaves a stale aggregate
		recomputeAll(t, ctx, pool, agg)
	}

	for _, set := range [][]oracles.Oracle{oracles.Continuous(), oracles.Quiescent()} {
		name, row, err := oracles.Run(ctx, pool, set)
		if err != nil {
			t.Fatalf("final oracle error: %v", err)
		}
		if name != "" {
			dumpRecent(t, ctx, pool)
			t.Fatalf("Oracle %s failed at rest. First row: %s (seed=%d)", name, row, seed)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

func emails(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d@stress.example.com", prefix, i)
	}
	return out
}

func mustSpecies(t *testing.T, ctx context.Context, pool *pgxpool.Pool) []int64 {
	t.Helper()
	rows, err := pool.Query(ctx, `SELECT id FROM species ORDER BY id`)
	if err != nil {
		t.Fatalf("load species: %v", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil || len(ids) == 0 {
		t.Fatalf("load species: %v (found %d)", err, len(ids))
	}
	return ids
}

func recomputeAll(t *testing.T, ctx context.Context, pool *pgxpool.Pool, agg *rating.Aggregator) {
	t.Helper()
	rows, err := pool.Query(ctx, `SELECT id FROM professionals`)
	if err != nil {
		t.Fatalf("list professionals: %v", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		t.Fatalf("list professionals: %v", err)
	}
	for _, id := range ids {
		if _, err := agg.Recompute(ctx, id); err != nil {
			t.Fatalf("final recompute %d: %v", id, err)
		}
	}
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"professionals", `SELECT id, email, rating FROM professionals ORDER BY id DESC LIMIT 20`},
		{"schedule_entries", `SELECT id, professional_id, day, start_time, end_time FROM schedule_entries ORDER BY id DESC LIMIT 40`},
		{"ratings", `SELECT professional_id, COUNT(*), AVG(score) FROM ratings GROUP BY professional_id`},
		{"accounts", `SELECT id, email FROM accounts ORDER BY id DESC LIMIT 20`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
