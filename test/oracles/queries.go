package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// Continuous holds while writers are running.
func Continuous() []Oracle {
	return []Oracle{
		{
			Name: "O1_no_orphan_schedules",
			SQL: `SELECT s.* FROM schedule_entries s
                  LEFT JOIN professionals p ON p.id = s.professional_id
                  WHERE p.id IS NULL`,
		},
		{
			Name: "O2_unique_emails",
			SQL: `SELECT 'account' AS kind, email, COUNT(*) FROM accounts GROUP BY email HAVING COUNT(*) > 1
                  UNION ALL
                  SELECT 'professional', email, COUNT(*) FROM professionals GROUP BY email HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_well_formed_times",
			SQL: `SELECT * FROM schedule_entries
                  WHERE start_time !~ '^[0-9]{2}:[0-9]{2}$' OR end_time !~ '^[0-9]{2}:[0-9]{2}$'`,
		},
		{
			Name: "O4_rating_within_scores",
			SQL: `WITH agg AS (
                      SELECT professional_id, MIN(score) AS lo, MAX(score) AS hi
                      FROM ratings GROUP BY professional_id)
                  SELECT p.id, p.rating, agg.lo, agg.hi FROM professionals p
                  LEFT JOIN agg ON agg.professional_id = p.id
                  WHERE p.rating IS NOT NULL
                    AND (agg.professional_id IS NULL OR p.rating < agg.lo OR p.rating > agg.hi)`,
		},
		{
			Name: "O5_schedules_complete",
			SQL: `SELECT p.id, COUNT(s.id) FROM professionals p
                  LEFT JOIN schedule_entries s ON s.professional_id = p.id
                  GROUP BY p.id HAVING COUNT(s.id) <> 2`,
		},
	}
}

// Quiescent holds once every writer has stopped.
func Quiescent() []Oracle {
	return []Oracle{
		{
			Name: "Q1_rating_is_mean",
			SQL: `WITH agg AS (
                      SELECT professional_id, AVG(score)::double precision AS mean
                      FROM ratings GROUP BY professional_id)
                  SELECT p.id, p.rating, agg.mean FROM professionals p
                  LEFT JOIN agg ON agg.professional_id = p.id
                  WHERE (agg.mean IS NULL) <> (p.rating IS NULL)
                     OR ABS(p.rating - agg.mean) > 0.005 + 1e-9`,
		},
	}
}

// Run executes the oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool, set []Oracle) (string, string, error) {
	for _, o := range set {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
