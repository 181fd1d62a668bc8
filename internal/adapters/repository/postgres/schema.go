package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var requiredTables = []string{"votes", "submissions", "reset_requests"}

// CheckSchema fails when a migration has not been applied.
func CheckSchema(ctx context.Context, db *sqlx.DB) error {
	var present []string
	query := `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ANY($1)`
	if err := db.SelectContext(ctx, &present, query, pq.StringArray(requiredTables)); err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	have := make(map[string]bool, len(present))
	for _, t := range present {
		have[t] = true
	}
	var missing []string
	for _, t := range requiredTables {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tables %s: run cmd/migrations", strings.Join(missing, ", "))
	}
	return nil
}
