package store

import (
	"context"
	"fmt"
	"strings"
)

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema migrations to apply.
// Each must be idempotent (use IF NOT EXISTS, IF EXISTS, etc.).
var migrations = []migration{
	{
		name:  "add transcripts.language",
		sql:   `ALTER TABLE transcripts ADD COLUMN language TEXT NOT NULL DEFAULT ''`,
		check: `SELECT EXISTS (SELECT 1 FROM pragma_table_info('transcripts') WHERE name = 'language')`,
	},
	{
		name:  "add unique segment ordinal index",
		sql:   `CREATE UNIQUE INDEX IF NOT EXISTS uq_segments_transcript_ordinal ON segments (transcript_id, segment_index)`,
		check: `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'index' AND name = 'uq_segments_transcript_ordinal')`,
	},
}

// Migrate runs all pending schema migrations.
// For each migration, it first checks whether the change is already present.
// If not, it attempts to apply it. If the apply fails, the error is returned
// and the caller should treat it as fatal since the queries depend on these
// columns existing.
func (db *DB) Migrate(ctx context.Context) error {
	var pending []migration
	for _, m := range migrations {
		if m.check != "" {
			var exists bool
			if err := db.sql.QueryRowContext(ctx, m.check).Scan(&exists); err == nil && exists {
				continue
			}
		}
		pending = append(pending, m)
	}

	if len(pending) == 0 {
		return nil
	}

	applied := 0
	for _, m := range pending {
		if _, err := db.sql.ExecContext(ctx, m.sql); err != nil {
			return &MigrationError{
				failed:  m,
				pending: pending[applied:],
				err:     err,
			}
		}
		db.log.Info().Str("migration", m.name).Msg("schema migration applied")
		applied++
	}
	db.log.Info().Int("applied", applied).Msg("schema migrations complete")
	return nil
}

// MigrationError is returned when a migration fails.
// It includes the SQL needed to apply all remaining migrations manually.
type MigrationError struct {
	failed  migration
	pending []migration
	err     error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration %q failed: %v\n\n", e.failed.name, e.err)
	b.WriteString("Run the following SQL against the store file to fix this:\n\n")
	for _, m := range e.pending {
		fmt.Fprintf(&b, "  %s;\n", m.sql)
	}
	b.WriteString("\nThen restart lectern.")
	return b.String()
}

func (e *MigrationError) Unwrap() error {
	return e.err
}
