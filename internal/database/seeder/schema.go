package seeder

import (
	"context"
	"fmt"
	"strings"

	"cvalign/internal/database"
)

// EnsureTableColumns fails when table lacks any of columns, listing every
// missing one. Seeders call it so a stale schema is reported before inserts.
func EnsureTableColumns(ctx context.Context, db database.DB, table string, columns ...string) error {
	if table == "" {
		return fmt.Errorf("empty table")
	}
	for _, col := range columns {
		if col == "" {
			return fmt.Errorf("empty column")
		}
	}
	if db == nil {
		return fmt.Errorf("nil db")
	}

	rows, err := db.Query(ctx,
		`SELECT wanted FROM unnest($2::text[]) AS wanted
		 WHERE wanted NOT IN (
			SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1
		 )`,
		table, columns,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return err
		}
		missing = append(missing, table+"."+c)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema mismatch: missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}
