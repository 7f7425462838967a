package seeder

import (
	"context"
	"fmt"

	"cvalign/internal/database"
	"cvalign/internal/domain/skill"
)

// ManualSkillsSeeder inserts a curated skill list as manual entries with full
// confidence. Existing skills are left untouched.
type ManualSkillsSeeder struct {
	Names []string
}

func (ManualSkillsSeeder) Name() string { return "manual_skills" }

func (s ManualSkillsSeeder) Run(ctx context.Context, db database.DB) error {
	if err := EnsureTableColumns(ctx, db, "skills", "name", "confidence", "source", "frequency", "last_updated"); err != nil {
		return err
	}

	return database.WithTx(ctx, db, func(tx database.Tx) error {
		for _, raw := range s.Names {
			name := skill.CanonicalName(raw)
			if name == "" {
				continue
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO skills (name, confidence, source) VALUES ($1, 1.0, $2) ON CONFLICT (name) DO NOTHING`,
				name, string(skill.SourceManual),
			); err != nil {
				return fmt.Errorf("insert %q: %w", name, err)
			}
		}
		return nil
	})
}
