package seeder

import (
	"context"
	"fmt"
	"log"
	"time"

	"cvalign/internal/database"
)

type Runner struct {
	Seeders []Seeder
	Logger  *log.Logger
}

// Run executes seeders in order and stops at the first failure.
func (r Runner) Run(ctx context.Context, db database.DB) error {
	if db == nil {
		return fmt.Errorf("seed: nil db")
	}
	for _, s := range r.Seeders {
		if s == nil {
			continue
		}
		start := time.Now()
		if err := s.Run(ctx, db); err != nil {
			return fmt.Errorf("seed %s: %w", s.Name(), err)
		}
		if r.Logger != nil {
			r.Logger.Printf("seed status=done seeder=%s duration_ms=%d", s.Name(), time.Since(start).Milliseconds())
		}
	}
	return nil
}
