// Package seeder loads baseline rows after migrations have run.
package seeder

import (
	"context"

	"cvalign/internal/database"
)

type Seeder interface {
	Name() string
	Run(ctx context.Context, db database.DB) error
}
