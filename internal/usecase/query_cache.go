package usecase

import (
	"context"
	"time"
)

// QueryCache stores query answers as JSON. Implementations treat an
// unreachable backend as a miss.
type QueryCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidateGraphQueries(ctx context.Context)
	InvalidateSkillListings(ctx context.Context)
}
