package postgres

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const slowQueryThreshold = 250 * time.Millisecond

type queryStartKey struct{}

// slowQueryTracer logs statements that run longer than threshold or fail.
type slowQueryTracer struct {
	log       *log.Logger
	threshold time.Duration
}

type queryStart struct {
	sql string
	at  time.Time
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, at: time.Now()})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	elapsed := time.Since(start.at)
	switch {
	case data.Err != nil:
		t.log.Printf("postgres status=error duration_ms=%d sql=%q err=%v", elapsed.Milliseconds(), compactSQL(start.sql), data.Err)
	case elapsed >= t.threshold:
		t.log.Printf("postgres status=slow duration_ms=%d rows=%d sql=%q", elapsed.Milliseconds(), data.CommandTag.RowsAffected(), compactSQL(start.sql))
	}
}

func compactSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 160 {
		return s[:160] + "..."
	}
	return s
}
