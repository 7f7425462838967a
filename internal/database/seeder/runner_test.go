package seeder

import (
	"context"
	"errors"
	"testing"

	"cvalign/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDB satisfies database.DB; the runner never touches it directly.
type stubDB struct{ database.DB }

type recordingSeeder struct {
	name string
	err  error
	ran  *[]string
}

func (s recordingSeeder) Name() string { return s.name }

func (s recordingSeeder) Run(context.Context, database.DB) error {
	*s.ran = append(*s.ran, s.name)
	return s.err
}

func TestRunner_RunsInOrderAndStopsOnError(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	r := Runner{Seeders: []Seeder{
		recordingSeeder{name: "first", ran: &ran},
		nil,
		recordingSeeder{name: "second", err: boom, ran: &ran},
		recordingSeeder{name: "third", ran: &ran},
	}}

	err := r.Run(context.Background(), stubDB{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "seed second")
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestRunner_NilDB(t *testing.T) {
	assert.Error(t, Runner{}.Run(context.Background(), nil))
}

func TestEnsureTableColumns_RejectsEmptyNames(t *testing.T) {
	assert.Error(t, EnsureTableColumns(context.Background(), stubDB{}, ""))
	assert.Error(t, EnsureTableColumns(context.Background(), stubDB{}, "skills", ""))
}
