package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"cvalign/internal/config"
	"cvalign/internal/database/migration"
	dbpostgres "cvalign/internal/database/postgres"
	"cvalign/internal/domain/skill"
	"cvalign/migrations"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDBConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	cfg := config.DatabaseConfig{
		DBHost:     os.Getenv("CVALIGN_TEST_DB_HOST"),
		DBPort:     os.Getenv("CVALIGN_TEST_DB_PORT"),
		DBName:     os.Getenv("CVALIGN_TEST_DB_NAME"),
		DBUser:     os.Getenv("CVALIGN_TEST_DB_USER"),
		DBPassword: os.Getenv("CVALIGN_TEST_DB_PASSWORD"),
		DBSSLMode:  "disable",
	}
	if !cfg.Enabled() {
		t.Skip("CVALIGN_TEST_DB_* not set")
	}
	return cfg
}

func TestPostgresSkillRepository_AtomicUpsert(t *testing.T) {
	cfg := testDBConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg, nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, migration.Runner{Source: migrations.FS}.Run(ctx, db.SQLDB()))

	repo := NewPostgresSkillRepository(db)
	name := "itest-" + uuid.NewString()[:8]
	ref := skill.Ref{ApplicationID: "app-" + uuid.NewString()}
	t.Cleanup(func() { _, _ = db.Exec(context.Background(), `DELETE FROM skills WHERE name = $1`, name) })

	cands := []skill.Candidate{{Name: name, Confidence: 0.6, Source: skill.SourceResume}}
	_, err = repo.Persist(ctx, cands, ref)
	require.NoError(t, err)
	out, err := repo.Persist(ctx, []skill.Candidate{{Name: name, Confidence: 0.4, Source: skill.SourceResume}}, ref)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, 2, out[0].Frequency)
	assert.Equal(t, 0.6, out[0].Confidence)
	assert.Equal(t, []string{ref.ApplicationID}, out[0].ApplicationIDs)

	byApp, err := repo.ByApplication(ctx, ref.ApplicationID)
	require.NoError(t, err)
	require.Len(t, byApp, 1)
	assert.Equal(t, name, byApp[0].Name)

	found, err := repo.SearchByPrefix(ctx, "ITEST-", 100)
	require.NoError(t, err)
	assert.NotEmpty(t, found)

	_, err = repo.FindByName(ctx, name+"-missing")
	assert.ErrorIs(t, err, ErrSkillNotFound)
}

func TestPostgresSkillRepository_CrossedPersistsDoNotDeadlock(t *testing.T) {
	cfg := testDBConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg, nil)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migration.Runner{Source: migrations.FS}.Run(ctx, db.SQLDB()))

	repo := NewPostgresSkillRepository(db)
	suffix := uuid.NewString()[:8]
	x, y := "itest-x-"+suffix, "itest-y-"+suffix
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM skills WHERE name = ANY($1)`, []string{x, y})
	})

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := repo.Persist(ctx, []skill.Candidate{{Name: x, Confidence: 0.5}, {Name: y, Confidence: 0.5}}, skill.Ref{})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			out, err := repo.Persist(ctx, []skill.Candidate{{Name: y, Confidence: 0.5}, {Name: x, Confidence: 0.5}}, skill.Ref{})
			if err == nil && (len(out) != 2 || out[0].Name != y) {
				err = fmt.Errorf("result order changed: %+v", out)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	got, err := repo.FindByName(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Frequency)
}
