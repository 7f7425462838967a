package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cvalign/internal/database"
	"cvalign/internal/domain/skill"

	"github.com/jackc/pgx/v5"
)

var ErrSkillNotFound = errors.New("skill not found")

// SkillRepository persists skills keyed by canonical name. Upsert must be an
// atomic increment-and-union: concurrent observations of the same name never
// lose frequency increments or references.
type SkillRepository interface {
	Upsert(ctx context.Context, c skill.Candidate, ref skill.Ref) (skill.Skill, error)
	Persist(ctx context.Context, candidates []skill.Candidate, ref skill.Ref) ([]skill.Skill, error)
	FindByName(ctx context.Context, name string) (skill.Skill, error)
	ListAll(ctx context.Context) ([]skill.Skill, error)
	SearchByPrefix(ctx context.Context, prefix string, limit int) ([]skill.Skill, error)
	Top(ctx context.Context, limit int) ([]skill.Skill, error)
	ByApplication(ctx context.Context, applicationID string) ([]skill.Skill, error)
	ByJob(ctx context.Context, jobID string) ([]skill.Skill, error)
}

type PostgresSkillRepository struct {
	db  database.DB
	now func() time.Time
}

func NewPostgresSkillRepository(db database.DB) *PostgresSkillRepository {
	return &PostgresSkillRepository{db: db, now: time.Now}
}

const skillColumns = `name, confidence, source, application_ids, job_ids, frequency, last_updated`

// The excluded arrays hold at most one id, so containment decides the union.
const upsertSkillSQL = `
INSERT INTO skills (name, confidence, source, application_ids, job_ids, frequency, last_updated)
VALUES ($1, $2, $3, $4::text[], $5::text[], 1, $6)
ON CONFLICT (name) DO UPDATE SET
	frequency = skills.frequency + 1,
	confidence = GREATEST(skills.confidence, EXCLUDED.confidence),
	application_ids = CASE
		WHEN EXCLUDED.application_ids <@ skills.application_ids THEN skills.application_ids
		ELSE array_cat(skills.application_ids, EXCLUDED.application_ids)
	END,
	job_ids = CASE
		WHEN EXCLUDED.job_ids <@ skills.job_ids THEN skills.job_ids
		ELSE array_cat(skills.job_ids, EXCLUDED.job_ids)
	END,
	last_updated = EXCLUDED.last_updated
RETURNING ` + skillColumns

type queryRower interface {
	QueryRow(ctx context.Context, query string, args ...any) database.Row
}

func (r *PostgresSkillRepository) Upsert(ctx context.Context, c skill.Candidate, ref skill.Ref) (skill.Skill, error) {
	return r.upsert(ctx, r.db, c, ref)
}

func (r *PostgresSkillRepository) upsert(ctx context.Context, q queryRower, c skill.Candidate, ref skill.Ref) (skill.Skill, error) {
	rec := skill.New(c, ref, r.now())
	if rec.Name == "" {
		return skill.Skill{}, fmt.Errorf("upsert skill: empty name")
	}
	row := q.QueryRow(ctx, upsertSkillSQL,
		rec.Name,
		rec.Confidence,
		string(rec.Source),
		rec.ApplicationIDs,
		rec.JobIDs,
		rec.LastUpdated,
	)
	out, err := scanSkill(row)
	if err != nil {
		return skill.Skill{}, fmt.Errorf("upsert skill %q: %w", rec.Name, err)
	}
	return out, nil
}

// Persist upserts every candidate in one transaction. Rows are locked in name
// order so concurrent submissions never wait on each other in a cycle; the
// result keeps the candidate order.
func (r *PostgresSkillRepository) Persist(ctx context.Context, candidates []skill.Candidate, ref skill.Ref) ([]skill.Skill, error) {
	if len(candidates) == 0 {
		return []skill.Skill{}, nil
	}
	saved := make([]skill.Skill, len(candidates))
	err := database.WithTx(ctx, r.db, func(tx database.Tx) error {
		for _, i := range lockOrder(candidates) {
			s, err := r.upsert(ctx, tx, candidates[i], ref)
			if err != nil {
				return err
			}
			saved[i] = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// lockOrder returns candidate indexes sorted by canonical name.
func lockOrder(candidates []skill.Candidate) []int {
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return skill.CanonicalName(candidates[idx[a]].Name) < skill.CanonicalName(candidates[idx[b]].Name)
	})
	return idx
}

func (r *PostgresSkillRepository) FindByName(ctx context.Context, name string) (skill.Skill, error) {
	row := r.db.QueryRow(ctx, `SELECT `+skillColumns+` FROM skills WHERE name = $1`, skill.CanonicalName(name))
	s, err := scanSkill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return skill.Skill{}, ErrSkillNotFound
		}
		return skill.Skill{}, err
	}
	return s, nil
}

func (r *PostgresSkillRepository) ListAll(ctx context.Context) ([]skill.Skill, error) {
	return r.list(ctx, `SELECT `+skillColumns+` FROM skills ORDER BY frequency DESC, name ASC`)
}

func (r *PostgresSkillRepository) SearchByPrefix(ctx context.Context, prefix string, limit int) ([]skill.Skill, error) {
	pattern := escapeLike(skill.CanonicalName(prefix)) + "%"
	return r.list(ctx, `
SELECT `+skillColumns+`
FROM skills
WHERE name LIKE $1 ESCAPE '\'
ORDER BY frequency DESC, name ASC
LIMIT $2`, pattern, limit)
}

func (r *PostgresSkillRepository) Top(ctx context.Context, limit int) ([]skill.Skill, error) {
	return r.list(ctx, `SELECT `+skillColumns+` FROM skills ORDER BY frequency DESC, name ASC LIMIT $1`, limit)
}

func (r *PostgresSkillRepository) ByApplication(ctx context.Context, applicationID string) ([]skill.Skill, error) {
	return r.list(ctx, `
SELECT `+skillColumns+`
FROM skills
WHERE application_ids @> ARRAY[$1]::text[]
ORDER BY confidence DESC, name ASC`, strings.TrimSpace(applicationID))
}

func (r *PostgresSkillRepository) ByJob(ctx context.Context, jobID string) ([]skill.Skill, error) {
	return r.list(ctx, `
SELECT `+skillColumns+`
FROM skills
WHERE job_ids @> ARRAY[$1]::text[]
ORDER BY confidence DESC, name ASC`, strings.TrimSpace(jobID))
}

func (r *PostgresSkillRepository) list(ctx context.Context, query string, args ...any) ([]skill.Skill, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]skill.Skill, 0)
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanSkill(row database.Row) (skill.Skill, error) {
	var (
		s      skill.Skill
		source string
	)
	if err := row.Scan(&s.Name, &s.Confidence, &source, &s.ApplicationIDs, &s.JobIDs, &s.Frequency, &s.LastUpdated); err != nil {
		return skill.Skill{}, err
	}
	s.Source = skill.Source(source)
	if s.ApplicationIDs == nil {
		s.ApplicationIDs = []string{}
	}
	if s.JobIDs == nil {
		s.JobIDs = []string{}
	}
	return s, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
