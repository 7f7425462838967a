package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cvalign/internal/domain/skill"
)

// MemorySkillRepository keeps skills in process memory. It is used when no
// database is configured and by tests. A single mutex makes every upsert an
// atomic increment-and-union.
type MemorySkillRepository struct {
	mu     sync.RWMutex
	skills map[string]*skill.Skill
	now    func() time.Time
}

func NewMemorySkillRepository() *MemorySkillRepository {
	return &MemorySkillRepository{skills: map[string]*skill.Skill{}, now: time.Now}
}

func (r *MemorySkillRepository) Upsert(_ context.Context, c skill.Candidate, ref skill.Ref) (skill.Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertLocked(c, ref), nil
}

func (r *MemorySkillRepository) upsertLocked(c skill.Candidate, ref skill.Ref) skill.Skill {
	name := skill.CanonicalName(c.Name)
	now := r.now()
	if existing, ok := r.skills[name]; ok {
		existing.Observe(c, ref, now)
		return clone(*existing)
	}
	rec := skill.New(c, ref, now)
	r.skills[name] = &rec
	return clone(rec)
}

func (r *MemorySkillRepository) Persist(_ context.Context, candidates []skill.Candidate, ref skill.Ref) ([]skill.Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]skill.Skill, 0, len(candidates))
	for _, c := range candidates {
		if skill.CanonicalName(c.Name) == "" {
			continue
		}
		out = append(out, r.upsertLocked(c, ref))
	}
	return out, nil
}

func (r *MemorySkillRepository) FindByName(_ context.Context, name string) (skill.Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[skill.CanonicalName(name)]
	if !ok {
		return skill.Skill{}, ErrSkillNotFound
	}
	return clone(*s), nil
}

func (r *MemorySkillRepository) ListAll(_ context.Context) ([]skill.Skill, error) {
	return r.filter(func(skill.Skill) bool { return true }, byFrequency, 0), nil
}

func (r *MemorySkillRepository) SearchByPrefix(_ context.Context, prefix string, limit int) ([]skill.Skill, error) {
	prefix = skill.CanonicalName(prefix)
	return r.filter(func(s skill.Skill) bool { return strings.HasPrefix(s.Name, prefix) }, byFrequency, limit), nil
}

func (r *MemorySkillRepository) Top(_ context.Context, limit int) ([]skill.Skill, error) {
	return r.filter(func(skill.Skill) bool { return true }, byFrequency, limit), nil
}

func (r *MemorySkillRepository) ByApplication(_ context.Context, applicationID string) ([]skill.Skill, error) {
	return r.filter(func(s skill.Skill) bool { return s.HasApplication(applicationID) }, byConfidence, 0), nil
}

func (r *MemorySkillRepository) ByJob(_ context.Context, jobID string) ([]skill.Skill, error) {
	return r.filter(func(s skill.Skill) bool { return s.HasJob(jobID) }, byConfidence, 0), nil
}

func (r *MemorySkillRepository) filter(keep func(skill.Skill) bool, less func(a, b skill.Skill) bool, limit int) []skill.Skill {
	r.mu.RLock()
	out := make([]skill.Skill, 0, len(r.skills))
	for _, s := range r.skills {
		if keep(*s) {
			out = append(out, clone(*s))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func byFrequency(a, b skill.Skill) bool {
	if a.Frequency != b.Frequency {
		return a.Frequency > b.Frequency
	}
	return a.Name < b.Name
}

func byConfidence(a, b skill.Skill) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Name < b.Name
}

func clone(s skill.Skill) skill.Skill {
	s.ApplicationIDs = append([]string{}, s.ApplicationIDs...)
	s.JobIDs = append([]string{}, s.JobIDs...)
	return s
}
