package usecase

import (
	"context"
	"sync"
	"time"

	"cvalign/internal/domain/skill"
	"cvalign/internal/graph"
	"cvalign/internal/infrastructure/knowledgegraph"
	"cvalign/internal/queue"
)

type fakeGraph struct {
	related    []graph.SkillQuery
	jobs       []graph.JobMatch
	stats      knowledgegraph.Stats
	anomaly    graph.Anomaly
	anomalyErr error
	jobQuery   graph.JobQuery
	ranking    graph.Ranking
	graphErr   error
	hits       []graph.NodeHit
	lastCands  []graph.Candidate
	lastLimit  int
	calls      int
}

func (f *fakeGraph) QueryRelatedSkills(_ context.Context, names []string, _ int) []graph.SkillQuery {
	f.calls++
	out := []graph.SkillQuery{}
	for _, r := range f.related {
		for _, n := range names {
			if skill.CanonicalName(n) == r.QuerySkill {
				out = append(out, r)
			}
		}
	}
	return out
}

func (f *fakeGraph) QuerySimilarJobs(context.Context, []string, int) []graph.JobMatch {
	f.calls++
	if f.jobs == nil {
		return []graph.JobMatch{}
	}
	return f.jobs
}

func (f *fakeGraph) GetStats(context.Context) knowledgegraph.Stats {
	f.calls++
	return f.stats
}

func (f *fakeGraph) CheckAnomaly(context.Context, string, string) (graph.Anomaly, error) {
	f.calls++
	return f.anomaly, f.anomalyErr
}

func (f *fakeGraph) QueryJob(_ context.Context, _ string, limit int) (graph.JobQuery, error) {
	f.calls++
	f.lastLimit = limit
	return f.jobQuery, f.graphErr
}

func (f *fakeGraph) RankCandidates(_ context.Context, _ string, candidates []graph.Candidate, limit int) (graph.Ranking, error) {
	f.calls++
	f.lastCands = candidates
	f.lastLimit = limit
	return f.ranking, f.graphErr
}

func (f *fakeGraph) SearchNodes(_ context.Context, _, _ string, limit int) []graph.NodeHit {
	f.calls++
	f.lastLimit = limit
	if f.hits == nil {
		return []graph.NodeHit{}
	}
	return f.hits
}

type fakeSync struct {
	mu    sync.Mutex
	tasks []queue.Task
	full  bool
}

func (f *fakeSync) Enqueue(_ context.Context, t queue.Task) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.tasks = append(f.tasks, t)
	return true
}

type memCache struct {
	mu                sync.Mutex
	items             map[string]any
	graphInvalidated  int
	listInvalidations int
}

func newMemCache() *memCache { return &memCache{items: map[string]any{}} }

// GetJSON hands back the stored value only when out has the same type.
func (c *memCache) GetJSON(_ context.Context, key string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return false, nil
	}
	switch dst := out.(type) {
	case *RelatedSkillsResult:
		*dst = v.(RelatedSkillsResult)
	case *JobsBySkillsResult:
		*dst = v.(JobsBySkillsResult)
	case *knowledgegraph.Stats:
		*dst = v.(knowledgegraph.Stats)
	case *[]skill.Skill:
		*dst = v.([]skill.Skill)
	default:
		return false, nil
	}
	return true, nil
}

func (c *memCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *memCache) InvalidateGraphQueries(context.Context) {
	c.mu.Lock()
	c.graphInvalidated++
	c.mu.Unlock()
}

func (c *memCache) InvalidateSkillListings(context.Context) {
	c.mu.Lock()
	c.listInvalidations++
	for k := range c.items {
		delete(c.items, k)
	}
	c.mu.Unlock()
}

type notification struct {
	applicationID string
	jobID         string
	skills        []string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (f *fakeNotifier) SkillsUpdated(applicationID, jobID string, skills []string) {
	f.mu.Lock()
	f.sent = append(f.sent, notification{applicationID, jobID, skills})
	f.mu.Unlock()
}

type stubResumes struct {
	text string
	err  error
}

func (s stubResumes) ResolveText(context.Context, string, string) (string, error) {
	return s.text, s.err
}

type stubPages struct {
	text string
	err  error
	urls []string
}

func (s *stubPages) FetchText(_ context.Context, url string) (string, error) {
	s.urls = append(s.urls, url)
	return s.text, s.err
}
