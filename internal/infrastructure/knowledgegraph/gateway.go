package knowledgegraph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cvalign/internal/domain/skill"
	"cvalign/internal/graph"
	"cvalign/internal/kgrpc"

	"golang.org/x/sync/semaphore"
)

var (
	ErrGraphUnavailable = errors.New("knowledge graph unavailable")
	ErrNodeNotFound     = errors.New("knowledge graph node not found")
)

// Caller performs one request/response exchange with the graph worker.
type Caller interface {
	Call(ctx context.Context, method string, params any, out any) error
}

// Stats mirrors the worker counters. Error is set instead of the counters
// when the graph cannot be read.
type Stats struct {
	TotalNodes       int    `json:"total_nodes"`
	TotalEdges       int    `json:"total_edges"`
	JobNodeCount     int    `json:"job_node_count"`
	SkillNodeCount   int    `json:"skill_node_count"`
	CompanyNodeCount int    `json:"company_node_count"`
	EmbeddingCount   int    `json:"embedding_count"`
	PendingNewNodes  int    `json:"pending_new_nodes"`
	Error            string `json:"error,omitempty"`
}

// Gateway is the only path from the API process to the knowledge graph.
// Every call holds a concurrency slot and runs under a hard deadline.
type Gateway struct {
	caller  Caller
	sem     *semaphore.Weighted
	timeout time.Duration
	log     *log.Logger
}

func NewGateway(caller Caller, maxConcurrency int64, timeout time.Duration, logger *log.Logger) *Gateway {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{
		caller:  caller,
		sem:     semaphore.NewWeighted(maxConcurrency),
		timeout: timeout,
		log:     logger,
	}
}

func (g *Gateway) call(ctx context.Context, method string, params any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("kg %s: wait for slot: %w", method, err)
	}
	defer g.sem.Release(1)

	start := time.Now()
	err := g.caller.Call(ctx, method, params, out)
	if err != nil {
		return classify(err)
	}
	g.log.Printf("kg gateway status=ok op=%s duration_ms=%d", method, time.Since(start).Milliseconds())
	return nil
}

func classify(err error) error {
	switch {
	case kgrpc.IsCode(err, kgrpc.CodeGraphUnavailable):
		return fmt.Errorf("%w: %v", ErrGraphUnavailable, err)
	case kgrpc.IsCode(err, kgrpc.CodeNotFound):
		return fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	default:
		return err
	}
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.call(ctx, kgrpc.MethodPing, nil, nil)
}

// SyncSkillNode upserts skill_{name} linked to the given skills and jobs.
func (g *Gateway) SyncSkillNode(ctx context.Context, name string, relatedSkills, relatedJobs []string) error {
	name = skill.CanonicalName(name)
	if name == "" {
		return fmt.Errorf("kg add skill: empty name")
	}
	neighbors := make([]string, 0, len(relatedSkills)+len(relatedJobs))
	for _, s := range relatedSkills {
		if s = skill.CanonicalName(s); s != "" && s != name {
			neighbors = append(neighbors, graph.NodeKey(graph.TypeSkill, s))
		}
	}
	for _, j := range relatedJobs {
		if j = strings.TrimSpace(j); j != "" {
			neighbors = append(neighbors, graph.NodeKey(graph.TypeJob, j))
		}
	}
	return g.call(ctx, kgrpc.MethodAddNode, kgrpc.AddNodeParams{
		Key:       graph.NodeKey(graph.TypeSkill, name),
		Type:      graph.TypeSkill,
		Neighbors: neighbors,
	}, nil)
}

// AddSkillNode is SyncSkillNode with failures logged and reported as false.
func (g *Gateway) AddSkillNode(ctx context.Context, name string, relatedSkills, relatedJobs []string) bool {
	if err := g.SyncSkillNode(ctx, name, relatedSkills, relatedJobs); err != nil {
		g.log.Printf("kg gateway status=error op=add_skill_node skill=%s err=%v", name, err)
		return false
	}
	return true
}

// SyncJobNode upserts job_{jobID} linked to its company and required skills.
func (g *Gateway) SyncJobNode(ctx context.Context, jobID, title, company string, skills []string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("kg add job: empty job id")
	}
	company = strings.TrimSpace(company)

	neighbors := make([]string, 0, len(skills)+1)
	if company != "" {
		neighbors = append(neighbors, graph.NodeKey(graph.TypeCompany, company))
	}
	for _, s := range skills {
		if s = skill.CanonicalName(s); s != "" {
			neighbors = append(neighbors, graph.NodeKey(graph.TypeSkill, s))
		}
	}
	return g.call(ctx, kgrpc.MethodAddNode, kgrpc.AddNodeParams{
		Key:       graph.NodeKey(graph.TypeJob, jobID),
		Type:      graph.TypeJob,
		Neighbors: neighbors,
		Attrs:     map[string]string{"title": strings.TrimSpace(title), "company": company},
	}, nil)
}

func (g *Gateway) AddJobNode(ctx context.Context, jobID, title, company string, skills []string) bool {
	if err := g.SyncJobNode(ctx, jobID, title, company, skills); err != nil {
		g.log.Printf("kg gateway status=error op=add_job_node job_id=%s err=%v", jobID, err)
		return false
	}
	return true
}

// QueryRelatedSkills queries each skill independently and concatenates the
// results. A failing skill is skipped; an unavailable graph yields an empty
// slice.
func (g *Gateway) QueryRelatedSkills(ctx context.Context, names []string, limit int) []graph.SkillQuery {
	out := make([]graph.SkillQuery, 0, len(names))
	for _, name := range names {
		name = skill.CanonicalName(name)
		if name == "" {
			continue
		}
		var res graph.SkillQuery
		err := g.call(ctx, kgrpc.MethodQuerySkill, kgrpc.QueryParams{Skill: name, Limit: limit}, &res)
		if err != nil {
			if errors.Is(err, ErrGraphUnavailable) {
				g.log.Printf("kg gateway status=unavailable op=query_related_skills err=%v", err)
				return []graph.SkillQuery{}
			}
			g.log.Printf("kg gateway status=skip op=query_related_skills skill=%s err=%v", name, err)
			continue
		}
		out = append(out, res)
	}
	return out
}

func (g *Gateway) QuerySimilarJobs(ctx context.Context, names []string, limit int) []graph.JobMatch {
	out := make([]graph.JobMatch, 0)
	for _, name := range names {
		name = skill.CanonicalName(name)
		if name == "" {
			continue
		}
		var res []graph.JobMatch
		err := g.call(ctx, kgrpc.MethodSimilarJobs, kgrpc.QueryParams{Skill: name, Limit: limit}, &res)
		if err != nil {
			if errors.Is(err, ErrGraphUnavailable) {
				g.log.Printf("kg gateway status=unavailable op=query_similar_jobs err=%v", err)
				return []graph.JobMatch{}
			}
			g.log.Printf("kg gateway status=skip op=query_similar_jobs skill=%s err=%v", name, err)
			continue
		}
		out = append(out, res...)
	}
	return out
}

// GetStats never fails: problems are reported in Stats.Error.
func (g *Gateway) GetStats(ctx context.Context) Stats {
	var s graph.Stats
	if err := g.call(ctx, kgrpc.MethodStats, nil, &s); err != nil {
		g.log.Printf("kg gateway status=error op=stats err=%v", err)
		if errors.Is(err, ErrGraphUnavailable) {
			return Stats{Error: kgrpc.MessageGraphUnavailable}
		}
		var re *kgrpc.RemoteError
		if errors.As(err, &re) {
			return Stats{Error: re.Message}
		}
		return Stats{Error: err.Error()}
	}
	return Stats{
		TotalNodes:       s.TotalNodes,
		TotalEdges:       s.TotalEdges,
		JobNodeCount:     s.JobNodes,
		SkillNodeCount:   s.SkillNodes,
		CompanyNodeCount: s.CompanyNodes,
		EmbeddingCount:   s.Embeddings,
		PendingNewNodes:  s.PendingNewNodes,
	}
}

// CheckAnomaly returns ErrNodeNotFound when either side is missing and
// ErrGraphUnavailable when there is no graph yet.
func (g *Gateway) CheckAnomaly(ctx context.Context, skillName, target string) (graph.Anomaly, error) {
	var out graph.Anomaly
	err := g.call(ctx, kgrpc.MethodCheckAnomaly, kgrpc.AnomalyParams{
		Skill:  skill.CanonicalName(skillName),
		Target: strings.TrimSpace(target),
	}, &out)
	if err != nil {
		return graph.Anomaly{}, err
	}
	return out, nil
}

// QueryJob returns the skills of job_{jobID} and its nearest jobs.
func (g *Gateway) QueryJob(ctx context.Context, jobID string, limit int) (graph.JobQuery, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return graph.JobQuery{}, fmt.Errorf("kg query job: empty job id")
	}
	var out graph.JobQuery
	if err := g.call(ctx, kgrpc.MethodQueryJob, kgrpc.QueryParams{Job: jobID, Limit: limit}, &out); err != nil {
		return graph.JobQuery{}, err
	}
	return out, nil
}

// RankCandidates scores candidate skill sets against a job node. Skill names
// are canonicalised the same way they are when nodes are written.
func (g *Gateway) RankCandidates(ctx context.Context, jobID string, candidates []graph.Candidate, limit int) (graph.Ranking, error) {
	params := kgrpc.RankParams{Job: strings.TrimSpace(jobID), Limit: limit, Candidates: make([]kgrpc.RankCandidate, 0, len(candidates))}
	for _, c := range candidates {
		names := make([]string, 0, len(c.Skills))
		for _, s := range c.Skills {
			if s = skill.CanonicalName(s); s != "" {
				names = append(names, s)
			}
		}
		params.Candidates = append(params.Candidates, kgrpc.RankCandidate{ID: c.ID, Skills: names})
	}
	var out graph.Ranking
	if err := g.call(ctx, kgrpc.MethodRank, params, &out); err != nil {
		return graph.Ranking{}, err
	}
	return out, nil
}

// SearchNodes looks nodes up by name fragment. An unavailable graph yields an
// empty slice.
func (g *Gateway) SearchNodes(ctx context.Context, query, typ string, limit int) []graph.NodeHit {
	var out []graph.NodeHit
	if err := g.call(ctx, kgrpc.MethodSearchNodes, kgrpc.SearchParams{Query: query, Type: typ, Limit: limit}, &out); err != nil {
		g.log.Printf("kg gateway status=error op=search_nodes query=%q err=%v", query, err)
		return []graph.NodeHit{}
	}
	if out == nil {
		out = []graph.NodeHit{}
	}
	return out
}
