package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"cvalign/internal/domain/skill"
	"cvalign/internal/graph"
	"cvalign/internal/infrastructure/cache"
	"cvalign/internal/infrastructure/knowledgegraph"
	"cvalign/internal/queue"
	"cvalign/internal/repository"
)

const (
	DefaultGraphLimit          = 5
	DefaultRecommendationLimit = 10
	DefaultListLimit           = 10
	MaxLimit                   = 100
	MinSearchQueryLength       = 2

	statsCacheTTL = time.Minute
)

// SkillExtractor turns raw text into ranked, deduplicated candidates.
type SkillExtractor interface {
	ExtractSkills(text string, ref skill.Ref, source skill.Source) []skill.Candidate
}

// KnowledgeGraph is the read side of the graph gateway. Failures surface as
// empty results or Stats.Error, except for the calls returning an error.
type KnowledgeGraph interface {
	QueryRelatedSkills(ctx context.Context, names []string, limit int) []graph.SkillQuery
	QuerySimilarJobs(ctx context.Context, names []string, limit int) []graph.JobMatch
	QueryJob(ctx context.Context, jobID string, limit int) (graph.JobQuery, error)
	RankCandidates(ctx context.Context, jobID string, candidates []graph.Candidate, limit int) (graph.Ranking, error)
	SearchNodes(ctx context.Context, query, typ string, limit int) []graph.NodeHit
	GetStats(ctx context.Context) knowledgegraph.Stats
	CheckAnomaly(ctx context.Context, skillName, target string) (graph.Anomaly, error)
}

// GraphSync accepts graph updates for background delivery.
type GraphSync interface {
	Enqueue(ctx context.Context, t queue.Task) bool
}

type SkillsNotifier interface {
	SkillsUpdated(applicationID, jobID string, skills []string)
}

type RelatedSkillsResult struct {
	InputSkills []string           `json:"input_skills"`
	Results     []graph.SkillQuery `json:"results"`
	Count       int                `json:"count"`
}

type JobsBySkillsResult struct {
	InputSkills []string         `json:"input_skills"`
	Results     []graph.JobMatch `json:"results"`
	Count       int              `json:"count"`
}

type RecommendationResult struct {
	TargetJob     string   `json:"target_job"`
	CurrentSkills []string `json:"current_skills"`
	Recommended   []string `json:"recommended_skills"`
	Count         int      `json:"count"`
}

type SkillUsecase interface {
	ListAll(ctx context.Context) ([]skill.Skill, error)
	Get(ctx context.Context, name string) (skill.Skill, error)
	Search(ctx context.Context, query string, limit int) ([]skill.Skill, error)
	Top(ctx context.Context, limit int) ([]skill.Skill, error)
	ByApplication(ctx context.Context, applicationID string) ([]skill.Skill, error)
	ByJob(ctx context.Context, jobID string) ([]skill.Skill, error)

	FindRelatedSkills(ctx context.Context, skills []string, limit int) (RelatedSkillsResult, error)
	FindJobsBySkills(ctx context.Context, skills []string, limit int) (JobsBySkillsResult, error)
	GetSkillRecommendations(ctx context.Context, targetJob string, currentSkills []string, limit int) (RecommendationResult, error)
	GetStats(ctx context.Context) knowledgegraph.Stats
	CheckAnomaly(ctx context.Context, skillName, target string) (graph.Anomaly, error)
	FindSimilarToJob(ctx context.Context, jobID string, limit int) (graph.JobQuery, error)
	RankCandidates(ctx context.Context, jobID string, candidates []graph.Candidate, limit int) (graph.Ranking, error)
	SearchGraph(ctx context.Context, query, nodeType string, limit int) ([]graph.NodeHit, error)

	Extract(ctx context.Context, text string) ([]skill.Candidate, error)
	AddManualSkill(ctx context.Context, name string, confidence *float64) (skill.Skill, error)
}

type Skill struct {
	repo      repository.SkillRepository
	extractor SkillExtractor
	kg        KnowledgeGraph
	sync      GraphSync
	cache     QueryCache
	notifier  SkillsNotifier
	logger    *log.Logger
}

type SkillDeps struct {
	Repo      repository.SkillRepository
	Extractor SkillExtractor
	Graph     KnowledgeGraph
	Sync      GraphSync
	Cache     QueryCache
	Notifier  SkillsNotifier
	Logger    *log.Logger
}

func NewSkillUsecase(d SkillDeps) *Skill {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	return &Skill{
		repo:      d.Repo,
		extractor: d.Extractor,
		kg:        d.Graph,
		sync:      d.Sync,
		cache:     d.Cache,
		notifier:  d.Notifier,
		logger:    d.Logger,
	}
}

func (u *Skill) ListAll(ctx context.Context) ([]skill.Skill, error) {
	items, err := u.repo.ListAll(ctx)
	if err != nil {
		u.logger.Printf("skills status=error op=list_all err=%v", err)
		return nil, ErrInternal
	}
	return items, nil
}

func (u *Skill) Get(ctx context.Context, name string) (skill.Skill, error) {
	name = skill.CanonicalName(name)
	if name == "" {
		return skill.Skill{}, invalid("name", "is required")
	}
	s, err := u.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrSkillNotFound) {
			return skill.Skill{}, ErrNotFound
		}
		u.logger.Printf("skills status=error op=get name=%s err=%v", name, err)
		return skill.Skill{}, ErrInternal
	}
	return s, nil
}

func (u *Skill) Search(ctx context.Context, query string, limit int) ([]skill.Skill, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSearchQueryLength {
		return nil, invalid("query", "must be at least 2 characters")
	}
	limit, err := normalizeLimit(limit, DefaultListLimit)
	if err != nil {
		return nil, err
	}
	items, err := u.repo.SearchByPrefix(ctx, query, limit)
	if err != nil {
		u.logger.Printf("skills status=error op=search query=%q err=%v", query, err)
		return nil, ErrInternal
	}
	return items, nil
}

func (u *Skill) Top(ctx context.Context, limit int) ([]skill.Skill, error) {
	limit, err := normalizeLimit(limit, DefaultListLimit)
	if err != nil {
		return nil, err
	}

	key := TopSkillsCacheKey(limit)
	if u.cache != nil {
		var cached []skill.Skill
		if hit, _ := u.cache.GetJSON(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	items, err := u.repo.Top(ctx, limit)
	if err != nil {
		u.logger.Printf("skills status=error op=top err=%v", err)
		return nil, ErrInternal
	}
	if u.cache != nil {
		_ = u.cache.SetJSON(ctx, key, items, 0)
	}
	return items, nil
}

func (u *Skill) ByApplication(ctx context.Context, applicationID string) ([]skill.Skill, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return nil, invalid("application_id", "is required")
	}
	items, err := u.repo.ByApplication(ctx, applicationID)
	if err != nil {
		u.logger.Printf("skills status=error op=by_application application_id=%s err=%v", applicationID, err)
		return nil, ErrInternal
	}
	return items, nil
}

func (u *Skill) ByJob(ctx context.Context, jobID string) ([]skill.Skill, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, invalid("job_id", "is required")
	}
	items, err := u.repo.ByJob(ctx, jobID)
	if err != nil {
		u.logger.Printf("skills status=error op=by_job job_id=%s err=%v", jobID, err)
		return nil, ErrInternal
	}
	return items, nil
}

func (u *Skill) FindRelatedSkills(ctx context.Context, skills []string, limit int) (RelatedSkillsResult, error) {
	names, limit, err := graphQueryInput(skills, limit)
	if err != nil {
		return RelatedSkillsResult{}, err
	}

	key := RelatedSkillsCacheKey(names, limit)
	var out RelatedSkillsResult
	if u.cache != nil {
		if hit, _ := u.cache.GetJSON(ctx, key, &out); hit {
			return out, nil
		}
	}

	results := u.kg.QueryRelatedSkills(ctx, names, limit)
	out = RelatedSkillsResult{InputSkills: names, Results: results, Count: len(results)}
	if u.cache != nil && len(results) > 0 {
		_ = u.cache.SetJSON(ctx, key, out, 0)
	}
	return out, nil
}

func (u *Skill) FindJobsBySkills(ctx context.Context, skills []string, limit int) (JobsBySkillsResult, error) {
	names, limit, err := graphQueryInput(skills, limit)
	if err != nil {
		return JobsBySkillsResult{}, err
	}

	key := SimilarJobsCacheKey(names, limit)
	var out JobsBySkillsResult
	if u.cache != nil {
		if hit, _ := u.cache.GetJSON(ctx, key, &out); hit {
			return out, nil
		}
	}

	results := u.kg.QuerySimilarJobs(ctx, names, limit)
	out = JobsBySkillsResult{InputSkills: names, Results: results, Count: len(results)}
	if u.cache != nil && len(results) > 0 {
		_ = u.cache.SetJSON(ctx, key, out, 0)
	}
	return out, nil
}

func (u *Skill) GetSkillRecommendations(_ context.Context, targetJob string, currentSkills []string, limit int) (RecommendationResult, error) {
	targetJob = strings.TrimSpace(targetJob)
	if targetJob == "" {
		return RecommendationResult{}, invalid("target_job", "is required")
	}
	if currentSkills == nil {
		return RecommendationResult{}, invalid("current_skills", "must be an array")
	}
	limit, err := normalizeLimit(limit, DefaultRecommendationLimit)
	if err != nil {
		return RecommendationResult{}, err
	}

	rec := recommend(targetJob, currentSkills, limit)
	return RecommendationResult{
		TargetJob:     targetJob,
		CurrentSkills: currentSkills,
		Recommended:   rec,
		Count:         len(rec),
	}, nil
}

// GetStats caches only successful reads so an absent graph is rechecked on
// the next call.
func (u *Skill) GetStats(ctx context.Context) knowledgegraph.Stats {
	var s knowledgegraph.Stats
	if u.cache != nil {
		if hit, _ := u.cache.GetJSON(ctx, cache.KeyStats, &s); hit {
			return s
		}
	}
	s = u.kg.GetStats(ctx)
	if u.cache != nil && s.Error == "" {
		_ = u.cache.SetJSON(ctx, cache.KeyStats, s, statsCacheTTL)
	}
	return s
}

func (u *Skill) CheckAnomaly(ctx context.Context, skillName, target string) (graph.Anomaly, error) {
	if skill.CanonicalName(skillName) == "" {
		return graph.Anomaly{}, invalid("skill", "is required")
	}
	if strings.TrimSpace(target) == "" {
		return graph.Anomaly{}, invalid("target", "is required")
	}
	res, err := u.kg.CheckAnomaly(ctx, skillName, target)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, knowledgegraph.ErrNodeNotFound):
		return graph.Anomaly{}, ErrNotFound
	default:
		u.logger.Printf("skills status=error op=check_anomaly skill=%s target=%s err=%v", skillName, target, err)
		return graph.Anomaly{}, ErrUnavailable
	}
}

// FindSimilarToJob lists the skills of a graph job and the jobs nearest to it.
func (u *Skill) FindSimilarToJob(ctx context.Context, jobID string, limit int) (graph.JobQuery, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return graph.JobQuery{}, invalid("job_id", "is required")
	}
	limit, err := normalizeLimit(limit, DefaultGraphLimit)
	if err != nil {
		return graph.JobQuery{}, err
	}
	res, err := u.kg.QueryJob(ctx, jobID, limit)
	if err != nil {
		return graph.JobQuery{}, u.graphError("similar_to_job", jobID, err)
	}
	return res, nil
}

// RankCandidates orders candidates by how well their skills cover a job.
func (u *Skill) RankCandidates(ctx context.Context, jobID string, candidates []graph.Candidate, limit int) (graph.Ranking, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return graph.Ranking{}, invalid("job_id", "is required")
	}
	if len(candidates) == 0 {
		return graph.Ranking{}, invalid("candidates", "must be a non-empty array")
	}
	limit, err := normalizeLimit(limit, DefaultRecommendationLimit)
	if err != nil {
		return graph.Ranking{}, err
	}
	res, err := u.kg.RankCandidates(ctx, jobID, candidates, limit)
	if err != nil {
		return graph.Ranking{}, u.graphError("rank_candidates", jobID, err)
	}
	return res, nil
}

func (u *Skill) SearchGraph(ctx context.Context, query, nodeType string, limit int) ([]graph.NodeHit, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSearchQueryLength {
		return nil, invalid("q", "must be at least 2 characters")
	}
	switch nodeType {
	case "", graph.TypeSkill, graph.TypeJob, graph.TypeCompany:
	default:
		return nil, invalid("type", "must be skill, job or company")
	}
	limit, err := normalizeLimit(limit, DefaultListLimit)
	if err != nil {
		return nil, err
	}
	return u.kg.SearchNodes(ctx, query, nodeType, limit), nil
}

func (u *Skill) graphError(op, key string, err error) error {
	if errors.Is(err, knowledgegraph.ErrNodeNotFound) {
		return ErrNotFound
	}
	u.logger.Printf("skills status=error op=%s key=%s err=%v", op, key, err)
	return ErrUnavailable
}

// Extract is a dry run: nothing is persisted or queued.
func (u *Skill) Extract(_ context.Context, text string) ([]skill.Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("text", "is required")
	}
	return u.extractor.ExtractSkills(text, skill.Ref{}, skill.SourceManual), nil
}

func (u *Skill) AddManualSkill(ctx context.Context, name string, confidence *float64) (skill.Skill, error) {
	name = skill.CanonicalName(name)
	if name == "" {
		return skill.Skill{}, invalid("name", "is required")
	}
	conf := 1.0
	if confidence != nil {
		if *confidence < 0 || *confidence > 1 {
			return skill.Skill{}, invalid("confidence", "must be between 0 and 1")
		}
		conf = *confidence
	}

	saved, err := u.repo.Upsert(ctx, skill.Candidate{
		Name:        name,
		Confidence:  conf,
		Source:      skill.SourceManual,
		Occurrences: 1,
	}, skill.Ref{})
	if err != nil {
		u.logger.Printf("skills status=error op=add_manual name=%s err=%v", name, err)
		return skill.Skill{}, ErrPersistence
	}

	u.afterWrite(ctx, "", "", []string{saved.Name})
	if u.sync != nil {
		u.sync.Enqueue(ctx, queue.NewSkillNodeTask(saved.Name, nil, nil))
	}
	return saved, nil
}

// afterWrite drops stale listings and tells subscribers which skills changed.
func (u *Skill) afterWrite(ctx context.Context, applicationID, jobID string, names []string) {
	if u.cache != nil {
		u.cache.InvalidateSkillListings(ctx)
	}
	if u.notifier != nil {
		u.notifier.SkillsUpdated(applicationID, jobID, names)
	}
}

func graphQueryInput(skills []string, limit int) ([]string, int, error) {
	if len(skills) == 0 {
		return nil, 0, invalid("skills", "must be a non-empty array")
	}
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, s)
		}
	}
	if len(names) == 0 {
		return nil, 0, invalid("skills", "must contain at least one non-empty name")
	}
	limit, err := normalizeLimit(limit, DefaultGraphLimit)
	if err != nil {
		return nil, 0, err
	}
	return names, limit, nil
}

func normalizeLimit(limit, def int) (int, error) {
	if limit < 0 {
		return 0, invalid("limit", "must not be negative")
	}
	if limit == 0 {
		return def, nil
	}
	if limit > MaxLimit {
		return MaxLimit, nil
	}
	return limit, nil
}
