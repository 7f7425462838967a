package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cvalign/internal/delivery/http/middleware"
	"cvalign/internal/extraction"
	"cvalign/internal/graph"
	"cvalign/internal/infrastructure/knowledgegraph"
	"cvalign/internal/pkg/jwt"
	"cvalign/internal/queue"
	"cvalign/internal/repository"
	"cvalign/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGraph struct{}

func (stubGraph) QueryRelatedSkills(_ context.Context, names []string, _ int) []graph.SkillQuery {
	out := []graph.SkillQuery{}
	for _, n := range names {
		if n == "docker" {
			out = append(out, graph.SkillQuery{QuerySkill: "docker", Node: "skill_docker", RelatedJobs: []string{"job123"}})
		}
	}
	return out
}

func (stubGraph) QuerySimilarJobs(context.Context, []string, int) []graph.JobMatch {
	return []graph.JobMatch{}
}

func (stubGraph) GetStats(context.Context) knowledgegraph.Stats {
	return knowledgegraph.Stats{Error: "Knowledge graph not found"}
}

func (stubGraph) CheckAnomaly(context.Context, string, string) (graph.Anomaly, error) {
	return graph.Anomaly{}, knowledgegraph.ErrNodeNotFound
}

func (stubGraph) QueryJob(_ context.Context, jobID string, _ int) (graph.JobQuery, error) {
	if jobID != "job123" {
		return graph.JobQuery{}, knowledgegraph.ErrNodeNotFound
	}
	return graph.JobQuery{QueryJob: jobID, Node: "job_job123", Skills: []string{"docker"}, SimilarJobs: []graph.Scored{}}, nil
}

func (stubGraph) RankCandidates(_ context.Context, jobID string, candidates []graph.Candidate, _ int) (graph.Ranking, error) {
	out := graph.Ranking{Job: jobID, JobSkills: []string{"docker"}}
	for _, c := range candidates {
		out.Ranked = append(out.Ranked, graph.RankedCandidate{ID: c.ID, MatchedSkills: c.Skills})
	}
	return out, nil
}

func (stubGraph) SearchNodes(_ context.Context, query, _ string, _ int) []graph.NodeHit {
	return []graph.NodeHit{{Node: "skill_" + query, Name: query, Type: graph.TypeSkill}}
}

type recordingSync struct{ tasks []queue.Task }

func (r *recordingSync) Enqueue(_ context.Context, t queue.Task) bool {
	r.tasks = append(r.tasks, t)
	return true
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T, auth jwt.Service) (*fiber.App, *recordingSync) {
	t.Helper()
	repo := repository.NewMemorySkillRepository()
	extractor := extraction.NewExtractor(extraction.DefaultLexicon(), nil)
	sync := &recordingSync{}

	skills := NewSkillHandler(usecase.NewSkillUsecase(usecase.SkillDeps{
		Repo: repo, Extractor: extractor, Graph: stubGraph{}, Sync: sync,
	}))
	enrichment := NewEnrichmentHandler(usecase.NewEnrichmentUsecase(usecase.EnrichmentDeps{
		Repo: repo, Extractor: extractor, Sync: sync,
	}))

	app := fiber.New()
	app.Use(middleware.NewErrorMiddleware(nil).Middleware())
	NewHealthHandler(nil).RegisterRoutes(app)
	v1 := app.Group("/api/v1")
	skills.RegisterRoutes(v1)
	var authMw *middleware.AuthMiddleware
	if auth != nil {
		authMw = middleware.NewAuthMiddleware(auth)
	}
	protected := v1.Group("", authMw.Middleware())
	skills.RegisterWriteRoutes(protected)
	enrichment.RegisterRoutes(protected)
	return app, sync
}

func do(t *testing.T, app *fiber.App, method, path string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestSkillRoutes_SubmitThenQuery(t *testing.T) {
	app, sync := newTestApp(t, nil)

	status, env := do(t, app, http.MethodPost, "/api/v1/applications/skills", map[string]any{
		"application_id": "app-1",
		"job_id":         "job123",
		"resume_text":    "Skills: Docker, Kubernetes and PostgreSQL",
	})
	require.Equal(t, http.StatusOK, status, string(env.Data))
	var submitted struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, 3, submitted.Count)
	assert.Len(t, sync.tasks, 3)

	status, env = do(t, app, http.MethodGet, "/api/v1/skills/application/app-1", nil)
	require.Equal(t, http.StatusOK, status)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 3)

	status, env = do(t, app, http.MethodGet, "/api/v1/skills/search?query=doc", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "docker", items[0]["name"])

	status, _ = do(t, app, http.MethodGet, "/api/v1/skills/name/docker", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, app, http.MethodGet, "/api/v1/skills/name/cobol", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSkillRoutes_SearchTooShort(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, env := do(t, app, http.MethodGet, "/api/v1/skills/search?query=d", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", env.Message)
}

func TestSkillRoutes_FindRelated(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, env := do(t, app, http.MethodPost, "/api/v1/skills/find-related", map[string]any{"skills": []string{"docker"}, "limit": 5})
	require.Equal(t, http.StatusOK, status)
	var res usecase.RelatedSkillsResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "skill_docker", res.Results[0].Node)

	status, _ = do(t, app, http.MethodPost, "/api/v1/skills/find-related", map[string]any{"skills": []string{}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/api/v1/skills/find-jobs", map[string]any{"limit": 5})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSkillRoutes_StatsWithoutGraph(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, env := do(t, app, http.MethodGet, "/api/v1/skills/stats", nil)
	require.Equal(t, http.StatusOK, status)
	var s map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, "Knowledge graph not found", s["error"])
}

func TestSkillRoutes_Recommendations(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, env := do(t, app, http.MethodPost, "/api/v1/skills/recommendations", map[string]any{
		"targetJob":     "Data Scientist",
		"currentSkills": []string{"I know Python and SQL"},
		"limit":         10,
	})
	require.Equal(t, http.StatusOK, status)
	var res usecase.RecommendationResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, []string{"statistics", "machine learning", "data analysis"}, res.Recommended)

	status, _ = do(t, app, http.MethodPost, "/api/v1/skills/recommendations", map[string]any{"currentSkills": []string{}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSkillRoutes_AnomalyNotFound(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, _ := do(t, app, http.MethodPost, "/api/v1/skills/anomaly", map[string]any{"skill": "go", "target": "nowhere"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSkillRoutes_ExtractAndManual(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, env := do(t, app, http.MethodPost, "/api/v1/skills/extract", map[string]any{"text": "python developer"})
	require.Equal(t, http.StatusOK, status)
	var cands []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &cands))
	require.Len(t, cands, 1)
	assert.Equal(t, "python", cands[0]["name"])

	status, _ = do(t, app, http.MethodPost, "/api/v1/skills/manual", map[string]any{"name": "Rust", "confidence": 0.9})
	assert.Equal(t, http.StatusCreated, status)

	status, _ = do(t, app, http.MethodPost, "/api/v1/skills/manual", map[string]any{"name": "Rust", "confidence": 2})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = do(t, app, http.MethodGet, "/api/v1/skills/top?limit=5", nil)
	require.Equal(t, http.StatusOK, status)
	var top []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &top))
	assert.Len(t, top, 1)

	status, _ = do(t, app, http.MethodGet, "/api/v1/skills/top?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSkillRoutes_GetDecodesNames(t *testing.T) {
	app, _ := newTestApp(t, nil)

	for _, name := range []string{"Machine Learning", "C#", "CI/CD"} {
		status, _ := do(t, app, http.MethodPost, "/api/v1/skills/manual", map[string]any{"name": name})
		require.Equal(t, http.StatusCreated, status)
	}

	var got struct {
		Name string `json:"name"`
	}
	status, env := do(t, app, http.MethodGet, "/api/v1/skills/name/machine%20learning", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "machine learning", got.Name)

	status, env = do(t, app, http.MethodGet, "/api/v1/skills/name/c%23", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "c#", got.Name)

	status, env = do(t, app, http.MethodGet, "/api/v1/skills/name?name=ci%2Fcd", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "ci/cd", got.Name)

	status, _ = do(t, app, http.MethodGet, "/api/v1/skills/name/cobol", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSkillRoutes_GraphJobRoutes(t *testing.T) {
	app, _ := newTestApp(t, nil)

	status, env := do(t, app, http.MethodGet, "/api/v1/skills/job/job123/similar?limit=3", nil)
	require.Equal(t, http.StatusOK, status)
	var q graph.JobQuery
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, []string{"docker"}, q.Skills)

	status, _ = do(t, app, http.MethodGet, "/api/v1/skills/job/nope/similar", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = do(t, app, http.MethodPost, "/api/v1/skills/rank-candidates", map[string]any{
		"jobId":      "job123",
		"candidates": []map[string]any{{"id": "c1", "skills": []string{"docker"}}},
	})
	require.Equal(t, http.StatusOK, status, string(env.Data))
	var r graph.Ranking
	require.NoError(t, json.Unmarshal(env.Data, &r))
	require.Len(t, r.Ranked, 1)
	assert.Equal(t, "c1", r.Ranked[0].ID)

	status, _ = do(t, app, http.MethodPost, "/api/v1/skills/rank-candidates", map[string]any{"jobId": "job123", "candidates": []any{}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = do(t, app, http.MethodGet, "/api/v1/skills/graph/search?q=docker&type=skill", nil)
	require.Equal(t, http.StatusOK, status)
	var hits []graph.NodeHit
	require.NoError(t, json.Unmarshal(env.Data, &hits))
	require.Len(t, hits, 1)

	status, _ = do(t, app, http.MethodGet, "/api/v1/skills/graph/search?q=docker&type=team", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWriteRoutes_RequireTokenWhenConfigured(t *testing.T) {
	svc := jwt.NewHMACService("secret", time.Minute)
	app, _ := newTestApp(t, svc)
	body := map[string]any{"job_id": "j1", "title": "SRE", "description": "docker"}

	status, _ := do(t, app, http.MethodPost, "/api/v1/jobs/skills", body)
	assert.Equal(t, http.StatusUnauthorized, status)

	tok, err := svc.GenerateAccessToken("u-1", "")
	require.NoError(t, err)
	status, _ = do(t, app, http.MethodPost, "/api/v1/jobs/skills", body, "Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, app, http.MethodGet, "/api/v1/skills/all", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, nil)
	status, env := do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", env.Message)
}
