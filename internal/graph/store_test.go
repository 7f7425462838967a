package graph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cvalign/internal/kgrpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore_MissingArtifactIsUnavailable(t *testing.T) {
	_, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "kg.db"), false)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStore_ApplyAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kg.db")

	st, err := OpenStore(ctx, path, true)
	require.NoError(t, err)
	defer st.Close()

	g := New(5)
	ch, _, err := g.AddNodeWithNeighbors("job_9", TypeJob, []string{"company_Acme", "skill_go"}, map[string]string{"title": "Gopher"})
	require.NoError(t, err)
	require.NoError(t, st.Apply(ctx, ch))

	loaded, err := st.Load(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, g.Stats(), loaded.Stats())
	n, ok := loaded.Node("job_9")
	require.True(t, ok)
	assert.Equal(t, "Gopher", n.Attrs["title"])
	assert.Equal(t, []string{"company_Acme", "skill_go"}, loaded.Neighbors("job_9", ""))
	assert.InDeltaSlice(t, g.emb["job_9"], loaded.emb["job_9"], 1e-12)
}

func TestStore_ReplaceClearsNewNodeLog(t *testing.T) {
	ctx := context.Background()
	st, err := OpenStore(ctx, filepath.Join(t.TempDir(), "kg.db"), true)
	require.NoError(t, err)
	defer st.Close()

	g := New(1)
	ch, _, err := g.AddNodeWithNeighbors("skill_x", TypeSkill, nil, nil)
	require.NoError(t, err)
	require.NoError(t, st.Apply(ctx, ch))

	stats, err := Rebuild(ctx, strings.NewReader(jobsCSV), st, 42)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalNodes)

	loaded, err := st.Load(ctx, 1)
	require.NoError(t, err)
	assert.False(t, loaded.Has("skill_x"))
	assert.Zero(t, loaded.Stats().PendingNewNodes)
	assert.Equal(t, 12, loaded.Stats().TotalNodes)
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kg.json")
	require.NoError(t, ExportJSON(buildSample(t), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Len(t, snap.Nodes, 12)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestExportJSON_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "occupied")
	require.NoError(t, os.Mkdir(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "keep"), []byte("x"), 0o644))

	err := ExportJSON(New(1), target)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_StatsWithoutArtifact(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "kg.db"), 1, nil)
	defer svc.Close()

	_, err := svc.Handle(context.Background(), kgrpc.MethodStats, nil)
	var re *kgrpc.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, kgrpc.CodeGraphUnavailable, re.Code)
	assert.Equal(t, "Knowledge graph not found", re.Message)
}

func TestService_AddThenQuery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kg.db")
	svc := NewService(path, 1, nil)
	defer svc.Close()

	params, _ := json.Marshal(kgrpc.AddNodeParams{Key: "skill_docker", Type: TypeSkill, Neighbors: []string{"job_job123"}})
	res, err := svc.Handle(ctx, kgrpc.MethodAddNode, params)
	require.NoError(t, err)
	assert.Equal(t, "skill_docker", res.(kgrpc.AddNodeResult).Key)

	q, _ := json.Marshal(kgrpc.QueryParams{Skill: "docker", Limit: 5})
	out, err := svc.Handle(ctx, kgrpc.MethodQuerySkill, q)
	require.NoError(t, err)
	assert.Equal(t, "skill_docker", out.(SkillQuery).Node)

	svc.Reload()
	stats, err := svc.Handle(ctx, kgrpc.MethodStats, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.(Stats).TotalNodes)
}

func TestService_ErrorCodes(t *testing.T) {
	ctx := context.Background()
	svc := NewService(filepath.Join(t.TempDir(), "kg.db"), 1, nil)
	defer svc.Close()

	_, err := svc.Handle(ctx, "drop_graph", nil)
	assert.True(t, kgrpc.IsCode(err, kgrpc.CodeUnknownMethod))

	_, err = svc.Handle(ctx, kgrpc.MethodQuerySkill, json.RawMessage(`{"skill":""}`))
	assert.True(t, kgrpc.IsCode(err, kgrpc.CodeInvalidParams))

	_, err = svc.Handle(ctx, kgrpc.MethodAddNode, json.RawMessage(`{"key":"team_x","type":"team"}`))
	assert.True(t, kgrpc.IsCode(err, kgrpc.CodeInvalidParams))

	add, _ := json.Marshal(kgrpc.AddNodeParams{Key: "skill_go", Type: TypeSkill})
	_, err = svc.Handle(ctx, kgrpc.MethodAddNode, add)
	require.NoError(t, err)

	_, err = svc.Handle(ctx, kgrpc.MethodQuerySkill, json.RawMessage(`{"skill":"cobol"}`))
	assert.True(t, kgrpc.IsCode(err, kgrpc.CodeNotFound))
}

func TestService_FailedApplyDoesNotLeaveMemoryAhead(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kg.db")
	svc := NewService(path, 1, nil)
	defer svc.Close()

	seed, _ := json.Marshal(kgrpc.AddNodeParams{Key: "skill_go", Type: TypeSkill})
	_, err := svc.Handle(ctx, kgrpc.MethodAddNode, seed)
	require.NoError(t, err)

	svc.mu.Lock()
	require.NoError(t, svc.store.db.Close())
	svc.mu.Unlock()

	add, _ := json.Marshal(kgrpc.AddNodeParams{Key: "skill_docker", Type: TypeSkill, Neighbors: []string{"job_job123"}})
	_, err = svc.Handle(ctx, kgrpc.MethodAddNode, add)
	assert.True(t, kgrpc.IsCode(err, kgrpc.CodeInternal))

	_, err = svc.Handle(ctx, kgrpc.MethodAddNode, add)
	require.NoError(t, err)

	svc.Reload()
	stats, err := svc.Handle(ctx, kgrpc.MethodStats, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.(Stats).TotalNodes)
	assert.Equal(t, 1, stats.(Stats).TotalEdges)

	q, _ := json.Marshal(kgrpc.QueryParams{Skill: "docker", Limit: 5})
	out, err := svc.Handle(ctx, kgrpc.MethodQuerySkill, q)
	require.NoError(t, err)
	assert.NotEmpty(t, out.(SkillQuery).RelatedJobs)
}

func TestService_RankAndSearch(t *testing.T) {
	ctx := context.Background()
	svc := NewService(filepath.Join(t.TempDir(), "kg.db"), 1, nil)
	defer svc.Close()

	add, _ := json.Marshal(kgrpc.AddNodeParams{Key: "job_j1", Type: TypeJob, Neighbors: []string{"skill_go", "skill_sql", "company_TechCorp"}})
	_, err := svc.Handle(ctx, kgrpc.MethodAddNode, add)
	require.NoError(t, err)

	rank, _ := json.Marshal(kgrpc.RankParams{Job: "j1", Limit: 5, Candidates: []kgrpc.RankCandidate{
		{ID: "ann", Skills: []string{"go"}},
		{ID: "bob", Skills: []string{"go", "sql"}},
	}})
	out, err := svc.Handle(ctx, kgrpc.MethodRank, rank)
	require.NoError(t, err)
	r := out.(Ranking)
	require.Len(t, r.Ranked, 2)
	assert.GreaterOrEqual(t, r.Ranked[0].FinalScore, r.Ranked[1].FinalScore)
	scores := map[string]float64{}
	for _, rc := range r.Ranked {
		scores[rc.ID] = rc.GraphScore
	}
	assert.Equal(t, map[string]float64{"ann": 0.5, "bob": 1.0}, scores)

	_, err = svc.Handle(ctx, kgrpc.MethodRank, json.RawMessage(`{"job":""}`))
	assert.True(t, kgrpc.IsCode(err, kgrpc.CodeInvalidParams))
	_, err = svc.Handle(ctx, kgrpc.MethodRank, json.RawMessage(`{"job":"nope"}`))
	assert.True(t, kgrpc.IsCode(err, kgrpc.CodeNotFound))

	search, _ := json.Marshal(kgrpc.SearchParams{Query: "techcorp"})
	out, err = svc.Handle(ctx, kgrpc.MethodSearchNodes, search)
	require.NoError(t, err)
	hits := out.([]NodeHit)
	require.Len(t, hits, 1)
	assert.Equal(t, "company_TechCorp", hits[0].Node)
}
