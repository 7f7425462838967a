package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankCandidates_OverlapDrivesOrder(t *testing.T) {
	g := buildSample(t)

	r, err := g.RankCandidates("1", []Candidate{
		{ID: "c-none", Skills: []string{"rust"}},
		{ID: "c-full", Skills: []string{"Python", "sql", "docker", "python"}},
		{ID: "c-half", Skills: []string{"python"}},
		{ID: " ", Skills: []string{"python"}},
	}, 10)
	require.NoError(t, err)

	assert.Equal(t, "1", r.Job)
	assert.Equal(t, []string{"docker", "python", "sql"}, r.JobSkills)
	require.Len(t, r.Ranked, 3)

	full := r.Ranked[0]
	assert.Equal(t, "c-full", full.ID)
	assert.Equal(t, 1.0, full.GraphScore)
	assert.Empty(t, full.MissingSkills)
	assert.InDelta(t, 0.5+0.5*full.Similarity, full.FinalScore, 0.002)

	for _, rc := range r.Ranked {
		if rc.ID == "c-half" {
			assert.Equal(t, 0.333, rc.GraphScore)
			assert.Equal(t, []string{"python"}, rc.MatchedSkills)
			assert.Equal(t, []string{"docker", "sql"}, rc.MissingSkills)
		}
		if rc.ID == "c-none" {
			assert.Zero(t, rc.GraphScore)
		}
	}
}

func TestRankCandidates_TopNAndUnknownJob(t *testing.T) {
	g := buildSample(t)

	r, err := g.RankCandidates("1", []Candidate{{ID: "a", Skills: []string{"sql"}}, {ID: "b", Skills: []string{"docker"}}}, 1)
	require.NoError(t, err)
	assert.Len(t, r.Ranked, 1)

	_, err = g.RankCandidates("999", nil, 5)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRankCandidates_UnknownSkillsScoreZero(t *testing.T) {
	g := buildSample(t)

	r, err := g.RankCandidates("3", []Candidate{{ID: "a", Skills: []string{"cobol"}}}, 0)
	require.NoError(t, err)
	require.Len(t, r.Ranked, 1)
	assert.Zero(t, r.Ranked[0].FinalScore)
	assert.Equal(t, []string{"rust"}, r.Ranked[0].MissingSkills)
}

func TestSearchNodes(t *testing.T) {
	g := buildSample(t)

	hits, err := g.SearchNodes("Python", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "skill_python", hits[0].Node)
	assert.Equal(t, 2, hits[0].Degree)

	hits, err = g.SearchNodes("co", TypeCompany, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, TypeCompany, h.Type)
	}

	_, err = g.SearchNodes("  ", "", 5)
	assert.ErrorIs(t, err, ErrInvalidNode)
	_, err = g.SearchNodes("go", "team", 5)
	assert.ErrorIs(t, err, ErrInvalidNode)
}
