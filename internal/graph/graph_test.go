package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobsCSV = `job_id,title,company,required_skills
1,Backend Engineer,TechCorp,"Python, SQL, Docker"
2,Data Scientist,DataCo,"Python, Statistics, Machine Learning"
3,Systems Engineer,RustWorks,Rust
`

func buildSample(t *testing.T) *Graph {
	t.Helper()
	rows, err := ReadJobsCSV(strings.NewReader(jobsCSV))
	require.NoError(t, err)
	return Build(rows, 42)
}

func TestTypeOfKey(t *testing.T) {
	typ, ok := TypeOfKey("skill_machine learning")
	assert.True(t, ok)
	assert.Equal(t, TypeSkill, typ)

	_, ok = TypeOfKey("team_alpha")
	assert.False(t, ok)
	_, ok = TypeOfKey("job_")
	assert.False(t, ok)

	assert.Equal(t, "machine learning", NameOfKey("skill_machine learning"))
}

func TestAddNodeWithNeighbors_CreatesTypedNeighborsAndSkipsUnknown(t *testing.T) {
	g := New(1)
	ch, skipped, err := g.AddNodeWithNeighbors("skill_docker", TypeSkill, []string{"job_job123", "team_x", "skill_docker"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"team_x"}, skipped)
	assert.True(t, g.Has("job_job123"))
	n, ok := g.Node("job_job123")
	require.True(t, ok)
	assert.Equal(t, TypeJob, n.Type)
	assert.Equal(t, []string{"job_job123"}, g.Neighbors("skill_docker", ""))

	require.Len(t, ch.Edges, 1)
	assert.Equal(t, RelationRequiresSkill, ch.Edges[0].Relation)
	assert.Equal(t, "skill_docker", ch.Logged.Key)
	assert.Len(t, ch.Embeddings["skill_docker"], Dimensions)
	assert.Equal(t, 1, g.Stats().PendingNewNodes)
}

func TestAddNodeWithNeighbors_EmbeddingIsMeanOfKnownNeighbors(t *testing.T) {
	g := New(7)
	_, _, err := g.AddNodeWithNeighbors("job_1", TypeJob, nil, map[string]string{"title": "Dev"})
	require.NoError(t, err)
	_, _, err = g.AddNodeWithNeighbors("job_2", TypeJob, nil, nil)
	require.NoError(t, err)

	_, _, err = g.AddNodeWithNeighbors("skill_go", TypeSkill, []string{"job_1", "job_2"}, nil)
	require.NoError(t, err)

	want := mean([][]float64{g.emb["job_1"], g.emb["job_2"]})
	assert.InDeltaSlice(t, want, g.emb["skill_go"], 1e-12)
}

func TestAddNodeWithNeighbors_RejectsBadTypeOrKey(t *testing.T) {
	g := New(1)
	_, _, err := g.AddNodeWithNeighbors("team_x", "team", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, _, err = g.AddNodeWithNeighbors("job_1", TypeSkill, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidNode)
}

func TestQuerySkill_RoundTripReferencesNodeKey(t *testing.T) {
	g := New(3)
	_, _, err := g.AddNodeWithNeighbors(NodeKey(TypeSkill, "docker"), TypeSkill, []string{NodeKey(TypeJob, "job123")}, nil)
	require.NoError(t, err)

	q, err := g.QuerySkill("docker", 5)
	require.NoError(t, err)
	assert.Equal(t, "skill_docker", q.Node)
	assert.Equal(t, "docker", q.QuerySkill)
	assert.Equal(t, []string{"job123"}, q.RelatedJobs)
}

func TestQuerySkill_NotFound(t *testing.T) {
	_, err := New(1).QuerySkill("cobol", 5)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestBuild_StatsAndRelations(t *testing.T) {
	g := buildSample(t)
	s := g.Stats()

	assert.Equal(t, 3, s.JobNodes)
	assert.Equal(t, 3, s.CompanyNodes)
	assert.Equal(t, 6, s.SkillNodes)
	assert.Equal(t, 12, s.TotalNodes)
	assert.Equal(t, 3+7, s.TotalEdges)
	assert.Equal(t, 12, s.Embeddings)
	assert.Zero(t, s.PendingNewNodes)

	assert.Equal(t, []string{"job_1", "job_2"}, g.Neighbors("skill_python", TypeJob))
	n, ok := g.Node("job_2")
	require.True(t, ok)
	assert.Equal(t, "Data Scientist", n.Attrs["title"])
	assert.Equal(t, "DataCo", n.Attrs["company"])
}

func TestBuild_IsDeterministicForSeed(t *testing.T) {
	a := buildSample(t)
	b := buildSample(t)
	assert.Equal(t, a.emb["skill_python"], b.emb["skill_python"])
}

func TestSimilarJobs_DirectLinksFirst(t *testing.T) {
	g := buildSample(t)

	out, err := g.SimilarJobs("python", 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, out[0].Direct)
	assert.True(t, out[1].Direct)
	assert.Equal(t, 1.0, out[0].Score)
	assert.ElementsMatch(t, []string{"1", "2"}, []string{out[0].JobID, out[1].JobID})
	assert.False(t, out[2].Direct)
	assert.Equal(t, "3", out[2].JobID)

	limited, err := g.SimilarJobs("python", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestQueryJob(t *testing.T) {
	g := buildSample(t)
	q, err := g.QueryJob("1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"docker", "python", "sql"}, q.Skills)
	assert.Len(t, q.SimilarJobs, 2)
	for _, j := range q.SimilarJobs {
		assert.Contains(t, q.SkillsOfSimilarJobs, j.Name)
	}
}

func TestCheckAnomaly(t *testing.T) {
	g := buildSample(t)

	ok, err := g.CheckAnomaly("python", "1", 0, DefaultMinSimilarity)
	require.NoError(t, err)
	require.NotNil(t, ok.PathLength)
	assert.Equal(t, 1, *ok.PathLength)
	assert.Equal(t, "job_1", ok.TargetNode)
	assert.True(t, ok.Connected)
	assert.False(t, ok.Anomaly)

	viaCompany, err := g.CheckAnomaly("sql", "TechCorp", 0, DefaultMinSimilarity)
	require.NoError(t, err)
	assert.Equal(t, "company_TechCorp", viaCompany.TargetNode)
	require.NotNil(t, viaCompany.PathLength)
	assert.Equal(t, 2, *viaCompany.PathLength)

	bad, err := g.CheckAnomaly("rust", "1", 0, DefaultMinSimilarity)
	require.NoError(t, err)
	assert.Nil(t, bad.PathLength)
	assert.True(t, bad.Anomaly)

	_, err = g.CheckAnomaly("python", "nowhere", 0, DefaultMinSimilarity)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = g.CheckAnomaly("cobol", "1", 0, DefaultMinSimilarity)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestReadJobsCSV_Errors(t *testing.T) {
	_, err := ReadJobsCSV(strings.NewReader(""))
	assert.ErrorContains(t, err, "empty file")

	_, err = ReadJobsCSV(strings.NewReader("job_id,title\n1,Dev\n"))
	assert.ErrorContains(t, err, "company, required_skills")

	_, err = ReadJobsCSV(strings.NewReader("job_id,title,company,required_skills\n"))
	assert.ErrorContains(t, err, "no job rows")
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := buildSample(t)
	back := FromSnapshot(g.Snapshot(), 1)
	assert.Equal(t, g.Stats(), back.Stats())
	assert.Equal(t, g.Neighbors("job_1", ""), back.Neighbors("job_1", ""))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.Equal(t, 0.0, cosine([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, cosine([]float64{1}, []float64{1, 2}))
}
