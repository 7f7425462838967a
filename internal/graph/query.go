package graph

import (
	"fmt"
	"math"
	"sort"
)

const (
	DefaultMaxDepth      = 3
	DefaultMinSimilarity = 0.25
)

type Scored struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type SkillQuery struct {
	QuerySkill           string              `json:"query_skill"`
	Node                 string              `json:"node"`
	RelatedJobs          []string            `json:"related_jobs"`
	SimilarSkills        []Scored            `json:"similar_skills"`
	JobsForSimilarSkills map[string][]string `json:"jobs_for_similar_skills"`
}

type JobQuery struct {
	QueryJob            string              `json:"query_job"`
	Node                string              `json:"node"`
	Skills              []string            `json:"skills"`
	SimilarJobs         []Scored            `json:"similar_jobs"`
	SkillsOfSimilarJobs map[string][]string `json:"skills_of_similar_jobs"`
}

type JobMatch struct {
	JobID   string  `json:"job_id"`
	Node    string  `json:"node"`
	Title   string  `json:"title,omitempty"`
	Company string  `json:"company,omitempty"`
	Score   float64 `json:"score"`
	Direct  bool    `json:"direct"`
	Skill   string  `json:"skill"`
}

type Anomaly struct {
	Skill      string  `json:"skill"`
	Target     string  `json:"target"`
	TargetNode string  `json:"target_node"`
	PathLength *int    `json:"path_length"`
	Similarity float64 `json:"similarity"`
	Connected  bool    `json:"connected"`
	Anomaly    bool    `json:"anomaly"`
}

// QuerySkill returns the jobs linked to a skill and the topn most similar
// skills by embedding, each with its own linked jobs.
func (g *Graph) QuerySkill(name string, topn int) (SkillQuery, error) {
	key := NodeKey(TypeSkill, name)

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[key]; !ok {
		return SkillQuery{}, fmt.Errorf("%w: skill %q", ErrNodeNotFound, name)
	}

	out := SkillQuery{
		QuerySkill:           name,
		Node:                 key,
		RelatedJobs:          trimKeys(g.neighborsLocked(key, TypeJob)),
		SimilarSkills:        []Scored{},
		JobsForSimilarSkills: map[string][]string{},
	}
	for _, s := range g.nearestLocked(key, TypeSkill, topn) {
		name := NameOfKey(s.Name)
		out.SimilarSkills = append(out.SimilarSkills, Scored{Name: name, Score: s.Score})
		out.JobsForSimilarSkills[name] = trimKeys(g.neighborsLocked(s.Name, TypeJob))
	}
	return out, nil
}

func (g *Graph) QueryJob(id string, topn int) (JobQuery, error) {
	key := NodeKey(TypeJob, id)

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[key]; !ok {
		return JobQuery{}, fmt.Errorf("%w: job %q", ErrNodeNotFound, id)
	}

	out := JobQuery{
		QueryJob:            id,
		Node:                key,
		Skills:              trimKeys(g.neighborsLocked(key, TypeSkill)),
		SimilarJobs:         []Scored{},
		SkillsOfSimilarJobs: map[string][]string{},
	}
	for _, j := range g.nearestLocked(key, TypeJob, topn) {
		jid := NameOfKey(j.Name)
		out.SimilarJobs = append(out.SimilarJobs, Scored{Name: jid, Score: j.Score})
		out.SkillsOfSimilarJobs[jid] = trimKeys(g.neighborsLocked(j.Name, TypeSkill))
	}
	return out, nil
}

// SimilarJobs lists jobs requiring the skill first, then the job nodes closest
// to the skill embedding, up to limit in total.
func (g *Graph) SimilarJobs(skillName string, limit int) ([]JobMatch, error) {
	key := NodeKey(TypeSkill, skillName)

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[key]; !ok {
		return nil, fmt.Errorf("%w: skill %q", ErrNodeNotFound, skillName)
	}
	if limit <= 0 {
		return []JobMatch{}, nil
	}

	out := make([]JobMatch, 0, limit)
	seen := map[string]bool{}
	for _, j := range g.neighborsLocked(key, TypeJob) {
		if len(out) == limit {
			return out, nil
		}
		out = append(out, g.jobMatchLocked(j, skillName, 1, true))
		seen[j] = true
	}
	for _, s := range g.nearestLocked(key, TypeJob, 0) {
		if len(out) == limit {
			break
		}
		if seen[s.Name] {
			continue
		}
		out = append(out, g.jobMatchLocked(s.Name, skillName, s.Score, false))
	}
	return out, nil
}

func (g *Graph) jobMatchLocked(key, skillName string, score float64, direct bool) JobMatch {
	n := g.nodes[key]
	return JobMatch{
		JobID:   NameOfKey(key),
		Node:    key,
		Title:   n.Attrs["title"],
		Company: n.Attrs["company"],
		Score:   score,
		Direct:  direct,
		Skill:   skillName,
	}
}

// CheckAnomaly reports whether a skill is plausibly connected to a job or
// company: a path no longer than maxDepth and cosine similarity at least
// minSim. The target resolves as a job id first, then a company name.
func (g *Graph) CheckAnomaly(skillName, target string, maxDepth int, minSim float64) (Anomaly, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var targetKey string
	switch {
	case g.nodes[NodeKey(TypeJob, target)] != nil:
		targetKey = NodeKey(TypeJob, target)
	case g.nodes[NodeKey(TypeCompany, target)] != nil:
		targetKey = NodeKey(TypeCompany, target)
	default:
		return Anomaly{}, fmt.Errorf("%w: target %q", ErrNodeNotFound, target)
	}

	skillKey := NodeKey(TypeSkill, skillName)
	if g.nodes[skillKey] == nil {
		return Anomaly{}, fmt.Errorf("%w: skill %q", ErrNodeNotFound, skillName)
	}

	out := Anomaly{Skill: skillName, Target: target, TargetNode: targetKey}
	if d, ok := g.shortestPathLocked(skillKey, targetKey); ok {
		out.PathLength = &d
	}
	out.Similarity = math.Round(cosine(g.emb[skillKey], g.emb[targetKey])*1000) / 1000
	out.Connected = out.PathLength != nil && *out.PathLength <= maxDepth && out.Similarity >= minSim
	out.Anomaly = !out.Connected
	return out, nil
}

func (g *Graph) shortestPathLocked(from, to string) (int, bool) {
	if from == to {
		return 0, true
	}
	dist := map[string]int{from: 0}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for n := range g.adj[cur] {
			if _, ok := dist[n]; ok {
				continue
			}
			dist[n] = dist[cur] + 1
			if n == to {
				return dist[n], true
			}
			queue = append(queue, n)
		}
	}
	return 0, false
}

// nearestLocked ranks nodes of typ by cosine similarity to key, excluding key.
// topn <= 0 returns every candidate.
func (g *Graph) nearestLocked(key, typ string, topn int) []Scored {
	target, ok := g.emb[key]
	if !ok {
		return nil
	}
	out := make([]Scored, 0)
	for other, vec := range g.emb {
		if other == key {
			continue
		}
		n := g.nodes[other]
		if n == nil || n.Type != typ {
			continue
		}
		out = append(out, Scored{Name: other, Score: round4(cosine(target, vec))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	if topn > 0 && len(out) > topn {
		out = out[:topn]
	}
	return out
}

func trimKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, NameOfKey(k))
	}
	return out
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func mean(vecs [][]float64) []float64 {
	out := make([]float64, Dimensions)
	n := 0
	for _, v := range vecs {
		if len(v) != Dimensions {
			continue
		}
		for i := range v {
			out[i] += v[i]
		}
		n++
	}
	if n == 0 {
		return out
	}
	for i := range out {
		out[i] /= float64(n)
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
