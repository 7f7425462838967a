package graph

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	rankGraphWeight     = 0.5
	rankEmbeddingWeight = 0.5
)

// Candidate is a person to rank against a job. Candidates are not stored in
// the graph; their skills are matched against skill nodes by name.
type Candidate struct {
	ID     string   `json:"id"`
	Skills []string `json:"skills"`
}

type RankedCandidate struct {
	ID            string   `json:"id"`
	FinalScore    float64  `json:"final_score"`
	GraphScore    float64  `json:"graph_score"`
	Similarity    float64  `json:"similarity"`
	MatchedSkills []string `json:"matched_skills"`
	MissingSkills []string `json:"missing_skills"`
}

type Ranking struct {
	Job       string            `json:"job"`
	JobSkills []string          `json:"job_skills"`
	Ranked    []RankedCandidate `json:"ranked"`
}

// RankCandidates scores each candidate against job_{jobID}. The graph score
// is the share of the job's required skills the candidate has; the similarity
// is the cosine between the job embedding and the mean embedding of the
// candidate skills known to the graph. Both weigh half of the final score.
func (g *Graph) RankCandidates(jobID string, candidates []Candidate, topn int) (Ranking, error) {
	key := NodeKey(TypeJob, jobID)

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[key]; !ok {
		return Ranking{}, fmt.Errorf("%w: job %q", ErrNodeNotFound, jobID)
	}

	jobSkills := trimKeys(g.neighborsLocked(key, TypeSkill))
	out := Ranking{Job: jobID, JobSkills: jobSkills, Ranked: make([]RankedCandidate, 0, len(candidates))}

	for _, c := range candidates {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		has := map[string]bool{}
		var vecs [][]float64
		for _, s := range c.Skills {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" || has[s] {
				continue
			}
			has[s] = true
			if v, ok := g.emb[NodeKey(TypeSkill, s)]; ok {
				vecs = append(vecs, v)
			}
		}

		rc := RankedCandidate{ID: id, MatchedSkills: []string{}, MissingSkills: []string{}}
		for _, s := range jobSkills {
			if has[s] {
				rc.MatchedSkills = append(rc.MatchedSkills, s)
			} else {
				rc.MissingSkills = append(rc.MissingSkills, s)
			}
		}
		if len(jobSkills) > 0 {
			rc.GraphScore = float64(len(rc.MatchedSkills)) / float64(len(jobSkills))
		}
		if len(vecs) > 0 {
			rc.Similarity = cosine(g.emb[key], mean(vecs))
		}
		rc.FinalScore = round3(rankGraphWeight*rc.GraphScore + rankEmbeddingWeight*rc.Similarity)
		rc.GraphScore = round3(rc.GraphScore)
		rc.Similarity = round3(rc.Similarity)
		out.Ranked = append(out.Ranked, rc)
	}

	sort.SliceStable(out.Ranked, func(i, j int) bool {
		return out.Ranked[i].FinalScore > out.Ranked[j].FinalScore
	})
	if topn > 0 && len(out.Ranked) > topn {
		out.Ranked = out.Ranked[:topn]
	}
	return out, nil
}

type NodeHit struct {
	Node   string `json:"node"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Degree int    `json:"degree"`
}

// SearchNodes finds nodes whose name contains query, case-insensitively.
// Exact matches come first, then prefix matches, then the rest, each group
// ordered by degree. typ narrows the search when set.
func (g *Graph) SearchNodes(query, typ string, topn int) ([]NodeHit, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidNode)
	}
	if typ != "" && !validType(typ) {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidNode, typ)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	type hit struct {
		NodeHit
		rank int
	}
	var hits []hit
	for key, n := range g.nodes {
		if typ != "" && n.Type != typ {
			continue
		}
		name := strings.ToLower(NameOfKey(key))
		if !strings.Contains(name, query) {
			continue
		}
		rank := 2
		switch {
		case name == query:
			rank = 0
		case strings.HasPrefix(name, query):
			rank = 1
		}
		hits = append(hits, hit{NodeHit{Node: key, Name: NameOfKey(key), Type: n.Type, Degree: len(g.adj[key])}, rank})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		if hits[i].Degree != hits[j].Degree {
			return hits[i].Degree > hits[j].Degree
		}
		return hits[i].Node < hits[j].Node
	})

	if topn > 0 && len(hits) > topn {
		hits = hits[:topn]
	}
	out := make([]NodeHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.NodeHit)
	}
	return out, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
