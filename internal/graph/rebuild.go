package graph

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"cvalign/internal/domain/skill"
)

var requiredColumns = []string{"job_id", "title", "company", "required_skills"}

// JobRow is one line of the jobs dataset used for a full rebuild.
type JobRow struct {
	JobID          string
	Title          string
	Company        string
	RequiredSkills []string
}

// ReadJobsCSV parses a jobs dataset with a header row containing at least
// job_id, title, company and required_skills (comma separated inside the cell).
func ReadJobsCSV(r io.Reader) ([]JobRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("jobs csv: empty file")
		}
		return nil, fmt.Errorf("jobs csv: read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("jobs csv: missing required columns: %s", strings.Join(missing, ", "))
	}

	col := func(rec []string, name string) string {
		i := idx[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []JobRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("jobs csv: line %d: %w", line, err)
		}
		row := JobRow{
			JobID:   col(rec, "job_id"),
			Title:   col(rec, "title"),
			Company: col(rec, "company"),
		}
		if row.JobID == "" {
			continue
		}
		for _, s := range strings.Split(col(rec, "required_skills"), ",") {
			if s = skill.CanonicalName(s); s != "" {
				row.RequiredSkills = append(row.RequiredSkills, s)
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("jobs csv: no job rows")
	}
	return rows, nil
}

// Build constructs a fresh graph from dataset rows and trains its embeddings.
// Skill names are canonicalised so they meet the names the extractor emits.
func Build(rows []JobRow, seed uint64) *Graph {
	g := New(seed)
	for _, r := range rows {
		jobKey := NodeKey(TypeJob, r.JobID)
		g.upsertNodeLocked(jobKey, TypeJob, map[string]string{"title": r.Title, "company": r.Company})

		if r.Company != "" {
			companyKey := NodeKey(TypeCompany, r.Company)
			g.upsertNodeLocked(companyKey, TypeCompany, map[string]string{"name": r.Company})
			g.linkLocked(jobKey, companyKey, RelationPostedBy)
		}
		for _, s := range r.RequiredSkills {
			skillKey := NodeKey(TypeSkill, s)
			g.upsertNodeLocked(skillKey, TypeSkill, map[string]string{"name": s})
			g.linkLocked(jobKey, skillKey, RelationRequiresSkill)
		}
	}
	g.train(smoothingRounds)
	return g
}

const smoothingRounds = 10

// Rebuild reads a jobs dataset, builds a fresh graph and replaces the store
// content with it, clearing the new-node log.
func Rebuild(ctx context.Context, r io.Reader, st *Store, seed uint64) (Stats, error) {
	rows, err := ReadJobsCSV(r)
	if err != nil {
		return Stats{}, err
	}
	g := Build(rows, seed)
	if err := st.Replace(ctx, g); err != nil {
		return Stats{}, err
	}
	return g.Stats(), nil
}

// train assigns every node a seeded random unit vector, then repeatedly pulls
// each vector toward the mean of its neighbours so that nodes sharing
// neighbourhoods end up close in cosine space.
func (g *Graph) train(rounds int) {
	keys := g.sortedKeysLocked()
	for _, k := range keys {
		v := make([]float64, Dimensions)
		for i := range v {
			v[i] = g.rng.NormFloat64()
		}
		g.emb[k] = normalize(v)
	}

	for r := 0; r < rounds; r++ {
		next := make(map[string][]float64, len(keys))
		for _, k := range keys {
			nb := g.neighborsLocked(k, "")
			if len(nb) == 0 {
				next[k] = g.emb[k]
				continue
			}
			vecs := make([][]float64, 0, len(nb))
			for _, n := range nb {
				vecs = append(vecs, g.emb[n])
			}
			m := mean(vecs)
			v := make([]float64, Dimensions)
			for i := range v {
				v[i] = 0.5*g.emb[k][i] + 0.5*m[i]
			}
			next[k] = normalize(v)
		}
		g.emb = next
	}
}

func (g *Graph) sortedKeysLocked() []string {
	keys := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalize(v []float64) []float64 {
	var n float64
	for _, x := range v {
		n += x * x
	}
	if n == 0 {
		return v
	}
	n = math.Sqrt(n)
	for i := range v {
		v[i] /= n
	}
	return v
}
