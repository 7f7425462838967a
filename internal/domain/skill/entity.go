package skill

import (
	"strings"
	"time"
)

type Source string

const (
	SourceResume     Source = "resume"
	SourceJobPosting Source = "job_posting"
	SourceManual     Source = "manual"
)

func (s Source) Valid() bool {
	switch s {
	case SourceResume, SourceJobPosting, SourceManual:
		return true
	default:
		return false
	}
}

// Ref points an observation at the application and/or job it came from.
type Ref struct {
	ApplicationID string
	JobID         string
}

func (r Ref) IsZero() bool {
	return strings.TrimSpace(r.ApplicationID) == "" && strings.TrimSpace(r.JobID) == ""
}

// Skill is the persistent record keyed by its canonical name.
type Skill struct {
	Name           string
	Confidence     float64
	Source         Source
	ApplicationIDs []string
	JobIDs         []string
	Frequency      int
	LastUpdated    time.Time
}

// Candidate is a transient extraction result awaiting persistence.
type Candidate struct {
	Name        string
	Confidence  float64
	Source      Source
	Ref         Ref
	Occurrences int
}

func CanonicalName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// New creates the first record for a candidate.
func New(c Candidate, ref Ref, now time.Time) Skill {
	s := Skill{
		Name:           CanonicalName(c.Name),
		Confidence:     ClampConfidence(c.Confidence),
		Source:         c.Source,
		ApplicationIDs: []string{},
		JobIDs:         []string{},
		Frequency:      1,
		LastUpdated:    now.UTC(),
	}
	if !s.Source.Valid() {
		s.Source = SourceManual
	}
	s.ApplicationIDs = appendUnique(s.ApplicationIDs, ref.ApplicationID)
	s.JobIDs = appendUnique(s.JobIDs, ref.JobID)
	return s
}

// Observe folds another observation into an existing record: frequency always
// increments, confidence never decreases, references are set-unioned.
func (s *Skill) Observe(c Candidate, ref Ref, now time.Time) {
	if s == nil {
		return
	}
	s.Frequency++
	if conf := ClampConfidence(c.Confidence); conf > s.Confidence {
		s.Confidence = conf
	}
	s.ApplicationIDs = appendUnique(s.ApplicationIDs, ref.ApplicationID)
	s.JobIDs = appendUnique(s.JobIDs, ref.JobID)
	s.LastUpdated = now.UTC()
}

func (s Skill) HasApplication(id string) bool {
	return contains(s.ApplicationIDs, strings.TrimSpace(id))
}

func (s Skill) HasJob(id string) bool {
	return contains(s.JobIDs, strings.TrimSpace(id))
}

func appendUnique(set []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" || contains(set, v) {
		return set
	}
	return append(set, v)
}

func contains(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, it := range set {
		if it == v {
			return true
		}
	}
	return false
}
