package dto

import (
	"time"

	"cvalign/internal/domain/skill"
)

type SkillResponse struct {
	Name           string   `json:"name"`
	Confidence     float64  `json:"confidence"`
	Source         string   `json:"source"`
	ApplicationIDs []string `json:"application_ids"`
	JobIDs         []string `json:"job_ids"`
	Frequency      int      `json:"frequency"`
	LastUpdated    string   `json:"last_updated"`
}

type CandidateResponse struct {
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
	Occurrences int     `json:"occurrences"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewSkillResponse(s skill.Skill) SkillResponse {
	out := SkillResponse{
		Name:           s.Name,
		Confidence:     s.Confidence,
		Source:         string(s.Source),
		ApplicationIDs: s.ApplicationIDs,
		JobIDs:         s.JobIDs,
		Frequency:      s.Frequency,
	}
	if out.ApplicationIDs == nil {
		out.ApplicationIDs = []string{}
	}
	if out.JobIDs == nil {
		out.JobIDs = []string{}
	}
	if !s.LastUpdated.IsZero() {
		out.LastUpdated = s.LastUpdated.UTC().Format(time.RFC3339)
	}
	return out
}

func NewSkillResponses(items []skill.Skill) []SkillResponse {
	out := make([]SkillResponse, 0, len(items))
	for _, s := range items {
		out = append(out, NewSkillResponse(s))
	}
	return out
}

func NewCandidateResponses(items []skill.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(items))
	for _, c := range items {
		out = append(out, CandidateResponse{
			Name:        c.Name,
			Confidence:  c.Confidence,
			Source:      string(c.Source),
			Occurrences: c.Occurrences,
		})
	}
	return out
}
