package dto

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

type SkillListRequest struct {
	Skills []string `json:"skills" validate:"required,min=1,dive,required,max=100"`
	Limit  int      `json:"limit" validate:"gte=0,lte=100"`
}

func (r *SkillListRequest) Validate() error { return validatorInstance().Struct(r) }

type RecommendationRequest struct {
	TargetJob     string   `json:"targetJob" validate:"required,max=200"`
	CurrentSkills []string `json:"currentSkills" validate:"required,dive,max=500"`
	Limit         int      `json:"limit" validate:"gte=0,lte=100"`
}

func (r *RecommendationRequest) Validate() error { return validatorInstance().Struct(r) }

type AnomalyRequest struct {
	Skill  string `json:"skill" validate:"required,max=100"`
	Target string `json:"target" validate:"required,max=200"`
}

func (r *AnomalyRequest) Validate() error { return validatorInstance().Struct(r) }

type CandidateSkills struct {
	ID     string   `json:"id" validate:"required,max=100"`
	Skills []string `json:"skills" validate:"required,dive,max=100"`
}

type RankCandidatesRequest struct {
	JobID      string            `json:"jobId" validate:"required,max=100"`
	Candidates []CandidateSkills `json:"candidates" validate:"required,min=1,max=500,dive"`
	Limit      int               `json:"limit" validate:"gte=0,lte=100"`
}

func (r *RankCandidatesRequest) Validate() error { return validatorInstance().Struct(r) }

type ExtractRequest struct {
	Text string `json:"text" validate:"required,max=200000"`
}

func (r *ExtractRequest) Validate() error { return validatorInstance().Struct(r) }

type ManualSkillRequest struct {
	Name       string   `json:"name" validate:"required,max=100"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
}

func (r *ManualSkillRequest) Validate() error { return validatorInstance().Struct(r) }

type ApplicationSkillsRequest struct {
	ApplicationID   string `json:"application_id" validate:"required,max=100"`
	JobID           string `json:"job_id" validate:"max=100"`
	ResumeText      string `json:"resume_text" validate:"required_without=ResumeObjectKey,max=200000"`
	ResumeObjectKey string `json:"resume_object_key" validate:"max=1024"`
	ResumeMimeType  string `json:"resume_mime_type" validate:"max=200"`
}

func (r *ApplicationSkillsRequest) Validate() error { return validatorInstance().Struct(r) }

type JobSkillsRequest struct {
	JobID       string `json:"job_id" validate:"required,max=100"`
	Title       string `json:"title" validate:"required,max=200"`
	Company     string `json:"company" validate:"max=200"`
	Description string `json:"description" validate:"required_without=URL,max=200000"`
	URL         string `json:"url" validate:"omitempty,url"`
}

func (r *JobSkillsRequest) Validate() error { return validatorInstance().Struct(r) }
