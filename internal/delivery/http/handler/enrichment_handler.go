package handler

import (
	"cvalign/internal/delivery/http/dto"
	"cvalign/internal/pkg/response"
	"cvalign/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type enrichmentResponse struct {
	ApplicationID string              `json:"application_id,omitempty"`
	JobID         string              `json:"job_id,omitempty"`
	Skills        []dto.SkillResponse `json:"skills"`
	Count         int                 `json:"count"`
	Queued        int                 `json:"graph_tasks_queued"`
}

// EnrichmentHandler serves the submission hooks called when an application
// or job posting is created elsewhere in the platform.
type EnrichmentHandler struct {
	uc usecase.EnrichmentUsecase
}

func NewEnrichmentHandler(uc usecase.EnrichmentUsecase) *EnrichmentHandler {
	return &EnrichmentHandler{uc: uc}
}

func (h *EnrichmentHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Post("/applications/skills", h.ProcessApplication)
	r.Post("/jobs/skills", h.ProcessJobPosting)
}

func (h *EnrichmentHandler) ProcessApplication(c fiber.Ctx) error {
	var req dto.ApplicationSkillsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.uc.ProcessApplication(c.Context(), usecase.ApplicationInput{
		ApplicationID:   req.ApplicationID,
		JobID:           req.JobID,
		ResumeText:      req.ResumeText,
		ResumeObjectKey: req.ResumeObjectKey,
		ResumeMimeType:  req.ResumeMimeType,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Write(c, fiber.StatusOK, "Skills extracted", toEnrichmentResponse(res))
}

func (h *EnrichmentHandler) ProcessJobPosting(c fiber.Ctx) error {
	var req dto.JobSkillsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.uc.ProcessJobPosting(c.Context(), usecase.JobPostingInput{
		JobID:       req.JobID,
		Title:       req.Title,
		Company:     req.Company,
		Description: req.Description,
		URL:         req.URL,
	})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Write(c, fiber.StatusOK, "Skills extracted", toEnrichmentResponse(res))
}

func toEnrichmentResponse(res usecase.EnrichmentResult) enrichmentResponse {
	skills := dto.NewSkillResponses(res.Skills)
	return enrichmentResponse{
		ApplicationID: res.ApplicationID,
		JobID:         res.JobID,
		Skills:        skills,
		Count:         len(skills),
		Queued:        res.Queued,
	}
}
