package handler

import (
	"net/url"

	"cvalign/internal/delivery/http/dto"
	"cvalign/internal/delivery/http/middleware"
	"cvalign/internal/graph"
	"cvalign/internal/pkg/response"
	"cvalign/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type SkillHandler struct {
	uc usecase.SkillUsecase
}

func NewSkillHandler(uc usecase.SkillUsecase) *SkillHandler {
	return &SkillHandler{uc: uc}
}

func (h *SkillHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	grp := r.Group("/skills")
	grp.Get("/all", h.ListAll)
	grp.Get("/search", h.Search)
	grp.Get("/top", h.Top)
	grp.Get("/stats", h.Stats)
	grp.Get("/application/:id", h.ByApplication)
	grp.Get("/job/:id", h.ByJob)
	grp.Get("/job/:id/similar", h.SimilarToJob)
	grp.Get("/graph/search", h.SearchGraph)
	grp.Get("/name", h.Get)
	grp.Get("/name/:name", h.Get)

	grp.Post("/find-jobs", h.FindJobs)
	grp.Post("/find-related", h.FindRelated)
	grp.Post("/recommendations", h.Recommendations)
	grp.Post("/anomaly", h.Anomaly)
	grp.Post("/rank-candidates", h.RankCandidates)
	grp.Post("/extract", h.Extract)
}

// RegisterWriteRoutes mounts routes that change stored skills.
func (h *SkillHandler) RegisterWriteRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Post("/skills/manual", h.AddManual)
}

func (h *SkillHandler) ListAll(c fiber.Ctx) error {
	items, err := h.uc.ListAll(c.Context())
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, dto.NewSkillResponses(items))
}

// Get takes the name from ?name= or the path. Names like "ci/cd" only fit the
// query form; path names arrive escaped and are decoded here.
func (h *SkillHandler) Get(c fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		raw := c.Params("name")
		decoded, err := url.PathUnescape(raw)
		if err != nil {
			return middleware.BadRequest("Invalid skill name", nil, err)
		}
		name = decoded
	}
	s, err := h.uc.Get(c.Context(), name)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, dto.NewSkillResponse(s))
}

func (h *SkillHandler) Search(c fiber.Ctx) error {
	limit, err := parseQueryIntStrict(c, "limit", 0)
	if err != nil {
		return err
	}
	items, err := h.uc.Search(c.Context(), c.Query("query"), limit)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, dto.NewSkillResponses(items))
}

func (h *SkillHandler) Top(c fiber.Ctx) error {
	limit, err := parseQueryIntStrict(c, "limit", 0)
	if err != nil {
		return err
	}
	items, err := h.uc.Top(c.Context(), limit)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, dto.NewSkillResponses(items))
}

func (h *SkillHandler) Stats(c fiber.Ctx) error {
	return response.OK(c, h.uc.GetStats(c.Context()))
}

func (h *SkillHandler) ByApplication(c fiber.Ctx) error {
	items, err := h.uc.ByApplication(c.Context(), c.Params("id"))
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, dto.NewSkillResponses(items))
}

func (h *SkillHandler) ByJob(c fiber.Ctx) error {
	items, err := h.uc.ByJob(c.Context(), c.Params("id"))
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, dto.NewSkillResponses(items))
}

func (h *SkillHandler) FindJobs(c fiber.Ctx) error {
	var req dto.SkillListRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.uc.FindJobsBySkills(c.Context(), req.Skills, req.Limit)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, res)
}

func (h *SkillHandler) FindRelated(c fiber.Ctx) error {
	var req dto.SkillListRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.uc.FindRelatedSkills(c.Context(), req.Skills, req.Limit)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, res)
}

func (h *SkillHandler) Recommendations(c fiber.Ctx) error {
	var req dto.RecommendationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.uc.GetSkillRecommendations(c.Context(), req.TargetJob, req.CurrentSkills, req.Limit)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, res)
}

func (h *SkillHandler) Anomaly(c fiber.Ctx) error {
	var req dto.AnomalyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.uc.CheckAnomaly(c.Context(), req.Skill, req.Target)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, res)
}

func (h *SkillHandler) SimilarToJob(c fiber.Ctx) error {
	limit, err := parseQueryIntStrict(c, "limit", 0)
	if err != nil {
		return err
	}
	id, err := url.PathUnescape(c.Params("id"))
	if err != nil {
		return middleware.BadRequest("Invalid job id", nil, err)
	}
	res, err := h.uc.FindSimilarToJob(c.Context(), id, limit)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, res)
}

func (h *SkillHandler) RankCandidates(c fiber.Ctx) error {
	var req dto.RankCandidatesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cands := make([]graph.Candidate, 0, len(req.Candidates))
	for _, cs := range req.Candidates {
		cands = append(cands, graph.Candidate{ID: cs.ID, Skills: cs.Skills})
	}
	res, err := h.uc.RankCandidates(c.Context(), req.JobID, cands, req.Limit)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, res)
}

func (h *SkillHandler) SearchGraph(c fiber.Ctx) error {
	limit, err := parseQueryIntStrict(c, "limit", 0)
	if err != nil {
		return err
	}
	hits, err := h.uc.SearchGraph(c.Context(), c.Query("q"), c.Query("type"), limit)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, hits)
}

func (h *SkillHandler) Extract(c fiber.Ctx) error {
	var req dto.ExtractRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	items, err := h.uc.Extract(c.Context(), req.Text)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.OK(c, dto.NewCandidateResponses(items))
}

func (h *SkillHandler) AddManual(c fiber.Ctx) error {
	var req dto.ManualSkillRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s, err := h.uc.AddManualSkill(c.Context(), req.Name, req.Confidence)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Created(c, "Skill saved", dto.NewSkillResponse(s))
}
