package usecase

import (
	"context"
	"log"
	"strings"

	"cvalign/internal/domain/skill"
	"cvalign/internal/queue"
	"cvalign/internal/repository"
)

// ResumeTextResolver loads a stored resume object and returns its plain text.
type ResumeTextResolver interface {
	ResolveText(ctx context.Context, objectKey, mimeType string) (string, error)
}

// JobPageFetcher returns the readable text of a job posting page.
type JobPageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

type ApplicationInput struct {
	ApplicationID   string
	JobID           string
	ResumeText      string
	ResumeObjectKey string
	ResumeMimeType  string
}

type JobPostingInput struct {
	JobID       string
	Title       string
	Company     string
	Description string
	URL         string
}

type EnrichmentResult struct {
	ApplicationID string        `json:"application_id,omitempty"`
	JobID         string        `json:"job_id,omitempty"`
	Skills        []skill.Skill `json:"skills"`
	Queued        int           `json:"graph_tasks_queued"`
}

type EnrichmentUsecase interface {
	ProcessApplication(ctx context.Context, in ApplicationInput) (EnrichmentResult, error)
	ProcessJobPosting(ctx context.Context, in JobPostingInput) (EnrichmentResult, error)
}

// Enrichment attaches extracted skills to submitted applications and job
// postings. Extraction and graph updates are best effort; only a store write
// failure fails the call.
type Enrichment struct {
	repo      repository.SkillRepository
	extractor SkillExtractor
	resumes   ResumeTextResolver
	pages     JobPageFetcher
	sync      GraphSync
	cache     QueryCache
	notifier  SkillsNotifier
	logger    *log.Logger
}

type EnrichmentDeps struct {
	Repo      repository.SkillRepository
	Extractor SkillExtractor
	Resumes   ResumeTextResolver
	Pages     JobPageFetcher
	Sync      GraphSync
	Cache     QueryCache
	Notifier  SkillsNotifier
	Logger    *log.Logger
}

func NewEnrichmentUsecase(d EnrichmentDeps) *Enrichment {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	return &Enrichment{
		repo:      d.Repo,
		extractor: d.Extractor,
		resumes:   d.Resumes,
		pages:     d.Pages,
		sync:      d.Sync,
		cache:     d.Cache,
		notifier:  d.Notifier,
		logger:    d.Logger,
	}
}

func (u *Enrichment) ProcessApplication(ctx context.Context, in ApplicationInput) (EnrichmentResult, error) {
	in.ApplicationID = strings.TrimSpace(in.ApplicationID)
	in.JobID = strings.TrimSpace(in.JobID)
	if in.ApplicationID == "" {
		return EnrichmentResult{}, invalid("application_id", "is required")
	}
	if strings.TrimSpace(in.ResumeText) == "" && strings.TrimSpace(in.ResumeObjectKey) == "" {
		return EnrichmentResult{}, invalid("resume", "resume_text or resume_object_key is required")
	}

	out := EnrichmentResult{ApplicationID: in.ApplicationID, JobID: in.JobID, Skills: []skill.Skill{}}
	ref := skill.Ref{ApplicationID: in.ApplicationID, JobID: in.JobID}

	text := in.ResumeText
	if strings.TrimSpace(text) == "" {
		resolved, err := u.resolveResume(ctx, in.ResumeObjectKey, in.ResumeMimeType)
		if err != nil {
			u.logger.Printf("enrichment status=skip op=resolve_resume application_id=%s key=%s err=%v", in.ApplicationID, in.ResumeObjectKey, err)
			return out, nil
		}
		text = resolved
	}

	candidates := u.extractor.ExtractSkills(text, ref, skill.SourceResume)
	if len(candidates) == 0 {
		u.logger.Printf("enrichment status=empty op=application application_id=%s", in.ApplicationID)
		return out, nil
	}

	saved, err := u.repo.Persist(ctx, candidates, ref)
	if err != nil {
		u.logger.Printf("enrichment status=error op=persist application_id=%s err=%v", in.ApplicationID, err)
		return EnrichmentResult{}, ErrPersistence
	}
	out.Skills = saved

	var relatedJobs []string
	if in.JobID != "" {
		relatedJobs = []string{in.JobID}
	}
	names := skillNames(saved)
	for _, name := range names {
		if u.enqueue(ctx, queue.NewSkillNodeTask(name, nil, relatedJobs)) {
			out.Queued++
		}
	}

	u.afterWrite(ctx, in.ApplicationID, in.JobID, names)
	u.logger.Printf("enrichment status=ok op=application application_id=%s skills=%d queued=%d", in.ApplicationID, len(saved), out.Queued)
	return out, nil
}

func (u *Enrichment) ProcessJobPosting(ctx context.Context, in JobPostingInput) (EnrichmentResult, error) {
	in.JobID = strings.TrimSpace(in.JobID)
	in.Title = strings.TrimSpace(in.Title)
	in.Company = strings.TrimSpace(in.Company)
	if in.JobID == "" {
		return EnrichmentResult{}, invalid("job_id", "is required")
	}
	if in.Title == "" {
		return EnrichmentResult{}, invalid("title", "is required")
	}
	if strings.TrimSpace(in.Description) == "" && strings.TrimSpace(in.URL) == "" {
		return EnrichmentResult{}, invalid("description", "description or url is required")
	}

	out := EnrichmentResult{JobID: in.JobID, Skills: []skill.Skill{}}
	ref := skill.Ref{JobID: in.JobID}

	text := in.Description
	if strings.TrimSpace(text) == "" {
		if u.pages == nil {
			u.logger.Printf("enrichment status=skip op=fetch_job job_id=%s reason=no_fetcher", in.JobID)
		} else if fetched, err := u.pages.FetchText(ctx, in.URL); err != nil {
			u.logger.Printf("enrichment status=skip op=fetch_job job_id=%s url=%s err=%v", in.JobID, in.URL, err)
		} else {
			text = fetched
		}
	}

	var names []string
	if candidates := u.extractor.ExtractSkills(text, ref, skill.SourceJobPosting); len(candidates) > 0 {
		saved, err := u.repo.Persist(ctx, candidates, ref)
		if err != nil {
			u.logger.Printf("enrichment status=error op=persist job_id=%s err=%v", in.JobID, err)
			return EnrichmentResult{}, ErrPersistence
		}
		out.Skills = saved
		names = skillNames(saved)
	}

	if u.enqueue(ctx, queue.NewJobNodeTask(in.JobID, in.Title, in.Company, names)) {
		out.Queued++
	}
	for _, name := range names {
		if u.enqueue(ctx, queue.NewSkillNodeTask(name, nil, []string{in.JobID})) {
			out.Queued++
		}
	}

	if len(names) > 0 {
		u.afterWrite(ctx, "", in.JobID, names)
	}
	u.logger.Printf("enrichment status=ok op=job_posting job_id=%s skills=%d queued=%d", in.JobID, len(names), out.Queued)
	return out, nil
}

func (u *Enrichment) resolveResume(ctx context.Context, key, mime string) (string, error) {
	if u.resumes == nil {
		return "", errNoResumeStorage
	}
	return u.resumes.ResolveText(ctx, strings.TrimSpace(key), strings.TrimSpace(mime))
}

func (u *Enrichment) enqueue(ctx context.Context, t queue.Task) bool {
	if u.sync == nil {
		return false
	}
	return u.sync.Enqueue(ctx, t)
}

func (u *Enrichment) afterWrite(ctx context.Context, applicationID, jobID string, names []string) {
	if u.cache != nil {
		u.cache.InvalidateSkillListings(ctx)
	}
	if u.notifier != nil {
		u.notifier.SkillsUpdated(applicationID, jobID, names)
	}
}

func skillNames(items []skill.Skill) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, s.Name)
	}
	return out
}
