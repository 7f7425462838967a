package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cvalign/internal/domain/skill"
	"cvalign/internal/graph"
	"cvalign/internal/queue"

	"github.com/cenkalti/backoff/v5"
)

// Syncer applies graph updates. The knowledge graph gateway satisfies it.
type Syncer interface {
	SyncSkillNode(ctx context.Context, name string, relatedSkills, relatedJobs []string) error
	SyncJobNode(ctx context.Context, jobID, title, company string, skills []string) error
}

// CacheInvalidator drops cached graph query results.
type CacheInvalidator interface {
	InvalidateGraphQueries(ctx context.Context)
}

type SyncNotifier interface {
	GraphSynced(kind, node string)
}

type GraphSyncParams struct {
	Workers  int
	RPS      float64
	MaxTries uint
	Buffer   int

	// InitialInterval and MaxElapsed tune the retry backoff; zero uses defaults.
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// GraphSyncPipeline drains graph update tasks in the background so a slow or
// missing graph worker never holds up a request.
type GraphSyncPipeline struct {
	q        queue.Queue
	syncer   Syncer
	cache    CacheInvalidator
	notifier SyncNotifier
	params   GraphSyncParams
	log      *log.Logger
}

func NewGraphSyncPipeline(q queue.Queue, syncer Syncer, cache CacheInvalidator, notifier SyncNotifier, params GraphSyncParams, logger *log.Logger) *GraphSyncPipeline {
	if logger == nil {
		logger = log.Default()
	}
	if params.Workers <= 0 {
		params.Workers = 1
	}
	if params.MaxTries == 0 {
		params.MaxTries = 5
	}
	if params.InitialInterval <= 0 {
		params.InitialInterval = 200 * time.Millisecond
	}
	if params.MaxElapsed <= 0 {
		params.MaxElapsed = 2 * time.Minute
	}
	return &GraphSyncPipeline{
		q:        q,
		syncer:   syncer,
		cache:    cache,
		notifier: notifier,
		params:   params,
		log:      logger,
	}
}

// Enqueue publishes a task without blocking. A rejected task is logged and
// dropped.
func (p *GraphSyncPipeline) Enqueue(ctx context.Context, t queue.Task) bool {
	if p == nil || p.q == nil {
		return false
	}
	if err := p.q.Publish(ctx, t); err != nil {
		p.log.Printf("pipeline=graph_sync status=drop task_id=%s kind=%s err=%v", t.ID, t.Kind, err)
		return false
	}
	return true
}

// Run consumes until ctx is done or the queue closes, then waits for
// in-flight tasks.
func (p *GraphSyncPipeline) Run(ctx context.Context) error {
	if p == nil {
		return nil
	}
	deliveries, err := p.q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("graph sync consume: %w", err)
	}

	pool := NewWorkerPool(p.params.Workers, p.params.Buffer)
	pool.SetRateLimit(p.params.RPS)
	results := pool.Run(ctx)

	p.log.Printf("pipeline=graph_sync status=started workers=%d rps=%.2f max_tries=%d", p.params.Workers, p.params.RPS, p.params.MaxTries)

	drained := make(chan struct{})
	var ok, failed int
	go func() {
		defer close(drained)
		for r := range results {
			if r.Err != nil {
				failed++
			} else {
				ok++
			}
		}
	}()

	for d := range deliveries {
		if !pool.Submit(ctx, func(ctx context.Context) error { return p.handle(ctx, d) }) {
			p.giveBack(d, "shutdown")
			break
		}
	}
	pool.Close()
	<-drained

	p.log.Printf("pipeline=graph_sync status=stopped ok=%d failed=%d", ok, failed)
	return nil
}

func (p *GraphSyncPipeline) handle(ctx context.Context, d queue.Delivery) error {
	t := d.Task
	if ctx.Err() != nil {
		p.giveBack(d, "shutdown")
		return ctx.Err()
	}
	start := time.Now()
	attempts := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.params.InitialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, p.apply(ctx, t)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(p.params.MaxTries),
		backoff.WithMaxElapsedTime(p.params.MaxElapsed),
	)
	if err != nil && ctx.Err() != nil {
		p.giveBack(d, "shutdown")
		return err
	}
	if err != nil {
		p.log.Printf("pipeline=graph_sync status=exhausted task_id=%s kind=%s attempts=%d err=%v", t.ID, t.Kind, attempts, err)
		_ = d.Nack(false)
		return err
	}

	_ = d.Ack()
	if p.cache != nil {
		p.cache.InvalidateGraphQueries(ctx)
	}
	if p.notifier != nil {
		p.notifier.GraphSynced(string(t.Kind), nodeName(t))
	}
	p.log.Printf("pipeline=graph_sync status=ok task_id=%s kind=%s attempts=%d duration=%s", t.ID, t.Kind, attempts, time.Since(start))
	return nil
}

// giveBack returns an unfinished task to its queue and logs a drop when the
// queue cannot take it back.
func (p *GraphSyncPipeline) giveBack(d queue.Delivery, reason string) {
	t := d.Task
	if !d.Requeueable() {
		p.log.Printf("pipeline=graph_sync status=drop task_id=%s kind=%s reason=%s err=not_requeueable", t.ID, t.Kind, reason)
		return
	}
	if err := d.Nack(true); err != nil {
		p.log.Printf("pipeline=graph_sync status=drop task_id=%s kind=%s reason=%s err=%v", t.ID, t.Kind, reason, err)
		return
	}
	p.log.Printf("pipeline=graph_sync status=requeue task_id=%s kind=%s reason=%s", t.ID, t.Kind, reason)
}

func (p *GraphSyncPipeline) apply(ctx context.Context, t queue.Task) error {
	if err := t.Validate(); err != nil {
		return backoff.Permanent(err)
	}
	switch t.Kind {
	case queue.KindSkillNode:
		return p.syncer.SyncSkillNode(ctx, t.Skill.Name, t.Skill.RelatedSkills, t.Skill.RelatedJobs)
	case queue.KindJobNode:
		return p.syncer.SyncJobNode(ctx, t.Job.JobID, t.Job.Title, t.Job.Company, t.Job.Skills)
	}
	return backoff.Permanent(errors.New("unhandled task kind"))
}

func nodeName(t queue.Task) string {
	switch {
	case t.Skill != nil:
		return graph.NodeKey(graph.TypeSkill, skill.CanonicalName(t.Skill.Name))
	case t.Job != nil:
		return graph.NodeKey(graph.TypeJob, t.Job.JobID)
	}
	return ""
}
