// Package queue carries knowledge graph sync tasks from the request path to
// the background sync pipeline.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSkillNode Kind = "skill_node"
	KindJobNode   Kind = "job_node"
)

var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)

type SkillNode struct {
	Name          string   `json:"name"`
	RelatedSkills []string `json:"related_skills,omitempty"`
	RelatedJobs   []string `json:"related_jobs,omitempty"`
}

type JobNode struct {
	JobID   string   `json:"job_id"`
	Title   string   `json:"title"`
	Company string   `json:"company"`
	Skills  []string `json:"skills"`
}

// Task is one graph update. Exactly one of Skill or Job is set, matching Kind.
type Task struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Skill      *SkillNode `json:"skill,omitempty"`
	Job        *JobNode   `json:"job,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

func NewSkillNodeTask(name string, relatedSkills, relatedJobs []string) Task {
	return Task{
		ID:         uuid.NewString(),
		Kind:       KindSkillNode,
		Skill:      &SkillNode{Name: name, RelatedSkills: relatedSkills, RelatedJobs: relatedJobs},
		EnqueuedAt: time.Now().UTC(),
	}
}

func NewJobNodeTask(jobID, title, company string, skills []string) Task {
	return Task{
		ID:         uuid.NewString(),
		Kind:       KindJobNode,
		Job:        &JobNode{JobID: jobID, Title: title, Company: company, Skills: skills},
		EnqueuedAt: time.Now().UTC(),
	}
}

func (t Task) Validate() error {
	switch t.Kind {
	case KindSkillNode:
		if t.Skill == nil || t.Skill.Name == "" {
			return errors.New("skill_node task without skill name")
		}
	case KindJobNode:
		if t.Job == nil || t.Job.JobID == "" {
			return errors.New("job_node task without job id")
		}
	default:
		return errors.New("unknown task kind " + string(t.Kind))
	}
	return nil
}

// Delivery is a consumed task. Exactly one of Ack or Nack should be called.
type Delivery struct {
	Task Task
	ack  func() error
	nack func(requeue bool) error
}

func NewDelivery(t Task, ack func() error, nack func(requeue bool) error) Delivery {
	return Delivery{Task: t, ack: ack, nack: nack}
}

func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Requeueable reports whether Nack(true) can hand the task back to the queue.
func (d Delivery) Requeueable() bool {
	return d.nack != nil
}

func (d Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

// Queue publishes without blocking the caller and streams deliveries to one
// consumer until ctx is done or the queue is closed.
type Queue interface {
	Publish(ctx context.Context, t Task) error
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}
