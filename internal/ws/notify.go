package ws

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

type SkillsUpdatedEvent struct {
	Type          string   `json:"type"`
	ApplicationID string   `json:"application_id,omitempty"`
	JobID         string   `json:"job_id,omitempty"`
	Skills        []string `json:"skills"`
	Timestamp     string   `json:"timestamp"`
}

type GraphSyncedEvent struct {
	Type      string `json:"type"`
	Kind      string `json:"kind"`
	Node      string `json:"node"`
	Timestamp string `json:"timestamp"`
}

var defaultHub atomic.Pointer[Hub]

func SetDefaultHub(h *Hub) {
	defaultHub.Store(h)
}

// Notifier publishes events on the default hub. The zero value is ready to
// use and silently does nothing until a hub is set.
type Notifier struct{}

func (Notifier) SkillsUpdated(applicationID, jobID string, skills []string) {
	if skills == nil {
		skills = []string{}
	}
	publish(SkillsUpdatedEvent{
		Type:          "skills_updated",
		ApplicationID: applicationID,
		JobID:         jobID,
		Skills:        skills,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

func (Notifier) GraphSynced(kind, node string) {
	publish(GraphSyncedEvent{
		Type:      "graph_synced",
		Kind:      kind,
		Node:      node,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func publish(evt any) {
	h := defaultHub.Load()
	if h == nil {
		return
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.Broadcast(b)
}
