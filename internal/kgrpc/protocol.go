// Package kgrpc is the request/response protocol spoken between the API
// process and the knowledge graph worker: one JSON object per line, requests
// carry an id that the matching response echoes.
package kgrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	MethodPing         = "ping"
	MethodAddNode      = "add_node"
	MethodQuerySkill   = "query_skill"
	MethodQueryJob     = "query_job"
	MethodSimilarJobs  = "similar_jobs"
	MethodStats        = "stats"
	MethodCheckAnomaly = "check_anomaly"
	MethodRank         = "rank_candidates"
	MethodSearchNodes  = "search_nodes"
)

const (
	CodeNotFound         = "not_found"
	CodeGraphUnavailable = "graph_unavailable"
	CodeInvalidParams    = "invalid_params"
	CodeUnknownMethod    = "unknown_method"
	CodeInternal         = "internal"
)

// MessageGraphUnavailable is the message carried by CodeGraphUnavailable.
const MessageGraphUnavailable = "Knowledge graph not found"

var ErrClosed = errors.New("kgrpc: connection closed")

type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
}

// RemoteError is an error reported by the worker.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("kgrpc %s: %s", e.Code, e.Message)
}

func NewError(code, format string, args ...any) *RemoteError {
	return &RemoteError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is a RemoteError with the given code.
func IsCode(err error, code string) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Code == code
}

type AddNodeParams struct {
	Key       string            `json:"key"`
	Type      string            `json:"type"`
	Neighbors []string          `json:"neighbors"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

type AddNodeResult struct {
	Key     string   `json:"key"`
	Skipped []string `json:"skipped,omitempty"`
}

type QueryParams struct {
	Skill string `json:"skill,omitempty"`
	Job   string `json:"job,omitempty"`
	Limit int    `json:"limit"`
}

type AnomalyParams struct {
	Skill         string   `json:"skill"`
	Target        string   `json:"target"`
	MaxDepth      int      `json:"max_depth,omitempty"`
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
}

type RankParams struct {
	Job        string          `json:"job"`
	Candidates []RankCandidate `json:"candidates"`
	Limit      int             `json:"limit"`
}

type RankCandidate struct {
	ID     string   `json:"id"`
	Skills []string `json:"skills"`
}

type SearchParams struct {
	Query string `json:"query"`
	Type  string `json:"type,omitempty"`
	Limit int    `json:"limit"`
}
