package graph

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"

	"cvalign/internal/kgrpc"
)

const defaultQueryLimit = 5

// Service answers kgrpc methods against a graph persisted in a Store. The
// artifact is opened lazily: reads before it exists fail with
// graph_unavailable, the first write creates it.
type Service struct {
	path string
	seed uint64
	log  *log.Logger

	mu    sync.Mutex
	graph *Graph
	store *Store

	writeMu sync.Mutex
}

func NewService(path string, seed uint64, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{path: path, seed: seed, log: logger}
}

func (s *Service) readGraph(ctx context.Context) (*Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph != nil {
		return s.graph, nil
	}
	if s.store == nil {
		st, err := OpenStore(ctx, s.path, false)
		if err != nil {
			return nil, err
		}
		s.store = st
	}
	g, err := s.store.Load(ctx, s.seed)
	if err != nil {
		return nil, err
	}
	s.graph = g
	return g, nil
}

func (s *Service) writeGraph(ctx context.Context) (*Graph, *Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		st, err := OpenStore(ctx, s.path, true)
		if err != nil {
			return nil, nil, err
		}
		s.store = st
	}
	if s.graph == nil {
		g, err := s.store.Load(ctx, s.seed)
		if err != nil {
			return nil, nil, err
		}
		s.graph = g
	}
	return s.graph, s.store, nil
}

// Reload drops the in-memory graph so the next call reads the artifact again,
// picking up an out-of-band rebuild.
func (s *Service) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		_ = s.store.Close()
	}
	s.store = nil
	s.graph = nil
	s.log.Printf("kg service status=reload path=%s", s.path)
}

// discard drops a graph that ran ahead of its artifact after a failed write.
// The next call reopens the store and reloads what was actually committed.
func (s *Service) discard(st *Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != st {
		return
	}
	_ = st.Close()
	s.store = nil
	s.graph = nil
	s.log.Printf("kg service status=discard path=%s reason=apply_failed", s.path)
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.store.Close()
	s.store = nil
	s.graph = nil
	return err
}

func (s *Service) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case kgrpc.MethodPing:
		return map[string]string{"status": "ok"}, nil
	case kgrpc.MethodAddNode:
		return s.addNode(ctx, params)
	case kgrpc.MethodQuerySkill:
		var p kgrpc.QueryParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Skill) == "" {
			return nil, kgrpc.NewError(kgrpc.CodeInvalidParams, "skill is required")
		}
		g, err := s.readGraph(ctx)
		if err != nil {
			return nil, toRemote(err)
		}
		out, err := g.QuerySkill(p.Skill, limitOr(p.Limit))
		return out, toRemote(err)
	case kgrpc.MethodQueryJob:
		var p kgrpc.QueryParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Job) == "" {
			return nil, kgrpc.NewError(kgrpc.CodeInvalidParams, "job is required")
		}
		g, err := s.readGraph(ctx)
		if err != nil {
			return nil, toRemote(err)
		}
		out, err := g.QueryJob(p.Job, limitOr(p.Limit))
		return out, toRemote(err)
	case kgrpc.MethodSimilarJobs:
		var p kgrpc.QueryParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Skill) == "" {
			return nil, kgrpc.NewError(kgrpc.CodeInvalidParams, "skill is required")
		}
		g, err := s.readGraph(ctx)
		if err != nil {
			return nil, toRemote(err)
		}
		out, err := g.SimilarJobs(p.Skill, limitOr(p.Limit))
		return out, toRemote(err)
	case kgrpc.MethodStats:
		g, err := s.readGraph(ctx)
		if err != nil {
			return nil, toRemote(err)
		}
		return g.Stats(), nil
	case kgrpc.MethodCheckAnomaly:
		var p kgrpc.AnomalyParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Skill) == "" || strings.TrimSpace(p.Target) == "" {
			return nil, kgrpc.NewError(kgrpc.CodeInvalidParams, "skill and target are required")
		}
		minSim := DefaultMinSimilarity
		if p.MinSimilarity != nil {
			minSim = *p.MinSimilarity
		}
		g, err := s.readGraph(ctx)
		if err != nil {
			return nil, toRemote(err)
		}
		out, err := g.CheckAnomaly(p.Skill, p.Target, p.MaxDepth, minSim)
		return out, toRemote(err)
	case kgrpc.MethodRank:
		var p kgrpc.RankParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Job) == "" {
			return nil, kgrpc.NewError(kgrpc.CodeInvalidParams, "job is required")
		}
		cands := make([]Candidate, 0, len(p.Candidates))
		for _, c := range p.Candidates {
			cands = append(cands, Candidate{ID: c.ID, Skills: c.Skills})
		}
		g, err := s.readGraph(ctx)
		if err != nil {
			return nil, toRemote(err)
		}
		out, err := g.RankCandidates(p.Job, cands, p.Limit)
		return out, toRemote(err)
	case kgrpc.MethodSearchNodes:
		var p kgrpc.SearchParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		g, err := s.readGraph(ctx)
		if err != nil {
			return nil, toRemote(err)
		}
		out, err := g.SearchNodes(p.Query, p.Type, limitOr(p.Limit))
		return out, toRemote(err)
	default:
		return nil, kgrpc.NewError(kgrpc.CodeUnknownMethod, "unknown method %q", method)
	}
}

func (s *Service) addNode(ctx context.Context, params json.RawMessage) (any, error) {
	var p kgrpc.AddNodeParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	g, st, err := s.writeGraph(ctx)
	if err != nil {
		return nil, toRemote(err)
	}
	ch, skipped, err := g.AddNodeWithNeighbors(p.Key, p.Type, p.Neighbors, p.Attrs)
	if err != nil {
		return nil, toRemote(err)
	}
	for _, n := range skipped {
		s.log.Printf("kg service status=warn op=add_node key=%s reason=untyped_neighbor neighbor=%s", p.Key, n)
	}
	if err := st.Apply(ctx, ch); err != nil {
		s.discard(st)
		s.log.Printf("kg service status=error op=add_node key=%s err=%v", p.Key, err)
		return nil, kgrpc.NewError(kgrpc.CodeInternal, "persist node: %v", err)
	}
	s.log.Printf("kg service status=ok op=add_node key=%s type=%s neighbors=%d", p.Key, p.Type, len(p.Neighbors))
	return kgrpc.AddNodeResult{Key: p.Key, Skipped: skipped}, nil
}

func decode(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return kgrpc.NewError(kgrpc.CodeInvalidParams, "decode params: %v", err)
	}
	return nil
}

func limitOr(v int) int {
	if v <= 0 {
		return defaultQueryLimit
	}
	return v
}

func toRemote(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnavailable):
		return kgrpc.NewError(kgrpc.CodeGraphUnavailable, kgrpc.MessageGraphUnavailable)
	case errors.Is(err, ErrNodeNotFound):
		return kgrpc.NewError(kgrpc.CodeNotFound, "%s", err.Error())
	case errors.Is(err, ErrInvalidNode):
		return kgrpc.NewError(kgrpc.CodeInvalidParams, "%s", err.Error())
	default:
		return kgrpc.NewError(kgrpc.CodeInternal, "%s", err.Error())
	}
}
