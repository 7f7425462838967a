// Package graph holds the knowledge graph served by the kgworker process:
// skill, job and company nodes, undirected edges between them and a small
// embedding per node used for similarity queries.
package graph

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	TypeSkill   = "skill"
	TypeJob     = "job"
	TypeCompany = "company"

	RelationPostedBy      = "POSTED_BY"
	RelationRequiresSkill = "REQUIRES_SKILL"
	RelationRelated       = "RELATED"

	Dimensions = 32
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrInvalidNode  = errors.New("invalid node")
)

// Node is one vertex. Attrs carries display data such as job title and company.
type Node struct {
	Key   string            `json:"key"`
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// NewNodeEntry records a realtime addition so the next rebuild knows what
// arrived since the last full retrain.
type NewNodeEntry struct {
	Key     string    `json:"key"`
	Type    string    `json:"type"`
	AddedAt time.Time `json:"added_at"`
}

// Change is the delta produced by a realtime add, applied to the store as a unit.
type Change struct {
	Nodes      []Node
	Edges      []Edge
	Embeddings map[string][]float64
	Logged     NewNodeEntry
}

// Graph is safe for concurrent use.
type Graph struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	adj      map[string]map[string]string
	emb      map[string][]float64
	newNodes []NewNodeEntry
	rng      *rand.Rand
	now      func() time.Time
}

func New(seed uint64) *Graph {
	return &Graph{
		nodes: map[string]*Node{},
		adj:   map[string]map[string]string{},
		emb:   map[string][]float64{},
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:   time.Now,
	}
}

func NodeKey(typ, name string) string {
	return typ + "_" + name
}

// TypeOfKey infers a node type from its key prefix.
func TypeOfKey(key string) (string, bool) {
	for _, t := range []string{TypeSkill, TypeJob, TypeCompany} {
		if strings.HasPrefix(key, t+"_") && len(key) > len(t)+1 {
			return t, true
		}
	}
	return "", false
}

func NameOfKey(key string) string {
	if t, ok := TypeOfKey(key); ok {
		return strings.TrimPrefix(key, t+"_")
	}
	return key
}

func validType(t string) bool {
	return t == TypeSkill || t == TypeJob || t == TypeCompany
}

// AddNodeWithNeighbors upserts key and links it to every neighbour. Missing
// neighbours are created with a type inferred from their prefix; neighbours
// whose type cannot be inferred are returned in skipped. The node embedding is
// the mean of neighbour embeddings known before the call, or small gaussian
// noise when none are.
func (g *Graph) AddNodeWithNeighbors(key, typ string, neighbors []string, attrs map[string]string) (Change, []string, error) {
	key = strings.TrimSpace(key)
	if !validType(typ) {
		return Change{}, nil, fmt.Errorf("%w: type %q", ErrInvalidNode, typ)
	}
	if inferred, ok := TypeOfKey(key); !ok || inferred != typ {
		return Change{}, nil, fmt.Errorf("%w: key %q does not match type %q", ErrInvalidNode, key, typ)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	known := make([][]float64, 0, len(neighbors))
	for _, n := range neighbors {
		if v, ok := g.emb[n]; ok && n != key {
			known = append(known, v)
		}
	}

	ch := Change{Embeddings: map[string][]float64{}}
	ch.Nodes = append(ch.Nodes, g.upsertNodeLocked(key, typ, attrs))

	var skipped []string
	for _, n := range neighbors {
		n = strings.TrimSpace(n)
		if n == "" || n == key {
			continue
		}
		if _, ok := g.nodes[n]; !ok {
			nt, ok := TypeOfKey(n)
			if !ok {
				skipped = append(skipped, n)
				continue
			}
			ch.Nodes = append(ch.Nodes, g.upsertNodeLocked(n, nt, nil))
			if _, has := g.emb[n]; !has {
				g.emb[n] = g.noise()
				ch.Embeddings[n] = g.emb[n]
			}
		}
		rel := relationFor(typ, g.nodes[n].Type)
		g.linkLocked(key, n, rel)
		ch.Edges = append(ch.Edges, Edge{From: key, To: n, Relation: rel})
	}

	if len(known) > 0 {
		g.emb[key] = mean(known)
	} else {
		g.emb[key] = g.noise()
	}
	ch.Embeddings[key] = g.emb[key]

	entry := NewNodeEntry{Key: key, Type: typ, AddedAt: g.now().UTC()}
	g.newNodes = append(g.newNodes, entry)
	ch.Logged = entry

	return ch, skipped, nil
}

func (g *Graph) upsertNodeLocked(key, typ string, attrs map[string]string) Node {
	n, ok := g.nodes[key]
	if !ok {
		n = &Node{Key: key, Type: typ, Attrs: map[string]string{}}
		g.nodes[key] = n
	}
	for k, v := range attrs {
		n.Attrs[k] = v
	}
	return copyNode(n)
}

func (g *Graph) linkLocked(a, b, rel string) {
	if g.adj[a] == nil {
		g.adj[a] = map[string]string{}
	}
	if g.adj[b] == nil {
		g.adj[b] = map[string]string{}
	}
	g.adj[a][b] = rel
	g.adj[b][a] = rel
}

func (g *Graph) noise() []float64 {
	v := make([]float64, Dimensions)
	for i := range v {
		v[i] = g.rng.NormFloat64() * 0.01
	}
	return v
}

func relationFor(a, b string) string {
	switch {
	case a == TypeJob && b == TypeCompany, a == TypeCompany && b == TypeJob:
		return RelationPostedBy
	case a == TypeJob && b == TypeSkill, a == TypeSkill && b == TypeJob:
		return RelationRequiresSkill
	default:
		return RelationRelated
	}
}

func (g *Graph) Has(key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[key]
	return ok
}

func (g *Graph) Node(key string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[key]
	if !ok {
		return Node{}, false
	}
	return copyNode(n), true
}

// Neighbors returns neighbour keys of the given type in key order. An empty
// type returns all neighbours.
func (g *Graph) Neighbors(key, typ string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.neighborsLocked(key, typ)
}

func (g *Graph) neighborsLocked(key, typ string) []string {
	out := make([]string, 0, len(g.adj[key]))
	for n := range g.adj[key] {
		if typ == "" || g.nodes[n].Type == typ {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

type Stats struct {
	TotalNodes      int `json:"total_nodes"`
	TotalEdges      int `json:"total_edges"`
	JobNodes        int `json:"job_nodes"`
	SkillNodes      int `json:"skill_nodes"`
	CompanyNodes    int `json:"company_nodes"`
	Embeddings      int `json:"embeddings"`
	PendingNewNodes int `json:"pending_new_nodes"`
}

func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{TotalNodes: len(g.nodes), Embeddings: len(g.emb), PendingNewNodes: len(g.newNodes)}
	for _, n := range g.nodes {
		switch n.Type {
		case TypeJob:
			s.JobNodes++
		case TypeSkill:
			s.SkillNodes++
		case TypeCompany:
			s.CompanyNodes++
		}
	}
	for _, nb := range g.adj {
		s.TotalEdges += len(nb)
	}
	s.TotalEdges /= 2
	return s
}

// Snapshot is a full copy of the graph state, used for persistence and export.
type Snapshot struct {
	Nodes      []Node               `json:"nodes"`
	Edges      []Edge               `json:"edges"`
	Embeddings map[string][]float64 `json:"embeddings"`
	NewNodes   []NewNodeEntry       `json:"new_nodes"`
}

func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Snapshot{
		Nodes:      make([]Node, 0, len(g.nodes)),
		Edges:      make([]Edge, 0),
		Embeddings: make(map[string][]float64, len(g.emb)),
		NewNodes:   append([]NewNodeEntry{}, g.newNodes...),
	}
	keys := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Nodes = append(s.Nodes, copyNode(g.nodes[k]))
		for _, n := range g.neighborsLocked(k, "") {
			if k < n {
				s.Edges = append(s.Edges, Edge{From: k, To: n, Relation: g.adj[k][n]})
			}
		}
	}
	for k, v := range g.emb {
		s.Embeddings[k] = append([]float64(nil), v...)
	}
	return s
}

// FromSnapshot rebuilds a graph. Edges referencing unknown nodes are dropped.
func FromSnapshot(s Snapshot, seed uint64) *Graph {
	g := New(seed)
	for _, n := range s.Nodes {
		if !validType(n.Type) {
			continue
		}
		g.upsertNodeLocked(n.Key, n.Type, n.Attrs)
	}
	for _, e := range s.Edges {
		if g.nodes[e.From] == nil || g.nodes[e.To] == nil {
			continue
		}
		g.linkLocked(e.From, e.To, e.Relation)
	}
	for k, v := range s.Embeddings {
		if g.nodes[k] != nil {
			g.emb[k] = append([]float64(nil), v...)
		}
	}
	g.newNodes = append(g.newNodes, s.NewNodes...)
	return g
}

func copyNode(n *Node) Node {
	out := Node{Key: n.Key, Type: n.Type, Attrs: make(map[string]string, len(n.Attrs))}
	for k, v := range n.Attrs {
		out.Attrs[k] = v
	}
	return out
}
