package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUnavailable means the backing graph artifact does not exist yet.
var ErrUnavailable = errors.New("knowledge graph not found")

// Store persists the graph in a single SQLite file.
type Store struct {
	path string
	db   *sql.DB
}

// OpenStore opens the artifact at path. With create false a missing file is
// reported as ErrUnavailable instead of being created.
func OpenStore(ctx context.Context, path string, create bool) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("graph store: stat %s: %w", path, err)
		}
		if !create {
			return nil, ErrUnavailable
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("graph store: mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("graph store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("graph store: init schema: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS kg_nodes (
	key   TEXT PRIMARY KEY,
	type  TEXT NOT NULL,
	attrs TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS kg_edges (
	a        TEXT NOT NULL,
	b        TEXT NOT NULL,
	relation TEXT NOT NULL,
	PRIMARY KEY (a, b)
);
CREATE TABLE IF NOT EXISTS kg_embeddings (
	key    TEXT PRIMARY KEY,
	vector TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS kg_new_nodes (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	key      TEXT NOT NULL,
	type     TEXT NOT NULL,
	added_at INTEGER NOT NULL
);`)
	return err
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the whole artifact into a graph.
func (s *Store) Load(ctx context.Context, seed uint64) (*Graph, error) {
	var snap Snapshot

	rows, err := s.db.QueryContext(ctx, `SELECT key, type, attrs FROM kg_nodes ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("graph store: load nodes: %w", err)
	}
	for rows.Next() {
		var (
			n     Node
			attrs string
		)
		if err := rows.Scan(&n.Key, &n.Type, &attrs); err != nil {
			rows.Close()
			return nil, err
		}
		if attrs != "" {
			if err := json.Unmarshal([]byte(attrs), &n.Attrs); err != nil {
				rows.Close()
				return nil, fmt.Errorf("graph store: node %s attrs: %w", n.Key, err)
			}
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT a, b, relation FROM kg_edges`)
	if err != nil {
		return nil, fmt.Errorf("graph store: load edges: %w", err)
	}
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.From, &e.To, &e.Relation); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Edges = append(snap.Edges, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap.Embeddings = map[string][]float64{}
	rows, err = s.db.QueryContext(ctx, `SELECT key, vector FROM kg_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("graph store: load embeddings: %w", err)
	}
	for rows.Next() {
		var (
			key string
			raw string
			vec []float64
		)
		if err := rows.Scan(&key, &raw); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			rows.Close()
			return nil, fmt.Errorf("graph store: embedding %s: %w", key, err)
		}
		snap.Embeddings[key] = vec
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT key, type, added_at FROM kg_new_nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("graph store: load new nodes: %w", err)
	}
	for rows.Next() {
		var (
			e  NewNodeEntry
			at int64
		)
		if err := rows.Scan(&e.Key, &e.Type, &at); err != nil {
			rows.Close()
			return nil, err
		}
		e.AddedAt = time.Unix(0, at).UTC()
		snap.NewNodes = append(snap.NewNodes, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return FromSnapshot(snap, seed), nil
}

// Apply writes a realtime change in one transaction.
func (s *Store) Apply(ctx context.Context, ch Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("graph store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := writeNodes(ctx, tx, ch.Nodes); err != nil {
		return err
	}
	if err := writeEdges(ctx, tx, ch.Edges); err != nil {
		return err
	}
	if err := writeEmbeddings(ctx, tx, ch.Embeddings); err != nil {
		return err
	}
	if ch.Logged.Key != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kg_new_nodes (key, type, added_at) VALUES (?, ?, ?)`,
			ch.Logged.Key, ch.Logged.Type, ch.Logged.AddedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("graph store: log new node: %w", err)
		}
	}
	return tx.Commit()
}

// Replace swaps the whole artifact content for g and clears the new-node log.
func (s *Store) Replace(ctx context.Context, g *Graph) error {
	snap := g.Snapshot()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("graph store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"kg_nodes", "kg_edges", "kg_embeddings", "kg_new_nodes"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("graph store: clear %s: %w", table, err)
		}
	}
	if err := writeNodes(ctx, tx, snap.Nodes); err != nil {
		return err
	}
	if err := writeEdges(ctx, tx, snap.Edges); err != nil {
		return err
	}
	if err := writeEmbeddings(ctx, tx, snap.Embeddings); err != nil {
		return err
	}
	return tx.Commit()
}

func writeNodes(ctx context.Context, tx *sql.Tx, nodes []Node) error {
	for _, n := range nodes {
		attrs, err := json.Marshal(n.Attrs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kg_nodes (key, type, attrs) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET type = excluded.type, attrs = excluded.attrs`,
			n.Key, n.Type, string(attrs),
		); err != nil {
			return fmt.Errorf("graph store: write node %s: %w", n.Key, err)
		}
	}
	return nil
}

func writeEdges(ctx context.Context, tx *sql.Tx, edges []Edge) error {
	for _, e := range edges {
		a, b := e.From, e.To
		if b < a {
			a, b = b, a
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kg_edges (a, b, relation) VALUES (?, ?, ?)
			 ON CONFLICT(a, b) DO UPDATE SET relation = excluded.relation`,
			a, b, e.Relation,
		); err != nil {
			return fmt.Errorf("graph store: write edge %s-%s: %w", a, b, err)
		}
	}
	return nil
}

func writeEmbeddings(ctx context.Context, tx *sql.Tx, emb map[string][]float64) error {
	for k, v := range emb {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kg_embeddings (key, vector) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET vector = excluded.vector`,
			k, string(raw),
		); err != nil {
			return fmt.Errorf("graph store: write embedding %s: %w", k, err)
		}
	}
	return nil
}
