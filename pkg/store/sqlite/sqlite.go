// Package sqlite keeps graph snapshots in a single SQLite file. It is the
// local counterpart of the Postgres sink and needs no server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "modernc.org/sqlite"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
	"github.com/OFFIS-RIT/dglink/pkg/store"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

type GraphFileStorage struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and initialises its schema.
func Open(ctx context.Context, path string) (*GraphFileStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}
	return &GraphFileStorage{db: db, path: path}, nil
}

func (s *GraphFileStorage) Close() error { return s.db.Close() }

// SaveGraph implements store.GraphSink. The previous snapshot of the same
// name is replaced atomically.
func (s *GraphFileStorage) SaveGraph(ctx context.Context, snapshot string, g *graph.Graph) error {
	if snapshot == "" {
		return fmt.Errorf("snapshot name is empty")
	}
	id, err := gonanoid.New()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_snapshots WHERE name = ?`, snapshot); err != nil {
		return fmt.Errorf("failed to drop previous snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO graph_snapshots (id, name, node_schema_version, edge_schema_version, node_count, edge_count) VALUES (?, ?, ?, ?, ?, ?)`,
		id, snapshot, g.Nodes.Schema().Version(), g.Edges.Schema().Version(), g.Nodes.Len(), g.Edges.Len()); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := insertRecords(ctx, tx, `INSERT INTO graph_nodes (snapshot_id, key, attributes) VALUES (?, ?, ?)`, id, g.Nodes); err != nil {
		return fmt.Errorf("nodes: %w", err)
	}
	if err := insertRecords(ctx, tx, `INSERT INTO graph_edges (snapshot_id, key, attributes) VALUES (?, ?, ?)`, id, g.Edges); err != nil {
		return fmt.Errorf("edges: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Info("[SQLite] Saved snapshot", "path", s.path, "name", snapshot, "nodes", g.Nodes.Len(), "edges", g.Edges.Len())
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, query, id string, src *graph.Store) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var insertErr error
	src.Each(func(key string, r *common.Record) bool {
		var attrs []byte
		attrs, insertErr = store.MarshalRecord(r)
		if insertErr != nil {
			return false
		}
		_, insertErr = stmt.ExecContext(ctx, id, key, string(attrs))
		return insertErr == nil
	})
	return insertErr
}

// LoadGraph implements store.GraphSource.
func (s *GraphFileStorage) LoadGraph(ctx context.Context, snapshot string) (*graph.Graph, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM graph_snapshots WHERE name = ?`, snapshot).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshot)
	}
	if err != nil {
		return nil, err
	}

	g := graph.NewGraph()
	if err := s.load(ctx, `SELECT key, attributes FROM graph_nodes WHERE snapshot_id = ? ORDER BY key`, id, g.Nodes); err != nil {
		return nil, err
	}
	if err := s.load(ctx, `SELECT key, attributes FROM graph_edges WHERE snapshot_id = ? ORDER BY key`, id, g.Edges); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GraphFileStorage) load(ctx context.Context, query, id string, target *graph.Store) error {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, attrs string
		if err := rows.Scan(&key, &attrs); err != nil {
			return err
		}
		r, err := store.UnmarshalRecord([]byte(attrs))
		if err != nil {
			return fmt.Errorf("record %s: %w", key, err)
		}
		if _, err := target.UpsertKeyed(key, r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Snapshots lists the stored snapshot names.
func (s *GraphFileStorage) Snapshots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM graph_snapshots ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS graph_snapshots (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	node_schema_version INTEGER NOT NULL,
	edge_schema_version INTEGER NOT NULL,
	node_count INTEGER NOT NULL,
	edge_count INTEGER NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS graph_nodes (
	snapshot_id TEXT NOT NULL REFERENCES graph_snapshots(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	attributes TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, key)
);
CREATE TABLE IF NOT EXISTS graph_edges (
	snapshot_id TEXT NOT NULL REFERENCES graph_snapshots(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	attributes TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, key)
);
`
