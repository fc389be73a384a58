package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/leaselock"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
	"github.com/OFFIS-RIT/dglink/pkg/store"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

const defaultCopyChunkSize = 5000

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage publishes combined graphs into Postgres as named
// snapshots. Publishing a snapshot name replaces the previous one in a
// single transaction; concurrent publishers of the same name are serialised
// with a lease lock.
type GraphDBStorage struct {
	conn      pgxIConn
	locks     *leaselock.Client
	chunkSize int
	lockTTL   time.Duration
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithChunkSize sets how many rows go into one COPY.
func WithChunkSize(n int) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithLockTTL sets the lease duration held while publishing.
func WithLockTTL(d time.Duration) GraphDBStorageOption {
	return func(s *GraphDBStorage) { s.lockTTL = d }
}

// NewGraphDBStorage uses conn for data and lease locks. The schema must
// have been migrated with Migrate.
func NewGraphDBStorage(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{
		conn:      conn,
		locks:     leaselock.New(conn),
		chunkSize: defaultCopyChunkSize,
		lockTTL:   2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveGraph implements store.GraphSink.
func (s *GraphDBStorage) SaveGraph(ctx context.Context, snapshot string, g *graph.Graph) error {
	if snapshot == "" {
		return fmt.Errorf("snapshot name is empty")
	}
	nodeRows, err := nodeRows(g.Nodes)
	if err != nil {
		return err
	}
	edgeRows, err := edgeRows(g.Edges)
	if err != nil {
		return err
	}

	opts := leaselock.Options{TTL: s.lockTTL, Wait: true, Owner: "publish"}
	return s.locks.WithLease(ctx, "graph_snapshot:"+snapshot, opts, func(ctx context.Context) error {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}

		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, insertSnapshotSQL, id, snapshot,
			g.Nodes.Schema().Version(), g.Edges.Schema().Version(), len(nodeRows), len(edgeRows)); err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		for i := range nodeRows {
			nodeRows[i][0] = id
		}
		for i := range edgeRows {
			edgeRows[i][0] = id
		}
		if err := s.copyRows(ctx, tx, "graph_nodes", nodeColumns, nodeRows); err != nil {
			return err
		}
		if err := s.copyRows(ctx, tx, "graph_edges", edgeColumns, edgeRows); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, deleteOlderSnapshotsSQL, snapshot, id)
		if err != nil {
			return fmt.Errorf("failed to drop previous snapshots: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit snapshot: %w", err)
		}

		logger.Info("[Postgres] Published snapshot", "name", snapshot, "id", id,
			"nodes", len(nodeRows), "edges", len(edgeRows), "replaced", tag.RowsAffected())
		return nil
	})
}

func (s *GraphDBStorage) copyRows(ctx context.Context, tx pgxv5.Tx, table string, columns []string, rows [][]any) error {
	return store.ChunkRange(len(rows), s.chunkSize, func(start, end int) error {
		if _, err := tx.CopyFrom(ctx, pgxv5.Identifier{table}, columns, pgxv5.CopyFromRows(rows[start:end])); err != nil {
			return fmt.Errorf("failed to copy into %s: %w", table, err)
		}
		return nil
	})
}

// LoadGraph implements store.GraphSource. It reads the latest snapshot
// published under name.
func (s *GraphDBStorage) LoadGraph(ctx context.Context, snapshot string) (*graph.Graph, error) {
	var id string
	if err := s.conn.QueryRow(ctx, latestSnapshotSQL, snapshot).Scan(&id); err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshot)
		}
		return nil, err
	}

	g := graph.NewGraph()
	if err := s.loadStore(ctx, selectNodesSQL, id, g.Nodes); err != nil {
		return nil, err
	}
	if err := s.loadStore(ctx, selectEdgesSQL, id, g.Edges); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GraphDBStorage) loadStore(ctx context.Context, query, id string, target *graph.Store) error {
	rows, err := s.conn.Query(ctx, query, id)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var attrs []byte
		if err := rows.Scan(&key, &attrs); err != nil {
			return err
		}
		r, err := store.UnmarshalRecord(attrs)
		if err != nil {
			return fmt.Errorf("record %s: %w", key, err)
		}
		if _, err := target.UpsertKeyed(key, r); err != nil {
			return err
		}
	}
	return rows.Err()
}

var (
	nodeColumns = []string{"snapshot_id", "key", "curie", "label", "name", "attributes"}
	edgeColumns = []string{"snapshot_id", "key", "start_id", "end_id", "type", "attributes"}
)

// nodeRows renders the COPY rows of s. The snapshot id column is filled in
// once the snapshot row exists.
func nodeRows(s *graph.Store) ([][]any, error) {
	rows := make([][]any, 0, s.Len())
	var err error
	s.Each(func(key string, r *common.Record) bool {
		var attrs []byte
		attrs, err = store.MarshalRecord(r)
		if err != nil {
			return false
		}
		rows = append(rows, []any{"", key, r.Get(common.AttrID), r.Get(common.AttrLabel), r.Get(common.AttrName), attrs})
		return true
	})
	return rows, err
}

func edgeRows(s *graph.Store) ([][]any, error) {
	rows := make([][]any, 0, s.Len())
	var err error
	s.Each(func(key string, r *common.Record) bool {
		var attrs []byte
		attrs, err = store.MarshalRecord(r)
		if err != nil {
			return false
		}
		rows = append(rows, []any{"", key, r.Get(common.AttrStart), r.Get(common.AttrEnd), r.Get(common.AttrType), attrs})
		return true
	})
	return rows, err
}

const insertSnapshotSQL = `
INSERT INTO graph_snapshots (id, name, node_schema_version, edge_schema_version, node_count, edge_count)
VALUES ($1, $2, $3, $4, $5, $6);
`

const deleteOlderSnapshotsSQL = `
DELETE FROM graph_snapshots
WHERE name = $1 AND id <> $2;
`

const latestSnapshotSQL = `
SELECT id FROM graph_snapshots
WHERE name = $1
ORDER BY created_at DESC
LIMIT 1;
`

const selectNodesSQL = `
SELECT key, attributes FROM graph_nodes WHERE snapshot_id = $1 ORDER BY key;
`

const selectEdgesSQL = `
SELECT key, attributes FROM graph_edges WHERE snapshot_id = $1 ORDER BY key;
`
