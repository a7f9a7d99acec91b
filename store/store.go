// Package store persists run results as dataset trees in SQLite
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/notargets/DGTransport/dataset"
	"github.com/notargets/DGTransport/store/migrations"
	"github.com/notargets/DGTransport/utils"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = fmt.Errorf("%w: not found in store", utils.ErrInput)
	ErrNotArray = fmt.Errorf("%w: node is not an array", utils.ErrInput)
)

// Run is one stored result header
type Run struct {
	ID        string
	CreatedAt time.Time
	Summary   string
}

// Store is a SQLite backed result store
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: store path is required", utils.ErrInput)
	}
	dsn := ":memory:"
	if path != dsn {
		dsn = filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each connection would get its own database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveResult stores the tree of one run. Nodes are numbered depth first so
// LoadDataSet restores child order.
func (s *Store) SaveResult(ctx context.Context, runID, summary string, root dataset.Node) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("%w: run id is required", utils.ErrInput)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, created_at, summary) VALUES (?, ?, ?)",
		runID, s.now().UTC().UnixMilli(), summary); err != nil {
		return fmt.Errorf("save run %s: %w", runID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO nodes (run_id, seq, parent, kind, name, path, text, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare nodes: %w", err)
	}
	defer stmt.Close()

	seq := 0
	var insert func(parent int, prefix string, n dataset.Node) error
	insert = func(parent int, prefix string, n dataset.Node) error {
		seq++
		self := seq
		path := dataset.Name(n)
		if prefix != "" {
			path = prefix + "/" + path
		}
		enc := dataset.Match[encodedNode](n, nodeEncoder{})
		if enc.err != nil {
			return fmt.Errorf("encode %s: %w", path, enc.err)
		}
		if _, err := stmt.ExecContext(ctx, runID, self, parent, int(n.Kind()), dataset.Name(n), path, enc.text, enc.data); err != nil {
			return fmt.Errorf("save node %s: %w", path, err)
		}
		for _, c := range enc.children {
			if err := insert(self, path, c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert(0, "", root); err != nil {
		return err
	}
	return tx.Commit()
}

// encodedNode is the column payload of one node
type encodedNode struct {
	text     string
	data     []byte
	children []dataset.Node
	err      error
}

type nodeEncoder struct{}

func (nodeEncoder) VisitSet(_ string, children []dataset.Node) encodedNode {
	return encodedNode{children: children}
}

func (nodeEncoder) VisitString(_, value string) encodedNode {
	return encodedNode{text: value}
}

func (nodeEncoder) VisitArray(_ string, values []float64) encodedNode {
	data, err := cbor.Marshal(values)
	return encodedNode{data: data, err: err}
}

type row struct {
	seq, parent int
	kind        dataset.Kind
	name, text  string
	data        []byte
}

func decodeArray(data []byte) ([]float64, error) {
	var values []float64
	if len(data) == 0 {
		return values, nil
	}
	if err := cbor.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// LoadDataSet rebuilds the tree stored for runID
func (s *Store) LoadDataSet(ctx context.Context, runID string) (dataset.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, parent, kind, name, text, data FROM nodes WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return dataset.Node{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	defer rows.Close()

	var all []row
	children := make(map[int][]int)
	for rows.Next() {
		var r row
		var kind int
		if err := rows.Scan(&r.seq, &r.parent, &kind, &r.name, &r.text, &r.data); err != nil {
			return dataset.Node{}, fmt.Errorf("scan node: %w", err)
		}
		r.kind = dataset.Kind(kind)
		children[r.parent] = append(children[r.parent], len(all))
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return dataset.Node{}, err
	}
	if len(all) == 0 {
		return dataset.Node{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}

	var build func(i int) (dataset.Node, error)
	build = func(i int) (dataset.Node, error) {
		r := all[i]
		switch r.kind {
		case dataset.KindString:
			return dataset.String(r.name, r.text), nil
		case dataset.KindArray:
			values, err := decodeArray(r.data)
			if err != nil {
				return dataset.Node{}, fmt.Errorf("decode %s: %w", r.name, err)
			}
			return dataset.Array(r.name, values), nil
		}
		var kids []dataset.Node
		for _, c := range children[r.seq] {
			k, err := build(c)
			if err != nil {
				return dataset.Node{}, err
			}
			kids = append(kids, k)
		}
		return dataset.Set(r.name, kids...), nil
	}
	return build(children[0][0])
}

// LoadArray returns the first array stored at path, e.g. "run/solution/phi"
func (s *Store) LoadArray(ctx context.Context, runID, path string) ([]float64, error) {
	var (
		kind int
		data []byte
	)
	err := s.db.QueryRowContext(ctx, `
SELECT kind, data FROM nodes WHERE run_id = ? AND path = ? ORDER BY seq LIMIT 1`,
		runID, strings.Trim(path, "/")).Scan(&kind, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %q path %q: %w", runID, path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if dataset.Kind(kind) != dataset.KindArray {
		return nil, fmt.Errorf("run %q path %q is a %v: %w", runID, path, dataset.Kind(kind), ErrNotArray)
	}
	return decodeArray(data)
}

// ListRuns returns the stored runs, newest first
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, created_at, summary FROM runs ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r  Run
			ms int64
		)
		if err := rows.Scan(&r.ID, &ms, &r.Summary); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt = time.UnixMilli(ms).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its nodes
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("delete nodes of %s: %w", runID, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return tx.Commit()
}
