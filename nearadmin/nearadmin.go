// Package nearadmin exposes administrative operations on near tables as a
// virtual table.
//
//	CREATE VIRTUAL TABLE near_admin USING near_admin(op);
//	SELECT op FROM near_admin WHERE op MATCH '_near_poi|run-1';
//
// The MATCH argument names a shadow table and, after an optional '|', a
// dataset; without a dataset every dataset of the shadow table is rebuilt.
// An optional third field selects the index kind. The query returns a single
// row 'reindexed:<n>' with the number of points indexed.
package nearadmin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/digitaltembo/Crime-And-Dining/index"
	"github.com/digitaltembo/Crime-And-Dining/near"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name used in CREATE VIRTUAL TABLE ... USING near_admin(op).
const ModuleName = "near_admin"

// Module implements vtab.Module for near_admin. Like near, it binds tables to
// the *sql.DB of the most recent Register call.
type Module struct {
	mu sync.RWMutex
	db *sql.DB
}

var module = &Module{}

// Table is a near_admin table.
type Table struct{ db *sql.DB }

// Cursor returns the result of one operation.
type Cursor struct {
	table *Table
	rows  []string
	pos   int
}

// Register registers the near_admin module.
func Register(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("nearadmin: db is nil")
	}
	module.mu.Lock()
	module.db = db
	module.mu.Unlock()
	if err := vtab.RegisterModule(db, ModuleName, module); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

func (m *Module) table(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("nearadmin: need at least 3 args")
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(op TEXT)", args[2])); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Table{db: m.db}, nil
}

// Create declares a near_admin table.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) { return m.table(ctx, args) }

// Connect attaches to a near_admin table.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.table(ctx, args)
}

// BestIndex requires MATCH on op.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if c.Usable && c.Column == 0 && c.Op == vtab.OpMATCH {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			info.EstimatedCost = 1
			return nil
		}
	}
	info.IdxNum = 0
	info.EstimatedCost = 1e9
	return nil
}

func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }
func (t *Table) Disconnect() error          { return nil }
func (t *Table) Destroy() error             { return nil }

// Filter runs the requested operation. Without MATCH the table is empty.
func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != 1 || len(vals) == 0 || vals[0] == nil {
		return nil
	}
	var arg string
	switch v := vals[0].(type) {
	case string:
		arg = v
	case []byte:
		arg = string(v)
	default:
		return fmt.Errorf("nearadmin: MATCH expects '<shadow>[|dataset[|kind]]' as TEXT, got %T", vals[0])
	}
	req, err := ParseRequest(arg)
	if err != nil {
		return err
	}
	n, err := near.Reindex(context.Background(), c.table.db, req.Shadow, req.Dataset, req.Kind)
	if err != nil {
		return err
	}
	c.rows = []string{fmt.Sprintf("reindexed:%d", n)}
	return nil
}

func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("nearadmin: Column out of range")
	}
	if col == 0 {
		return c.rows[c.pos], nil
	}
	return nil, nil
}

func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }
func (c *Cursor) Close() error          { c.rows = nil; c.pos = 0; return nil }

// Request is a parsed reindex operation.
type Request struct {
	Shadow  string
	Dataset string
	Kind    index.Kind
}

// ParseRequest parses '<shadow>[|dataset[|kind]]'.
func ParseRequest(s string) (Request, error) {
	parts := strings.Split(strings.TrimSpace(s), "|")
	req := Request{Shadow: strings.TrimSpace(parts[0]), Kind: index.KindAuto}
	if req.Shadow == "" {
		return req, fmt.Errorf("nearadmin: shadow table name is required")
	}
	if strings.ContainsAny(req.Shadow, " ;'\"()") {
		return req, fmt.Errorf("nearadmin: invalid shadow table name %q", req.Shadow)
	}
	if len(parts) > 1 {
		req.Dataset = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		kind, err := index.ParseKind(parts[2])
		if err != nil {
			return req, fmt.Errorf("nearadmin: %w", err)
		}
		req.Kind = kind
	}
	if len(parts) > 3 {
		return req, fmt.Errorf("nearadmin: too many fields in %q", s)
	}
	return req, nil
}
