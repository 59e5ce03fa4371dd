package near

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"github.com/digitaltembo/Crime-And-Dining/index"
	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name used in CREATE VIRTUAL TABLE ... USING near(...).
const ModuleName = "near"

// Module implements vtab.Module for the near virtual table.
//
// Modules are registered with the driver once per process, so a single
// Module serves every database. Tables bind to the *sql.DB passed to the most
// recent Register call when they are created or connected.
type Module struct {
	mu sync.RWMutex
	db *sql.DB
}

var (
	module = &Module{}

	registerInvalidateOnce sync.Once
	registerInvalidateErr  error
)

// Register registers the near module and the near_invalidate SQL function.
// It must run before the connections that use them are opened.
func Register(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("near: db is nil")
	}
	module.setDB(db)
	if err := vtab.RegisterModule(db, ModuleName, module); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	registerInvalidateOnce.Do(func() {
		registerInvalidateErr = sqlite.RegisterScalarFunction("near_invalidate", 2, invalidateFunc)
	})
	return registerInvalidateErr
}

func (m *Module) setDB(db *sql.DB) {
	m.mu.Lock()
	m.db = db
	m.mu.Unlock()
}

func (m *Module) currentDB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// Create declares a new near table. The shadow table is created lazily on
// first use.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args, "CREATE")
}

// Connect attaches to an existing near table.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args, "CONNECT")
}

func (m *Module) connect(ctx vtab.Context, args []string, op string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("near: %s expects at least 3 args, got %d", op, len(args))
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("near: EnableConstraintSupport failed: %w", err)
	}
	col, opts, err := parseArgs(args[3:])
	if err != nil {
		return nil, err
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(dataset_id TEXT, %s TEXT, distance REAL HIDDEN)", args[2], col)); err != nil {
		return nil, err
	}
	t := &Table{
		db:        m.currentDB(),
		dbName:    args[1],
		tableName: args[2],
		kind:      opts.kind,
	}
	t.shadow = t.qualifiedShadow()
	return t, nil
}

type tableOptions struct {
	kind index.Kind
}

// parseArgs reads "near(<column>, index=<kind>)" arguments. The column
// defaults to id.
func parseArgs(args []string) (string, tableOptions, error) {
	col := "id"
	opts := tableOptions{kind: index.KindAuto}
	for i, raw := range args {
		a := strings.TrimSpace(raw)
		if a == "" {
			continue
		}
		key, val, ok := strings.Cut(a, "=")
		if !ok {
			if i == 0 {
				col = a
			}
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "index":
			kind, err := index.ParseKind(strings.Trim(strings.TrimSpace(val), `'"`))
			if err != nil {
				return "", opts, fmt.Errorf("near: %w", err)
			}
			opts.kind = kind
		}
	}
	return col, opts, nil
}

// invalidateFunc implements near_invalidate(shadow TEXT, dataset TEXT) -> INT.
func invalidateFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return int64(0), nil
	}
	shadow, err := asString(args[0])
	if err != nil {
		return int64(0), nil
	}
	dataset, err := asString(args[1])
	if err != nil {
		return int64(0), nil
	}
	return int64(InvalidateCache(shadow, dataset)), nil
}

var _ vtab.Module = (*Module)(nil)

