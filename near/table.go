package near

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/digitaltembo/Crime-And-Dining/index"
	"github.com/digitaltembo/Crime-And-Dining/nearutil"
	"github.com/golang/geo/r2"
	"modernc.org/sqlite/vtab"
)

// Table is a single near virtual table.
type Table struct {
	db        *sql.DB
	dbName    string
	tableName string
	shadow    string // shadow table name, schema-qualified outside main
	kind      index.Kind

	dbPathOnce  sync.Once
	dbPath      string
	shadowReady atomic.Bool
}

const (
	idxScanAll = iota
	idxDatasetScan
	idxDatasetMatch
	idxDatasetMatchMax
)

const (
	colDataset = iota
	colID
	colDistance
)

// BestIndex pushes dataset_id equality, MATCH on the id column and
// distance <= d down to the table.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	var dataset, match, maxDist *vtab.Constraint
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		switch {
		case c.Column == colDataset && c.Op == vtab.OpEQ:
			dataset = c
		case c.Column == colID && c.Op == vtab.OpMATCH:
			match = c
		case c.Column == colDistance && c.Op == vtab.OpLE:
			maxDist = c
		}
	}
	if match != nil && dataset == nil {
		return fmt.Errorf("near: dataset_id constraint is required with MATCH")
	}
	if dataset == nil {
		info.IdxNum = idxScanAll
		info.EstimatedCost = 1e6
		return nil
	}
	next := 0
	dataset.ArgIndex = next
	dataset.Omit = true
	next++
	if match == nil {
		info.IdxNum = idxDatasetScan
		info.EstimatedCost = 1e4
		return nil
	}
	match.ArgIndex = next
	match.Omit = true
	next++
	info.IdxNum = idxDatasetMatch
	info.EstimatedCost = 10
	if maxDist != nil {
		maxDist.ArgIndex = next
		maxDist.Omit = true
		info.IdxNum = idxDatasetMatchMax
		info.EstimatedCost = 5
	}
	return nil
}

// Open allocates a cursor.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect releases nothing; cached indexes outlive connections.
func (t *Table) Disconnect() error { return nil }

// Destroy keeps the shadow table and persisted indexes.
func (t *Table) Destroy() error { return nil }

func (t *Table) qualifiedShadow() string {
	base := nearutil.ShadowTableName(t.tableName)
	if name := strings.TrimSpace(t.dbName); name == "" || name == "main" {
		return base
	}
	return t.dbName + "." + base
}

func (t *Table) cachedDbPath(ctx context.Context) string {
	t.dbPathOnce.Do(func() {
		path, err := resolveDbPath(ctx, t.db, t.dbName)
		if err != nil {
			path = t.dbName
			if path == "" {
				path = "main"
			}
		}
		t.dbPath = path
	})
	return t.dbPath
}

func resolveDbPath(ctx context.Context, db *sql.DB, dbName string) (string, error) {
	if dbName == "" {
		dbName = "main"
	}
	rows, err := db.QueryContext(ctx, `SELECT name, file FROM pragma_database_list`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	for rows.Next() {
		var name, file string
		if err := rows.Scan(&name, &file); err != nil {
			return "", err
		}
		if name == dbName {
			if file == "" {
				return name, nil
			}
			return file, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return dbName, nil
}

func loadPersistedIndex(ctx context.Context, db *sql.DB, shadow, dataset string) (index.Index, bool, error) {
	var blob []byte
	err := db.QueryRowContext(ctx, `SELECT "index" FROM point_storage WHERE shadow_table_name = ? AND dataset_id = ?`, shadow, dataset).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(blob) == 0 {
		return nil, false, nil
	}
	idx, err := index.Load(blob)
	if err != nil {
		// a corrupt blob is rebuilt from the shadow table
		return nil, false, nil
	}
	return idx, true, nil
}

const (
	lockRetryDelay = 50 * time.Millisecond
	lockStaleAfter = 2 * time.Minute
)

var lockOwnerID = fmt.Sprintf("pid:%d-%d", os.Getpid(), time.Now().UnixNano())

// acquireBuildLock serialises index builds of shadow/dataset across
// processes sharing the database file. Locks older than lockStaleAfter are
// taken over.
func acquireBuildLock(ctx context.Context, db *sql.DB, shadow, dataset string) (func(), error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := time.Now().Unix()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO point_storage_locks(shadow_table_name, dataset_id, owner, locked_at) VALUES(?, ?, ?, ?)`, shadow, dataset, lockOwnerID, now); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		var owner string
		var lockedAt int64
		if err := tx.QueryRowContext(ctx, `SELECT owner, locked_at FROM point_storage_locks WHERE shadow_table_name = ? AND dataset_id = ?`, shadow, dataset).Scan(&owner, &lockedAt); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if owner != lockOwnerID && lockedAt <= time.Now().Add(-lockStaleAfter).Unix() {
			res, err := tx.ExecContext(ctx, `UPDATE point_storage_locks SET owner = ?, locked_at = ? WHERE shadow_table_name = ? AND dataset_id = ? AND locked_at = ?`, lockOwnerID, now, shadow, dataset, lockedAt)
			if err != nil {
				_ = tx.Rollback()
				return nil, err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				owner = lockOwnerID
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		if owner == lockOwnerID {
			return func() {
				_, _ = db.ExecContext(context.Background(), `DELETE FROM point_storage_locks WHERE shadow_table_name = ? AND dataset_id = ? AND owner = ?`, shadow, dataset, lockOwnerID)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}

// ensureIndex returns the index of dataset, loading the persisted blob or
// building it from the shadow table.
func (t *Table) ensureIndex(ctx context.Context, dataset string) (index.Index, error) {
	if strings.TrimSpace(dataset) == "" {
		return nil, fmt.Errorf("near: dataset_id is required")
	}
	if !t.shadowReady.Load() {
		if err := nearutil.EnsureShadow(ctx, t.db, t.shadow); err != nil {
			return nil, err
		}
		t.shadowReady.Store(true)
	}
	entry := getCacheEntry(cacheKey(t.cachedDbPath(ctx), t.tableName, dataset))
	if idx := entry.get(); idx != nil {
		return idx, nil
	}
	if idx, ok, err := loadPersistedIndex(ctx, t.db, t.shadow, dataset); err != nil {
		return nil, err
	} else if ok {
		entry.set(idx)
		return idx, nil
	}

	for !entry.startBuild() {
		if idx := entry.waitForBuild(); idx != nil {
			return idx, nil
		}
	}
	defer entry.finishBuild()

	unlock, err := acquireBuildLock(ctx, t.db, t.shadow, dataset)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if idx, ok, err := loadPersistedIndex(ctx, t.db, t.shadow, dataset); err != nil {
		return nil, err
	} else if ok {
		entry.set(idx)
		return idx, nil
	}
	built, err := build(ctx, t.db, t.shadow, dataset, t.kind)
	if err != nil {
		return nil, err
	}
	if err := persist(ctx, t.db, t.shadow, dataset, built); err != nil {
		return nil, err
	}
	entry.set(built)
	return built, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// build indexes the points of dataset in shadow in rowid order.
func build(ctx context.Context, db queryer, shadow, dataset string, kind index.Kind) (index.Index, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT id, x, y FROM %s WHERE dataset_id = ? ORDER BY rowid", shadow), dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	var points []r2.Point
	for rows.Next() {
		var id string
		var p r2.Point
		if err := rows.Scan(&id, &p.X, &p.Y); err != nil {
			return nil, err
		}
		ids = append(ids, id)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	idx := index.New(index.Resolve(kind, len(ids)))
	if err := idx.Build(ids, points); err != nil {
		return nil, fmt.Errorf("near: build %s/%s: %w", shadow, dataset, err)
	}
	return idx, nil
}

func persist(ctx context.Context, db execer, shadow, dataset string, idx index.Index) error {
	data, err := idx.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT OR REPLACE INTO point_storage(shadow_table_name, dataset_id, kind, "index", updated_at) VALUES(?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		shadow, dataset, string(index.Detect(data)), data)
	return err
}

// Reindex rebuilds and persists the index of dataset in shadow, or of every
// dataset when dataset is empty, and returns the number of points indexed.
func Reindex(ctx context.Context, db *sql.DB, shadow, dataset string, kind index.Kind) (int, error) {
	if err := nearutil.EnsureShadow(ctx, db, shadow); err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	datasets := []string{dataset}
	if dataset == "" {
		if datasets, err = distinctDatasets(ctx, tx, shadow); err != nil {
			return 0, err
		}
	}
	total := 0
	for _, ds := range datasets {
		idx, err := build(ctx, tx, shadow, ds, kind)
		if err != nil {
			return 0, err
		}
		if err := persist(ctx, tx, shadow, ds, idx); err != nil {
			return 0, err
		}
		total += idx.Len()
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	for _, ds := range datasets {
		InvalidateCache(shadow, ds)
	}
	return total, nil
}

func distinctDatasets(ctx context.Context, db queryer, shadow string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT dataset_id FROM %s ORDER BY dataset_id", shadow))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

var _ vtab.Table = (*Table)(nil)
