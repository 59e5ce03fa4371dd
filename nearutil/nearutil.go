// Package nearutil holds helpers for populating and querying near virtual
// tables through their shadow tables.
package nearutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/golang/geo/r2"
)

// ShadowPrefix prefixes the shadow table of every near virtual table.
const ShadowPrefix = "_near_"

// ShadowTableName derives the shadow table name for a near virtual table.
//
//	ShadowTableName("poi") == "_near_poi"
func ShadowTableName(virtualTable string) string {
	return ShadowPrefix + virtualTable
}

// TableNameFromShadow strips an optional schema and the shadow prefix.
func TableNameFromShadow(shadow string) string {
	if i := strings.Index(shadow, "."+ShadowPrefix); i >= 0 {
		return shadow[i+len("."+ShadowPrefix):]
	}
	if strings.HasPrefix(shadow, ShadowPrefix) {
		return strings.TrimPrefix(shadow, ShadowPrefix)
	}
	return ""
}

// EnsureStorage creates the tables shared by every near virtual table:
// point_storage holds persisted index blobs and point_storage_locks
// serialises index builds across processes.
func EnsureStorage(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("nearutil: db is nil")
	}
	for _, stmt := range []string{StorageDDL(), LocksDDL()} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// EnsureShadow creates shadow (a possibly schema-qualified shadow table name),
// the shared storage tables and the triggers that invalidate persisted
// indexes when shadow changes.
func EnsureShadow(ctx context.Context, db *sql.DB, shadow string) error {
	if err := EnsureStorage(ctx, db); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ShadowTableDDL(shadow)); err != nil {
		return err
	}
	for _, stmt := range InvalidateTriggers(shadow) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertShadowPoint inserts or moves the point id of dataset in shadow.
//
// shadow is interpolated into SQL and must come from a trusted source.
func UpsertShadowPoint(ctx context.Context, db *sql.DB, shadow, dataset, id string, p r2.Point) error {
	if db == nil {
		return fmt.Errorf("nearutil: db is nil")
	}
	stmt := fmt.Sprintf(`
INSERT INTO %s(dataset_id, id, x, y, point)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(dataset_id, id) DO UPDATE SET
  x = excluded.x,
  y = excluded.y,
  point = excluded.point`, shadow)
	_, err := db.ExecContext(ctx, stmt, dataset, id, p.X, p.Y, geo.EncodePoint(p))
	return err
}

// Point is a named location to publish.
type Point struct {
	ID       string
	Location r2.Point
}

// UpsertShadowPoints writes points in one transaction.
func UpsertShadowPoints(ctx context.Context, db *sql.DB, shadow, dataset string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
INSERT INTO %s(dataset_id, id, x, y, point)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(dataset_id, id) DO UPDATE SET
  x = excluded.x,
  y = excluded.y,
  point = excluded.point`, shadow))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, dataset, p.ID, p.Location.X, p.Location.Y, geo.EncodePoint(p.Location)); err != nil {
			return fmt.Errorf("nearutil: upsert %q: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// DeletePoints removes ids of dataset from shadow.
func DeletePoints(ctx context.Context, db *sql.DB, shadow, dataset string, ids []string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE dataset_id = ? AND id = ?", shadow)
	for _, id := range ids {
		if _, err := db.ExecContext(ctx, stmt, dataset, id); err != nil {
			return err
		}
	}
	return nil
}

// Match is a single radius search hit.
type Match struct {
	ID       string
	Distance float64
}

// Within runs a radius search against a near virtual table and returns hits
// in index order. limit <= 0 returns every hit.
func Within(ctx context.Context, db *sql.DB, virtualTable, dataset string, center r2.Point, radius float64, limit int) ([]Match, error) {
	if db == nil {
		return nil, fmt.Errorf("nearutil: db is nil")
	}
	arg := geo.EncodeCircle(center, radius)
	q := fmt.Sprintf("SELECT id, distance FROM %s WHERE dataset_id = ? AND id MATCH ?", virtualTable)
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = db.QueryContext(ctx, q+" LIMIT ?", dataset, arg, limit)
	} else {
		rows, err = db.QueryContext(ctx, q, dataset, arg)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Distance); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
