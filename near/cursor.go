package near

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/golang/geo/r2"
	"modernc.org/sqlite/vtab"
)

type row struct {
	rowid    int64
	dataset  string
	id       string
	distance float64
	scored   bool
}

// Cursor scans results of a near table.
type Cursor struct {
	table *Table
	rows  []row
	pos   int
}

// Filter computes the result set for the plan chosen in BestIndex.
func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	_ = idxStr
	c.rows = nil
	c.pos = 0
	if c.table == nil || c.table.db == nil {
		return nil
	}
	ctx := context.Background()

	switch idxNum {
	case idxScanAll:
		return c.scan(ctx, "")
	case idxDatasetScan:
		if len(vals) == 0 || vals[0] == nil {
			return fmt.Errorf("near: dataset_id argument is required")
		}
		dataset, err := asString(vals[0])
		if err != nil {
			return err
		}
		return c.scan(ctx, dataset)
	case idxDatasetMatch, idxDatasetMatchMax:
		if len(vals) < 2 || vals[0] == nil || vals[1] == nil {
			return fmt.Errorf("near: dataset_id and MATCH arguments are required")
		}
		dataset, err := asString(vals[0])
		if err != nil {
			return err
		}
		center, radius, err := decodeMatchArg(vals[1])
		if err != nil {
			return err
		}
		if idxNum == idxDatasetMatchMax {
			if len(vals) < 3 {
				return fmt.Errorf("near: missing distance constraint")
			}
			limit, err := asFloat(vals[2])
			if err != nil {
				return err
			}
			radius = math.Min(radius, limit)
		}
		return c.match(ctx, dataset, center, radius)
	default:
		return fmt.Errorf("near: unsupported query plan %d", idxNum)
	}
}

func (c *Cursor) scan(ctx context.Context, dataset string) error {
	q := fmt.Sprintf("SELECT rowid, dataset_id, id FROM %s", c.table.shadow)
	var args []any
	if dataset != "" {
		q += " WHERE dataset_id = ?"
		args = append(args, dataset)
	}
	rows, err := c.table.db.QueryContext(ctx, q+" ORDER BY rowid", args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.rowid, &r.dataset, &r.id); err != nil {
			return err
		}
		c.rows = append(c.rows, r)
	}
	return rows.Err()
}

func (c *Cursor) match(ctx context.Context, dataset string, center r2.Point, radius float64) error {
	idx, err := c.table.ensureIndex(ctx, dataset)
	if err != nil {
		return err
	}
	ids, err := idx.Query(center, radius)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	stmt, err := c.table.db.PrepareContext(ctx, fmt.Sprintf("SELECT rowid, x, y FROM %s WHERE dataset_id = ? AND id = ?", c.table.shadow))
	if err != nil {
		return err
	}
	defer stmt.Close()
	out := make([]row, 0, len(ids))
	for _, id := range ids {
		var rid int64
		var p r2.Point
		if err := stmt.QueryRowContext(ctx, dataset, id).Scan(&rid, &p.X, &p.Y); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return err
		}
		out = append(out, row{rowid: rid, dataset: dataset, id: id, distance: geo.Distance(center, p), scored: true})
	}
	c.rows = out
	return nil
}

// Next advances the cursor.
func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

// Eof reports end of rows.
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

// Column returns the value of col in the current row. distance is NULL for
// scans without MATCH.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("near: Column out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	r := c.rows[c.pos]
	switch col {
	case colDataset:
		return r.dataset, nil
	case colID:
		return r.id, nil
	case colDistance:
		if !r.scored {
			return nil, nil
		}
		return r.distance, nil
	}
	return nil, fmt.Errorf("near: unsupported column %d", col)
}

// Rowid returns the shadow rowid of the current row.
func (c *Cursor) Rowid() (int64, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return 0, fmt.Errorf("near: Rowid out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	return c.rows[c.pos].rowid, nil
}

// Close releases the result set.
func (c *Cursor) Close() error { c.rows = nil; c.pos = 0; return nil }

func decodeMatchArg(v vtab.Value) (r2.Point, float64, error) {
	switch val := v.(type) {
	case []byte:
		return geo.DecodeCircle(val)
	case string:
		return decodeMatchString(val)
	default:
		return r2.Point{}, 0, fmt.Errorf("near: expected MATCH arg as BLOB or string, got %T", v)
	}
}

// decodeMatchString parses "[x, y, r]" or "x, y, r".
func decodeMatchString(raw string) (r2.Point, float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return r2.Point{}, 0, fmt.Errorf("near: MATCH string is empty")
	}
	var vals []float64
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &vals); err != nil {
			return r2.Point{}, 0, fmt.Errorf("near: invalid MATCH array %q: %w", s, err)
		}
	} else {
		for _, p := range strings.Split(s, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return r2.Point{}, 0, fmt.Errorf("near: invalid MATCH number %q: %w", p, err)
			}
			vals = append(vals, f)
		}
	}
	if len(vals) != 3 {
		return r2.Point{}, 0, fmt.Errorf("near: MATCH expects x, y, radius; got %d values", len(vals))
	}
	return r2.Point{X: vals[0], Y: vals[1]}, vals[2], nil
}

func asFloat(v vtab.Value) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	case []byte:
		return parseFloat(string(val))
	case string:
		return parseFloat(val)
	default:
		return 0, fmt.Errorf("near: unsupported distance type %T", v)
	}
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("near: cannot parse distance %q: %w", s, err)
	}
	return f, nil
}

func asString(v vtab.Value) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case nil:
		return "", fmt.Errorf("near: dataset_id is nil")
	default:
		return "", fmt.Errorf("near: unsupported dataset_id type %T", v)
	}
}

var _ vtab.Cursor = (*Cursor)(nil)
