package near

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/digitaltembo/Crime-And-Dining/engine"
	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/digitaltembo/Crime-And-Dining/index"
	"github.com/digitaltembo/Crime-And-Dining/index/quad"
	"github.com/digitaltembo/Crime-And-Dining/nearutil"
	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"modernc.org/sqlite/vtab"
)

var testPoints = []nearutil.Point{
	{ID: "a", Location: r2.Point{X: 0, Y: 0}},
	{ID: "b", Location: r2.Point{X: 3, Y: 4}},
	{ID: "c", Location: r2.Point{X: 10, Y: 0}},
	{ID: "d", Location: r2.Point{X: -2, Y: -1}},
}

// openNear opens a file database with a near table named table backed by
// the quadtree index. The caller gets a handle allowing a second connection
// so that Filter can run its internal queries.
func openNear(t *testing.T, table string) *sql.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), table+".sqlite") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := engine.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// Single connection while the module is registered and the table created.
	db.SetMaxOpenConns(1)
	require.NoError(t, Register(db))
	if _, err := db.Exec(`CREATE VIRTUAL TABLE ` + table + ` USING near(id, index=quad)`); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			t.Skipf("skipping: near vtab not available (%v)", err)
		}
		require.NoError(t, err, "CREATE VIRTUAL TABLE %s", table)
	}
	require.NoError(t, nearutil.EnsureShadow(context.Background(), db, nearutil.ShadowTableName(table)))
	db.SetMaxOpenConns(2)
	return db
}

func queryIDs(t *testing.T, db *sql.DB, q string, args ...any) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			t.Skipf("skipping: query timed out (%v)", err)
		}
		require.NoError(t, err, "query %q", q)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}

func TestNearMatch(t *testing.T) {
	db := openNear(t, "poi_match")
	ctx := context.Background()
	shadow := nearutil.ShadowTableName("poi_match")
	require.NoError(t, nearutil.UpsertShadowPoints(ctx, db, shadow, "d1", testPoints))
	require.NoError(t, nearutil.UpsertShadowPoint(ctx, db, shadow, "d2", "z", r2.Point{}))

	got := queryIDs(t, db, `SELECT id FROM poi_match WHERE dataset_id = ? AND id MATCH ?`, "d1", "[0, 0, 5]")
	assert.Equal(t, []string{"a", "b", "d"}, got)

	// The virtual table agrees with a direct quadtree query.
	direct := quad.New()
	ids := make([]string, len(testPoints))
	pts := make([]r2.Point, len(testPoints))
	for i, p := range testPoints {
		ids[i], pts[i] = p.ID, p.Location
	}
	require.NoError(t, direct.Build(ids, pts))
	want, _ := direct.Query(r2.Point{X: 0, Y: 0}, 5)
	assert.Equal(t, want, got, "virtual table ids differ from index ids")

	got = queryIDs(t, db, `SELECT id FROM poi_match WHERE dataset_id = ? AND id MATCH ?`, "d1", "10, 0, 0")
	assert.Equal(t, []string{"c"}, got, "CSV MATCH")

	got = queryIDs(t, db, `SELECT id FROM poi_match WHERE dataset_id = ? AND id MATCH ? AND distance <= ?`, "d1", "[0, 0, 100]", 3.0)
	assert.Equal(t, []string{"a", "d"}, got, "distance-limited")

	matches, err := nearutil.Within(ctx, db, "poi_match", "d1", r2.Point{X: 0, Y: 0}, 5, 0)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "b", matches[1].ID)
	assert.Equal(t, 5.0, matches[1].Distance)

	got = queryIDs(t, db, `SELECT id FROM poi_match WHERE dataset_id = ? AND id MATCH ?`, "d2", "[0, 0, 1]")
	assert.Equal(t, []string{"z"}, got, "dataset d2")

	var kind string
	require.NoError(t, db.QueryRow(`SELECT kind FROM point_storage WHERE shadow_table_name = ? AND dataset_id = 'd1'`, shadow).Scan(&kind))
	assert.Equal(t, string(index.KindQuad), kind)
}

func TestNearScan(t *testing.T) {
	db := openNear(t, "poi_scan")
	ctx := context.Background()
	shadow := nearutil.ShadowTableName("poi_scan")
	require.NoError(t, nearutil.UpsertShadowPoints(ctx, db, shadow, "d1", testPoints[:2]))
	got := queryIDs(t, db, `SELECT id FROM poi_scan WHERE dataset_id = 'd1' ORDER BY rowid`)
	assert.Equal(t, []string{"a", "b"}, got)
}

// TestShadowChangeInvalidatesIndex verifies that shadow writes drop the
// persisted index so that the next MATCH sees the change.
func TestShadowChangeInvalidatesIndex(t *testing.T) {
	db := openNear(t, "poi_iv")
	ctx := context.Background()
	shadow := nearutil.ShadowTableName("poi_iv")
	require.NoError(t, nearutil.UpsertShadowPoints(ctx, db, shadow, "d1", testPoints))
	q := `SELECT id FROM poi_iv WHERE dataset_id = 'd1' AND id MATCH '[10, 0, 1]'`
	assert.Equal(t, []string{"c"}, queryIDs(t, db, q))

	count := func() int {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM point_storage WHERE shadow_table_name = ? AND "index" IS NOT NULL`, shadow).Scan(&n))
		return n
	}
	assert.Equal(t, 1, count(), "persisted index rows")

	require.NoError(t, nearutil.UpsertShadowPoint(ctx, db, shadow, "d1", "e", r2.Point{X: 10.5, Y: 0}))
	assert.Equal(t, 0, count(), "persisted index should be invalidated")
	assert.Equal(t, []string{"c", "e"}, queryIDs(t, db, q))
	assert.Equal(t, 1, count(), "rebuilt index rows")

	require.NoError(t, nearutil.DeletePoints(ctx, db, shadow, "d1", []string{"c"}))
	assert.Equal(t, []string{"e"}, queryIDs(t, db, q))
}

func TestBestIndex(t *testing.T) {
	tbl := &Table{}
	info := &vtab.IndexInfo{Constraints: []vtab.Constraint{
		{Column: colDistance, Op: vtab.OpLE, Usable: true},
		{Column: colID, Op: vtab.OpMATCH, Usable: true},
		{Column: colDataset, Op: vtab.OpEQ, Usable: true},
	}}
	require.NoError(t, tbl.BestIndex(info))
	assert.Equal(t, int64(idxDatasetMatchMax), info.IdxNum)
	assert.Equal(t, 0, info.Constraints[2].ArgIndex)
	assert.Equal(t, 1, info.Constraints[1].ArgIndex)
	assert.Equal(t, 2, info.Constraints[0].ArgIndex)

	info = &vtab.IndexInfo{Constraints: []vtab.Constraint{{Column: colID, Op: vtab.OpMATCH, Usable: true}}}
	assert.Error(t, tbl.BestIndex(info), "MATCH without dataset_id")

	info = &vtab.IndexInfo{Constraints: []vtab.Constraint{{Column: colDataset, Op: vtab.OpEQ, Usable: false}}}
	require.NoError(t, tbl.BestIndex(info))
	assert.Equal(t, int64(idxScanAll), info.IdxNum)
}

func TestDecodeMatch(t *testing.T) {
	blob := geo.EncodeCircle(r2.Point{X: 1, Y: 2}, 3)
	for _, in := range []any{"[1, 2, 3]", " 1,2 , 3 ", blob} {
		center, r, err := decodeMatchArg(in)
		require.NoError(t, err, "%v", in)
		assert.Equal(t, r2.Point{X: 1, Y: 2}, center)
		assert.Equal(t, 3.0, r)
	}
	for _, bad := range []string{"", "[1, 2]", "1,x,3", "[1,2,3"} {
		_, _, err := decodeMatchString(bad)
		assert.Error(t, err, bad)
	}
	_, _, err := decodeMatchArg([]byte{1, 2})
	assert.Error(t, err, "short blob")
	_, _, err = decodeMatchArg(int64(4))
	assert.Error(t, err, "integer MATCH arg")
}

func TestParseArgs(t *testing.T) {
	col, opts, err := parseArgs([]string{"value", "index=rtree"})
	require.NoError(t, err)
	assert.Equal(t, "value", col)
	assert.Equal(t, index.KindRTree, opts.kind)

	col, opts, err = parseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, "id", col)
	assert.Equal(t, index.KindAuto, opts.kind)

	_, _, err = parseArgs([]string{"id", "index=kd"})
	assert.Error(t, err, "unknown index kind")
}

func TestInvalidateCache(t *testing.T) {
	e1 := getCacheEntry(cacheKey("/tmp/x.db", "inv", "d1"))
	e2 := getCacheEntry(cacheKey("/tmp/x.db", "inv", "d2"))
	e1.set(quad.New())
	e2.set(quad.New())
	assert.Equal(t, 1, InvalidateCache("_near_inv", "d1"))
	assert.Nil(t, e1.get(), "d1 should be invalidated")
	assert.NotNil(t, e2.get(), "d2 should be kept")
	assert.Equal(t, 1, InvalidateCache("main._near_inv", ""))
	assert.Nil(t, e2.get(), "d2 should be invalidated")
}
