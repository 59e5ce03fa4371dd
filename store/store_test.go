package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/digitaltembo/Crime-And-Dining/engine"
	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/digitaltembo/Crime-And-Dining/index"
	"github.com/digitaltembo/Crime-And-Dining/record"
	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "runs.sqlite") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	s, err := Open(context.Background(), dsn, nil)
	if err != nil {
		if strings.Contains(err.Error(), "no such module") {
			t.Skipf("skipping: near vtab not available (%v)", err)
		}
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fixtures() ([]*record.Establishment, []*record.Incident) {
	day := func(s string) time.Time {
		d, _ := time.Parse("2006-01-02", s)
		return d
	}
	inc := &record.Incident{
		ID: "i1", Type: 0, TypeName: "Robbery", Weapon: record.Firearm | record.ShootingFlag,
		Occurred: day("2013-05-01"), LatLng: geo.LatLng{Lat: 42.3, Lng: -71.1},
		Location: r2.Point{X: 10, Y: 0}, Located: true, Matches: 2,
	}
	establishments := []*record.Establishment{
		{ID: "e1", Name: "Cafe", Address: "1 Main St Boston, MA, 02110", Established: day("2010-01-01"),
			LatLng: geo.LatLng{Lat: 42.3, Lng: -71.1}, Location: r2.Point{X: 0, Y: 0}, Located: true},
		{ID: "e2", Name: "Diner", LatLng: geo.LatLng{Lat: 42.3, Lng: -71.1}, Location: r2.Point{X: 50, Y: 0}, Located: true},
		{ID: "e3", Name: "Nowhere"},
	}
	return establishments, []*record.Incident{inc}
}

func TestStoreRun(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	establishments, incidents := fixtures()

	runID, err := s.BeginRun(ctx, RunInfo{FoodPath: "Food.csv", CrimePath: "Crime.csv", Radius: 100, IndexKind: "quad"})
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	require.NoError(t, err)

	require.NoError(t, s.SaveEstablishments(ctx, runID, establishments))
	establishments[0].AddIncident(incidents[0], 7)
	establishments[1].AddIncident(incidents[0], 0)
	require.NoError(t, s.SaveEstablishments(ctx, runID, establishments))
	require.NoError(t, s.SaveIncidents(ctx, runID, incidents))

	n, err := s.SaveMatches(ctx, runID, establishments)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	ids, err := s.MatchedIncidents(ctx, runID, "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"i1"}, ids)

	require.NoError(t, s.FinishRun(ctx, runID, RunStats{Establishments: 2, Incidents: 1, Retained: 1}))
	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "Food.csv", run.FoodPath)
	assert.Equal(t, 100.0, run.Radius)
	assert.Equal(t, 1, run.Retained)
	assert.False(t, run.FinishedAt.IsZero())
	assert.WithinDuration(t, time.Now(), run.StartedAt, time.Minute)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.FinishRun(ctx, "missing", RunStats{}), ErrRunNotFound)

	matches, err := s.ScanWithin(ctx, runID, r2.Point{X: 10}, 40)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "e1", matches[0].ID)
	assert.InDelta(t, 10, matches[0].Distance, 1e-9)
	assert.InDelta(t, 40, matches[1].Distance, 1e-9)
	matches, err = s.ScanWithin(ctx, runID, r2.Point{X: 10}, 39.5)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	var established any
	require.NoError(t, s.DB().QueryRow(`SELECT established FROM establishments WHERE run_id = ? AND id = 'e2'`, runID).Scan(&established))
	assert.Nil(t, established)
}

func TestCostLog(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	establishments, incidents := fixtures()
	runID, err := s.BeginRun(ctx, RunInfo{ID: "run-1", Radius: 100})
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)

	require.NoError(t, s.SaveEstablishments(ctx, runID, establishments))
	establishments[0].AddIncident(incidents[0], 7)
	require.NoError(t, s.SaveEstablishments(ctx, runID, establishments))
	_, err = s.DB().Exec(`DELETE FROM establishments WHERE run_id = ? AND id = 'e3'`, runID)
	require.NoError(t, err)

	entries, err := s.CostLog(ctx, runID)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	var ops []string
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
		ops = append(ops, e.Op+":"+e.EstablishmentID)
	}
	assert.Equal(t, []string{"insert:e1", "insert:e2", "insert:e3", "update:e1", "delete:e3"}, ops)
	assert.JSONEq(t, `{"id":"e1","name":"Cafe","crime_cost":7}`, entries[3].Payload)

	other, err := s.CostLog(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSaveRequiresID(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	err := s.SaveEstablishments(ctx, "run", []*record.Establishment{{Name: "anon"}})
	assert.Error(t, err)
	err = s.SaveIncidents(ctx, "run", []*record.Incident{{TypeName: "Robbery"}})
	assert.Error(t, err)

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM establishments`).Scan(&n))
	assert.Zero(t, n)
}

func TestPublishAndWithin(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	establishments, _ := fixtures()

	n, err := s.PublishPoints(ctx, "run-1", establishments)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	matches, err := s.Within(qctx, "run-1", r2.Point{}, 60, 0)
	if err != nil && qctx.Err() == context.DeadlineExceeded {
		t.Skipf("skipping: near MATCH timed out (%v)", err)
	}
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "e1", matches[0].ID)
	assert.Equal(t, "e2", matches[1].ID)
	assert.InDelta(t, 50, matches[1].Distance, 1e-9)

	matches, err = s.Within(qctx, "run-2", r2.Point{}, 60, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	n, err = s.Reindex(qctx, "run-1", index.KindRTree)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	var kind string
	require.NoError(t, s.DB().QueryRow(`SELECT kind FROM point_storage WHERE dataset_id = 'run-1'`).Scan(&kind))
	assert.Equal(t, "rtree", kind)
	matches, err = s.Within(qctx, "run-1", r2.Point{X: 50}, 0, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "e2", matches[0].ID)
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	db, err := engine.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	s, err := New(ctx, db, nil)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, s.Close())
	require.NoError(t, db.Ping())

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'trigger' AND name LIKE 'establishments_cost_%'`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestCostLogTriggers(t *testing.T) {
	trigs := CostLogTriggers("establishments")
	require.Len(t, trigs, 3)
	assert.Contains(t, trigs[0], "AFTER INSERT ON establishments")
	assert.Contains(t, trigs[1], "AFTER UPDATE OF crime_cost ON establishments")
	assert.Contains(t, trigs[1], "WHEN NEW.crime_cost IS NOT OLD.crime_cost")
	assert.Contains(t, trigs[2], "'delete'")
	assert.Contains(t, trigs[2], "OLD.run_id")
}
