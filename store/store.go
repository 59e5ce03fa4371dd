package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/digitaltembo/Crime-And-Dining/engine"
	"github.com/digitaltembo/Crime-And-Dining/index"
	"github.com/digitaltembo/Crime-And-Dining/logging"
	"github.com/digitaltembo/Crime-And-Dining/near"
	"github.com/digitaltembo/Crime-And-Dining/nearadmin"
	"github.com/digitaltembo/Crime-And-Dining/nearutil"
	"github.com/digitaltembo/Crime-And-Dining/record"
	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	timeLayout = time.RFC3339Nano
	dateLayout = "2006-01-02"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("store: run not found")

// RunInfo describes a run when it starts.
type RunInfo struct {
	// ID is generated when empty.
	ID        string
	FoodPath  string
	CrimePath string
	Radius    float64
	IndexKind string
	StartedAt time.Time
}

// RunStats are recorded when a run finishes.
type RunStats struct {
	Establishments int
	Incidents      int
	Retained       int
}

// Run is a stored run.
type Run struct {
	RunInfo
	RunStats
	FinishedAt time.Time
}

// CostLogEntry is a row of establishment_cost_log.
type CostLogEntry struct {
	RunID           string
	Seq             int64
	Op              string
	EstablishmentID string
	Payload         string
}

// Store is a SQLite-backed run store.
type Store struct {
	db     *sql.DB
	owned  bool
	logger *zap.Logger
}

// Open opens dsn, registers the geo_* functions and the near and near_admin
// modules on it and ensures the schema, including the establishment_points
// and near_admin virtual tables.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if err := engine.RegisterGeoFunctions(nil); err != nil {
		return nil, err
	}
	db, err := engine.Open(dsn)
	if err != nil {
		return nil, err
	}
	// Modules attach to connections opened after registration; keep a
	// single connection while the virtual table is declared.
	db.SetMaxOpenConns(1)
	if err := near.Register(db); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	if err := nearadmin.Register(db); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	s, err := New(ctx, db, logger)
	if err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	for _, stmt := range []string{
		fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING %s(id)", PointsTable, near.ModuleName),
		fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING %s(op)", AdminTable, nearadmin.ModuleName),
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, multierr.Append(fmt.Errorf("store: %w", err), db.Close())
		}
	}
	// Radius searches run a second connection for shadow reads.
	db.SetMaxOpenConns(2)
	s.owned = true
	return s, nil
}

// New wraps db and ensures the run schema. Close leaves db open.
func New(ctx context.Context, db *sql.DB, logger *zap.Logger) (*Store, error) {
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db, logger: logging.OrNop(logger).Named("store")}, nil
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// BeginRun records a new run and returns its id.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(id, food_path, crime_path, radius, index_kind, started_at)
VALUES (?, ?, ?, ?, ?, ?)`, info.ID, info.FoodPath, info.CrimePath, info.Radius, info.IndexKind, info.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("store: begin run: %w", err)
	}
	s.logger.Info("run started", zap.String("run", info.ID))
	return info.ID, nil
}

// FinishRun stamps the run with its finish time and stats.
func (s *Store) FinishRun(ctx context.Context, runID string, stats RunStats) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at = ?, establishments = ?, incidents = ?, retained = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), stats.Establishments, stats.Incidents, stats.Retained, runID)
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	s.logger.Info("run finished", zap.String("run", runID), zap.Int("retained", stats.Retained))
	return nil
}

// GetRun loads a run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, food_path, crime_path, radius, index_kind, started_at, finished_at, establishments, incidents, retained
FROM runs WHERE id = ?`, runID).Scan(&run.ID, &run.FoodPath, &run.CrimePath, &run.Radius, &run.IndexKind, &started, &finished,
		&run.Establishments, &run.Incidents, &run.Retained)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("store: run %s: %w", runID, err)
	}
	if finished.Valid {
		if run.FinishedAt, err = time.Parse(timeLayout, finished.String); err != nil {
			return nil, fmt.Errorf("store: run %s: %w", runID, err)
		}
	}
	return &run, nil
}

// SaveEstablishments upserts establishments of a run. Establishment.ID must
// be set.
func (s *Store) SaveEstablishments(ctx context.Context, runID string, establishments []*record.Establishment) error {
	return s.withStmt(ctx, `INSERT INTO establishments(run_id, id, name, address, description, established, lat, lng, x, y, crime_cost)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, id) DO UPDATE SET
  name = excluded.name,
  address = excluded.address,
  description = excluded.description,
  established = excluded.established,
  lat = excluded.lat,
  lng = excluded.lng,
  x = excluded.x,
  y = excluded.y,
  crime_cost = excluded.crime_cost`, func(stmt *sql.Stmt) error {
		for _, e := range establishments {
			if e.ID == "" {
				return fmt.Errorf("store: establishment %q has no id", e.Name)
			}
			lat, lng, x, y := position(e.Located, e.LatLng.Lat, e.LatLng.Lng, e.Location)
			if _, err := stmt.ExecContext(ctx, runID, e.ID, e.Name, e.Address, e.Description, date(e.Established),
				lat, lng, x, y, e.CrimeCost); err != nil {
				return fmt.Errorf("store: establishment %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// SaveIncidents upserts incidents of a run. Incident.ID must be set.
func (s *Store) SaveIncidents(ctx context.Context, runID string, incidents []*record.Incident) error {
	return s.withStmt(ctx, `INSERT INTO incidents(run_id, id, type_id, type_name, weapon, occurred, lat, lng, x, y, matches)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, id) DO UPDATE SET
  type_id = excluded.type_id,
  type_name = excluded.type_name,
  weapon = excluded.weapon,
  occurred = excluded.occurred,
  lat = excluded.lat,
  lng = excluded.lng,
  x = excluded.x,
  y = excluded.y,
  matches = excluded.matches`, func(stmt *sql.Stmt) error {
		for _, inc := range incidents {
			if inc.ID == "" {
				return fmt.Errorf("store: incident of type %q has no id", inc.TypeName)
			}
			lat, lng, x, y := position(inc.Located, inc.LatLng.Lat, inc.LatLng.Lng, inc.Location)
			if _, err := stmt.ExecContext(ctx, runID, inc.ID, inc.Type, inc.TypeName, int64(inc.Weapon), date(inc.Occurred),
				lat, lng, x, y, inc.Matches); err != nil {
				return fmt.Errorf("store: incident %s: %w", inc.ID, err)
			}
		}
		return nil
	})
}

// SaveMatches records every (establishment, incident) pair attributed during
// the run and returns the number of pairs written.
func (s *Store) SaveMatches(ctx context.Context, runID string, establishments []*record.Establishment) (int, error) {
	n := 0
	err := s.withStmt(ctx, `INSERT OR IGNORE INTO matches(run_id, establishment_id, incident_id) VALUES (?, ?, ?)`, func(stmt *sql.Stmt) error {
		for _, e := range establishments {
			for _, inc := range e.Incidents {
				if _, err := stmt.ExecContext(ctx, runID, e.ID, inc.ID); err != nil {
					return fmt.Errorf("store: match %s/%s: %w", e.ID, inc.ID, err)
				}
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// MatchedIncidents returns the ids of incidents matched to establishment id
// in a run, in insertion order.
func (s *Store) MatchedIncidents(ctx context.Context, runID, establishmentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT incident_id FROM matches WHERE run_id = ? AND establishment_id = ? ORDER BY rowid`, runID, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CostLog returns the cost log of a run ordered by sequence number.
func (s *Store) CostLog(ctx context.Context, runID string) ([]CostLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, seq, op, establishment_id, payload FROM `+CostLogTable+` WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CostLogEntry
	for rows.Next() {
		var e CostLogEntry
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Op, &e.EstablishmentID, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PublishPoints writes the located establishments to the establishment_points
// shadow table under dataset runID and returns the number published.
func (s *Store) PublishPoints(ctx context.Context, runID string, establishments []*record.Establishment) (int, error) {
	shadow := nearutil.ShadowTableName(PointsTable)
	if err := nearutil.EnsureShadow(ctx, s.db, shadow); err != nil {
		return 0, err
	}
	points := make([]nearutil.Point, 0, len(establishments))
	for _, e := range establishments {
		if e.Located {
			points = append(points, nearutil.Point{ID: e.ID, Location: e.Location})
		}
	}
	if err := nearutil.UpsertShadowPoints(ctx, s.db, shadow, runID, points); err != nil {
		return 0, err
	}
	s.logger.Debug("points published", zap.String("run", runID), zap.Int("points", len(points)))
	return len(points), nil
}

// Within returns the establishments of a run within radius of center,
// answered by the establishment_points near table. It requires a store
// returned by Open.
func (s *Store) Within(ctx context.Context, runID string, center r2.Point, radius float64, limit int) ([]nearutil.Match, error) {
	return nearutil.Within(ctx, s.db, PointsTable, runID, center, radius, limit)
}

// Reindex rebuilds and persists the establishment_points index of a run
// through near_admin and returns the number of indexed points. It requires a
// store returned by Open.
func (s *Store) Reindex(ctx context.Context, runID string, kind index.Kind) (int, error) {
	arg := nearutil.ShadowTableName(PointsTable) + "|" + runID
	if kind != "" {
		arg += "|" + string(kind)
	}
	var op string
	if err := s.db.QueryRowContext(ctx, "SELECT op FROM "+AdminTable+" WHERE op MATCH ?", arg).Scan(&op); err != nil {
		return 0, fmt.Errorf("store: reindex %s: %w", runID, err)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(op, "reindexed:"))
	if err != nil {
		return 0, fmt.Errorf("store: unexpected near_admin result %q", op)
	}
	s.logger.Info("points reindexed", zap.String("run", runID), zap.String("kind", string(kind)), zap.Int("points", n))
	return n, nil
}

// ScanWithin answers the same query as Within with a linear scan of the
// establishments table through geo_within. It requires a store returned by
// Open.
func (s *Store) ScanWithin(ctx context.Context, runID string, center r2.Point, radius float64) ([]nearutil.Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, geo_dist(geo_point(x, y), geo_point(?, ?)) FROM establishments
WHERE run_id = ? AND x IS NOT NULL AND geo_within(geo_point(x, y), geo_point(?, ?), ?)
ORDER BY rowid`, center.X, center.Y, runID, center.X, center.Y, radius)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []nearutil.Match
	for rows.Next() {
		var m nearutil.Match
		if err := rows.Scan(&m.ID, &m.Distance); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) withStmt(ctx context.Context, query string, fn func(*sql.Stmt) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, ignoreDone(tx.Rollback()))
		}
	}()
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	if err = fn(stmt); err != nil {
		return multierr.Append(err, stmt.Close())
	}
	if err = stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func position(located bool, lat, lng float64, p r2.Point) (any, any, any, any) {
	if !located {
		return nil, nil, nil, nil
	}
	return lat, lng, p.X, p.Y
}

func date(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}
