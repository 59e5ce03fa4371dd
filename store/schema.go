package store

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	// CostLogTable receives a row for every insert, cost update or delete
	// of an establishment.
	CostLogTable = "establishment_cost_log"

	// CostSeqTable stores the next log sequence number per run.
	CostSeqTable = "establishment_cost_seq"

	// PointsTable is the near virtual table holding establishment points,
	// one dataset per run.
	PointsTable = "establishment_points"

	// AdminTable is the near_admin virtual table used to rebuild indexes.
	AdminTable = "near_admin"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id             TEXT PRIMARY KEY,
    food_path      TEXT NOT NULL DEFAULT '',
    crime_path     TEXT NOT NULL DEFAULT '',
    radius         REAL NOT NULL,
    index_kind     TEXT NOT NULL DEFAULT '',
    started_at     TEXT NOT NULL,
    finished_at    TEXT,
    establishments INTEGER NOT NULL DEFAULT 0,
    incidents      INTEGER NOT NULL DEFAULT 0,
    retained       INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS establishments (
    run_id      TEXT NOT NULL,
    id          TEXT NOT NULL,
    name        TEXT NOT NULL,
    address     TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    established TEXT,
    lat         REAL,
    lng         REAL,
    x           REAL,
    y           REAL,
    crime_cost  INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY(run_id, id)
);
CREATE TABLE IF NOT EXISTS incidents (
    run_id    TEXT NOT NULL,
    id        TEXT NOT NULL,
    type_id   INTEGER NOT NULL,
    type_name TEXT NOT NULL,
    weapon    INTEGER NOT NULL,
    occurred  TEXT,
    lat       REAL,
    lng       REAL,
    x         REAL,
    y         REAL,
    matches   INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY(run_id, id)
);
CREATE TABLE IF NOT EXISTS matches (
    run_id           TEXT NOT NULL,
    establishment_id TEXT NOT NULL,
    incident_id      TEXT NOT NULL,
    PRIMARY KEY(run_id, establishment_id, incident_id)
);
CREATE TABLE IF NOT EXISTS establishment_cost_seq (
    run_id   TEXT PRIMARY KEY,
    next_seq INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS establishment_cost_log (
    run_id           TEXT NOT NULL,
    seq              INTEGER NOT NULL,
    op               TEXT NOT NULL,
    establishment_id TEXT NOT NULL,
    payload          TEXT NOT NULL,
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY(run_id, seq)
);
`

// EnsureSchema creates the run tables and the cost log triggers if they do
// not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("store: db is nil")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}
	for _, stmt := range CostLogTriggers("establishments") {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CostLogTriggers returns the trigger DDL that appends inserts, crime cost
// updates and deletes of table to establishment_cost_log. The payload is a
// JSON object with the row's id, name and crime cost.
func CostLogTriggers(table string) []string {
	payload := func(alias string) string {
		return fmt.Sprintf(`json_object(
        'id', %[1]s.id,
        'name', %[1]s.name,
        'crime_cost', %[1]s.crime_cost
    )`, alias)
	}
	advance := func(alias string) string {
		return fmt.Sprintf(`INSERT INTO %[1]s(run_id, next_seq)
    VALUES (%[2]s.run_id, 1)
    ON CONFLICT(run_id) DO UPDATE SET next_seq = next_seq + 1;`, CostSeqTable, alias)
	}
	entry := func(alias, op string) string {
		return fmt.Sprintf(`INSERT INTO %s(run_id, seq, op, establishment_id, payload)
    VALUES (
        %[2]s.run_id,
        (SELECT next_seq FROM %[3]s WHERE run_id = %[2]s.run_id),
        '%[4]s',
        %[2]s.id,
        %[5]s
    );`, CostLogTable, alias, CostSeqTable, op, payload(alias))
	}
	return []string{
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_cost_ai AFTER INSERT ON %[1]s
BEGIN
    %[2]s
    %[3]s
END;`, table, advance("NEW"), entry("NEW", "insert")),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_cost_au AFTER UPDATE OF crime_cost ON %[1]s
WHEN NEW.crime_cost IS NOT OLD.crime_cost
BEGIN
    %[2]s
    %[3]s
END;`, table, advance("NEW"), entry("NEW", "update")),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_cost_ad AFTER DELETE ON %[1]s
BEGIN
    %[2]s
    %[3]s
END;`, table, advance("OLD"), entry("OLD", "delete")),
	}
}
