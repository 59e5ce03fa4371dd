package nearutil

import (
	"fmt"
	"strings"
)

const (
	// StorageTable holds persisted index blobs keyed by shadow table and dataset.
	StorageTable = "point_storage"
	// LocksTable records the owner of an in-progress index build.
	LocksTable = "point_storage_locks"
)

// ShadowTableDDL returns the DDL of a near shadow table.
func ShadowTableDDL(shadow string) string {
	return `CREATE TABLE IF NOT EXISTS ` + shadow + ` (
    dataset_id TEXT NOT NULL,
    id         TEXT NOT NULL,
    x          REAL NOT NULL,
    y          REAL NOT NULL,
    point      BLOB,
    PRIMARY KEY(dataset_id, id)
);`
}

// StorageDDL returns the DDL of point_storage.
func StorageDDL() string {
	return `CREATE TABLE IF NOT EXISTS point_storage (
    shadow_table_name TEXT NOT NULL,
    dataset_id        TEXT NOT NULL DEFAULT '',
    kind              TEXT NOT NULL DEFAULT '',
    "index"           BLOB,
    updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (shadow_table_name, dataset_id)
);`
}

// LocksDDL returns the DDL of point_storage_locks.
func LocksDDL() string {
	return `CREATE TABLE IF NOT EXISTS point_storage_locks (
    shadow_table_name TEXT NOT NULL,
    dataset_id        TEXT NOT NULL DEFAULT '',
    owner             TEXT NOT NULL,
    locked_at         INTEGER NOT NULL,
    PRIMARY KEY (shadow_table_name, dataset_id)
);`
}

// InvalidateTriggers returns AFTER INSERT/UPDATE/DELETE triggers on shadow
// that drop the persisted index of the affected dataset and clear cached
// copies through near_invalidate. Updates invalidate both the old and the new
// dataset.
func InvalidateTriggers(shadow string) []string {
	base := SanitizeIdentifier("trg_near_" + shadow)
	lit := QuoteLiteral(shadow)
	drop := func(alias string) string {
		return fmt.Sprintf(`DELETE FROM %s WHERE shadow_table_name = %s AND dataset_id = %s.dataset_id;
    SELECT near_invalidate(%s, %s.dataset_id);`, StorageTable, lit, alias, lit, alias)
	}
	return []string{
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_ins AFTER INSERT ON %s
BEGIN
    %s
END;`, base, shadow, drop("NEW")),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_upd AFTER UPDATE ON %s
BEGIN
    %s
    %s
END;`, base, shadow, drop("NEW"), drop("OLD")),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_del AFTER DELETE ON %s
BEGIN
    %s
END;`, base, shadow, drop("OLD")),
	}
}

// SanitizeIdentifier turns a qualified name into a bare identifier.
func SanitizeIdentifier(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}

// QuoteLiteral returns s as a SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
