// Package near implements a SQLite virtual table answering radius queries
// over planar points.
//
// Points live in a per-table shadow table (_near_<table>) partitioned by
// dataset_id. The first MATCH against a dataset builds an index.Index over
// its points, persists the blob in point_storage and keeps it in a cache
// shared by every connection to the same database file. Writes to the shadow
// table invalidate both copies through triggers.
//
//	CREATE VIRTUAL TABLE poi USING near(id, index=quad);
//	SELECT id, distance FROM poi WHERE dataset_id = ? AND id MATCH '[120.5, 80, 100]';
//
// The MATCH argument is the query circle: a JSON array [x, y, radius], the
// same values as CSV, or the 24-byte BLOB produced by geo.EncodeCircle. A
// constraint "distance <= d" further narrows the radius.
package near
