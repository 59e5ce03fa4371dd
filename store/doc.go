// Package store persists join runs in SQLite.
//
// Each run gets a uuid. Establishments, incidents and the pairs matched
// within the join radius are stored per run, every change of an
// establishment's crime cost is appended to establishment_cost_log by
// triggers, and located establishments are published to the
// establishment_points near table so radius searches can be answered with
// SQL after the process exits.
package store
