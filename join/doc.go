// Package join attributes crime incidents to the food establishments within
// a fixed radius of them.
//
// A Driver indexes establishments in a point quadtree keyed by their planar
// location (Build), then probes the tree once per incident (Probe, Run). Every
// establishment found accumulates the incident's cost; an incident found near
// at least one establishment is retained for export.
package join
