// Package bruteforce provides a simple point index that answers radius
// queries by scanning all points. Its compact binary format is shared by the
// other index kinds for persistence in the point_storage table.
package bruteforce
