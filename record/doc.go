// Package record reads establishment and incident rows from the Boston open
// data CSV exports, assigns incident type ids, and resolves missing
// establishment locations from an address book.
package record
