// Package export writes join results as CSV files.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/digitaltembo/Crime-And-Dining/record"
)

var (
	crimeHeader = []string{"Location", "Date", "Type", "Danger"}
	foodHeader  = []string{"Location", "Name", "Date", "Address", "Description", "CrimeCost", "Crimes"}
)

// CrimeWriter writes one row per incident.
type CrimeWriter struct {
	w *csv.Writer
	// MatchedOnly drops incidents that were not retained.
	MatchedOnly bool
	rows        int
}

// NewCrimeWriter creates a writer over w.
func NewCrimeWriter(w io.Writer) *CrimeWriter {
	return &CrimeWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (c *CrimeWriter) WriteHeader() error { return c.w.Write(crimeHeader) }

// Write writes inc.
func (c *CrimeWriter) Write(inc *record.Incident) error {
	c.rows++
	return c.w.Write([]string{
		inc.LatLng.String(),
		record.FormatDate(inc.Occurred),
		strconv.Itoa(inc.Type),
		strconv.Itoa(int(inc.Weapon)),
	})
}

// Incident writes inc unless MatchedOnly is set and inc was not retained.
func (c *CrimeWriter) Incident(inc *record.Incident, retained bool) error {
	if c.MatchedOnly && !retained {
		return nil
	}
	return c.Write(inc)
}

// Rows returns the number of incidents written.
func (c *CrimeWriter) Rows() int { return c.rows }

// Flush flushes buffered rows.
func (c *CrimeWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// FoodWriter writes one row per establishment.
type FoodWriter struct {
	w    *csv.Writer
	rows int
}

// NewFoodWriter creates a writer over w.
func NewFoodWriter(w io.Writer) *FoodWriter {
	return &FoodWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (f *FoodWriter) WriteHeader() error { return f.w.Write(foodHeader) }

// Write writes e with its incidents.
func (f *FoodWriter) Write(e *record.Establishment) error {
	f.rows++
	return f.w.Write([]string{
		e.LatLng.String(),
		e.Name,
		record.FormatDate(e.Established),
		e.Address,
		e.Description,
		strconv.Itoa(e.CrimeCost),
		Crimes(e.Incidents),
	})
}

// Rows returns the number of establishments written.
func (f *FoodWriter) Rows() int { return f.rows }

// Flush flushes buffered rows.
func (f *FoodWriter) Flush() error {
	f.w.Flush()
	return f.w.Error()
}

// Crimes encodes incidents as "|date~type~weapon" repeated.
func Crimes(incidents []*record.Incident) string {
	var sb strings.Builder
	for _, inc := range incidents {
		sb.WriteByte('|')
		sb.WriteString(record.FormatDate(inc.Occurred))
		sb.WriteByte('~')
		sb.WriteString(strconv.Itoa(inc.Type))
		sb.WriteByte('~')
		sb.WriteString(strconv.Itoa(int(inc.Weapon)))
	}
	return sb.String()
}
