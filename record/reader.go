package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/digitaltembo/Crime-And-Dining/geo"
)

// RowError reports a row that could not be parsed. Readers return it for
// rows that can be skipped; reading may continue afterwards.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("record: line %d: %v", e.Line, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// IncidentSource yields incidents until io.EOF.
type IncidentSource interface {
	Read() (*Incident, error)
}

type table struct {
	r      *csv.Reader
	header map[string]int
}

func newTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("record: missing header")
		}
		return nil, fmt.Errorf("record: header: %w", err)
	}
	header := make(map[string]int, len(head))
	for i, name := range head {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, ok := header[name]; !ok {
			header[name] = i
		}
	}
	return &table{r: cr, header: header}, nil
}

// column resolves name to a cell index; -1 when the column is optional and absent.
func (t *table) column(name string, required bool) (int, error) {
	if name == "" {
		if required {
			return -1, errors.New("record: required column name is empty")
		}
		return -1, nil
	}
	idx, ok := t.header[name]
	if !ok {
		if required {
			return -1, fmt.Errorf("record: missing column %q", name)
		}
		return -1, nil
	}
	return idx, nil
}

func (t *table) next() ([]string, int, error) {
	row, err := t.r.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, perr.Line, &RowError{Line: perr.Line, Err: err}
		}
		return nil, 0, err
	}
	line, _ := t.r.FieldPos(0)
	return row, line, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// EstablishmentReader reads establishments from a CSV export.
type EstablishmentReader struct {
	t    *table
	proj *geo.Projection
	n    int

	name, address, city, state, zip, description, established, location int
}

// NewEstablishmentReader reads the header and resolves cols against it.
func NewEstablishmentReader(r io.Reader, cols EstablishmentColumns, proj *geo.Projection) (*EstablishmentReader, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, err
	}
	er := &EstablishmentReader{t: t, proj: proj}
	for _, c := range []struct {
		dst      *int
		name     string
		required bool
	}{
		{&er.name, cols.Name, true},
		{&er.address, cols.Address, true},
		{&er.city, cols.City, false},
		{&er.state, cols.State, false},
		{&er.zip, cols.Zip, false},
		{&er.description, cols.Description, false},
		{&er.established, cols.Established, false},
		{&er.location, cols.Location, false},
	} {
		if *c.dst, err = t.column(c.name, c.required); err != nil {
			return nil, err
		}
	}
	return er, nil
}

// Read returns the next establishment, a *RowError for a skippable row, or
// io.EOF.
func (r *EstablishmentReader) Read() (*Establishment, error) {
	row, line, err := r.t.next()
	if err != nil {
		return nil, err
	}
	r.n++
	e := &Establishment{
		ID:          "e" + strconv.Itoa(r.n),
		Name:        cell(row, r.name),
		Address:     composeAddress(cell(row, r.address), cell(row, r.city), cell(row, r.state), cell(row, r.zip)),
		Description: cell(row, r.description),
	}
	if e.Established, err = ParseDate(cell(row, r.established)); err != nil {
		return nil, &RowError{Line: line, Err: err}
	}
	pos, err := geo.ParseLatLng(cell(row, r.location))
	if err != nil {
		return nil, &RowError{Line: line, Err: err}
	}
	e.SetLatLng(pos, r.proj)
	return e, nil
}

// composeAddress builds "<street> <city>, <state>, <zip>", the address book key.
func composeAddress(street, city, state, zip string) string {
	var sb strings.Builder
	sb.WriteString(street)
	if city != "" {
		sb.WriteByte(' ')
		sb.WriteString(city)
	}
	for _, part := range []string{state, zip} {
		if part != "" {
			sb.WriteString(", ")
			sb.WriteString(part)
		}
	}
	return sb.String()
}

// IncidentReader reads incidents from a CSV export.
type IncidentReader struct {
	t        *table
	proj     *geo.Projection
	registry *TypeRegistry
	n        int

	typ, occurred, weapon, shooting, location int
}

// NewIncidentReader reads the header and resolves cols against it. Incident
// types are registered in registry as they are first seen.
func NewIncidentReader(r io.Reader, cols IncidentColumns, proj *geo.Projection, registry *TypeRegistry) (*IncidentReader, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewTypeRegistry()
	}
	ir := &IncidentReader{t: t, proj: proj, registry: registry}
	for _, c := range []struct {
		dst      *int
		name     string
		required bool
	}{
		{&ir.typ, cols.Type, true},
		{&ir.occurred, cols.Occurred, false},
		{&ir.weapon, cols.Weapon, false},
		{&ir.shooting, cols.Shooting, false},
		{&ir.location, cols.Location, true},
	} {
		if *c.dst, err = t.column(c.name, c.required); err != nil {
			return nil, err
		}
	}
	return ir, nil
}

// Registry returns the type registry used by the reader.
func (r *IncidentReader) Registry() *TypeRegistry { return r.registry }

// Read returns the next incident, a *RowError for a skippable row, or io.EOF.
func (r *IncidentReader) Read() (*Incident, error) {
	row, line, err := r.t.next()
	if err != nil {
		return nil, err
	}
	r.n++
	name := cell(row, r.typ)
	inc := &Incident{
		ID:       "i" + strconv.Itoa(r.n),
		Type:     r.registry.ID(name),
		TypeName: name,
		Weapon:   ParseWeapon(cell(row, r.weapon), cell(row, r.shooting)),
	}
	if inc.Occurred, err = ParseDate(cell(row, r.occurred)); err != nil {
		return nil, &RowError{Line: line, Err: err}
	}
	pos, err := geo.ParseLatLng(cell(row, r.location))
	if err != nil {
		return nil, &RowError{Line: line, Err: err}
	}
	inc.SetLatLng(pos, r.proj)
	return inc, nil
}

// ReadAll drains rd. Row errors are passed to skip and reading continues;
// any other error stops reading. A nil skip drops row errors silently.
func ReadAll[T any](rd interface{ Read() (T, error) }, skip func(error)) ([]T, error) {
	var out []T
	for {
		item, err := rd.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				if skip != nil {
					skip(err)
				}
				continue
			}
			return out, err
		}
		out = append(out, item)
	}
}

// SliceSource serves incidents from memory.
type SliceSource struct {
	Incidents []*Incident
	pos       int
}

// Read returns the next incident or io.EOF.
func (s *SliceSource) Read() (*Incident, error) {
	if s.pos >= len(s.Incidents) {
		return nil, io.EOF
	}
	inc := s.Incidents[s.pos]
	s.pos++
	return inc, nil
}
