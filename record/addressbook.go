package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/digitaltembo/Crime-And-Dining/geo"
	"go.uber.org/multierr"
)

// AddressBook maps an establishment address to its position. It is stored as
// JSON of the form {"<address>": [lat, lng]}.
type AddressBook map[string]geo.LatLng

// LoadAddressBook decodes an address book.
func LoadAddressBook(r io.Reader) (AddressBook, error) {
	raw := map[string][2]float64{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("record: address book: %w", err)
	}
	book := make(AddressBook, len(raw))
	for addr, pos := range raw {
		book[addr] = geo.LatLng{Lat: pos[0], Lng: pos[1]}
	}
	return book, nil
}

// LoadAddressBookFile reads an address book from path. A missing file yields
// an empty book.
func LoadAddressBookFile(path string) (AddressBook, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AddressBook{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return LoadAddressBook(f)
}

// Write encodes the book with sorted keys.
func (b AddressBook) Write(w io.Writer) error {
	raw := make(map[string][2]float64, len(b))
	for addr, pos := range b {
		raw[addr] = [2]float64{pos.Lat, pos.Lng}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(raw)
}

// WriteFile writes the book to path.
func (b AddressBook) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = b.Write(f)
	return multierr.Append(err, f.Close())
}

// Resolve sets the position of an unlocated establishment from the book and
// reports whether e is located afterwards.
func (b AddressBook) Resolve(e *Establishment, proj *geo.Projection) bool {
	if e.Located {
		return true
	}
	if pos, ok := b[e.Address]; ok && pos.IsSet() {
		e.SetLatLng(pos, proj)
	}
	return e.Located
}
