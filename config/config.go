// Package config loads the YAML configuration of a risk join run.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/digitaltembo/Crime-And-Dining/index"
	"github.com/digitaltembo/Crime-And-Dining/record"
	"github.com/digitaltembo/Crime-And-Dining/risk"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Inputs     Inputs     `yaml:"inputs"`
	Outputs    Outputs    `yaml:"outputs"`
	Join       Join       `yaml:"join"`
	Projection Projection `yaml:"projection"`
	Scoring    Scoring    `yaml:"scoring"`
	Index      Index      `yaml:"index"`
	Geocode    Geocode    `yaml:"geocode"`
	Store      Store      `yaml:"store"`
	Log        Log        `yaml:"log"`
}

// Inputs locates the source exports and the address book.
type Inputs struct {
	Food         string                       `yaml:"food"`
	Crime        string                       `yaml:"crime"`
	AddressBook  string                       `yaml:"address_book"`
	FoodColumns  record.EstablishmentColumns `yaml:"food_columns"`
	CrimeColumns record.IncidentColumns      `yaml:"crime_columns"`
}

// Outputs locates the generated files. Empty paths are not written.
type Outputs struct {
	Food        string `yaml:"food"`
	Crime       string `yaml:"crime"`
	MatchedOnly bool   `yaml:"matched_only"`
	Metrics     string `yaml:"metrics"`
}

// Join configures the proximity join.
type Join struct {
	Radius        float64 `yaml:"radius"`
	ProgressEvery int     `yaml:"progress_every"`
}

// Projection anchors the planar projection.
type Projection struct {
	Origin LatLng `yaml:"origin"`
}

// LatLng is a position in degrees.
type LatLng struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// Scoring configures risk.Scorer.
type Scoring struct {
	Costs  risk.Costs `yaml:"costs"`
	Ignore []string   `yaml:"ignore"`
}

// Index selects the index published to the near virtual table.
type Index struct {
	Kind string `yaml:"kind"`
}

// Geocode configures the address geocoder.
type Geocode struct {
	APIKey   string  `yaml:"api_key"`
	Endpoint string  `yaml:"endpoint"`
	RPS      float64 `yaml:"rps"`
}

// Store configures the SQLite database. An empty path disables persistence.
type Store struct {
	Path string `yaml:"path"`
}

// Log configures logging.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Inputs: Inputs{
			Food:         "Active_Food_Establishment_Licenses.csv",
			Crime:        "Crime_Incident_Reports.csv",
			AddressBook:  "locs.json",
			FoodColumns:  record.DefaultEstablishmentColumns(),
			CrimeColumns: record.DefaultIncidentColumns(),
		},
		Outputs: Outputs{
			Food:  "Food.csv",
			Crime: "Crime.csv",
		},
		Join: Join{
			Radius:        100,
			ProgressEvery: 100,
		},
		Projection: Projection{
			Origin: LatLng{Lat: geo.DefaultOrigin.Lat, Lng: geo.DefaultOrigin.Lng},
		},
		Scoring: Scoring{
			Costs:  risk.DefaultCosts(),
			Ignore: append([]string(nil), risk.DefaultIgnore...),
		},
		Index: Index{Kind: string(index.KindAuto)},
		Geocode: Geocode{
			Endpoint: "https://maps.googleapis.com/maps/api/geocode/json",
			RPS:      5,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var err error
	if c.Inputs.Food == "" {
		err = multierr.Append(err, errors.New("config: inputs.food is required"))
	}
	if c.Inputs.Crime == "" {
		err = multierr.Append(err, errors.New("config: inputs.crime is required"))
	}
	if math.IsNaN(c.Join.Radius) || c.Join.Radius < 0 {
		err = multierr.Append(err, fmt.Errorf("config: join.radius must be >= 0, got %v", c.Join.Radius))
	}
	if c.Join.ProgressEvery < 0 {
		err = multierr.Append(err, fmt.Errorf("config: join.progress_every must be >= 0, got %d", c.Join.ProgressEvery))
	}
	if _, kerr := index.ParseKind(c.Index.Kind); kerr != nil {
		err = multierr.Append(err, fmt.Errorf("config: index.kind: %w", kerr))
	}
	if c.Geocode.RPS <= 0 {
		err = multierr.Append(err, fmt.Errorf("config: geocode.rps must be > 0, got %v", c.Geocode.RPS))
	}
	return err
}

// Origin returns the projection origin.
func (c Config) Origin() geo.LatLng {
	return geo.LatLng{Lat: c.Projection.Origin.Lat, Lng: c.Projection.Origin.Lng}
}

// Scorer builds the configured scorer.
func (c Config) Scorer() *risk.Scorer {
	return risk.NewScorer(c.Scoring.Costs, c.Scoring.Ignore...)
}
