package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaultValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100.0, cfg.Join.Radius)
	assert.Equal(t, "BusinessName", cfg.Inputs.FoodColumns.Name)
	assert.Equal(t, 5, cfg.Scoring.Costs.Shooting)
	assert.InDelta(t, 42.237125, cfg.Origin().Lat, 1e-9)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := `
inputs:
  food: food.csv
  crime_columns:
    type: OFFENSE_CODE_GROUP
join:
  radius: 250
index:
  kind: rtree
scoring:
  ignore: [MedAssist, Towed]
outputs:
  matched_only: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "food.csv", cfg.Inputs.Food)
	assert.Equal(t, "Crime_Incident_Reports.csv", cfg.Inputs.Crime)
	assert.Equal(t, "OFFENSE_CODE_GROUP", cfg.Inputs.CrimeColumns.Type)
	assert.Equal(t, "FROMDATE", cfg.Inputs.CrimeColumns.Occurred)
	assert.Equal(t, 250.0, cfg.Join.Radius)
	assert.Equal(t, 100, cfg.Join.ProgressEvery)
	assert.Equal(t, "rtree", cfg.Index.Kind)
	assert.True(t, cfg.Outputs.MatchedOnly)
	assert.Equal(t, 3, cfg.Scoring.Costs.Firearm)

	s := cfg.Scorer()
	assert.True(t, s.Ignore["Towed"])
}

func TestLoadErrors(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("join: [1, 2"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Inputs.Food = ""
	cfg.Join.Radius = -1
	cfg.Index.Kind = "kdtree"
	cfg.Geocode.RPS = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.Contains(t, err.Error(), "inputs.food")
	assert.Contains(t, err.Error(), "kdtree")
}
