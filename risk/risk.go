// Package risk scores crime incidents against the establishments near them.
package risk

import (
	"math"
	"time"

	"github.com/digitaltembo/Crime-And-Dining/record"
)

// DefaultIgnore lists incident types that carry no cost.
var DefaultIgnore = []string{"MedAssist"}

const day = 24 * time.Hour

// Costs holds the multipliers applied to an incident's base cost of 1.
type Costs struct {
	Shooting int `yaml:"shooting"`
	Firearm  int `yaml:"firearm"`
	Weapon   int `yaml:"weapon"`
}

// DefaultCosts returns the standard multipliers.
func DefaultCosts() Costs {
	return Costs{Shooting: 5, Firearm: 3, Weapon: 2}
}

// Scorer computes incident costs.
type Scorer struct {
	Costs  Costs
	Ignore map[string]bool
}

// NewScorer creates a scorer ignoring the given incident type names.
func NewScorer(costs Costs, ignore ...string) *Scorer {
	s := &Scorer{Costs: costs, Ignore: make(map[string]bool, len(ignore))}
	for _, name := range ignore {
		s.Ignore[name] = true
	}
	return s
}

// Default returns a scorer with DefaultCosts ignoring DefaultIgnore.
func Default() *Scorer {
	return NewScorer(DefaultCosts(), DefaultIgnore...)
}

// Initial returns the cost of inc before accounting for time.
func (s *Scorer) Initial(inc *record.Incident) int {
	if s.Ignore[inc.TypeName] {
		return 0
	}
	cost := 1
	if inc.Weapon.HasShooting() {
		cost *= s.Costs.Shooting
	}
	switch inc.Weapon.Arms() {
	case record.Other, record.Knife:
		cost *= s.Costs.Weapon
	case record.Firearm:
		cost *= s.Costs.Firearm
	}
	return cost
}

// Final scales initial by when the incident occurred relative to the
// establishment's licensing. Incidents after licensing weigh up to three
// times the initial cost, decaying towards it with the days elapsed until
// now. Incidents before licensing are divided by the number of started years
// between them. An unknown licensing date counts as before every incident.
func (s *Scorer) Final(initial int, occurred, established, now time.Time) int {
	if initial == 0 {
		return 0
	}
	if established.Before(occurred) {
		since := math.Max(days(now.Sub(occurred)), 0)
		return int(float64(initial) * (2/(1+since/50) + 1))
	}
	before := days(established.Sub(occurred))
	return int(float64(initial) / math.Ceil((before+1)/365))
}

// Score returns the final cost of inc for e.
func (s *Scorer) Score(inc *record.Incident, e *record.Establishment, now time.Time) int {
	return s.Final(s.Initial(inc), inc.Occurred, e.Established, now)
}

func days(d time.Duration) float64 {
	return float64(d) / float64(day)
}
