package record

import (
	"time"

	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/golang/geo/r2"
)

// Establishment is a licensed food establishment and the risk accumulated
// from nearby incidents.
type Establishment struct {
	ID          string
	Name        string
	Address     string
	Description string
	Established time.Time
	LatLng      geo.LatLng
	Location    r2.Point
	Located     bool

	CrimeCost int
	Incidents []*Incident
}

// SetLatLng stores l and its projected location. Unset positions leave the
// establishment unlocated.
func (e *Establishment) SetLatLng(l geo.LatLng, proj *geo.Projection) {
	e.LatLng = l
	e.Located = l.IsSet()
	if e.Located {
		e.Location = proj.Project(l)
	}
}

// AddIncident records inc against e and adds cost to the crime cost.
func (e *Establishment) AddIncident(inc *Incident, cost int) {
	e.CrimeCost += cost
	e.Incidents = append(e.Incidents, inc)
}

// Incident is a single crime incident report.
type Incident struct {
	ID       string
	Type     int
	TypeName string
	Weapon   Weapon
	Occurred time.Time
	LatLng   geo.LatLng
	Location r2.Point
	Located  bool

	// Matches counts the establishments found within the join radius.
	Matches int
}

// SetLatLng stores l and its projected location.
func (i *Incident) SetLatLng(l geo.LatLng, proj *geo.Projection) {
	i.LatLng = l
	i.Located = l.IsSet()
	if i.Located {
		i.Location = proj.Project(l)
	}
}

// Retained reports whether the incident matched at least one establishment.
func (i *Incident) Retained() bool { return i.Matches > 0 }
