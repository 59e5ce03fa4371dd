package join

import "github.com/digitaltembo/Crime-And-Dining/record"

// IncidentSink receives every incident after it has been probed.
type IncidentSink interface {
	Incident(inc *record.Incident, retained bool) error
}

// SinkFunc adapts a function to IncidentSink.
type SinkFunc func(inc *record.Incident, retained bool) error

// Incident calls f.
func (f SinkFunc) Incident(inc *record.Incident, retained bool) error { return f(inc, retained) }

// Collector keeps retained incidents in memory.
type Collector struct {
	Retained []*record.Incident
}

// Incident appends inc when retained.
func (c *Collector) Incident(inc *record.Incident, retained bool) error {
	if retained {
		c.Retained = append(c.Retained, inc)
	}
	return nil
}

// Discard drops every incident.
var Discard IncidentSink = SinkFunc(func(*record.Incident, bool) error { return nil })
