package join

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/digitaltembo/Crime-And-Dining/internal/quad/tree"
	"github.com/digitaltembo/Crime-And-Dining/logging"
	"github.com/digitaltembo/Crime-And-Dining/record"
	"github.com/digitaltembo/Crime-And-Dining/risk"
	"github.com/golang/geo/r2"
	"go.uber.org/zap"
)

// Stats summarises a join.
type Stats struct {
	Establishments int
	Skipped        int
	Incidents      int
	BadRows        int
	Unlocated      int
	Matched        int
	Retained       int
	Depth          int
}

// Driver runs the build and probe phases of a join. It is not safe for
// concurrent use.
type Driver struct {
	opts    options
	tree    *tree.Tree[*record.Establishment]
	metrics *Metrics
	logger  *zap.Logger
	stats   Stats
}

// NewDriver creates a driver.
func NewDriver(opts ...Option) *Driver {
	o := options{
		radius:        DefaultRadius,
		now:           time.Now,
		progressEvery: DefaultProgressEvery,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.scorer == nil {
		o.scorer = risk.Default()
	}
	if math.IsNaN(o.radius) {
		o.radius = -1
	}
	return &Driver{
		opts:    o,
		tree:    tree.New[*record.Establishment](),
		metrics: NewMetrics(o.registerer),
		logger:  logging.OrNop(o.logger).Named("join"),
	}
}

// Radius returns the join radius in meters.
func (d *Driver) Radius() float64 { return d.opts.radius }

// Stats returns the counters accumulated so far.
func (d *Driver) Stats() Stats {
	s := d.stats
	s.Depth = d.tree.Depth()
	return s
}

// Build indexes located establishments. Unlocated ones are skipped.
func (d *Driver) Build(establishments []*record.Establishment) error {
	start := time.Now()
	for _, e := range establishments {
		if !e.Located {
			d.stats.Skipped++
			d.metrics.Skipped.Inc()
			continue
		}
		if err := d.tree.Insert(e.Location, e); err != nil {
			return fmt.Errorf("join: insert %q: %w", e.Name, err)
		}
		d.stats.Establishments++
		d.metrics.Indexed.Inc()
	}
	d.logger.Info("index built",
		zap.Int("establishments", d.stats.Establishments),
		zap.Int("skipped", d.stats.Skipped),
		zap.Int("depth", d.tree.Depth()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Near returns the establishments within the join radius of p.
func (d *Driver) Near(p r2.Point) []*record.Establishment {
	return d.tree.Query(p, d.opts.radius)
}

// Probe attributes inc to every establishment within the radius and reports
// whether any was found. Establishments only accumulate incidents with a
// positive initial cost.
func (d *Driver) Probe(inc *record.Incident) bool {
	d.stats.Incidents++
	d.metrics.Incidents.Inc()
	if !inc.Located {
		d.stats.Unlocated++
		return false
	}
	hits := d.Near(inc.Location)
	inc.Matches = len(hits)
	d.metrics.PerProbe.Observe(float64(len(hits)))
	if len(hits) == 0 {
		return false
	}
	d.stats.Matched++
	d.metrics.Matched.Inc()
	if initial := d.opts.scorer.Initial(inc); initial > 0 {
		now := d.opts.now()
		for _, e := range hits {
			e.AddIncident(inc, d.opts.scorer.Final(initial, inc.Occurred, e.Established, now))
		}
	}
	return true
}

// Run probes every incident from src and hands it to sink. Rows src reports
// as *record.RowError are logged and skipped.
func (d *Driver) Run(ctx context.Context, src record.IncidentSource, sink IncidentSink) (Stats, error) {
	if sink == nil {
		sink = Discard
	}
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return d.Stats(), err
		}
		inc, err := src.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var rowErr *record.RowError
			if errors.As(err, &rowErr) {
				d.stats.BadRows++
				d.logger.Warn("skipping incident row", zap.Int("line", rowErr.Line), zap.Error(rowErr.Err))
				continue
			}
			return d.Stats(), fmt.Errorf("join: read incident: %w", err)
		}
		retained := d.Probe(inc)
		if retained {
			d.stats.Retained++
		}
		if err := sink.Incident(inc, retained); err != nil {
			return d.Stats(), fmt.Errorf("join: sink: %w", err)
		}
		if n := d.opts.progressEvery; n > 0 && d.stats.Incidents%n == 0 {
			d.logger.Info("progress",
				zap.Int("incidents", d.stats.Incidents),
				zap.Int("retained", d.stats.Retained))
		}
	}
	stats := d.Stats()
	d.logger.Info("probe finished",
		zap.Int("incidents", stats.Incidents),
		zap.Int("matched", stats.Matched),
		zap.Int("retained", stats.Retained),
		zap.Int("bad_rows", stats.BadRows),
		zap.Duration("elapsed", time.Since(start)))
	return stats, nil
}

// Each calls fn for every indexed establishment in build order.
func (d *Driver) Each(fn func(*record.Establishment)) {
	d.tree.Map(func(_ r2.Point, e *record.Establishment) { fn(e) })
}

// Export calls fn for every indexed establishment, stopping at the first
// error.
func (d *Driver) Export(fn func(*record.Establishment) error) error {
	var err error
	d.tree.Walk(func(_ r2.Point, e *record.Establishment) bool {
		err = fn(e)
		return err == nil
	})
	return err
}

// Close releases the index. Establishments remain valid.
func (d *Driver) Close() {
	d.tree.Reset()
}
