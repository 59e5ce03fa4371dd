package join

import (
	"time"

	"github.com/digitaltembo/Crime-And-Dining/risk"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultRadius is the join radius in meters.
const DefaultRadius = 100.0

// DefaultProgressEvery is the number of incidents between progress logs.
const DefaultProgressEvery = 100

type options struct {
	radius        float64
	scorer        *risk.Scorer
	logger        *zap.Logger
	registerer    prometheus.Registerer
	now           func() time.Time
	progressEvery int
}

// Option configures a Driver.
type Option func(*options)

// WithRadius sets the join radius in meters.
func WithRadius(r float64) Option { return func(o *options) { o.radius = r } }

// WithScorer sets the incident scorer.
func WithScorer(s *risk.Scorer) Option { return func(o *options) { o.scorer = s } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithRegisterer registers driver metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithClock sets the time used as "now" when scoring.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithProgressEvery logs progress every n incidents; 0 disables progress logs.
func WithProgressEvery(n int) Option { return func(o *options) { o.progressEvery = n } }
