// Package metrics exposes Prometheus collectors for protocol activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "erosion"

// Collector records committed and rejected protocol operations.
type Collector struct {
	registry *prometheus.Registry

	transfers   *prometheus.CounterVec
	births      prometheus.Counter
	deaths      prometheus.Counter
	claims      prometheus.Counter
	rejections  *prometheus.CounterVec
	burned      prometheus.Counter
	minted      prometheus.Counter
	epoch       prometheus.Gauge
	latestBirth prometheus.Gauge
}

// New registers a fresh set of collectors on their own registry, so
// several engines (tests) never collide on the default registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		transfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "committed transfers by kind (shard or exit)",
		}, []string{"kind"}),

		births: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "births_total",
			Help:      "members admitted through a priced shard",
		}),

		deaths: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deaths_total",
			Help:      "members that reached the dead state",
		}),

		claims: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "genesis whitelist claims",
		}),

		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "rejected operations by reason",
		}, []string{"reason"}),

		burned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_burned_total",
			Help:      "knowledge burned as decay and erosion",
		}),

		minted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_minted_total",
			Help:      "knowledge minted as birth and claim endowments",
		}),

		epoch: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_epoch",
			Help:      "current generation epoch",
		}),

		latestBirth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_birth_seconds",
			Help:      "auction clock position in unix seconds",
		}),
	}
}

// Registry returns the registry to serve.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Transfer counts a committed transfer of the given kind.
func (c *Collector) Transfer(kind string) { c.transfers.WithLabelValues(kind).Inc() }

// Birth counts a recipient receiving its first balance.
func (c *Collector) Birth() { c.births.Inc() }

// Death counts a sender retired by a transfer.
func (c *Collector) Death() { c.deaths.Inc() }

// Claim counts a genesis admission.
func (c *Collector) Claim() { c.claims.Inc() }

// Burned adds n units settled as decay or erosion.
func (c *Collector) Burned(n uint64) { c.burned.Add(float64(n)) }

// Minted adds n units of endowment.
func (c *Collector) Minted(n uint64) { c.minted.Add(float64(n)) }

// Epoch records the current generation.
func (c *Collector) Epoch(e uint32) { c.epoch.Set(float64(e)) }

// LatestBirth records the auction clock position in Unix seconds.
func (c *Collector) LatestBirth(s float64) {
	c.latestBirth.Set(s)
}

// Rejected counts an operation refused for reason.
func (c *Collector) Rejected(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}
