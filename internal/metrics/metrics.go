// Package metrics exposes Prometheus counters for a negotiation session.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the metrics of one session. A nil *Recorder records nothing,
// so agents can be run without metrics in tests.
type Recorder struct {
	registry *prometheus.Registry

	Messages       *prometheus.CounterVec   // side, intent
	Deals          *prometheus.CounterVec   // result: deal, no_deal
	KarmaPenalties *prometheus.CounterVec   // seller
	Rounds         prometheus.Histogram     // rounds per closed negotiation
	FinalPrice     *prometheus.HistogramVec // result
	CatalogEntries *prometheus.GaugeVec     // seller
	ProtocolFaults prometheus.Counter
}

// New creates a recorder with its own registry, so several sessions in one
// process do not collide.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,

		Messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haggle_messages_total",
				Help: "Messages appended to mailboxes",
			},
			[]string{"side", "intent"},
		),

		Deals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haggle_deals_total",
				Help: "Finalized buyer outcomes",
			},
			[]string{"result"}, // result: deal, no_deal
		),

		KarmaPenalties: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haggle_karma_penalties_total",
				Help: "Catalog-wide price raises applied by sellers",
			},
			[]string{"seller"},
		),

		Rounds: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "haggle_negotiation_rounds",
				Help:    "Rounds reached before a negotiation closed",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			},
		),

		FinalPrice: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "haggle_final_price",
				Help:    "Closing price of finalized negotiations",
				Buckets: prometheus.ExponentialBuckets(1000, 2, 8),
			},
			[]string{"result"},
		),

		ProtocolFaults: f.NewCounter(
			prometheus.CounterOpts{
				Name: "haggle_protocol_faults_total",
				Help: "Reads from empty mailboxes",
			},
		),

		CatalogEntries: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "haggle_catalog_entries",
				Help: "Entries in each seller catalog",
			},
			[]string{"seller"},
		),
	}
}

// Registry returns the registry the recorder's metrics live in.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the recorder's metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Message(side, intent string) {
	if r == nil {
		return
	}
	r.Messages.WithLabelValues(side, intent).Inc()
}

func (r *Recorder) Closed(rounds int) {
	if r == nil {
		return
	}
	r.Rounds.Observe(float64(rounds))
}

// Outcome records a buyer's final result. price is 0 for no deal.
func (r *Recorder) Outcome(price float64) {
	if r == nil {
		return
	}
	result := "deal"
	if price == 0 {
		result = "no_deal"
	}
	r.Deals.WithLabelValues(result).Inc()
	r.FinalPrice.WithLabelValues(result).Observe(price)
}

func (r *Recorder) Karma(seller int) {
	if r == nil {
		return
	}
	r.KarmaPenalties.WithLabelValues(strconv.Itoa(seller)).Inc()
}

func (r *Recorder) Fault() {
	if r == nil {
		return
	}
	r.ProtocolFaults.Inc()
}

func (r *Recorder) Catalog(seller, entries int) {
	if r == nil {
		return
	}
	r.CatalogEntries.WithLabelValues(strconv.Itoa(seller)).Set(float64(entries))
}
