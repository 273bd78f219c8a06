package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Turns        *prometheus.CounterVec // event label: text|location|button|command
	TurnErrors   *prometheus.CounterVec // kind label, see session.ErrorKind
	TurnDuration prometheus.Histogram
	Sessions     prometheus.Gauge

	QueryDuration *prometheus.HistogramVec // op label: stop|departures|itinerary

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	MaxDepartures prometheus.Gauge
}

func NewCollector(maxDepartures int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "muoversi_turns_total",
			Help: "Total user turns handled.",
		}, []string{"event"}),
		TurnErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "muoversi_turn_errors_total",
			Help: "Total turns that ended with an error message.",
		}, []string{"kind"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "muoversi_turn_duration_seconds",
			Help:    "Duration of a user turn.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "muoversi_sessions",
			Help: "Number of chats with a session in memory.",
		}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "muoversi_query_duration_seconds",
			Help:    "Duration of schedule database queries.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"op"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "muoversi_nats_published_total",
			Help: "Total NATS replies published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "muoversi_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "muoversi_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		MaxDepartures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "muoversi_max_departures",
			Help: "Departures shown per listing page.",
		}),
	}

	reg.MustRegister(
		c.Turns, c.TurnErrors, c.TurnDuration, c.Sessions,
		c.QueryDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.MaxDepartures,
	)
	c.MaxDepartures.Set(float64(maxDepartures))
	return c
}

func (c *Collector) TurnObserve(event string, d time.Duration) {
	c.Turns.WithLabelValues(event).Inc()
	c.TurnDuration.Observe(d.Seconds())
}

func (c *Collector) TurnError(kind string) { c.TurnErrors.WithLabelValues(kind).Inc() }
func (c *Collector) SessionsSet(n int)     { c.Sessions.Set(float64(n)) }

func (c *Collector) QueryObserve(op string, d time.Duration) {
	c.QueryDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }
func (c *Collector) NATSSetConnected(b bool) {
	if b {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics and /healthz on the given address.
// health may be nil; otherwise /healthz reports its error as 503.
func (c *Collector) Serve(addr string, health func(ctx context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
