package interceptor

import (
	"strconv"
	"time"

	"github.com/advdv/bpipe"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request counts, latencies and in-flight traversals, labelled by method,
// matched route pattern and status code. Faults are counted with code "fault".
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests handled by the pipeline.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time spent in the pipeline per request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Requests currently in the pipeline.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration, m.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register pipeline metrics")
		}
	}

	return m, nil
}

// Intercept implements [bpipe.Interceptor].
func (m *Metrics) Intercept(r *bpipe.Request, next bpipe.Next) (*bpipe.Response, error) {
	start := time.Now()
	m.inflight.Inc()

	var resp *bpipe.Response
	defer func() {
		m.inflight.Dec()

		route := routeLabel(r)
		code := "fault"
		if resp != nil {
			code = strconv.Itoa(resp.Status())
		}

		m.requests.WithLabelValues(r.Method(), route, code).Inc()
		m.duration.WithLabelValues(r.Method(), route).Observe(time.Since(start).Seconds())
	}()

	resp = next(nil)

	return resp, nil
}
