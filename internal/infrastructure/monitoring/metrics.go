package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can take metrics optionally.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Registry metrics
	RegistryMonitors prometheus.Gauge
	RegistryRefresh  *prometheus.CounterVec

	// Session metrics
	Selections      *prometheus.CounterVec
	ActiveScreens   prometheus.Gauge
	ConnEvents      *prometheus.CounterVec
	PollRequests    *prometheus.CounterVec
	BackendRequests *prometheus.HistogramVec
	BreakerTrips    prometheus.Counter

	// Frame metrics
	FramesReceived prometheus.Counter
	FramesRendered prometheus.Counter
	FramesDropped  prometheus.Counter
	DecodeErrors   *prometheus.CounterVec
	FrameBytes     prometheus.Histogram
	DecodeDuration prometheus.Histogram

	// WebSocket metrics
	WSViewers  prometheus.Gauge
	WSMessages *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON stats endpoint
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	FramesReceived int64   `json:"frames_received"`
	FramesRendered int64   `json:"frames_rendered"`
	FramesDropped  int64   `json:"frames_dropped"`
	DecodeErrors   int64   `json:"decode_errors"`
	ActiveScreens  int64   `json:"active_screens"`
	Viewers        int64   `json:"viewers"`
	Monitors       int64   `json:"monitors"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on its own registry, with Go
// runtime and process collectors attached.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monview_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monview_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monview_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Registry metrics
		RegistryMonitors: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "monview_registry_monitors",
				Help: "Number of monitors in the last successful list",
			},
		),
		RegistryRefresh: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monview_registry_refresh_total",
				Help: "Monitor list refreshes by outcome",
			},
			[]string{"status"},
		),

		// Session metrics
		Selections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monview_selections_total",
				Help: "Selection changes by kind",
			},
			[]string{"kind"},
		),
		ActiveScreens: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "monview_active_screens",
				Help: "Screens acquired for the current selection",
			},
		),
		ConnEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monview_connection_events_total",
				Help: "Per-screen connection state transitions",
			},
			[]string{"mode", "state"},
		),
		PollRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monview_poll_requests_total",
				Help: "Still-image requests by outcome",
			},
			[]string{"status"},
		),
		BackendRequests: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monview_backend_request_duration_seconds",
				Help:    "Backend request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		BreakerTrips: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monview_backend_breaker_trips_total",
				Help: "Times the backend circuit breaker opened",
			},
		),

		// Frame metrics
		FramesReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monview_frames_received_total",
				Help: "Frames received from the backend",
			},
		),
		FramesRendered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monview_frames_rendered_total",
				Help: "Frames painted onto a screen surface",
			},
		),
		FramesDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monview_frames_dropped_total",
				Help: "Frames superseded before they were rendered",
			},
		),
		DecodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monview_decode_errors_total",
				Help: "Frames that could not be decoded",
			},
			[]string{"reason"},
		),
		FrameBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "monview_frame_size_bytes",
				Help:    "Encoded frame size in bytes",
				Buckets: prometheus.ExponentialBuckets(1<<10, 4, 10),
			},
		),
		DecodeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "monview_decode_duration_seconds",
				Help:    "Frame decode and paint duration in seconds",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5},
			},
		),

		// WebSocket metrics
		WSViewers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "monview_ws_viewers",
				Help: "Connected browser viewers",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monview_ws_messages_total",
				Help: "Total number of viewer WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "monview_uptime_seconds",
			Help: "Viewer uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Snapshot returns current values for the JSON stats endpoint
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}

func (m *Metrics) update(fn func(*Snapshot)) {
	m.mu.Lock()
	fn(&m.snapshot)
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.update(func(s *Snapshot) {
		s.TotalRequests++
		if status[0] == '4' || status[0] == '5' {
			s.TotalErrors++
		}
	})
}

// RecordRegistryRefresh records a monitor list refresh
func (m *Metrics) RecordRegistryRefresh(err error, monitors int) {
	if m == nil {
		return
	}
	if err != nil {
		m.RegistryRefresh.WithLabelValues("error").Inc()
		return
	}
	m.RegistryRefresh.WithLabelValues("success").Inc()
	m.RegistryMonitors.Set(float64(monitors))
	m.update(func(s *Snapshot) { s.Monitors = int64(monitors) })
}

// RecordSelection records a selection change ("select" or "clear")
func (m *Metrics) RecordSelection(kind string) {
	if m == nil {
		return
	}
	m.Selections.WithLabelValues(kind).Inc()
}

// SetActiveScreens sets the number of screens being acquired
func (m *Metrics) SetActiveScreens(count int) {
	if m == nil {
		return
	}
	m.ActiveScreens.Set(float64(count))
	m.update(func(s *Snapshot) { s.ActiveScreens = int64(count) })
}

// RecordConnState records a per-screen connection state transition
func (m *Metrics) RecordConnState(mode, state string) {
	if m == nil {
		return
	}
	m.ConnEvents.WithLabelValues(mode, state).Inc()
}

// RecordPoll records a still-image request outcome
func (m *Metrics) RecordPoll(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.PollRequests.WithLabelValues(status).Inc()
}

// RecordBackendRequest records how long a backend call took
func (m *Metrics) RecordBackendRequest(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncBreakerTrips counts a backend circuit breaker opening
func (m *Metrics) IncBreakerTrips() {
	if m == nil {
		return
	}
	m.BreakerTrips.Inc()
}

// RecordFrameReceived records an incoming encoded frame
func (m *Metrics) RecordFrameReceived(size int) {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
	m.FrameBytes.Observe(float64(size))
	m.update(func(s *Snapshot) { s.FramesReceived++ })
}

// RecordFrameRendered records a frame painted in the given time
func (m *Metrics) RecordFrameRendered(duration time.Duration) {
	if m == nil {
		return
	}
	m.FramesRendered.Inc()
	m.DecodeDuration.Observe(duration.Seconds())
	m.update(func(s *Snapshot) { s.FramesRendered++ })
}

// RecordFrameDropped records a frame superseded by a newer one
func (m *Metrics) RecordFrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
	m.update(func(s *Snapshot) { s.FramesDropped++ })
}

// RecordDecodeError records a frame that failed to decode
func (m *Metrics) RecordDecodeError(reason string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(reason).Inc()
	m.update(func(s *Snapshot) { s.DecodeErrors++ })
}

// RecordWSMessage records a viewer WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSViewers increments connected viewers
func (m *Metrics) IncWSViewers() {
	if m == nil {
		return
	}
	m.WSViewers.Inc()
	m.update(func(s *Snapshot) { s.Viewers++ })
}

// DecWSViewers decrements connected viewers
func (m *Metrics) DecWSViewers() {
	if m == nil {
		return
	}
	m.WSViewers.Dec()
	m.update(func(s *Snapshot) { s.Viewers-- })
}
