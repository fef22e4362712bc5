package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var modeLabel atomic.Value

func init() {
	modeLabel.Store("project_bounds")
	prometheus.MustRegister(collectors()...)
}

func SetMode(m string) {
	if m == "" {
		m = "project_bounds"
	}
	modeLabel.Store(m)
}

func getMode() string {
	if v := modeLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "project_bounds"
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status", "mode"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"method", "route", "status", "mode"},
	)

	storeCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feature_store_commits_total",
			Help: "Feature store commits by origin.",
		},
		[]string{"origin"},
	)

	storeFeatures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feature_store_features",
			Help: "Number of features in the working collection.",
		},
	)

	popupActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popup_actions_total",
			Help: "Popup form actions by outcome.",
		},
		[]string{"action", "outcome", "mode"},
	)

	popupsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "popups_open",
			Help: "Popups currently held in the registry.",
		},
	)

	markersRendered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "markers_rendered",
			Help: "Markers produced by the last render pass.",
		},
	)

	flashMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flash_messages_total",
			Help: "Flash messages emitted by level.",
		},
		[]string{"level"},
	)

	hostSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "host_sync_total",
			Help: "Save-to-project hand-offs by result.",
		},
		[]string{"result"},
	)

	redisOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_ops_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_op_duration_seconds",
			Help:    "Latency of Redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		storeCommitsTotal,
		storeFeatures,
		popupActionsTotal,
		popupsOpen,
		markersRendered,
		flashMessagesTotal,
		hostSyncTotal,
		redisOpsTotal,
		redisOpDurationSeconds,
		buildInfo,
	}
}

// Register adds the service collectors to an additional registry, such as the
// one served by the dedicated metrics listener.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	m := getMode()
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st, m).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st, m).Observe(durationSeconds)
}

func ObserveCommit(origin string, features int) {
	if origin == "" {
		origin = "unknown"
	}
	storeCommitsTotal.WithLabelValues(origin).Inc()
	storeFeatures.Set(float64(features))
}

func ObservePopupAction(action, outcome, mode string) {
	if mode == "" {
		mode = getMode()
	}
	popupActionsTotal.WithLabelValues(action, outcome, mode).Inc()
}

func SetPopupsOpen(n int) {
	popupsOpen.Set(float64(n))
}

func SetMarkersRendered(n int) {
	markersRendered.Set(float64(n))
}

func IncFlash(level string) {
	flashMessagesTotal.WithLabelValues(level).Inc()
}

func IncHostSync(result string) {
	hostSyncTotal.WithLabelValues(result).Inc()
}

func ObserveRedisOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	redisOpsTotal.WithLabelValues(op, result).Inc()
	redisOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
