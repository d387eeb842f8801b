// Package metrics provides Prometheus metrics for the console server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeconsole_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codeconsole_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// File store metrics
	fileReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeconsole_file_reads_total",
			Help: "Total file reads through the content store",
		},
		[]string{"status"},
	)

	fileWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeconsole_file_writes_total",
			Help: "Total file writes through the content store",
		},
		[]string{"status"},
	)

	fileBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codeconsole_file_bytes_written_total",
			Help: "Total bytes written to source files",
		},
	)

	// Index metrics
	indexTreeSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codeconsole_index_tree_size",
			Help: "Number of files/directories in the sandbox tree",
		},
	)

	indexScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codeconsole_index_scan_duration_seconds",
			Help:    "Time to walk the sandbox and build the tree",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Backup metrics
	backupsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codeconsole_backups_created_total",
			Help: "Total backup snapshots created",
		},
	)

	backupsRestoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codeconsole_backups_restored_total",
			Help: "Total backup restores",
		},
	)

	backupsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codeconsole_backups_purged_total",
			Help: "Total backups removed by retention",
		},
	)

	backupStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codeconsole_backup_store_operation_duration_seconds",
			Help:    "Backup backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Build metrics
	buildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeconsole_builds_total",
			Help: "Total build attempts",
		},
		[]string{"result"},
	)

	buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codeconsole_build_duration_seconds",
			Help:    "Build and deploy duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 90, 120, 180},
		},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeconsole_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	// AI assist metrics
	assistRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeconsole_assist_requests_total",
			Help: "Total AI assist invocations",
		},
		[]string{"action", "status"},
	)

	assistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codeconsole_assist_duration_seconds",
			Help:    "AI assist round-trip duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codeconsole_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeconsole_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codeconsole_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFileRead records a file read through the content store.
func RecordFileRead(success bool) {
	fileReadsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordFileWrite records a file write through the content store.
func RecordFileWrite(bytes int64, success bool) {
	if success {
		fileBytesWritten.Add(float64(bytes))
	}
	fileWritesTotal.WithLabelValues(outcome(success)).Inc()
}

// SetIndexTreeSize sets the current tree size.
func SetIndexTreeSize(size int64) {
	indexTreeSize.Set(float64(size))
}

// RecordIndexScan records a sandbox scan duration.
func RecordIndexScan(duration time.Duration) {
	indexScanDuration.Observe(duration.Seconds())
}

// RecordBackupCreated records a backup snapshot.
func RecordBackupCreated() {
	backupsCreatedTotal.Inc()
}

// RecordBackupRestored records a backup restore.
func RecordBackupRestored() {
	backupsRestoredTotal.Inc()
}

// RecordBackupsPurged records backups removed by retention.
func RecordBackupsPurged(count int) {
	backupsPurgedTotal.Add(float64(count))
}

// RecordBackupStoreOperation records a backup backend operation duration.
func RecordBackupStoreOperation(operation string, duration time.Duration) {
	backupStoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBuild records a build attempt and its duration.
func RecordBuild(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	buildsTotal.WithLabelValues(result).Inc()
	buildDuration.Observe(duration.Seconds())
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	authAttemptsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordAssistRequest records an AI assist invocation.
func RecordAssistRequest(action string, success bool, duration time.Duration) {
	assistRequestsTotal.WithLabelValues(action, outcome(success)).Inc()
	assistDuration.Observe(duration.Seconds())
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records an SSE event publication.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
