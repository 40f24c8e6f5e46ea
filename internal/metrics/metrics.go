// Package metrics provides Prometheus instrumentation and a JSON stats
// endpoint for the submission intake server.
package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxTopEntries = 100

// Metrics collects Prometheus counters and histograms for the scan engine.
type Metrics struct {
	registry *prometheus.Registry

	scansTotal    *prometheus.CounterVec
	findingsTotal *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	archiveFiles  prometheus.Histogram
	platformScore prometheus.Histogram
	activeScans   prometheus.Gauge

	mu            sync.Mutex
	startTime     time.Time
	topCategories map[string]int64
	riskLevels    map[string]int64
	scanCount     int64
	rejectedCount int64
}

// New creates a Metrics instance with its own Prometheus registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	scansTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentvet",
		Name:      "scans_total",
		Help:      "Total number of archive scans by risk level.",
	}, []string{"risk_level"})

	findingsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentvet",
		Name:      "findings_total",
		Help:      "Total security findings by severity.",
	}, []string{"severity"})

	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentvet",
		Name:      "scan_duration_seconds",
		Help:      "Archive scan latency in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	archiveFiles := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentvet",
		Name:      "archive_files",
		Help:      "Catalogued entries per scanned archive.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100},
	})

	platformScore := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentvet",
		Name:      "platform_score",
		Help:      "Platform-integration score distribution.",
		Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	activeScans := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentvet",
		Name:      "active_scans",
		Help:      "Current number of in-flight scans.",
	})

	reg.MustRegister(scansTotal, findingsTotal, scanDuration,
		archiveFiles, platformScore, activeScans)

	return &Metrics{
		registry:      reg,
		scansTotal:    scansTotal,
		findingsTotal: findingsTotal,
		scanDuration:  scanDuration,
		archiveFiles:  archiveFiles,
		platformScore: platformScore,
		activeScans:   activeScans,
		startTime:     time.Now(),
		topCategories: make(map[string]int64),
		riskLevels:    make(map[string]int64),
	}
}

// RecordScan records a completed scan verdict.
func (m *Metrics) RecordScan(riskLevel string, fileCount, score int, duration time.Duration) {
	m.scansTotal.WithLabelValues(riskLevel).Inc()
	m.scanDuration.Observe(duration.Seconds())
	m.archiveFiles.Observe(float64(fileCount))
	m.platformScore.Observe(float64(score))

	m.mu.Lock()
	m.scanCount++
	if riskLevel == "critical" {
		m.rejectedCount++
	}
	if len(m.riskLevels) < maxTopEntries {
		m.riskLevels[riskLevel]++
	} else if _, exists := m.riskLevels[riskLevel]; exists {
		m.riskLevels[riskLevel]++
	}
	m.mu.Unlock()
}

// RecordFinding records one security finding.
func (m *Metrics) RecordFinding(severity, category string) {
	m.findingsTotal.WithLabelValues(severity).Inc()

	m.mu.Lock()
	if len(m.topCategories) < maxTopEntries {
		m.topCategories[category]++
	} else if _, exists := m.topCategories[category]; exists {
		m.topCategories[category]++
	}
	m.mu.Unlock()
}

// IncrActiveScans increments the in-flight scan gauge.
func (m *Metrics) IncrActiveScans() {
	m.activeScans.Inc()
}

// DecrActiveScans decrements the in-flight scan gauge.
func (m *Metrics) DecrActiveScans() {
	m.activeScans.Dec()
}

// PrometheusHandler returns an HTTP handler that serves /metrics in
// Prometheus text format.
func (m *Metrics) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StatsHandler returns an HTTP handler that serves a JSON stats summary.
func (m *Metrics) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		m.mu.Lock()
		stats := statsResponse{
			UptimeSeconds: time.Since(m.startTime).Seconds(),
			Scans: scanStats{
				Total:    m.scanCount,
				Rejected: m.rejectedCount,
			},
			RiskLevels:    topN(m.riskLevels),
			TopCategories: topN(m.topCategories),
		}
		if m.scanCount > 0 {
			stats.Scans.RejectRate = float64(m.rejectedCount) / float64(m.scanCount)
		}
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	}
}

type statsResponse struct {
	UptimeSeconds float64       `json:"uptime_seconds"`
	Scans         scanStats     `json:"scans"`
	RiskLevels    []rankedEntry `json:"risk_levels"`
	TopCategories []rankedEntry `json:"top_categories"`
}

type scanStats struct {
	Total      int64   `json:"total"`
	Rejected   int64   `json:"rejected"`
	RejectRate float64 `json:"reject_rate"`
}

type rankedEntry struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

func topN(m map[string]int64) []rankedEntry {
	entries := make([]rankedEntry, 0, len(m))
	for name, count := range m {
		entries = append(entries, rankedEntry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count == entries[j].Count {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Count > entries[j].Count
	})
	return entries
}
