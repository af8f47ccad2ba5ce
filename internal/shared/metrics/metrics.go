package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

type counter struct {
	name string
	help string
	n    atomic.Uint64
}

func (c *counter) inc() { c.n.Add(1) }

var (
	uploadsAccepted     = &counter{name: "document_uploads_accepted_total", help: "Uploads stored and recorded"}
	uploadsRejected     = &counter{name: "document_uploads_rejected_total", help: "Uploads rejected by validation"}
	storageFallback     = &counter{name: "document_storage_fallback_total", help: "Object store writes that fell back to local disk"}
	extractionFailed    = &counter{name: "document_extraction_failed_total", help: "Text extractions that failed"}
	analysisStarted     = &counter{name: "analysis_started_total", help: "Total analyses started"}
	analysisCompleted   = &counter{name: "analysis_completed_total", help: "Total analyses completed"}
	analysisFailed      = &counter{name: "analysis_failed_total", help: "Total analyses failed"}
	readAnalysisSkipped = &counter{name: "analysis_read_skipped_total", help: "Read-path analyses skipped by cooldown"}

	// Render order.
	counters = []*counter{
		uploadsAccepted, uploadsRejected, storageFallback, extractionFailed,
		analysisStarted, analysisCompleted, analysisFailed, readAnalysisSkipped,
	}

	analysisDuration = newHistogram("analysis_duration_ms", "Analysis duration in milliseconds",
		[]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

func IncUploadAccepted()      { uploadsAccepted.inc() }
func IncUploadRejected()      { uploadsRejected.inc() }
func IncStorageFallback()     { storageFallback.inc() }
func IncExtractionFailed()    { extractionFailed.inc() }
func IncAnalysisStarted()     { analysisStarted.inc() }
func IncAnalysisCompleted()   { analysisCompleted.inc() }
func IncAnalysisFailed()      { analysisFailed.inc() }
func IncReadAnalysisSkipped() { readAnalysisSkipped.inc() }

// ObserveAnalysisDurationMs records one analysis call. Negative values count as 0.
func ObserveAnalysisDurationMs(ms float64) {
	analysisDuration.Observe(max(ms, 0))
}

// Handler serves the Prometheus text exposition.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

func Render() string {
	var sb strings.Builder
	for _, c := range counters {
		fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", c.name, c.help, c.name, c.name, c.n.Load())
	}
	analysisDuration.writeTo(&sb)
	return sb.String()
}

type histogram struct {
	name   string
	help   string
	bounds []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, not cumulative
	sum    float64
	total  uint64
}

func newHistogram(name, help string, bounds []float64) *histogram {
	return &histogram{name: name, help: help, bounds: bounds, counts: make([]uint64, len(bounds))}
}

func (h *histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total++
	h.sum += v
	for i, bound := range h.bounds {
		if v <= bound {
			h.counts[i]++
			return
		}
	}
}

// cumulative returns the le-bucket counts plus sum and total.
func (h *histogram) cumulative() ([]uint64, float64, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]uint64, len(h.counts))
	var running uint64
	for i, n := range h.counts {
		running += n
		out[i] = running
	}
	return out, h.sum, h.total
}

func (h *histogram) writeTo(w io.Writer) {
	buckets, sum, total := h.cumulative()
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	for i, bound := range h.bounds {
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", h.name, formatFloat(bound), buckets[i])
	}
	fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, total)
	fmt.Fprintf(w, "%s_sum %s\n%s_count %d\n", h.name, formatFloat(sum), h.name, total)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
