// Package report turns the statistics of an extraction run into log lines,
// Prometheus metrics and a resource usage snapshot.
//
// Metrics live in a registry owned by the Collector rather than the default
// Prometheus registry, so independent runs (and tests) never share series.
// The registry is exported with WriteTextfile for the node_exporter textfile
// collector.
package report

import (
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/ajitpratap0/doctext/internal/pipeline"
	"github.com/ajitpratap0/doctext/pkg/errors"
	"github.com/ajitpratap0/doctext/pkg/output"
)

const namespace = "doctext"

// Row outcome label values
const (
	OutcomeKept   = "kept"
	OutcomeEmpty  = "empty"
	OutcomeSystem = "system"
	OutcomeCode   = "code"
)

// Collector holds the metrics of a single run
type Collector struct {
	registry *prometheus.Registry

	rows          *prometheus.CounterVec
	files         *prometheus.GaugeVec
	systemNodes   prometheus.Gauge
	samples       prometheus.Gauge
	sampleLength  *prometheus.GaugeVec
	outputBytes   prometheus.Gauge
	duration      prometheus.Gauge
	residentBytes prometheus.Gauge
	lastRun       prometheus.Gauge
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows read from the export, by filter outcome",
		}, []string{"outcome"}),
		files: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files",
			Help:      "Parquet files of the last run, by status",
		}, []string{"status"}),
		systemNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_nodes",
			Help:      "Size of the system node exclusion set",
		}),
		samples: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples",
			Help:      "Samples written by the last run",
		}),
		sampleLength: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sample_length_chars",
			Help:      "Sample length statistics in characters",
		}, []string{"stat"}),
		outputBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "output_bytes",
			Help:      "Size of the written artifact",
		}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time spent scanning the export",
		}),
		residentBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resident_memory_bytes",
			Help:      "Resident set size at the end of the run",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveExclusions records the size of the exclusion set
func (c *Collector) ObserveExclusions(n int) {
	c.systemNodes.Set(float64(n))
}

// ObserveRun records the scan statistics
func (c *Collector) ObserveRun(stats *pipeline.RunStats) {
	if stats == nil {
		return
	}
	c.rows.WithLabelValues(OutcomeKept).Add(float64(stats.Kept))
	c.rows.WithLabelValues(OutcomeEmpty).Add(float64(stats.SkippedEmpty))
	c.rows.WithLabelValues(OutcomeSystem).Add(float64(stats.ExcludedSystem))
	c.rows.WithLabelValues(OutcomeCode).Add(float64(stats.ExcludedCode))

	c.files.WithLabelValues("read").Set(float64(stats.FilesRead))
	c.files.WithLabelValues("skipped").Set(float64(stats.FilesSkipped))
	c.files.WithLabelValues("unvisited").Set(float64(stats.FilesUnvisited()))

	c.duration.Set(stats.Duration.Seconds())
}

// ObserveOutput records the written artifact
func (c *Collector) ObserveOutput(res *output.WriteResult) {
	if res == nil {
		return
	}
	c.samples.Set(float64(res.Samples))
	c.outputBytes.Set(float64(res.Bytes))
	c.sampleLength.WithLabelValues("min").Set(float64(res.Stats.Min))
	c.sampleLength.WithLabelValues("max").Set(float64(res.Stats.Max))
	c.sampleLength.WithLabelValues("avg").Set(res.Stats.Avg)
}

// ObserveUsage records the resource snapshot
func (c *Collector) ObserveUsage(u Usage) {
	c.residentBytes.Set(float64(u.RSSBytes))
}

// WriteTextfile stamps the run time and writes all metrics to path in the
// text exposition format. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string, now time.Time) error {
	c.lastRun.Set(float64(now.Unix()))
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write metrics textfile").
			WithDetail("path", path)
	}
	return nil
}

// Usage is a snapshot of the process resources
type Usage struct {
	RSSBytes   uint64
	VMSBytes   uint64
	UserCPU    time.Duration
	SystemCPU  time.Duration
	NumThreads int32
}

// Snapshot reads the resource usage of the current process
func Snapshot() (Usage, error) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: pids fit in int32
	if err != nil {
		return Usage{}, errors.Wrap(err, errors.ErrorTypeEnvironment, "failed to inspect process")
	}

	var u Usage
	mem, err := proc.MemoryInfo()
	if err != nil {
		return Usage{}, errors.Wrap(err, errors.ErrorTypeEnvironment, "failed to read memory info")
	}
	u.RSSBytes = mem.RSS
	u.VMSBytes = mem.VMS

	if times, err := proc.Times(); err == nil {
		u.UserCPU = seconds(times.User)
		u.SystemCPU = seconds(times.System)
	}
	u.NumThreads, _ = proc.NumThreads()
	return u, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ProgressLogger returns a pipeline progress callback writing to log
func ProgressLogger(log *zap.Logger) pipeline.ProgressFunc {
	return func(p pipeline.Progress) {
		log.Info("processed rows",
			zap.String("file", p.File),
			zap.Int64("rows", p.TotalRows),
			zap.Int64("samples", p.Kept))
	}
}

// LogRun writes the processing summary
func LogRun(log *zap.Logger, stats *pipeline.RunStats) {
	if stats == nil {
		return
	}
	log.Info("processing complete",
		zap.Int64("total_rows", stats.TotalRows),
		zap.Int64("excluded_system", stats.ExcludedSystem),
		zap.Int64("excluded_code", stats.ExcludedCode),
		zap.Int64("skipped_empty", stats.SkippedEmpty),
		zap.Int64("samples", stats.Kept),
		zap.Int("files_read", stats.FilesRead),
		zap.Int("files_skipped", stats.FilesSkipped),
		zap.Int("files_unvisited", stats.FilesUnvisited()),
		zap.Bool("cap_reached", stats.CapReached),
		zap.Duration("duration", stats.Duration),
		zap.Float64("rows_per_second", rate(stats.TotalRows, stats.Duration)))
}

// LogOutput writes the artifact summary
func LogOutput(log *zap.Logger, res *output.WriteResult, usage Usage) {
	log.Info("wrote samples",
		zap.String("path", res.Path),
		zap.Int("samples", res.Samples),
		zap.String("file_size", MegaBytes(res.Bytes)),
		zap.Int("min_length", res.Stats.Min),
		zap.Int("max_length", res.Stats.Max),
		zap.Float64("avg_length", res.Stats.Avg),
		zap.Uint64("rss_bytes", usage.RSSBytes),
		zap.Duration("cpu_user", usage.UserCPU),
		zap.Duration("cpu_system", usage.SystemCPU))
}

// MegaBytes formats n bytes as mebibytes with two decimals
func MegaBytes(n int64) string {
	return strconv.FormatFloat(float64(n)/1024/1024, 'f', 2, 64) + " MB"
}

func rate(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
