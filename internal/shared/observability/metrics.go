package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the engine-wide tracer. Without an SDK installed it is a
// no-op; long-running deployments can wire an exporter.
var Tracer trace.Tracer = otel.Tracer("atlas")

var (
	FilesParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_files_parsed_total",
		Help: "Total number of source files parsed into syntax trees.",
	})

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_parse_failures_total",
		Help: "Total number of source files that failed to parse and degraded to an empty report.",
	})

	FunctionsAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_functions_analyzed_total",
		Help: "Total number of function and method activations analyzed.",
	})

	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_resolutions_total",
		Help: "Name resolutions by classification outcome.",
	}, []string{"outcome"})

	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_pass_seconds",
		Help:    "Time spent per analysis pass.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RescansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_rescans_total",
		Help: "Total number of watch-mode rescans executed.",
	})
)
