package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parlift_pass_seconds",
		Help:    "Time spent in one analyzer pass over a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})

	TranslationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parlift_translation_seconds",
		Help:    "Time spent translating one class across all back-ends.",
		Buckets: prometheus.DefBuckets,
	})

	FilesCompiledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlift_files_compiled_total",
		Help: "Total number of source files run through the pipeline.",
	}, []string{"status"})

	ClassesTranslatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlift_classes_translated_total",
		Help: "Total number of classes with user-library usage translated.",
	})

	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlift_operations_total",
		Help: "Total number of extracted operations by kind and execution type.",
	}, []string{"kind", "execution"})

	KernelsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlift_kernels_emitted_total",
		Help: "Total number of kernel files written per back-end.",
	}, []string{"backend"})

	NonFinalCaptureWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlift_nonfinal_capture_warnings_total",
		Help: "Total number of operations demoted to sequential execution.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parlift_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
