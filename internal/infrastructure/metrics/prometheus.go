// Package metrics provides Prometheus metrics for observability, grounded
// on the teacher's internal/infrastructure/metrics/prometheus.go
// (promauto + namespaced CounterVec/HistogramVec, relabeled for this
// domain's components: C3's cache, C4's dispatcher, C5's stage workers,
// C1's transcoder).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mentor_upload"

var (
	// CacheOperationsTotal tracks fetch_question_name cache-aside lookups.
	// Labels:
	//   - result: hit, miss
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of question-name cache lookups",
		},
		[]string{"result"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior around
	// concurrent fetch_question_name calls for the same question.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)

	// MetadataClientRequestsTotal tracks calls to the external metadata
	// service (C3).
	// Labels:
	//   - operation: one of C3's named operations
	//   - result: ok, error
	MetadataClientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_client_requests_total",
			Help:      "Total number of requests to the external metadata service",
		},
		[]string{"operation", "result"},
	)

	// DispatchRequestsTotal tracks ingestion requests handled by C4.
	// Labels:
	//   - result: accepted, rejected, error
	DispatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_requests_total",
			Help:      "Total number of /upload/answer ingestion requests",
		},
		[]string{"result"},
	)

	// StageTasksTotal tracks C5 stage worker outcomes.
	// Labels:
	//   - stage: transcode-web, transcode-mobile, transcribe, trim-upload
	//   - result: done, failed, skipped, cancelled
	StageTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_tasks_total",
			Help:      "Total number of stage worker task outcomes",
		},
		[]string{"stage", "result"},
	)

	// TranscoderDurationSeconds times C1 toolkit operations.
	// Labels:
	//   - operation: trim, encode_web, encode_mobile, extract_audio, probe, transcript_to_vtt
	TranscoderDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcoder_duration_seconds",
			Help:      "Duration of media toolkit operations",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"operation"},
	)
)

// Cache result constants.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)

// Metadata client result constants.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Dispatch result constants.
const (
	DispatchAccepted = "accepted"
	DispatchRejected = "rejected"
	DispatchError    = "error"
)

// Stage task result constants.
const (
	StageResultDone      = "done"
	StageResultFailed    = "failed"
	StageResultSkipped   = "skipped"
	StageResultCancelled = "cancelled"
)
