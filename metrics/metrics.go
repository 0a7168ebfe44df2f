package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 音频分发核心的 Prometheus 指标
var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixfm_audio_cache_hits_total",
		Help: "Number of play requests served from the transcode cache.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixfm_audio_cache_misses_total",
		Help: "Number of play requests that missed the transcode cache.",
	})

	TranscodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mixfm_transcode_duration_seconds",
		Help:    "Wall time of ffmpeg transcode invocations.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"quality", "outcome"})

	BytesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixfm_audio_bytes_served_total",
		Help: "Audio payload bytes written to clients.",
	})

	RangeRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mixfm_range_requests_total",
		Help: "Number of partial content (206) responses served.",
	})
)
