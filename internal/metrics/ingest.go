package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion metrics.
var (
	IngestQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_queue_depth",
			Help:      "Batches waiting in the ingest queue",
		},
	)

	IngestBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batches_total",
			Help:      "Ingest batches by queue result",
		},
		[]string{"result"}, // enqueued, dropped_newest, dropped_oldest, timeout
	)

	IngestSongsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_songs_total",
			Help:      "Processed songs by outcome",
		},
		[]string{"outcome"},
	)

	IngestSongDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_song_duration_seconds",
			Help:      "Time to ingest one song (lookup, embed, write)",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

var ingestOnce sync.Once

// RegisterIngestMetrics registers the ingestion metrics.
func RegisterIngestMetrics() {
	ingestOnce.Do(func() {
		prometheus.MustRegister(IngestQueueDepth, IngestBatchesTotal, IngestSongsTotal, IngestSongDuration)
	})
}
