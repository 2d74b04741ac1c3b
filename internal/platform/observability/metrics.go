package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeitgeist_items_collected_total",
		Help: "The total number of raw items collected",
	}, []string{"collector"})

	ItemsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zeitgeist_items_deduplicated_total",
		Help: "The total number of items surviving deduplication",
	})

	ItemsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeitgeist_items_dropped_total",
		Help: "Total number of dropped items by reason",
	}, []string{"reason"})

	ClustersProduced = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zeitgeist_clusters_per_cycle",
		Help:    "Number of clusters produced per pipeline cycle",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	ClusterNoiseItems = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zeitgeist_cluster_noise_items_total",
		Help: "Total number of items discarded as clustering noise",
	})

	ArcMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeitgeist_arc_matches_total",
		Help: "Story arc match outcomes",
	}, []string{"outcome"})

	ArcsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zeitgeist_arcs_active",
		Help: "Number of story arcs currently held by the registry",
	})

	ArcsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zeitgeist_arcs_swept_total",
		Help: "Total number of story arcs removed by retention sweeps",
	})

	ArcStoreFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zeitgeist_arc_store_fallbacks_total",
		Help: "Times the registry fell back from the vector store to memory",
	})

	HiddenStories = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeitgeist_hidden_stories_total",
		Help: "Clusters flagged by divergence type",
	}, []string{"type"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zeitgeist_cycle_duration_seconds",
		Help:    "Duration in seconds of a full pipeline cycle",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeitgeist_cycles_total",
		Help: "Total number of pipeline cycles by status",
	}, []string{"status"})

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeitgeist_embedding_requests_total",
		Help: "Total embedding API requests by provider, model, and status",
	}, []string{"provider", "model", "status"})

	EmbeddingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zeitgeist_embedding_latency_seconds",
		Help:    "Embedding request latency by provider and model",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "model"})

	EmbeddingProviderAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zeitgeist_embedding_provider_available",
		Help: "Whether an embedding provider is currently available (1) or not (0)",
	}, []string{"provider"})

	EmbeddingFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zeitgeist_embedding_fallbacks_total",
		Help: "Fallbacks from one embedding provider to another",
	}, []string{"from", "to"})
)
