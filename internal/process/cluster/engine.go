// Package cluster groups deduplicated items into topic clusters using
// vector similarity over their embedded topic representations.
package cluster

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
	"github.com/heymarcell/zeitgeistai/internal/core/embeddings"
	"github.com/heymarcell/zeitgeistai/internal/process/dedup"
)

const (
	// topTopicCount is how many ranked topics a cluster carries.
	topTopicCount = 5

	// themesPerItem caps how many theme tokens feed an item's text
	// representation.
	themesPerItem = 10

	// defaultEpsilon is the cosine-distance neighborhood radius for
	// density clustering.
	defaultEpsilon = 0.30

	// noiseLabel marks items not assigned to any cluster.
	noiseLabel = -1
)

// Embedder is the capability the engine needs to turn text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string, purpose embeddings.Purpose) [][]float32
	Dimensions() int
}

// Config holds the engine's tunable parameters.
type Config struct {
	// MinClusterSize is the minimum member count for a cluster; inputs
	// smaller than this collapse into a single degenerate cluster.
	MinClusterSize int

	// MinSamples is the neighbor count required for an item to be a
	// density core point.
	MinSamples int

	// ProjectionComponents is the dimensionality used for clustering
	// distance computations; 0 disables reduction. Centroids are always
	// computed from the original embeddings.
	ProjectionComponents int

	// Epsilon is the cosine-distance neighborhood radius; 0 uses the
	// default.
	Epsilon float64
}

// Engine clusters raw items by semantic similarity.
type Engine struct {
	embedder Embedder
	cfg      Config
	logger   *zerolog.Logger
}

// NewEngine creates a clustering engine.
func NewEngine(embedder Embedder, cfg Config, logger *zerolog.Logger) *Engine {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = defaultEpsilon
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Engine{
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Cluster groups items into topic clusters, sorted by size descending.
// Embedding failures for individual items never abort the batch: failed
// items carry zero vectors and drift toward noise.
func (e *Engine) Cluster(ctx context.Context, items []domain.RawItem) []domain.Cluster {
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = itemText(item)
	}

	vectors := e.embedder.Embed(ctx, texts, embeddings.PurposeClustering)

	// Degenerate case: too few points for density clustering.
	if len(items) < e.cfg.MinClusterSize {
		e.logger.Debug().Int("items", len(items)).Msg("below minimum cluster size, returning single cluster")

		return []domain.Cluster{buildCluster(0, items, vectors)}
	}

	clusterVectors := vectors
	if e.cfg.ProjectionComponents > 0 && len(items) > e.cfg.ProjectionComponents {
		clusterVectors = projectVectors(vectors, e.cfg.ProjectionComponents)

		e.logger.Debug().
			Int("original_dims", len(vectors[0])).
			Int("reduced_dims", e.cfg.ProjectionComponents).
			Msg("applied random projection for clustering")
	}

	labels := densityCluster(clusterVectors, e.cfg.Epsilon, e.cfg.MinSamples, e.cfg.MinClusterSize)

	grouped := make(map[int][]int)

	noise := 0

	for idx, label := range labels {
		if label == noiseLabel {
			noise++
			continue
		}

		grouped[label] = append(grouped[label], idx)
	}

	clusters := make([]domain.Cluster, 0, len(grouped))

	for label, indexes := range grouped {
		members := make([]domain.RawItem, len(indexes))
		memberVectors := make([][]float32, len(indexes))

		for i, idx := range indexes {
			members[i] = items[idx]
			memberVectors[i] = vectors[idx]
		}

		clusters = append(clusters, buildCluster(label, members, memberVectors))
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size > clusters[j].Size
	})

	e.logger.Info().
		Int("clusters", len(clusters)).
		Int("noise", noise).
		Msg("clustering complete")

	return clusters
}

// itemText builds the short text representation used for embedding: the
// item's ranked theme tokens prefixed with a coarse source-domain token.
func itemText(item domain.RawItem) string {
	themes := item.Themes
	if len(themes) > themesPerItem {
		themes = themes[:themesPerItem]
	}

	text := strings.Join(themes, " ")

	if domainToken := hostOf(item.URL); domainToken != "" {
		text = domainToken + " " + text
	}

	if strings.TrimSpace(text) == "" {
		return "unknown"
	}

	return text
}

// hostOf extracts the host portion of a URL without parsing overhead.
func hostOf(rawURL string) string {
	rest := rawURL

	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	} else {
		return ""
	}

	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}

	return rest
}

// buildCluster assembles a cluster from members: centroid from the original
// (non-reduced) embeddings, topics as the top tokens by frequency.
func buildCluster(id int, members []domain.RawItem, memberVectors [][]float32) domain.Cluster {
	return domain.Cluster{
		ID:       id,
		Members:  members,
		Topics:   topTopics(members, topTopicCount),
		Centroid: meanVector(memberVectors),
		Size:     len(members),
	}
}

// topTopics ranks theme tokens across members by frequency, ties broken by
// first-seen order.
func topTopics(members []domain.RawItem, n int) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0

	for _, member := range members {
		for _, theme := range member.Themes {
			if _, ok := counts[theme]; !ok {
				firstSeen[theme] = order
				order++
			}

			counts[theme]++
		}
	}

	topics := make([]string, 0, len(counts))
	for theme := range counts {
		topics = append(topics, theme)
	}

	sort.SliceStable(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}

		return firstSeen[topics[i]] < firstSeen[topics[j]]
	})

	if len(topics) > n {
		topics = topics[:n]
	}

	return topics
}

// meanVector computes the element-wise mean of vectors, skipping entries
// whose length disagrees with the first vector.
func meanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil
	}

	sum := make([]float64, dim)
	count := 0

	for _, v := range vectors {
		if len(v) != dim {
			continue
		}

		for i, x := range v {
			sum[i] += float64(x)
		}

		count++
	}

	if count == 0 {
		return nil
	}

	mean := make([]float32, dim)
	for i := range sum {
		mean[i] = float32(sum[i] / float64(count))
	}

	return mean
}

// densityCluster runs DBSCAN over cosine distance. Core points need at
// least minSamples neighbors within eps; clusters smaller than
// minClusterSize are relabeled noise.
func densityCluster(vectors [][]float32, eps float64, minSamples, minClusterSize int) []int {
	n := len(vectors)
	labels := make([]int, n)

	for i := range labels {
		labels[i] = noiseLabel
	}

	visited := make([]bool, n)
	nextLabel := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}

		visited[i] = true

		neighbors := regionQuery(vectors, i, eps)
		if len(neighbors) < minSamples {
			continue
		}

		expandCluster(vectors, labels, visited, i, neighbors, nextLabel, eps, minSamples)
		nextLabel++
	}

	pruneSmallClusters(labels, nextLabel, minClusterSize)

	return labels
}

// expandCluster grows a cluster from a seed core point.
func expandCluster(vectors [][]float32, labels []int, visited []bool, seed int, neighbors []int, label int, eps float64, minSamples int) {
	labels[seed] = label

	queue := append([]int(nil), neighbors...)

	for head := 0; head < len(queue); head++ {
		idx := queue[head]

		if !visited[idx] {
			visited[idx] = true

			next := regionQuery(vectors, idx, eps)
			if len(next) >= minSamples {
				queue = append(queue, next...)
			}
		}

		if labels[idx] == noiseLabel {
			labels[idx] = label
		}
	}
}

// regionQuery returns the indexes within eps cosine distance of point i,
// excluding i itself.
func regionQuery(vectors [][]float32, i int, eps float64) []int {
	var neighbors []int

	for j := range vectors {
		if j == i {
			continue
		}

		distance := 1 - float64(dedup.CosineSimilarity(vectors[i], vectors[j]))
		if distance <= eps {
			neighbors = append(neighbors, j)
		}
	}

	return neighbors
}

// pruneSmallClusters relabels clusters below the minimum size as noise.
func pruneSmallClusters(labels []int, labelCount, minClusterSize int) {
	sizes := make([]int, labelCount)

	for _, label := range labels {
		if label != noiseLabel {
			sizes[label]++
		}
	}

	for i, label := range labels {
		if label != noiseLabel && sizes[label] < minClusterSize {
			labels[i] = noiseLabel
		}
	}
}
