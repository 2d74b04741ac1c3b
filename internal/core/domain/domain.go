// Package domain defines the core entities flowing through the signal
// processing pipeline: raw items, topic clusters, story arcs, and the
// divergence verdicts attached to clusters.
package domain

import "time"

// Source identifies the broad origin class of a raw item.
type Source string

// Source constants.
const (
	SourceMainstream Source = "mainstream"
	SourceGrassroots Source = "grassroots"
)

// RawItem is a single ingested unit: a news article or a social post.
// Items are immutable once collected.
type RawItem struct {
	// URL is the unique identity of the item (a URL for articles,
	// an AT/activity URI for social posts).
	URL string

	// Themes is the ordered list of extracted theme/keyword tokens used
	// as the topic representation of the item.
	Themes []string

	// Source classifies the item as mainstream press or grassroots social.
	Source Source

	// Text is the free-text body, used for grassroots mention counting.
	Text string

	// PublishedAt is the item's publication timestamp, zero when unknown.
	PublishedAt time.Time

	// IdentityHash is filled by the deduplicator for downstream audit.
	IdentityHash string
}

// Cluster is a group of semantically similar items produced by one
// pipeline cycle. Clusters are never persisted directly; only the centroid
// and topics survive, inside a StoryArc.
type Cluster struct {
	ID       int
	Members  []RawItem
	Topics   []string
	Centroid []float32
	Size     int

	ViralityScore  float64
	ScoreBreakdown ScoreBreakdown

	StoryArc   *ArcMatch
	Divergence *DivergenceVerdict
}

// ScoreBreakdown holds the seven virality sub-scores, each in [0,1].
type ScoreBreakdown struct {
	Emotional      float64 `json:"emotional"`
	Velocity       float64 `json:"velocity"`
	Crisis         float64 `json:"crisis"`
	Freshness      float64 `json:"freshness"`
	Practical      float64 `json:"practical"`
	TrendAlignment float64 `json:"trend_alignment"`
	Credibility    float64 `json:"credibility"`
}

// Phase classifies the lifecycle stage of a story arc.
type Phase string

// Phase constants. FADING is not terminal: an arc that re-accelerates
// returns to DEVELOPING.
const (
	PhaseEmerging   Phase = "EMERGING"
	PhaseDeveloping Phase = "DEVELOPING"
	PhasePeak       Phase = "PEAK"
	PhaseFading     Phase = "FADING"
)

// StoryArc is the only entity with cross-cycle lifetime: a persisted,
// evolving fingerprint representing one ongoing real-world narrative.
type StoryArc struct {
	ArcID          string    `json:"arc_id"`
	Fingerprint    []float32 `json:"fingerprint"`
	CanonicalTitle string    `json:"canonical_title"`
	CoreEntities   []string  `json:"core_entities"`
	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`

	// Appearances lists the cycle ids that matched this arc, without
	// duplicates, in match order.
	Appearances []string `json:"appearances"`

	Phase Phase `json:"phase"`

	// PeakVelocity is the historical maximum virality score; it never
	// decreases.
	PeakVelocity float64 `json:"peak_velocity"`

	// VelocityHistory is append-only, one entry per matching cycle.
	VelocityHistory []float64 `json:"velocity_history"`
}

// ArcMatch is the summary of a registry match attached to a cluster.
type ArcMatch struct {
	ArcID       string  `json:"arc_id"`
	Title       string  `json:"title"`
	Phase       Phase   `json:"phase"`
	IsNew       bool    `json:"is_new"`
	Similarity  float64 `json:"similarity"`
	Appearances int     `json:"appearances"`
}

// DivergenceType labels the mainstream-vs-grassroots coverage verdict.
type DivergenceType string

// Divergence type constants.
const (
	SeverelyUnderreported DivergenceType = "SEVERELY_UNDERREPORTED"
	Underreported         DivergenceType = "UNDERREPORTED"
	NormalCoverage        DivergenceType = "NORMAL"
	Overreported          DivergenceType = "OVERREPORTED"
)

// DivergenceVerdict records the narrative divergence measurement for a
// cluster and the multiplicative adjustment applied to its virality score.
type DivergenceVerdict struct {
	NdScore          float64        `json:"nd_score"`
	Type             DivergenceType `json:"type"`
	MainstreamVolume int            `json:"mainstream_volume"`
	GrassrootsVolume int            `json:"grassroots_volume"`
	Adjustment       float64        `json:"adjustment"`
}
