// Package dedup removes exact duplicate items by content identity and
// provides the cosine similarity primitive shared by clustering and the
// story arc registry.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"math"

	"github.com/rs/zerolog"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
)

// Log key constants for deduplication.
const (
	logKeyOriginal = "original"
	logKeyUnique   = "unique"
	logKeyRemoved  = "removed"
	logKeyMissing  = "missing_identity"
)

// Result contains the deduplicated items with drop counts for observability.
type Result struct {
	// Items are the surviving items, in first-occurrence input order.
	Items []domain.RawItem

	// DuplicatesRemoved is the number of items dropped as exact duplicates.
	DuplicatesRemoved int

	// MissingIdentity is the number of items dropped for lacking a usable
	// identity key.
	MissingIdentity int
}

// Deduplicate removes items sharing an identity hash, keeping the first
// occurrence by input order. Items without a usable identity key are
// silently excluded and counted. Surviving items carry their identity hash
// for downstream audit.
func Deduplicate(items []domain.RawItem, logger *zerolog.Logger) Result {
	seen := make(map[string]struct{}, len(items))
	result := Result{Items: make([]domain.RawItem, 0, len(items))}

	for _, item := range items {
		if item.URL == "" {
			result.MissingIdentity++
			continue
		}

		hash := IdentityHash(item.URL)
		if _, ok := seen[hash]; ok {
			result.DuplicatesRemoved++
			continue
		}

		seen[hash] = struct{}{}
		item.IdentityHash = hash
		result.Items = append(result.Items, item)
	}

	if logger != nil {
		logger.Info().
			Int(logKeyOriginal, len(items)).
			Int(logKeyUnique, len(result.Items)).
			Int(logKeyRemoved, result.DuplicatesRemoved).
			Int(logKeyMissing, result.MissingIdentity).
			Msg("deduplication complete")
	}

	return result
}

// IdentityHash returns the hex-encoded SHA-256 of the item's identity key.
func IdentityHash(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Mismatched or empty vectors yield 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
