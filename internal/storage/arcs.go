package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/heymarcell/zeitgeistai/internal/arc"
	"github.com/heymarcell/zeitgeistai/internal/core/domain"
)

// Arcs are stored as a JSONB payload next to the pgvector fingerprint, so
// the schema survives arc shape changes without new migrations.

// Upsert writes an arc, replacing any existing row with the same id.
func (db *DB) Upsert(ctx context.Context, storyArc domain.StoryArc) error {
	payload, err := json.Marshal(storyArc)
	if err != nil {
		return fmt.Errorf("marshal arc payload: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO story_arcs (arc_id, fingerprint, payload, last_seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (arc_id) DO UPDATE
		SET fingerprint = EXCLUDED.fingerprint,
		    payload = EXCLUDED.payload,
		    last_seen_at = EXCLUDED.last_seen_at
	`, storyArc.ArcID, pgvector.NewVector(storyArc.Fingerprint), payload, storyArc.LastSeenAt)
	if err != nil {
		return fmt.Errorf("upsert story arc: %w", err)
	}

	return nil
}

// Search returns up to limit arcs ranked by cosine similarity to the query
// fingerprint. pgvector's <=> operator yields cosine distance, so the
// similarity is its complement.
func (db *DB) Search(ctx context.Context, fingerprint []float32, limit int) ([]arc.ScoredArc, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT payload, 1 - (fingerprint <=> $1) AS similarity
		FROM story_arcs
		ORDER BY fingerprint <=> $1
		LIMIT $2
	`, pgvector.NewVector(fingerprint), limit)
	if err != nil {
		return nil, fmt.Errorf("search story arcs: %w", err)
	}
	defer rows.Close()

	var scored []arc.ScoredArc

	for rows.Next() {
		var (
			payload    []byte
			similarity float64
		)

		if err = rows.Scan(&payload, &similarity); err != nil {
			return nil, fmt.Errorf("scan story arc row: %w", err)
		}

		var storyArc domain.StoryArc
		if err = json.Unmarshal(payload, &storyArc); err != nil {
			return nil, fmt.Errorf("unmarshal arc payload: %w", err)
		}

		scored = append(scored, arc.ScoredArc{Arc: storyArc, Similarity: similarity})
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story arc rows: %w", err)
	}

	return scored, nil
}

// ScrollAll returns every stored arc.
func (db *DB) ScrollAll(ctx context.Context) ([]domain.StoryArc, error) {
	rows, err := db.Pool.Query(ctx, `SELECT payload FROM story_arcs ORDER BY arc_id`)
	if err != nil {
		return nil, fmt.Errorf("scroll story arcs: %w", err)
	}
	defer rows.Close()

	var arcs []domain.StoryArc

	for rows.Next() {
		var payload []byte
		if err = rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan story arc row: %w", err)
		}

		var storyArc domain.StoryArc
		if err = json.Unmarshal(payload, &storyArc); err != nil {
			return nil, fmt.Errorf("unmarshal arc payload: %w", err)
		}

		arcs = append(arcs, storyArc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story arc rows: %w", err)
	}

	return arcs, nil
}

// Delete removes the arcs with the given ids.
func (db *DB) Delete(ctx context.Context, arcIDs []string) error {
	if len(arcIDs) == 0 {
		return nil
	}

	if _, err := db.Pool.Exec(ctx, `DELETE FROM story_arcs WHERE arc_id = ANY($1)`, arcIDs); err != nil {
		return fmt.Errorf("delete story arcs: %w", err)
	}

	return nil
}
