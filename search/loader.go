package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const fatwaChunksSchema = `
CREATE TABLE IF NOT EXISTS fatwa_chunks (
	id         SERIAL PRIMARY KEY,
	chunk_text TEXT NOT NULL,
	embedding  JSONB NOT NULL,
	filename   TEXT,
	source     TEXT,
	chunk_id   TEXT
)`

// LoadFromPostgres reads every fatwa chunk into an in-memory
// collection. Rows without an embedding or text are skipped.
func LoadFromPostgres(ctx context.Context, pool *pgxpool.Pool) (*Collection, error) {
	if _, err := pool.Exec(ctx, fatwaChunksSchema); err != nil {
		return nil, fmt.Errorf("create fatwa_chunks table: %w", err)
	}

	rows, err := pool.Query(ctx, `
		SELECT chunk_text, embedding, COALESCE(filename, ''), COALESCE(source, ''), COALESCE(chunk_id, '')
		FROM fatwa_chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query fatwa chunks: %w", err)
	}
	defer rows.Close()

	collection := NewCollection()
	for rows.Next() {
		var text, filename, source, chunkID string
		var embeddingJSON []byte
		if err := rows.Scan(&text, &embeddingJSON, &filename, &source, &chunkID); err != nil {
			return nil, fmt.Errorf("scan fatwa chunk: %w", err)
		}

		var vector []float64
		if err := json.Unmarshal(embeddingJSON, &vector); err != nil || len(vector) == 0 || text == "" {
			continue
		}

		collection.Add(Chunk{
			Text:   text,
			Vector: vector,
			Metadata: map[string]string{
				"filename": filename,
				"source":   source,
				"chunk_id": chunkID,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fatwa chunks: %w", err)
	}
	return collection, nil
}
