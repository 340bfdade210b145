// Package simindex maintains an in-process vector index over long-term
// memory summaries, used for query relevance when an embedding provider
// is configured. chromem-go is a pure Go embedded vector database; the
// index is rebuilt from the store on startup and kept in sync on writes.
package simindex

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/quillon/agent-memory/internal/embedding"
)

// Index wraps a chromem DB with one collection per user.
type Index struct {
	db          *chromem.DB
	embedder    embedding.Embedder
	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// Match is one similarity hit.
type Match struct {
	ID         string
	Similarity float64
}

// New creates an index backed by the given embedder.
func New(embedder embedding.Embedder) *Index {
	return &Index{
		db:          chromem.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
	}
}

func (ix *Index) collection(userID string) (*chromem.Collection, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if col, ok := ix.collections[userID]; ok {
		return col, nil
	}

	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		return ix.embedder.Embed(ctx, text)
	}
	col, err := ix.db.GetOrCreateCollection("user_"+userID, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	ix.collections[userID] = col
	return col, nil
}

// Add indexes (or reindexes) one memory's summary text.
func (ix *Index) Add(ctx context.Context, userID, memoryID, text string) error {
	col, err := ix.collection(userID)
	if err != nil {
		return err
	}
	return col.AddDocument(ctx, chromem.Document{ID: memoryID, Content: text})
}

// Query returns the ids of the most similar indexed memories.
func (ix *Index) Query(ctx context.Context, userID, query string, limit int) ([]Match, error) {
	col, err := ix.collection(userID)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]Match, 0, len(results))
	for _, r := range results {
		out = append(out, Match{ID: r.ID, Similarity: float64(r.Similarity)})
	}
	return out, nil
}
