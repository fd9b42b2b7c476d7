// Package memory is the long-term memory gateway: facts go in once, come
// back out by semantic similarity.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/Desarso/hearth/stores"
	"github.com/google/uuid"
)

const DefaultTopK = 3

// Metadata describes where a fact came from.
type Metadata struct {
	Source string
	UserID string
}

// System provides the add/query interface over the fact store. Writes are
// serialized through a single mutex; the store itself enforces nothing.
type System struct {
	store    stores.Store
	embedder Embedder
	mu       sync.Mutex
}

// NewSystem creates a memory system over the given store and embedder.
func NewSystem(store stores.Store, embedder Embedder) *System {
	return &System{store: store, embedder: embedder}
}

// Add stores a text fact and returns its generated ID.
func (m *System) Add(ctx context.Context, text string, meta Metadata) (string, error) {
	if text == "" {
		return "", fmt.Errorf("refusing to store an empty fact")
	}

	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("failed to embed fact: %w", err)
	}

	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return "", fmt.Errorf("failed to marshal embedding: %w", err)
	}

	fact := stores.Fact{
		FactID:        uuid.New().String(),
		Text:          text,
		Source:        meta.Source,
		UserID:        meta.UserID,
		EmbeddingJSON: string(vectorJSON),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.SaveFact(&fact); err != nil {
		return "", err
	}

	log.Printf("Remembered fact %s: %.40s", fact.FactID, text)
	return fact.FactID, nil
}

// Query returns up to k stored fact texts most similar to the query text,
// most-similar first.
func (m *System) Query(ctx context.Context, text string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	queryVec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	facts, err := m.store.ListFacts()
	if err != nil {
		return nil, err
	}

	type scored struct {
		text  string
		score float64
	}
	var candidates []scored
	for _, fact := range facts {
		var vec []float32
		if err := json.Unmarshal([]byte(fact.EmbeddingJSON), &vec); err != nil {
			log.Printf("Warning: fact %s has an unreadable embedding, skipping: %v", fact.FactID, err)
			continue
		}
		candidates = append(candidates, scored{text: fact.Text, score: cosineSimilarity(queryVec, vec)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	results := make([]string, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.text)
	}
	return results, nil
}

// Seed stores a fact with a system source, intended for startup seeding.
func (m *System) Seed(ctx context.Context, text string) (string, error) {
	return m.Add(ctx, text, Metadata{Source: "system", UserID: "system"})
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score zero rather than erroring.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// compile-time check that the default embedder satisfies the interface
var _ Embedder = (*OllamaEmbedder)(nil)
