package hearth

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Desarso/hearth/memory"
)

// Memory is the slice of the memory system the core needs.
type Memory interface {
	Add(ctx context.Context, text string, meta memory.Metadata) (string, error)
	Query(ctx context.Context, text string, k int) ([]string, error)
}

// noFactsPlaceholder keeps the context string non-empty when retrieval
// finds nothing.
const noFactsPlaceholder = "No specific request-related facts found."

// SearchFunc runs a web search and returns formatted results.
type SearchFunc func(ctx context.Context, query string) (string, error)

// ContextBuilder assembles the grounding context injected into the system
// prompt: retrieved facts first, then an optional labeled search block.
type ContextBuilder struct {
	memory Memory
	search SearchFunc
	topK   int
}

func NewContextBuilder(mem Memory, search SearchFunc, topK int) *ContextBuilder {
	if topK <= 0 {
		topK = memory.DefaultTopK
	}
	return &ContextBuilder{memory: mem, search: search, topK: topK}
}

// Build returns the context string for one request. Memory failures and
// search failures degrade the context instead of aborting the turn, so the
// returned string is never empty.
func (b *ContextBuilder) Build(ctx context.Context, prompt string, route Route) string {
	var facts []string
	if b.memory != nil {
		var err error
		facts, err = b.memory.Query(ctx, prompt, b.topK)
		if err != nil {
			log.Printf("Memory query failed: %v", err)
			facts = nil
		}
	}

	out := noFactsPlaceholder
	if len(facts) > 0 {
		out = strings.Join(facts, "\n")
	}

	if route.Web && b.search != nil {
		results, err := b.search(ctx, route.Query)
		if err != nil {
			out += fmt.Sprintf("\n\nSearch failed: %v", err)
		} else {
			out += fmt.Sprintf("\n\nSearch Results for '%s':\n%s", route.Query, results)
		}
	}

	return out
}
