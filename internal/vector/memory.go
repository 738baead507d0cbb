package vector

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

// Memory is the in-process fallback store used when no vector backend is
// configured. Recall is lexical: items are ranked by how many query tokens
// appear in their excerpt and title. Good enough for offline runs and tests;
// not a semantic index.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	items  []types.Evidence // insertion order
	byID   map[string]struct{}
	byHash map[string]struct{}
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) Ensure(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = &memCollection{
			byID:   make(map[string]struct{}),
			byHash: make(map[string]struct{}),
		}
	}
	return nil
}

func (m *Memory) Insert(_ context.Context, collection string, ev types.Evidence) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		c = &memCollection{
			byID:   make(map[string]struct{}),
			byHash: make(map[string]struct{}),
		}
		m.collections[collection] = c
	}
	if _, dup := c.byID[ev.ID]; dup {
		return false, nil
	}
	if _, dup := c.byHash[ev.ContentHash]; dup && ev.ContentHash != "" {
		return false, nil
	}
	c.items = append(c.items, ev)
	c.byID[ev.ID] = struct{}{}
	if ev.ContentHash != "" {
		c.byHash[ev.ContentHash] = struct{}{}
	}
	return true, nil
}

func (m *Memory) Similar(_ context.Context, collection, text string, k int) ([]types.Evidence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok || k <= 0 {
		return nil, nil
	}

	tokens := queryTokens(text)
	type scored struct {
		ev    types.Evidence
		score int
		pos   int
	}
	ranked := make([]scored, 0, len(c.items))
	for i, ev := range c.items {
		hay := strings.ToLower(ev.Excerpt + " " + ev.Source.Title)
		s := 0
		for _, tok := range tokens {
			if strings.Contains(hay, tok) {
				s++
			}
		}
		ranked = append(ranked, scored{ev: ev, score: s, pos: i})
	}
	// Stable order: best lexical match first, insertion order breaks ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].pos < ranked[j].pos
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]types.Evidence, 0, k)
	for _, r := range ranked[:k] {
		out = append(out, r.ev)
	}
	return out, nil
}

func (m *Memory) Drop(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

// Count reports how many items a collection holds.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[collection]; ok {
		return len(c.items)
	}
	return 0
}

func queryTokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 { // skip articles and glue words
			out = append(out, f)
		}
	}
	return out
}
