// Package fake provides in-memory implementations of memory.Store and
// ports.Embedder for exercising the Memory Engine without a live
// Postgres/pgvector deployment, mirroring the teacher's
// internal/database/fake pattern.
package fake

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kikokikok/aeterna-sub004/internal/memory"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

// Store is an in-memory memory.Store.
type Store struct {
	mu      sync.Mutex
	entries map[string]*memory.Entry
}

func NewStore() *Store { return &Store{entries: make(map[string]*memory.Entry)} }

func (s *Store) Insert(_ context.Context, e *memory.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.ID]; exists {
		return fmt.Errorf("duplicate id %s", e.ID)
	}
	s.entries[e.ID] = e
	return nil
}

func (s *Store) Get(_ context.Context, tenantPath, id string) (*memory.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.TenantPath != tenantPath {
		return nil, nil
	}
	return e, nil
}

func (s *Store) Update(_ context.Context, e *memory.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	return nil
}

func (s *Store) Delete(_ context.Context, tenantPath, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok && e.TenantPath == tenantPath {
		delete(s.entries, id)
	}
	return nil
}

func (s *Store) List(_ context.Context, tenantPath string, layer memory.Layer, cursor string, limit int) ([]*memory.Entry, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*memory.Entry
	for _, e := range s.entries {
		if e.TenantPath != tenantPath {
			continue
		}
		if layer != "" && e.Layer != layer {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	start := 0
	if cursor != "" {
		for i, e := range matched {
			if e.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	page := matched[start:end]
	next := ""
	if end < len(matched) {
		next = matched[end-1].ID
	}
	return page, next, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (s *Store) SearchLayer(_ context.Context, tenantPath string, layer memory.Layer, queryVec []float32, limit int) ([]*memory.Entry, []float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []*memory.Entry
	var scores []float64
	for _, e := range s.entries {
		if e.TenantPath != tenantPath || e.Layer != layer || e.Status != memory.StatusActive {
			continue
		}
		entries = append(entries, e)
		scores = append(scores, cosineSimilarity(queryVec, e.Embedding))
	}

	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return scores[idx[i]] > scores[idx[j]] })

	if limit > 0 && len(idx) > limit {
		idx = idx[:limit]
	}
	outEntries := make([]*memory.Entry, len(idx))
	outScores := make([]float64, len(idx))
	for i, id := range idx {
		outEntries[i] = entries[id]
		outScores[i] = scores[id]
	}
	return outEntries, outScores, nil
}

// Embedder is a deterministic bag-of-words embedder for tests: it hashes
// each lowercase token into a fixed-width vector so that semantically
// related sentences (sharing tokens) land close under cosine similarity,
// without requiring a real Embedder dependency in unit tests.
type Embedder struct {
	dim int
}

func NewEmbedder(dim int) *Embedder { return &Embedder{dim: dim} }

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(_ context.Context, text string) (ports.Vector, error) {
	vec := make([]float32, e.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv32(tok)
		vec[int(h)%e.dim] += 1
	}
	return vec, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]ports.Vector, error) {
	out := make([]ports.Vector, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
