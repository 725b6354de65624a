package lexicon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/eurodeo/esoh/internal/datastore"
)

// DefaultParameterNamesTTL bounds how stale the live name set may get.
const DefaultParameterNamesTTL = 5 * time.Minute

const parameterNamesKey = "parameter_name"

// AttrGroupsFetcher is the part of the datastore client the name set needs.
type AttrGroupsFetcher interface {
	GetTSAttrGroups(ctx context.Context, req *datastore.GetTSAGRequest) (*datastore.GetTSAGResponse, error)
}

// ParameterNames is the set of parameter names currently present in the
// store, fetched lazily and refreshed after the TTL expires.
type ParameterNames struct {
	store AttrGroupsFetcher
	cache *expirable.LRU[string, []string]

	// serialises refreshes so a cold cache triggers one fetch
	mu sync.Mutex
}

// NewParameterNames creates the live name set. A zero ttl uses the default.
func NewParameterNames(store AttrGroupsFetcher, ttl time.Duration) *ParameterNames {
	if ttl <= 0 {
		ttl = DefaultParameterNamesTTL
	}
	return &ParameterNames{
		store: store,
		cache: expirable.NewLRU[string, []string](1, nil, ttl),
	}
}

// List returns the sorted set of live parameter names.
func (p *ParameterNames) List(ctx context.Context) ([]string, error) {
	if names, ok := p.cache.Get(parameterNamesKey); ok {
		return names, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if names, ok := p.cache.Get(parameterNamesKey); ok {
		return names, nil
	}

	return p.fetch(ctx)
}

// Refresh refetches the set and replaces the cached copy. On error the
// cached copy is kept until it expires.
func (p *ParameterNames) Refresh(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetch(ctx)
}

func (p *ParameterNames) fetch(ctx context.Context) ([]string, error) {
	resp, err := p.store.GetTSAttrGroups(ctx, &datastore.GetTSAGRequest{Attrs: []string{parameterNamesKey}})
	if err != nil {
		return nil, fmt.Errorf("fetch parameter names: %w", err)
	}

	seen := make(map[string]struct{}, len(resp.Groups))
	names := make([]string, 0, len(resp.Groups))
	for _, g := range resp.Groups {
		if g.Combo == nil || g.Combo.ParameterName == "" {
			continue
		}
		if _, dup := seen[g.Combo.ParameterName]; dup {
			continue
		}
		seen[g.Combo.ParameterName] = struct{}{}
		names = append(names, g.Combo.ParameterName)
	}
	sort.Strings(names)

	p.cache.Add(parameterNamesKey, names)
	return names, nil
}

// Invalidate drops the cached set so the next List refetches.
func (p *ParameterNames) Invalidate() {
	p.cache.Remove(parameterNamesKey)
}
