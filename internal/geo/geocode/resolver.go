// Package geocode resolves free-text place names to coordinates through a
// TTL-bounded persistent cache over a remote geocoding provider.
package geocode

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/metrics"
	"github.com/maptrack/maptrack/internal/store"
	"github.com/maptrack/maptrack/internal/tracking"
)

// DefaultTTL is how long a cached resolution stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// Entry is one persisted cache row.
type Entry struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timestamp int64   `json:"timestamp"`
	Query     string  `json:"query"`
}

// Resolver is a caching geocoder. The whole cache document is read,
// checked, and rewritten under one exclusive section per access.
type Resolver struct {
	mu       sync.Mutex
	cache    *store.File[Entry]
	provider Provider
	clock    tracking.Clock
	ttl      time.Duration
	logger   *zap.Logger
}

// NewResolver builds a Resolver over the given cache document and provider.
func NewResolver(cache *store.File[Entry], provider Provider, clock tracking.Clock, ttl time.Duration, logger *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		cache:    cache,
		provider: provider,
		clock:    clock,
		ttl:      ttl,
		logger:   logger,
	}
}

// Key normalizes a place/country pair into the cache key.
func Key(place, country string) string {
	return strings.ToLower(strings.TrimSpace(place) + "," + strings.TrimSpace(country))
}

// Resolve returns coordinates for the place, hitting the provider only on a
// cache miss or expiry. Provider failures and no-match answers are reported
// as a miss without caching, so a later retry can still succeed.
func (r *Resolver) Resolve(ctx context.Context, place, country string) (tracking.Coords, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key(place, country)
	now := r.clock.Now()

	var (
		coords tracking.Coords
		hit    bool
	)
	err := r.cache.Mutate(func(doc map[string]Entry) error {
		defer metrics.GeocacheSize.Set(float64(len(doc)))

		if entry, ok := doc[key]; ok {
			if now.Unix()-entry.Timestamp < int64(r.ttl.Seconds()) {
				coords = tracking.Coords{Lat: entry.Lat, Lon: entry.Lon}
				hit = true
				metrics.GeocacheHits.Inc()
				return nil
			}
			delete(doc, key)
		}
		metrics.GeocacheMisses.Inc()

		query := fmt.Sprintf("%s,%s", strings.TrimSpace(place), strings.TrimSpace(country))
		found, ok, searchErr := r.provider.Search(ctx, query)
		if searchErr != nil {
			r.logger.Warn("geocode provider failed",
				zap.String("query", query),
				zap.Error(searchErr),
			)
			return nil
		}
		if !ok {
			return nil
		}

		coords = found
		hit = true
		doc[key] = Entry{
			Lat:       found.Lat,
			Lon:       found.Lon,
			Timestamp: now.Unix(),
			Query:     query,
		}
		return nil
	})
	if err != nil {
		return tracking.Coords{}, false, fmt.Errorf("geocode cache access: %w", err)
	}
	return coords, hit, nil
}

// Stats reports total, valid and expired entry counts for the ops API.
func (r *Resolver) Stats() (total, valid, expired int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.cache.Load()
	if err != nil {
		return 0, 0, 0, err
	}
	now := r.clock.Now().Unix()
	for _, entry := range doc {
		if now-entry.Timestamp < int64(r.ttl.Seconds()) {
			valid++
		}
	}
	return len(doc), valid, len(doc) - valid, nil
}
