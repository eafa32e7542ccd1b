package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/maptrack/maptrack/internal/metrics"
	"github.com/maptrack/maptrack/internal/tracking"
)

// Provider answers free-text place queries with candidate coordinates.
type Provider interface {
	Search(ctx context.Context, query string) (tracking.Coords, bool, error)
}

// NominatimConfig controls the OSM Nominatim client.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// QPS bounds request rate; Nominatim's usage policy asks for at most
	// one request per second.
	QPS float64
}

// Nominatim implements Provider over the OSM Nominatim search endpoint.
type Nominatim struct {
	cfg     NominatimConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewNominatim constructs the provider with policy-compliant defaults.
func NewNominatim(cfg NominatimConfig) *Nominatim {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "maptrack/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QPS <= 0 {
		cfg.QPS = 1
	}
	return &Nominatim{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.QPS), 1),
	}
}

type nominatimRow struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Search queries the provider for the best candidate match.
func (n *Nominatim) Search(ctx context.Context, query string) (tracking.Coords, bool, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return tracking.Coords{}, false, fmt.Errorf("geocode rate wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", n.cfg.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return tracking.Coords{}, false, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", n.cfg.UserAgent)

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		return tracking.Coords{}, false, fmt.Errorf("geocode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.GeocodingDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return tracking.Coords{}, false, fmt.Errorf("geocode status %d", resp.StatusCode)
	}

	var rows []nominatimRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return tracking.Coords{}, false, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(rows) == 0 {
		return tracking.Coords{}, false, nil
	}

	lat, err := strconv.ParseFloat(rows[0].Lat, 64)
	if err != nil {
		return tracking.Coords{}, false, fmt.Errorf("parse lat %q: %w", rows[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(rows[0].Lon, 64)
	if err != nil {
		return tracking.Coords{}, false, fmt.Errorf("parse lon %q: %w", rows[0].Lon, err)
	}
	return tracking.Coords{Lat: lat, Lon: lon}, true, nil
}
