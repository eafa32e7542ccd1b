package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/geo/geocode"
	"github.com/maptrack/maptrack/internal/schedule"
	"github.com/maptrack/maptrack/internal/service"
	"github.com/maptrack/maptrack/internal/store"
	"github.com/maptrack/maptrack/internal/tracking"
)

type staticEngine struct{}

func (staticEngine) LookupContainer(context.Context, string) (tracking.ContainerStatus, error) {
	return tracking.ContainerStatus{
		Number: "TKRU4471976", Location: "Moscow", Action: "Arrived", Country: "Russia", Timestamp: "2024-01-01 10:00",
	}, nil
}

func (staticEngine) LookupContract(context.Context, string) (*tracking.ContractPayload, error) {
	p := &tracking.ContractPayload{Success: true}
	p.Data.Found = false
	return p, nil
}

type staticProvider struct{}

func (staticProvider) Search(context.Context, string) (tracking.Coords, bool, error) {
	return tracking.Coords{Lat: 55.75, Lon: 37.62}, true, nil
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func newTestServer(t *testing.T) (*Server, *schedule.Registry) {
	t.Helper()
	dir := t.TempDir()

	stores, err := service.OpenStores(dir)
	require.NoError(t, err)

	cache, err := store.NewFile[geocode.Entry](filepath.Join(dir, "geocache.json"))
	require.NoError(t, err)
	resolver := geocode.NewResolver(cache, staticProvider{}, realClock{}, 0, zap.NewNop())

	tracker := service.NewTracker(staticEngine{}, resolver, stores, zap.NewNop())

	subs, err := store.NewFile[tracking.Subscription](filepath.Join(dir, "schedule.json"))
	require.NoError(t, err)
	registry := schedule.NewRegistry(subs, noopScheduler{}, func(int64, tracking.Target) {}, zap.NewNop())

	return NewServer(tracker, registry, resolver, zap.NewNop()), registry
}

type noopScheduler struct{}

func (noopScheduler) Add(string, int, string, func()) error { return nil }
func (noopScheduler) RemovePrefix(string) int               { return 0 }
func (noopScheduler) Names() []string                       { return nil }

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok"`)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "tracker_")
}

func TestServer_GetSchedule(t *testing.T) {
	t.Parallel()

	srv, registry := newTestServer(t)
	require.NoError(t, registry.SetDaysAndTimes(42, []int{1, 3}, []string{"09:00"}))
	require.NoError(t, registry.AddTarget(42, tracking.Target{Kind: tracking.KindContainer, ID: "TKRU4471976"}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/subscribers/42/schedule", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"timers":2`)
	require.Contains(t, rec.Body.String(), "TKRU4471976")
}

func TestServer_GetScheduleRejectsBadSubscriber(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/subscribers/abc/schedule", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RunCheck(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"kind":"container","id":"TKRU4471976"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/subscribers/42/checks", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Moscow")
}

func TestServer_RunCheckRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"kind":"boat","id":"X"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/subscribers/42/checks", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GeocacheStats(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/geocache/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total"`)
}
