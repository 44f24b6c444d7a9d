package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/subgate/subgate/internal/retry"
)

// ErrNoCachedConfig is returned by LastKnownGood before any successful fetch.
var ErrNoCachedConfig = errors.New("config: no cached settings available")

// RemoteSettings are operator-tunable values fetched from a remote endpoint.
// They overlay the static Config; a fetch failure falls back to the last
// successfully fetched copy.
type RemoteSettings struct {
	MaintenanceMode bool   `json:"maintenance_mode"`
	DefaultPlanName string `json:"default_plan_name"`
	LicenseTTLHours int    `json:"license_ttl_hours"`
	SweepBatchLimit int    `json:"sweep_batch_limit"`
	FetchedAt       time.Time
}

// Source fetches remote settings and remembers the last good copy.
type Source interface {
	Fetch(ctx context.Context) (*RemoteSettings, error)
	LastKnownGood() (*RemoteSettings, error)
}

// HTTPSource fetches settings from a JSON endpoint with a TTL cache.
type HTTPSource struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu       sync.RWMutex
	cached   *RemoteSettings
	cachedAt time.Time
}

// NewHTTPSource creates a source that fetches from url, serving the cached
// copy for ttl between fetches.
func NewHTTPSource(url string, ttl time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch returns current settings, hitting the remote endpoint only when the
// cache is older than the TTL. A failed fetch returns the cached copy when
// one exists; callers that need strict freshness should check FetchedAt.
func (s *HTTPSource) Fetch(ctx context.Context) (*RemoteSettings, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.cachedAt) < s.ttl {
		cached := s.cached
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	var settings RemoteSettings
	err := retry.Do(ctx, 3, 200*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("config fetch: status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &settings); err != nil {
			return retry.Permanent(fmt.Errorf("config fetch: decode: %w", err))
		}
		return nil
	})
	if err != nil {
		// Fall back to last known good.
		if cached, cerr := s.LastKnownGood(); cerr == nil {
			return cached, nil
		}
		return nil, err
	}

	settings.FetchedAt = time.Now().UTC()

	s.mu.Lock()
	s.cached = &settings
	s.cachedAt = settings.FetchedAt
	s.mu.Unlock()

	return &settings, nil
}

// LastKnownGood returns the most recently fetched settings regardless of age.
func (s *HTTPSource) LastKnownGood() (*RemoteSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil {
		return nil, ErrNoCachedConfig
	}
	return s.cached, nil
}

// StaticSource returns fixed settings; used when no remote endpoint is
// configured and in tests.
type StaticSource struct {
	Settings RemoteSettings
}

func (s *StaticSource) Fetch(ctx context.Context) (*RemoteSettings, error) {
	out := s.Settings
	return &out, nil
}

func (s *StaticSource) LastKnownGood() (*RemoteSettings, error) {
	out := s.Settings
	return &out, nil
}

var (
	_ Source = (*HTTPSource)(nil)
	_ Source = (*StaticSource)(nil)
)
