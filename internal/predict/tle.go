package predict

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/large-farva/passrelay/internal/catalog"
	"github.com/large-farva/passrelay/internal/config"
)

//go:embed fallback_tle.txt
var embeddedTLE string

// Tier names reported by SourceInfo.
const (
	TierCache    = "cache"
	TierNetwork  = "network"
	TierStale    = "stale"
	TierEmbedded = "embedded"
)

// SourceInfo reports where the last fetch of one TLE source came from.
type SourceInfo struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	Tier      string    `json:"tier"`
	Entries   int       `json:"entries"`
	FetchedAt time.Time `json:"fetched_at"`
	CacheAge  string    `json:"cache_age,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// TLEStore fetches and caches Two-Line Element sets for every configured
// source. Each source uses a tiered fallback: fresh disk cache, network
// fetch, stale disk cache. If no source yields anything, elements embedded
// in the binary are used so prediction can still start offline.
type TLEStore struct {
	sources  []config.TLESource
	dataRoot string
	maxAge   time.Duration
	client   *http.Client

	mu   sync.Mutex
	info map[string]SourceInfo
}

// NewTLEStore returns a store caching the given sources under dataRoot.
func NewTLEStore(sources []config.TLESource, dataRoot string, refreshHours int) *TLEStore {
	return &TLEStore{
		sources:  sources,
		dataRoot: dataRoot,
		maxAge:   time.Duration(refreshHours) * time.Hour,
		client:   &http.Client{Timeout: 30 * time.Second},
		info:     make(map[string]SourceInfo),
	}
}

// Fetch returns element entries from every source, preferring fresh cache.
func (s *TLEStore) Fetch(ctx context.Context) ([]catalog.Entry, error) {
	return s.fetch(ctx, false)
}

// ForceRefresh goes to the network for every source regardless of cache
// age, still falling back to stale cache when a download fails.
func (s *TLEStore) ForceRefresh(ctx context.Context) ([]catalog.Entry, error) {
	return s.fetch(ctx, true)
}

// Info returns the per-source status of the most recent fetch.
func (s *TLEStore) Info() []SourceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SourceInfo, 0, len(s.sources))
	for _, src := range s.sources {
		info, ok := s.info[src.Name]
		if !ok {
			info = SourceInfo{Name: src.Name, URL: src.URL, Path: s.cachePath(src)}
		}
		if st, err := os.Stat(info.Path); err == nil {
			info.CacheAge = time.Since(st.ModTime()).Round(time.Second).String()
		}
		out = append(out, info)
	}
	if info, ok := s.info[TierEmbedded]; ok {
		out = append(out, info)
	}
	return out
}

func (s *TLEStore) fetch(ctx context.Context, force bool) ([]catalog.Entry, error) {
	var (
		entries []catalog.Entry
		errs    []error
	)

	s.mu.Lock()
	delete(s.info, TierEmbedded)
	s.mu.Unlock()

	for _, src := range s.sources {
		info := SourceInfo{Name: src.Name, URL: src.URL, Path: s.cachePath(src), FetchedAt: time.Now().UTC()}

		raw, tier, err := s.loadOrFetch(ctx, src, info.Path, force)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			info.LastError = err.Error()
		} else {
			parsed, _ := catalog.ParseTLEText(raw)
			entries = append(entries, parsed...)
			info.Tier = tier
			info.Entries = len(parsed)
		}

		s.mu.Lock()
		s.info[src.Name] = info
		s.mu.Unlock()
	}

	if len(entries) > 0 {
		return entries, nil
	}

	parsed, _ := catalog.ParseTLEText(embeddedTLE)
	if len(parsed) == 0 {
		return nil, fmt.Errorf("all TLE sources exhausted: %w", errors.Join(errs...))
	}

	s.mu.Lock()
	s.info[TierEmbedded] = SourceInfo{Name: TierEmbedded, Tier: TierEmbedded, Entries: len(parsed), FetchedAt: time.Now().UTC()}
	s.mu.Unlock()
	return parsed, nil
}

func (s *TLEStore) cachePath(src config.TLESource) string {
	return filepath.Join(s.dataRoot, "tle", src.Name+".txt")
}

// loadOrFetch walks the fallback chain for one source:
// fresh cache -> network -> stale cache.
func (s *TLEStore) loadOrFetch(ctx context.Context, src config.TLESource, cachePath string, force bool) (string, string, error) {
	if !force {
		info, err := os.Stat(cachePath)
		if err == nil && time.Since(info.ModTime()) < s.maxAge {
			if b, readErr := os.ReadFile(cachePath); readErr == nil && len(b) > 0 {
				return string(b), TierCache, nil
			}
		}
	}

	body, fetchErr := s.fetchFromNetwork(ctx, src.URL)
	if fetchErr == nil {
		// Cache write failure is non-fatal; we already have the data in memory.
		_ = writeCache(cachePath, body)
		return body, TierNetwork, nil
	}

	if b, readErr := os.ReadFile(cachePath); readErr == nil && len(b) > 0 {
		return string(b), TierStale, nil
	}

	return "", "", fetchErr
}

func (s *TLEStore) fetchFromNetwork(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("TLE fetch returned HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writeCache atomically writes data to cachePath via a temp file and rename
// so readers never see a half-written file.
func writeCache(cachePath, data string) error {
	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "tle-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), cachePath)
}
