package directory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/database"
	"github.com/pietro2356/gr-selcall/pkg/logger"
)

const (
	// DefaultRefresh is how often to re-fetch the directory when the
	// configuration does not say otherwise
	DefaultRefresh = 24 * time.Hour
	// BatchSize for database upserts
	BatchSize = 500

	// retry pacing after a failed fetch, jittered so a fleet of daemons
	// does not hammer a recovering server in lockstep
	retryBase   = 5 * time.Minute
	retryJitter = time.Minute
)

// Syncer keeps a code→label directory fresh: it periodically fetches a JSON
// list of entries from a configured URL, persists them, and serves lookups
// from an in-memory cache so the decode path never waits on the database.
type Syncer struct {
	repo     *database.DirectoryRepository
	logger   *logger.Logger
	client   *http.Client
	url      string
	interval time.Duration

	mu     sync.RWMutex
	labels map[string]string
}

// NewSyncer creates a new directory syncer. A refresh of zero or less
// falls back to DefaultRefresh.
func NewSyncer(url string, refresh time.Duration, repo *database.DirectoryRepository, log *logger.Logger) *Syncer {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return &Syncer{
		repo:     repo,
		logger:   log,
		url:      url,
		interval: refresh,
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
		labels: make(map[string]string),
	}
}

// Start begins the periodic sync process. It blocks until ctx is
// cancelled. Failed fetches are retried on a short jittered delay
// instead of waiting a whole refresh period.
func (s *Syncer) Start(ctx context.Context) {
	// Seed the cache from the database so labels resolve even when the
	// directory URL is unreachable at startup.
	s.warm()

	s.logger.Info("Starting directory sync",
		logger.String("url", s.url),
		logger.Duration("refresh", s.interval))

	timer := time.NewTimer(s.nextDelay(s.Sync(ctx)))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Directory syncer stopped")
			return
		case <-timer.C:
			timer.Reset(s.nextDelay(s.Sync(ctx)))
		}
	}
}

// nextDelay maps a sync outcome onto the wait before the next attempt.
func (s *Syncer) nextDelay(err error) time.Duration {
	if err == nil {
		return s.interval
	}
	delay := retryBase + time.Duration(rand.Int63n(int64(retryJitter)))
	if delay > s.interval {
		delay = s.interval
	}
	s.logger.Error("Failed to sync directory, will retry",
		logger.Duration("retry_in", delay),
		logger.Error(err))
	return delay
}

// Sync downloads the directory, stores it and refreshes the lookup cache
func (s *Syncer) Sync(ctx context.Context) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download directory: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("Failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	entries, err := s.parseEntries(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse directory: %w", err)
	}

	if err := s.repo.UpsertBatch(entries, BatchSize); err != nil {
		return fmt.Errorf("failed to save directory: %w", err)
	}

	s.swap(entries)

	count, _ := s.repo.Count()
	s.logger.Info("Directory sync complete",
		logger.Int("fetched", len(entries)),
		logger.Int64("total", count),
		logger.Duration("duration", time.Since(start)))

	return nil
}

// LabelFor returns the label for a call code, or an empty string when the
// code is unknown. Lookups hit only the in-memory cache.
func (s *Syncer) LabelFor(code string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labels[code]
}

// Count returns the number of cached directory entries
func (s *Syncer) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.labels)
}

// parseEntries decodes the directory JSON format: a flat array of
// {"code": "12345", "label": "Rescue 1"} objects. Entries without a code
// are skipped.
func (s *Syncer) parseEntries(r io.Reader) ([]database.DirectoryEntry, error) {
	var raw []struct {
		Code  string `json:"code"`
		Label string `json:"label"`
	}
	if err := json.NewDecoder(bufio.NewReader(r)).Decode(&raw); err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]database.DirectoryEntry, 0, len(raw))
	for _, e := range raw {
		if e.Code == "" {
			continue
		}
		entries = append(entries, database.DirectoryEntry{
			Code:      e.Code,
			Label:     e.Label,
			UpdatedAt: now,
		})
	}
	return entries, nil
}

// warm loads the persisted directory into the lookup cache
func (s *Syncer) warm() {
	entries, err := s.repo.GetAll()
	if err != nil {
		s.logger.Warn("Failed to load directory from database", logger.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}
	s.swap(entries)
	s.logger.Info("Loaded directory from database", logger.Int("entries", len(entries)))
}

func (s *Syncer) swap(entries []database.DirectoryEntry) {
	labels := make(map[string]string, len(entries))
	for _, e := range entries {
		labels[e.Code] = e.Label
	}
	s.mu.Lock()
	s.labels = labels
	s.mu.Unlock()
}
