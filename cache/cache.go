package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vidscribe/models"
)

// Record is one durable cache entry.
type Record struct {
	VideoID   string                     `json:"videoId"`
	Timestamp time.Time                  `json:"timestamp"`
	Result    models.TranscriptionResult `json:"result"`
}

// Store is the durable tier behind the in-memory map. Implementations keep
// one record per video identifier.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, videoID string) (Record, bool, error)
	Delete(ctx context.Context, videoID string) error
	All(ctx context.Context) ([]Record, error)
	Close() error
}

// Cache is the two-tier transcription cache: an in-memory map in front of
// an injected durable store. Expiry is evaluated at read time against the
// write timestamp; expired entries are purged from both tiers and treated
// as absent, never returned stale.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Record

	store  Store // nil means memory-only
	ttl    time.Duration
	logger zerolog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

func New(store Store, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		entries: make(map[string]Record),
		store:   store,
		ttl:     ttl,
		logger:  logger.With().Str("component", "cache").Logger(),
		now:     time.Now,
	}
}

// Get returns the cached result for a video id, consulting memory first and
// the durable store second. A durable hit is promoted into memory.
func (c *Cache) Get(ctx context.Context, videoID string) (models.TranscriptionResult, bool) {
	c.mu.RLock()
	rec, ok := c.entries[videoID]
	c.mu.RUnlock()

	if ok {
		if c.expired(rec) {
			c.purge(ctx, videoID)
			return models.TranscriptionResult{}, false
		}
		return rec.Result, true
	}

	if c.store == nil {
		return models.TranscriptionResult{}, false
	}

	rec, found, err := c.store.Load(ctx, videoID)
	if err != nil {
		c.logger.Warn().Err(err).Str("video_id", videoID).Msg("Durable cache read failed, treating as miss")
		return models.TranscriptionResult{}, false
	}
	if !found {
		return models.TranscriptionResult{}, false
	}
	if c.expired(rec) {
		c.purge(ctx, videoID)
		return models.TranscriptionResult{}, false
	}

	c.mu.Lock()
	c.entries[videoID] = rec
	c.mu.Unlock()
	return rec.Result, true
}

// Put writes unconditionally: re-writing a key replaces the entry and
// resets its timestamp. Durable-store failures degrade to memory-only
// operation and never fail the request.
func (c *Cache) Put(ctx context.Context, videoID string, result models.TranscriptionResult) {
	rec := Record{
		VideoID:   videoID,
		Timestamp: c.now(),
		Result:    result,
	}

	c.mu.Lock()
	c.entries[videoID] = rec
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, rec); err != nil {
		c.logger.Warn().Err(err).Str("video_id", videoID).Msg("Durable cache write failed, entry held in memory only")
	}
}

// Rehydrate scans the durable store once at process start, purging expired
// records and loading valid ones into memory.
func (c *Cache) Rehydrate(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	records, err := c.store.All(ctx)
	if err != nil {
		return err
	}

	loaded, purged := 0, 0
	for _, rec := range records {
		if c.expired(rec) {
			if err := c.store.Delete(ctx, rec.VideoID); err != nil {
				c.logger.Warn().Err(err).Str("video_id", rec.VideoID).Msg("Failed to purge expired cache record")
			}
			purged++
			continue
		}
		c.mu.Lock()
		c.entries[rec.VideoID] = rec
		c.mu.Unlock()
		loaded++
	}

	c.logger.Info().Int("loaded", loaded).Int("purged", purged).Msg("Cache rehydrated from durable store")
	return nil
}

func (c *Cache) expired(rec Record) bool {
	return c.now().Sub(rec.Timestamp) > c.ttl
}

func (c *Cache) purge(ctx context.Context, videoID string) {
	c.mu.Lock()
	delete(c.entries, videoID)
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, videoID); err != nil {
		c.logger.Warn().Err(err).Str("video_id", videoID).Msg("Failed to delete expired durable record")
	}
}
