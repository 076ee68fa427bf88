package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const (
	metadataFile  = "metadata.json"
	audioExt      = ".mp3"
	maxStoredText = 100
	evictFraction = 0.2
)

// Entry describes one cached clip. It is persisted in metadata.json.
type Entry struct {
	Text         string    `json:"text"`
	Language     string    `json:"language"`
	Voice        string    `json:"voice"`
	Timestamp    time.Time `json:"timestamp"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
	SizeBytes    int64     `json:"size_bytes"`
}

type Stats struct {
	TotalItems         int     `json:"total_items"`
	TotalSizeMB        float64 `json:"total_size_mb"`
	TotalAccesses      int     `json:"total_accesses"`
	AvgAccessesPerItem float64 `json:"avg_accesses_per_item"`
}

type CacheConfig struct {
	Dir      string
	MaxBytes int64
	TTL      time.Duration
}

// FileCache keeps synthesized audio on disk. Entries older than the TTL are
// treated as absent; when the total size passes MaxBytes the least used 20%
// are evicted.
type FileCache struct {
	dir      string
	maxBytes int64
	ttl      time.Duration
	now      func() time.Time

	mu   sync.Mutex
	meta map[string]*Entry
}

type CacheOption func(*FileCache)

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *FileCache) {
		if now != nil {
			c.now = now
		}
	}
}

// OpenCache creates the directory if needed and loads existing metadata. A
// corrupt metadata file starts an empty cache.
func OpenCache(cfg CacheConfig, opts ...CacheOption) (*FileCache, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("tts cache dir is required")
	}
	if cfg.MaxBytes <= 0 {
		return nil, errors.New("tts cache max size must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tts cache dir: %w", err)
	}

	c := &FileCache{
		dir:      dir,
		maxBytes: cfg.MaxBytes,
		ttl:      cfg.TTL,
		now:      time.Now,
		meta:     map[string]*Entry{},
	}
	for _, opt := range opts {
		opt(c)
	}

	raw, err := os.ReadFile(filepath.Join(dir, metadataFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read tts cache metadata: %w", err)
	default:
		if err := json.Unmarshal(raw, &c.meta); err != nil || c.meta == nil {
			log.Warn().Err(err).Str("dir", dir).Msg("speech: discarding unreadable cache metadata")
			c.meta = map[string]*Entry{}
		}
	}
	return c, nil
}

// Key hashes the normalized text with language and voice.
func Key(text, language, voice string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized + ":" + language + ":" + voice))
	return hex.EncodeToString(sum[:])
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+audioExt)
}

// Get returns the clip and bumps its access count.
func (c *FileCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.meta[key]
	if !ok {
		return nil, false
	}
	if c.expired(e) {
		c.removeLocked(key)
		_ = c.saveLocked()
		return nil, false
	}

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("speech: cached clip unreadable")
		delete(c.meta, key)
		_ = c.saveLocked()
		return nil, false
	}

	e.AccessCount++
	e.LastAccessed = c.now()
	if err := c.saveLocked(); err != nil {
		log.Warn().Err(err).Msg("speech: save cache metadata")
	}
	return data, true
}

// Set writes the clip and its metadata, then evicts if the cache is too big.
func (c *FileCache) Set(key, text, language, voice string, audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.WriteFile(c.path(key), audio, 0o644); err != nil {
		return fmt.Errorf("write cached clip: %w", err)
	}

	now := c.now()
	c.meta[key] = &Entry{
		Text:         truncateRunes(text, maxStoredText),
		Language:     language,
		Voice:        voice,
		Timestamp:    now,
		LastAccessed: now,
		AccessCount:  1,
		SizeBytes:    int64(len(audio)),
	}

	c.evictLocked()
	return c.saveLocked()
}

func (c *FileCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var st Stats
	var size int64
	for _, e := range c.meta {
		st.TotalItems++
		st.TotalAccesses += e.AccessCount
		size += e.SizeBytes
	}
	st.TotalSizeMB = round2(float64(size) / (1024 * 1024))
	if st.TotalItems > 0 {
		st.AvgAccessesPerItem = round2(float64(st.TotalAccesses) / float64(st.TotalItems))
	}
	return st
}

// Watch drops entries whose clip was deleted from the directory by someone
// else. It blocks until ctx is done.
func (c *FileCache) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create tts cache watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(c.dir); err != nil {
		return fmt.Errorf("watch tts cache dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != audioExt {
				continue
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			c.forget(strings.TrimSuffix(filepath.Base(event.Name), audioExt))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Ctx(ctx).Warn().Err(err).Msg("speech: cache watcher error")
		}
	}
}

func (c *FileCache) forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.meta[key]; !ok {
		return
	}
	if _, err := os.Stat(c.path(key)); err == nil {
		return
	}
	delete(c.meta, key)
	if err := c.saveLocked(); err != nil {
		log.Warn().Err(err).Msg("speech: save cache metadata")
	}
}

func (c *FileCache) expired(e *Entry) bool {
	return c.ttl > 0 && c.now().After(e.Timestamp.Add(c.ttl))
}

// evictLocked removes floor(n*0.2) entries, at least one, ordered by access
// count then last access.
func (c *FileCache) evictLocked() {
	var total int64
	for _, e := range c.meta {
		total += e.SizeBytes
	}
	if total <= c.maxBytes {
		return
	}

	keys := make([]string, 0, len(c.meta))
	for k := range c.meta {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := c.meta[keys[i]], c.meta[keys[j]]
		if a.AccessCount != b.AccessCount {
			return a.AccessCount < b.AccessCount
		}
		if !a.LastAccessed.Equal(b.LastAccessed) {
			return a.LastAccessed.Before(b.LastAccessed)
		}
		return keys[i] < keys[j]
	})

	n := int(math.Floor(float64(len(keys)) * evictFraction))
	if n < 1 {
		n = 1
	}
	for _, k := range keys[:n] {
		c.removeLocked(k)
	}
	log.Info().Int("removed", n).Int64("total_bytes", total).Msg("speech: cache cleanup")
}

func (c *FileCache) removeLocked(key string) {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("key", key).Msg("speech: remove cached clip")
	}
	delete(c.meta, key)
}

func (c *FileCache) saveLocked() error {
	raw, err := json.MarshalIndent(c.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}
	tmp := filepath.Join(c.dir, metadataFile+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write cache metadata: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(c.dir, metadataFile)); err != nil {
		return fmt.Errorf("replace cache metadata: %w", err)
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
