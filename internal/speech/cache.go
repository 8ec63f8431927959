package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// DefaultCacheEntries bounds the in-memory layer. Coaching cues are short
// and heavily repeated, so a few hundred entries cover every routine.
const DefaultCacheEntries = 256

// AudioCache keeps synthesized cues in memory and, optionally, on disk.
// Keys are sha256(voice key + ":" + text), so changing the voice, rate or
// pitch naturally misses. The disk layer is always read when a directory
// is set and only written when persist is true.
type AudioCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	order   []string // insertion order for eviction
	max     int
	voice   string
	dir     string
	persist bool
	hits    int64
	misses  int64
	log     *logger.Logger
}

// NewAudioCache creates a cache for the given voice key.
func NewAudioCache(voice, dir string, persist bool, log *logger.Logger) *AudioCache {
	c := &AudioCache{
		entries: make(map[string][]byte),
		max:     DefaultCacheEntries,
		voice:   voice,
		dir:     dir,
		persist: persist,
		log:     log,
	}
	if dir != "" && persist {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("cache: creating %s: %v", dir, err)
		}
	}
	return c
}

// Get returns cached audio, promoting disk hits into memory.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.key(text)

	c.mu.Lock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
	}
	c.mu.Unlock()
	if ok {
		return data, true
	}

	if c.dir != "" {
		if data, err := os.ReadFile(c.path(key)); err == nil {
			c.mu.Lock()
			c.hits++
			c.storeLocked(key, data)
			c.mu.Unlock()
			c.log.Debug("cache hit (disk): %s", truncate(text, 40))
			return data, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for text.
func (c *AudioCache) Put(text string, audio []byte) {
	key := c.key(text)

	c.mu.Lock()
	c.storeLocked(key, audio)
	c.mu.Unlock()

	if c.dir == "" || !c.persist {
		return
	}
	if err := os.WriteFile(c.path(key), audio, 0o644); err != nil {
		c.log.Error("cache: disk write failed: %v", err)
	}
}

// Has reports whether text is cached in memory or on disk.
func (c *AudioCache) Has(text string) bool {
	key := c.key(text)

	c.mu.Lock()
	_, ok := c.entries[key]
	c.mu.Unlock()
	if ok || c.dir == "" {
		return ok
	}
	_, err := os.Stat(c.path(key))
	return err == nil
}

// Len returns the number of in-memory entries.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *AudioCache) storeLocked(key string, audio []byte) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = audio
	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *AudioCache) key(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}
