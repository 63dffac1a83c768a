package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// cacheEntry is the on-disk format of one cached embedding.
type cacheEntry struct {
	ModelName   string    `json:"model_name"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}

// Cache stores embeddings on disk keyed by content hash and model, so a
// title is only re-embedded when its text or the model changes. A nil
// *Cache is a valid no-op cache.
type Cache struct {
	dir string
}

// NewCache opens (creating if needed) an embedding cache directory.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: cache dir %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Key returns the cache key for a model and text pair.
func Key(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// Get returns the cached embedding for the model and text, if present.
func (c *Cache) Get(model, text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	key := Key(model, text)
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.ModelName != model || entry.ContentHash != key {
		return nil, false
	}
	return entry.Embedding, true
}

// Put stores an embedding. Write errors are returned so batch ingests can
// surface them, but callers may choose to continue without the cache.
func (c *Cache) Put(model, text string, embedding []float32) error {
	if c == nil {
		return nil
	}
	key := Key(model, text)
	entry := cacheEntry{
		ModelName:   model,
		ContentHash: key,
		Embedding:   embedding,
		Ctime:       time.Now().Unix(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// Write via temp file so a crash never leaves a truncated entry.
	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ingest: cache write: %w", err)
	}
	return os.Rename(tmp, c.path(key))
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}
