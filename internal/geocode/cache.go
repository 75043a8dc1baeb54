package geocode

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileCache stores one JSON file per keyword under dir. The file name is
// the hex SHA-256 of the normalized keyword. Entries never expire.
type FileCache struct {
	dir string
}

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// Key returns the cache key for keyword.
func Key(keyword string) string {
	sum := sha256.Sum256([]byte(normalizeKeyword(keyword)))
	return hex.EncodeToString(sum[:])
}

func normalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
}

// Path returns the file backing keyword.
func (c *FileCache) Path(keyword string) string {
	return filepath.Join(c.dir, Key(keyword)+".json")
}

// Get returns the cached result. A missing entry is (nil, false, nil); an
// unreadable one is reported as an error so the caller can fall through.
func (c *FileCache) Get(keyword string) (*Result, bool, error) {
	data, err := os.ReadFile(c.Path(keyword))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return &r, true, nil
}

// Put writes the result atomically (temp file then rename).
func (c *FileCache) Put(keyword string, r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path(keyword)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// Invalidate removes the entry for keyword. It reports whether one existed.
func (c *FileCache) Invalidate(keyword string) (bool, error) {
	err := os.Remove(c.Path(keyword))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove cache entry: %w", err)
	}
	return true, nil
}
