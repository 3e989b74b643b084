// Package imagecache keeps the bytes of shared images on disk so the
// destination surface can fetch them after the opaque image marker arrives.
package imagecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linanwx/sharebridge/internal/runtimecfg"
	"github.com/linanwx/sharebridge/logger"
)

const latestFile = "latest.json"

// ErrEmpty is returned by Latest when no image has been stored.
var ErrEmpty = errors.New("no shared image stored")

// ErrTooLarge is returned by Save when the image exceeds the size limit.
var ErrTooLarge = errors.New("shared image too large")

// Entry describes one stored image.
type Entry struct {
	Name    string    `json:"name"`
	MIME    string    `json:"mime"`
	Size    int64     `json:"size"`
	SavedAt time.Time `json:"saved_at"`
}

// Cache stores images under a single directory.
type Cache struct {
	dir      string
	maxBytes int64
	mu       sync.Mutex
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("imagecache: directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("imagecache: create dir: %w", err)
	}
	return &Cache{dir: dir, maxBytes: runtimecfg.ImagesMaxBytes}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Save writes r to a new file and marks it as the latest image.
func (c *Cache) Save(r io.Reader, mimeType string) (Entry, error) {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	name := uuid.NewString() + extensionFor(mimeType)
	path := filepath.Join(c.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return Entry{}, fmt.Errorf("imagecache: create: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, c.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > c.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return Entry{}, fmt.Errorf("imagecache: write: %w", err)
	}

	entry := Entry{Name: name, MIME: mimeType, Size: n, SavedAt: time.Now()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeLatestLocked(entry); err != nil {
		return Entry{}, err
	}
	logger.Debug("shared image stored", "name", name, "mime", mimeType, "size", n)
	return entry, nil
}

// Latest returns the most recently saved image.
func (c *Cache) Latest() (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(c.dir, latestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, ErrEmpty
		}
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("imagecache: parse %s: %w", latestFile, err)
	}
	if _, err := os.Stat(c.Path(entry)); err != nil {
		return Entry{}, ErrEmpty
	}
	return entry, nil
}

// Path returns the on-disk location of entry.
func (c *Cache) Path(entry Entry) string {
	return filepath.Join(c.dir, filepath.Base(entry.Name))
}

// Prune removes images saved before cutoff. The latest image is kept even when
// it is older, unless it was itself removed.
func (c *Cache) Prune(cutoff time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("imagecache: read dir: %w", err)
	}

	latest := ""
	if data, err := os.ReadFile(filepath.Join(c.dir, latestFile)); err == nil {
		var e Entry
		if json.Unmarshal(data, &e) == nil {
			latest = e.Name
		}
	}

	removed := 0
	var errs []error
	for _, de := range entries {
		if de.IsDir() || de.Name() == latestFile || de.Name() == latest {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, de.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("pruned shared images", "removed", removed, "dir", c.dir)
	}
	return removed, errors.Join(errs...)
}

func (c *Cache) writeLatestLocked(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	tmp := filepath.Join(c.dir, latestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("imagecache: write %s: %w", latestFile, err)
	}
	return os.Rename(tmp, filepath.Join(c.dir, latestFile))
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
