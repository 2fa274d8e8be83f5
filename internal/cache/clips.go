// Package cache persists synthesized clips so repeated lines skip the
// backend round trip.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const clipExt = ".zst"

// Clips is a capacity-bounded disk cache of compressed PCM clips. State
// lives entirely in the filesystem; modification times drive eviction.
type Clips struct {
	dir      string
	capacity int64

	enc *zstd.Encoder
	dec *zstd.Decoder

	mu sync.Mutex
}

// New opens (creating if needed) a clip cache rooted at dir. capacity is
// the maximum total size in bytes of compressed clips kept on disk.
func New(dir string, capacity int64) (*Clips, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Clips{dir: dir, capacity: capacity, enc: enc, dec: dec}, nil
}

// Key derives the cache key for a clip from what uniquely produced it.
func Key(engine, voiceURI, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", engine, voiceURI, text)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Get returns the cached clip for key, if present. A hit refreshes the
// clip's modification time so hot clips survive eviction.
func (c *Clips) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	pcm, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		// Corrupt entry. Drop it rather than serve garbage.
		os.Remove(path)
		return nil, false
	}

	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return pcm, true
}

// Put stores a clip under key, evicting the stalest entries if the cache
// would exceed its capacity.
func (c *Clips) Put(key string, pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.enc.EncodeAll(pcm, nil)
	if int64(len(data)) > c.capacity {
		return fmt.Errorf("clip larger than cache capacity (%d > %d bytes)", len(data), c.capacity)
	}

	path := c.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing cache file: %w", err)
	}

	return c.evict()
}

// Clear removes every cached clip.
func (c *Clips) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.entries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Remove(e.path); err != nil {
			return err
		}
	}
	return nil
}

// Size reports the total on-disk size of cached clips in bytes.
func (c *Clips) Size() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.entries()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}
	return total, nil
}

// Close releases the compressor. The cache directory stays intact.
func (c *Clips) Close() error {
	c.dec.Close()
	return c.enc.Close()
}

func (c *Clips) path(key string) string {
	return filepath.Join(c.dir, key+clipExt)
}

type clipEntry struct {
	path  string
	size  int64
	mtime time.Time
}

func (c *Clips) entries() ([]clipEntry, error) {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}

	var out []clipEntry
	for _, d := range dirents {
		if d.IsDir() || filepath.Ext(d.Name()) != clipExt {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		out = append(out, clipEntry{
			path:  filepath.Join(c.dir, d.Name()),
			size:  info.Size(),
			mtime: info.ModTime(),
		})
	}
	return out, nil
}

func (c *Clips) evict() error {
	entries, err := c.entries()
	if err != nil {
		return err
	}

	var total int64
	for _, e := range entries {
		total += e.size
	}
	if total <= c.capacity {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].mtime.Before(entries[j].mtime)
	})

	for _, e := range entries {
		if total <= c.capacity {
			break
		}
		if err := os.Remove(e.path); err != nil {
			return err
		}
		total -= e.size
		log.Debug("evicted cached clip", "path", filepath.Base(e.path), "size", e.size)
	}
	return nil
}
