package filecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/developkariyer/IWApim/pkg/clock"
)

const (
	// DefaultTTL is the listing cache lifetime used by the marketplace passes.
	DefaultTTL  = 86000 * time.Second
	ListingsKey = "LISTINGS.json"
)

// Cache is a filesystem hierarchy with one directory per marketplace.
// A miss or an expired entry is "absent", never an error.
type Cache struct {
	root  string
	clock clock.Clock
}

func New(root string, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.Real()
	}
	return &Cache{root: root, clock: clk}
}

// Root is the store at the top of the hierarchy (token files of non-marketplace integrations).
func (c *Cache) Root() *Store {
	return &Store{dir: c.root, clock: c.clock}
}

func (c *Cache) Namespace(name string) *Store {
	return &Store{dir: filepath.Join(c.root, url.QueryEscape(name)), clock: c.clock}
}

type Store struct {
	dir   string
	clock clock.Clock
}

func (s *Store) Dir() string {
	return s.dir
}

// Sub returns a nested store, e.g. an audit folder for write calls.
func (s *Store) Sub(name string) *Store {
	return &Store{dir: filepath.Join(s.dir, url.QueryEscape(name)), clock: s.clock}
}

func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key))
}

func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, key)
}

// PutRaw writes atomically and stamps the modification time from the clock.
func (s *Store) PutRaw(key string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("cache dir %s: %w", s.dir, err)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache close %s: %w", key, err)
	}
	path := s.Path(key)
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache rename %s: %w", key, err)
	}
	now := s.clock.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("cache stamp %s: %w", key, err)
	}
	return nil
}

// GetRaw returns ok=false when the entry is missing or older than ttl. ttl <= 0 never expires.
func (s *Store) GetRaw(key string, ttl time.Duration) ([]byte, bool, error) {
	path := s.Path(key)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache stat %s: %w", key, err)
	}
	if ttl > 0 && s.clock.Now().Sub(info.ModTime()) > ttl {
		return nil, false, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache read %s: %w", key, err)
	}
	return data, true, nil
}

func (s *Store) Put(key string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return s.PutRaw(key, data)
}

func (s *Store) Get(key string, ttl time.Duration, out interface{}) (bool, error) {
	data, ok, err := s.GetRaw(key, ttl)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) PutListings(listings interface{}) error {
	return s.Put(ListingsKey, listings)
}

func (s *Store) GetListings(ttl time.Duration, out interface{}) (bool, error) {
	return s.Get(ListingsKey, ttl, out)
}

// Append adds data to the end of key without touching earlier content.
func (s *Store) Append(key string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("cache dir %s: %w", s.dir, err)
	}
	f, err := os.OpenFile(s.Path(key), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("cache append %s: %w", key, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("cache append %s: %w", key, err)
	}
	return f.Close()
}

func (s *Store) Remove(key string) error {
	err := os.Remove(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
