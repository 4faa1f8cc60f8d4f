package auth

import (
	"fmt"
	"sync"

	"github.com/developkariyer/IWApim/pkg/filecache"
)

// Store persists the last token of one integration. Load returns nil, nil when nothing is stored.
type Store interface {
	Load() (*Token, error)
	Save(token *Token) error
}

type MemoryStore struct {
	mu    sync.Mutex
	token *Token
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil, nil
	}
	cp := *s.token
	return &cp, nil
}

func (s *MemoryStore) Save(token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.token = &cp
	return nil
}

// CacheStore keeps the token as <name>_access_token.json in the file cache.
type CacheStore struct {
	store *filecache.Store
	key   string
}

func NewCacheStore(store *filecache.Store, name string) *CacheStore {
	return &CacheStore{store: store, key: name + "_access_token.json"}
}

func (s *CacheStore) Load() (*Token, error) {
	token := &Token{}
	// срок жизни определяет сам токен
	ok, err := s.store.Get(s.key, 0, token)
	if err != nil {
		return nil, fmt.Errorf("load token %s: %w", s.key, err)
	}
	if !ok {
		return nil, nil
	}
	return token, nil
}

func (s *CacheStore) Save(token *Token) error {
	if err := s.store.Put(s.key, token); err != nil {
		return fmt.Errorf("save token %s: %w", s.key, err)
	}
	return nil
}
