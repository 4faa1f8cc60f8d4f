package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/pkg/clock"
	"github.com/developkariyer/IWApim/pkg/logger"
)

// Manager hands out a valid token for one integration, exchanging a new one when needed.
// Calls are serialized so concurrent callers trigger at most one exchange.
type Manager struct {
	name      string
	store     Store
	exchanger Exchanger
	clock     clock.Clock
	skew      time.Duration
	logger    logger.Logger

	mu      sync.Mutex
	current *Token
}

func NewManager(name string, store Store, exchanger Exchanger, clk clock.Clock, log logger.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		name:      name,
		store:     store,
		exchanger: exchanger,
		clock:     clk,
		skew:      DefaultSkew,
		logger:    log,
	}
}

func (m *Manager) SetSkew(skew time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skew = skew
}

func (m *Manager) GetValidToken(ctx context.Context) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if m.current.Valid(now, m.skew) {
		return m.current, nil
	}

	stored, err := m.store.Load()
	if err != nil {
		m.logger.Warn("%s: stored token unreadable: %v", m.name, err)
		stored = nil
	}
	if stored.Valid(now, m.skew) {
		m.current = stored
		return stored, nil
	}

	previous := m.current
	if previous == nil {
		previous = stored
	}
	token, err := m.exchanger.Exchange(ctx, previous)
	if err != nil {
		if errors.Is(err, core.ErrAuth) {
			return nil, fmt.Errorf("%s: %w", m.name, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", core.ErrAuth, m.name, err)
	}
	if token.IssuedAt.IsZero() {
		token.IssuedAt = now
	}
	if err := m.store.Save(token); err != nil {
		m.logger.Warn("%s: token not persisted: %v", m.name, err)
	}
	m.current = token
	m.logger.Log("%s: new access token obtained", m.name)
	return token, nil
}
