// Package connectortest provides in-memory stores and dependencies for adapter tests.
package connectortest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/importer"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/internal/storage"
	"github.com/developkariyer/IWApim/pkg/clock"
	"github.com/developkariyer/IWApim/pkg/filecache"
	"github.com/developkariyer/IWApim/pkg/logger"
	"github.com/developkariyer/IWApim/pkg/pacing"
)

var Epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type Variants struct {
	mu     sync.Mutex
	rows   map[string]models.Variant
	Writes int
}

func NewVariants() *Variants {
	return &Variants{rows: map[string]models.Variant{}}
}

func key(mp uint, id string) string {
	return fmt.Sprintf("%d/%s", mp, id)
}

func (m *Variants) FindByUnique(_ context.Context, mp uint, id string) (*models.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[key(mp, id)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &v, nil
}

func (m *Variants) Create(_ context.Context, v *models.Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = uuid.New()
	m.rows[key(v.MarketplaceID, v.UniqueMarketplaceID)] = *v
	m.Writes++
	return nil
}

func (m *Variants) Update(_ context.Context, v *models.Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key(v.MarketplaceID, v.UniqueMarketplaceID)] = *v
	m.Writes++
	return nil
}

func (m *Variants) PublishedIDs(_ context.Context, mp uint) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, v := range m.rows {
		if v.MarketplaceID == mp && v.Published {
			ids = append(ids, v.UniqueMarketplaceID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Variants) Unpublish(_ context.Context, mp uint, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if v, ok := m.rows[key(mp, id)]; ok {
			v.Published = false
			m.rows[key(mp, id)] = v
			m.Writes++
			n++
		}
	}
	return n, nil
}

// All returns the stored variants ordered by unique marketplace id.
func (m *Variants) All() []models.Variant {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Variant, 0, len(m.rows))
	for _, v := range m.rows {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueMarketplaceID < out[j].UniqueMarketplaceID })
	return out
}

func (m *Variants) Get(mp uint, id string) (models.Variant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[key(mp, id)]
	return v, ok
}

type Orders struct {
	mu   sync.Mutex
	Rows map[string]json.RawMessage
	Last string
}

func (o *Orders) UpsertBatch(_ context.Context, orders []models.Order) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Rows == nil {
		o.Rows = map[string]json.RawMessage{}
	}
	for _, ord := range orders {
		o.Rows[ord.OrderID] = ord.JSON
	}
	return nil
}

func (o *Orders) LastValue(context.Context, uint, string) (string, error) {
	return o.Last, nil
}

type Inventory struct {
	mu      sync.Mutex
	Records map[string][]models.InventoryRecord
}

func (i *Inventory) Replace(_ context.Context, _ uint, country string, records []models.InventoryRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.Records == nil {
		i.Records = map[string][]models.InventoryRecord{}
	}
	i.Records[country] = append([]models.InventoryRecord(nil), records...)
	return nil
}

type Registry struct {
	mu     sync.Mutex
	Values map[string]map[string]string
}

func (r *Registry) Get(_ context.Context, ns, k string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Values[ns][k]
	return v, ok, nil
}

func (r *Registry) SetMany(_ context.Context, ns string, values map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Values == nil {
		r.Values = map[string]map[string]string{}
	}
	if r.Values[ns] == nil {
		r.Values[ns] = map[string]string{}
	}
	for k, v := range values {
		r.Values[ns][k] = v
	}
	return nil
}

// Env bundles the fakes behind a connector.Deps.
type Env struct {
	Deps      connector.Deps
	Clock     *clock.Fake
	Variants  *Variants
	Orders    *Orders
	Inventory *Inventory
	Registry  *Registry
}

// NewEnv points the given marketplace type at baseURL and keeps every file under t.TempDir.
func NewEnv(t *testing.T, typ models.MarketplaceType, baseURL string) *Env {
	t.Helper()
	clk := clock.NewFake(Epoch)
	env := &Env{
		Clock:     clk,
		Variants:  NewVariants(),
		Orders:    &Orders{},
		Inventory: &Inventory{},
		Registry:  &Registry{},
	}
	env.Deps = connector.Deps{
		Cache:     filecache.New(t.TempDir(), clk),
		Importer:  importer.New(env.Variants, nil, logger.Discard()),
		Orders:    env.Orders,
		Inventory: env.Inventory,
		Registry:  env.Registry,
		Clock:     clk,
		Logger:    logger.Discard(),
		Client:    http.DefaultClient,
		Policy:    pacing.Policy{BackoffStep: time.Millisecond, MaxRetries: 2, PollInterval: time.Second},
		Unpaced:   true,
		BaseURLs:  map[models.MarketplaceType]string{typ: baseURL},
	}
	return env
}

// Marketplace builds a published marketplace with the given credentials.
func Marketplace(typ models.MarketplaceType, key string, creds map[string]string) *models.Marketplace {
	raw, _ := json.Marshal(creds)
	return &models.Marketplace{
		ID:          7,
		Key:         key,
		Type:        typ,
		Published:   true,
		Credentials: raw,
		Currency:    "EUR",
	}
}
