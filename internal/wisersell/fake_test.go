package wisersell

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/storage"
	"github.com/developkariyer/IWApim/pkg/clock"
	"github.com/developkariyer/IWApim/pkg/filecache"
	"github.com/developkariyer/IWApim/pkg/pacing"
)

// fakeERP is an in-memory Wisersell.
type fakeERP struct {
	mu         sync.Mutex
	nextID     int
	tokenCalls int
	categories []Category
	products   []Product
	stores     []Store
	listings   []Listing

	categoryPosts [][]Category
	productPosts  [][]Product
	updates       []Product
	// request bodies as sent by the client
	productBodies [][]byte
	updateBodies  [][]byte
	listingPosts  [][]Listing
	listPages     int
}

func newFakeERP() *fakeERP {
	return &fakeERP{nextID: 900}
}

func (f *fakeERP) id() ID {
	f.nextID++
	return ID(strconv.Itoa(f.nextID))
}

func (f *fakeERP) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] != "ops@iwa.test" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.tokenCalls++
		writeJSON(w, map[string]string{"token": "session-1"})
	})
	mux.HandleFunc("GET /category", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, f.categories)
	})
	mux.HandleFunc("POST /category", func(w http.ResponseWriter, r *http.Request) {
		var in []Category
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		f.categoryPosts = append(f.categoryPosts, in)
		for i := range in {
			in[i].ID = f.id()
			f.categories = append(f.categories, in[i])
		}
		writeJSON(w, in)
	})
	mux.HandleFunc("POST /product/search", func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Code != "" {
			rows := []Product{}
			for _, p := range f.products {
				if p.Code == req.Code {
					rows = append(rows, p)
				}
			}
			writeRows(t, w, len(rows), rows)
			return
		}
		f.listPages++
		writeRows(t, w, len(f.products), page(f.products, req.Page, req.PageSize))
	})
	mux.HandleFunc("POST /product", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		f.productBodies = append(f.productBodies, body)
		var in []Product
		require.NoError(t, json.Unmarshal(body, &in))
		f.productPosts = append(f.productPosts, in)
		for i := range in {
			in[i].ID = f.id()
			in[i].raw = nil
			f.products = append(f.products, in[i])
		}
		writeJSON(w, in)
	})
	mux.HandleFunc("PUT /product/{id}", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		f.updateBodies = append(f.updateBodies, body)
		var in Product
		require.NoError(t, json.Unmarshal(body, &in))
		require.Equal(t, r.PathValue("id"), in.ID.String())
		f.updates = append(f.updates, in)
		writeJSON(w, in)
	})
	mux.HandleFunc("GET /store", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, f.stores)
	})
	mux.HandleFunc("POST /listing/search", func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		var rows []Listing
		for _, l := range f.listings {
			if l.ShopID == req.StoreID {
				rows = append(rows, l)
			}
		}
		writeJSON(w, listingPage{Count: len(rows), Rows: page(rows, req.Page, req.PageSize)})
	})
	mux.HandleFunc("POST /listing", func(w http.ResponseWriter, r *http.Request) {
		var in []Listing
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		for i := range in {
			in[i].raw = nil
		}
		f.listingPosts = append(f.listingPosts, in)
		for i := range in {
			in[i].ID = f.id()
			f.listings = append(f.listings, in[i])
		}
		writeJSON(w, in)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" && r.Header.Get("Authorization") != "Bearer session-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func page[T any](rows []T, page, size int) []T {
	start := page * size
	if start >= len(rows) {
		return []T{}
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// writeRows serves products the way they were seeded, raw rows verbatim.
func writeRows(t *testing.T, w http.ResponseWriter, count int, rows []Product) {
	records := make([]json.RawMessage, 0, len(rows))
	for _, p := range rows {
		data, err := p.Record()
		require.NoError(t, err)
		records = append(records, data)
	}
	writeJSON(w, struct {
		Count int               `json:"count"`
		Rows  []json.RawMessage `json:"rows"`
	}{count, records})
}

// rawProducts decodes ERP rows the way the client does.
func rawProducts(t *testing.T, rows ...string) []Product {
	t.Helper()
	out := make([]Product, 0, len(rows))
	for _, row := range rows {
		var p Product
		require.NoError(t, json.Unmarshal([]byte(row), &p))
		out = append(out, p)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type memCatalog struct {
	categories []models.Category
	products   []models.Product
	saves      int
}

func (m *memCatalog) Categories(context.Context) ([]models.Category, error) {
	return append([]models.Category(nil), m.categories...), nil
}

func (m *memCatalog) CreateCategory(_ context.Context, c *models.Category) error {
	c.ID = uint(len(m.categories) + 100)
	m.categories = append(m.categories, *c)
	return nil
}

func (m *memCatalog) SetCategoryErpID(_ context.Context, id uint, erpID string) error {
	for i := range m.categories {
		if m.categories[i].ID == id {
			m.categories[i].WisersellCategoryID = erpID
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memCatalog) ProductsWithSku(context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range m.products {
		if p.Iwasku != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memCatalog) SaveProduct(_ context.Context, p *models.Product) error {
	m.saves++
	for i := range m.products {
		if m.products[i].ID == p.ID {
			m.products[i] = *p
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memCatalog) product(sku string) models.Product {
	for _, p := range m.products {
		if p.Iwasku == sku {
			return p
		}
	}
	return models.Product{}
}

type erpLink struct {
	ListingID string
	SyncCode  string
}

type memVariants struct {
	byMarketplace map[uint][]models.Variant
	links         map[uuid.UUID]erpLink
}

func (m *memVariants) ListByMarketplace(_ context.Context, id uint) ([]models.Variant, error) {
	return m.byMarketplace[id], nil
}

func (m *memVariants) SetErpListing(_ context.Context, id uuid.UUID, listingID, syncCode string) error {
	if m.links == nil {
		m.links = map[uuid.UUID]erpLink{}
	}
	m.links[id] = erpLink{ListingID: listingID, SyncCode: syncCode}
	return nil
}

type memMarketplaces []models.Marketplace

func (m memMarketplaces) WithErpStore(context.Context) ([]models.Marketplace, error) {
	return m, nil
}

type harness struct {
	erp        *fakeERP
	catalog    *memCatalog
	variants   *memVariants
	mps        memMarketplaces
	clock      *clock.Fake
	cache      *filecache.Cache
	quarantine *Quarantine
	client     *Client
}

func newHarness(t *testing.T, erp *fakeERP) *harness {
	t.Helper()
	srv := httptest.NewServer(erp.handler(t))
	t.Cleanup(srv.Close)

	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	cache := filecache.New(t.TempDir(), clk)
	client := NewClient(
		Config{BaseURL: srv.URL, Email: "ops@iwa.test", Password: "secret"},
		cache.Root(),
		pacing.Policy{BackoffStep: time.Millisecond, MaxRetries: 1},
		clk, srv.Client(), nil,
	)
	return &harness{
		erp:        erp,
		catalog:    &memCatalog{},
		variants:   &memVariants{byMarketplace: map[uint][]models.Variant{}},
		clock:      clk,
		cache:      cache,
		quarantine: NewQuarantine(cache.Root(), clk),
		client:     client,
	}
}

func (h *harness) reconciler() *Reconciler {
	return NewReconciler(h.client, h.catalog, h.variants, h.mps, h.cache.Root(), h.quarantine, nil)
}

type quarantined struct {
	Kind          string                 `json:"kind"`
	Reason        string                 `json:"reason"`
	QuarantinedAt time.Time              `json:"quarantinedAt"`
	Record        map[string]interface{} `json:"record"`
}

func (h *harness) quarantined(t *testing.T) []quarantined {
	t.Helper()
	var out []quarantined
	h.decodeQuarantine(t, h.cache.Root(), func(dec *json.Decoder) {
		var q quarantined
		require.NoError(t, dec.Decode(&q))
		out = append(out, q)
	})
	return out
}

// quarantinedRecords returns the compacted record of every entry in store.
func (h *harness) quarantinedRecords(t *testing.T, store *filecache.Store) []string {
	t.Helper()
	var out []string
	h.decodeQuarantine(t, store, func(dec *json.Decoder) {
		var q struct {
			Record json.RawMessage `json:"record"`
		}
		require.NoError(t, dec.Decode(&q))
		var buf bytes.Buffer
		require.NoError(t, json.Compact(&buf, q.Record))
		out = append(out, buf.String())
	})
	return out
}

func (h *harness) decodeQuarantine(t *testing.T, store *filecache.Store, next func(*json.Decoder)) {
	t.Helper()
	data, ok, err := store.GetRaw(QuarantineFile, 0)
	require.NoError(t, err)
	if !ok {
		return
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		next(dec)
	}
}
