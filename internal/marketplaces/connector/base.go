package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/developkariyer/IWApim/internal/auth"
	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/currency"
	"github.com/developkariyer/IWApim/internal/importer"
	"github.com/developkariyer/IWApim/internal/transport"
	"github.com/developkariyer/IWApim/pkg/clock"
	"github.com/developkariyer/IWApim/pkg/filecache"
	"github.com/developkariyer/IWApim/pkg/logger"
	"github.com/developkariyer/IWApim/pkg/pacing"
)

type OrderStore interface {
	UpsertBatch(ctx context.Context, orders []models.Order) error
	LastValue(ctx context.Context, marketplaceID uint, field string) (string, error)
}

type InventoryStore interface {
	Replace(ctx context.Context, marketplaceID uint, country string, records []models.InventoryRecord) error
}

type Registry interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	SetMany(ctx context.Context, namespace string, values map[string]string) error
}

// Deps are the collaborators shared by every adapter.
type Deps struct {
	Cache     *filecache.Cache
	Importer  *importer.Importer
	Converter *currency.Converter
	Orders    OrderStore
	Inventory InventoryStore
	Registry  Registry
	Mirror    importer.ImageMirror
	Clock     clock.Clock
	Logger    *logger.BaseLogger
	Client    *http.Client
	// Policy carries the configured backoff; adapters add their own minimum interval.
	Policy      pacing.Policy
	ListingsTTL time.Duration
	// Unpaced drops the per-marketplace steady-state interval (replays, tests).
	Unpaced bool
	// BaseURLs overrides adapter endpoints by marketplace type (sandbox, tests).
	BaseURLs map[models.MarketplaceType]string
}

// Base is embedded by every adapter.
type Base struct {
	Deps
	Creds models.CredentialBundle
	Store *filecache.Store
	Log   *logger.BaseLogger
	Pacer *pacing.Pacer

	mp *models.Marketplace
}

// NewBase fails fast unless the marketplace is published, of the expected type
// and carries every required credential.
func NewBase(mp *models.Marketplace, want models.MarketplaceType, deps Deps, minInterval time.Duration, required ...string) (*Base, error) {
	if err := CheckType(mp, want); err != nil {
		return nil, err
	}
	creds, err := mp.Bundle()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfig, err)
	}
	if missing := creds.Missing(required...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s %s is missing credentials %s", core.ErrConfig, want, mp.Key, strings.Join(missing, ", "))
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("%w: file cache is not configured", core.ErrConfig)
	}
	if deps.ListingsTTL == 0 {
		deps.ListingsTTL = filecache.DefaultTTL
	}
	policy := deps.Policy
	policy.MinInterval = minInterval
	if deps.Unpaced {
		policy.MinInterval = 0
	}

	return &Base{
		Deps:  deps,
		Creds: creds,
		Store: deps.Cache.Namespace(mp.Key),
		Log:   deps.Logger.WithPrefix(fmt.Sprintf("[%s:%s]", want, mp.Key)),
		Pacer: pacing.New(policy, deps.Clock),
		mp:    mp,
	}, nil
}

func CheckType(mp *models.Marketplace, want models.MarketplaceType) error {
	if mp == nil {
		return fmt.Errorf("%w: no marketplace", core.ErrConfig)
	}
	if !mp.Published {
		return fmt.Errorf("%w: marketplace %s is not published", core.ErrConfig, mp.Key)
	}
	if mp.Type != want {
		return fmt.Errorf("%w: marketplace %s is %s, not %s", core.ErrConfig, mp.Key, mp.Type, want)
	}
	return nil
}

func (b *Base) Marketplace() *models.Marketplace {
	return b.mp
}

// BaseURL returns the configured override for this marketplace type or def.
func (b *Base) BaseURL(def string) string {
	if u, ok := b.BaseURLs[b.mp.Type]; ok && u != "" {
		return u
	}
	return def
}

// AuthURL keeps the path of the default token endpoint but moves it to the
// overridden base URL, so sandboxes serve both from one host.
func (b *Base) AuthURL(def string) string {
	override, ok := b.BaseURLs[b.mp.Type]
	if !ok || override == "" {
		return def
	}
	u, err := url.Parse(def)
	if err != nil {
		return def
	}
	return strings.TrimRight(override, "/") + u.Path
}

func (b *Base) NewFetcher(baseURL string, engine auth.AuthEngine, userAgent string) *transport.Fetcher {
	return transport.New(transport.Config{
		Marketplace: b.mp.Key,
		BaseURL:     b.BaseURL(baseURL),
		Auth:        engine,
		Pacer:       b.Pacer,
		Client:      b.Client,
		Logger:      b.Log,
		UserAgent:   userAgent,
	})
}

// TokenManager caches the token as <name>_access_token.json in the marketplace folder.
func (b *Base) TokenManager(name string, ex auth.Exchanger) *auth.Manager {
	return auth.NewManager(name, auth.NewCacheStore(b.Store, name), ex, b.Clock, b.Log)
}

func (b *Base) Unsupported(operation string) error {
	return fmt.Errorf("%w: %s on %s", core.ErrNotSupported, operation, b.mp.Type)
}

// LoadListings reads the cached listings unless force is set.
func (b *Base) LoadListings(force bool, out interface{}) (bool, error) {
	if force {
		return false, nil
	}
	return b.Store.GetListings(b.ListingsTTL, out)
}

func (b *Base) SaveListings(listings interface{}) error {
	return b.Store.PutListings(listings)
}

type auditRecord struct {
	At       time.Time   `json:"at"`
	Request  interface{} `json:"request"`
	Response interface{} `json:"response,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Audit keeps the request/response pair of a write call, successful or not.
func (b *Base) Audit(dir, name string, request, response interface{}, callErr error) {
	rec := auditRecord{At: b.Clock.Now(), Request: request, Response: response}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	store := b.Store
	if dir != "" {
		store = store.Sub(dir)
	}
	if err := store.Put(name, rec); err != nil {
		b.Log.Warn("audit %s/%s not written: %v", dir, name, err)
	}
}

// CheckRange rejects a write value before any network call.
func CheckRange(what string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%w: %s %d outside %d..%d", core.ErrData, what, value, min, max)
	}
	return nil
}

// CacheImage mirrors an image when a mirror is configured; failures keep the source URL.
func (b *Base) CacheImage(ctx context.Context, sourceURL string) string {
	if b.Mirror == nil || sourceURL == "" {
		return sourceURL
	}
	stored, err := b.Mirror.Store(ctx, b.mp.Key, sourceURL)
	if err != nil {
		b.Log.Warn("image %s not mirrored: %v", sourceURL, err)
		return sourceURL
	}
	return stored
}

// Convert wraps the currency converter; without one only same-currency writes succeed.
func (b *Base) Convert(ctx context.Context, amount string, from, to string) (string, error) {
	dec, err := parseDecimal(amount)
	if err != nil {
		return "", err
	}
	if currency.Normalize(from) == currency.Normalize(to) {
		return dec.String(), nil
	}
	if b.Converter == nil {
		return "", fmt.Errorf("%w: no currency converter", core.ErrConfig)
	}
	out, err := b.Converter.Convert(ctx, dec, from, to)
	if err != nil {
		return "", err
	}
	return out.StringFixed(2), nil
}

func (b *Base) Now() time.Time {
	return b.Clock.Now()
}
