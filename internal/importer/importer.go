package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/storage"
	"github.com/developkariyer/IWApim/metrics"
	"github.com/developkariyer/IWApim/pkg/logger"
)

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
)

type VariantStore interface {
	FindByUnique(ctx context.Context, marketplaceID uint, uniqueID string) (*models.Variant, error)
	Create(ctx context.Context, v *models.Variant) error
	Update(ctx context.Context, v *models.Variant) error
	PublishedIDs(ctx context.Context, marketplaceID uint) ([]string, error)
	Unpublish(ctx context.Context, marketplaceID uint, uniqueIDs []string) (int64, error)
}

type ImageMirror interface {
	// URL is the mirrored location of sourceURL, computed without fetching it.
	URL(namespace, sourceURL string) string
	Store(ctx context.Context, namespace, sourceURL string) (string, error)
}

// Fields are the canonical values a connector computes for one listing.
type Fields struct {
	UniqueMarketplaceID string
	Sku                 string
	Ean                 string
	Title               string
	Attributes          string
	SalePrice           decimal.Decimal
	SaleCurrency        string
	Quantity            int
	Published           bool
	URL                 string
	ImageURL            string
	StoreProductID      string
	VariantCode         string
	APIResponse         json.RawMessage
	ParentResponse      json.RawMessage
}

type replaceSession struct {
	published []string
	seen      map[string]struct{}
}

// Importer is the idempotent upsert engine keyed by (marketplace, unique marketplace id).
type Importer struct {
	store  VariantStore
	mirror ImageMirror
	log    logger.Logger

	mu       sync.Mutex
	sessions map[uint]*replaceSession
}

func New(store VariantStore, mirror ImageMirror, log logger.Logger) *Importer {
	if log == nil {
		log = logger.Discard()
	}
	return &Importer{store: store, mirror: mirror, log: log, sessions: map[uint]*replaceSession{}}
}

// Upsert creates or updates one variant. Nothing is written when no canonical field changed.
func (im *Importer) Upsert(ctx context.Context, mp *models.Marketplace, f Fields, placement []string, opts services.ImportOptions) (*models.Variant, Outcome, error) {
	f.UniqueMarketplaceID = strings.TrimSpace(f.UniqueMarketplaceID)
	if f.UniqueMarketplaceID == "" {
		metrics.RecordImport(mp.Key, string(OutcomeSkipped))
		return nil, OutcomeSkipped, fmt.Errorf("%w: listing without unique marketplace id", core.ErrData)
	}
	im.markSeen(mp.ID, f.UniqueMarketplaceID)

	existing, err := im.store.FindByUnique(ctx, mp.ID, f.UniqueMarketplaceID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, "", err
	}

	if existing == nil {
		if !opts.CreateNew {
			metrics.RecordImport(mp.Key, string(OutcomeSkipped))
			return nil, OutcomeSkipped, nil
		}
		v := &models.Variant{MarketplaceID: mp.ID}
		im.apply(ctx, mp, v, f, placement)
		if err := im.store.Create(ctx, v); err != nil {
			return nil, "", err
		}
		metrics.RecordImport(mp.Key, string(OutcomeCreated))
		return v, OutcomeCreated, nil
	}

	if !opts.UpdateExisting {
		metrics.RecordImport(mp.Key, string(OutcomeSkipped))
		return existing, OutcomeSkipped, nil
	}
	candidate := *existing
	im.apply(ctx, mp, &candidate, f, placement)
	if sameContent(existing, &candidate) {
		metrics.RecordImport(mp.Key, string(OutcomeUnchanged))
		return existing, OutcomeUnchanged, nil
	}
	if err := im.store.Update(ctx, &candidate); err != nil {
		return nil, "", err
	}
	metrics.RecordImport(mp.Key, string(OutcomeUpdated))
	return &candidate, OutcomeUpdated, nil
}

func (im *Importer) apply(ctx context.Context, mp *models.Marketplace, v *models.Variant, f Fields, placement []string) {
	v.UniqueMarketplaceID = f.UniqueMarketplaceID
	v.Sku = f.Sku
	v.Ean = f.Ean
	v.Title = f.Title
	v.Attributes = f.Attributes
	v.SalePrice = f.SalePrice
	v.SaleCurrency = f.SaleCurrency
	v.Quantity = f.Quantity
	v.Published = f.Published
	v.URL = f.URL
	v.StoreProductID = f.StoreProductID
	v.VariantCode = f.VariantCode
	v.APIResponseJSON = compact(f.APIResponse)
	v.ParentResponseJSON = compact(f.ParentResponse)
	v.PlacementPath = PlacementPath(mp.Key, placement...)

	im.applyImage(ctx, mp, v, f)
}

// applyImage mirrors the listing image unless v already points at the mirrored
// copy of the same source. A failed mirror keeps whatever v had.
func (im *Importer) applyImage(ctx context.Context, mp *models.Marketplace, v *models.Variant, f Fields) {
	if im.mirror == nil || f.ImageURL == "" {
		v.ImageURL = f.ImageURL
		return
	}
	if v.ImageURL != "" && v.ImageURL == im.mirror.URL(mp.Key, f.ImageURL) {
		return
	}
	stored, err := im.mirror.Store(ctx, mp.Key, f.ImageURL)
	if err != nil {
		im.log.Warn("image of %s not mirrored: %v", f.UniqueMarketplaceID, err)
		if v.ImageURL == "" {
			v.ImageURL = f.ImageURL
		}
		return
	}
	v.ImageURL = stored
}

func sameContent(a, b *models.Variant) bool {
	return a.Sku == b.Sku &&
		a.Ean == b.Ean &&
		a.Title == b.Title &&
		a.Attributes == b.Attributes &&
		a.SalePrice.Equal(b.SalePrice) &&
		a.SaleCurrency == b.SaleCurrency &&
		a.Quantity == b.Quantity &&
		a.Published == b.Published &&
		a.URL == b.URL &&
		a.ImageURL == b.ImageURL &&
		a.StoreProductID == b.StoreProductID &&
		a.VariantCode == b.VariantCode &&
		a.PlacementPath == b.PlacementPath &&
		bytes.Equal(compact(json.RawMessage(a.APIResponseJSON)), compact(json.RawMessage(b.APIResponseJSON))) &&
		bytes.Equal(compact(json.RawMessage(a.ParentResponseJSON)), compact(json.RawMessage(b.ParentResponseJSON)))
}

func compact(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// BeginReplace starts a full-replacement pass: every variant not seen by
// Upsert before Commit is unpublished.
func (im *Importer) BeginReplace(ctx context.Context, mp *models.Marketplace) error {
	ids, err := im.store.PublishedIDs(ctx, mp.ID)
	if err != nil {
		return err
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	im.sessions[mp.ID] = &replaceSession{published: ids, seen: map[string]struct{}{}}
	im.log.Log("%s: replace pass started with %d published variants", mp.Key, len(ids))
	return nil
}

func (im *Importer) markSeen(marketplaceID uint, uniqueID string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if s, ok := im.sessions[marketplaceID]; ok {
		s.seen[uniqueID] = struct{}{}
	}
}

// Commit unpublishes the variants that were published at BeginReplace and not seen since.
func (im *Importer) Commit(ctx context.Context, mp *models.Marketplace) (int, error) {
	im.mu.Lock()
	s, ok := im.sessions[mp.ID]
	delete(im.sessions, mp.ID)
	im.mu.Unlock()
	if !ok {
		return 0, nil
	}

	var gone []string
	for _, id := range s.published {
		if _, seen := s.seen[id]; !seen {
			gone = append(gone, id)
		}
	}
	if len(gone) == 0 {
		return 0, nil
	}
	n, err := im.store.Unpublish(ctx, mp.ID, gone)
	if err != nil {
		return int(n), err
	}
	im.log.Log("%s: %d variants no longer listed, unpublished", mp.Key, n)
	return int(n), nil
}

// Abort drops a replace pass without unpublishing anything.
func (im *Importer) Abort(mp *models.Marketplace) {
	im.mu.Lock()
	defer im.mu.Unlock()
	delete(im.sessions, mp.ID)
}

// Record adds an outcome to running import statistics.
func Record(stats *services.ImportStats, outcome Outcome) {
	switch outcome {
	case OutcomeCreated:
		stats.Created++
	case OutcomeUpdated:
		stats.Updated++
	case OutcomeUnchanged:
		stats.Unchanged++
	case OutcomeSkipped:
		stats.Skipped++
	}
}
