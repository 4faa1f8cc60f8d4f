package wisersell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/transport"
	"github.com/developkariyer/IWApim/pkg/filecache"
	"github.com/developkariyer/IWApim/pkg/logger"
)

const (
	StageCategories = "categories"
	StageProducts   = "products"
	StageControl    = "control"
	StageListings   = "listings"

	ProductsCacheKey = "wisersell.json"
	ProductsCacheTTL = 86400 * time.Second

	pageSize  = 100
	batchSize = 100
	pageDelay = 2 * time.Second
)

var stageOrder = []string{StageCategories, StageProducts, StageControl, StageListings}

// ParseStages accepts a comma separated list; the result is always in run order.
func ParseStages(list string) ([]string, error) {
	want := map[string]bool{}
	for _, s := range strings.Split(list, ",") {
		s = strings.TrimSpace(strings.ToLower(s))
		if s == "" {
			continue
		}
		known := false
		for _, stage := range stageOrder {
			if s == stage {
				known = true
			}
		}
		if !known {
			return nil, fmt.Errorf("%w: unknown wisersell stage %q", core.ErrConfig, s)
		}
		want[s] = true
	}
	var out []string
	for _, stage := range stageOrder {
		if want[stage] {
			out = append(out, stage)
		}
	}
	return out, nil
}

type API interface {
	Categories(ctx context.Context) ([]Category, error)
	CreateCategories(ctx context.Context, categories []Category) ([]Category, error)
	SearchProducts(ctx context.Context, code string, page, pageSize int) (int, []Product, error)
	CreateProducts(ctx context.Context, products []Product) ([]Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	Stores(ctx context.Context) ([]Store, error)
	SearchListings(ctx context.Context, storeID ID, page, pageSize int) (int, []Listing, error)
	CreateListings(ctx context.Context, listings []Listing) ([]Listing, error)
	Pause(ctx context.Context, d time.Duration) error
}

type Catalog interface {
	Categories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	SetCategoryErpID(ctx context.Context, id uint, erpID string) error
	ProductsWithSku(ctx context.Context) ([]models.Product, error)
	SaveProduct(ctx context.Context, p *models.Product) error
}

type Variants interface {
	ListByMarketplace(ctx context.Context, marketplaceID uint) ([]models.Variant, error)
	SetErpListing(ctx context.Context, id uuid.UUID, listingID, syncCode string) error
}

type Marketplaces interface {
	WithErpStore(ctx context.Context) ([]models.Marketplace, error)
}

type Result struct {
	Stage       string
	Created     int
	Updated     int
	Unchanged   int
	Skipped     int
	Quarantined int
}

func (r Result) String() string {
	return fmt.Sprintf("%s: created=%d updated=%d unchanged=%d skipped=%d quarantined=%d",
		r.Stage, r.Created, r.Updated, r.Unchanged, r.Skipped, r.Quarantined)
}

// Reconciler keeps categories, products and listings consistent between the
// local catalog and Wisersell.
type Reconciler struct {
	api          API
	catalog      Catalog
	variants     Variants
	marketplaces Marketplaces
	cache        *filecache.Store
	quarantine   *Quarantine
	log          *logger.BaseLogger
}

func NewReconciler(api API, catalog Catalog, variants Variants, marketplaces Marketplaces, cache *filecache.Store, quarantine *Quarantine, log *logger.BaseLogger) *Reconciler {
	if log == nil {
		log = logger.Discard()
	}
	return &Reconciler{
		api:          api,
		catalog:      catalog,
		variants:     variants,
		marketplaces: marketplaces,
		cache:        cache,
		quarantine:   quarantine,
		log:          log.WithPrefix("[wisersell]"),
	}
}

// Run executes the stages in order and stops at the first fatal error.
func (r *Reconciler) Run(ctx context.Context, stages []string) ([]Result, error) {
	var results []Result
	var errs []error
	for _, stage := range stages {
		var res Result
		var err error
		switch stage {
		case StageCategories:
			res, err = r.SyncCategories(ctx)
		case StageProducts:
			res, err = r.SyncProducts(ctx)
		case StageControl:
			res, err = r.Control(ctx)
		case StageListings:
			res, err = r.SyncListings(ctx)
		default:
			return results, fmt.Errorf("%w: unknown wisersell stage %q", core.ErrConfig, stage)
		}
		results = append(results, res)
		r.log.Log("%s", res)
		if err != nil {
			if core.IsFatal(err) {
				return results, fmt.Errorf("wisersell %s: %w", stage, err)
			}
			errs = append(errs, fmt.Errorf("wisersell %s: %w", stage, err))
		}
	}
	return results, errors.Join(errs...)
}

// SyncCategories matches categories by name in both directions.
func (r *Reconciler) SyncCategories(ctx context.Context) (Result, error) {
	res := Result{Stage: StageCategories}
	remote, err := r.api.Categories(ctx)
	if err != nil {
		return res, err
	}
	local, err := r.catalog.Categories(ctx)
	if err != nil {
		return res, err
	}

	remoteByName := make(map[string]Category, len(remote))
	for _, c := range remote {
		remoteByName[strings.TrimSpace(c.Name)] = c
	}
	localByName := make(map[string]*models.Category, len(local))
	var missing []Category
	for i := range local {
		c := &local[i]
		name := strings.TrimSpace(c.Name)
		localByName[name] = c
		rc, ok := remoteByName[name]
		if !ok {
			missing = append(missing, Category{Name: name})
			continue
		}
		if c.WisersellCategoryID == rc.ID.String() {
			res.Unchanged++
			continue
		}
		if err := r.catalog.SetCategoryErpID(ctx, c.ID, rc.ID.String()); err != nil {
			return res, err
		}
		res.Updated++
	}

	if len(missing) > 0 {
		created, err := r.api.CreateCategories(ctx, missing)
		if err != nil {
			return res, err
		}
		for _, rc := range created {
			c, ok := localByName[strings.TrimSpace(rc.Name)]
			if !ok || rc.ID == "" {
				r.log.Warn("created category %q has no local counterpart", rc.Name)
				continue
			}
			if err := r.catalog.SetCategoryErpID(ctx, c.ID, rc.ID.String()); err != nil {
				return res, err
			}
			res.Created++
		}
	}

	// ERP-only categories become local ones
	for _, rc := range remote {
		name := strings.TrimSpace(rc.Name)
		if name == "" || localByName[name] != nil {
			continue
		}
		c := &models.Category{Name: name, WisersellCategoryID: rc.ID.String(), Published: true}
		if err := r.catalog.CreateCategory(ctx, c); err != nil {
			return res, err
		}
		localByName[name] = c
		res.Created++
	}
	return res, nil
}

// SyncProducts creates missing ERP products, then reconciles fields of the
// products present on both sides. ERP products without a local SKU match are
// quarantined.
func (r *Reconciler) SyncProducts(ctx context.Context) (Result, error) {
	res := Result{Stage: StageProducts}
	products, err := r.catalog.ProductsWithSku(ctx)
	if err != nil {
		return res, err
	}
	categories, err := r.catalog.Categories(ctx)
	if err != nil {
		return res, err
	}
	categoryIDs := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryIDs[strings.TrimSpace(c.Name)] = c.WisersellCategoryID
	}

	var pending []*models.Product
	for i := range products {
		p := &products[i]
		if p.WisersellID != "" {
			continue
		}
		count, rows, err := r.api.SearchProducts(ctx, p.Iwasku, 0, 1)
		if err != nil {
			return res, err
		}
		if count > 0 && len(rows) > 0 {
			if err := r.link(ctx, p, rows[0]); err != nil {
				return res, err
			}
			res.Updated++
			continue
		}
		if categoryIDs[strings.TrimSpace(p.CategoryName)] == "" {
			r.log.Warn("%s: category %q is not in wisersell, product skipped", p.Iwasku, p.CategoryName)
			res.Skipped++
			continue
		}
		pending = append(pending, p)
	}

	for _, batch := range transport.Chunk(pending, batchSize) {
		payload := make([]Product, 0, len(batch))
		for _, p := range batch {
			payload = append(payload, toRemote(p, ID(categoryIDs[strings.TrimSpace(p.CategoryName)])))
		}
		created, err := r.api.CreateProducts(ctx, payload)
		if err != nil {
			return res, err
		}
		for i, rp := range created {
			p := matchCreated(batch, rp, i, len(created))
			if p == nil || rp.ID == "" {
				r.log.Warn("created product %q has no local counterpart", rp.Code)
				continue
			}
			if rp.Code == "" {
				rp.Code = p.Iwasku
			}
			if err := r.link(ctx, p, rp); err != nil {
				return res, err
			}
			res.Created++
		}
	}

	remote, err := r.remoteProducts(ctx, res.Created+res.Updated > 0)
	if err != nil {
		return res, err
	}
	bySku := make(map[string]*models.Product, len(products))
	for i := range products {
		bySku[products[i].Iwasku] = &products[i]
	}
	refreshed := false
	defer func() {
		if refreshed {
			if err := r.cacheProducts(remote); err != nil {
				r.log.Warn("%s not refreshed: %v", ProductsCacheKey, err)
			}
		}
	}()
	for i, rp := range remote {
		if rp.Code == "" {
			// Control reports these
			continue
		}
		p, ok := bySku[rp.Code]
		if !ok {
			if err := r.quarantineRecord(&res, "product", rp.ID.String(), "no local product with this code", rp.Record); err != nil {
				return res, err
			}
			continue
		}
		if p.WisersellID != "" && p.WisersellID != rp.ID.String() {
			res.Skipped++
			continue
		}
		merged, localChanged, remoteChanged := reconcileFields(p, rp)
		if remoteChanged {
			if err := r.api.UpdateProduct(ctx, merged); err != nil {
				if !core.IsSkippable(err) {
					return res, err
				}
				r.log.Warn("%s: %v", rp.Code, err)
				res.Skipped++
				continue
			}
			merged = merged.withUpdates()
			remote[i] = merged
			refreshed = true
		}
		if localChanged || remoteChanged || p.WisersellID == "" {
			if err := r.link(ctx, p, merged); err != nil {
				return res, err
			}
			res.Updated++
			continue
		}
		res.Unchanged++
	}
	return res, nil
}

// Control checks every ERP product against the local catalog: empty codes,
// duplicate codes and unknown codes are quarantined, diverging ERP ids are
// written back locally.
func (r *Reconciler) Control(ctx context.Context) (Result, error) {
	res := Result{Stage: StageControl}
	remote, err := r.remoteProducts(ctx, false)
	if err != nil {
		return res, err
	}
	products, err := r.catalog.ProductsWithSku(ctx)
	if err != nil {
		return res, err
	}
	bySku := make(map[string]*models.Product, len(products))
	for i := range products {
		bySku[products[i].Iwasku] = &products[i]
	}

	seen := map[string]ID{}
	for _, rp := range remote {
		var reason string
		p := bySku[rp.Code]
		switch prev, dup := seen[rp.Code]; {
		case rp.Code == "":
			reason = "product has no code"
		case dup:
			reason = fmt.Sprintf("code is also used by %s", prev)
		case p == nil:
			reason = "no local product with this code"
		}
		if rp.Code != "" {
			if _, dup := seen[rp.Code]; !dup {
				seen[rp.Code] = rp.ID
			}
		}
		if reason != "" {
			if err := r.quarantineRecord(&res, "product", rp.ID.String(), reason, rp.Record); err != nil {
				return res, err
			}
			continue
		}
		if p.WisersellID == rp.ID.String() {
			res.Unchanged++
			continue
		}
		r.log.Log("%s: wisersell id %q -> %s", rp.Code, p.WisersellID, rp.ID)
		if err := r.link(ctx, p, rp); err != nil {
			return res, err
		}
		res.Updated++
	}
	return res, nil
}

// SyncListings matches canonical variants with ERP listings by sync code,
// store by store.
func (r *Reconciler) SyncListings(ctx context.Context) (Result, error) {
	res := Result{Stage: StageListings}
	mps, err := r.marketplaces.WithErpStore(ctx)
	if err != nil {
		return res, err
	}
	if len(mps) == 0 {
		return res, nil
	}
	stores, err := r.api.Stores(ctx)
	if err != nil {
		return res, err
	}
	known := make(map[string]bool, len(stores))
	for _, s := range stores {
		known[s.ID.String()] = true
	}
	products, err := r.catalog.ProductsWithSku(ctx)
	if err != nil {
		return res, err
	}
	erpProduct := make(map[uint]string, len(products))
	for _, p := range products {
		if p.WisersellID != "" {
			erpProduct[p.ID] = p.WisersellID
		}
	}

	var errs []error
	for i := range mps {
		mp := &mps[i]
		if !known[mp.ErpStoreID] {
			errs = append(errs, fmt.Errorf("%w: %s: wisersell store %s does not exist", core.ErrConfig, mp.Key, mp.ErpStoreID))
			continue
		}
		if err := r.syncStore(ctx, mp, erpProduct, &res); err != nil {
			if core.IsFatal(err) && !errors.Is(err, core.ErrConfig) {
				return res, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", mp.Key, err))
		}
	}
	return res, errors.Join(errs...)
}

func (r *Reconciler) syncStore(ctx context.Context, mp *models.Marketplace, erpProduct map[uint]string, res *Result) error {
	storeID := ID(mp.ErpStoreID)
	remote := map[string]Listing{}
	err := transport.ByPage(ctx, 0, pageSize, func(ctx context.Context, page int) (int, bool, error) {
		_, rows, err := r.api.SearchListings(ctx, storeID, page, pageSize)
		if err != nil {
			return 0, false, err
		}
		for _, l := range rows {
			remote[l.SyncCode()] = l
		}
		return len(rows), false, nil
	})
	if err != nil {
		return err
	}

	variants, err := r.variants.ListByMarketplace(ctx, mp.ID)
	if err != nil {
		return err
	}
	matched := map[string]bool{}
	pending := map[string]*models.Variant{}
	var create []Listing
	for i := range variants {
		v := &variants[i]
		if v.StoreProductID == "" {
			continue
		}
		code := SyncCode(mp.ErpStoreID, v.StoreProductID, v.VariantCode)
		if l, ok := remote[code]; ok {
			matched[code] = true
			if v.ErpListingID == l.ID.String() && v.SyncCode == code {
				res.Unchanged++
				continue
			}
			if err := r.variants.SetErpListing(ctx, v.ID, l.ID.String(), code); err != nil {
				return err
			}
			res.Updated++
			continue
		}
		if !v.Published || pending[code] != nil {
			continue
		}
		productID := ""
		if v.ParentProductID != nil {
			productID = erpProduct[*v.ParentProductID]
		}
		if productID == "" {
			res.Skipped++
			continue
		}
		pending[code] = v
		create = append(create, Listing{
			StoreProductID: v.StoreProductID,
			ProductID:      ID(productID),
			ShopID:         storeID,
			VariantCode:    v.VariantCode,
		})
	}

	for _, batch := range transport.Chunk(create, batchSize) {
		created, err := r.api.CreateListings(ctx, batch)
		if err != nil {
			return err
		}
		for _, l := range created {
			if l.ShopID == "" {
				l.ShopID = storeID
			}
			code := l.SyncCode()
			v := pending[code]
			if v == nil || l.ID == "" {
				r.log.Warn("%s: created listing %s has no canonical variant", mp.Key, l.StoreProductID)
				continue
			}
			if err := r.variants.SetErpListing(ctx, v.ID, l.ID.String(), code); err != nil {
				return err
			}
			res.Created++
		}
	}

	for code, l := range remote {
		if matched[code] {
			continue
		}
		if err := r.quarantineRecord(res, "listing", l.ID.String(), fmt.Sprintf("no canonical variant in %s", mp.Key), l.Record); err != nil {
			return err
		}
	}
	return nil
}

// remoteProducts returns every ERP product, from wisersell.json while it is fresh.
func (r *Reconciler) remoteProducts(ctx context.Context, force bool) ([]Product, error) {
	var out []Product
	if !force {
		ok, err := r.cache.Get(ProductsCacheKey, ProductsCacheTTL, &out)
		if err != nil {
			return nil, err
		}
		if ok {
			return out, nil
		}
	}
	out = out[:0]
	err := transport.ByPage(ctx, 0, pageSize, func(ctx context.Context, page int) (int, bool, error) {
		if page > 0 {
			if err := r.api.Pause(ctx, pageDelay); err != nil {
				return 0, false, err
			}
		}
		_, rows, err := r.api.SearchProducts(ctx, "", page, pageSize)
		if err != nil {
			return 0, false, err
		}
		out = append(out, rows...)
		return len(rows), false, nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Log("%d wisersell products downloaded", len(out))
	if err := r.cacheProducts(out); err != nil {
		return nil, err
	}
	return out, nil
}

// cacheProducts stores the rows as received, so a cached product keeps its
// raw record.
func (r *Reconciler) cacheProducts(products []Product) error {
	records := make([]json.RawMessage, 0, len(products))
	for _, rp := range products {
		data, err := rp.Record()
		if err != nil {
			return fmt.Errorf("encode wisersell product %s: %w", rp.ID, err)
		}
		records = append(records, data)
	}
	return r.cache.Put(ProductsCacheKey, records)
}

func (r *Reconciler) quarantineRecord(res *Result, kind, id, reason string, record func() (json.RawMessage, error)) error {
	data, err := record()
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	written, err := r.quarantine.Put(kind, id, reason, data)
	if err != nil {
		return err
	}
	if written {
		r.log.Warn("%s %s quarantined: %s", kind, id, reason)
		res.Quarantined++
	}
	return nil
}

func (r *Reconciler) link(ctx context.Context, p *models.Product, rp Product) error {
	data, err := rp.Record()
	if err != nil {
		return fmt.Errorf("encode wisersell product %s: %w", rp.ID, err)
	}
	p.WisersellID = rp.ID.String()
	p.WisersellJSON = datatypes.JSON(data)
	return r.catalog.SaveProduct(ctx, p)
}

func matchCreated(batch []*models.Product, rp Product, i, n int) *models.Product {
	for _, p := range batch {
		if rp.Code != "" && p.Iwasku == rp.Code {
			return p
		}
	}
	// ответ без code: сопоставляем по позиции
	if rp.Code == "" && n == len(batch) {
		return batch[i]
	}
	return nil
}

func toRemote(p *models.Product, categoryID ID) Product {
	return Product{
		Name:        p.Name,
		Code:        p.Iwasku,
		CategoryID:  categoryID,
		Weight:      NewMeasure(p.Weight),
		Width:       NewMeasure(p.Width),
		Length:      NewMeasure(p.Length),
		Height:      NewMeasure(p.Height),
		ExtraData:   ExtraData{VariationSize: p.VariationSize, VariationColor: p.VariationColor},
		Subproducts: []Product{},
	}
}
