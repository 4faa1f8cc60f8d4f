package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/developkariyer/IWApim/internal/auth"
	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/importer"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/internal/transport"
)

const (
	apiVersion   = "2024-07"
	pageLimit    = 250
	maxStock     = 100000
	defaultTitle = "Default Title"
)

var maxPrice = decimal.NewFromInt(1000000)

type Connector struct {
	*connector.Base
	fetcher *transport.Fetcher
	shop    string
}

func New(mp *models.Marketplace, deps connector.Deps) (*Connector, error) {
	base, err := connector.NewBase(mp, models.MarketplaceShopify, deps, 500*time.Millisecond, "shop", "access_token")
	if err != nil {
		return nil, err
	}
	shop := strings.TrimSuffix(strings.TrimPrefix(base.Creds.Get("shop"), "https://"), "/")
	engine := auth.NewHeaderAuth(map[string]string{"X-Shopify-Access-Token": base.Creds.Get("access_token")})
	return &Connector{
		Base:    base,
		fetcher: base.NewFetcher(base.BaseURL("https://"+shop+"/admin/api/"+apiVersion), engine, ""),
		shop:    shop,
	}, nil
}

// nextLink returns the rel="next" target of a Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		for _, attr := range segs[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				return strings.Trim(strings.TrimSpace(segs[0]), "<>")
			}
		}
	}
	return ""
}

// walk follows Link cursors from the first page. The cursor URL carries the
// original filters, so query is only sent with the first request.
func (c *Connector) walk(ctx context.Context, operation, path string, query url.Values, page func(resp *transport.Response) error) error {
	return transport.ByToken(ctx, "", func(ctx context.Context, next string) (string, error) {
		req := transport.Request{Operation: operation, Path: path, Query: query}
		if next != "" {
			req.Path, req.Query = next, nil
		}
		resp, err := c.fetcher.Do(ctx, req)
		if err != nil {
			return "", err
		}
		if err := page(resp); err != nil {
			return "", err
		}
		return nextLink(resp.Header.Get("Link")), nil
	})
}

func (c *Connector) Download(ctx context.Context, force bool) (int, error) {
	var listings []json.RawMessage
	if ok, err := c.LoadListings(force, &listings); err != nil {
		return 0, err
	} else if ok {
		return len(listings), nil
	}
	q := url.Values{"limit": {strconv.Itoa(pageLimit)}}
	err := c.walk(ctx, "products", "/products.json", q, func(resp *transport.Response) error {
		var page productsPage
		if err := resp.Decode(&page); err != nil {
			return err
		}
		listings = append(listings, page.Products...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.Log.Log("%d products downloaded", len(listings))
	return len(listings), c.SaveListings(listings)
}

// Import stores every variant; placement is product type, then product title.
func (c *Connector) Import(ctx context.Context, opts services.ImportOptions) (services.ImportStats, error) {
	var stats services.ImportStats
	var listings []json.RawMessage
	ok, err := c.Store.GetListings(0, &listings)
	if err != nil {
		return stats, err
	}
	if !ok || len(listings) == 0 {
		c.Log.Warn("nothing to import")
		return stats, nil
	}
	stats.Unpublished, err = c.ReplaceImport(ctx, func() error {
		for _, raw := range listings {
			if err := c.importProduct(ctx, raw, opts, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	return stats, err
}

func (c *Connector) importProduct(ctx context.Context, raw json.RawMessage, opts services.ImportOptions, stats *services.ImportStats) error {
	var p product
	if err := json.Unmarshal(raw, &p); err != nil {
		c.Log.Warn("malformed product skipped: %v", err)
		stats.Skipped++
		return nil
	}
	parent, err := withoutVariants(raw)
	if err != nil {
		return err
	}
	for _, rawVariant := range p.Variants {
		var v variant
		if err := json.Unmarshal(rawVariant, &v); err != nil || v.ID == 0 {
			stats.Skipped++
			continue
		}
		attrs := options(v)
		title := p.Title
		if attrs != "" {
			title = p.Title + " " + attrs
		}
		f := importer.Fields{
			UniqueMarketplaceID: strconv.FormatInt(v.ID, 10),
			Sku:                 v.Sku,
			Ean:                 v.Barcode,
			Title:               title,
			Attributes:          attrs,
			SaleCurrency:        c.Marketplace().Currency,
			Quantity:            v.InventoryQuantity,
			Published:           p.Status == "active",
			URL:                 fmt.Sprintf("https://%s/products/%s?variant=%d", c.shop, p.Handle, v.ID),
			StoreProductID:      strconv.FormatInt(p.ID, 10),
			APIResponse:         rawVariant,
			ParentResponse:      parent,
		}
		if price, err := connector.Decimal(v.Price); err == nil {
			f.SalePrice = price
		} else {
			c.Log.Warn("variant %d price %q: %v", v.ID, v.Price, err)
		}
		if src := imageFor(p, v); src != "" {
			f.ImageURL = c.CacheImage(ctx, src)
		}
		if err := c.Upsert(ctx, f, []string{p.ProductType, p.Title}, opts, stats); err != nil {
			return err
		}
	}
	return nil
}

func options(v variant) string {
	var parts []string
	for _, o := range []*string{v.Option1, v.Option2, v.Option3} {
		if o == nil {
			continue
		}
		if s := strings.TrimSpace(*o); s != "" && s != defaultTitle {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "-")
}

func imageFor(p product, v variant) string {
	if v.ImageID != nil {
		for _, img := range p.Images {
			if img.ID == *v.ImageID {
				return img.Src
			}
		}
	}
	if p.Image != nil {
		return p.Image.Src
	}
	if len(p.Images) > 0 {
		return p.Images[0].Src
	}
	return ""
}

func withoutVariants(raw json.RawMessage) (json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: product: %v", core.ErrData, err)
	}
	delete(m, "variants")
	return json.Marshal(m)
}

// DownloadOrders stores orders updated since the newest stored updated_at.
func (c *Connector) DownloadOrders(ctx context.Context) (int, error) {
	last, err := c.LastOrderValue(ctx, "updated_at")
	if err != nil {
		return 0, err
	}
	q := url.Values{"status": {"any"}, "limit": {strconv.Itoa(pageLimit)}}
	if last != "" {
		q.Set("updated_at_min", last)
	}
	orders := map[string]json.RawMessage{}
	err = c.walk(ctx, "orders", "/orders.json", q, func(resp *transport.Response) error {
		var page ordersPage
		if err := resp.Decode(&page); err != nil {
			return err
		}
		for _, raw := range page.Orders {
			var id orderID
			if err := json.Unmarshal(raw, &id); err != nil || id.ID == 0 {
				continue
			}
			orders[strconv.FormatInt(id.ID, 10)] = raw
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return c.SaveOrders(ctx, orders)
}

func (c *Connector) locations(ctx context.Context) ([]location, error) {
	var page locationsPage
	if err := c.fetcher.JSON(ctx, transport.Request{Operation: "locations", Path: "/locations.json"}, &page); err != nil {
		return nil, err
	}
	active := page.Locations[:0]
	for _, l := range page.Locations {
		if l.Active {
			active = append(active, l)
		}
	}
	return active, nil
}

// DownloadInventory reads inventory levels per location and stores them by the
// location's country. Skus come from the downloaded products.
func (c *Connector) DownloadInventory(ctx context.Context) (int, error) {
	skus, err := c.skusByInventoryItem()
	if err != nil {
		return 0, err
	}
	locs, err := c.locations(ctx)
	if err != nil {
		return 0, err
	}
	byCountry := map[string][]models.InventoryRecord{}
	var order []string
	for _, loc := range locs {
		country := loc.CountryCode
		if country == "" {
			country = c.Marketplace().MainCountry
		}
		if _, ok := byCountry[country]; !ok {
			order = append(order, country)
			byCountry[country] = nil
		}
		q := url.Values{"location_ids": {strconv.FormatInt(loc.ID, 10)}, "limit": {strconv.Itoa(pageLimit)}}
		err := c.walk(ctx, "inventory_levels", "/inventory_levels.json", q, func(resp *transport.Response) error {
			var page inventoryLevelsPage
			if err := resp.Decode(&page); err != nil {
				return err
			}
			for _, raw := range page.InventoryLevels {
				var lvl inventoryLevel
				if err := json.Unmarshal(raw, &lvl); err != nil || lvl.Available == nil {
					continue
				}
				byCountry[country] = append(byCountry[country], models.InventoryRecord{
					MarketplaceID: c.Marketplace().ID,
					Country:       country,
					Sku:           skus[lvl.InventoryItemID],
					ExternalID:    strconv.FormatInt(lvl.InventoryItemID, 10),
					Quantity:      *lvl.Available,
					Detail:        raw,
				})
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	total := 0
	for _, country := range order {
		records := byCountry[country]
		if err := c.Store.Put(country+"_inventory.json", records); err != nil {
			c.Log.Warn("inventory not cached: %v", err)
		}
		if err := c.ReplaceInventory(ctx, country, records); err != nil {
			return total, err
		}
		total += len(records)
	}
	return total, nil
}

func (c *Connector) skusByInventoryItem() (map[int64]string, error) {
	var listings []json.RawMessage
	if _, err := c.Store.GetListings(0, &listings); err != nil {
		return nil, err
	}
	out := map[int64]string{}
	for _, raw := range listings {
		var p product
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		for _, rv := range p.Variants {
			var v variant
			if json.Unmarshal(rv, &v) == nil && v.InventoryItemID != 0 {
				out[v.InventoryItemID] = v.Sku
			}
		}
	}
	return out, nil
}

// SetInventory sets the available quantity at WriteOptions.LocationID, the
// location_id credential or the first active location.
func (c *Connector) SetInventory(ctx context.Context, v *models.Variant, qty int, opts services.WriteOptions) error {
	if err := connector.CheckRange("quantity", qty, 0, maxStock); err != nil {
		return err
	}
	itemID, err := strconv.ParseInt(v.ResponseField("inventory_item_id"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: variant %s has no inventory item", core.ErrData, v.UniqueMarketplaceID)
	}
	locationID, err := c.locationFor(ctx, opts.LocationID)
	if err != nil {
		return err
	}
	req := setLevelRequest{LocationID: locationID, InventoryItemID: itemID, Available: qty}
	resp, err := c.fetcher.Do(ctx, transport.Request{
		Operation: "inventory_levels/set", Method: http.MethodPost, Path: "/inventory_levels/set.json", JSON: req,
	})
	c.Audit("SetInventory", c.auditName(v), req, responseBody(resp), err)
	return err
}

func (c *Connector) locationFor(ctx context.Context, explicit string) (int64, error) {
	for _, candidate := range []string{explicit, c.Creds.Get("location_id")} {
		if candidate == "" {
			continue
		}
		id, err := strconv.ParseInt(candidate, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: location id %q", core.ErrConfig, candidate)
		}
		return id, nil
	}
	locs, err := c.locations(ctx)
	if err != nil {
		return 0, err
	}
	if len(locs) == 0 {
		return 0, fmt.Errorf("%w: shop has no active location", core.ErrConfig)
	}
	return locs[0].ID, nil
}

func (c *Connector) SetPrice(ctx context.Context, v *models.Variant, price decimal.Decimal, currency string, _ services.WriteOptions) error {
	if price.Sign() <= 0 || price.GreaterThan(maxPrice) {
		return fmt.Errorf("%w: price %s outside 0..%s", core.ErrData, price, maxPrice)
	}
	variantID, err := strconv.ParseInt(v.UniqueMarketplaceID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: variant id %q", core.ErrData, v.UniqueMarketplaceID)
	}
	target := v.SaleCurrency
	if target == "" {
		target = c.Marketplace().Currency
	}
	value, err := c.Convert(ctx, price.String(), currency, target)
	if err != nil {
		return err
	}
	var req variantPriceRequest
	req.Variant.ID = variantID
	req.Variant.Price = value
	resp, err := c.fetcher.Do(ctx, transport.Request{
		Operation: "variants:put", Method: http.MethodPut, Path: "/variants/" + v.UniqueMarketplaceID + ".json", JSON: req,
	})
	c.Audit("SetPrice", c.auditName(v), req, responseBody(resp), err)
	return err
}

func (c *Connector) auditName(v *models.Variant) string {
	return fmt.Sprintf("%s_%s.json", v.UniqueMarketplaceID, c.Now().Format("20060102150405"))
}

func responseBody(resp *transport.Response) json.RawMessage {
	if resp == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.Body
}

var _ services.Connector = (*Connector)(nil)
