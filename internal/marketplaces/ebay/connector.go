package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
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
	baseURL   = "https://api.ebay.com"
	tokenURL  = "https://api.ebay.com/identity/v1/oauth2/token"
	itemsPage = 100
	orderPage = 50
	maxStock  = 10000

	scopes = "https://api.ebay.com/oauth/api_scope/sell.inventory https://api.ebay.com/oauth/api_scope/sell.fulfillment"
)

// aspects used as variant attributes, in this order
var variantAspects = []string{"Color", "Colour", "Size", "Material"}

type Connector struct {
	*connector.Base
	fetcher *transport.Fetcher
}

func New(mp *models.Marketplace, deps connector.Deps) (*Connector, error) {
	base, err := connector.NewBase(mp, models.MarketplaceEbay, deps, 200*time.Millisecond, "client_id", "client_secret")
	if err != nil {
		return nil, err
	}
	form := url.Values{"scope": {scopes}}
	if rt := base.Creds.Get("refresh_token"); rt != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", rt)
	}
	tokens := base.TokenManager("ebay", &auth.BasicExchanger{
		URL:          base.AuthURL(tokenURL),
		ClientID:     base.Creds.Get("client_id"),
		ClientSecret: base.Creds.Get("client_secret"),
		Form:         form,
		Client:       deps.Client,
	})
	return &Connector{
		Base:    base,
		fetcher: base.NewFetcher(base.BaseURL(baseURL), auth.NewTokenAuth(tokens), ""),
	}, nil
}

// Download pulls inventory items and attaches their offers; the record keeps the
// first offer id at the top level for price writes.
func (c *Connector) Download(ctx context.Context, force bool) (int, error) {
	var listings []json.RawMessage
	if ok, err := c.LoadListings(force, &listings); err != nil {
		return 0, err
	} else if ok {
		return len(listings), nil
	}

	err := transport.ByOffset(ctx, itemsPage, func(ctx context.Context, offset, limit int) (int, int, error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))
		var page inventoryItemsPage
		if err := c.fetcher.JSON(ctx, transport.Request{Operation: "inventory_item", Path: "/sell/inventory/v1/inventory_item", Query: q}, &page); err != nil {
			return 0, 0, err
		}
		for _, raw := range page.InventoryItems {
			l, err := c.withOffers(ctx, raw)
			if err != nil {
				return 0, 0, err
			}
			if l != nil {
				listings = append(listings, l)
			}
		}
		return len(page.InventoryItems), page.Total, nil
	})
	if err != nil {
		return 0, err
	}
	c.Log.Log("%d inventory items downloaded", len(listings))
	return len(listings), c.SaveListings(listings)
}

func (c *Connector) withOffers(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var item inventoryItem
	if err := json.Unmarshal(raw, &item); err != nil || item.Sku == "" {
		c.Log.Warn("inventory item without sku skipped")
		return nil, nil
	}
	var offers offersPage
	err := c.fetcher.JSON(ctx, transport.Request{
		Operation: "offer", Path: "/sell/inventory/v1/offer", Query: url.Values{"sku": {item.Sku}},
	}, &offers)
	// items without offers answer 404
	if err != nil && transport.StatusCode(err) != http.StatusNotFound {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: inventory item %s: %v", core.ErrData, item.Sku, err)
	}
	m["offers"] = connector.MustJSON(offers.Offers)
	if len(offers.Offers) > 0 {
		m["offerId"] = connector.MustJSON(offers.Offers[0].OfferID)
	}
	return json.Marshal(m)
}

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
			if err := c.importItem(ctx, raw, opts, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	return stats, err
}

func (c *Connector) importItem(ctx context.Context, raw json.RawMessage, opts services.ImportOptions, stats *services.ImportStats) error {
	var item inventoryItem
	var attached struct {
		Offers []offer `json:"offers"`
	}
	if err := json.Unmarshal(raw, &item); err != nil || item.Sku == "" {
		stats.Skipped++
		return nil
	}
	_ = json.Unmarshal(raw, &attached)

	attrs := aspects(item.Product.Aspects)
	f := importer.Fields{
		UniqueMarketplaceID: item.Sku,
		Sku:                 item.Sku,
		Title:               strings.TrimSpace(item.Product.Title),
		Attributes:          attrs,
		Quantity:            item.Availability.ShipToLocationAvailability.Quantity,
		APIResponse:         raw,
	}
	if len(item.Product.EAN) > 0 {
		f.Ean = item.Product.EAN[0]
	} else if len(item.Product.UPC) > 0 {
		f.Ean = item.Product.UPC[0]
	}
	if len(item.Product.ImageURLs) > 0 {
		f.ImageURL = c.CacheImage(ctx, item.Product.ImageURLs[0])
	}
	category := ""
	if len(attached.Offers) > 0 {
		o := attached.Offers[0]
		f.Published = o.Status == "PUBLISHED" && o.Listing.ListingStatus != "ENDED"
		f.StoreProductID = o.Listing.ListingID
		f.SaleCurrency = o.PricingSummary.Price.Currency
		category = o.CategoryID
		if o.PricingSummary.Price.Value != "" {
			price, err := connector.Decimal(o.PricingSummary.Price.Value)
			if err != nil {
				c.Log.Warn("offer %s price %q: %v", o.OfferID, o.PricingSummary.Price.Value, err)
			}
			f.SalePrice = price
		}
		if o.Listing.ListingID != "" {
			f.URL = "https://www.ebay.com/itm/" + o.Listing.ListingID
		}
	}
	group := f.Title
	if len(item.GroupIDs) > 0 {
		group = item.GroupIDs[0]
	}
	return c.Upsert(ctx, f, []string{category, group}, opts, stats)
}

func aspects(all map[string][]string) string {
	var parts []string
	for _, name := range variantAspects {
		if vs := all[name]; len(vs) > 0 && strings.TrimSpace(vs[0]) != "" {
			parts = append(parts, strings.TrimSpace(vs[0]))
		}
	}
	if len(parts) == 0 && len(all) > 0 {
		// no known aspect: fall back to everything, ordered by name
		names := make([]string, 0, len(all))
		for n := range all {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if vs := all[n]; len(vs) == 1 && strings.TrimSpace(vs[0]) != "" {
				parts = append(parts, strings.TrimSpace(vs[0]))
			}
		}
	}
	return strings.Join(parts, "-")
}

// DownloadOrders reads fulfillment orders modified since the newest stored one,
// at most three months back.
func (c *Connector) DownloadOrders(ctx context.Context) (int, error) {
	last, err := c.LastOrderTime(ctx, "lastModifiedDate")
	if err != nil {
		return 0, err
	}
	if earliest := c.Now().AddDate(0, -3, 0); last.Before(earliest) {
		last = earliest
	}
	filter := fmt.Sprintf("lastmodifieddate:[%s..]", last.UTC().Format("2006-01-02T15:04:05.000Z"))

	orders := map[string]json.RawMessage{}
	err = transport.ByOffset(ctx, orderPage, func(ctx context.Context, offset, limit int) (int, int, error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("filter", filter)
		var page ordersPage
		if err := c.fetcher.JSON(ctx, transport.Request{Operation: "order", Path: "/sell/fulfillment/v1/order", Query: q}, &page); err != nil {
			return 0, 0, err
		}
		for _, raw := range page.Orders {
			var id orderID
			if err := json.Unmarshal(raw, &id); err != nil || id.OrderID == "" {
				continue
			}
			orders[id.OrderID] = raw
		}
		return len(page.Orders), page.Total, nil
	})
	if err != nil {
		return 0, err
	}
	return c.SaveOrders(ctx, orders)
}

func (c *Connector) DownloadInventory(context.Context) (int, error) {
	return 0, c.Unsupported("inventory")
}

func (c *Connector) SetInventory(ctx context.Context, v *models.Variant, qty int, _ services.WriteOptions) error {
	if err := connector.CheckRange("quantity", qty, 0, maxStock); err != nil {
		return err
	}
	return c.bulkUpdate(ctx, "SetInventory", v, bulkItem{
		Sku:                        v.Sku,
		ShipToLocationAvailability: &availability{Quantity: qty},
	})
}

func (c *Connector) SetPrice(ctx context.Context, v *models.Variant, price decimal.Decimal, currency string, _ services.WriteOptions) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("%w: price %s", core.ErrData, price)
	}
	offerID := v.ResponseField("offerId")
	if offerID == "" {
		return fmt.Errorf("%w: variant %s has no offer", core.ErrData, v.UniqueMarketplaceID)
	}
	target := v.SaleCurrency
	if target == "" {
		target = currency
	}
	value, err := c.Convert(ctx, price.String(), currency, target)
	if err != nil {
		return err
	}
	return c.bulkUpdate(ctx, "SetPrice", v, bulkItem{
		Sku:    v.Sku,
		Offers: []offerPriceQty{{OfferID: offerID, Price: &amount{Value: value, Currency: target}}},
	})
}

// bulkUpdate sends a single-item bulk_update_price_quantity and audits it.
func (c *Connector) bulkUpdate(ctx context.Context, auditDir string, v *models.Variant, item bulkItem) error {
	if item.Sku == "" {
		return fmt.Errorf("%w: variant %s has no sku", core.ErrData, v.UniqueMarketplaceID)
	}
	req := bulkRequest{Requests: []bulkItem{item}}
	var resp bulkResponse
	err := c.fetcher.JSON(ctx, transport.Request{
		Operation: "bulk_update_price_quantity", Method: http.MethodPost,
		Path: "/sell/inventory/v1/bulk_update_price_quantity", JSON: req,
	}, &resp)
	if err == nil {
		for _, r := range resp.Responses {
			if r.StatusCode >= 300 {
				msg := ""
				if len(r.Errors) > 0 {
					msg = r.Errors[0].Message
				}
				err = fmt.Errorf("%w: %s rejected with %d: %s", core.ErrData, r.Sku, r.StatusCode, msg)
				break
			}
		}
	}
	c.Audit(auditDir, fmt.Sprintf("%s_%s.json", item.Sku, c.Now().Format("20060102150405")), req, resp, err)
	return err
}

var _ services.Connector = (*Connector)(nil)
