package etsy

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
	baseURL  = "https://openapi.etsy.com"
	tokenURL = "https://api.etsy.com/v3/public/oauth/token"
	pageSize = 100
	maxStock = 999
)

type Connector struct {
	*connector.Base
	fetcher *transport.Fetcher
	shopID  string
}

func New(mp *models.Marketplace, deps connector.Deps) (*Connector, error) {
	base, err := connector.NewBase(mp, models.MarketplaceEtsy, deps, 100*time.Millisecond,
		"client_id", "refresh_token", "shop_id")
	if err != nil {
		return nil, err
	}
	tokens := base.TokenManager("etsy", &auth.RefreshExchanger{
		URL:          base.AuthURL(tokenURL),
		ClientID:     base.Creds.Get("client_id"),
		RefreshToken: base.Creds.Get("refresh_token"),
		Client:       deps.Client,
	})
	engine := auth.Chain{
		auth.NewTokenAuth(tokens),
		auth.NewHeaderAuth(map[string]string{"x-api-key": base.Creds.Get("client_id")}),
	}
	return &Connector{
		Base:    base,
		fetcher: base.NewFetcher(baseURL, engine, ""),
		shopID:  base.Creds.Get("shop_id"),
	}, nil
}

func (c *Connector) shopPath(suffix string) string {
	return "/v3/application/shops/" + url.PathEscape(c.shopID) + suffix
}

// Download pulls every active listing together with its inventory.
func (c *Connector) Download(ctx context.Context, force bool) (int, error) {
	var listings []json.RawMessage
	if ok, err := c.LoadListings(force, &listings); err != nil {
		return 0, err
	} else if ok {
		return len(listings), nil
	}

	err := transport.ByOffset(ctx, pageSize, func(ctx context.Context, offset, limit int) (int, int, error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("includes", "Inventory")
		var page listingsPage
		if err := c.fetcher.JSON(ctx, transport.Request{Operation: "listings/active", Path: c.shopPath("/listings/active"), Query: q}, &page); err != nil {
			return 0, 0, err
		}
		listings = append(listings, page.Results...)
		return len(page.Results), page.Count, nil
	})
	if err != nil {
		return 0, err
	}
	c.Log.Log("%d listings downloaded", len(listings))
	return len(listings), c.SaveListings(listings)
}

// Import replaces the catalog: listings missing from the download are unpublished,
// listings present again are published.
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
			if err := c.importListing(ctx, raw, opts, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	return stats, err
}

func (c *Connector) importListing(ctx context.Context, raw json.RawMessage, opts services.ImportOptions, stats *services.ImportStats) error {
	var l listing
	if err := json.Unmarshal(raw, &l); err != nil {
		c.Log.Warn("malformed listing skipped: %v", err)
		stats.Skipped++
		return nil
	}
	parent, err := withoutInventory(raw)
	if err != nil {
		return err
	}
	section := ""
	if l.ShopSectionID != nil {
		section = strconv.FormatInt(*l.ShopSectionID, 10)
	}
	placement := []string{section, l.Title}

	for _, rawProduct := range l.Inventory.Products {
		var p product
		if err := json.Unmarshal(rawProduct, &p); err != nil {
			stats.Skipped++
			continue
		}
		attrs := attributes(p.PropertyValues)
		title := l.Title
		if attrs != "" {
			title = strings.TrimSpace(title + " " + attrs)
		}
		f := importer.Fields{
			UniqueMarketplaceID: idString(p.ProductID),
			Sku:                 p.Sku,
			Title:               title,
			Attributes:          attrs,
			Published:           !p.IsDeleted,
			URL:                 l.URL,
			StoreProductID:      idString(l.ListingID),
			APIResponse:         rawProduct,
			ParentResponse:      parent,
		}
		if len(p.Offerings) > 0 {
			f.Quantity = p.Offerings[0].Quantity
			if pr := p.Offerings[0].Price; pr != nil {
				f.SalePrice = pr.decimal()
				f.SaleCurrency = pr.CurrencyCode
			}
		}
		if err := c.Upsert(ctx, f, placement, opts, stats); err != nil {
			return err
		}
	}
	return nil
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func (m money) decimal() decimal.Decimal {
	if m.Divisor == 0 {
		return decimal.NewFromInt(m.Amount)
	}
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(m.Divisor))
}

// attributes joins the values of a property with "-" and properties with " ".
func attributes(values []propertyValue) string {
	parts := make([]string, 0, len(values))
	for _, pv := range values {
		vs := make([]string, 0, len(pv.Values))
		for _, v := range pv.Values {
			vs = append(vs, strings.ReplaceAll(v, " ", ""))
		}
		parts = append(parts, strings.Join(vs, "-"))
	}
	return strings.Join(parts, " ")
}

func withoutInventory(raw json.RawMessage) (json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: listing: %v", core.ErrData, err)
	}
	delete(m, "inventory")
	return json.Marshal(m)
}

// DownloadOrders stores shop receipts modified since the newest stored one.
func (c *Connector) DownloadOrders(ctx context.Context) (int, error) {
	last, err := c.LastOrderValue(ctx, "updated_timestamp")
	if err != nil {
		return 0, err
	}
	orders := map[string]json.RawMessage{}
	err = transport.ByOffset(ctx, pageSize, func(ctx context.Context, offset, limit int) (int, int, error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))
		if last != "" {
			q.Set("min_last_modified", last)
		}
		var page receiptsPage
		if err := c.fetcher.JSON(ctx, transport.Request{Operation: "receipts", Path: c.shopPath("/receipts"), Query: q}, &page); err != nil {
			return 0, 0, err
		}
		for _, raw := range page.Results {
			var id receiptID
			if err := json.Unmarshal(raw, &id); err != nil || id.ReceiptID == 0 {
				c.Log.Warn("receipt without id skipped")
				continue
			}
			orders[idString(id.ReceiptID)] = raw
		}
		return len(page.Results), page.Count, nil
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
	return c.rewriteInventory(ctx, v, "SetInventory", func(o *offeringUpdate) {
		o.Quantity = qty
	})
}

func (c *Connector) SetPrice(ctx context.Context, v *models.Variant, price decimal.Decimal, currency string, _ services.WriteOptions) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("%w: price %s", core.ErrData, price)
	}
	amount := price.String()
	if currency != "" && v.SaleCurrency != "" {
		converted, err := c.Convert(ctx, price.String(), currency, v.SaleCurrency)
		if err != nil {
			return err
		}
		amount = converted
	}
	return c.rewriteInventory(ctx, v, "SetPrice", func(o *offeringUpdate) {
		o.Price = json.Number(amount)
	})
}

// rewriteInventory reads the listing inventory and writes it back with one product changed.
func (c *Connector) rewriteInventory(ctx context.Context, v *models.Variant, auditDir string, change func(*offeringUpdate)) error {
	if v.StoreProductID == "" {
		return fmt.Errorf("%w: variant %s has no listing id", core.ErrData, v.UniqueMarketplaceID)
	}
	path := "/v3/application/listings/" + url.PathEscape(v.StoreProductID) + "/inventory"

	var current inventory
	if err := c.fetcher.JSON(ctx, transport.Request{Operation: "listing/inventory", Path: path}, &current); err != nil {
		return err
	}
	update, found, err := buildUpdate(current, v.UniqueMarketplaceID, change)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: product %s not in listing %s", core.ErrData, v.UniqueMarketplaceID, v.StoreProductID)
	}

	resp, err := c.fetcher.Do(ctx, transport.Request{Operation: "listing/inventory:put", Method: http.MethodPut, Path: path, JSON: update})
	var body json.RawMessage
	if resp != nil {
		body = resp.Body
	}
	c.Audit(auditDir, fmt.Sprintf("%s_%s.json", v.UniqueMarketplaceID, c.Now().Format("20060102150405")), update, body, err)
	return err
}

func buildUpdate(current inventory, productID string, change func(*offeringUpdate)) (inventoryUpdate, bool, error) {
	var out inventoryUpdate
	found := false
	for _, raw := range current.Products {
		var p product
		if err := json.Unmarshal(raw, &p); err != nil {
			return out, false, fmt.Errorf("%w: inventory product: %v", core.ErrData, err)
		}
		if p.IsDeleted {
			continue
		}
		pu := productUpdate{Sku: p.Sku, PropertyValues: []propertyUpdate{}}
		for _, pv := range p.PropertyValues {
			pu.PropertyValues = append(pu.PropertyValues, propertyUpdate(pv))
		}
		for _, o := range p.Offerings {
			ou := offeringUpdate{Quantity: o.Quantity, IsEnabled: o.IsEnabled, Price: "0"}
			if o.Price != nil {
				ou.Price = json.Number(o.Price.decimal().String())
			}
			if idString(p.ProductID) == productID {
				change(&ou)
				found = true
			}
			pu.Offerings = append(pu.Offerings, ou)
		}
		out.Products = append(out.Products, pu)
	}
	return out, found, nil
}

var _ services.Connector = (*Connector)(nil)
