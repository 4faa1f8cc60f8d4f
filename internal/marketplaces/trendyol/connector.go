package trendyol

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
	baseURL       = "https://apigw.trendyol.com"
	productPage   = 100
	orderPage     = 200
	orderWindow   = 14 * 24 * time.Hour
	orderMaxBack  = 90 * 24 * time.Hour
	maxStock      = 20000
	priceCurrency = "TRY"
)

// variantAttributes are the attribute names that tell variants of one model apart.
var variantAttributes = map[string]bool{
	"Renk": true, "Beden": true, "Boyut": true, "Ebat": true, "Color": true, "Size": true,
}

type Connector struct {
	*connector.Base
	fetcher  *transport.Fetcher
	sellerID string
}

func New(mp *models.Marketplace, deps connector.Deps) (*Connector, error) {
	base, err := connector.NewBase(mp, models.MarketplaceTrendyol, deps, 100*time.Millisecond,
		"seller_id", "api_key", "api_secret")
	if err != nil {
		return nil, err
	}
	sellerID := base.Creds.Get("seller_id")
	engine := auth.NewBasicAuth(base.Creds.Get("api_key"), base.Creds.Get("api_secret"))
	return &Connector{
		Base:     base,
		fetcher:  base.NewFetcher(baseURL, engine, sellerID+" - SelfIntegration"),
		sellerID: sellerID,
	}, nil
}

func (c *Connector) path(group, suffix string) string {
	return fmt.Sprintf("/integration/%s/sellers/%s%s", group, url.PathEscape(c.sellerID), suffix)
}

func (c *Connector) Download(ctx context.Context, force bool) (int, error) {
	var listings []json.RawMessage
	if ok, err := c.LoadListings(force, &listings); err != nil {
		return 0, err
	} else if ok {
		return len(listings), nil
	}

	err := transport.ByPage(ctx, 0, productPage, func(ctx context.Context, pageNo int) (int, bool, error) {
		q := url.Values{}
		q.Set("page", strconv.Itoa(pageNo))
		q.Set("size", strconv.Itoa(productPage))
		var p page
		if err := c.fetcher.JSON(ctx, transport.Request{Operation: "products", Path: c.path("product", "/products"), Query: q}, &p); err != nil {
			return 0, false, err
		}
		listings = append(listings, p.Content...)
		return len(p.Content), pageNo+1 >= p.TotalPages, nil
	})
	if err != nil {
		return 0, err
	}
	c.Log.Log("%d products downloaded", len(listings))
	return len(listings), c.SaveListings(listings)
}

func (c *Connector) Import(ctx context.Context, opts services.ImportOptions) (services.ImportStats, error) {
	var stats services.ImportStats
	var listings []json.RawMessage
	if _, err := c.Store.GetListings(0, &listings); err != nil {
		return stats, err
	}
	for _, raw := range listings {
		var p product
		if err := json.Unmarshal(raw, &p); err != nil {
			stats.Skipped++
			continue
		}
		price, err := connector.Decimal(p.SalePrice.String())
		if err != nil {
			stats.Skipped++
			continue
		}
		var values []string
		for _, a := range p.Attributes {
			if variantAttributes[a.AttributeName] && a.AttributeValue != "" {
				values = append(values, a.AttributeValue)
			}
		}
		f := importer.Fields{
			UniqueMarketplaceID: p.ID,
			Sku:                 p.StockCode,
			Ean:                 p.Barcode,
			Title:               p.Title,
			Attributes:          strings.Join(values, "-"),
			SalePrice:           price,
			SaleCurrency:        p.CurrencyType,
			Quantity:            p.Quantity,
			Published:           p.Approved && p.OnSale && !p.Archived,
			URL:                 p.ProductURL,
			StoreProductID:      p.ProductMainID,
			VariantCode:         p.Barcode,
			APIResponse:         raw,
		}
		if len(p.Images) > 0 {
			f.ImageURL = p.Images[0].URL
		}
		if err := c.Upsert(ctx, f, []string{p.CategoryName, p.ProductMainID}, opts, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// DownloadOrders walks shipment packages in 14-day windows since the last stored change.
func (c *Connector) DownloadOrders(ctx context.Context) (int, error) {
	var last time.Time
	raw, err := c.LastOrderValue(ctx, "lastModifiedDate")
	if err != nil {
		return 0, err
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		last = time.UnixMilli(ms)
	}

	total := 0
	for _, w := range connector.OrderWindows(last, orderMaxBack, orderWindow, c.Now()) {
		orders := map[string]json.RawMessage{}
		err := transport.ByPage(ctx, 0, orderPage, func(ctx context.Context, pageNo int) (int, bool, error) {
			q := url.Values{}
			q.Set("startDate", strconv.FormatInt(w.From.UnixMilli(), 10))
			q.Set("endDate", strconv.FormatInt(w.To.UnixMilli(), 10))
			q.Set("page", strconv.Itoa(pageNo))
			q.Set("size", strconv.Itoa(orderPage))
			q.Set("orderByField", "PackageLastModifiedDate")
			var p page
			if err := c.fetcher.JSON(ctx, transport.Request{Operation: "orders", Path: c.path("order", "/orders"), Query: q}, &p); err != nil {
				return 0, false, err
			}
			for _, r := range p.Content {
				var sp shipmentPackage
				if err := json.Unmarshal(r, &sp); err != nil || sp.ID == "" {
					continue
				}
				orders[sp.ID.String()] = r
			}
			return len(p.Content), pageNo+1 >= p.TotalPages, nil
		})
		if err != nil {
			return total, err
		}
		n, err := c.SaveOrders(ctx, orders)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *Connector) DownloadInventory(context.Context) (int, error) {
	return 0, c.Unsupported("inventory")
}

func (c *Connector) SetInventory(ctx context.Context, v *models.Variant, qty int, _ services.WriteOptions) error {
	if err := connector.CheckRange("quantity", qty, 0, maxStock); err != nil {
		return err
	}
	return c.priceInventory(ctx, "SetInventory", priceInventoryItem{Barcode: v.Ean, Quantity: &qty})
}

func (c *Connector) SetPrice(ctx context.Context, v *models.Variant, price decimal.Decimal, currency string, _ services.WriteOptions) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("%w: price %s", core.ErrData, price)
	}
	amount, err := c.Convert(ctx, price.String(), currency, priceCurrency)
	if err != nil {
		return err
	}
	n := json.Number(amount)
	return c.priceInventory(ctx, "SetPrice", priceInventoryItem{Barcode: v.Ean, SalePrice: &n, ListPrice: &n})
}

// priceInventory posts the batch write and then reads its batch request status.
func (c *Connector) priceInventory(ctx context.Context, dir string, item priceInventoryItem) error {
	if item.Barcode == "" {
		return fmt.Errorf("%w: variant without barcode", core.ErrData)
	}
	body := priceInventoryRequest{Items: []priceInventoryItem{item}}
	name := fmt.Sprintf("%s_%s.json", item.Barcode, c.Now().Format("20060102150405"))

	var batch batchRequest
	err := c.fetcher.JSON(ctx, transport.Request{
		Operation: "price-and-inventory", Method: http.MethodPost,
		Path: c.path("inventory", "/products/price-and-inventory"), JSON: body,
	}, &batch)
	if err != nil {
		c.Audit(dir, name, body, nil, err)
		return err
	}
	var result json.RawMessage
	if batch.BatchRequestID != "" {
		err = c.fetcher.JSON(ctx, transport.Request{
			Operation: "batch-requests",
			Path:      c.path("product", "/products/batch-requests/"+url.PathEscape(batch.BatchRequestID)),
		}, &result)
	}
	c.Audit(dir, name, body, map[string]interface{}{"batch": batch, "result": result}, err)
	return err
}

var _ services.Connector = (*Connector)(nil)
