package ciceksepeti

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
	baseURL  = "https://apis.ciceksepeti.com"
	pageSize = 60
	// активный статус листинга
	statusLive = "YAYINDA"
	currency   = "TL"
	maxStock   = 20000
)

type Connector struct {
	*connector.Base
	fetcher *transport.Fetcher
}

func New(mp *models.Marketplace, deps connector.Deps) (*Connector, error) {
	base, err := connector.NewBase(mp, models.MarketplaceCiceksepeti, deps, time.Second, "api_key")
	if err != nil {
		return nil, err
	}
	engine := auth.NewHeaderAuth(map[string]string{"x-api-key": base.Creds.Get("api_key")})
	return &Connector{Base: base, fetcher: base.NewFetcher(baseURL, engine, "")}, nil
}

func (c *Connector) Download(ctx context.Context, force bool) (int, error) {
	var listings []json.RawMessage
	if ok, err := c.LoadListings(force, &listings); err != nil {
		return 0, err
	} else if ok {
		return len(listings), nil
	}

	err := transport.ByPage(ctx, 1, pageSize, func(ctx context.Context, page int) (int, bool, error) {
		q := url.Values{}
		q.Set("PageNumber", strconv.Itoa(page))
		q.Set("PageSize", strconv.Itoa(pageSize))
		var resp productsPage
		if err := c.fetcher.JSON(ctx, transport.Request{Operation: "products", Path: "/api/v1/Products", Query: q}, &resp); err != nil {
			return 0, false, err
		}
		listings = append(listings, resp.Products...)
		return len(resp.Products), false, nil
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
		price, err := connector.Decimal(p.SalesPrice.String())
		if err != nil {
			c.Log.Warn("%s: %v", p.ProductCode, err)
			stats.Skipped++
			continue
		}
		f := importer.Fields{
			UniqueMarketplaceID: p.ProductCode,
			Sku:                 p.StockCode,
			Ean:                 p.Barcode,
			Title:               p.ProductName,
			Attributes:          attributes(p.Attributes),
			SalePrice:           price,
			SaleCurrency:        currency,
			Quantity:            p.StockQuantity,
			Published:           p.IsActive && p.ProductStatusType == statusLive,
			URL:                 p.Link,
			StoreProductID:      p.MainProductCode,
			APIResponse:         raw,
		}
		if len(p.Images) > 0 {
			f.ImageURL = p.Images[0]
		}
		if err := c.Upsert(ctx, f, []string{p.MainProductCode}, opts, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func attributes(attrs []attribute) string {
	values := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if v := strings.TrimSpace(a.Value); v != "" {
			values = append(values, v)
		}
	}
	return strings.Join(values, "-")
}

func (c *Connector) DownloadOrders(context.Context) (int, error) {
	return 0, c.Unsupported("orders")
}

func (c *Connector) DownloadInventory(context.Context) (int, error) {
	return 0, c.Unsupported("inventory")
}

func (c *Connector) SetInventory(ctx context.Context, v *models.Variant, qty int, _ services.WriteOptions) error {
	if err := connector.CheckRange("quantity", qty, 0, maxStock); err != nil {
		return err
	}
	return c.update(ctx, "SetInventory", stockPriceItem{StockCode: v.Sku, StockQuantity: &qty})
}

func (c *Connector) SetPrice(ctx context.Context, v *models.Variant, price decimal.Decimal, cur string, _ services.WriteOptions) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("%w: price %s", core.ErrData, price)
	}
	amount, err := c.Convert(ctx, price.String(), cur, currency)
	if err != nil {
		return err
	}
	n := json.Number(amount)
	return c.update(ctx, "SetPrice", stockPriceItem{StockCode: v.Sku, ListPrice: &n, SalesPrice: &n})
}

// update sends one price/stock item and checks the batch it was queued in.
func (c *Connector) update(ctx context.Context, dir string, item stockPriceItem) error {
	if item.StockCode == "" {
		return fmt.Errorf("%w: variant without stock code", core.ErrData)
	}
	body := stockPriceRequest{Items: []stockPriceItem{item}}
	name := fmt.Sprintf("%s_%s.json", item.StockCode, c.Now().Format("20060102150405"))

	var batch batchResponse
	err := c.fetcher.JSON(ctx, transport.Request{
		Operation: "products/price-and-stock", Method: http.MethodPut,
		Path: "/api/v1/Products/price-and-stock", JSON: body,
	}, &batch)
	if err != nil {
		c.Audit(dir, name, body, nil, err)
		return err
	}

	var status json.RawMessage
	if batch.BatchID != "" {
		err = c.fetcher.JSON(ctx, transport.Request{
			Operation: "products/batch-status",
			Path:      "/api/v1/Products/batch-status/" + url.PathEscape(batch.BatchID),
		}, &status)
	}
	c.Audit(dir, name, body, map[string]interface{}{"batch": batch, "status": status}, err)
	return err
}

var _ services.Connector = (*Connector)(nil)
