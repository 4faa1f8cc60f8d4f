package ozon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
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
	baseURL      = "https://api-seller.ozon.ru"
	listLimit    = 1000
	infoBucket   = 100
	postingLimit = 100
	stockLimit   = 1000
	maxStock     = 99999
	country      = "RU"
)

type Connector struct {
	*connector.Base
	fetcher *transport.Fetcher
}

func New(mp *models.Marketplace, deps connector.Deps) (*Connector, error) {
	base, err := connector.NewBase(mp, models.MarketplaceOzon, deps, 100*time.Millisecond, "client_id", "api_key")
	if err != nil {
		return nil, err
	}
	engine := auth.NewHeaderAuth(map[string]string{
		"Client-Id": base.Creds.Get("client_id"),
		"Api-Key":   base.Creds.Get("api_key"),
	})
	return &Connector{
		Base:    base,
		fetcher: base.NewFetcher(base.BaseURL(baseURL), engine, ""),
	}, nil
}

func (c *Connector) post(ctx context.Context, operation, path string, body, out interface{}) error {
	return c.fetcher.JSON(ctx, transport.Request{Operation: operation, Method: http.MethodPost, Path: path, JSON: body}, out)
}

// Download walks the product list by last_id and fetches product info for
// every 100 ids.
func (c *Connector) Download(ctx context.Context, force bool) (int, error) {
	var listings []json.RawMessage
	if ok, err := c.LoadListings(force, &listings); err != nil {
		return 0, err
	} else if ok {
		return len(listings), nil
	}

	bucket := transport.NewBucket(infoBucket, func(ctx context.Context, ids []int64) error {
		var info productInfoResponse
		if err := c.post(ctx, "product/info/list", "/v3/product/info/list", productInfoRequest{ProductID: ids}, &info); err != nil {
			return err
		}
		listings = append(listings, info.Items...)
		return nil
	})
	err := transport.ByToken(ctx, "", func(ctx context.Context, lastID string) (string, error) {
		req := productListRequest{LastID: lastID, Limit: listLimit}
		req.Filter.Visibility = "ALL"
		var page productListResponse
		if err := c.post(ctx, "product/list", "/v3/product/list", req, &page); err != nil {
			return "", err
		}
		for _, item := range page.Result.Items {
			if err := bucket.Add(ctx, item.ProductID); err != nil {
				return "", err
			}
		}
		if len(page.Result.Items) < listLimit {
			return "", nil
		}
		return page.Result.LastID, nil
	})
	if err == nil {
		err = bucket.Flush(ctx)
	}
	if err != nil {
		return 0, err
	}
	c.Log.Log("%d products downloaded", len(listings))
	return len(listings), c.SaveListings(listings)
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
			var p productInfo
			if err := json.Unmarshal(raw, &p); err != nil || p.ID == 0 {
				stats.Skipped++
				continue
			}
			if err := c.Upsert(ctx, c.fields(ctx, p, raw), []string{idText(p.DescriptionCategoryID), p.Name}, opts, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	return stats, err
}

func (c *Connector) fields(ctx context.Context, p productInfo, raw json.RawMessage) importer.Fields {
	f := importer.Fields{
		UniqueMarketplaceID: idText(p.ID),
		Sku:                 p.OfferID,
		Title:               p.Name,
		SaleCurrency:        p.CurrencyCode,
		Published:           !p.IsArchived,
		StoreProductID:      idText(p.Sku),
		APIResponse:         raw,
	}
	if len(p.Barcodes) > 0 {
		f.Ean = p.Barcodes[0]
	}
	if price, err := connector.Decimal(p.Price); err == nil {
		f.SalePrice = price
	} else {
		c.Log.Warn("product %d price %q: %v", p.ID, p.Price, err)
	}
	for _, s := range p.Stocks.Stocks {
		f.Quantity += s.Present - s.Reserved
	}
	if p.Sku != 0 {
		f.URL = "https://www.ozon.ru/product/" + idText(p.Sku)
	}
	switch {
	case len(p.PrimaryImage) > 0:
		f.ImageURL = c.CacheImage(ctx, p.PrimaryImage[0])
	case len(p.Images) > 0:
		f.ImageURL = c.CacheImage(ctx, p.Images[0])
	}
	return f
}

func idText(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// DownloadOrders stores FBS postings processed since the newest stored one.
func (c *Connector) DownloadOrders(ctx context.Context) (int, error) {
	since, err := c.LastOrderTime(ctx, "in_process_at")
	if err != nil {
		return 0, err
	}
	now := c.Now().UTC()
	if earliest := now.AddDate(0, -3, 0); since.Before(earliest) {
		since = earliest
	}

	orders := map[string]json.RawMessage{}
	err = transport.ByOffset(ctx, postingLimit, func(ctx context.Context, offset, limit int) (int, int, error) {
		req := postingsRequest{Dir: "ASC", Limit: limit, Offset: offset}
		req.Filter.Since = since.UTC().Format(time.RFC3339)
		req.Filter.To = now.Format(time.RFC3339)
		var page postingsResponse
		if err := c.post(ctx, "posting/fbs/list", "/v3/posting/fbs/list", req, &page); err != nil {
			return 0, 0, err
		}
		for _, raw := range page.Result.Postings {
			var p posting
			if err := json.Unmarshal(raw, &p); err != nil || p.PostingNumber == "" {
				continue
			}
			orders[p.PostingNumber] = raw
		}
		n := len(page.Result.Postings)
		if !page.Result.HasNext {
			return n, offset + n, nil
		}
		return n, -1, nil
	})
	if err != nil {
		return 0, err
	}
	return c.SaveOrders(ctx, orders)
}

// DownloadInventory stores free-to-sell stock per warehouse.
func (c *Connector) DownloadInventory(ctx context.Context) (int, error) {
	var records []models.InventoryRecord
	err := transport.ByOffset(ctx, stockLimit, func(ctx context.Context, offset, limit int) (int, int, error) {
		var page warehouseStocksResponse
		req := warehouseStocksRequest{Limit: limit, Offset: offset, WarehouseType: "ALL"}
		if err := c.post(ctx, "analytics/stock_on_warehouses", "/v2/analytics/stock_on_warehouses", req, &page); err != nil {
			return 0, 0, err
		}
		for _, raw := range page.Result.Rows {
			var row warehouseStock
			if err := json.Unmarshal(raw, &row); err != nil {
				c.Log.Warn("malformed stock row skipped: %v", err)
				continue
			}
			records = append(records, models.InventoryRecord{
				MarketplaceID: c.Marketplace().ID,
				Country:       country,
				Sku:           row.ItemCode,
				ExternalID:    idText(row.Sku),
				Quantity:      row.FreeToSellAmount,
				Detail:        raw,
			})
		}
		return len(page.Result.Rows), -1, nil
	})
	if err != nil {
		return 0, err
	}
	if err := c.Store.Put(country+"_inventory.json", records); err != nil {
		c.Log.Warn("inventory not cached: %v", err)
	}
	return len(records), c.ReplaceInventory(ctx, country, records)
}

// SetInventory needs a warehouse: WriteOptions.LocationID or the warehouse_id credential.
func (c *Connector) SetInventory(ctx context.Context, v *models.Variant, qty int, opts services.WriteOptions) error {
	if err := connector.CheckRange("quantity", qty, 0, maxStock); err != nil {
		return err
	}
	productID, err := strconv.ParseInt(v.UniqueMarketplaceID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: product id %q", core.ErrData, v.UniqueMarketplaceID)
	}
	warehouse := opts.LocationID
	if warehouse == "" {
		warehouse = c.Creds.Get("warehouse_id")
	}
	warehouseID, err := strconv.ParseInt(warehouse, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: no warehouse for stock update", core.ErrConfig)
	}
	req := map[string][]stockUpdate{"stocks": {{
		OfferID: v.Sku, ProductID: productID, Stock: qty, WarehouseID: warehouseID,
	}}}
	return c.importCall(ctx, "SetInventory", "/v2/products/stocks", v, req)
}

func (c *Connector) SetPrice(ctx context.Context, v *models.Variant, price decimal.Decimal, currency string, _ services.WriteOptions) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("%w: price %s", core.ErrData, price)
	}
	productID, err := strconv.ParseInt(v.UniqueMarketplaceID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: product id %q", core.ErrData, v.UniqueMarketplaceID)
	}
	target := v.SaleCurrency
	if target == "" {
		target = "RUB"
	}
	value, err := c.Convert(ctx, price.String(), currency, target)
	if err != nil {
		return err
	}
	req := map[string][]priceUpdate{"prices": {{
		OfferID: v.Sku, ProductID: productID, Price: value, OldPrice: "0", CurrencyCode: target,
	}}}
	return c.importCall(ctx, "SetPrice", "/v1/product/import/prices", v, req)
}

func (c *Connector) importCall(ctx context.Context, auditDir, path string, v *models.Variant, req interface{}) error {
	var resp importResult
	err := c.post(ctx, path, path, req, &resp)
	if err == nil {
		for _, r := range resp.Result {
			if !r.Updated {
				reason := "not updated"
				if len(r.Errors) > 0 {
					reason = r.Errors[0].Code + ": " + r.Errors[0].Message
				}
				err = fmt.Errorf("%w: %s %s", core.ErrData, r.OfferID, reason)
				break
			}
		}
	}
	c.Audit(auditDir, fmt.Sprintf("%s_%s.json", v.UniqueMarketplaceID, c.Now().Format("20060102150405")), req, resp, err)
	return err
}

var _ services.Connector = (*Connector)(nil)
