package hepsiburada

import (
	"context"
	"encoding/json"
	"errors"
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
	listingURL = "https://listing-external.hepsiburada.com"
	productURL = "https://mpop.hepsiburada.com"
	orderURL   = "https://oms-external.hepsiburada.com"
	userAgent  = "colorfullworlds_dev"
	pageSize   = 10
	orderLimit = 50
	currency   = "TRY"
	maxStock   = 20000
)

type Connector struct {
	*connector.Base
	listings *transport.Fetcher
	products *transport.Fetcher
	orders   *transport.Fetcher
	merchant string
}

func New(mp *models.Marketplace, deps connector.Deps) (*Connector, error) {
	base, err := connector.NewBase(mp, models.MarketplaceHepsiburada, deps, 100*time.Millisecond, "seller_id", "service_key")
	if err != nil {
		return nil, err
	}
	merchant := base.Creds.Get("seller_id")
	engine := auth.NewBasicAuth(merchant, base.Creds.Get("service_key"))
	return &Connector{
		Base:     base,
		listings: base.NewFetcher(listingURL, engine, userAgent),
		products: base.NewFetcher(productURL, engine, userAgent),
		orders:   base.NewFetcher(orderURL, engine, userAgent),
		merchant: merchant,
	}, nil
}

func (c *Connector) listingPath(suffix string) string {
	return "/listings/merchantid/" + url.PathEscape(c.merchant) + suffix
}

// Download pages through the listings until totalCount and attaches the product
// attributes of every hepsiburada SKU.
func (c *Connector) Download(ctx context.Context, force bool) (int, error) {
	var listings []map[string]json.RawMessage
	if ok, err := c.LoadListings(force, &listings); err != nil {
		return 0, err
	} else if ok {
		return len(listings), nil
	}

	err := transport.ByOffset(ctx, pageSize, func(ctx context.Context, offset, limit int) (int, int, error) {
		q := url.Values{"offset": {strconv.Itoa(offset)}, "limit": {strconv.Itoa(limit)}}
		var page listingsPage
		if err := c.listings.JSON(ctx, transport.Request{Operation: "listings", Path: c.listingPath(""), Query: q}, &page); err != nil {
			return 0, 0, err
		}
		for _, raw := range page.Listings {
			var m map[string]json.RawMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				continue
			}
			listings = append(listings, m)
		}
		return len(page.Listings), page.TotalCount, nil
	})
	if err != nil {
		return 0, err
	}
	if len(listings) == 0 {
		c.Log.Warn("no listings downloaded")
		return 0, nil
	}

	for _, l := range listings {
		var sku string
		if err := json.Unmarshal(l["hepsiburadaSku"], &sku); err != nil || sku == "" {
			continue
		}
		attrs, err := c.product(ctx, sku)
		if err != nil {
			return 0, err
		}
		l["attributes"] = attrs
	}
	c.Log.Log("%d listings downloaded", len(listings))
	return len(listings), c.SaveListings(listings)
}

// product returns the catalog record of one hepsiburada SKU, {} when unknown.
func (c *Connector) product(ctx context.Context, hbSku string) (json.RawMessage, error) {
	q := url.Values{"page": {"0"}, "size": {"1"}, "hbSku": {hbSku}}
	var resp productsResponse
	err := c.products.JSON(ctx, transport.Request{
		Operation: "products/all-products-of-merchant",
		Path:      "/product/api/products/all-products-of-merchant/" + url.PathEscape(c.merchant),
		Query:     q,
	}, &resp)
	var se *transport.StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode < 500:
		c.Log.Warn("product %s: %v", hbSku, err)
		return json.RawMessage(`{}`), nil
	case err != nil:
		return nil, err
	case len(resp.Data) == 0:
		return json.RawMessage(`{}`), nil
	}
	return resp.Data[0], nil
}

func (c *Connector) Import(ctx context.Context, opts services.ImportOptions) (services.ImportStats, error) {
	var stats services.ImportStats
	var listings []json.RawMessage
	if _, err := c.Store.GetListings(0, &listings); err != nil {
		return stats, err
	}
	for _, raw := range listings {
		var l listing
		if err := json.Unmarshal(raw, &l); err != nil {
			stats.Skipped++
			continue
		}
		price, err := connector.Decimal(l.Price.String())
		if err != nil {
			stats.Skipped++
			continue
		}
		info := l.Attributes
		if info == nil {
			info = &productInfo{}
		}
		values := make([]string, 0, len(info.VariantTypeAttributes))
		for _, a := range info.VariantTypeAttributes {
			values = append(values, a.Value)
		}
		f := importer.Fields{
			UniqueMarketplaceID: l.HepsiburadaSku,
			Sku:                 l.MerchantSku,
			Ean:                 info.Barcode,
			Title:               info.ProductName,
			Attributes:          strings.Join(values, "-"),
			SalePrice:           price,
			SaleCurrency:        currency,
			Quantity:            l.AvailableStock,
			Published:           l.IsSalable,
			URL:                 "https://www.hepsiburada.com/-p-" + l.HepsiburadaSku,
			StoreProductID:      l.HepsiburadaSku,
			APIResponse:         raw,
		}
		if len(info.Images) > 0 {
			f.ImageURL = info.Images[0]
		}
		if err := c.Upsert(ctx, f, []string{info.VariantGroupID}, opts, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (c *Connector) DownloadOrders(ctx context.Context) (int, error) {
	orders := map[string]json.RawMessage{}
	err := transport.ByOffset(ctx, orderLimit, func(ctx context.Context, offset, limit int) (int, int, error) {
		q := url.Values{"offset": {strconv.Itoa(offset)}, "limit": {strconv.Itoa(limit)}}
		var page ordersPage
		if err := c.orders.JSON(ctx, transport.Request{Operation: "orders", Path: "/orders/merchantid/" + url.PathEscape(c.merchant), Query: q}, &page); err != nil {
			return 0, 0, err
		}
		for _, raw := range page.Items {
			var ref orderRef
			if err := json.Unmarshal(raw, &ref); err != nil {
				continue
			}
			id := ref.OrderNumber
			if id == "" {
				id = ref.ID
			}
			if id != "" {
				orders[id] = raw
			}
		}
		return len(page.Items), page.TotalCount, nil
	})
	if err != nil {
		return 0, err
	}
	return c.SaveOrders(ctx, orders)
}

func (c *Connector) DownloadInventory(context.Context) (int, error) {
	return 0, c.Unsupported("inventory")
}

func skus(v *models.Variant) (string, string, error) {
	var info productInfo
	if err := v.ResponseObject("attributes", &info); err != nil {
		return "", "", fmt.Errorf("%w: %v", core.ErrData, err)
	}
	if info.HbSku == "" || info.MerchantSku == "" {
		return "", "", fmt.Errorf("%w: variant %s has no hbSku/merchantSku", core.ErrData, v.UniqueMarketplaceID)
	}
	return info.HbSku, info.MerchantSku, nil
}

func (c *Connector) SetInventory(ctx context.Context, v *models.Variant, qty int, _ services.WriteOptions) error {
	if err := connector.CheckRange("quantity", qty, 0, maxStock); err != nil {
		return err
	}
	hbSku, merchantSku, err := skus(v)
	if err != nil {
		return err
	}
	body := []stockUpload{{HepsiburadaSku: hbSku, MerchantSku: merchantSku, AvailableStock: qty}}
	return c.upload(ctx, "stock-uploads", "SetInventory", hbSku, body)
}

func (c *Connector) SetPrice(ctx context.Context, v *models.Variant, price decimal.Decimal, cur string, _ services.WriteOptions) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("%w: price %s", core.ErrData, price)
	}
	if cur == "" {
		cur = v.SaleCurrency
	}
	amount, err := c.Convert(ctx, price.String(), cur, currency)
	if err != nil {
		return err
	}
	hbSku, merchantSku, err := skus(v)
	if err != nil {
		return err
	}
	body := []priceUpload{{HepsiburadaSku: hbSku, MerchantSku: merchantSku, Price: json.Number(amount)}}
	return c.upload(ctx, "price-uploads", "SetPrice", hbSku, body)
}

// upload posts a stock or price upload and stores it together with its batch result.
func (c *Connector) upload(ctx context.Context, kind, dir, hbSku string, body interface{}) error {
	name := fmt.Sprintf("%s-%s.json", hbSku, c.Now().Format("2006-01-02-15-04-05"))
	var up uploadResponse
	err := c.listings.JSON(ctx, transport.Request{
		Operation: kind, Method: http.MethodPost, Path: c.listingPath("/" + kind),
		JSON: body, ContentType: "application/*+json",
	}, &up)
	if err != nil {
		c.Audit(dir, name, body, nil, err)
		return err
	}
	var result json.RawMessage
	if up.ID != "" {
		err = c.listings.JSON(ctx, transport.Request{
			Operation: kind + "/result", Path: c.listingPath("/" + kind + "/id/" + url.PathEscape(up.ID)),
		}, &result)
	}
	c.Audit(dir, name, body, map[string]interface{}{"upload": up, "batchRequestResult": result}, err)
	return err
}

var _ services.Connector = (*Connector)(nil)
