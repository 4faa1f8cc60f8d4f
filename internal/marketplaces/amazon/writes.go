package amazon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/internal/transport"
)

const (
	listingsPath = "/listings/2021-08-01/items/"
	maxStock     = 99999
)

// target resolves seller SKU and country of a write from the options and the
// stored report row.
func (c *Connector) target(v *models.Variant, opts services.WriteOptions) (string, string, error) {
	sku := opts.Sku
	if sku == "" {
		sku = v.Sku
	}
	country := strings.ToUpper(opts.Country)
	if country == "" {
		country = v.ResponseField("country")
	}
	if country == "" {
		country = c.main
	}
	if sku == "" {
		return "", "", fmt.Errorf("%w: variant %s has no seller sku", core.ErrData, v.UniqueMarketplaceID)
	}
	if _, err := lookup(country); err != nil {
		return "", "", fmt.Errorf("%w: %v", core.ErrData, err)
	}
	return sku, country, nil
}

func productType(v *models.Variant) string {
	if pt := v.ResponseField("productType"); pt != "" {
		return pt
	}
	return "PRODUCT"
}

func (c *Connector) SetInventory(ctx context.Context, v *models.Variant, qty int, opts services.WriteOptions) error {
	if err := connector.CheckRange("quantity", qty, 0, maxStock); err != nil {
		return err
	}
	sku, country, err := c.target(v, opts)
	if err != nil {
		return err
	}
	req := patchRequest{ProductType: productType(v), Patches: []patch{{
		Op:   "replace",
		Path: "/attributes/fulfillment_availability",
		Value: []interface{}{map[string]interface{}{
			"fulfillment_channel_code": "DEFAULT",
			"quantity":                 qty,
		}},
	}}}
	return c.patch(ctx, "SetInventory", sku, country, req)
}

func (c *Connector) SetPrice(ctx context.Context, v *models.Variant, price decimal.Decimal, currency string, opts services.WriteOptions) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("%w: price %s", core.ErrData, price)
	}
	sku, country, err := c.target(v, opts)
	if err != nil {
		return err
	}
	m, _ := lookup(country)
	value, err := c.Convert(ctx, price.String(), currency, m.Currency)
	if err != nil {
		return err
	}
	req := patchRequest{ProductType: productType(v), Patches: []patch{{
		Op:   "replace",
		Path: "/attributes/purchasable_offer",
		Value: []interface{}{map[string]interface{}{
			"marketplace_id": m.ID,
			"currency":       m.Currency,
			"our_price": []interface{}{map[string]interface{}{
				"schedule": []interface{}{map[string]interface{}{"value_with_tax": value}},
			}},
		}},
	}}}
	return c.patch(ctx, "SetPrice", sku, country, req)
}

func (c *Connector) patch(ctx context.Context, auditDir, sku, country string, req patchRequest) error {
	q := url.Values{"marketplaceIds": {c.marketplaceID(country)}}
	path := listingsPath + url.PathEscape(c.sellerID) + "/" + url.PathEscape(sku)
	var resp patchResponse
	err := c.fetcher.JSON(ctx, transport.Request{
		Operation: "listings/items:patch", Method: http.MethodPatch, Path: path, Query: q, JSON: req,
	}, &resp)
	if err == nil && resp.Status != "ACCEPTED" {
		detail := resp.Status
		for _, issue := range resp.Issues {
			if issue.Severity == "ERROR" {
				detail = issue.Code + ": " + issue.Message
				break
			}
		}
		err = fmt.Errorf("%w: listing %s/%s rejected: %s", core.ErrData, country, sku, detail)
	}
	c.Audit(auditDir, fmt.Sprintf("%s_%s_%s.json", sku, country, c.Now().Format("20060102150405")), req, resp, err)
	return err
}
