package bol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/internal/transport"
)

const (
	orderPage     = 50
	inventorySize = 50
	orderMaxBack  = 90 * 24 * time.Hour
	maxStock      = 999
	defaultRegion = "NL"
)

func decodeObject(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	out := map[string]interface{}{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrData, err)
	}
	return out, nil
}

func items(obj map[string]interface{}) []map[string]interface{} {
	list, _ := obj["orderItems"].([]interface{})
	out := make([]map[string]interface{}, 0, len(list))
	for _, it := range list {
		if m, ok := it.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// DownloadOrders catches up day by day since the last stored order, at most three months back.
// Each order is stored with its detail, and every item carries its bolProductId.
func (c *Connector) DownloadOrders(ctx context.Context) (int, error) {
	last, err := c.LastOrderTime(ctx, "orderPlacedDateTime")
	if err != nil {
		return 0, err
	}
	bolIDs := map[string]string{}
	total := 0
	for _, w := range connector.OrderWindows(last, orderMaxBack, 24*time.Hour, c.Now()) {
		orders := map[string]json.RawMessage{}
		err := transport.ByPage(ctx, 1, orderPage, func(ctx context.Context, page int) (int, bool, error) {
			q := url.Values{}
			q.Set("status", "ALL")
			q.Set("fulfilment-method", "ALL")
			q.Set("page", strconv.Itoa(page))
			q.Set("latest-change-date", w.From.Format("2006-01-02"))
			var p ordersPage
			if err := c.get(ctx, "orders", "/retailer/orders", q, &p); err != nil {
				return 0, false, err
			}
			for _, raw := range p.Orders {
				id, enriched, err := c.enrichOrder(ctx, raw, bolIDs)
				if err != nil {
					if core.IsSkippable(err) || isClientError(err) {
						c.Log.Warn("order skipped: %v", err)
						continue
					}
					return 0, false, err
				}
				orders[id] = enriched
			}
			return len(p.Orders), false, nil
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

func (c *Connector) enrichOrder(ctx context.Context, raw json.RawMessage, bolIDs map[string]string) (string, json.RawMessage, error) {
	order, err := decodeObject(raw)
	if err != nil {
		return "", nil, err
	}
	orderID, _ := order["orderId"].(string)
	if orderID == "" {
		return "", nil, fmt.Errorf("%w: order without orderId", core.ErrData)
	}

	for _, item := range items(order) {
		ean, _ := item["ean"].(string)
		if ean == "" {
			continue
		}
		if _, ok := bolIDs[ean]; !ok {
			var ids productIDs
			if err := c.get(ctx, "product-ids", "/retailer/products/"+url.PathEscape(ean)+"/product-ids", nil, &ids); err != nil && !isClientError(err) {
				return "", nil, err
			}
			bolIDs[ean] = ids.BolProductID
		}
		item["bolProductId"] = bolIDs[ean]
	}

	var detailRaw json.RawMessage
	if err := c.get(ctx, "order", "/retailer/orders/"+url.PathEscape(orderID), nil, &detailRaw); err != nil {
		return "", nil, err
	}
	detail, err := decodeObject(detailRaw)
	if err != nil {
		return "", nil, err
	}
	for _, item := range items(detail) {
		product, _ := item["product"].(map[string]interface{})
		if product == nil {
			continue
		}
		if ean, _ := product["ean"].(string); ean != "" {
			product["bolProductId"] = bolIDs[ean]
		}
	}
	order["orderDetail"] = detail

	out, err := json.Marshal(order)
	if err != nil {
		return "", nil, err
	}
	return orderID, out, nil
}

// DownloadInventory replaces the fulfilment-by-bol stock of the main country.
func (c *Connector) DownloadInventory(ctx context.Context) (int, error) {
	var records []models.InventoryRecord
	err := transport.ByPage(ctx, 1, inventorySize, func(ctx context.Context, page int) (int, bool, error) {
		var p inventoryPage
		if err := c.get(ctx, "inventory", "/retailer/inventory", url.Values{"page": {strconv.Itoa(page)}}, &p); err != nil {
			return 0, false, err
		}
		for _, raw := range p.Inventory {
			var it inventoryItem
			if err := json.Unmarshal(raw, &it); err != nil || it.Ean == "" {
				continue
			}
			records = append(records, models.InventoryRecord{Sku: it.Ean, ExternalID: it.Bsku, Quantity: it.RegularStock, Detail: raw})
		}
		return len(p.Inventory), false, nil
	})
	if err != nil {
		return 0, err
	}
	country := c.Marketplace().MainCountry
	if country == "" {
		country = defaultRegion
	}
	if err := c.Store.Put(country+"_inventory.json", records); err != nil {
		c.Log.Warn("inventory not cached: %v", err)
	}
	return len(records), c.ReplaceInventory(ctx, country, records)
}

func offerID(v *models.Variant) (string, error) {
	id := v.ResponseField("offerId")
	if id == "" {
		id = v.StoreProductID
	}
	if id == "" {
		return "", fmt.Errorf("%w: variant %s has no offer id", core.ErrData, v.UniqueMarketplaceID)
	}
	return id, nil
}

func (c *Connector) SetInventory(ctx context.Context, v *models.Variant, qty int, _ services.WriteOptions) error {
	if err := connector.CheckRange("quantity", qty, 0, maxStock); err != nil {
		return err
	}
	offer, err := offerID(v)
	if err != nil {
		return err
	}
	body := stockUpdate{Amount: qty, ManagedByRetailer: true}
	resp, err := c.fetcher.Do(ctx, transport.Request{
		Operation: "offers/stock", Method: http.MethodPut, Path: "/retailer/offers/" + url.PathEscape(offer) + "/stock",
		JSON: body, ContentType: mediaJSON, Accept: mediaJSON,
	})
	c.Audit("", fmt.Sprintf("SETINVENTORY_%s_%s.json", offer, c.Now().Format("20060102150405")), body, responseBody(resp), err)
	return err
}

func (c *Connector) SetPrice(ctx context.Context, v *models.Variant, price decimal.Decimal, cur string, _ services.WriteOptions) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("%w: price %s", core.ErrData, price)
	}
	target := v.SaleCurrency
	if target == "" {
		target = currency
	}
	if cur == "" {
		cur = target
	}
	amount, err := c.Convert(ctx, price.String(), cur, target)
	if err != nil {
		return err
	}
	offer, err := offerID(v)
	if err != nil {
		return err
	}
	var body priceUpdate
	body.Pricing.BundlePrices = []bundlePrice{{UnitPrice: json.Number(amount), Quantity: 1}}
	resp, err := c.fetcher.Do(ctx, transport.Request{
		Operation: "offers/price", Method: http.MethodPut, Path: "/retailer/offers/" + url.PathEscape(offer) + "/price",
		JSON: body, ContentType: mediaJSON, Accept: mediaJSON,
	})
	c.Audit("SetPrice", fmt.Sprintf("%s-%s.json", offer, c.Now().Format("2006-01-02-15-04-05")), body, responseBody(resp), err)
	return err
}

func responseBody(resp *transport.Response) json.RawMessage {
	if resp == nil || len(resp.Body) == 0 {
		return nil
	}
	if !json.Valid(resp.Body) {
		return connector.MustJSON(string(resp.Body))
	}
	return resp.Body
}
