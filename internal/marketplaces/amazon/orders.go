package amazon

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/transport"
)

// DownloadOrders follows NextToken from the newest stored LastUpdateDate,
// at most three months back.
func (c *Connector) DownloadOrders(ctx context.Context) (int, error) {
	last, err := c.LastOrderTime(ctx, "LastUpdateDate")
	if err != nil {
		return 0, err
	}
	if earliest := c.Now().AddDate(0, -3, 0); last.Before(earliest) {
		last = earliest
	}
	ids := make([]string, 0, len(c.countries))
	for _, cc := range c.countries {
		ids = append(ids, c.marketplaceID(cc))
	}

	orders := map[string]json.RawMessage{}
	err = transport.ByToken(ctx, "", func(ctx context.Context, token string) (string, error) {
		q := url.Values{}
		q.Set("MarketplaceIds", strings.Join(ids, ","))
		if token == "" {
			q.Set("LastUpdatedAfter", last.UTC().Format(time.RFC3339))
		} else {
			q.Set("NextToken", token)
		}
		var resp ordersResponse
		if err := c.fetcher.JSON(ctx, transport.Request{Operation: "orders", Path: "/orders/v0/orders", Query: q}, &resp); err != nil {
			return "", err
		}
		for _, raw := range resp.Payload.Orders {
			var id orderID
			if err := json.Unmarshal(raw, &id); err != nil || id.AmazonOrderID == "" {
				continue
			}
			orders[id.AmazonOrderID] = raw
		}
		return resp.Payload.NextToken, nil
	})
	if err != nil {
		return 0, err
	}
	return c.SaveOrders(ctx, orders)
}

// DownloadInventory reads FBA inventory summaries for every FBA country.
func (c *Connector) DownloadInventory(ctx context.Context) (int, error) {
	regions := c.Marketplace().FbaRegions
	if len(regions) == 0 {
		return 0, c.Unsupported("fba inventory without fba regions")
	}
	total := 0
	for _, country := range regions {
		country = strings.ToUpper(country)
		m, err := lookup(country)
		if err != nil {
			return total, err
		}
		var records []models.InventoryRecord
		err = transport.ByToken(ctx, "", func(ctx context.Context, token string) (string, error) {
			q := url.Values{}
			q.Set("granularityType", "Marketplace")
			q.Set("granularityId", m.ID)
			q.Set("marketplaceIds", m.ID)
			q.Set("details", "true")
			if token != "" {
				q.Set("nextToken", token)
			}
			var resp inventoryResponse
			if err := c.fetcher.JSON(ctx, transport.Request{Operation: "fba/inventory", Path: "/fba/inventory/v1/summaries", Query: q}, &resp); err != nil {
				return "", err
			}
			for _, raw := range resp.Payload.InventorySummaries {
				var s inventorySummary
				if err := json.Unmarshal(raw, &s); err != nil {
					continue
				}
				qty := s.TotalQuantity
				if s.InventoryDetails != nil {
					qty = s.InventoryDetails.FulfillableQuantity
				}
				records = append(records, models.InventoryRecord{
					MarketplaceID: c.Marketplace().ID,
					Country:       country,
					Sku:           s.SellerSku,
					ExternalID:    s.ASIN,
					Quantity:      qty,
					Detail:        raw,
				})
			}
			return resp.Pagination.NextToken, nil
		})
		if err != nil {
			return total, err
		}
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
