package amazon

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/importer"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/pkg/report"
)

// Import stores one variant per country and seller SKU: "<country>_<seller-sku>".
func (c *Connector) Import(ctx context.Context, opts services.ImportOptions) (services.ImportStats, error) {
	var stats services.ImportStats
	var listings []listing
	ok, err := c.Store.GetListings(0, &listings)
	if err != nil {
		return stats, err
	}
	if !ok || len(listings) == 0 {
		c.Log.Warn("nothing to import in %s", c.main)
		return stats, nil
	}
	stats.Unpublished, err = c.ReplaceImport(ctx, func() error {
		for _, l := range listings {
			if err := c.importListing(ctx, l, opts, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	return stats, err
}

func (c *Connector) importListing(ctx context.Context, l listing, opts services.ImportOptions, stats *services.ImportStats) error {
	var item catalogItem
	if len(l.Catalog) > 0 {
		if err := json.Unmarshal(l.Catalog, &item); err != nil {
			c.Log.Warn("catalog of %s unreadable: %v", l.ASIN, err)
		}
	}
	mainID := c.marketplaceID(c.main)
	attrs := item.attributes(mainID)
	image := c.CacheImage(ctx, item.mainImage(mainID))
	productType := item.productType(mainID)

	for _, country := range c.countries {
		m, _ := lookup(country)
		for _, row := range l.Countries[country] {
			sku := row["seller-sku"]
			if sku == "" {
				stats.Skipped++
				continue
			}
			price, err := connector.Decimal(row["price"])
			if err != nil {
				c.Log.Warn("%s %s price %q: %v", country, sku, row["price"], err)
			}
			qty := 0
			if q := strings.TrimSpace(row["quantity"]); q != "" {
				if qty, err = strconv.Atoi(q); err != nil {
					c.Log.Warn("%s %s quantity %q: %v", country, sku, q, err)
				}
			}
			f := importer.Fields{
				UniqueMarketplaceID: country + "_" + sku,
				Sku:                 sku,
				Ean:                 item.ean(),
				Title:               strings.TrimSpace(row["item-name"]),
				Attributes:          attrs,
				SalePrice:           price,
				SaleCurrency:        m.Currency,
				Quantity:            qty,
				Published:           strings.EqualFold(row["status"], "Active"),
				URL:                 "https://www." + m.Domain + "/dp/" + l.ASIN,
				ImageURL:            image,
				StoreProductID:      l.ASIN,
				APIResponse:         rowJSON(row, country, productType),
				ParentResponse:      l.Catalog,
			}
			if err := c.Upsert(ctx, f, []string{productType, l.ASIN}, opts, stats); err != nil {
				return err
			}
		}
	}
	return nil
}

// rowJSON keeps the report row with the country and product type needed by writes.
func rowJSON(row report.Row, country, productType string) json.RawMessage {
	m := make(map[string]string, len(row)+2)
	for k, v := range row {
		m[k] = v
	}
	m["country"] = country
	if productType != "" {
		m["productType"] = productType
	}
	return connector.MustJSON(m)
}

func (it catalogItem) attributes(marketplaceID string) string {
	for _, s := range it.Summaries {
		if s.MarketplaceID != marketplaceID && len(it.Summaries) > 1 {
			continue
		}
		var parts []string
		for _, v := range []string{s.Color, s.Size, s.Style} {
			if v = strings.TrimSpace(v); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, "-")
	}
	return ""
}

func (it catalogItem) mainImage(marketplaceID string) string {
	for _, set := range it.Images {
		if set.MarketplaceID != marketplaceID && len(it.Images) > 1 {
			continue
		}
		for _, img := range set.Images {
			if img.Variant == "MAIN" {
				return img.Link
			}
		}
		if len(set.Images) > 0 {
			return set.Images[0].Link
		}
	}
	return ""
}

func (it catalogItem) productType(marketplaceID string) string {
	for _, pt := range it.ProductTypes {
		if pt.MarketplaceID == marketplaceID || len(it.ProductTypes) == 1 {
			return pt.ProductType
		}
	}
	return ""
}

func (it catalogItem) ean() string {
	for _, set := range it.Identifiers {
		for _, id := range set.Identifiers {
			if id.IdentifierType == "EAN" {
				return id.Identifier
			}
		}
	}
	return ""
}
