package amazon

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/developkariyer/IWApim/internal/transport"
	"github.com/developkariyer/IWApim/pkg/report"
)

const (
	catalogPath   = "/catalog/2022-04-01/items"
	catalogBucket = 10
	catalogPause  = time.Second
)

var includedData = []string{
	"attributes", "classifications", "dimensions", "identifiers", "images",
	"productTypes", "relationships", "salesRanks", "summaries",
}

// Download merges the listing reports of every country per ASIN and attaches
// the catalog item of the main country.
func (c *Connector) Download(ctx context.Context, force bool) (int, error) {
	var cached []listing
	if ok, err := c.LoadListings(force, &cached); err != nil {
		return 0, err
	} else if ok {
		return len(cached), nil
	}

	byASIN := map[string]*listing{}
	skus := map[string]string{}
	for _, country := range c.countries {
		data, err := c.report(ctx, merchantListingsAll, country, force)
		if err != nil {
			return 0, err
		}
		res, err := report.Parse(data, report.Options{KeyColumn: "asin1", Delimiter: '\t', Logger: c.Log})
		if errors.Is(err, report.ErrEmptyReport) {
			c.Log.Warn("%s listing report is empty", country)
			continue
		}
		if err != nil {
			return 0, err
		}
		for _, row := range res.Rows {
			asin := row["asin1"]
			l, ok := byASIN[asin]
			if !ok {
				l = &listing{ASIN: asin, Countries: map[string][]report.Row{}}
				byASIN[asin] = l
			}
			l.Countries[country] = append(l.Countries[country], row)
			// main country rows come first and win
			if _, seen := skus[asin]; !seen && row["seller-sku"] != "" {
				skus[asin] = row["seller-sku"]
			}
		}
	}
	if c.Registry != nil && len(skus) > 0 {
		if err := c.Registry.SetMany(ctx, asinNamespace, skus); err != nil {
			return 0, err
		}
	}

	asins := make([]string, 0, len(byASIN))
	for asin := range byASIN {
		asins = append(asins, asin)
	}
	sort.Strings(asins)
	if err := c.attachCatalog(ctx, asins, byASIN, force); err != nil {
		return 0, err
	}

	listings := make([]listing, 0, len(asins))
	for _, asin := range asins {
		listings = append(listings, *byASIN[asin])
	}
	c.Log.Log("%d asins downloaded from %s", len(listings), strings.Join(c.countries, ","))
	return len(listings), c.SaveListings(listings)
}

func asinKey(asin string) string {
	return "ASIN_" + asin + ".json"
}

func (c *Connector) attachCatalog(ctx context.Context, asins []string, byASIN map[string]*listing, force bool) error {
	bucket := transport.NewBucket(catalogBucket, func(ctx context.Context, batch []string) error {
		q := url.Values{}
		q.Set("identifiers", strings.Join(batch, ","))
		q.Set("identifiersType", "ASIN")
		q.Set("marketplaceIds", c.marketplaceID(c.main))
		q.Set("includedData", strings.Join(includedData, ","))
		q.Set("sellerId", c.sellerID)
		var resp catalogResponse
		if err := c.fetcher.JSON(ctx, transport.Request{Operation: "catalog/items", Path: catalogPath, Query: q}, &resp); err != nil {
			return err
		}
		for _, raw := range resp.Items {
			var item catalogItem
			if err := json.Unmarshal(raw, &item); err != nil || item.ASIN == "" {
				continue
			}
			if l, ok := byASIN[item.ASIN]; ok {
				l.Catalog = raw
			}
			if err := c.Store.PutRaw(asinKey(item.ASIN), raw); err != nil {
				c.Log.Warn("catalog %s not cached: %v", item.ASIN, err)
			}
		}
		return c.Pacer.Pause(ctx, catalogPause)
	})

	for _, asin := range asins {
		if !force {
			raw, ok, err := c.Store.GetRaw(asinKey(asin), 0)
			if err != nil {
				return err
			}
			if ok {
				byASIN[asin].Catalog = raw
				continue
			}
		}
		if err := bucket.Add(ctx, asin); err != nil {
			return err
		}
	}
	return bucket.Flush(ctx)
}
