package bol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/developkariyer/IWApim/internal/auth"
	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/importer"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/internal/transport"
	"github.com/developkariyer/IWApim/pkg/report"
)

const (
	baseURL    = "https://api.bol.com"
	tokenURL   = "https://login.bol.com/token"
	mediaJSON  = "application/vnd.retailer.v10+json"
	mediaCSV   = "application/vnd.retailer.v10+csv"
	reportKey  = "OFFERS_EXPORT_REPORT.csv"
	currency   = "EUR"
	extraPause = 200 * time.Millisecond
)

type Connector struct {
	*connector.Base
	fetcher *transport.Fetcher
}

func New(mp *models.Marketplace, deps connector.Deps) (*Connector, error) {
	base, err := connector.NewBase(mp, models.MarketplaceBol, deps, 0, "client_id", "client_secret")
	if err != nil {
		return nil, err
	}
	tokens := base.TokenManager("bol", &auth.BasicExchanger{
		URL:          base.AuthURL(tokenURL),
		ClientID:     base.Creds.Get("client_id"),
		ClientSecret: base.Creds.Get("client_secret"),
		Client:       deps.Client,
	})
	return &Connector{Base: base, fetcher: base.NewFetcher(baseURL, auth.NewTokenAuth(tokens), "")}, nil
}

func (c *Connector) get(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	return c.fetcher.JSON(ctx, transport.Request{Operation: operation, Path: path, Query: query, Accept: mediaJSON}, out)
}

func (c *Connector) Download(ctx context.Context, force bool) (int, error) {
	var listings []map[string]json.RawMessage
	if ok, err := c.LoadListings(force, &listings); err != nil {
		return 0, err
	} else if ok {
		return len(listings), nil
	}

	raw, err := c.offerReport(ctx, force)
	if err != nil {
		return 0, err
	}
	parsed, err := report.Parse(raw, report.Options{KeyColumn: "ean", Delimiter: ',', Logger: c.Log})
	if err != nil {
		return 0, err
	}
	if parsed.Skipped > 0 {
		c.Log.Warn("%d offer export rows skipped", parsed.Skipped)
	}

	byEan := map[string]map[string]json.RawMessage{}
	for i, row := range parsed.Rows {
		ean := row["ean"]
		c.Log.Log("(%d/%d) %s", i+1, len(parsed.Rows), ean)
		listing, err := c.listing(ctx, row, force)
		if err != nil {
			return 0, err
		}
		byEan[ean] = listing
	}
	eans := make([]string, 0, len(byEan))
	for ean := range byEan {
		eans = append(eans, ean)
	}
	sort.Strings(eans)
	listings = make([]map[string]json.RawMessage, 0, len(eans))
	for _, ean := range eans {
		listings = append(listings, byEan[ean])
	}
	return len(listings), c.SaveListings(listings)
}

// offerReport runs the export job unless a fresh copy of the report is cached.
func (c *Connector) offerReport(ctx context.Context, force bool) ([]byte, error) {
	if !force {
		data, ok, err := c.Store.GetRaw(reportKey, c.ListingsTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			c.Log.Log("using cached offer export")
			return data, nil
		}
	}

	var status processStatus
	err := c.fetcher.JSON(ctx, transport.Request{
		Operation: "offers/export", Method: http.MethodPost, Path: "/retailer/offers/export",
		JSON: map[string]string{"format": "CSV"}, ContentType: mediaJSON, Accept: mediaJSON,
	}, &status)
	if err != nil {
		return nil, err
	}
	statusURL := "/shared/process-status/" + url.PathEscape(status.ProcessStatusID)
	if len(status.Links) > 0 && status.Links[0].Href != "" {
		statusURL = status.Links[0].Href
	}

	first := true
	err = transport.PollReport(ctx, c.Pacer, 0, func(ctx context.Context) (transport.ReportState, string, error) {
		if !first {
			next := processStatus{}
			if err := c.get(ctx, "process-status", statusURL, nil, &next); err != nil {
				return transport.ReportRequested, "", err
			}
			status = next
		}
		first = false
		switch status.Status {
		case "SUCCESS":
			return transport.ReportSuccess, "", nil
		case "PENDING":
			c.Log.Log("waiting for offer export...")
			return transport.ReportPending, "", nil
		}
		return transport.ReportFailure, strings.TrimSpace(status.Status + " " + status.ErrorMessage), nil
	})
	if err != nil {
		return nil, err
	}
	if status.EntityID == "" {
		return nil, fmt.Errorf("%w: offer export finished without entity id", core.ErrData)
	}

	resp, err := c.fetcher.Do(ctx, transport.Request{Operation: "offers/export:get", Path: "/retailer/offers/export/" + url.PathEscape(status.EntityID), Accept: mediaCSV})
	if err != nil {
		return nil, err
	}
	if err := c.Store.PutRaw(reportKey, resp.Body); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// listing merges the export row with the per-EAN extras, cached as EAN_<ean>.json.
func (c *Connector) listing(ctx context.Context, row report.Row, force bool) (map[string]json.RawMessage, error) {
	ean := row["ean"]
	cacheKey := "EAN_" + ean + ".json"
	out := map[string]json.RawMessage{}
	if !force {
		if ok, err := c.Store.Get(cacheKey, c.ListingsTTL, &out); err != nil {
			return nil, err
		} else if ok {
			return out, nil
		}
	}
	for k, v := range row {
		out[k] = connector.MustJSON(v)
	}

	esc := url.PathEscape(ean)
	extras := []struct {
		name  string
		path  string
		query url.Values
	}{
		{"catalog", "/retailer/content/catalog-products/" + esc, nil},
		{"assets", "/retailer/products/" + esc + "/assets", url.Values{"usage": {"IMAGE"}}},
		{"placement", "/retailer/products/" + esc + "/placement", nil},
		{"commission", "/retailer/commission/" + esc, url.Values{"condition": {"NEW"}, "unit-price": {row["bundlePricesPrice"]}}},
		{"product-ids", "/retailer/products/" + esc + "/product-ids", nil},
	}
	for _, e := range extras {
		var raw json.RawMessage
		err := c.get(ctx, e.name, e.path, e.query, &raw)
		switch {
		case err == nil:
			out[e.name] = raw
		case isClientError(err):
			c.Log.Warn("%s of %s skipped: %v", e.name, ean, err)
		default:
			return nil, err
		}
		if err := c.Pacer.Pause(ctx, extraPause); err != nil {
			return nil, err
		}
	}
	if err := c.Store.Put(cacheKey, out); err != nil {
		c.Log.Warn("%s not cached: %v", cacheKey, err)
	}
	return out, nil
}

func isClientError(err error) bool {
	var se *transport.StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
}

func (c *Connector) Import(ctx context.Context, opts services.ImportOptions) (services.ImportStats, error) {
	var stats services.ImportStats
	var listings []map[string]json.RawMessage
	if _, err := c.Store.GetListings(0, &listings); err != nil {
		return stats, err
	}
	for _, l := range listings {
		raw, err := json.Marshal(l)
		if err != nil {
			return stats, err
		}
		var v listingView
		if err := json.Unmarshal(raw, &v); err != nil {
			stats.Skipped++
			continue
		}
		if v.ProductIDs == nil || v.ProductIDs.BolProductID == "" {
			c.Log.Warn("offer %s has no bol product id, skipped", v.Ean)
			stats.Skipped++
			continue
		}
		price, err := connector.Decimal(v.Price)
		if err != nil {
			stats.Skipped++
			continue
		}
		qty, _ := strconv.Atoi(strings.TrimSpace(v.Stock))

		f := importer.Fields{
			UniqueMarketplaceID: v.ProductIDs.BolProductID,
			Sku:                 v.Reference,
			Ean:                 v.Ean,
			Title:               v.Catalog.attribute("Title"),
			Attributes:          v.Catalog.attribute("Dropdown Size HxWxL", "Colour"),
			SalePrice:           price,
			SaleCurrency:        currency,
			Quantity:            qty,
			Published:           v.Catalog != nil && v.Catalog.Published,
			ImageURL:            v.Assets.firstImage(),
			StoreProductID:      v.OfferID,
			APIResponse:         raw,
		}
		if v.Placement != nil {
			f.URL = v.Placement.URL
		}
		segments := v.Placement.path()
		if family := v.Catalog.attribute("Family Name"); family != "" {
			if len(segments) == 0 {
				segments = []string{""}
			}
			segments = append(segments, family)
		}
		if err := c.Upsert(ctx, f, segments, opts, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func joinSpace(values []string) string {
	return strings.TrimSpace(strings.Join(values, " "))
}

var _ services.Connector = (*Connector)(nil)
