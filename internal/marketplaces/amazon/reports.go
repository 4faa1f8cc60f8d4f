package amazon

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/transport"
)

const (
	reportsPath         = "/reports/2021-06-30"
	merchantListingsAll = "GET_MERCHANT_LISTINGS_ALL_DATA"
)

func reportState(status string) transport.ReportState {
	switch status {
	case "IN_QUEUE", "IN_PROGRESS":
		return transport.ReportPending
	case "DONE":
		return transport.ReportSuccess
	case "CANCELLED", "FATAL":
		return transport.ReportFailure
	}
	return transport.ReportRequested
}

// report returns the raw document of reportType for one country, reusing a
// cached copy younger than the listings TTL unless force is set.
func (c *Connector) report(ctx context.Context, reportType, country string, force bool) ([]byte, error) {
	key := fmt.Sprintf("%s_%s.tsv", country, reportType)
	if !force {
		if data, ok, err := c.Store.GetRaw(key, c.ListingsTTL); err != nil {
			return nil, err
		} else if ok {
			return data, nil
		}
	}

	var created createReportResponse
	err := c.fetcher.JSON(ctx, transport.Request{
		Operation: "reports:create", Method: http.MethodPost, Path: reportsPath + "/reports",
		JSON: createReportRequest{ReportType: reportType, MarketplaceIDs: []string{c.marketplaceID(country)}},
	}, &created)
	if err != nil {
		return nil, err
	}
	if created.ReportID == "" {
		return nil, fmt.Errorf("%w: %s report for %s has no id", core.ErrData, reportType, country)
	}

	var status reportStatus
	err = transport.PollReport(ctx, c.Pacer, 0, func(ctx context.Context) (transport.ReportState, string, error) {
		if err := c.fetcher.JSON(ctx, transport.Request{
			Operation: "reports:get", Path: reportsPath + "/reports/" + url.PathEscape(created.ReportID),
		}, &status); err != nil {
			return transport.ReportRequested, "", err
		}
		state := reportState(status.ProcessingStatus)
		if state == transport.ReportPending || state == transport.ReportRequested {
			c.Log.Log("waiting for %s report %s (%s)", country, created.ReportID, status.ProcessingStatus)
		}
		return state, fmt.Sprintf("%s report %s %s", country, created.ReportID, status.ProcessingStatus), nil
	})
	if err != nil {
		return nil, err
	}

	data, err := c.document(ctx, status.ReportDocumentID)
	if err != nil {
		return nil, err
	}
	if err := c.Store.PutRaw(key, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Connector) document(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: finished report has no document", core.ErrData)
	}
	var doc reportDocument
	if err := c.fetcher.JSON(ctx, transport.Request{
		Operation: "documents:get", Path: reportsPath + "/documents/" + url.PathEscape(id),
	}, &doc); err != nil {
		return nil, err
	}
	// pre-signed S3 link, no SP-API auth
	resp, err := c.fetcher.Do(ctx, transport.Request{Operation: "documents:download", Path: doc.URL, Anonymous: true, Accept: "*/*"})
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(doc.CompressionAlgorithm, "GZIP") {
		return resp.Body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: report document %s: %v", core.ErrData, id, err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: report document %s: %v", core.ErrData, id, err)
	}
	return data, nil
}
