package amazon

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector/connectortest"
)

var creds = map[string]string{
	"client_id": "amzn1.app", "client_secret": "secret", "refresh_token": "Atzr|1", "seller_id": "SELLER1",
}

const (
	usID = "ATVPDKIKX0DER"
	caID = "A2EUQ1WTGCTBG2"
)

var reports = map[string]string{
	usID: "item-name\tseller-sku\tprice\tquantity\tasin1\tstatus\n" +
		"Rug Blue\tRUG-B\t59.99\t3\tB001\tActive\n" +
		"Rug Red\tRUG-R\t59.99\t\tB002\tInactive\n",
	caID: "item-name\tseller-sku\tprice\tquantity\tasin1\tstatus\n" +
		"Rug Blue CA\tRUG-B-CA\t79.99\t2\tB001\tActive\n",
}

type fakeSPAPI struct {
	t          *testing.T
	url        string
	mu         sync.Mutex
	polls      map[string]int
	created    []string
	catalog    []string
	failReport bool
	patches    []patchRequest
	patchPaths []string
	rejectNext bool
	orderCalls []string
	invTokens  []string
	// extra rows appended to a marketplace's report body
	extra map[string]string
}

func gz(s string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write([]byte(s))
	_ = w.Close()
	return buf.Bytes()
}

func (f *fakeSPAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	if path != "/auth/o2/token" && !strings.HasPrefix(path, "/download/") {
		assert.Equal(f.t, "lwa-token", r.Header.Get("x-amz-access-token"))
	}
	switch {
	case path == "/auth/o2/token":
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "Atzr|1", r.PostForm.Get("refresh_token"))
		_, _ = w.Write([]byte(`{"access_token":"lwa-token","expires_in":3600}`))
	case path == "/reports/2021-06-30/reports" && r.Method == http.MethodPost:
		var req createReportRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(f.t, merchantListingsAll, req.ReportType)
		f.created = append(f.created, req.MarketplaceIDs[0])
		fmt.Fprintf(w, `{"reportId":"R-%s"}`, req.MarketplaceIDs[0])
	case strings.HasPrefix(path, "/reports/2021-06-30/reports/R-"):
		mid := strings.TrimPrefix(path, "/reports/2021-06-30/reports/R-")
		f.polls[mid]++
		switch {
		case f.failReport:
			fmt.Fprintf(w, `{"reportId":"R-%s","processingStatus":"FATAL"}`, mid)
		case f.polls[mid] == 1:
			fmt.Fprintf(w, `{"reportId":"R-%s","processingStatus":"IN_QUEUE"}`, mid)
		default:
			fmt.Fprintf(w, `{"reportId":"R-%s","processingStatus":"DONE","reportDocumentId":"D-%s"}`, mid, mid)
		}
	case strings.HasPrefix(path, "/reports/2021-06-30/documents/D-"):
		mid := strings.TrimPrefix(path, "/reports/2021-06-30/documents/D-")
		compression := ""
		if mid == usID {
			compression = `,"compressionAlgorithm":"GZIP"`
		}
		fmt.Fprintf(w, `{"reportDocumentId":"D-%s","url":"%s/download/%s"%s}`, mid, f.url, mid, compression)
	case strings.HasPrefix(path, "/download/"):
		assert.Empty(f.t, r.Header.Get("x-amz-access-token"))
		mid := strings.TrimPrefix(path, "/download/")
		body := reports[mid] + f.extra[mid]
		if mid == usID {
			_, _ = w.Write(gz(body))
			return
		}
		_, _ = w.Write([]byte(body))
	case path == "/catalog/2022-04-01/items":
		q := r.URL.Query()
		assert.Equal(f.t, "ASIN", q.Get("identifiersType"))
		assert.Equal(f.t, usID, q.Get("marketplaceIds"))
		assert.Equal(f.t, "SELLER1", q.Get("sellerId"))
		f.catalog = append(f.catalog, q.Get("identifiers"))
		var items []string
		for _, asin := range strings.Split(q.Get("identifiers"), ",") {
			items = append(items, fmt.Sprintf(`{"asin":"%s","summaries":[{"marketplaceId":"%s","itemName":"Rug","color":"Blue","size":"5x8"}],
				"images":[{"marketplaceId":"%s","images":[{"variant":"PT01","link":"https://m.media/%s-2.jpg"},{"variant":"MAIN","link":"https://m.media/%s.jpg"}]}],
				"productTypes":[{"marketplaceId":"%s","productType":"RUG"}],
				"identifiers":[{"marketplaceId":"%s","identifiers":[{"identifierType":"EAN","identifier":"869%s"}]}]}`,
				asin, usID, usID, asin, asin, usID, usID, asin[1:]))
		}
		fmt.Fprintf(w, `{"numberOfResults":%d,"items":[%s]}`, len(items), strings.Join(items, ","))
	case strings.HasPrefix(path, "/listings/2021-08-01/items/SELLER1/"):
		assert.Equal(f.t, http.MethodPatch, r.Method)
		var req patchRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.patches = append(f.patches, req)
		f.patchPaths = append(f.patchPaths, path+"?"+r.URL.RawQuery)
		sku := strings.TrimPrefix(path, "/listings/2021-08-01/items/SELLER1/")
		if f.rejectNext {
			fmt.Fprintf(w, `{"sku":"%s","status":"INVALID","issues":[{"code":"90220","message":"quantity is required","severity":"ERROR"}]}`, sku)
			return
		}
		fmt.Fprintf(w, `{"sku":"%s","status":"ACCEPTED","submissionId":"s1","issues":[]}`, sku)
	case path == "/orders/v0/orders":
		q := r.URL.Query()
		assert.Equal(f.t, usID+","+caID, q.Get("MarketplaceIds"))
		if q.Get("NextToken") == "" {
			f.orderCalls = append(f.orderCalls, "after:"+q.Get("LastUpdatedAfter"))
			_, _ = w.Write([]byte(`{"payload":{"Orders":[{"AmazonOrderId":"111-1","LastUpdateDate":"2024-05-30T10:00:00Z"}],"NextToken":"tok2"}}`))
			return
		}
		f.orderCalls = append(f.orderCalls, "token:"+q.Get("NextToken"))
		_, _ = w.Write([]byte(`{"payload":{"Orders":[{"AmazonOrderId":"111-2"},{"OrderStatus":"Pending"}]}}`))
	case path == "/fba/inventory/v1/summaries":
		q := r.URL.Query()
		assert.Equal(f.t, usID, q.Get("granularityId"))
		f.invTokens = append(f.invTokens, q.Get("nextToken"))
		if q.Get("nextToken") == "" {
			_, _ = w.Write([]byte(`{"payload":{"inventorySummaries":[{"asin":"B001","sellerSku":"RUG-B","totalQuantity":9,"inventoryDetails":{"fulfillableQuantity":7}}]},"pagination":{"nextToken":"n2"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"payload":{"inventorySummaries":[{"asin":"B002","sellerSku":"RUG-R","totalQuantity":1}]}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestConnector(t *testing.T, f *fakeSPAPI) (*Connector, *connectortest.Env) {
	f.t = t
	f.polls = map[string]int{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	f.url = srv.URL
	env := connectortest.NewEnv(t, models.MarketplaceAmazon, srv.URL)
	mp := connectortest.Marketplace(models.MarketplaceAmazon, "AmazonUS", creds)
	mp.MainCountry = "US"
	mp.Countries = pq.StringArray{"us", "CA"}
	mp.FbaRegions = pq.StringArray{"US"}
	c, err := New(mp, env.Deps)
	require.NoError(t, err)
	return c, env
}

func TestNew_RejectsUnknownCountry(t *testing.T) {
	env := connectortest.NewEnv(t, models.MarketplaceAmazon, "http://127.0.0.1:1")
	mp := connectortest.Marketplace(models.MarketplaceAmazon, "AmazonXX", creds)
	mp.MainCountry = "US"
	mp.Countries = pq.StringArray{"XX"}
	_, err := New(mp, env.Deps)
	assert.True(t, errors.Is(err, core.ErrConfig))

	mp.Countries = nil
	mp.MainCountry = ""
	_, err = New(mp, env.Deps)
	assert.True(t, errors.Is(err, core.ErrConfig))
}

func TestEndpointFor(t *testing.T) {
	assert.Equal(t, endpointEU, endpointFor("UK"))
	assert.Equal(t, endpointFE, endpointFor("JP"))
	assert.Equal(t, endpointNA, endpointFor("US"))
	assert.Equal(t, endpointNA, endpointFor("BR"))
}

func TestConnector_DownloadMergesCountries(t *testing.T) {
	f := &fakeSPAPI{}
	c, env := newTestConnector(t, f)
	ctx := context.Background()

	n, err := c.Download(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{usID, caID}, f.created)
	assert.Equal(t, 2, f.polls[usID])
	assert.Equal(t, []string{"B001,B002"}, f.catalog)
	assert.Contains(t, env.Clock.Sleeps(), time.Second)

	sku, ok, err := env.Registry.Get(ctx, asinNamespace, "B001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "RUG-B", sku)

	var cached []listing
	ok, err = c.Store.GetListings(0, &cached)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached[0].Countries["US"], 1)
	assert.Len(t, cached[0].Countries["CA"], 1)

	// reports and catalog items are reused from the cache
	_, err = c.Download(ctx, false)
	require.NoError(t, err)
	assert.Len(t, f.created, 2)
}

func TestConnector_DownloadRefreshesExpiredReports(t *testing.T) {
	f := &fakeSPAPI{}
	c, env := newTestConnector(t, f)
	ctx := context.Background()

	n, err := c.Download(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, f.created, 2)

	f.mu.Lock()
	f.extra = map[string]string{usID: "Rug Green\tRUG-G\t49.99\t1\tB003\tActive\n"}
	f.mu.Unlock()
	env.Clock.Advance(c.ListingsTTL + time.Hour)

	n, err = c.Download(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{usID, caID, usID, caID}, f.created)
	assert.Equal(t, []string{"B001,B002", "B003"}, f.catalog)

	var cached []listing
	ok, err := c.Store.GetListings(0, &cached)
	require.NoError(t, err)
	require.True(t, ok)
	asins := make([]string, 0, len(cached))
	for _, l := range cached {
		asins = append(asins, l.ASIN)
	}
	assert.Contains(t, asins, "B003")
}

func TestConnector_ReportFailureIsFatal(t *testing.T) {
	f := &fakeSPAPI{failReport: true}
	c, _ := newTestConnector(t, f)

	_, err := c.Download(context.Background(), true)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.Contains(t, err.Error(), "FATAL")
}

func TestConnector_Import(t *testing.T) {
	f := &fakeSPAPI{}
	c, env := newTestConnector(t, f)
	ctx := context.Background()
	_, err := c.Download(ctx, true)
	require.NoError(t, err)

	stats, err := c.Import(ctx, services.ImportOptions{CreateNew: true, UpdateExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Created)

	us, ok := env.Variants.Get(7, "US_RUG-B")
	require.True(t, ok)
	assert.Equal(t, "Rug Blue", us.Title)
	assert.Equal(t, "Blue-5x8", us.Attributes)
	assert.Equal(t, "869001", us.Ean)
	assert.Equal(t, 3, us.Quantity)
	assert.Equal(t, "USD", us.SaleCurrency)
	assert.True(t, decimal.RequireFromString("59.99").Equal(us.SalePrice))
	assert.Equal(t, "https://m.media/B001.jpg", us.ImageURL)
	assert.Equal(t, "https://www.amazon.com/dp/B001", us.URL)
	assert.Equal(t, "Pazaryerleri/AmazonUS/RUG/B001", us.PlacementPath)
	assert.Equal(t, "US", us.ResponseField("country"))
	assert.True(t, us.Published)

	ca, ok := env.Variants.Get(7, "CA_RUG-B-CA")
	require.True(t, ok)
	assert.Equal(t, "CAD", ca.SaleCurrency)
	assert.Equal(t, "https://www.amazon.ca/dp/B001", ca.URL)

	red, ok := env.Variants.Get(7, "US_RUG-R")
	require.True(t, ok)
	assert.False(t, red.Published)
	assert.Equal(t, 0, red.Quantity)
}

func TestConnector_Writes(t *testing.T) {
	f := &fakeSPAPI{}
	c, env := newTestConnector(t, f)
	ctx := context.Background()
	_, err := c.Download(ctx, true)
	require.NoError(t, err)
	_, err = c.Import(ctx, services.ImportOptions{CreateNew: true})
	require.NoError(t, err)
	v, _ := env.Variants.Get(7, "CA_RUG-B-CA")

	require.NoError(t, c.SetInventory(ctx, &v, 12, services.WriteOptions{}))
	require.Len(t, f.patches, 1)
	assert.Equal(t, "/listings/2021-08-01/items/SELLER1/RUG-B-CA?marketplaceIds="+caID, f.patchPaths[0])
	assert.Equal(t, "RUG", f.patches[0].ProductType)
	assert.Equal(t, "/attributes/fulfillment_availability", f.patches[0].Patches[0].Path)

	require.NoError(t, c.SetPrice(ctx, &v, decimal.RequireFromString("74.5"), "CAD", services.WriteOptions{}))
	offer := f.patches[1].Patches[0].Value[0].(map[string]interface{})
	assert.Equal(t, "CAD", offer["currency"])

	var audit map[string]json.RawMessage
	ok, err := c.Store.Sub("SetPrice").Get("RUG-B-CA_CA_"+env.Clock.Now().Format("20060102150405")+".json", 0, &audit)
	require.NoError(t, err)
	assert.True(t, ok)

	f.rejectNext = true
	err = c.SetInventory(ctx, &v, 1, services.WriteOptions{})
	assert.True(t, errors.Is(err, core.ErrData))
	assert.Contains(t, err.Error(), "quantity is required")

	assert.True(t, errors.Is(c.SetInventory(ctx, &v, maxStock+1, services.WriteOptions{}), core.ErrData))
	assert.True(t, errors.Is(c.SetPrice(ctx, &v, decimal.NewFromInt(10), "USD", services.WriteOptions{}), core.ErrConfig))
}

func TestConnector_OrdersAndInventory(t *testing.T) {
	f := &fakeSPAPI{}
	c, env := newTestConnector(t, f)
	ctx := context.Background()

	n, err := c.DownloadOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"after:2024-03-01T12:00:00Z", "token:tok2"}, f.orderCalls)

	n, err = c.DownloadInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"", "n2"}, f.invTokens)
	recs := env.Inventory.Records["US"]
	require.Len(t, recs, 2)
	assert.Equal(t, 7, recs[0].Quantity)
	assert.Equal(t, 1, recs[1].Quantity)
}
