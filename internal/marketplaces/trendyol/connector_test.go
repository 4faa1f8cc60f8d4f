package trendyol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector/connectortest"
)

type fakeTrendyol struct {
	mu           sync.Mutex
	orderWindows int
	posted       priceInventoryRequest
}

func (f *fakeTrendyol) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != "key" || pass != "secret" || r.Header.Get("User-Agent") != "42 - SelfIntegration" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.URL.Path {
	case "/integration/product/sellers/42/products":
		pageNo, _ := strconv.Atoi(r.URL.Query().Get("page"))
		n := productPage
		if pageNo == 1 {
			n = 1
		}
		items := make([]string, 0, n)
		for i := 0; i < n; i++ {
			id := pageNo*1000 + i
			items = append(items, fmt.Sprintf(`{"id":"p%d","barcode":"869%d","title":"Halı %d","productMainId":"HALI","stockCode":"H-%d",
			"quantity":4,"salePrice":"299.90","currencyType":"TRY","approved":true,"onSale":true,"archived":false,
			"categoryName":"Ev","attributes":[{"attributeName":"Renk","attributeValue":"Gri"},{"attributeName":"Materyal","attributeValue":"Pamuk"}]}`,
				id, id, id, id))
		}
		_, _ = fmt.Fprintf(w, `{"totalPages":2,"page":%d,"content":[%s]}`, pageNo, strings.Join(items, ","))
	case "/integration/order/sellers/42/orders":
		f.orderWindows++
		start, _ := strconv.ParseInt(r.URL.Query().Get("startDate"), 10, 64)
		end, _ := strconv.ParseInt(r.URL.Query().Get("endDate"), 10, 64)
		modified := connectortest.Epoch.Add(-time.Hour).UnixMilli()
		if modified < start || modified >= end {
			_, _ = w.Write([]byte(`{"totalPages":0,"content":[]}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"totalPages":1,"content":[{"id":555,"orderNumber":"TY1","lastModifiedDate":%d}]}`, modified)
	case "/integration/inventory/sellers/42/products/price-and-inventory":
		_ = json.NewDecoder(r.Body).Decode(&f.posted)
		_, _ = w.Write([]byte(`{"batchRequestId":"batch-9"}`))
	case "/integration/product/sellers/42/products/batch-requests/batch-9":
		_, _ = w.Write([]byte(`{"items":[{"status":"SUCCESS"}],"status":"COMPLETED"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestConnector(t *testing.T, f *fakeTrendyol) (*Connector, *connectortest.Env) {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	env := connectortest.NewEnv(t, models.MarketplaceTrendyol, srv.URL)
	c, err := New(connectortest.Marketplace(models.MarketplaceTrendyol, "Trendyol", map[string]string{
		"seller_id": "42", "api_key": "key", "api_secret": "secret",
	}), env.Deps)
	require.NoError(t, err)
	return c, env
}

func TestConnector_DownloadImport(t *testing.T) {
	c, env := newTestConnector(t, &fakeTrendyol{})
	ctx := context.Background()

	n, err := c.Download(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, productPage+1, n)

	stats, err := c.Import(ctx, services.ImportOptions{CreateNew: true, UpdateExisting: true})
	require.NoError(t, err)
	assert.Equal(t, productPage+1, stats.Created)

	v, ok := env.Variants.Get(7, "p1000")
	require.True(t, ok)
	assert.Equal(t, "Gri", v.Attributes)
	assert.Equal(t, "8691000", v.Ean)
	assert.Equal(t, "Pazaryerleri/Trendyol/Ev/HALI", v.PlacementPath)
	assert.True(t, v.Published)
}

func TestConnector_DownloadOrdersInWindows(t *testing.T) {
	f := &fakeTrendyol{}
	c, env := newTestConnector(t, f)

	n, err := c.DownloadOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, env.Orders.Rows, "555")
	// 90 days in 14-day windows
	assert.Equal(t, 7, f.orderWindows)
}

func TestConnector_SetInventory(t *testing.T) {
	f := &fakeTrendyol{}
	c, _ := newTestConnector(t, f)
	v := &models.Variant{Ean: "8691"}

	assert.True(t, errors.Is(c.SetInventory(context.Background(), v, 20001, services.WriteOptions{}), core.ErrData))
	require.NoError(t, c.SetInventory(context.Background(), v, 20000, services.WriteOptions{}))
	require.Len(t, f.posted.Items, 1)
	assert.Equal(t, 20000, *f.posted.Items[0].Quantity)
	assert.Nil(t, f.posted.Items[0].SalePrice)

	assert.True(t, errors.Is(c.SetInventory(context.Background(), &models.Variant{}, 1, services.WriteOptions{}), core.ErrData))
}
