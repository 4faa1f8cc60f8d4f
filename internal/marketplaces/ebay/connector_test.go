package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector/connectortest"
)

var creds = map[string]string{"client_id": "app", "client_secret": "cert"}

func itemJSON(i int) string {
	return fmt.Sprintf(`{"sku":"IW-%d","condition":"NEW","availability":{"shipToLocationAvailability":{"quantity":%d}},
		"product":{"title":"Wall Art %d","aspects":{"Size":["60x90"],"Color":["Gold"]},"imageUrls":["https://i.ebayimg.com/%d.jpg"],"ean":["869%d"]},
		"inventoryItemGroupKeys":["WALLART"]}`, i, i, i, i, i)
}

type fakeEbay struct {
	t        *testing.T
	total    int
	bulk     []bulkRequest
	bulkCode int
}

func (f *fakeEbay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/identity/v1/oauth2/token":
		user, pass, ok := r.BasicAuth()
		assert.True(f.t, ok)
		assert.Equal(f.t, "app", user)
		assert.Equal(f.t, "cert", pass)
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Contains(f.t, r.PostForm.Get("scope"), "sell.inventory")
		_, _ = w.Write([]byte(`{"access_token":"v^1.1","expires_in":7200}`))
	case "/sell/inventory/v1/inventory_item":
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		assert.Equal(f.t, itemsPage, limit)
		var items []json.RawMessage
		for i := offset; i < offset+limit && i < f.total; i++ {
			items = append(items, json.RawMessage(itemJSON(i)))
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"total": f.total, "inventoryItems": items})
	case "/sell/inventory/v1/offer":
		sku := r.URL.Query().Get("sku")
		if sku == "IW-1" {
			http.Error(w, `{"errors":[{"errorId":25713}]}`, http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprintf(w, `{"total":1,"offers":[{"offerId":"O-%s","sku":"%s","status":"PUBLISHED","categoryId":"37573",
			"pricingSummary":{"price":{"value":"24.90","currency":"USD"}},"listing":{"listingId":"1100%s","listingStatus":"ACTIVE"}}]}`, sku, sku, sku[3:])
	case "/sell/inventory/v1/bulk_update_price_quantity":
		var req bulkRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.bulk = append(f.bulk, req)
		code := f.bulkCode
		if code == 0 {
			code = 200
		}
		_, _ = fmt.Fprintf(w, `{"responses":[{"statusCode":%d,"sku":"%s","errors":[{"errorId":25002,"message":"bad offer"}]}]}`, code, req.Requests[0].Sku)
	case "/sell/fulfillment/v1/order":
		assert.Contains(f.t, r.URL.Query().Get("filter"), "lastmodifieddate:[2024-03-01T12:00:00.000Z..]")
		_, _ = w.Write([]byte(`{"total":2,"orders":[{"orderId":"12-1","lastModifiedDate":"2024-05-30T10:00:00.000Z"},{"orderId":"12-2"}]}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestConnector(t *testing.T, f *fakeEbay) (*Connector, *connectortest.Env) {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	env := connectortest.NewEnv(t, models.MarketplaceEbay, srv.URL)
	c, err := New(connectortest.Marketplace(models.MarketplaceEbay, "Ebay", creds), env.Deps)
	require.NoError(t, err)
	return c, env
}

func TestConnector_DownloadAndImport(t *testing.T) {
	f := &fakeEbay{t: t, total: 105}
	c, env := newTestConnector(t, f)
	ctx := context.Background()

	n, err := c.Download(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 105, n)

	stats, err := c.Import(ctx, services.ImportOptions{CreateNew: true, UpdateExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 105, stats.Created)

	v, ok := env.Variants.Get(7, "IW-2")
	require.True(t, ok)
	assert.Equal(t, "Wall Art 2", v.Title)
	assert.Equal(t, "Gold-60x90", v.Attributes)
	assert.Equal(t, "USD", v.SaleCurrency)
	assert.True(t, decimal.RequireFromString("24.90").Equal(v.SalePrice))
	assert.Equal(t, "11002", v.StoreProductID)
	assert.Equal(t, "https://www.ebay.com/itm/11002", v.URL)
	assert.Equal(t, "Pazaryerleri/Ebay/37573/WALLART", v.PlacementPath)
	assert.Equal(t, "O-IW-2", v.ResponseField("offerId"))
	assert.True(t, v.Published)

	// no offer: stored but not published
	v, ok = env.Variants.Get(7, "IW-1")
	require.True(t, ok)
	assert.False(t, v.Published)
}

func TestConnector_SetPriceUsesOffer(t *testing.T) {
	f := &fakeEbay{t: t, total: 3}
	c, env := newTestConnector(t, f)
	ctx := context.Background()
	_, err := c.Download(ctx, true)
	require.NoError(t, err)
	_, err = c.Import(ctx, services.ImportOptions{CreateNew: true})
	require.NoError(t, err)

	v, _ := env.Variants.Get(7, "IW-2")
	require.NoError(t, c.SetPrice(ctx, &v, decimal.RequireFromString("19.5"), "USD", services.WriteOptions{}))
	require.Len(t, f.bulk, 1)
	item := f.bulk[0].Requests[0]
	require.Len(t, item.Offers, 1)
	assert.Equal(t, "O-IW-2", item.Offers[0].OfferID)
	assert.Equal(t, "19.5", item.Offers[0].Price.Value)

	var audit map[string]json.RawMessage
	ok, err := c.Store.Sub("SetPrice").Get("IW-2_20240601120000.json", 0, &audit)
	require.NoError(t, err)
	assert.True(t, ok)

	v1, _ := env.Variants.Get(7, "IW-1")
	assert.True(t, errors.Is(c.SetPrice(ctx, &v1, decimal.NewFromInt(5), "USD", services.WriteOptions{}), core.ErrData))
}

func TestConnector_SetInventoryRejected(t *testing.T) {
	f := &fakeEbay{t: t, bulkCode: 400}
	c, _ := newTestConnector(t, f)
	v := &models.Variant{UniqueMarketplaceID: "IW-9", Sku: "IW-9"}

	assert.True(t, errors.Is(c.SetInventory(context.Background(), v, maxStock+1, services.WriteOptions{}), core.ErrData))
	assert.Empty(t, f.bulk)

	err := c.SetInventory(context.Background(), v, 4, services.WriteOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrData))
	assert.Contains(t, err.Error(), "bad offer")
	assert.Equal(t, 4, f.bulk[0].Requests[0].ShipToLocationAvailability.Quantity)
}

func TestConnector_DownloadOrders(t *testing.T) {
	c, env := newTestConnector(t, &fakeEbay{t: t})

	n, err := c.DownloadOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, env.Orders.Rows, "12-1")
}
