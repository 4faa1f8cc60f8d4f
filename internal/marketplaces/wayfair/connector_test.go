package wayfair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector/connectortest"
)

var creds = map[string]string{"client_id": "cid", "client_secret": "sec", "supplier_id": "4411"}

type fakeWayfair struct {
	t         *testing.T
	tokens    int
	offsets   []float64
	inventory []interface{}
	saveErrs  string
}

func (f *fakeWayfair) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/oauth/token":
		f.tokens++
		var body map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(f.t, "client_credentials", body["grant_type"])
		assert.Equal(f.t, "https://api.wayfair.com/", body["audience"])
		_, _ = w.Write([]byte(`{"access_token":"wf-token","expires_in":43200,"token_type":"Bearer"}`))
	case "/v1/graphql":
		assert.Equal(f.t, "Bearer wf-token", r.Header.Get("Authorization"))
		var req graphqlRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		if strings.HasPrefix(req.Query, "mutation") {
			f.inventory = req.Variables["inventory"].([]interface{})
			_, _ = w.Write([]byte(`{"data":{"inventory":{"save":{"handle":"h-1","submittedAt":"2024-06-01","errors":[` + f.saveErrs + `]}}}}`))
			return
		}
		offset := req.Variables["offset"].(float64)
		f.offsets = append(f.offsets, offset)
		var orders []string
		if offset == 0 {
			for i := 0; i < orderLimit; i++ {
				orders = append(orders, fmt.Sprintf(`{"poNumber":"CS%d","poDate":"2024-05-30 10:00:00"}`, i))
			}
		} else {
			orders = []string{`{"poNumber":"CS-last","poDate":"2024-05-31 10:00:00"}`, `{"poDate":"2024-05-31"}`}
		}
		_, _ = w.Write([]byte(`{"data":{"getDropshipPurchaseOrders":[` + strings.Join(orders, ",") + `]}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestConnector(t *testing.T, f *fakeWayfair) (*Connector, *connectortest.Env) {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	env := connectortest.NewEnv(t, models.MarketplaceWayfair, srv.URL)
	c, err := New(connectortest.Marketplace(models.MarketplaceWayfair, "Wayfair", creds), env.Deps)
	require.NoError(t, err)
	return c, env
}

func TestNew_RequiresNumericSupplier(t *testing.T) {
	env := connectortest.NewEnv(t, models.MarketplaceWayfair, "http://127.0.0.1:1")
	_, err := New(connectortest.Marketplace(models.MarketplaceWayfair, "Wayfair",
		map[string]string{"client_id": "cid", "client_secret": "sec", "supplier_id": "abc"}), env.Deps)
	assert.True(t, errors.Is(err, core.ErrConfig))
}

func TestConnector_DownloadOrdersPages(t *testing.T) {
	f := &fakeWayfair{t: t}
	c, env := newTestConnector(t, f)

	n, err := c.DownloadOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orderLimit+1, n)
	assert.Equal(t, []float64{0, orderLimit}, f.offsets)
	assert.Contains(t, env.Orders.Rows, "CS-last")
	assert.Equal(t, 1, f.tokens)
}

func TestConnector_UnsupportedCapabilities(t *testing.T) {
	c, _ := newTestConnector(t, &fakeWayfair{t: t})
	ctx := context.Background()

	_, err := c.Download(ctx, true)
	assert.True(t, errors.Is(err, core.ErrNotSupported))
	_, err = c.Import(ctx, services.ImportOptions{})
	assert.True(t, errors.Is(err, core.ErrNotSupported))
	_, err = c.DownloadInventory(ctx)
	assert.True(t, errors.Is(err, core.ErrNotSupported))
	err = c.SetPrice(ctx, &models.Variant{}, decimal.NewFromInt(10), "USD", services.WriteOptions{})
	assert.True(t, errors.Is(err, core.ErrNotSupported))
}

func TestConnector_SetInventory(t *testing.T) {
	f := &fakeWayfair{t: t}
	c, _ := newTestConnector(t, f)
	v := &models.Variant{UniqueMarketplaceID: "W1", Sku: "IW-LAMP-01", Title: "Lamp Brass"}

	require.NoError(t, c.SetInventory(context.Background(), v, 12, services.WriteOptions{}))
	require.Len(t, f.inventory, 1)
	item := f.inventory[0].(map[string]interface{})
	assert.Equal(t, float64(4411), item["supplierId"])
	assert.Equal(t, "IW-LAMP-01", item["supplierPartNumber"])
	assert.Equal(t, float64(12), item["quantityOnHand"])

	var audit map[string]json.RawMessage
	ok, err := c.Store.Sub("SetInventory").Get("IW-LAMP-01_20240601120000.json", 0, &audit)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(audit["response"]), "h-1")

	err = c.SetInventory(context.Background(), v, 10000, services.WriteOptions{})
	assert.True(t, errors.Is(err, core.ErrData))
}

func TestConnector_SetInventoryFeedRejected(t *testing.T) {
	f := &fakeWayfair{t: t, saveErrs: `{"key":"IW-LAMP-01","message":"unknown part"}`}
	c, _ := newTestConnector(t, f)

	err := c.SetInventory(context.Background(), &models.Variant{Sku: "IW-LAMP-01"}, 3, services.WriteOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrData))
	assert.Contains(t, err.Error(), "unknown part")
}
