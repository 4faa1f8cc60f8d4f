package wayfair

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/developkariyer/IWApim/internal/auth"
	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/internal/transport"
)

const (
	tokenURL   = "https://sso.auth.wayfair.com/oauth/token"
	apiURL     = "https://api.wayfair.com"
	sandboxURL = "https://sandbox.api.wayfair.com"
	orderLimit = 100
	maxStock   = 9999
)

// Connector covers dropship purchase orders and inventory feeds. Wayfair has
// no listing API for suppliers.
type Connector struct {
	*connector.Base
	fetcher    *transport.Fetcher
	supplierID int
}

func New(mp *models.Marketplace, deps connector.Deps) (*Connector, error) {
	base, err := connector.NewBase(mp, models.MarketplaceWayfair, deps, 0, "client_id", "client_secret", "supplier_id")
	if err != nil {
		return nil, err
	}
	supplierID, err := strconv.Atoi(base.Creds.Get("supplier_id"))
	if err != nil {
		return nil, fmt.Errorf("%w: supplier_id %q is not numeric", core.ErrConfig, base.Creds.Get("supplier_id"))
	}
	api := apiURL
	if strings.EqualFold(base.Creds.Get("sandbox"), "true") {
		api = sandboxURL
	}
	tokens := base.TokenManager("wayfair", &auth.ClientCredentialsExchanger{
		URL:          base.AuthURL(tokenURL),
		ClientID:     base.Creds.Get("client_id"),
		ClientSecret: base.Creds.Get("client_secret"),
		Audience:     api + "/",
		Client:       deps.Client,
	})
	return &Connector{
		Base:       base,
		fetcher:    base.NewFetcher(base.BaseURL(api), auth.NewTokenAuth(tokens), ""),
		supplierID: supplierID,
	}, nil
}

func (c *Connector) Download(context.Context, bool) (int, error) {
	return 0, c.Unsupported("download")
}

func (c *Connector) Import(context.Context, services.ImportOptions) (services.ImportStats, error) {
	return services.ImportStats{}, c.Unsupported("import")
}

// DownloadOrders stores dropship purchase orders dated after the newest stored one.
func (c *Connector) DownloadOrders(ctx context.Context) (int, error) {
	last, err := c.LastOrderTime(ctx, "poDate")
	if err != nil {
		return 0, err
	}
	from := last
	if earliest := c.Now().AddDate(0, -3, 0); from.Before(earliest) {
		from = earliest
	}

	orders := map[string]json.RawMessage{}
	err = transport.ByOffset(ctx, orderLimit, func(ctx context.Context, offset, limit int) (int, int, error) {
		var page purchaseOrders
		_, err := c.graphql(ctx, "purchaseOrders", purchaseOrdersQuery, map[string]interface{}{
			"limit": limit, "offset": offset, "fromDate": from.Format(time.RFC3339),
		}, &page)
		if err != nil {
			return 0, 0, err
		}
		for _, raw := range page.Orders {
			var po purchaseOrder
			if err := json.Unmarshal(raw, &po); err != nil || po.PoNumber == "" {
				continue
			}
			orders[po.PoNumber] = raw
		}
		return len(page.Orders), -1, nil
	})
	if err != nil {
		return 0, err
	}
	return c.SaveOrders(ctx, orders)
}

func (c *Connector) DownloadInventory(context.Context) (int, error) {
	return 0, c.Unsupported("inventory")
}

// SetInventory sends a TRUE_UP feed for a single supplier part.
func (c *Connector) SetInventory(ctx context.Context, v *models.Variant, qty int, opts services.WriteOptions) error {
	if err := connector.CheckRange("quantity", qty, 0, maxStock); err != nil {
		return err
	}
	part := opts.Sku
	if part == "" {
		part = v.Sku
	}
	if part == "" {
		return fmt.Errorf("%w: variant %s has no supplier part number", core.ErrData, v.UniqueMarketplaceID)
	}
	input := []inventoryInput{{
		SupplierID:            c.supplierID,
		SupplierPartNumber:    part,
		QuantityOnHand:        qty,
		ProductNameAndOptions: v.Title,
	}}

	var result inventorySave
	data, err := c.graphql(ctx, "inventory/save", inventoryMutation, map[string]interface{}{"inventory": input}, &result)
	if err == nil && len(result.Inventory.Save.Errors) > 0 {
		e := result.Inventory.Save.Errors[0]
		err = fmt.Errorf("%w: inventory feed rejected %s: %s", core.ErrData, e.Key, e.Message)
	}
	c.Audit("SetInventory", fmt.Sprintf("%s_%s.json", part, c.Now().Format("20060102150405")), input, data, err)
	return err
}

func (c *Connector) SetPrice(context.Context, *models.Variant, decimal.Decimal, string, services.WriteOptions) error {
	return c.Unsupported("price")
}

var _ services.Connector = (*Connector)(nil)
