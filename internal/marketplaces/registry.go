// Package marketplaces builds the connector of a marketplace row.
package marketplaces

import (
	"fmt"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/marketplaces/amazon"
	"github.com/developkariyer/IWApim/internal/marketplaces/bol"
	"github.com/developkariyer/IWApim/internal/marketplaces/ciceksepeti"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/internal/marketplaces/ebay"
	"github.com/developkariyer/IWApim/internal/marketplaces/etsy"
	"github.com/developkariyer/IWApim/internal/marketplaces/hepsiburada"
	"github.com/developkariyer/IWApim/internal/marketplaces/ozon"
	"github.com/developkariyer/IWApim/internal/marketplaces/shopify"
	"github.com/developkariyer/IWApim/internal/marketplaces/trendyol"
	"github.com/developkariyer/IWApim/internal/marketplaces/wayfair"
)

// New validates the marketplace and returns the connector of its type.
func New(mp *models.Marketplace, deps connector.Deps) (services.Connector, error) {
	if mp == nil {
		return nil, fmt.Errorf("%w: nil marketplace", core.ErrConfig)
	}
	var c services.Connector
	var err error
	switch mp.Type {
	case models.MarketplaceAmazon:
		c, err = amazon.New(mp, deps)
	case models.MarketplaceEtsy:
		c, err = etsy.New(mp, deps)
	case models.MarketplaceShopify:
		c, err = shopify.New(mp, deps)
	case models.MarketplaceTrendyol:
		c, err = trendyol.New(mp, deps)
	case models.MarketplaceBol:
		c, err = bol.New(mp, deps)
	case models.MarketplaceHepsiburada:
		c, err = hepsiburada.New(mp, deps)
	case models.MarketplaceWayfair:
		c, err = wayfair.New(mp, deps)
	case models.MarketplaceCiceksepeti:
		c, err = ciceksepeti.New(mp, deps)
	case models.MarketplaceEbay:
		c, err = ebay.New(mp, deps)
	case models.MarketplaceOzon:
		c, err = ozon.New(mp, deps)
	default:
		return nil, fmt.Errorf("%w: unknown marketplace type %q of %s", core.ErrConfig, mp.Type, mp.Key)
	}
	if err != nil {
		// keep a typed nil pointer out of the interface
		return nil, err
	}
	return c, nil
}
