package amazon

import (
	"fmt"
	"strings"

	"github.com/developkariyer/IWApim/internal/auth"
	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector"
	"github.com/developkariyer/IWApim/internal/transport"
)

const (
	lwaURL = "https://api.amazon.com/auth/o2/token"
	// registry namespace of ASIN -> seller SKU
	asinNamespace = "amazon-asin"
)

// Connector talks to the Selling Partner API of the main country's region.
type Connector struct {
	*connector.Base
	fetcher   *transport.Fetcher
	sellerID  string
	main      string
	countries []string
}

func New(mp *models.Marketplace, deps connector.Deps) (*Connector, error) {
	base, err := connector.NewBase(mp, models.MarketplaceAmazon, deps, 0,
		"client_id", "client_secret", "refresh_token", "seller_id")
	if err != nil {
		return nil, err
	}
	main := strings.ToUpper(mp.MainCountry)
	if main == "" {
		return nil, fmt.Errorf("%w: amazon marketplace %s has no main country", core.ErrConfig, mp.Key)
	}
	countries := []string{main}
	for _, cc := range mp.Countries {
		cc = strings.ToUpper(strings.TrimSpace(cc))
		if cc != "" && cc != main {
			countries = append(countries, cc)
		}
	}
	for _, cc := range countries {
		if _, err := lookup(cc); err != nil {
			return nil, err
		}
	}

	tokens := base.TokenManager("amazon", &auth.RefreshExchanger{
		URL:          base.AuthURL(lwaURL),
		ClientID:     base.Creds.Get("client_id"),
		ClientSecret: base.Creds.Get("client_secret"),
		RefreshToken: base.Creds.Get("refresh_token"),
		Client:       deps.Client,
	})
	return &Connector{
		Base:      base,
		fetcher:   base.NewFetcher(base.BaseURL(endpointFor(main)), auth.NewTokenHeaderAuth(tokens, "x-amz-access-token"), ""),
		sellerID:  base.Creds.Get("seller_id"),
		main:      main,
		countries: countries,
	}, nil
}

func (c *Connector) marketplaceID(country string) string {
	m, _ := lookup(country)
	return m.ID
}

var _ services.Connector = (*Connector)(nil)
