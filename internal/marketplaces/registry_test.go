package marketplaces

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/marketplaces/amazon"
	"github.com/developkariyer/IWApim/internal/marketplaces/bol"
	"github.com/developkariyer/IWApim/internal/marketplaces/connector/connectortest"
	"github.com/developkariyer/IWApim/internal/marketplaces/etsy"
)

func TestNew_DispatchesByType(t *testing.T) {
	env := connectortest.NewEnv(t, models.MarketplaceBol, "http://127.0.0.1:1")

	c, err := New(connectortest.Marketplace(models.MarketplaceBol, "Bol", map[string]string{"client_id": "a", "client_secret": "b"}), env.Deps)
	require.NoError(t, err)
	assert.IsType(t, &bol.Connector{}, c)
	assert.Equal(t, "Bol", c.Marketplace().Key)

	c, err = New(connectortest.Marketplace(models.MarketplaceEtsy, "Etsy", map[string]string{"client_id": "a", "refresh_token": "r", "shop_id": "1"}), env.Deps)
	require.NoError(t, err)
	assert.IsType(t, &etsy.Connector{}, c)

	mp := connectortest.Marketplace(models.MarketplaceAmazon, "AmazonDE", map[string]string{
		"client_id": "a", "client_secret": "b", "refresh_token": "r", "seller_id": "S",
	})
	mp.MainCountry = "DE"
	c, err = New(mp, env.Deps)
	require.NoError(t, err)
	assert.IsType(t, &amazon.Connector{}, c)
}

func TestNew_ConfigErrors(t *testing.T) {
	env := connectortest.NewEnv(t, models.MarketplaceBol, "http://127.0.0.1:1")

	tests := []struct {
		name string
		mp   *models.Marketplace
	}{
		{name: "nil", mp: nil},
		{name: "unknown type", mp: connectortest.Marketplace("Zalando", "Z", nil)},
		{name: "missing credentials", mp: connectortest.Marketplace(models.MarketplaceTrendyol, "Trendyol", map[string]string{"seller_id": "1"})},
		{name: "unpublished", mp: func() *models.Marketplace {
			mp := connectortest.Marketplace(models.MarketplaceCiceksepeti, "Cs", map[string]string{"api_key": "k"})
			mp.Published = false
			return mp
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.mp, env.Deps)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, core.ErrConfig), "got %v", err)
		})
	}
}

func TestNew_EveryTypeIsKnown(t *testing.T) {
	env := connectortest.NewEnv(t, models.MarketplaceBol, "http://127.0.0.1:1")
	for _, typ := range models.AllMarketplaceTypes() {
		_, err := New(connectortest.Marketplace(typ, string(typ), nil), env.Deps)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "unknown marketplace type", typ)
	}
}
