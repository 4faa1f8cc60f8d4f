package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type MarketplaceType string

const (
	MarketplaceAmazon      MarketplaceType = "Amazon"
	MarketplaceEtsy        MarketplaceType = "Etsy"
	MarketplaceShopify     MarketplaceType = "Shopify"
	MarketplaceTrendyol    MarketplaceType = "Trendyol"
	MarketplaceBol         MarketplaceType = "Bol.com"
	MarketplaceHepsiburada MarketplaceType = "Hepsiburada"
	MarketplaceWayfair     MarketplaceType = "Wayfair"
	MarketplaceCiceksepeti MarketplaceType = "Ciceksepeti"
	MarketplaceEbay        MarketplaceType = "Ebay"
	MarketplaceOzon        MarketplaceType = "Ozon"
)

func AllMarketplaceTypes() []MarketplaceType {
	return []MarketplaceType{
		MarketplaceAmazon, MarketplaceEtsy, MarketplaceShopify, MarketplaceTrendyol, MarketplaceBol,
		MarketplaceHepsiburada, MarketplaceWayfair, MarketplaceCiceksepeti, MarketplaceEbay, MarketplaceOzon,
	}
}

func (t MarketplaceType) IsValid() bool {
	for _, known := range AllMarketplaceTypes() {
		if t == known {
			return true
		}
	}
	return false
}

func (t MarketplaceType) String() string {
	return string(t)
}

// Marketplace is one sales channel integration. Operators own these rows;
// the engine only reads them.
type Marketplace struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Key         string          `gorm:"column:key;size:190;uniqueIndex" json:"key"`
	Type        MarketplaceType `gorm:"column:marketplace_type;size:32" json:"marketplace_type"`
	Published   bool            `json:"published"`
	Credentials datatypes.JSON  `json:"-"`
	Countries   pq.StringArray  `gorm:"type:text[]" json:"countries"`
	MainCountry string          `gorm:"size:8" json:"main_country"`
	FbaRegions  pq.StringArray  `gorm:"type:text[]" json:"fba_regions"`
	Currency    string          `gorm:"size:8" json:"currency"`
	// ErpStoreID is the Wisersell store id; empty means the marketplace is not mirrored in the ERP.
	ErpStoreID string    `gorm:"column:wisersell_store_id;size:64" json:"wisersell_store_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Marketplace) TableName() string {
	return "iwapim.marketplaces"
}

// Bundle decodes the per-type credential bundle.
func (m *Marketplace) Bundle() (CredentialBundle, error) {
	bundle := CredentialBundle{}
	if len(m.Credentials) == 0 {
		return bundle, nil
	}
	raw := map[string]interface{}{}
	if err := json.Unmarshal(m.Credentials, &raw); err != nil {
		return nil, fmt.Errorf("marketplace %s credentials: %w", m.Key, err)
	}
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			bundle[k] = val
		case nil:
		default:
			bundle[k] = strings.TrimSpace(fmt.Sprint(val))
		}
	}
	return bundle, nil
}

type CredentialBundle map[string]string

func (b CredentialBundle) Get(key string) string {
	return b[key]
}

// Missing lists required keys that are absent or blank.
func (b CredentialBundle) Missing(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if strings.TrimSpace(b[k]) == "" {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}
