package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Variant is the canonical sellable offer produced from one marketplace listing.
// (MarketplaceID, UniqueMarketplaceID) is unique; removal is Published=false.
type Variant struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	MarketplaceID       uint            `gorm:"not null;uniqueIndex:variant_products_marketplace_unique_idx,priority:1" json:"marketplace_id"`
	UniqueMarketplaceID string          `gorm:"size:190;not null;uniqueIndex:variant_products_marketplace_unique_idx,priority:2" json:"unique_marketplace_id"`
	Sku                 string          `gorm:"size:190" json:"sku"`
	Ean                 string          `gorm:"size:64" json:"ean"`
	Title               string          `json:"title"`
	Attributes          string          `json:"attributes"`
	SalePrice           decimal.Decimal `gorm:"type:numeric(14,4)" json:"sale_price"`
	SaleCurrency        string          `gorm:"size:8" json:"sale_currency"`
	Quantity            int             `json:"quantity"`
	Published           bool            `json:"published"`
	URL                 string          `json:"url"`
	ImageURL            string          `json:"image_url"`
	PlacementPath       string          `json:"placement_path"`
	StoreProductID      string          `gorm:"size:190" json:"store_product_id"`
	VariantCode         string          `gorm:"size:190" json:"variant_code"`
	ParentProductID     *uint           `json:"parent_product_id"`
	APIResponseJSON     datatypes.JSON  `gorm:"column:api_response_json" json:"api_response_json"`
	ParentResponseJSON  datatypes.JSON  `gorm:"column:parent_response_json" json:"parent_response_json"`
	ErpListingID        string          `gorm:"column:wisersell_listing_id;size:64" json:"wisersell_listing_id"`
	SyncCode            string          `gorm:"size:40" json:"sync_code"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (Variant) TableName() string {
	return "iwapim.variant_products"
}

// ResponseField reads a top-level field of the stored API response as text.
func (v *Variant) ResponseField(key string) string {
	if len(v.APIResponseJSON) == 0 {
		return ""
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(v.APIResponseJSON, &raw); err != nil {
		return ""
	}
	return rawText(raw[key])
}

// ResponseObject decodes a nested object of the stored API response.
func (v *Variant) ResponseObject(key string, out interface{}) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(v.APIResponseJSON, &raw); err != nil {
		return fmt.Errorf("variant %s response: %w", v.UniqueMarketplaceID, err)
	}
	field, ok := raw[key]
	if !ok {
		return fmt.Errorf("variant %s response has no %q", v.UniqueMarketplaceID, key)
	}
	return json.Unmarshal(field, out)
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}
