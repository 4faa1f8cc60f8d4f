package etsy

import "encoding/json"

type listingsPage struct {
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`
}

type listing struct {
	ListingID     int64     `json:"listing_id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	ShopSectionID *int64    `json:"shop_section_id"`
	Inventory     inventory `json:"inventory"`
}

type inventory struct {
	Products []json.RawMessage `json:"products"`
}

type product struct {
	ProductID      int64           `json:"product_id"`
	Sku            string          `json:"sku"`
	IsDeleted      bool            `json:"is_deleted"`
	Offerings      []offering      `json:"offerings"`
	PropertyValues []propertyValue `json:"property_values"`
}

type offering struct {
	Price     *money `json:"price"`
	Quantity  int    `json:"quantity"`
	IsEnabled bool   `json:"is_enabled"`
}

type money struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

type propertyValue struct {
	PropertyID   int64    `json:"property_id"`
	PropertyName string   `json:"property_name"`
	ScaleID      *int64   `json:"scale_id"`
	ValueIDs     []int64  `json:"value_ids"`
	Values       []string `json:"values"`
}

type receiptsPage struct {
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`
}

type receiptID struct {
	ReceiptID int64 `json:"receipt_id"`
}

// inventoryUpdate is the body of PUT /listings/{id}/inventory.
type inventoryUpdate struct {
	Products []productUpdate `json:"products"`
}

type productUpdate struct {
	Sku            string           `json:"sku"`
	PropertyValues []propertyUpdate `json:"property_values"`
	Offerings      []offeringUpdate `json:"offerings"`
}

type propertyUpdate struct {
	PropertyID   int64    `json:"property_id"`
	PropertyName string   `json:"property_name"`
	ScaleID      *int64   `json:"scale_id"`
	ValueIDs     []int64  `json:"value_ids"`
	Values       []string `json:"values"`
}

type offeringUpdate struct {
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
	IsEnabled bool        `json:"is_enabled"`
}
