package shopify

import "encoding/json"

type productsPage struct {
	Products []json.RawMessage `json:"products"`
}

type image struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
}

type product struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Handle      string            `json:"handle"`
	ProductType string            `json:"product_type"`
	Status      string            `json:"status"`
	Images      []image           `json:"images"`
	Image       *image            `json:"image"`
	Variants    []json.RawMessage `json:"variants"`
}

type variant struct {
	ID                int64   `json:"id"`
	ProductID         int64   `json:"product_id"`
	Title             string  `json:"title"`
	Sku               string  `json:"sku"`
	Barcode           string  `json:"barcode"`
	Price             string  `json:"price"`
	InventoryQuantity int     `json:"inventory_quantity"`
	InventoryItemID   int64   `json:"inventory_item_id"`
	Option1           *string `json:"option1"`
	Option2           *string `json:"option2"`
	Option3           *string `json:"option3"`
	ImageID           *int64  `json:"image_id"`
}

type ordersPage struct {
	Orders []json.RawMessage `json:"orders"`
}

type orderID struct {
	ID int64 `json:"id"`
}

type location struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CountryCode string `json:"country_code"`
	Active      bool   `json:"active"`
}

type locationsPage struct {
	Locations []location `json:"locations"`
}

type inventoryLevel struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
	Available       *int  `json:"available"`
}

type inventoryLevelsPage struct {
	InventoryLevels []json.RawMessage `json:"inventory_levels"`
}

type setLevelRequest struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

type variantPriceRequest struct {
	Variant struct {
		ID    int64  `json:"id"`
		Price string `json:"price"`
	} `json:"variant"`
}
