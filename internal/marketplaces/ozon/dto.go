package ozon

import "encoding/json"

type productListRequest struct {
	Filter struct {
		Visibility string `json:"visibility"`
	} `json:"filter"`
	LastID string `json:"last_id"`
	Limit  int    `json:"limit"`
}

type productListResponse struct {
	Result struct {
		Items []struct {
			ProductID int64  `json:"product_id"`
			OfferID   string `json:"offer_id"`
			Archived  bool   `json:"archived"`
		} `json:"items"`
		Total  int    `json:"total"`
		LastID string `json:"last_id"`
	} `json:"result"`
}

type productInfoRequest struct {
	ProductID []int64 `json:"product_id"`
}

type productInfoResponse struct {
	Items []json.RawMessage `json:"items"`
}

type productInfo struct {
	ID                    int64    `json:"id"`
	Name                  string   `json:"name"`
	OfferID               string   `json:"offer_id"`
	Sku                   int64    `json:"sku"`
	Barcodes              []string `json:"barcodes"`
	CurrencyCode          string   `json:"currency_code"`
	Price                 string   `json:"price"`
	PrimaryImage          []string `json:"primary_image"`
	Images                []string `json:"images"`
	DescriptionCategoryID int64    `json:"description_category_id"`
	IsArchived            bool     `json:"is_archived"`
	Statuses              struct {
		Status string `json:"status"`
	} `json:"statuses"`
	Stocks struct {
		Stocks []struct {
			Present  int    `json:"present"`
			Reserved int    `json:"reserved"`
			Source   string `json:"source"`
		} `json:"stocks"`
	} `json:"stocks"`
}

type postingsRequest struct {
	Dir    string `json:"dir"`
	Filter struct {
		Since string `json:"since"`
		To    string `json:"to"`
	} `json:"filter"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type postingsResponse struct {
	Result struct {
		Postings []json.RawMessage `json:"postings"`
		HasNext  bool              `json:"has_next"`
	} `json:"result"`
}

type posting struct {
	PostingNumber string `json:"posting_number"`
}

type warehouseStocksRequest struct {
	Limit         int    `json:"limit"`
	Offset        int    `json:"offset"`
	WarehouseType string `json:"warehouse_type"`
}

type warehouseStocksResponse struct {
	Result struct {
		Rows []json.RawMessage `json:"rows"`
	} `json:"result"`
}

type warehouseStock struct {
	Sku              int64  `json:"sku"`
	ItemCode         string `json:"item_code"`
	FreeToSellAmount int    `json:"free_to_sell_amount"`
	WarehouseName    string `json:"warehouse_name"`
}

type stockUpdate struct {
	OfferID     string `json:"offer_id"`
	ProductID   int64  `json:"product_id"`
	Stock       int    `json:"stock"`
	WarehouseID int64  `json:"warehouse_id"`
}

type priceUpdate struct {
	OfferID      string `json:"offer_id"`
	ProductID    int64  `json:"product_id"`
	Price        string `json:"price"`
	OldPrice     string `json:"old_price"`
	CurrencyCode string `json:"currency_code"`
}

// importResult is the per-item answer of stock and price imports.
type importResult struct {
	Result []struct {
		OfferID   string `json:"offer_id"`
		ProductID int64  `json:"product_id"`
		Updated   bool   `json:"updated"`
		Errors    []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"result"`
}
