package ebay

import "encoding/json"

type inventoryItemsPage struct {
	Total          int               `json:"total"`
	InventoryItems []json.RawMessage `json:"inventoryItems"`
}

type inventoryItem struct {
	Sku          string `json:"sku"`
	Condition    string `json:"condition"`
	Availability struct {
		ShipToLocationAvailability struct {
			Quantity int `json:"quantity"`
		} `json:"shipToLocationAvailability"`
	} `json:"availability"`
	Product struct {
		Title     string              `json:"title"`
		Aspects   map[string][]string `json:"aspects"`
		ImageURLs []string            `json:"imageUrls"`
		EAN       []string            `json:"ean"`
		UPC       []string            `json:"upc"`
	} `json:"product"`
	GroupIDs []string `json:"inventoryItemGroupKeys"`
}

type offersPage struct {
	Total  int     `json:"total"`
	Offers []offer `json:"offers"`
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type offer struct {
	OfferID        string `json:"offerId"`
	Sku            string `json:"sku"`
	MarketplaceID  string `json:"marketplaceId"`
	Status         string `json:"status"`
	CategoryID     string `json:"categoryId"`
	PricingSummary struct {
		Price amount `json:"price"`
	} `json:"pricingSummary"`
	Listing struct {
		ListingID     string `json:"listingId"`
		ListingStatus string `json:"listingStatus"`
	} `json:"listing"`
}

type ordersPage struct {
	Total  int               `json:"total"`
	Orders []json.RawMessage `json:"orders"`
}

type orderID struct {
	OrderID string `json:"orderId"`
}

type bulkRequest struct {
	Requests []bulkItem `json:"requests"`
}

type bulkItem struct {
	Sku                        string          `json:"sku"`
	ShipToLocationAvailability *availability   `json:"shipToLocationAvailability,omitempty"`
	Offers                     []offerPriceQty `json:"offers,omitempty"`
}

type availability struct {
	Quantity int `json:"quantity"`
}

type offerPriceQty struct {
	OfferID string  `json:"offerId"`
	Price   *amount `json:"price,omitempty"`
}

type bulkResponse struct {
	Responses []struct {
		StatusCode int    `json:"statusCode"`
		Sku        string `json:"sku"`
		OfferID    string `json:"offerId"`
		Errors     []struct {
			ErrorID int    `json:"errorId"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"responses"`
}
