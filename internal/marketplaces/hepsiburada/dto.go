package hepsiburada

import "encoding/json"

type listingsPage struct {
	TotalCount int               `json:"totalCount"`
	Listings   []json.RawMessage `json:"listings"`
}

type listing struct {
	HepsiburadaSku string       `json:"hepsiburadaSku"`
	MerchantSku    string       `json:"merchantSku"`
	Price          json.Number  `json:"price"`
	AvailableStock int          `json:"availableStock"`
	IsSalable      bool         `json:"isSalable"`
	Attributes     *productInfo `json:"attributes"`
}

type productInfo struct {
	HbSku                 string   `json:"hbSku"`
	MerchantSku           string   `json:"merchantSku"`
	Barcode               string   `json:"barcode"`
	ProductName           string   `json:"productName"`
	VariantGroupID        string   `json:"variantGroupId"`
	Images                []string `json:"images"`
	VariantTypeAttributes []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"variantTypeAttributes"`
}

type productsResponse struct {
	Data []json.RawMessage `json:"data"`
}

type ordersPage struct {
	TotalCount int               `json:"totalCount"`
	Items      []json.RawMessage `json:"items"`
}

type orderRef struct {
	OrderNumber string `json:"orderNumber"`
	ID          string `json:"id"`
}

type stockUpload struct {
	HepsiburadaSku string `json:"hepsiburadaSku"`
	MerchantSku    string `json:"merchantSku"`
	AvailableStock int    `json:"availableStock"`
}

type priceUpload struct {
	HepsiburadaSku string      `json:"hepsiburadaSku"`
	MerchantSku    string      `json:"merchantSku"`
	Price          json.Number `json:"price"`
}

type uploadResponse struct {
	ID string `json:"id"`
}
