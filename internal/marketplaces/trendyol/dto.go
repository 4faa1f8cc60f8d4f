package trendyol

import "encoding/json"

type page struct {
	TotalElements int               `json:"totalElements"`
	TotalPages    int               `json:"totalPages"`
	Page          int               `json:"page"`
	Size          int               `json:"size"`
	Content       []json.RawMessage `json:"content"`
}

type product struct {
	ID            string      `json:"id"`
	Barcode       string      `json:"barcode"`
	Title         string      `json:"title"`
	ProductMainID string      `json:"productMainId"`
	StockCode     string      `json:"stockCode"`
	Quantity      int         `json:"quantity"`
	SalePrice     json.Number `json:"salePrice"`
	CurrencyType  string      `json:"currencyType"`
	Approved      bool        `json:"approved"`
	OnSale        bool        `json:"onSale"`
	Archived      bool        `json:"archived"`
	ProductURL    string      `json:"productUrl"`
	CategoryName  string      `json:"categoryName"`
	Images        []struct {
		URL string `json:"url"`
	} `json:"images"`
	Attributes []struct {
		AttributeName  string `json:"attributeName"`
		AttributeValue string `json:"attributeValue"`
	} `json:"attributes"`
}

type shipmentPackage struct {
	ID               json.Number `json:"id"`
	OrderNumber      string      `json:"orderNumber"`
	LastModifiedDate int64       `json:"lastModifiedDate"`
}

type priceInventoryItem struct {
	Barcode   string       `json:"barcode"`
	Quantity  *int         `json:"quantity,omitempty"`
	SalePrice *json.Number `json:"salePrice,omitempty"`
	ListPrice *json.Number `json:"listPrice,omitempty"`
}

type priceInventoryRequest struct {
	Items []priceInventoryItem `json:"items"`
}

type batchRequest struct {
	BatchRequestID string `json:"batchRequestId"`
}
