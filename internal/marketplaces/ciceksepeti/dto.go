package ciceksepeti

import "encoding/json"

type productsPage struct {
	TotalCount int               `json:"totalCount"`
	Products   []json.RawMessage `json:"products"`
}

type product struct {
	ProductName       string      `json:"productName"`
	ProductCode       string      `json:"productCode"`
	StockCode         string      `json:"stockCode"`
	MainProductCode   string      `json:"mainProductCode"`
	Barcode           string      `json:"barcode"`
	IsActive          bool        `json:"isActive"`
	ProductStatusType string      `json:"productStatusType"`
	StockQuantity     int         `json:"stockQuantity"`
	SalesPrice        json.Number `json:"salesPrice"`
	ListPrice         json.Number `json:"listPrice"`
	Link              string      `json:"link"`
	Images            []string    `json:"images"`
	Attributes        []attribute `json:"attributes"`
}

type attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type stockPriceItem struct {
	StockCode     string       `json:"stockCode"`
	StockQuantity *int         `json:"stockQuantity,omitempty"`
	ListPrice     *json.Number `json:"listPrice,omitempty"`
	SalesPrice    *json.Number `json:"salesPrice,omitempty"`
}

type stockPriceRequest struct {
	Items []stockPriceItem `json:"items"`
}

type batchResponse struct {
	BatchID string `json:"batchId"`
}
