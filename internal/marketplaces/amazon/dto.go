package amazon

import (
	"encoding/json"

	"github.com/developkariyer/IWApim/pkg/report"
)

// listing is one ASIN with its report rows per country and the catalog item.
type listing struct {
	ASIN      string                  `json:"asin"`
	Countries map[string][]report.Row `json:"countries"`
	Catalog   json.RawMessage         `json:"catalog,omitempty"`
}

type createReportRequest struct {
	ReportType     string   `json:"reportType"`
	MarketplaceIDs []string `json:"marketplaceIds"`
}

type createReportResponse struct {
	ReportID string `json:"reportId"`
}

type reportStatus struct {
	ReportID         string `json:"reportId"`
	ProcessingStatus string `json:"processingStatus"`
	ReportDocumentID string `json:"reportDocumentId"`
}

type reportDocument struct {
	ReportDocumentID     string `json:"reportDocumentId"`
	URL                  string `json:"url"`
	CompressionAlgorithm string `json:"compressionAlgorithm"`
}

type catalogResponse struct {
	NumberOfResults int               `json:"numberOfResults"`
	Items           []json.RawMessage `json:"items"`
}

type catalogItem struct {
	ASIN      string `json:"asin"`
	Summaries []struct {
		MarketplaceID string `json:"marketplaceId"`
		ItemName      string `json:"itemName"`
		Color         string `json:"color"`
		Size          string `json:"size"`
		Style         string `json:"style"`
	} `json:"summaries"`
	Images []struct {
		MarketplaceID string `json:"marketplaceId"`
		Images        []struct {
			Variant string `json:"variant"`
			Link    string `json:"link"`
		} `json:"images"`
	} `json:"images"`
	ProductTypes []struct {
		MarketplaceID string `json:"marketplaceId"`
		ProductType   string `json:"productType"`
	} `json:"productTypes"`
	Identifiers []struct {
		Identifiers []struct {
			IdentifierType string `json:"identifierType"`
			Identifier     string `json:"identifier"`
		} `json:"identifiers"`
	} `json:"identifiers"`
}

type ordersResponse struct {
	Payload struct {
		Orders    []json.RawMessage `json:"Orders"`
		NextToken string            `json:"NextToken"`
	} `json:"payload"`
}

type orderID struct {
	AmazonOrderID string `json:"AmazonOrderId"`
}

type inventoryResponse struct {
	Payload struct {
		InventorySummaries []json.RawMessage `json:"inventorySummaries"`
	} `json:"payload"`
	Pagination struct {
		NextToken string `json:"nextToken"`
	} `json:"pagination"`
}

type inventorySummary struct {
	ASIN             string `json:"asin"`
	FnSku            string `json:"fnSku"`
	SellerSku        string `json:"sellerSku"`
	TotalQuantity    int    `json:"totalQuantity"`
	InventoryDetails *struct {
		FulfillableQuantity int `json:"fulfillableQuantity"`
	} `json:"inventoryDetails"`
}

type patchRequest struct {
	ProductType string  `json:"productType"`
	Patches     []patch `json:"patches"`
}

type patch struct {
	Op    string        `json:"op"`
	Path  string        `json:"path"`
	Value []interface{} `json:"value"`
}

type patchResponse struct {
	Sku    string `json:"sku"`
	Status string `json:"status"`
	Issues []struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Severity string `json:"severity"`
	} `json:"issues"`
}
