package wayfair

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/transport"
)

const purchaseOrdersQuery = `query getDropshipPurchaseOrders($limit: Int32!, $offset: Int32!, $fromDate: IsoDateTime) {
    getDropshipPurchaseOrders(limit: $limit, offset: $offset, fromDate: $fromDate, sortOrder: ASC) {
        poNumber
        poDate
        estimatedShipDate
        customerName
        customerCity
        customerState
        customerPostalCode
        orderType
        shippingInfo { shipSpeed carrierCode }
        packingSlipUrl
        warehouse { id name }
        products { partNumber quantity price event { startDate endDate } }
    }
}`

const inventoryMutation = `mutation inventory($inventory: [inventoryInput]!) {
    inventory {
        save(inventory: $inventory, feed_kind: TRUE_UP) {
            handle
            submittedAt
            errors { key message }
        }
    }
}`

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// graphql posts one query; top-level GraphQL errors come back as data errors.
func (c *Connector) graphql(ctx context.Context, operation, query string, variables map[string]interface{}, out interface{}) (json.RawMessage, error) {
	var resp graphqlResponse
	err := c.fetcher.JSON(ctx, transport.Request{
		Operation: operation, Method: http.MethodPost, Path: "/v1/graphql",
		JSON: graphqlRequest{Query: query, Variables: variables},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return resp.Data, fmt.Errorf("%w: %s: %s", core.ErrData, operation, strings.Join(msgs, "; "))
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return resp.Data, fmt.Errorf("%w: %s: %v", core.ErrData, operation, err)
		}
	}
	return resp.Data, nil
}

type purchaseOrders struct {
	Orders []json.RawMessage `json:"getDropshipPurchaseOrders"`
}

type purchaseOrder struct {
	PoNumber string `json:"poNumber"`
	PoDate   string `json:"poDate"`
}

type inventoryInput struct {
	SupplierID            int    `json:"supplierId"`
	SupplierPartNumber    string `json:"supplierPartNumber"`
	QuantityOnHand        int    `json:"quantityOnHand"`
	QuantityBackordered   int    `json:"quantityBackordered"`
	QuantityOnOrder       int    `json:"quantityOnOrder"`
	Discontinued          bool   `json:"discontinued"`
	ProductNameAndOptions string `json:"productNameAndOptions"`
}

type inventorySave struct {
	Inventory struct {
		Save struct {
			Handle      string `json:"handle"`
			SubmittedAt string `json:"submittedAt"`
			Errors      []struct {
				Key     string `json:"key"`
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"save"`
	} `json:"inventory"`
}
