package models

import "encoding/json"

// Order keeps the full marketplace payload; (MarketplaceID, OrderID) is unique.
type Order struct {
	MarketplaceID uint
	OrderID       string
	JSON          json.RawMessage
}

// InventoryRecord is one row of a per-country on-hand snapshot.
type InventoryRecord struct {
	MarketplaceID uint
	Country       string
	Sku           string
	ExternalID    string
	Quantity      int
	Detail        json.RawMessage
}

// RegistryEntry is a namespaced key/value pair, e.g. amazon-asin ASIN -> seller SKU.
type RegistryEntry struct {
	Namespace string
	Key       string
	Value     string
}
