package wisersell

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ID is an ERP identifier. The API returns numbers, the local tables keep text.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("wisersell id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

type Category struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name"`
}

type ExtraData struct {
	VariationSize  string `json:"variationSize"`
	VariationColor string `json:"variationColor"`
}

// Measure is a package weight or dimension. It goes out as a JSON number,
// zero as null.
type Measure struct {
	decimal.Decimal
}

func NewMeasure(d decimal.Decimal) Measure {
	return Measure{Decimal: d}
}

func (m Measure) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return []byte(m.String()), nil
}

func (m *Measure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		m.Decimal = decimal.Zero
		return nil
	}
	return m.Decimal.UnmarshalJSON(data)
}

type Product struct {
	ID          ID        `json:"id,omitempty"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	CategoryID  ID        `json:"categoryId,omitempty"`
	Weight      Measure   `json:"weight"`
	Width       Measure   `json:"width"`
	Length      Measure   `json:"length"`
	Height      Measure   `json:"height"`
	ExtraData   ExtraData `json:"extradata"`
	Subproducts []Product `json:"subproducts"`

	// raw is the row as the ERP sent it
	raw json.RawMessage
}

func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Product(v)
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Record is the product as the ERP sent it, unknown fields included.
// Products built locally are encoded from their typed fields.
func (p Product) Record() (json.RawMessage, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	return json.Marshal(p)
}

// withUpdates writes the fields reconcileFields manages back into the raw row.
func (p Product) withUpdates() Product {
	if len(p.raw) == 0 {
		return p
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(p.raw, &fields); err != nil || fields == nil {
		p.raw = nil
		return p
	}
	set := func(m map[string]json.RawMessage, key string, v interface{}) {
		if data, err := json.Marshal(v); err == nil {
			m[key] = data
		}
	}
	set(fields, "name", p.Name)
	set(fields, "weight", p.Weight)
	set(fields, "width", p.Width)
	set(fields, "length", p.Length)
	set(fields, "height", p.Height)

	extra := map[string]json.RawMessage{}
	if data, ok := fields["extradata"]; ok {
		if err := json.Unmarshal(data, &extra); err != nil || extra == nil {
			extra = map[string]json.RawMessage{}
		}
	}
	set(extra, "variationSize", p.ExtraData.VariationSize)
	set(extra, "variationColor", p.ExtraData.VariationColor)
	set(fields, "extradata", extra)

	data, err := json.Marshal(fields)
	if err != nil {
		p.raw = nil
		return p
	}
	p.raw = data
	return p
}

type Store struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
}

type Listing struct {
	ID             ID     `json:"id,omitempty"`
	StoreProductID string `json:"storeProductId"`
	ProductID      ID     `json:"productId"`
	ShopID         ID     `json:"shopId"`
	VariantCode    string `json:"variantCode,omitempty"`

	raw json.RawMessage
}

func (l *Listing) UnmarshalJSON(data []byte) error {
	type plain Listing
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = Listing(v)
	l.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Record is the listing as the ERP sent it.
func (l Listing) Record() (json.RawMessage, error) {
	if len(l.raw) > 0 {
		return l.raw, nil
	}
	return json.Marshal(l)
}

// SyncCode of the listing as computed from its own identifiers.
func (l Listing) SyncCode() string {
	return SyncCode(l.ShopID.String(), l.StoreProductID, l.VariantCode)
}

type searchRequest struct {
	Code     string `json:"code,omitempty"`
	StoreID  ID     `json:"storeId,omitempty"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type productPage struct {
	Count int       `json:"count"`
	Rows  []Product `json:"rows"`
}

type listingPage struct {
	Count int       `json:"count"`
	Rows  []Listing `json:"rows"`
}
