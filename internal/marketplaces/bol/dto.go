package bol

import "encoding/json"

type processStatus struct {
	ProcessStatusID string `json:"processStatusId"`
	EntityID        string `json:"entityId"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"errorMessage"`
	Links           []struct {
		Rel    string `json:"rel"`
		Href   string `json:"href"`
		Method string `json:"method"`
	} `json:"links"`
}

// listingView is the typed part of a stored listing: the offer export row
// flattened together with the per-EAN extras.
type listingView struct {
	Ean        string      `json:"ean"`
	OfferID    string      `json:"offerId"`
	Reference  string      `json:"referenceCode"`
	Price      string      `json:"bundlePricesPrice"`
	Stock      string      `json:"correctedStock"`
	Catalog    *catalog    `json:"catalog"`
	Assets     *assets     `json:"assets"`
	Placement  *placement  `json:"placement"`
	ProductIDs *productIDs `json:"product-ids"`
}

type catalog struct {
	Published  bool `json:"published"`
	Attributes []struct {
		ID     string `json:"id"`
		Values []struct {
			Value string `json:"value"`
		} `json:"values"`
	} `json:"attributes"`
}

// attribute returns the first values of the given attribute ids joined by a space.
func (c *catalog) attribute(ids ...string) string {
	if c == nil {
		return ""
	}
	var out []string
	for _, id := range ids {
		for _, a := range c.Attributes {
			if a.ID == id && len(a.Values) > 0 && a.Values[0].Value != "" {
				out = append(out, a.Values[0].Value)
				break
			}
		}
	}
	return joinSpace(out)
}

type assets struct {
	Assets []struct {
		Usage    string `json:"usage"`
		Variants []struct {
			Size string `json:"size"`
			URL  string `json:"url"`
		} `json:"variants"`
	} `json:"assets"`
}

func (a *assets) firstImage() string {
	if a == nil {
		return ""
	}
	for _, asset := range a.Assets {
		for _, v := range asset.Variants {
			if v.URL != "" {
				return v.URL
			}
		}
	}
	return ""
}

type category struct {
	CategoryID    string     `json:"categoryId"`
	CategoryName  string     `json:"categoryName"`
	Name          string     `json:"name"`
	SubCategories []category `json:"subCategories"`
}

type placement struct {
	URL        string     `json:"url"`
	Categories []category `json:"categories"`
}

// path follows the first category and its first subcategories down the tree.
func (p *placement) path() []string {
	if p == nil || len(p.Categories) == 0 || p.Categories[0].CategoryName == "" {
		return nil
	}
	out := []string{p.Categories[0].CategoryName}
	subs := p.Categories[0].SubCategories
	for len(subs) > 0 {
		if subs[0].Name != "" {
			out = append(out, subs[0].Name)
		}
		subs = subs[0].SubCategories
	}
	return out
}

type productIDs struct {
	BolProductID string `json:"bolProductId"`
}

type ordersPage struct {
	Orders []json.RawMessage `json:"orders"`
}

type inventoryPage struct {
	Inventory []json.RawMessage `json:"inventory"`
}

type inventoryItem struct {
	Ean          string `json:"ean"`
	Bsku         string `json:"bsku"`
	RegularStock int    `json:"regularStock"`
	GradedStock  int    `json:"gradedStock"`
}

type stockUpdate struct {
	Amount            int  `json:"amount"`
	ManagedByRetailer bool `json:"managedByRetailer"`
}

type bundlePrice struct {
	UnitPrice json.Number `json:"unitPrice"`
	Quantity  int         `json:"quantity"`
}

type priceUpdate struct {
	Pricing struct {
		BundlePrices []bundlePrice `json:"bundlePrices"`
	} `json:"pricing"`
}
