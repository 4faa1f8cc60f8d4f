package amazon

import (
	"fmt"
	"strings"

	"github.com/developkariyer/IWApim/internal/core"
)

const (
	endpointNA = "https://sellingpartnerapi-na.amazon.com"
	endpointEU = "https://sellingpartnerapi-eu.amazon.com"
	endpointFE = "https://sellingpartnerapi-fe.amazon.com"
)

type merchant struct {
	ID       string
	Currency string
	Domain   string
}

var merchants = map[string]merchant{
	"US": {"ATVPDKIKX0DER", "USD", "amazon.com"},
	"CA": {"A2EUQ1WTGCTBG2", "CAD", "amazon.ca"},
	"MX": {"A1AM78C64UM0Y8", "MXN", "amazon.com.mx"},
	"BR": {"A2Q3Y263D00KWC", "BRL", "amazon.com.br"},
	"UK": {"A1F83G8C2ARO7P", "GBP", "amazon.co.uk"},
	"DE": {"A1PA6795UKMFR9", "EUR", "amazon.de"},
	"FR": {"A13V1IB3VIYZZH", "EUR", "amazon.fr"},
	"IT": {"APJ6JRA9NG5V4", "EUR", "amazon.it"},
	"ES": {"A1RKKUPIHCS9HS", "EUR", "amazon.es"},
	"NL": {"A1805IZSGTT6HS", "EUR", "amazon.nl"},
	"BE": {"AMEN7PMS3EDWL", "EUR", "amazon.com.be"},
	"SE": {"A2NODRKZP88ZB9", "SEK", "amazon.se"},
	"PL": {"A1C3SOZRARQ6R3", "PLN", "amazon.pl"},
	"TR": {"A33AVAJ2PDY3EV", "TRY", "amazon.com.tr"},
	"SA": {"A17E79C6D8DWNP", "SAR", "amazon.sa"},
	"AE": {"A2VIGQ35RCS4UG", "AED", "amazon.ae"},
	"EG": {"ARBP9OOSHTCHU", "EGP", "amazon.eg"},
	"IN": {"A21TJRUUN4KGV", "INR", "amazon.in"},
	"JP": {"A1VC38T7YXB528", "JPY", "amazon.co.jp"},
	"AU": {"A39IBJ37TRP1C6", "AUD", "amazon.com.au"},
	"SG": {"A19VAU5U5O7RUS", "SGD", "amazon.sg"},
}

// endpointFor picks the SP-API region of the main country.
func endpointFor(country string) string {
	switch country {
	case "SG", "AU", "JP", "IN":
		return endpointFE
	case "UK", "FR", "DE", "IT", "ES", "NL", "BE", "SE", "PL", "TR", "SA", "AE", "EG":
		return endpointEU
	}
	return endpointNA
}

func lookup(country string) (merchant, error) {
	m, ok := merchants[strings.ToUpper(country)]
	if !ok {
		return merchant{}, fmt.Errorf("%w: unknown amazon country %q", core.ErrConfig, country)
	}
	return m, nil
}
