package wisersell

import (
	"github.com/shopspring/decimal"

	"github.com/developkariyer/IWApim/internal/core/models"
)

// reconcileFields merges a local product and its ERP twin. A positive package
// measure wins over an empty one; when both sides are positive the local value
// is kept. Name, size and color always come from the local product.
// p is updated in place; the merged ERP product is returned.
func reconcileFields(p *models.Product, rp Product) (Product, bool, bool) {
	localChanged, remoteChanged := false, false

	measure := func(local *decimal.Decimal, remote *decimal.Decimal) {
		switch {
		case local.IsPositive() && !local.Equal(*remote):
			*remote = *local
			remoteChanged = true
		case !local.IsPositive() && remote.IsPositive():
			*local = *remote
			localChanged = true
		}
	}
	measure(&p.Weight, &rp.Weight.Decimal)
	measure(&p.Width, &rp.Width.Decimal)
	measure(&p.Length, &rp.Length.Decimal)
	measure(&p.Height, &rp.Height.Decimal)

	text := func(local string, remote *string) {
		if local != *remote {
			*remote = local
			remoteChanged = true
		}
	}
	text(p.Name, &rp.Name)
	text(p.VariationSize, &rp.ExtraData.VariationSize)
	text(p.VariationColor, &rp.ExtraData.VariationColor)

	return rp, localChanged, remoteChanged
}
