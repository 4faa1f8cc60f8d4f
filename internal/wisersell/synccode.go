package wisersell

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// SyncCode links a canonical variant to its ERP listing. It depends only on
// marketplace identifiers, so independent runs compute the same value.
func SyncCode(storeID, storeProductID, variantCode string) string {
	var key string
	if variantCode == "" {
		key = fmt.Sprintf("%s_%s", storeID, storeProductID)
	} else {
		key = fmt.Sprintf("%s_%s_%s", storeID, storeProductID, variantCode)
	}
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
