package storage

import (
	"fmt"

	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/ledger"
)

// Key schema:
//
//	ord:<hash>            → OrderRecord (JSON)
//	acc:<account>:<hash>  → hash (index)
const (
	prefixOrder   = "ord:"
	prefixAccount = "acc:"
)

// orderKey returns the key for an order
// Format: "ord:{hash}"
func orderKey(h intent.Hash) []byte {
	return []byte(prefixOrder + h.String())
}

// accountOrderKey returns the index key of an order under its account
// Format: "acc:{account}:{hash}"
func accountOrderKey(account ledger.ComponentAddress, h intent.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixAccount, account, h))
}

// accountPrefix returns the prefix for all orders of an account
// Format: "acc:{account}:"
func accountPrefix(account ledger.ComponentAddress) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixAccount, account))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
