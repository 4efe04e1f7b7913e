// file: pkg/crypto/account.go
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/uhyunpark/anthic/pkg/ledger"
)

// AccountFromPublicKey derives the preallocated account of a 33-byte
// compressed secp256k1 public key: the entity type byte followed by the
// last 29 bytes of keccak256(pub).
func AccountFromPublicKey(pub []byte) ledger.ComponentAddress {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	sum := h.Sum(nil)
	body := sum[len(sum)-(ledger.NodeIDLength-1):]
	return ledger.ComponentAddress{NodeID: ledger.NewNodeID(ledger.EntityGlobalPreallocatedSecp256k1Account, body)}
}

// Keccak256 hashes the concatenation of data
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}
