package storage

import "github.com/ethereum/go-ethereum/common"

// Key schema:
//
//   fill:<32-byte order hash> → filled quantity (big-endian big.Int bytes)
//   cfg:engine                → engine admin config (JSON)

const (
	prefixFill = "fill:"
	keyConfig  = "cfg:engine"
)

// fillKey returns the ledger key for an order identifier.
func fillKey(orderID common.Hash) []byte {
	return append([]byte(prefixFill), orderID[:]...)
}

// fillPrefix returns the prefix covering every ledger entry.
func fillPrefix() []byte {
	return []byte(prefixFill)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
