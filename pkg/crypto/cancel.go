package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Cancel authorization uses the EIP-191 personal-message convention rather
// than typed data: the maker signs the ASCII string "cancel 0x<orderHash>"
// with eth_sign / personal_sign. This matches the message format the trading
// frontend produces via ethers.hashMessage.

// CancelMessage returns the exact ASCII string a maker signs to cancel an order.
func CancelMessage(orderID common.Hash) string {
	return fmt.Sprintf("cancel %s", orderID.Hex())
}

// CancelDigest computes the EIP-191 digest of the cancel message:
// keccak256("\x19Ethereum Signed Message:\n" || len(msg) || msg)
func CancelDigest(orderID common.Hash) []byte {
	msg := CancelMessage(orderID)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)))
	return h.Sum(nil)
}

// SignCancel signs a cancel request for the given order identifier.
func SignCancel(signer *Signer, orderID common.Hash) ([]byte, error) {
	return signer.Sign(CancelDigest(orderID))
}

// RecoverCancelSigner recovers the address that authorized a cancel.
func RecoverCancelSigner(orderID common.Hash, signature []byte) (common.Address, error) {
	return RecoverAddress(CancelDigest(orderID), signature)
}
