package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains/contracts
type EIP712Domain struct {
	Name              string         // Protocol name ("TegroDEX")
	Version           string         // Protocol version ("1")
	ChainID           *big.Int       // Chain ID (31337 for local hardhat-style devnet)
	VerifyingContract common.Address // Settlement contract address (or zero for off-chain)
}

// OrderEIP712 is the typed data structure makers sign in their wallets.
// Field order and types are fixed; any deviation changes the digest and
// breaks byte-for-byte agreement with off-chain signers.
type OrderEIP712 struct {
	BaseToken     common.Address // Asset being bought/sold
	QuoteToken    common.Address // Asset the price is quoted in
	Price         *big.Int       // Quote smallest-units per one whole base unit
	TotalQuantity *big.Int       // Maximum base amount, base smallest-units
	IsBuy         bool           // Side flag
	Salt          *big.Int       // Maker-chosen nonce
	Maker         common.Address // Account whose signature authorizes the order
}

// orderType is the EIP-712 schema for Order.
// Must match the ethers.js `signTypedData` type list used by the trading frontend.
var orderType = []apitypes.Type{
	{Name: "baseToken", Type: "address"},
	{Name: "quoteToken", Type: "address"},
	{Name: "price", Type: "uint256"},
	{Name: "totalQuantity", Type: "uint256"},
	{Name: "isBuy", Type: "bool"},
	{Name: "salt", Type: "uint256"},
	{Name: "maker", Type: "address"},
}

// EIP712Signer handles EIP-712 typed data hashing and verification for orders
type EIP712Signer struct {
	domain EIP712Domain
}

// NewEIP712Signer creates a new EIP-712 signer with given domain
func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the default EIP-712 domain for TegroDEX
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "TegroDEX",
		Version:           "1",
		ChainID:           big.NewInt(31337),
		VerifyingContract: common.Address{},
	}
}

func (e *EIP712Signer) typedData(order *OrderEIP712) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": orderType,
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"baseToken":     order.BaseToken.Hex(),
			"quoteToken":    order.QuoteToken.Hex(),
			"price":         order.Price.String(),
			"totalQuantity": order.TotalQuantity.String(),
			"isBuy":         order.IsBuy,
			"salt":          order.Salt.String(),
			"maker":         order.Maker.Hex(),
		},
	}
}

// HashOrder hashes an order according to EIP-712 spec.
// Returns the 32-byte digest that makers sign; the same digest doubles as
// the order identifier keyed by the fill ledger.
func (e *EIP712Signer) HashOrder(order *OrderEIP712) ([]byte, error) {
	typedData := e.typedData(order)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	digest := crypto.Keccak256Hash(rawData)

	return digest.Bytes(), nil
}

// SignOrder signs an order and returns the 65-byte signature
func (e *EIP712Signer) SignOrder(signer *Signer, order *OrderEIP712) ([]byte, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	return signature, nil
}

// VerifyOrderSignature verifies that an order signature is valid.
// Returns true only if the recovered signer equals the order's declared maker.
func (e *EIP712Signer) VerifyOrderSignature(order *OrderEIP712, signature []byte) (bool, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return false, fmt.Errorf("failed to hash order: %w", err)
	}

	recoveredAddr, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}

	return recoveredAddr == order.Maker, nil
}

// RecoverOrderSigner recovers the address that signed an order
func (e *EIP712Signer) RecoverOrderSigner(order *OrderEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash order: %w", err)
	}

	return RecoverAddress(hash, signature)
}

// OrderToJSON converts an order to the JSON payload wallets expect for
// eth_signTypedData_v4 (MetaMask and friends)
func (e *EIP712Signer) OrderToJSON(order *OrderEIP712) (string, error) {
	typedData := map[string]interface{}{
		"types": map[string]interface{}{
			"EIP712Domain": []map[string]string{
				{"name": "name", "type": "string"},
				{"name": "version", "type": "string"},
				{"name": "chainId", "type": "uint256"},
				{"name": "verifyingContract", "type": "address"},
			},
			"Order": []map[string]string{
				{"name": "baseToken", "type": "address"},
				{"name": "quoteToken", "type": "address"},
				{"name": "price", "type": "uint256"},
				{"name": "totalQuantity", "type": "uint256"},
				{"name": "isBuy", "type": "bool"},
				{"name": "salt", "type": "uint256"},
				{"name": "maker", "type": "address"},
			},
		},
		"primaryType": "Order",
		"domain": map[string]interface{}{
			"name":              e.domain.Name,
			"version":           e.domain.Version,
			"chainId":           e.domain.ChainID.String(),
			"verifyingContract": e.domain.VerifyingContract.Hex(),
		},
		"message": map[string]interface{}{
			"baseToken":     order.BaseToken.Hex(),
			"quoteToken":    order.QuoteToken.Hex(),
			"price":         order.Price.String(),
			"totalQuantity": order.TotalQuantity.String(),
			"isBuy":         order.IsBuy,
			"salt":          order.Salt.String(),
			"maker":         order.Maker.Hex(),
		},
	}

	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return string(jsonBytes), nil
}
