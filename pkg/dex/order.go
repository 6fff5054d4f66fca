package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tegro/tegrodex/pkg/crypto"
)

// Order is an off-band negotiated, maker-signed commitment to trade.
// Immutable once signed: any field change produces a different identifier
// and invalidates the signature.
type Order struct {
	BaseToken     common.Address // asset being traded
	QuoteToken    common.Address // asset the price is quoted in
	Price         *big.Int       // quote smallest-units per whole base unit
	TotalQuantity *big.Int       // max base amount, base smallest-units
	IsBuy         bool
	Salt          *big.Int       // maker-chosen nonce; distinguishes identical terms
	Maker         common.Address
}

// Validate rejects structurally malformed orders at the boundary,
// before any field is used.
func (o *Order) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	if o.Price == nil || o.TotalQuantity == nil || o.Salt == nil {
		return fmt.Errorf("%w: missing numeric field", ErrInvalidOrder)
	}
	if o.Price.Sign() <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	}
	if o.TotalQuantity.Sign() <= 0 {
		return fmt.Errorf("%w: total quantity must be positive", ErrInvalidOrder)
	}
	if o.Salt.Sign() < 0 {
		return fmt.Errorf("%w: negative salt", ErrInvalidOrder)
	}
	if o.BaseToken == o.QuoteToken {
		return fmt.Errorf("%w: base and quote token are identical", ErrInvalidOrder)
	}
	if o.Maker == (common.Address{}) {
		return fmt.Errorf("%w: zero maker address", ErrInvalidOrder)
	}
	return nil
}

// Typed converts the order to its EIP-712 representation.
func (o *Order) Typed() *crypto.OrderEIP712 {
	return &crypto.OrderEIP712{
		BaseToken:     o.BaseToken,
		QuoteToken:    o.QuoteToken,
		Price:         o.Price,
		TotalQuantity: o.TotalQuantity,
		IsBuy:         o.IsBuy,
		Salt:          o.Salt,
		Maker:         o.Maker,
	}
}

// Trade is the record of one successful settlement, emitted for the
// websocket feed and API responses.
type Trade struct {
	BuyOrderID   common.Hash    `json:"buyOrderId"`
	SellOrderID  common.Hash    `json:"sellOrderId"`
	BaseToken    common.Address `json:"baseToken"`
	QuoteToken   common.Address `json:"quoteToken"`
	Buyer        common.Address `json:"buyer"`
	Seller       common.Address `json:"seller"`
	FillQuantity *big.Int       `json:"fillQuantity"`
	QuoteAmount  *big.Int       `json:"quoteAmount"`
	BaseFee      *big.Int       `json:"baseFee"`
	QuoteFee     *big.Int       `json:"quoteFee"`
	Timestamp    int64          `json:"timestamp"` // Unix milliseconds
}
