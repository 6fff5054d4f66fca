package api

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tegro/tegrodex/pkg/dex"
)

// Request/response types for the REST endpoints. Numeric amounts travel as
// decimal strings, addresses as 0x-hex; every field is validated at this
// boundary before the core ever sees it.

// OrderPayload is the wire form of a signed order.
type OrderPayload struct {
	BaseToken     string `json:"baseToken"`
	QuoteToken    string `json:"quoteToken"`
	Price         string `json:"price"`
	TotalQuantity string `json:"totalQuantity"`
	IsBuy         bool   `json:"isBuy"`
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
}

// ToOrder validates and converts the payload into a core order.
func (p *OrderPayload) ToOrder() (*dex.Order, error) {
	if p == nil {
		return nil, fmt.Errorf("missing order")
	}

	baseToken, err := parseAddress("baseToken", p.BaseToken)
	if err != nil {
		return nil, err
	}
	quoteToken, err := parseAddress("quoteToken", p.QuoteToken)
	if err != nil {
		return nil, err
	}
	maker, err := parseAddress("maker", p.Maker)
	if err != nil {
		return nil, err
	}

	price, err := parseBigInt("price", p.Price)
	if err != nil {
		return nil, err
	}
	totalQuantity, err := parseBigInt("totalQuantity", p.TotalQuantity)
	if err != nil {
		return nil, err
	}
	salt, err := parseBigInt("salt", p.Salt)
	if err != nil {
		return nil, err
	}

	return &dex.Order{
		BaseToken:     baseToken,
		QuoteToken:    quoteToken,
		Price:         price,
		TotalQuantity: totalQuantity,
		IsBuy:         p.IsBuy,
		Salt:          salt,
		Maker:         maker,
	}, nil
}

// SettleRequest is the body of POST /api/v1/settlements.
type SettleRequest struct {
	Caller        string        `json:"caller"`
	BuyOrder      *OrderPayload `json:"buyOrder"`
	BuySignature  string        `json:"buySignature"`
	SellOrder     *OrderPayload `json:"sellOrder"`
	SellSignature string        `json:"sellSignature"`
	FillQuantity  string        `json:"fillQuantity"`
}

// CancelRequest is the body of POST /api/v1/orders/cancel.
type CancelRequest struct {
	Order     *OrderPayload `json:"order"`
	Signature string        `json:"signature"`
}

// HashResponse carries the order identifier of POST /api/v1/orders/hash.
type HashResponse struct {
	OrderID string `json:"orderId"`
}

// FilledResponse reports cumulative fill state for an order identifier.
type FilledResponse struct {
	OrderID string `json:"orderId"`
	Filled  string `json:"filled"`
}

// ConfigResponse reports the engine's admin configuration.
type ConfigResponse struct {
	Initialized     bool   `json:"initialized"`
	Owner           string `json:"owner"`
	FeeRateBps      uint64 `json:"feeRateBps"`
	TradingContract string `json:"tradingContract"`
}

// InitializeRequest is the body of POST /api/v1/admin/initialize.
type InitializeRequest struct {
	Owner      string `json:"owner"`
	FeeRateBps uint64 `json:"feeRateBps"`
}

// SetFeeRateRequest is the body of POST /api/v1/admin/fee-rate.
type SetFeeRateRequest struct {
	Caller     string `json:"caller"`
	FeeRateBps uint64 `json:"feeRateBps"`
}

// SetTradingContractRequest is the body of POST /api/v1/admin/trading-contract.
type SetTradingContractRequest struct {
	Caller          string `json:"caller"`
	TradingContract string `json:"tradingContract"`
}

// CreateTokenRequest is the body of POST /api/v1/tokens.
type CreateTokenRequest struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// TokenInfo describes a token hosted by the bank.
type TokenInfo struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// MintRequest is the body of POST /api/v1/tokens/mint.
type MintRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// ApproveRequest is the body of POST /api/v1/tokens/approve.
type ApproveRequest struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// BalanceResponse reports a holder's balance of one token.
type BalanceResponse struct {
	Token   string `json:"token"`
	Holder  string `json:"holder"`
	Balance string `json:"balance"`
}

// TradeInfo is the wire form of a settled trade, also broadcast on the
// websocket "trades" channel.
type TradeInfo struct {
	BuyOrderID   string `json:"buyOrderId"`
	SellOrderID  string `json:"sellOrderId"`
	BaseToken    string `json:"baseToken"`
	QuoteToken   string `json:"quoteToken"`
	Buyer        string `json:"buyer"`
	Seller       string `json:"seller"`
	FillQuantity string `json:"fillQuantity"`
	QuoteAmount  string `json:"quoteAmount"`
	BaseFee      string `json:"baseFee"`
	QuoteFee     string `json:"quoteFee"`
	Timestamp    int64  `json:"timestamp"`
}

func tradeInfo(t *dex.Trade) TradeInfo {
	return TradeInfo{
		BuyOrderID:   t.BuyOrderID.Hex(),
		SellOrderID:  t.SellOrderID.Hex(),
		BaseToken:    t.BaseToken.Hex(),
		QuoteToken:   t.QuoteToken.Hex(),
		Buyer:        t.Buyer.Hex(),
		Seller:       t.Seller.Hex(),
		FillQuantity: t.FillQuantity.String(),
		QuoteAmount:  t.QuoteAmount.String(),
		BaseFee:      t.BaseFee.String(),
		QuoteFee:     t.QuoteFee.String(),
		Timestamp:    t.Timestamp,
	}
}

// WSMessage is the base structure for all WebSocket messages
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by a client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["trades"]
}

// ==============================
// Parsing helpers
// ==============================

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", field, value)
	}
	return common.HexToAddress(value), nil
}

func parseBigInt(field, value string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q is not a decimal integer", field, value)
	}
	return n, nil
}

func parseSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}
	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}
	return sigBytes, nil
}
