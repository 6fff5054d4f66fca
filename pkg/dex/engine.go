package dex

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tegro/tegrodex/pkg/crypto"
	"github.com/tegro/tegrodex/pkg/util"
)

// TokenRegistry abstracts the fungible-token contracts that hold balances.
// Decimals is queried at settlement time; TransferFrom pulls funds on behalf
// of spender subject to the maker's prior approval. Snapshot opens an
// exclusive scope over token state that RevertTo or DiscardSnapshots closes:
// inside it the engine gets all-or-nothing semantics over the four transfers
// of a trade, and no unrelated mutation may interleave.
type TokenRegistry interface {
	Decimals(token common.Address) (uint8, error)
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
	Snapshot() int
	RevertTo(snapshot int)
	// DiscardSnapshots drops undo history once a settlement has committed.
	DiscardSnapshots()
}

// ConfigStore persists the owner-controlled engine configuration so a
// restarted node stays initialized.
type ConfigStore interface {
	LoadEngineConfig() (*EngineConfig, error) // nil when never initialized
	SaveEngineConfig(cfg *EngineConfig) error
}

// EngineConfig is the durable admin state.
type EngineConfig struct {
	Owner           common.Address `json:"owner"`
	FeeRateBps      uint64         `json:"feeRateBps"`
	TradingContract common.Address `json:"tradingContract"`
}

// Engine validates and settles maker-signed order pairs. All entry points
// are serialized by a single mutex: a settlement either completes in full or
// leaves ledger and balances untouched.
type Engine struct {
	mu     sync.Mutex
	signer *crypto.EIP712Signer
	ledger *FillLedger
	tokens TokenRegistry
	store  ConfigStore
	log    *zap.SugaredLogger
	clock  util.Clock

	// engineAddr is the verifying-contract identity; token pulls are spent
	// against allowances granted to this address.
	engineAddr common.Address

	initialized     bool
	owner           common.Address
	feeRateBps      uint64
	tradingContract common.Address
}

// NewEngine wires the settlement engine. Previously persisted admin config
// is restored, so Initialize is one-shot across restarts too.
func NewEngine(domain crypto.EIP712Domain, ledger *FillLedger, tokens TokenRegistry, store ConfigStore, logger *zap.SugaredLogger) (*Engine, error) {
	e := &Engine{
		signer:     crypto.NewEIP712Signer(domain),
		ledger:     ledger,
		tokens:     tokens,
		store:      store,
		log:        logger,
		clock:      util.RealClock{},
		engineAddr: domain.VerifyingContract,
	}

	cfg, err := store.LoadEngineConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load engine config: %w", err)
	}
	if cfg != nil {
		e.initialized = true
		e.owner = cfg.Owner
		e.feeRateBps = cfg.FeeRateBps
		e.tradingContract = cfg.TradingContract
	}

	return e, nil
}

// HashOrder computes the order identifier. Pure; exposed so off-chain
// tooling can derive the exact identifier the ledger keys on.
func (e *Engine) HashOrder(order *Order) (common.Hash, error) {
	if err := order.Validate(); err != nil {
		return common.Hash{}, err
	}
	digest, err := e.signer.HashOrder(order.Typed())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash order: %w", err)
	}
	return common.BytesToHash(digest), nil
}

// Filled returns the cumulative filled quantity recorded for an order id.
func (e *Engine) Filled(orderID common.Hash) *big.Int {
	return e.ledger.Filled(orderID)
}

// SettleOrders executes fillQuantity of base asset between the two makers,
// deducting the protocol fee from each leg. caller is the submitting
// identity, checked against the privileged trading contract when one is
// configured.
//
// Precondition checks run in a fixed sequence, each with a distinct failure;
// the fill ledger is updated for both orders before any token moves, and
// every state change reverts if any of the four transfers fails.
func (e *Engine) SettleOrders(caller common.Address, buyOrder *Order, buySig []byte, sellOrder *Order, sellSig []byte, fillQuantity *big.Int) (*Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if e.tradingContract != (common.Address{}) && caller != e.tradingContract && caller != e.owner {
		return nil, ErrUnauthorized
	}

	if err := buyOrder.Validate(); err != nil {
		return nil, err
	}
	if err := sellOrder.Validate(); err != nil {
		return nil, err
	}
	if fillQuantity == nil || fillQuantity.Sign() <= 0 {
		return nil, ErrInvalidFill
	}

	// 1. Both legs must trade the same pair.
	if buyOrder.BaseToken != sellOrder.BaseToken || buyOrder.QuoteToken != sellOrder.QuoteToken {
		return nil, ErrTokenMismatch
	}

	// 2. Exactly one buy and one sell.
	if buyOrder.IsBuy == sellOrder.IsBuy {
		return nil, ErrSideConflict
	}
	if !buyOrder.IsBuy {
		buyOrder, buySig, sellOrder, sellSig = sellOrder, sellSig, buyOrder, buySig
	}

	// 3. Both signatures must recover to the declared makers.
	if ok, err := e.signer.VerifyOrderSignature(buyOrder.Typed(), buySig); err != nil || !ok {
		return nil, ErrInvalidSignature
	}
	if ok, err := e.signer.VerifyOrderSignature(sellOrder.Typed(), sellSig); err != nil || !ok {
		return nil, ErrInvalidSignature
	}

	buyID, err := e.HashOrder(buyOrder)
	if err != nil {
		return nil, err
	}
	sellID, err := e.HashOrder(sellOrder)
	if err != nil {
		return nil, err
	}

	// 4. Remaining-capacity check for both orders.
	if fillQuantity.Cmp(e.ledger.Remaining(buyID, buyOrder.TotalQuantity)) > 0 {
		return nil, ErrCapacityExceeded
	}
	if fillQuantity.Cmp(e.ledger.Remaining(sellID, sellOrder.TotalQuantity)) > 0 {
		return nil, ErrCapacityExceeded
	}

	baseDecimals, err := e.tokens.Decimals(buyOrder.BaseToken)
	if err != nil {
		return nil, fmt.Errorf("base token lookup failed: %w", err)
	}
	if _, err := e.tokens.Decimals(buyOrder.QuoteToken); err != nil {
		return nil, fmt.Errorf("quote token lookup failed: %w", err)
	}

	quoteAmount := QuoteAmount(fillQuantity, buyOrder.Price, baseDecimals)
	baseFee := FeeOf(fillQuantity, e.feeRateBps)
	quoteFee := FeeOf(quoteAmount, e.feeRateBps)

	// Effects before interactions: bump both fill totals first so no
	// transfer callback can observe pre-fill capacity.
	if err := e.ledger.recordFill(buyID, buyOrder.TotalQuantity, fillQuantity); err != nil {
		return nil, err
	}
	if err := e.ledger.recordFill(sellID, sellOrder.TotalQuantity, fillQuantity); err != nil {
		e.ledger.rollback(buyID, fillQuantity)
		return nil, err
	}

	revert := func() {
		e.ledger.rollback(buyID, fillQuantity)
		e.ledger.rollback(sellID, fillQuantity)
	}

	snap := e.tokens.Snapshot()
	if err := e.executeTransfers(buyOrder, sellOrder, fillQuantity, quoteAmount, baseFee, quoteFee); err != nil {
		e.tokens.RevertTo(snap)
		revert()
		return nil, err
	}

	if err := e.ledger.commit(buyID, sellID); err != nil {
		e.tokens.RevertTo(snap)
		revert()
		return nil, err
	}
	e.tokens.DiscardSnapshots()

	trade := &Trade{
		BuyOrderID:   buyID,
		SellOrderID:  sellID,
		BaseToken:    buyOrder.BaseToken,
		QuoteToken:   buyOrder.QuoteToken,
		Buyer:        buyOrder.Maker,
		Seller:       sellOrder.Maker,
		FillQuantity: new(big.Int).Set(fillQuantity),
		QuoteAmount:  quoteAmount,
		BaseFee:      baseFee,
		QuoteFee:     quoteFee,
		Timestamp:    e.clock.Now().UnixMilli(),
	}

	e.log.Infow("settlement_executed",
		"buy_order", buyID.Hex(),
		"sell_order", sellID.Hex(),
		"buyer", trade.Buyer.Hex(),
		"seller", trade.Seller.Hex(),
		"fill_quantity", fillQuantity.String(),
		"quote_amount", quoteAmount.String(),
		"base_fee", baseFee.String(),
		"quote_fee", quoteFee.String(),
	)

	return trade, nil
}

// executeTransfers issues the four token movements of a trade:
// base net seller→buyer, base fee seller→owner, quote net buyer→seller,
// quote fee buyer→owner. Fee transfers of zero are skipped.
func (e *Engine) executeTransfers(buyOrder, sellOrder *Order, fillQuantity, quoteAmount, baseFee, quoteFee *big.Int) error {
	base, quote := buyOrder.BaseToken, buyOrder.QuoteToken
	buyer, seller := buyOrder.Maker, sellOrder.Maker

	baseNet := new(big.Int).Sub(fillQuantity, baseFee)
	if err := e.tokens.TransferFrom(base, e.engineAddr, seller, buyer, baseNet); err != nil {
		return fmt.Errorf("base transfer failed: %w", err)
	}
	if baseFee.Sign() > 0 {
		if err := e.tokens.TransferFrom(base, e.engineAddr, seller, e.owner, baseFee); err != nil {
			return fmt.Errorf("base fee transfer failed: %w", err)
		}
	}

	quoteNet := new(big.Int).Sub(quoteAmount, quoteFee)
	if err := e.tokens.TransferFrom(quote, e.engineAddr, buyer, seller, quoteNet); err != nil {
		return fmt.Errorf("quote transfer failed: %w", err)
	}
	if quoteFee.Sign() > 0 {
		if err := e.tokens.TransferFrom(quote, e.engineAddr, buyer, e.owner, quoteFee); err != nil {
			return fmt.Errorf("quote fee transfer failed: %w", err)
		}
	}

	return nil
}

// CancelOrder marks an order's remaining capacity as permanently zero.
// Authorization is an EIP-191 signature over "cancel 0x<orderHash>" that
// must recover to the order's maker. Cancelling an already filled or
// cancelled order is a no-op success.
func (e *Engine) CancelOrder(order *Order, cancelSig []byte) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return common.Hash{}, ErrNotInitialized
	}
	if err := order.Validate(); err != nil {
		return common.Hash{}, err
	}

	orderID, err := e.HashOrder(order)
	if err != nil {
		return common.Hash{}, err
	}

	signer, err := crypto.RecoverCancelSigner(orderID, cancelSig)
	if err != nil || signer != order.Maker {
		return common.Hash{}, ErrInvalidSignature
	}

	prev := e.ledger.setFilled(orderID, order.TotalQuantity)
	if err := e.ledger.commit(orderID); err != nil {
		e.ledger.restore(orderID, prev)
		return common.Hash{}, err
	}

	e.log.Infow("order_cancelled", "order", orderID.Hex(), "maker", order.Maker.Hex())
	return orderID, nil
}
