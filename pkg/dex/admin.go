package dex

import (
	"github.com/ethereum/go-ethereum/common"
)

// Admin surface: a thin, owner-gated configuration layer over the engine.

// Initialize performs one-time setup of owner (fee sink + administrator)
// and fee rate. Fails on any repeat call, including after a restart.
func (e *Engine) Initialize(owner common.Address, feeRateBps uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return ErrAlreadyInitialized
	}
	if owner == (common.Address{}) {
		return ErrUnauthorized
	}
	if feeRateBps > BpsDenominator {
		return ErrInvalidFeeRate
	}

	e.initialized = true
	e.owner = owner
	e.feeRateBps = feeRateBps

	if err := e.persistConfig(); err != nil {
		e.initialized = false
		e.owner = common.Address{}
		e.feeRateBps = 0
		return err
	}

	e.log.Infow("engine_initialized", "owner", owner.Hex(), "fee_rate_bps", feeRateBps)
	return nil
}

// SetFeeRate updates the protocol fee. Owner only.
func (e *Engine) SetFeeRate(caller common.Address, feeRateBps uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	if caller != e.owner {
		return ErrUnauthorized
	}
	if feeRateBps > BpsDenominator {
		return ErrInvalidFeeRate
	}

	prev := e.feeRateBps
	e.feeRateBps = feeRateBps
	if err := e.persistConfig(); err != nil {
		e.feeRateBps = prev
		return err
	}

	e.log.Infow("fee_rate_updated", "fee_rate_bps", feeRateBps)
	return nil
}

// SetTradingContract configures the privileged caller allowed to submit
// settlements on behalf of users. Zero address removes the restriction.
// Owner only.
func (e *Engine) SetTradingContract(caller, tradingContract common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	if caller != e.owner {
		return ErrUnauthorized
	}

	prev := e.tradingContract
	e.tradingContract = tradingContract
	if err := e.persistConfig(); err != nil {
		e.tradingContract = prev
		return err
	}

	e.log.Infow("trading_contract_updated", "trading_contract", tradingContract.Hex())
	return nil
}

// Owner returns the configured owner (fee sink).
func (e *Engine) Owner() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// FeeRateBps returns the configured fee rate.
func (e *Engine) FeeRateBps() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeRateBps
}

// TradingContract returns the privileged caller, zero when unrestricted.
func (e *Engine) TradingContract() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tradingContract
}

// Initialized reports whether one-time setup has run.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

func (e *Engine) persistConfig() error {
	return e.store.SaveEngineConfig(&EngineConfig{
		Owner:           e.owner,
		FeeRateBps:      e.feeRateBps,
		TradingContract: e.tradingContract,
	})
}
