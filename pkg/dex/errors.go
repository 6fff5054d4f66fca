package dex

import "errors"

// Settlement failure taxonomy. The strings mirror the revert reasons of the
// on-chain contract so off-chain tooling can match on either form.
var (
	// ErrTokenMismatch: base or quote token differs between the two orders
	ErrTokenMismatch = errors.New("Base/Quote tokens do not match")

	// ErrSideConflict: both orders are buys, or both are sells
	ErrSideConflict = errors.New("Both orders cannot be of the same type (buy/sell)")

	// ErrInvalidSignature: recovered signer does not equal the declared maker
	ErrInvalidSignature = errors.New("Invalid order signatures")

	// ErrCapacityExceeded: requested fill exceeds either order's remaining quantity
	ErrCapacityExceeded = errors.New("Matched amount is greater than the remaining amount")

	// ErrAlreadyInitialized: Initialize invoked more than once
	ErrAlreadyInitialized = errors.New("Contract already initialized")

	// ErrNotInitialized: settlement or admin op before Initialize
	ErrNotInitialized = errors.New("Contract not initialized")

	// ErrUnauthorized: admin op by non-owner, or settlement by a caller not
	// permitted while a privileged trading contract is configured
	ErrUnauthorized = errors.New("Caller is not authorized")

	// ErrInvalidFeeRate: fee rate outside 0-10000 bps
	ErrInvalidFeeRate = errors.New("Fee rate exceeds 10000 bps")

	// ErrInvalidOrder: structurally malformed order (missing/negative fields)
	ErrInvalidOrder = errors.New("Malformed order")

	// ErrInvalidFill: fill quantity missing, zero, or negative
	ErrInvalidFill = errors.New("Invalid fill quantity")
)
