package dex

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// FillStore is the durable backing for the fill ledger. SaveFills must
// commit all entries atomically: a settlement touches two orders and either
// both new fill totals land on disk or neither does.
type FillStore interface {
	LoadFills() (map[common.Hash]*big.Int, error)
	SaveFills(entries map[common.Hash]*big.Int) error
}

// FillLedger maps order identifier to cumulative filled quantity. It is the
// sole over-fill and replay guard: entries are created implicitly at zero,
// only ever grow, and are never deleted.
type FillLedger struct {
	mu     sync.RWMutex
	filled map[common.Hash]*big.Int
	store  FillStore
}

// NewFillLedger loads existing fill state from the store.
func NewFillLedger(store FillStore) (*FillLedger, error) {
	filled, err := store.LoadFills()
	if err != nil {
		return nil, fmt.Errorf("failed to load fill ledger: %w", err)
	}
	if filled == nil {
		filled = make(map[common.Hash]*big.Int)
	}
	return &FillLedger{filled: filled, store: store}, nil
}

// Filled returns the cumulative filled quantity for an order (zero if unseen).
func (l *FillLedger) Filled(orderID common.Hash) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if f, ok := l.filled[orderID]; ok {
		return new(big.Int).Set(f)
	}
	return new(big.Int)
}

// Remaining returns totalQuantity - filled[orderID], floored at zero.
func (l *FillLedger) Remaining(orderID common.Hash, totalQuantity *big.Int) *big.Int {
	rem := new(big.Int).Sub(totalQuantity, l.Filled(orderID))
	if rem.Sign() < 0 {
		return new(big.Int)
	}
	return rem
}

// recordFill is the atomic check-and-increment: it fails without mutating
// anything when amount exceeds the order's remaining quantity. In-memory
// only; the engine persists via commit once the whole settlement has
// succeeded, and undoes via rollback if it has not.
func (l *FillLedger) recordFill(orderID common.Hash, totalQuantity, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	filled, ok := l.filled[orderID]
	if !ok {
		filled = new(big.Int)
	}
	remaining := new(big.Int).Sub(totalQuantity, filled)
	if amount.Cmp(remaining) > 0 {
		return ErrCapacityExceeded
	}
	l.filled[orderID] = new(big.Int).Add(filled, amount)
	return nil
}

// rollback reverts a recordFill that was applied earlier in a settlement
// whose later steps failed. Only the engine calls this, under its own lock,
// so the subtraction can never race another fill.
func (l *FillLedger) rollback(orderID common.Hash, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	filled, ok := l.filled[orderID]
	if !ok {
		return
	}
	filled = new(big.Int).Sub(filled, amount)
	if filled.Sign() < 0 {
		filled = new(big.Int)
	}
	l.filled[orderID] = filled
}

// setFilled forces an order's cumulative fill to an absolute value and
// returns the previous total. Used by cancellation, which jumps filled to
// totalQuantity so that remaining capacity is permanently zero. Never
// lowers an existing total.
func (l *FillLedger) setFilled(orderID common.Hash, value *big.Int) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := new(big.Int)
	if cur, ok := l.filled[orderID]; ok {
		prev.Set(cur)
		if cur.Cmp(value) >= 0 {
			return prev
		}
	}
	l.filled[orderID] = new(big.Int).Set(value)
	return prev
}

// restore puts back a previous total after a failed durable commit.
func (l *FillLedger) restore(orderID common.Hash, prev *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filled[orderID] = new(big.Int).Set(prev)
}

// commit persists the current totals of the given orders in one atomic write.
func (l *FillLedger) commit(orderIDs ...common.Hash) error {
	l.mu.RLock()
	entries := make(map[common.Hash]*big.Int, len(orderIDs))
	for _, id := range orderIDs {
		if f, ok := l.filled[id]; ok {
			entries[id] = new(big.Int).Set(f)
		}
	}
	l.mu.RUnlock()

	if err := l.store.SaveFills(entries); err != nil {
		return fmt.Errorf("failed to persist fill ledger: %w", err)
	}
	return nil
}
