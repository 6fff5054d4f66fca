package dex

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// memFillStore is an in-memory FillStore for ledger tests.
type memFillStore struct {
	fills   map[common.Hash]*big.Int
	failing bool
	saves   int
}

func newMemFillStore() *memFillStore {
	return &memFillStore{fills: make(map[common.Hash]*big.Int)}
}

func (m *memFillStore) LoadFills() (map[common.Hash]*big.Int, error) {
	out := make(map[common.Hash]*big.Int, len(m.fills))
	for k, v := range m.fills {
		out[k] = new(big.Int).Set(v)
	}
	return out, nil
}

func (m *memFillStore) SaveFills(entries map[common.Hash]*big.Int) error {
	if m.failing {
		return errors.New("disk full")
	}
	m.saves++
	for k, v := range entries {
		m.fills[k] = new(big.Int).Set(v)
	}
	return nil
}

func orderID(b byte) common.Hash {
	var h common.Hash
	h[31] = b
	return h
}

func TestFillLedger_RecordFill(t *testing.T) {
	ledger, err := NewFillLedger(newMemFillStore())
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}

	id := orderID(1)
	total := big.NewInt(200)

	if got := ledger.Remaining(id, total); got.Int64() != 200 {
		t.Errorf("remaining = %s, want 200", got.String())
	}

	if err := ledger.recordFill(id, total, big.NewInt(150)); err != nil {
		t.Fatalf("recordFill failed: %v", err)
	}
	if got := ledger.Remaining(id, total); got.Int64() != 50 {
		t.Errorf("remaining = %s, want 50", got.String())
	}

	if err := ledger.recordFill(id, total, big.NewInt(51)); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("over-fill error = %v, want ErrCapacityExceeded", err)
	}
	// Failed check must not mutate.
	if got := ledger.Filled(id); got.Int64() != 150 {
		t.Errorf("filled after rejected fill = %s, want 150", got.String())
	}

	if err := ledger.recordFill(id, total, big.NewInt(50)); err != nil {
		t.Fatalf("exact remaining fill failed: %v", err)
	}
	if got := ledger.Remaining(id, total); got.Sign() != 0 {
		t.Errorf("remaining after full fill = %s, want 0", got.String())
	}
}

func TestFillLedger_Rollback(t *testing.T) {
	ledger, _ := NewFillLedger(newMemFillStore())

	id := orderID(2)
	total := big.NewInt(100)

	if err := ledger.recordFill(id, total, big.NewInt(60)); err != nil {
		t.Fatalf("recordFill failed: %v", err)
	}
	ledger.rollback(id, big.NewInt(60))

	if got := ledger.Filled(id); got.Sign() != 0 {
		t.Errorf("filled after rollback = %s, want 0", got.String())
	}

	// Rollback of an unknown order is a no-op.
	ledger.rollback(orderID(99), big.NewInt(10))
}

func TestFillLedger_SetFilled(t *testing.T) {
	ledger, _ := NewFillLedger(newMemFillStore())

	id := orderID(3)
	total := big.NewInt(500)

	prev := ledger.setFilled(id, total)
	if prev.Sign() != 0 {
		t.Errorf("previous total = %s, want 0", prev.String())
	}
	if got := ledger.Remaining(id, total); got.Sign() != 0 {
		t.Errorf("remaining after cancel = %s, want 0", got.String())
	}

	// Never lowers an existing total.
	prev = ledger.setFilled(id, big.NewInt(10))
	if prev.Cmp(total) != 0 {
		t.Errorf("previous total = %s, want %s", prev.String(), total.String())
	}
	if got := ledger.Filled(id); got.Cmp(total) != 0 {
		t.Errorf("filled lowered to %s", got.String())
	}
}

func TestFillLedger_CommitAndReload(t *testing.T) {
	store := newMemFillStore()
	ledger, _ := NewFillLedger(store)

	buy, sell := orderID(4), orderID(5)
	if err := ledger.recordFill(buy, big.NewInt(100), big.NewInt(100)); err != nil {
		t.Fatalf("recordFill failed: %v", err)
	}
	if err := ledger.recordFill(sell, big.NewInt(300), big.NewInt(100)); err != nil {
		t.Fatalf("recordFill failed: %v", err)
	}
	if err := ledger.commit(buy, sell); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if store.saves != 1 {
		t.Errorf("commit issued %d saves, want 1 (both legs in one batch)", store.saves)
	}

	// A fresh ledger over the same store sees the committed totals.
	reloaded, err := NewFillLedger(store)
	if err != nil {
		t.Fatalf("failed to reload ledger: %v", err)
	}
	if got := reloaded.Filled(buy); got.Int64() != 100 {
		t.Errorf("reloaded filled(buy) = %s, want 100", got.String())
	}
	if got := reloaded.Remaining(sell, big.NewInt(300)); got.Int64() != 200 {
		t.Errorf("reloaded remaining(sell) = %s, want 200", got.String())
	}
}

func TestFillLedger_RemainingNeverNegative(t *testing.T) {
	ledger, _ := NewFillLedger(newMemFillStore())

	id := orderID(6)
	ledger.setFilled(id, big.NewInt(1000))

	// An order cancelled at a high total reports zero remaining against a
	// smaller declared quantity, not a negative value.
	if got := ledger.Remaining(id, big.NewInt(10)); got.Sign() != 0 {
		t.Errorf("remaining = %s, want 0", got.String())
	}
}
