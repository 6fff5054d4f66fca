package tests

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tegro/tegrodex/pkg/crypto"
	"github.com/tegro/tegrodex/pkg/dex"
	"github.com/tegro/tegrodex/pkg/storage"
	"github.com/tegro/tegrodex/pkg/token"
)

// End-to-end settlement over the real Pebble store: the full path a devnet
// node runs, including a restart that must preserve fill state and admin
// config.

type node struct {
	store  *storage.Store
	bank   *token.Bank
	engine *dex.Engine
}

func startNode(t *testing.T, dbPath string, bank *token.Bank) *node {
	t.Helper()

	store, err := storage.NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ledger, err := dex.NewFillLedger(store)
	if err != nil {
		t.Fatalf("failed to load ledger: %v", err)
	}

	domain := crypto.DefaultDomain()
	domain.VerifyingContract = common.HexToAddress("0x00000000000000000000000000000000000000D1")

	engine, err := dex.NewEngine(domain, ledger, bank, store, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	return &node{store: store, bank: bank, engine: engine}
}

func TestSettlementLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dex.db")

	// Token state is in-process devnet state; it survives within one bank
	// instance while the engine restarts against the same database.
	bank := token.NewBank()
	base := bank.Create("BaseToken", "BASE", 2).Address()
	quote := bank.Create("QuoteToken", "QUOTE", 4).Address()

	n := startNode(t, dbPath, bank)

	owner := common.HexToAddress("0x00000000000000000000000000000000000000AA")
	if err := n.engine.Initialize(owner, 20); err != nil {
		t.Fatalf("failed to initialize engine: %v", err)
	}

	buyer, _ := crypto.GenerateKey()
	seller, _ := crypto.GenerateKey()
	engineAddr := common.HexToAddress("0x00000000000000000000000000000000000000D1")

	fund := func(tok, holder common.Address, amount int64) {
		if err := bank.Mint(tok, holder, big.NewInt(amount)); err != nil {
			t.Fatalf("mint failed: %v", err)
		}
		max := new(big.Int).Lsh(big.NewInt(1), 128)
		if err := bank.Approve(tok, holder, engineAddr, max); err != nil {
			t.Fatalf("approve failed: %v", err)
		}
	}
	fund(base, seller.Address(), 10000)
	fund(quote, buyer.Address(), 1000000)

	domain := crypto.DefaultDomain()
	domain.VerifyingContract = engineAddr
	e712 := crypto.NewEIP712Signer(domain)

	buy := &dex.Order{
		BaseToken: base, QuoteToken: quote,
		Price: big.NewInt(10000), TotalQuantity: big.NewInt(10000),
		IsBuy: true, Salt: big.NewInt(1), Maker: buyer.Address(),
	}
	sell := &dex.Order{
		BaseToken: base, QuoteToken: quote,
		Price: big.NewInt(10000), TotalQuantity: big.NewInt(10000),
		IsBuy: false, Salt: big.NewInt(2), Maker: seller.Address(),
	}
	buySig, err := e712.SignOrder(buyer, buy.Typed())
	if err != nil {
		t.Fatalf("failed to sign buy order: %v", err)
	}
	sellSig, err := e712.SignOrder(seller, sell.Typed())
	if err != nil {
		t.Fatalf("failed to sign sell order: %v", err)
	}

	// Partial fill of half the quantity.
	trade, err := n.engine.SettleOrders(owner, buy, buySig, sell, sellSig, big.NewInt(5000))
	if err != nil {
		t.Fatalf("settlement failed: %v", err)
	}
	if trade.QuoteAmount.Int64() != 500000 {
		t.Errorf("quote amount = %s, want 500000", trade.QuoteAmount.String())
	}
	if got := n.engine.Filled(trade.BuyOrderID); got.Int64() != 5000 {
		t.Errorf("filled = %s, want 5000", got.String())
	}

	// Restart the node on the same database.
	if err := n.store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	n = startNode(t, dbPath, bank)

	if !n.engine.Initialized() {
		t.Fatal("engine lost initialization across restart")
	}
	if n.engine.Owner() != owner {
		t.Errorf("owner after restart = %s, want %s", n.engine.Owner().Hex(), owner.Hex())
	}
	if got := n.engine.Filled(trade.BuyOrderID); got.Int64() != 5000 {
		t.Fatalf("filled after restart = %s, want 5000", got.String())
	}

	// Remaining half settles on the restarted node; more than that is refused.
	if _, err := n.engine.SettleOrders(owner, buy, buySig, sell, sellSig, big.NewInt(5001)); !errors.Is(err, dex.ErrCapacityExceeded) {
		t.Fatalf("over-remaining fill error = %v, want ErrCapacityExceeded", err)
	}
	if _, err := n.engine.SettleOrders(owner, buy, buySig, sell, sellSig, big.NewInt(5000)); err != nil {
		t.Fatalf("second settlement failed: %v", err)
	}

	// Conservation across both halves: fee 20 bps on each leg.
	wantSellerQuote := int64(1000000 - 2*1000) // two quote fees of 1000
	wantBuyerBase := int64(10000 - 2*10)       // two base fees of 10
	if bal, _ := bank.BalanceOf(quote, seller.Address()); bal.Int64() != wantSellerQuote {
		t.Errorf("seller quote balance = %s, want %d", bal.String(), wantSellerQuote)
	}
	if bal, _ := bank.BalanceOf(base, buyer.Address()); bal.Int64() != wantBuyerBase {
		t.Errorf("buyer base balance = %s, want %d", bal.String(), wantBuyerBase)
	}
	if bal, _ := bank.BalanceOf(quote, owner); bal.Int64() != 2000 {
		t.Errorf("fee sink quote balance = %s, want 2000", bal.String())
	}
	if bal, _ := bank.BalanceOf(base, owner); bal.Int64() != 20 {
		t.Errorf("fee sink base balance = %s, want 20", bal.String())
	}

	// Fully consumed orders reject any further settlement, forever.
	if _, err := n.engine.SettleOrders(owner, buy, buySig, sell, sellSig, big.NewInt(1)); !errors.Is(err, dex.ErrCapacityExceeded) {
		t.Fatalf("exhausted order error = %v, want ErrCapacityExceeded", err)
	}

	// Cancel a fresh order and verify the tombstone survives a restart.
	buy2 := &dex.Order{
		BaseToken: base, QuoteToken: quote,
		Price: big.NewInt(10000), TotalQuantity: big.NewInt(100),
		IsBuy: true, Salt: big.NewInt(3), Maker: buyer.Address(),
	}
	buy2ID, err := n.engine.HashOrder(buy2)
	if err != nil {
		t.Fatalf("failed to hash order: %v", err)
	}
	cancelSig, err := crypto.SignCancel(buyer, buy2ID)
	if err != nil {
		t.Fatalf("failed to sign cancel: %v", err)
	}
	if _, err := n.engine.CancelOrder(buy2, cancelSig); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if err := n.store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	n = startNode(t, dbPath, bank)
	defer n.store.Close()

	if got := n.engine.Filled(buy2ID); got.Int64() != 100 {
		t.Errorf("cancelled order filled after restart = %s, want 100", got.String())
	}
}
