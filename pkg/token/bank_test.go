package token

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func TestCreate(t *testing.T) {
	bank := NewBank()

	base := bank.Create("BaseToken", "BASE", 2)
	quote := bank.Create("QuoteToken", "QUOTE", 4)

	if base.Address() == (common.Address{}) {
		t.Error("created token with zero address")
	}
	if base.Address() == quote.Address() {
		t.Error("distinct tokens share an address")
	}
	if base.Name() != "BaseToken" || base.Symbol() != "BASE" || base.Decimals() != 2 {
		t.Errorf("asset metadata = %s/%s/%d", base.Name(), base.Symbol(), base.Decimals())
	}

	if got := bank.Asset(base.Address()); got != base {
		t.Error("Asset lookup did not return the created token")
	}
	if got := bank.Asset(addr(0xFF)); got != nil {
		t.Error("unknown address returned a token")
	}
	if got := len(bank.Assets()); got != 2 {
		t.Errorf("Assets() length = %d, want 2", got)
	}

	if dec, err := bank.Decimals(quote.Address()); err != nil || dec != 4 {
		t.Errorf("Decimals = %d, %v; want 4, nil", dec, err)
	}
	if _, err := bank.Decimals(addr(0xFF)); err == nil {
		t.Error("Decimals of unknown token must fail")
	}
}

func TestCreate_DeterministicAddresses(t *testing.T) {
	// Same creation script, same addresses: devnet restarts keep identities.
	a1 := NewBank().Create("BaseToken", "BASE", 2).Address()
	a2 := NewBank().Create("BaseToken", "BASE", 2).Address()
	if a1 != a2 {
		t.Errorf("addresses diverge across runs: %s vs %s", a1.Hex(), a2.Hex())
	}
}

func TestMintAndBalance(t *testing.T) {
	bank := NewBank()
	tok := bank.Create("Token", "TOK", 18).Address()
	holder := addr(1)

	if bal, err := bank.BalanceOf(tok, holder); err != nil || bal.Sign() != 0 {
		t.Errorf("fresh balance = %v, %v; want 0, nil", bal, err)
	}

	if err := bank.Mint(tok, holder, big.NewInt(500)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := bank.Mint(tok, holder, big.NewInt(250)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	bal, err := bank.BalanceOf(tok, holder)
	if err != nil || bal.Int64() != 750 {
		t.Errorf("balance = %v, %v; want 750, nil", bal, err)
	}

	if err := bank.Mint(tok, holder, big.NewInt(-1)); err == nil {
		t.Error("negative mint must fail")
	}
	if err := bank.Mint(addr(0xFF), holder, big.NewInt(1)); err == nil {
		t.Error("mint on unknown token must fail")
	}
}

func TestTransferFrom(t *testing.T) {
	bank := NewBank()
	tok := bank.Create("Token", "TOK", 18).Address()
	owner, spender, recipient := addr(1), addr(2), addr(3)

	if err := bank.Mint(tok, owner, big.NewInt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := bank.Approve(tok, owner, spender, big.NewInt(60)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if err := bank.TransferFrom(tok, spender, owner, recipient, big.NewInt(40)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}

	if bal, _ := bank.BalanceOf(tok, owner); bal.Int64() != 60 {
		t.Errorf("owner balance = %s, want 60", bal.String())
	}
	if bal, _ := bank.BalanceOf(tok, recipient); bal.Int64() != 40 {
		t.Errorf("recipient balance = %s, want 40", bal.String())
	}
	if a, _ := bank.Allowance(tok, owner, spender); a.Int64() != 20 {
		t.Errorf("remaining allowance = %s, want 20", a.String())
	}

	// Allowance exhausted before balance: refused, nothing moves.
	if err := bank.TransferFrom(tok, spender, owner, recipient, big.NewInt(21)); err == nil {
		t.Error("transfer beyond allowance must fail")
	}
	if bal, _ := bank.BalanceOf(tok, owner); bal.Int64() != 60 {
		t.Errorf("owner balance mutated on refused transfer: %s", bal.String())
	}

	// Balance short: refused even with allowance headroom.
	if err := bank.Approve(tok, owner, spender, big.NewInt(1000)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := bank.TransferFrom(tok, spender, owner, recipient, big.NewInt(61)); err == nil {
		t.Error("transfer beyond balance must fail")
	}

	// Self-spend skips the allowance check.
	if err := bank.TransferFrom(tok, owner, owner, recipient, big.NewInt(60)); err != nil {
		t.Errorf("self transferFrom failed: %v", err)
	}
}

func TestSnapshotRevert(t *testing.T) {
	bank := NewBank()
	tok := bank.Create("Token", "TOK", 18).Address()
	owner, spender, recipient := addr(1), addr(2), addr(3)

	if err := bank.Mint(tok, owner, big.NewInt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := bank.Approve(tok, owner, spender, big.NewInt(100)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	snap := bank.Snapshot()
	if err := bank.TransferFrom(tok, spender, owner, recipient, big.NewInt(70)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if bal, _ := bank.BalanceOf(tok, recipient); bal.Int64() != 70 {
		t.Fatalf("recipient balance = %s, want 70", bal.String())
	}

	bank.RevertTo(snap)

	if bal, _ := bank.BalanceOf(tok, owner); bal.Int64() != 100 {
		t.Errorf("owner balance after revert = %s, want 100", bal.String())
	}
	if bal, _ := bank.BalanceOf(tok, recipient); bal.Sign() != 0 {
		t.Errorf("recipient balance after revert = %s, want 0", bal.String())
	}
	if a, _ := bank.Allowance(tok, owner, spender); a.Int64() != 100 {
		t.Errorf("allowance after revert = %s, want 100", a.String())
	}
}

func TestSnapshotScope_MintWaitsForRevert(t *testing.T) {
	// A mint submitted while a settlement scope is open must not land inside
	// it: RevertTo would silently destroy the minted units. The scope lock
	// holds the mint back until the revert has completed.
	bank := NewBank()
	tok := bank.Create("Token", "TOK", 18).Address()
	owner, recipient := addr(1), addr(3)

	if err := bank.Mint(tok, owner, big.NewInt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	snap := bank.Snapshot()
	if err := bank.TransferFrom(tok, owner, owner, recipient, big.NewInt(70)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}

	minted := make(chan error, 1)
	go func() {
		minted <- bank.Mint(tok, recipient, big.NewInt(500))
	}()

	bank.RevertTo(snap)
	if err := <-minted; err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	// The transfer is unwound, the mint is not.
	if bal, _ := bank.BalanceOf(tok, owner); bal.Int64() != 100 {
		t.Errorf("owner balance = %s, want 100", bal.String())
	}
	if bal, _ := bank.BalanceOf(tok, recipient); bal.Int64() != 500 {
		t.Errorf("recipient balance = %s, want 500 (mint destroyed by revert)", bal.String())
	}
}

func TestDiscardSnapshots(t *testing.T) {
	bank := NewBank()
	tok := bank.Create("Token", "TOK", 18).Address()
	owner, recipient := addr(1), addr(3)

	if err := bank.Mint(tok, owner, big.NewInt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	snap := bank.Snapshot()
	if err := bank.TransferFrom(tok, owner, owner, recipient, big.NewInt(42)); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	bank.DiscardSnapshots()

	// The scope is closed; reverting to the stale mark must not undo the
	// committed transfer.
	bank.RevertTo(snap)
	if bal, _ := bank.BalanceOf(tok, recipient); bal.Int64() != 42 {
		t.Errorf("balance after discard+revert = %s, want 42", bal.String())
	}

	// New mutations are accepted once the scope has closed.
	if err := bank.Mint(tok, recipient, big.NewInt(1)); err != nil {
		t.Fatalf("mint after scope close failed: %v", err)
	}
}
