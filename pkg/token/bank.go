package token

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Bank hosts the fungible tokens the settlement engine trades. It plays the
// role of the external ERC-20 contracts: decimals, balances, allowances and
// transferFrom pulls.
//
// Snapshot opens an exclusive settlement scope: mutations inside it are
// journaled so RevertTo can unwind a half-applied settlement the way an EVM
// revert does, and Mint/Approve block until the scope closes. Without that
// exclusion a mint landing mid-settlement would be silently destroyed by an
// unrelated revert.
type Bank struct {
	mu     sync.RWMutex
	assets map[common.Address]*Asset
	seq    uint64 // deterministic address derivation counter

	// txMu is held for the whole settlement scope, Snapshot through
	// RevertTo/DiscardSnapshots. journal records undo closures only while
	// inTx is set.
	txMu    sync.Mutex
	inTx    bool
	journal []func()
}

// Asset is one fungible token.
type Asset struct {
	address  common.Address
	name     string
	symbol   string
	decimals uint8

	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int // owner → spender → amount
}

func NewBank() *Bank {
	return &Bank{assets: make(map[common.Address]*Asset)}
}

// Create deploys a new token. The address is derived deterministically from
// the creation sequence so repeated devnet runs with the same script produce
// the same addresses.
func (b *Bank) Create(name, symbol string, decimals uint8) *Asset {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], b.seq)
	addr := common.BytesToAddress(crypto.Keccak256([]byte(name), []byte(symbol), seed[:])[12:])

	asset := &Asset{
		address:    addr,
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
	b.assets[addr] = asset
	return asset
}

// Asset returns the token at addr, or nil if none exists.
func (b *Bank) Asset(addr common.Address) *Asset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.assets[addr]
}

// Assets lists every token; iteration order is not guaranteed.
func (b *Bank) Assets() []*Asset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Asset, 0, len(b.assets))
	for _, a := range b.assets {
		out = append(out, a)
	}
	return out
}

func (a *Asset) Address() common.Address { return a.address }
func (a *Asset) Name() string            { return a.name }
func (a *Asset) Symbol() string          { return a.symbol }
func (a *Asset) Decimals() uint8         { return a.decimals }

// Decimals satisfies the engine's token lookup for one asset.
func (b *Bank) Decimals(tokenAddr common.Address) (uint8, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	asset, ok := b.assets[tokenAddr]
	if !ok {
		return 0, fmt.Errorf("unknown token %s", tokenAddr.Hex())
	}
	return asset.decimals, nil
}

// BalanceOf returns the holder's balance (zero if unseen).
func (b *Bank) BalanceOf(tokenAddr, holder common.Address) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	asset, ok := b.assets[tokenAddr]
	if !ok {
		return nil, fmt.Errorf("unknown token %s", tokenAddr.Hex())
	}
	if bal, ok := asset.balances[holder]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

// Allowance returns what spender may still pull from owner.
func (b *Bank) Allowance(tokenAddr, owner, spender common.Address) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	asset, ok := b.assets[tokenAddr]
	if !ok {
		return nil, fmt.Errorf("unknown token %s", tokenAddr.Hex())
	}
	if m, ok := asset.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(big.Int).Set(a), nil
		}
	}
	return new(big.Int), nil
}

// Mint credits newly created units to an account. Blocks while a settlement
// scope is open.
func (b *Bank) Mint(tokenAddr, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid mint amount")
	}

	b.txMu.Lock()
	defer b.txMu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	asset, ok := b.assets[tokenAddr]
	if !ok {
		return fmt.Errorf("unknown token %s", tokenAddr.Hex())
	}
	b.setBalance(asset, to, new(big.Int).Add(b.balance(asset, to), amount))
	return nil
}

// Approve sets spender's allowance over owner's balance. Blocks while a
// settlement scope is open.
func (b *Bank) Approve(tokenAddr, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid approve amount")
	}

	b.txMu.Lock()
	defer b.txMu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	asset, ok := b.assets[tokenAddr]
	if !ok {
		return fmt.Errorf("unknown token %s", tokenAddr.Hex())
	}
	b.setAllowance(asset, owner, spender, new(big.Int).Set(amount))
	return nil
}

// TransferFrom moves amount from `from` to `to`, spending spender's
// allowance, exactly like ERC-20 transferFrom invoked by the settlement
// contract. Fails on insufficient balance or allowance without mutating
// anything. The engine calls this inside its settlement scope, so it does
// not contend on the scope lock itself.
func (b *Bank) TransferFrom(tokenAddr, spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	asset, ok := b.assets[tokenAddr]
	if !ok {
		return fmt.Errorf("unknown token %s", tokenAddr.Hex())
	}

	fromBal := b.balance(asset, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance: %s has %s of %s, needs %s",
			from.Hex(), fromBal.String(), asset.symbol, amount.String())
	}

	if spender != from {
		allowance := b.allowance(asset, from, spender)
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf("insufficient allowance: %s allowed %s of %s to %s, needs %s",
				from.Hex(), allowance.String(), asset.symbol, spender.Hex(), amount.String())
		}
		b.setAllowance(asset, from, spender, new(big.Int).Sub(allowance, amount))
	}

	b.setBalance(asset, from, new(big.Int).Sub(fromBal, amount))
	b.setBalance(asset, to, new(big.Int).Add(b.balance(asset, to), amount))
	return nil
}

// Snapshot opens a settlement scope and returns its journal mark. The scope
// lock is held until RevertTo or DiscardSnapshots closes the scope; until
// then Mint and Approve block, so nothing recorded after the mark can belong
// to anyone but the settlement.
func (b *Bank) Snapshot() int {
	b.txMu.Lock()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inTx = true
	return len(b.journal)
}

// RevertTo unwinds every mutation recorded after the snapshot, newest first,
// and closes the scope. No-op if no scope is open.
func (b *Bank) RevertTo(snapshot int) {
	b.mu.Lock()
	if !b.inTx || snapshot < 0 || snapshot > len(b.journal) {
		b.mu.Unlock()
		return
	}
	for i := len(b.journal) - 1; i >= snapshot; i-- {
		b.journal[i]()
	}
	b.journal = b.journal[:0]
	b.inTx = false
	b.mu.Unlock()
	b.txMu.Unlock()
}

// DiscardSnapshots drops the journal once a settlement has fully committed
// and closes the scope. No-op if no scope is open.
func (b *Bank) DiscardSnapshots() {
	b.mu.Lock()
	if !b.inTx {
		b.mu.Unlock()
		return
	}
	b.journal = b.journal[:0]
	b.inTx = false
	b.mu.Unlock()
	b.txMu.Unlock()
}

// balance / allowance / setters assume b.mu is held.

func (b *Bank) balance(asset *Asset, holder common.Address) *big.Int {
	if bal, ok := asset.balances[holder]; ok {
		return bal
	}
	return new(big.Int)
}

func (b *Bank) setBalance(asset *Asset, holder common.Address, value *big.Int) {
	if b.inTx {
		prev, had := asset.balances[holder]
		b.journal = append(b.journal, func() {
			if had {
				asset.balances[holder] = prev
			} else {
				delete(asset.balances, holder)
			}
		})
	}
	asset.balances[holder] = value
}

func (b *Bank) allowance(asset *Asset, owner, spender common.Address) *big.Int {
	if m, ok := asset.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return new(big.Int)
}

func (b *Bank) setAllowance(asset *Asset, owner, spender common.Address, value *big.Int) {
	m, hadMap := asset.allowances[owner]
	if !hadMap {
		m = make(map[common.Address]*big.Int)
		asset.allowances[owner] = m
	}
	if b.inTx {
		prev, had := m[spender]
		b.journal = append(b.journal, func() {
			if had {
				m[spender] = prev
			} else {
				delete(m, spender)
			}
			if !hadMap && len(m) == 0 {
				delete(asset.allowances, owner)
			}
		})
	}
	m[spender] = value
}
