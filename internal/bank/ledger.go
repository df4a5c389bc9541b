/*

In-memory fungible asset ledger. The vault core moves value through this
package the way an on-ledger application moves value through its host bank
module: balances are keyed by denom and account, transfers are synchronous,
and every mutation is journaled so that a failing vault operation can be
unwound to the exact state it started from.

Per-denom transfer fees model fee-on-transfer assets; the vault never trusts
a requested transfer amount and always measures balance deltas instead.

*/

package bank

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/msv/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount     = errors.New("amount is invalid")
	ErrInvalidAccount    = errors.New("account is invalid")
	ErrInvalidDenom      = errors.New("denom is invalid")
	ErrInvalidFee        = errors.New("transfer fee is invalid")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidSnapshot   = errors.New("snapshot is invalid")
)

const feeDivisor = 10_000

var bankLogger = logger.GetForComponent("bank")

// journalEntry remembers the previous balance of a single (denom, account)
// cell so a revert can restore it.
type journalEntry struct {
	denom   string
	account string
	prev    sdkmath.Int
	existed bool
}

// Ledger is an in-memory multi-denom account ledger with journaled mutations.
type Ledger struct {
	balances map[string]map[string]sdkmath.Int
	fees     map[string]uint64 // denom -> transfer fee in basis points
	journal  []journalEntry
}

// NewLedger creates an empty bank ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]map[string]sdkmath.Int),
		fees:     make(map[string]uint64),
	}
}

// SetTransferFee configures a fee-on-transfer rate for a denom. The fee is
// deducted from the transferred amount and burned.
func (l *Ledger) SetTransferFee(denom string, bps uint64) error {
	if denom == "" {
		return ErrInvalidDenom
	}
	if bps >= feeDivisor {
		return errors.Join(ErrInvalidFee, fmt.Errorf("fee of %d bps would consume the full transfer", bps))
	}
	l.fees[denom] = bps
	return nil
}

// BalanceOf returns the balance of an account for a denom. Unknown accounts
// hold zero.
func (l *Ledger) BalanceOf(denom, account string) sdkmath.Int {
	if accounts, ok := l.balances[denom]; ok {
		if bal, ok := accounts[account]; ok {
			return bal
		}
	}
	return sdkmath.ZeroInt()
}

// Mint credits newly created units to an account.
func (l *Ledger) Mint(denom, account string, amount sdkmath.Int) error {
	if err := validateMovement(denom, account, amount); err != nil {
		return err
	}
	l.setBalance(denom, account, l.BalanceOf(denom, account).Add(amount))
	return nil
}

// Burn destroys units held by an account.
func (l *Ledger) Burn(denom, account string, amount sdkmath.Int) error {
	if err := validateMovement(denom, account, amount); err != nil {
		return err
	}
	bal := l.BalanceOf(denom, account)
	if bal.LT(amount) {
		return errors.Join(ErrInsufficientFunds,
			fmt.Errorf("burn %s exceeds balance %s of %s", amount, bal, account))
	}
	l.setBalance(denom, account, bal.Sub(amount))
	return nil
}

// Transfer moves amount from one account to another, deducting any configured
// transfer fee from the credited side. It returns the amount actually
// received; callers that care about fee-on-transfer behavior must use the
// return value (or a balance delta), never the requested amount.
func (l *Ledger) Transfer(denom, from, to string, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := validateMovement(denom, from, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if to == "" {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidAccount, errors.New("recipient is empty"))
	}

	fromBal := l.BalanceOf(denom, from)
	if fromBal.LT(amount) {
		return sdkmath.ZeroInt(), errors.Join(ErrInsufficientFunds,
			fmt.Errorf("transfer %s exceeds balance %s of %s", amount, fromBal, from))
	}

	received := amount
	if feeBPS := l.fees[denom]; feeBPS > 0 {
		fee := amount.MulRaw(int64(feeBPS)).QuoRaw(feeDivisor)
		received = amount.Sub(fee)
	}

	l.setBalance(denom, from, fromBal.Sub(amount))
	l.setBalance(denom, to, l.BalanceOf(denom, to).Add(received))

	bankLogger.Debug().
		Str("denom", denom).
		Str("from", from).
		Str("to", to).
		Str("amount", amount.String()).
		Str("received", received.String()).
		Msg("Transfer executed")

	return received, nil
}

// Snapshot returns a journal position that can later be reverted to.
func (l *Ledger) Snapshot() int {
	return len(l.journal)
}

// RevertToSnapshot rolls every mutation made after the given snapshot back,
// most recent first. Reverting to an unknown position panics: it indicates a
// programming error in the caller's snapshot discipline, not a runtime
// condition.
func (l *Ledger) RevertToSnapshot(snapshot int) {
	if snapshot < 0 || snapshot > len(l.journal) {
		panic(errors.Join(ErrInvalidSnapshot, fmt.Errorf("snapshot %d outside journal of length %d", snapshot, len(l.journal))))
	}
	for i := len(l.journal) - 1; i >= snapshot; i-- {
		entry := l.journal[i]
		accounts := l.balances[entry.denom]
		if entry.existed {
			accounts[entry.account] = entry.prev
		} else {
			delete(accounts, entry.account)
		}
	}
	l.journal = l.journal[:snapshot]
}

// setBalance records the previous value in the journal before overwriting.
func (l *Ledger) setBalance(denom, account string, amount sdkmath.Int) {
	accounts, ok := l.balances[denom]
	if !ok {
		accounts = make(map[string]sdkmath.Int)
		l.balances[denom] = accounts
	}
	prev, existed := accounts[account]
	l.journal = append(l.journal, journalEntry{denom: denom, account: account, prev: prev, existed: existed})
	accounts[account] = amount
}

func validateMovement(denom, account string, amount sdkmath.Int) error {
	if denom == "" {
		return ErrInvalidDenom
	}
	if account == "" {
		return errors.Join(ErrInvalidAccount, errors.New("account is empty"))
	}
	if amount.IsNil() {
		return errors.Join(ErrInvalidAmount, errors.New("amount is nil"))
	}
	if amount.IsNegative() {
		return errors.Join(ErrInvalidAmount, fmt.Errorf("amount %s is negative", amount))
	}
	return nil
}
