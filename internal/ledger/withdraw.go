/*

Withdrawal waterfall. The ordering here is part of the correctness argument
and must not be decomposed: shares burn first (fixing the exchange rate at
the intent of the call), then strategies are drained in queue order, then the
payout is clamped to what was actually recovered, then the aggregate loss is
checked against the slippage tolerance. A tripped tolerance aborts the whole
operation, share burn included.

*/

package ledger

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Withdraw burns the shares needed to pay out assets to receiver, pulling
// from strategies if the vault's idle balance does not cover it. Returns the
// shares burned. If the queue is exhausted the payout is silently clamped to
// what was recoverable; callers that care must inspect the result.
func (l *Ledger) Withdraw(caller, receiver, owner string, assets sdkmath.Int) (sdkmath.Int, error) {
	if err := l.enter(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer l.exit()

	var shares sdkmath.Int
	err := l.atomically(func() error {
		if assets.IsNil() || !assets.IsPositive() {
			return errors.Join(ErrZeroAmount, errors.New("withdraw requires a positive amount"))
		}
		shares = l.PreviewWithdraw(assets)
		if !shares.IsPositive() {
			return errors.Join(ErrZeroAmount, errors.New("no shares correspond to the requested amount"))
		}
		if err := l.spendAllowance(owner, caller, shares); err != nil {
			return err
		}
		_, err := l.withdraw(assets, shares, receiver, owner)
		return err
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return shares, nil
}

// Redeem burns exactly shares of owner and pays out their current asset
// value to receiver. Returns the assets actually transferred.
func (l *Ledger) Redeem(caller, receiver, owner string, shares sdkmath.Int) (sdkmath.Int, error) {
	if err := l.enter(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer l.exit()

	var assets sdkmath.Int
	err := l.atomically(func() error {
		if shares.IsNil() || !shares.IsPositive() {
			return errors.Join(ErrZeroAmount, errors.New("redeem requires a positive share count"))
		}
		if err := l.spendAllowance(owner, caller, shares); err != nil {
			return err
		}
		value := l.ConvertToAssets(shares)
		var err error
		assets, err = l.withdraw(value, shares, receiver, owner)
		return err
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return assets, nil
}

// WithdrawAll withdraws the full asset value of the caller's shares.
func (l *Ledger) WithdrawAll(caller, receiver string) (sdkmath.Int, error) {
	return l.Redeem(caller, receiver, caller, l.BalanceOf(caller))
}

// RedeemAll redeems the caller's entire share balance.
func (l *Ledger) RedeemAll(caller, receiver string) (sdkmath.Int, error) {
	return l.Redeem(caller, receiver, caller, l.BalanceOf(caller))
}

// withdraw is the shared waterfall. value is the asset target at the
// pre-call exchange rate, shares the corresponding burn. Runs inside
// atomically, so returning an error unwinds everything.
func (l *Ledger) withdraw(value, shares sdkmath.Int, receiver, owner string) (sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if receiver == "" || owner == "" {
		return zero, errors.Join(ErrUnauthorized, errors.New("receiver and owner are required"))
	}

	// Burn first: fixes the share price at the intent of the call and
	// starves a reentrant withdrawal of stale exchange rates.
	if err := l.burn(owner, shares); err != nil {
		return zero, err
	}

	totalLoss := sdkmath.ZeroInt()
	if l.idleBalance().LT(value) {
		for _, stratAddr := range l.withdrawalQueue {
			idle := l.idleBalance()
			if idle.GTE(value) {
				break
			}
			s, ok := l.strategies[stratAddr]
			if !ok || s.params.Allocated.IsZero() {
				continue
			}

			remaining := value.Sub(idle)
			request := sdkmath.MinInt(remaining, s.params.Allocated)

			loss, err := s.capability.Withdraw(request)
			if err != nil {
				return zero, fmt.Errorf("strategy %s withdraw failed: %w", stratAddr, err)
			}
			actual := l.idleBalance().Sub(idle)

			if !loss.IsNil() && loss.IsPositive() {
				// The withdrawer absorbs the realized loss; the
				// strategy's future allocation shrinks for it.
				value = value.Sub(loss)
				totalLoss = totalLoss.Add(loss)
				if err := l.reportLoss(stratAddr, loss); err != nil {
					return zero, err
				}
			}

			if actual.GT(s.params.Allocated) {
				return zero, errors.Join(ErrExcessWithdrawal,
					fmt.Errorf("strategy %s returned %s against allocation %s", stratAddr, actual, s.params.Allocated))
			}
			s.params.Allocated = s.params.Allocated.Sub(actual)
			l.totalAllocated = l.totalAllocated.Sub(actual)
		}
	}

	// Queue exhausted before the target was met: partial fulfillment, not
	// an error.
	if idle := l.idleBalance(); idle.LT(value) {
		value = idle
	}

	// Slippage guard over the whole waterfall.
	maxLoss := value.Add(totalLoss).MulRaw(int64(l.withdrawMaxLoss)).QuoRaw(PercentDivisor)
	if totalLoss.GT(maxLoss) {
		return zero, errors.Join(ErrWithdrawMaxLoss,
			fmt.Errorf("realized loss %s exceeds %d bps of %s", totalLoss, l.withdrawMaxLoss, value.Add(totalLoss)))
	}

	if value.IsPositive() {
		if _, err := l.bank.Transfer(l.asset, l.address, receiver, value); err != nil {
			return zero, fmt.Errorf("withdraw transfer failed: %w", err)
		}
	}
	l.cumulativeWithdrawals[owner] = l.CumulativeWithdrawals(owner).Add(value)

	l.log.Info().
		Str("owner", owner).
		Str("receiver", receiver).
		Str("assets", value.String()).
		Str("shares", shares.String()).
		Str("loss", totalLoss.String()).
		Msg("Withdrawal processed")

	return value, nil
}
