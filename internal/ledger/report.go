/*

Capital rebalancing protocol. Strategies call Report on their own schedule;
the vault reconciles their performance, recomputes their fair allocation,
and settles the net difference in a single transfer. Losses shrink the
losing strategy's future allocation proportionally, with no manual
intervention.

*/

package ledger

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// AvailableCapital returns the signed capital movement policy allows for a
// strategy right now: positive is credit the vault can extend, negative is
// debt the strategy owes back. During shutdown, or once revoked, a
// strategy's target is zero and its entire allocation is owed back.
func (l *Ledger) AvailableCapital(stratAddr string) (sdkmath.Int, error) {
	s, err := l.registered(stratAddr)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return l.availableCapital(s), nil
}

func (l *Ledger) availableCapital(s *strategyState) sdkmath.Int {
	totalAssets := l.TotalAssets()
	current := s.params.Allocated

	stratMax := sdkmath.ZeroInt()
	if !l.emergencyShutdown && s.params.AllocBPS > 0 {
		stratMax = totalAssets.MulRaw(int64(s.params.AllocBPS)).QuoRaw(PercentDivisor)
	}

	if current.GT(stratMax) {
		return stratMax.Sub(current)
	}

	// Three-way minimum: the strategy's room to grow, the vault's room
	// under its aggregate target, and actual on-hand liquidity.
	available := stratMax.Sub(current)

	vaultMax := totalAssets.MulRaw(int64(l.totalAllocBPS)).QuoRaw(PercentDivisor)
	vaultRoom := vaultMax.Sub(l.totalAllocated)
	if vaultRoom.IsNegative() {
		vaultRoom = sdkmath.ZeroInt()
	}
	available = sdkmath.MinInt(available, vaultRoom)
	available = sdkmath.MinInt(available, l.idleBalance())
	return available
}

// Report reconciles a strategy's performance with the ledger. roi is the
// strategy's profit (negative for loss) since its last report; repayment is
// how much of its outstanding debt it is returning in this call. Returns the
// strategy's remaining debt — or, when the strategy is revoked or the vault
// is shut down, its entire balance, signaling full liquidation.
func (l *Ledger) Report(stratAddr string, roi, repayment sdkmath.Int) (sdkmath.Int, error) {
	var result sdkmath.Int
	err := l.atomically(func() error {
		s, err := l.registered(stratAddr)
		if err != nil {
			return err
		}
		if roi.IsNil() || repayment.IsNil() || repayment.IsNegative() {
			return errors.Join(ErrZeroAmount, errors.New("roi and repayment must be well-formed"))
		}

		loss := sdkmath.ZeroInt()
		gain := sdkmath.ZeroInt()
		if roi.IsNegative() {
			loss = roi.Neg()
			if err := l.reportLoss(stratAddr, loss); err != nil {
				return err
			}
		} else if roi.IsPositive() {
			gain = roi
			s.params.Gains = s.params.Gains.Add(gain)
		}

		available := l.availableCapital(s)
		debt := sdkmath.ZeroInt()
		credit := sdkmath.ZeroInt()
		repaymentUsed := sdkmath.ZeroInt()
		if available.IsNegative() {
			debt = available.Neg()
			repaymentUsed = sdkmath.MinInt(debt, repayment)
			if repaymentUsed.IsPositive() {
				s.params.Allocated = s.params.Allocated.Sub(repaymentUsed)
				l.totalAllocated = l.totalAllocated.Sub(repaymentUsed)
				debt = debt.Sub(repaymentUsed)
			}
		} else if available.IsPositive() {
			credit = available
			s.params.Allocated = s.params.Allocated.Add(credit)
			l.totalAllocated = l.totalAllocated.Add(credit)
		}

		// Settle the net difference between capital being pushed out and
		// free want sitting in the strategy, in one transfer.
		freeWantInStrat := repaymentUsed.Add(gain)
		switch {
		case credit.GT(freeWantInStrat):
			if _, err := l.bank.Transfer(l.asset, l.address, stratAddr, credit.Sub(freeWantInStrat)); err != nil {
				return fmt.Errorf("credit transfer to strategy %s failed: %w", stratAddr, err)
			}
		case credit.LT(freeWantInStrat):
			if _, err := l.bank.Transfer(l.asset, stratAddr, l.address, freeWantInStrat.Sub(credit)); err != nil {
				return fmt.Errorf("repayment transfer from strategy %s failed: %w", stratAddr, err)
			}
		}

		// Newly reported gains unlock linearly; a loss eats into whatever
		// is still locked before it touches the share price.
		lockedBeforeLoss := l.calculateLockedProfit().Add(gain)
		if lockedBeforeLoss.GT(loss) {
			l.lockedProfit = lockedBeforeLoss.Sub(loss)
		} else {
			l.lockedProfit = sdkmath.ZeroInt()
		}

		now := l.now()
		s.params.LastReport = now
		l.lastReport = now

		l.log.Info().
			Str("strategy", stratAddr).
			Str("roi", roi.String()).
			Str("repayment", repaymentUsed.String()).
			Str("credit", credit.String()).
			Str("debt", debt.String()).
			Str("allocated", s.params.Allocated.String()).
			Msg("Strategy report processed")

		if s.params.AllocBPS == 0 || l.emergencyShutdown {
			// Full liquidation signal.
			result = s.capability.BalanceOf()
			return nil
		}
		result = debt
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return result, nil
}

// reportLoss books a realized loss against a strategy: lifetime counter,
// allocation, and a proportional cut to its future allocation target.
func (l *Ledger) reportLoss(stratAddr string, loss sdkmath.Int) error {
	s, err := l.registered(stratAddr)
	if err != nil {
		return err
	}
	if loss.IsZero() {
		return nil
	}
	if loss.GT(s.params.Allocated) {
		return errors.Join(ErrLossTooHigh,
			fmt.Errorf("strategy %s reported loss %s against allocation %s", stratAddr, loss, s.params.Allocated))
	}

	// Shrink the target proportionally to the share of managed capital
	// lost. totalAllocated is still pre-loss here; it is positive because
	// loss <= allocated <= totalAllocated and loss > 0.
	if l.totalAllocBPS > 0 && l.totalAllocated.IsPositive() {
		bpsChange := loss.MulRaw(int64(l.totalAllocBPS)).Quo(l.totalAllocated)
		cut := sdkmath.MinInt(bpsChange, sdkmath.NewIntFromUint64(s.params.AllocBPS)).Uint64()
		if cut > 0 {
			s.params.AllocBPS -= cut
			l.totalAllocBPS -= cut
		}
	}

	s.params.Losses = s.params.Losses.Add(loss)
	s.params.Allocated = s.params.Allocated.Sub(loss)
	l.totalAllocated = l.totalAllocated.Sub(loss)

	l.log.Warn().
		Str("strategy", stratAddr).
		Str("loss", loss.String()).
		Uint64("allocBPS", s.params.AllocBPS).
		Msg("Strategy loss booked")

	return nil
}
