/*

Share/asset conversion math. All conversions floor toward the vault so a
round trip through shares can never mint value out of rounding dust; the
preview functions that determine what a caller must give up (PreviewMint,
PreviewWithdraw) round up instead, against the caller.

Zero-supply policy: ConvertToAssets returns zero when no shares exist. The
permissive one-to-one variant would let PreviewRedeem quote value for shares
that cannot exist, so it is deliberately not used here.

*/

package ledger

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// ceilDiv divides rounding up. Divisor must be positive.
func ceilDiv(a, b sdkmath.Int) sdkmath.Int {
	return a.Add(b).SubRaw(1).Quo(b)
}

// TotalSupply returns the outstanding share count.
func (l *Ledger) TotalSupply() sdkmath.Int { return l.totalSupply }

// BalanceOf returns a holder's share balance.
func (l *Ledger) BalanceOf(holder string) sdkmath.Int {
	if bal, ok := l.balances[holder]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// ConvertToShares values assets in shares at the current exchange rate,
// rounding down. With no shares or no assets outstanding the rate is 1:1.
func (l *Ledger) ConvertToShares(assets sdkmath.Int) sdkmath.Int {
	totalAssets := l.TotalAssets()
	if l.totalSupply.IsZero() || totalAssets.IsZero() {
		return assets
	}
	return assets.Mul(l.totalSupply).Quo(totalAssets)
}

// ConvertToAssets values shares in assets at the current exchange rate,
// rounding down. Zero supply converts to zero assets.
func (l *Ledger) ConvertToAssets(shares sdkmath.Int) sdkmath.Int {
	if l.totalSupply.IsZero() {
		return sdkmath.ZeroInt()
	}
	return shares.Mul(l.TotalAssets()).Quo(l.totalSupply)
}

// GetPricePerFullShare returns the asset value of one full share as a
// decimal. One-to-one when no shares exist.
func (l *Ledger) GetPricePerFullShare() sdkmath.LegacyDec {
	if l.totalSupply.IsZero() {
		return sdkmath.LegacyOneDec()
	}
	return sdkmath.LegacyNewDecFromInt(l.TotalAssets()).QuoInt(l.totalSupply)
}

// PreviewDeposit returns the shares a deposit of assets would mint now.
func (l *Ledger) PreviewDeposit(assets sdkmath.Int) sdkmath.Int {
	return l.ConvertToShares(assets)
}

// PreviewMint returns the assets required to mint exactly shares, rounding
// up. The first minter pays 1:1.
func (l *Ledger) PreviewMint(shares sdkmath.Int) sdkmath.Int {
	if l.totalSupply.IsZero() {
		return shares
	}
	return ceilDiv(shares.Mul(l.TotalAssets()), l.totalSupply)
}

// PreviewWithdraw returns the shares that would be burned to withdraw
// assets, rounding up. With no supply (or no backing assets) no withdrawal
// is possible and zero is returned.
func (l *Ledger) PreviewWithdraw(assets sdkmath.Int) sdkmath.Int {
	totalAssets := l.TotalAssets()
	if l.totalSupply.IsZero() || totalAssets.IsZero() {
		return sdkmath.ZeroInt()
	}
	return ceilDiv(assets.Mul(l.totalSupply), totalAssets)
}

// PreviewRedeem returns the assets redeeming shares would yield now.
func (l *Ledger) PreviewRedeem(shares sdkmath.Int) sdkmath.Int {
	return l.ConvertToAssets(shares)
}

// MaxDeposit returns the largest deposit the TVL cap currently permits.
func (l *Ledger) MaxDeposit() sdkmath.Int {
	if l.emergencyShutdown {
		return sdkmath.ZeroInt()
	}
	if l.tvlCap.Equal(UnlimitedTvlCap) {
		return UnlimitedTvlCap
	}
	total := l.totalBalance()
	if total.GTE(l.tvlCap) {
		return sdkmath.ZeroInt()
	}
	return l.tvlCap.Sub(total)
}

// MaxMint returns the largest share mint the TVL cap currently permits.
func (l *Ledger) MaxMint() sdkmath.Int {
	maxDep := l.MaxDeposit()
	if maxDep.Equal(UnlimitedTvlCap) {
		return maxDep
	}
	return l.ConvertToShares(maxDep)
}

// MaxWithdraw returns the asset value of a holder's full share balance.
func (l *Ledger) MaxWithdraw(owner string) sdkmath.Int {
	return l.ConvertToAssets(l.BalanceOf(owner))
}

// MaxRedeem returns a holder's full share balance.
func (l *Ledger) MaxRedeem(owner string) sdkmath.Int {
	return l.BalanceOf(owner)
}

// Approve lets spender move up to shares of owner's shares through
// Withdraw/Redeem. Overwrites any previous allowance.
func (l *Ledger) Approve(owner, spender string, shares sdkmath.Int) error {
	if owner == "" || spender == "" {
		return errors.Join(ErrUnauthorized, errors.New("owner and spender are required"))
	}
	if shares.IsNil() || shares.IsNegative() {
		return errors.Join(ErrZeroAmount, fmt.Errorf("allowance %s is invalid", shares))
	}
	spenders, ok := l.allowances[owner]
	if !ok {
		spenders = make(map[string]sdkmath.Int)
		l.allowances[owner] = spenders
	}
	spenders[spender] = shares
	return nil
}

// Allowance returns the shares spender may currently move for owner.
func (l *Ledger) Allowance(owner, spender string) sdkmath.Int {
	if spenders, ok := l.allowances[owner]; ok {
		if a, ok := spenders[spender]; ok {
			return a
		}
	}
	return sdkmath.ZeroInt()
}

// spendAllowance consumes shares of spender's allowance from owner.
// A caller operating on their own shares needs no allowance.
func (l *Ledger) spendAllowance(owner, spender string, shares sdkmath.Int) error {
	if owner == spender {
		return nil
	}
	current := l.Allowance(owner, spender)
	if current.LT(shares) {
		return errors.Join(ErrInsufficientAllowance,
			fmt.Errorf("spender %s has %s of %s, needs %s", spender, current, owner, shares))
	}
	l.allowances[owner][spender] = current.Sub(shares)
	return nil
}

// mint creates shares for a receiver.
func (l *Ledger) mint(receiver string, shares sdkmath.Int) {
	l.totalSupply = l.totalSupply.Add(shares)
	l.balances[receiver] = l.BalanceOf(receiver).Add(shares)
}

// burn destroys shares held by an owner.
func (l *Ledger) burn(owner string, shares sdkmath.Int) error {
	bal := l.BalanceOf(owner)
	if bal.LT(shares) {
		return errors.Join(ErrInsufficientShares,
			fmt.Errorf("%s holds %s shares, needs %s", owner, bal, shares))
	}
	l.balances[owner] = bal.Sub(shares)
	l.totalSupply = l.totalSupply.Sub(shares)
	return nil
}
