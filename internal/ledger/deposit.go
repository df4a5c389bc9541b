package ledger

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Deposit transfers assets from caller into the vault and mints shares to
// receiver. The minted amount is computed from the measured balance delta,
// so fee-on-transfer assets credit only what actually arrived.
func (l *Ledger) Deposit(caller, receiver string, assets sdkmath.Int) (sdkmath.Int, error) {
	if err := l.enter(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer l.exit()

	var shares sdkmath.Int
	err := l.atomically(func() error {
		var err error
		shares, _, err = l.depositAssets(caller, receiver, assets)
		return err
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return shares, nil
}

// DepositAll deposits the caller's entire asset balance.
func (l *Ledger) DepositAll(caller, receiver string) (sdkmath.Int, error) {
	return l.Deposit(caller, receiver, l.bank.BalanceOf(l.asset, caller))
}

// Mint deposits exactly the assets required to mint shares at the current
// exchange rate. With a fee-on-transfer asset the shares actually minted
// reflect what arrived, same as Deposit.
func (l *Ledger) Mint(caller, receiver string, shares sdkmath.Int) (sdkmath.Int, error) {
	if err := l.enter(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer l.exit()

	var assets sdkmath.Int
	err := l.atomically(func() error {
		if shares.IsNil() || !shares.IsPositive() {
			return errors.Join(ErrZeroAmount, errors.New("mint requires a positive share count"))
		}
		assets = l.PreviewMint(shares)
		_, received, err := l.depositAssets(caller, receiver, assets)
		if err != nil {
			return err
		}
		assets = received
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return assets, nil
}

// depositAssets is the shared deposit path. Exchange rate is fixed before
// the transfer; shares are computed from the measured delta afterwards.
func (l *Ledger) depositAssets(caller, receiver string, assets sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if caller == "" || receiver == "" {
		return zero, zero, errors.Join(ErrUnauthorized, errors.New("caller and receiver are required"))
	}
	if l.emergencyShutdown {
		return zero, zero, ErrShutdown
	}
	if assets.IsNil() || !assets.IsPositive() {
		return zero, zero, errors.Join(ErrZeroAmount, errors.New("deposit requires a positive amount"))
	}
	if !l.tvlCap.Equal(UnlimitedTvlCap) && l.totalBalance().Add(assets).GT(l.tvlCap) {
		return zero, zero, errors.Join(ErrTvlCapExceeded,
			fmt.Errorf("deposit %s would push managed assets past cap %s", assets, l.tvlCap))
	}

	supply := l.totalSupply
	freeFunds := l.TotalAssets()

	balBefore := l.idleBalance()
	if _, err := l.bank.Transfer(l.asset, caller, l.address, assets); err != nil {
		return zero, zero, fmt.Errorf("deposit transfer failed: %w", err)
	}
	received := l.idleBalance().Sub(balBefore)

	var shares sdkmath.Int
	if supply.IsZero() || freeFunds.IsZero() {
		shares = received
	} else {
		shares = received.Mul(supply).Quo(freeFunds)
	}
	if !shares.IsPositive() {
		return zero, zero, errors.Join(ErrZeroAmount,
			fmt.Errorf("deposit of %s is too small to mint a share", received))
	}

	l.mint(receiver, shares)
	l.cumulativeDeposits[receiver] = l.CumulativeDeposits(receiver).Add(received)

	l.log.Info().
		Str("caller", caller).
		Str("receiver", receiver).
		Str("assets", received.String()).
		Str("shares", shares.String()).
		Msg("Deposit processed")

	return shares, received, nil
}
