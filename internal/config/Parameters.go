/*

This file contains the default policy parameters for the vault.

These parameters are designed for managing pooled third-party capital in a
production environment. Each value is chosen to favor capital preservation
over aggressive yield.

*/

package config

import (
	"github.com/elys-network/msv/internal/types"
)

// DefaultVaultParameters provides a baseline vault policy. These values are
// used when the corresponding environment variables are set to zero.
var DefaultVaultParameters = types.VaultParameters{
	WithdrawMaxLossBPS: 1, // Tolerate at most 0.01% slippage on strategy withdrawals.
	// Rationale: users withdrawing should not silently eat strategy exit costs.
	// Anything beyond a rounding-level loss must abort and leave funds staged.

	ProfitUnlockSeconds: 6 * 60 * 60, // Unlock reported profit over 6 hours.
	// Rationale: releasing gains gradually removes the incentive to
	// deposit just before a harvest and redeem just after it.

	TvlCap: "0", // No deposit limit by default.
	// Rationale: caps are an onboarding control; operators opt in per deployment.
}
