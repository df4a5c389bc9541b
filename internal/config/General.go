package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VaultAddress is the vault's own bank account.
	VaultAddress string
	// VaultOwner is the admin account allowed to change vault policy.
	VaultOwner string
	// AssetDenom is the single asset denom the vault manages.
	AssetDenom string

	// TvlCap is the maximum managed value, as an integer string. "0" means
	// unlimited.
	TvlCap string
	// WithdrawMaxLossBPS is the slippage tolerance for withdrawals that pull
	// from strategies, in basis points.
	WithdrawMaxLossBPS uint64
	// ProfitUnlockSeconds is the window over which reported profit unlocks.
	// 0 disables profit locking.
	ProfitUnlockSeconds uint64

	// HarvestCron is the cron spec for keeper harvest cycles.
	HarvestCron string
	// WebPort is the port the HTTP API listens on.
	WebPort string
	// LogLevel is the zerolog level name (e.g. "debug", "info").
	LogLevel string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultAddress, err = getEnv("VAULT_ADDRESS")
	if err != nil {
		return err
	}

	VaultOwner, err = getEnv("VAULT_OWNER")
	if err != nil {
		return err
	}

	AssetDenom, err = getEnv("VAULT_ASSET_DENOM")
	if err != nil {
		return err
	}

	TvlCap, err = getEnv("VAULT_TVL_CAP")
	if err != nil {
		return err
	}

	WithdrawMaxLossBPS, err = getEnvAsUint64("VAULT_WITHDRAW_MAX_LOSS_BPS")
	if err != nil {
		return err
	}

	ProfitUnlockSeconds, err = getEnvAsUint64("VAULT_PROFIT_UNLOCK_SECONDS")
	if err != nil {
		return err
	}

	HarvestCron, err = getEnv("HARVEST_CRON")
	if err != nil {
		return err
	}

	WebPort, err = getEnv("WEB_PORT")
	if err != nil {
		return err
	}

	LogLevel, err = getEnv("LOG_LEVEL")
	if err != nil {
		return err
	}

	// Load database configuration
	if err := loadDatabaseConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultAddress", VaultAddress).
		Str("AssetDenom", AssetDenom).
		Str("HarvestCron", HarvestCron).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
