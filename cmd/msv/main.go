package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/msv/internal/bank"
	"github.com/elys-network/msv/internal/config"
	"github.com/elys-network/msv/internal/keeper"
	"github.com/elys-network/msv/internal/ledger"
	"github.com/elys-network/msv/internal/logger"
	"github.com/elys-network/msv/internal/state"
	"github.com/elys-network/msv/internal/strategy"
	"github.com/elys-network/msv/internal/web"
)

// main is the entry point for the MSV system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Msg("MSV Multi-Strategy Vault Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: config.DBPort,
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Vault Ledger Initialization ---
	bankLedger := bank.NewLedger()

	vaultLedger, err := ledger.New(ledger.Config{
		Bank:                    bankLedger,
		Address:                 config.VaultAddress,
		Owner:                   config.VaultOwner,
		Asset:                   config.AssetDenom,
		TvlCap:                  parseTvlCap(config.TvlCap),
		WithdrawMaxLoss:         effectiveWithdrawMaxLoss(),
		LockedProfitDegradation: effectiveDegradation(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize vault ledger")
	}

	// --- 3. Strategy Registration ---
	idle, err := strategy.NewIdleStrategy(strategy.IdleConfig{
		Bank:    bankLedger,
		Address: config.VaultAddress + "-strategy-idle",
		Want:    config.AssetDenom,
		Vault:   config.VaultAddress,
		Report:  vaultLedger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize idle strategy")
	}
	if err := vaultLedger.AddStrategy(config.VaultOwner, idle, 10_000); err != nil {
		log.Fatal().Err(err).Msg("Failed to register idle strategy")
	}

	// --- 4. Keeper Initialization ---
	vaultKeeper, err := keeper.NewKeeper(keeper.Config{
		Ledger:       vaultLedger,
		Strategies:   []strategy.Harvester{idle},
		HarvestCron:  config.HarvestCron,
		PersistState: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper")
	}

	// --- Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, vaultKeeper)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting MSV web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Start Harvest Schedule ---
	if err := vaultKeeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start keeper")
	}

	// --- 6. Wait for Shutdown Signal ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	vaultKeeper.Stop()
	log.Info().Msg("MSV stopped cleanly")
}

// parseTvlCap converts the configured cap to an Int. "0" means unlimited,
// which ledger.New maps to the sentinel.
func parseTvlCap(raw string) sdkmath.Int {
	cap, ok := sdkmath.NewIntFromString(raw)
	if !ok || cap.IsNegative() {
		log.Fatal().Str("tvl_cap", raw).Msg("VAULT_TVL_CAP must be a non-negative integer")
	}
	return cap
}

func effectiveWithdrawMaxLoss() uint64 {
	if config.WithdrawMaxLossBPS == 0 {
		return config.DefaultVaultParameters.WithdrawMaxLossBPS
	}
	return config.WithdrawMaxLossBPS
}

func effectiveDegradation() sdkmath.Int {
	secs := config.ProfitUnlockSeconds
	if secs == 0 {
		secs = config.DefaultVaultParameters.ProfitUnlockSeconds
	}
	return ledger.DegradationForWindow(time.Duration(secs) * time.Second)
}
