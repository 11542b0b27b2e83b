package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"nftmarket/config"
	"nftmarket/core/genesis"
	"nftmarket/core/state"
	"nftmarket/native/assets"
	"nftmarket/native/market"
	"nftmarket/observability/logging"
	"nftmarket/rpc"
	"nftmarket/storage"
)

const (
	rpcTokenEnv = "NFTMARKET_RPC_TOKEN"
	envNameEnv  = "NFTMARKET_ENV"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envNameEnv))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup("nftmarketd", env, "")
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.Setup("nftmarketd", env, cfg.LogFile)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err), slog.String("dataDir", cfg.DataDir))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	assetsEngine := assets.NewEngine()
	assetsEngine.SetState(manager)

	marketEngine := market.NewEngine()
	marketEngine.SetState(manager)
	marketEngine.SetCustody(assetsEngine)
	marketEngine.SetCatalog(assetsEngine)
	marketEngine.SetRoyaltySource(assetsEngine)

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.GenesisFile)
	}
	if genesisPath != "" {
		spec, err := genesis.LoadSpec(genesisPath)
		if err != nil {
			logger.Error("failed to load genesis fixture", slog.Any("error", err), slog.String("path", genesisPath))
			os.Exit(1)
		}
		applied, err := genesis.Apply(spec, manager, assetsEngine)
		if err != nil {
			logger.Error("failed to apply genesis fixture", slog.Any("error", err))
			os.Exit(1)
		}
		if applied {
			logger.Info("genesis fixture applied", slog.String("path", genesisPath), slog.String("network", spec.NetworkName))
		}
	}

	authToken := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if authToken == "" {
		authToken = strings.TrimSpace(cfg.RPCAuthToken)
	}
	if authToken == "" {
		logger.Warn("no RPC auth token configured; mutating methods will be rejected")
	}

	server := rpc.NewServer(manager, assetsEngine, marketEngine, logger, rpc.Config{
		AuthToken: authToken,
		RateLimit: cfg.RPCRateLimit,
		RateBurst: cfg.RPCRateBurst,
	})

	logger.Info("nftmarketd starting", slog.String("network", cfg.NetworkName), slog.String("rpc", cfg.RPCAddress))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
