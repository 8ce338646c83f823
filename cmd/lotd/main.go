package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"linkoftrust/config"
	"linkoftrust/core"
	"linkoftrust/observability/logging"
	"linkoftrust/observability/metrics"
	"linkoftrust/rpc"
	"linkoftrust/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	rpcAddr := flag.String("rpc", "", "Listen address for the JSON-RPC server (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("lotd", cfg.NetworkName)

	price, err := cfg.Price()
	if err != nil {
		logger.Error("Invalid storage price", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db, price, cfg.OperatorAccount, logger)
	if err != nil {
		logger.Error("Failed to construct node", slog.Any("error", err))
		os.Exit(1)
	}
	node.SetMetrics(metrics.Trust())

	balances, err := cfg.GenesisBalances()
	if err != nil {
		logger.Error("Invalid genesis balances", slog.Any("error", err))
		os.Exit(1)
	}
	if err := node.SeedGenesis(balances); err != nil {
		logger.Error("Failed to seed genesis accounts", slog.Any("error", err))
		os.Exit(1)
	}

	addr := cfg.RPCAddress
	if *rpcAddr != "" {
		addr = *rpcAddr
	}

	logger.Info("starting registry node",
		slog.String("dataDir", cfg.DataDir),
		slog.String("pricePerByte", price.String()),
		slog.String("operator", cfg.OperatorAccount),
	)

	server := rpc.NewServer(node, logger)
	if err := server.Start(addr); err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}
