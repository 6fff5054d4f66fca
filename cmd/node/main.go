package main

import (
	"log"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tegro/tegrodex/params"
	"github.com/tegro/tegrodex/pkg/api"
	"github.com/tegro/tegrodex/pkg/crypto"
	"github.com/tegro/tegrodex/pkg/dex"
	"github.com/tegro/tegrodex/pkg/storage"
	"github.com/tegro/tegrodex/pkg/token"
	"github.com/tegro/tegrodex/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	store, err := storage.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	ledger, err := dex.NewFillLedger(store)
	if err != nil {
		sugar.Fatalw("ledger_load_failed", "err", err)
	}

	bank := token.NewBank()

	domain := crypto.EIP712Domain{
		Name:              cfg.Domain.Name,
		Version:           cfg.Domain.Version,
		ChainID:           cfg.Domain.ChainID,
		VerifyingContract: cfg.Domain.VerifyingContract,
	}

	engine, err := dex.NewEngine(domain, ledger, bank, store, sugar)
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}

	// Bootstrap: run one-time setup from config when the store holds no
	// admin state yet (the deployment-script analog of `initialize`).
	if !engine.Initialized() && cfg.Settlement.Owner != (common.Address{}) {
		if err := engine.Initialize(cfg.Settlement.Owner, cfg.Settlement.FeeRateBps); err != nil {
			sugar.Fatalw("engine_bootstrap_failed", "err", err)
		}
		if tc := cfg.Settlement.TradingContract; tc != (common.Address{}) {
			if err := engine.SetTradingContract(cfg.Settlement.Owner, tc); err != nil {
				sugar.Fatalw("trading_contract_bootstrap_failed", "err", err)
			}
		}
	}

	sugar.Infow("node_starting",
		"chain_id", cfg.Domain.ChainID.String(),
		"verifying_contract", cfg.Domain.VerifyingContract.Hex(),
		"initialized", engine.Initialized(),
		"api_addr", cfg.Node.APIAddr,
	)

	server := api.NewServer(engine, bank, sugar)
	if err := server.Start(cfg.Node.APIAddr); err != nil {
		sugar.Fatalw("api_server_failed", "err", err)
	}
}
