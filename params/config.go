package params

import (
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Domain pins the EIP-712 domain used by the settlement engine.
// ChainID and VerifyingContract must match what off-chain signers use,
// otherwise every signature fails verification.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

type Settlement struct {
	FeeRateBps      uint64         // protocol fee in basis points (0-10000)
	Owner           common.Address // fee sink and administrator
	TradingContract common.Address // optional privileged caller (zero = unrestricted)
}

type Node struct {
	DBPath  string
	APIAddr string
	LogFile string
}

type Config struct {
	Domain     Domain
	Settlement Settlement
	Node       Node
}

func Default() Config {
	return Config{
		Domain: Domain{
			Name:              "TegroDEX",
			Version:           "1",
			ChainID:           big.NewInt(31337), // local dev chain
			VerifyingContract: common.Address{},
		},
		Settlement: Settlement{
			FeeRateBps: 20,
		},
		Node: Node{
			DBPath:  "data/tegrodex",
			APIAddr: ":8080",
			LogFile: "data/node.log",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			cfg.Domain.ChainID = big.NewInt(id)
		}
	}
	if contract := os.Getenv("VERIFYING_CONTRACT"); contract != "" {
		cfg.Domain.VerifyingContract = common.HexToAddress(contract)
	}

	if fee := os.Getenv("FEE_RATE_BPS"); fee != "" {
		if bps, err := strconv.ParseUint(fee, 10, 64); err == nil {
			cfg.Settlement.FeeRateBps = bps
		}
	}
	if owner := os.Getenv("OWNER_ADDRESS"); owner != "" {
		cfg.Settlement.Owner = common.HexToAddress(owner)
	}
	if trading := os.Getenv("TRADING_CONTRACT"); trading != "" {
		cfg.Settlement.TradingContract = common.HexToAddress(trading)
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Node.DBPath = dbPath
	}
	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.Node.APIAddr = addr
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Node.LogFile = logFile
	}

	return cfg
}
