package params

import (
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Competition configures the combinatorial arbitrator (C1-C4).
type Competition struct {
	MaxWinners         int
	WrappedNativeToken common.Address
}

// Indexer configures the on-chain order indexer (C5).
type Indexer struct {
	WatermarkName        string
	HooksTrampoline      common.Address
	DomainName           string
	DomainVersion        string
	ChainID              uint64
	VerifyingContract    common.Address
	MaxConcurrentLookups int64
}

// Storage configures the persisted state backing both C5 and the
// external API surface.
type Storage struct {
	DBPath string
}

type Config struct {
	Competition Competition
	Indexer     Indexer
	Storage     Storage
}

func Default() Config {
	return Config{
		Competition: Competition{
			MaxWinners: 15,
		},
		Indexer: Indexer{
			WatermarkName:        "onchain_orders",
			DomainName:           "Auction Pipeline",
			DomainVersion:        "v2",
			ChainID:              1,
			MaxConcurrentLookups: 10,
		},
		Storage: Storage{
			DBPath: "./data/auctiond",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables.
// Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("MAX_WINNERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Competition.MaxWinners = n
		}
	}
	if v := os.Getenv("WRAPPED_NATIVE_TOKEN"); v != "" && common.IsHexAddress(v) {
		cfg.Competition.WrappedNativeToken = common.HexToAddress(v)
	}

	if v := os.Getenv("ONCHAIN_WATERMARK_NAME"); v != "" {
		cfg.Indexer.WatermarkName = v
	}
	if v := os.Getenv("HOOKS_TRAMPOLINE"); v != "" && common.IsHexAddress(v) {
		cfg.Indexer.HooksTrampoline = common.HexToAddress(v)
	}
	if v := os.Getenv("DOMAIN_NAME"); v != "" {
		cfg.Indexer.DomainName = v
	}
	if v := os.Getenv("DOMAIN_VERSION"); v != "" {
		cfg.Indexer.DomainVersion = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Indexer.ChainID = n
		}
	}
	if v := os.Getenv("VERIFYING_CONTRACT"); v != "" && common.IsHexAddress(v) {
		cfg.Indexer.VerifyingContract = common.HexToAddress(v)
	}
	if v := os.Getenv("MAX_CONCURRENT_LOOKUPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Indexer.MaxConcurrentLookups = n
		}
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}

	return cfg
}
