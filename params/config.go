package params

import (
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Native struct {
	// Symbol code and precision of the settlement asset.
	Symbol    string
	Precision uint8
	// Contract is the canonical native token contract; native deposits from
	// any other origin are rejected.
	Contract common.Address
}

type Node struct {
	DBPath     string
	ListenAddr string
	LogFile    string // empty = console only
	// Exchange is the ledger account the engine settles through.
	Exchange common.Address
	// Admin may mutate the whitelist.
	Admin common.Address
}

type Config struct {
	Native Native
	Node   Node
}

func Default() Config {
	return Config{
		Native: Native{
			Symbol:    "TNG",
			Precision: 4,
			Contract:  common.HexToAddress("0x0000000000000000000000000000000000000101"),
		},
		Node: Node{
			DBPath:     "./data/exchange.db",
			ListenAddr: ":8080",
			Exchange:   common.HexToAddress("0x0000000000000000000000000000000000000001"),
			Admin:      common.HexToAddress("0x0000000000000000000000000000000000000002"),
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Native.Symbol = getEnv("NATIVE_SYMBOL", cfg.Native.Symbol)
	if p := os.Getenv("NATIVE_PRECISION"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n >= 0 && n <= 12 {
			cfg.Native.Precision = uint8(n)
		}
	}
	if c := os.Getenv("NATIVE_CONTRACT"); c != "" {
		cfg.Native.Contract = common.HexToAddress(c)
	}

	cfg.Node.DBPath = getEnv("DB_PATH", cfg.Node.DBPath)
	cfg.Node.ListenAddr = getEnv("LISTEN_ADDR", cfg.Node.ListenAddr)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	if a := os.Getenv("EXCHANGE_ACCOUNT"); a != "" {
		cfg.Node.Exchange = common.HexToAddress(a)
	}
	if a := os.Getenv("ADMIN_ACCOUNT"); a != "" {
		cfg.Node.Admin = common.HexToAddress(a)
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
