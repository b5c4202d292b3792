package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/market"
	"github.com/uhyunpark/hyperoptions/pkg/app/options"
)

type Node struct {
	ID      string `yaml:"id"`
	APIAddr string `yaml:"api_addr"`
	// DataDir holds the pebble database and the WAL. Empty keeps blocks in memory.
	DataDir string `yaml:"data_dir"`
	LogFile string `yaml:"log_file"`
	// MinBlockTime throttles block production so an idle devnet does not
	// spin out empty blocks.
	MinBlockTime  time.Duration `yaml:"min_block_time"`
	MaxBlockBytes int64         `yaml:"max_block_bytes"`
	MempoolSize   int           `yaml:"mempool_size"`
	Faucet        bool          `yaml:"faucet"`
	TxGen         bool          `yaml:"txgen"`
	CORSOrigins   []string      `yaml:"cors_origins"`
	Verbose       bool          `yaml:"verbose"`
}

// Amounts are base-unit integers, bare or quoted in YAML.
type Market struct {
	OpeningFee       amount.Int    `yaml:"opening_fee"`
	ExerciseWindow   time.Duration `yaml:"exercise_window"`
	LiquidationGrace time.Duration `yaml:"liquidation_grace"`
	MaxMatches       int           `yaml:"max_matches"`
	HistorySize      int           `yaml:"history_size"`
	ExpiryBase       time.Time     `yaml:"expiry_base"`
	ExpiryStep       time.Duration `yaml:"expiry_step"`
}

type Allocation struct {
	Address string     `yaml:"address"`
	Native  amount.Int `yaml:"native"`
	Asset   amount.Int `yaml:"asset"`
}

type Genesis struct {
	Admin         string       `yaml:"admin"`
	AssetSymbol   string       `yaml:"asset_symbol"`
	AssetDecimals int32        `yaml:"asset_decimals"`
	Time          time.Time    `yaml:"time"`
	Allocations   []Allocation `yaml:"allocations"`
}

type Config struct {
	Node    Node    `yaml:"node"`
	Market  Market  `yaml:"market"`
	Genesis Genesis `yaml:"genesis"`
}

func Default() Config {
	app := options.DefaultConfig()
	mp := app.Market
	return Config{
		Node: Node{
			ID:            "node-1",
			APIAddr:       ":8080",
			DataDir:       "data",
			LogFile:       "data/node.log",
			MinBlockTime:  200 * time.Millisecond, // Devnet default: prevent log spam
			MaxBlockBytes: 1 << 20,
			MempoolSize:   app.MempoolSize,
			CORSOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Market: Market{
			OpeningFee:       mp.OpeningFee,
			ExerciseWindow:   mp.ExerciseWindow,
			LiquidationGrace: mp.LiquidationGrace,
			MaxMatches:       mp.MaxMatches,
			HistorySize:      mp.HistorySize,
			ExpiryBase:       mp.ExpiryBase,
			ExpiryStep:       mp.ExpiryStep,
		},
		Genesis: Genesis{
			AssetSymbol:   app.Genesis.AssetSymbol,
			AssetDecimals: app.Genesis.AssetDecimals,
			Time:          app.Genesis.Time,
		},
	}
}

// LoadFile overlays a YAML file on top of cfg. Keys absent from the file
// keep their current value.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > YAML (CONFIG_FILE) > defaults
func LoadFromEnv(envPath string) (Config, error) {
	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if cfg, err = LoadFile(cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	str("NODE_ID", &cfg.Node.ID)
	str("API_ADDR", &cfg.Node.APIAddr)
	str("DATA_DIR", &cfg.Node.DataDir)
	str("LOG_FILE", &cfg.Node.LogFile)
	keep(millis("NODE_MIN_BLOCK_TIME_MS", &cfg.Node.MinBlockTime))
	keep(int64Var("MAX_BLOCK_BYTES", &cfg.Node.MaxBlockBytes))
	keep(intVar("MEMPOOL_SIZE", &cfg.Node.MempoolSize))
	boolVar("ENABLE_FAUCET", &cfg.Node.Faucet)
	boolVar("ENABLE_TXGEN", &cfg.Node.TxGen)
	boolVar("VERBOSE", &cfg.Node.Verbose)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Node.CORSOrigins = strings.Split(origins, ",")
	}

	keep(amountVar("MARKET_OPENING_FEE", &cfg.Market.OpeningFee))
	keep(duration("MARKET_EXERCISE_WINDOW", &cfg.Market.ExerciseWindow))
	keep(duration("MARKET_LIQUIDATION_GRACE", &cfg.Market.LiquidationGrace))
	keep(intVar("MARKET_MAX_MATCHES", &cfg.Market.MaxMatches))
	keep(intVar("MARKET_HISTORY_SIZE", &cfg.Market.HistorySize))

	str("GENESIS_ADMIN", &cfg.Genesis.Admin)
	str("GENESIS_ASSET_SYMBOL", &cfg.Genesis.AssetSymbol)
	return firstErr
}

func str(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func boolVar(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true"
	}
}

func intVar(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func int64Var(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func amountVar(key string, dst *amount.Int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	a, err := amount.FromDecimal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = a
	return nil
}

func millis(key string, dst *time.Duration) error {
	if os.Getenv(key) == "" {
		return nil
	}
	var ms int64
	if err := int64Var(key, &ms); err != nil {
		return err
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}

func duration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// Validate checks what the app cannot: address syntax and node limits.
// Market parameters are checked by market.Params.Validate.
func (c Config) Validate() error {
	if c.Genesis.Admin != "" && !common.IsHexAddress(c.Genesis.Admin) {
		return fmt.Errorf("genesis admin %q is not an address", c.Genesis.Admin)
	}
	for _, a := range c.Genesis.Allocations {
		if !common.IsHexAddress(a.Address) {
			return fmt.Errorf("genesis allocation %q is not an address", a.Address)
		}
	}
	if c.Node.MaxBlockBytes <= 0 {
		return fmt.Errorf("max block bytes must be positive, got %d", c.Node.MaxBlockBytes)
	}
	return c.MarketParams().Validate()
}

func (c Config) MarketParams() market.Params {
	return market.Params{
		OpeningFee:       c.Market.OpeningFee,
		ExerciseWindow:   c.Market.ExerciseWindow,
		LiquidationGrace: c.Market.LiquidationGrace,
		MaxMatches:       c.Market.MaxMatches,
		HistorySize:      c.Market.HistorySize,
		ExpiryBase:       c.Market.ExpiryBase,
		ExpiryStep:       c.Market.ExpiryStep,
	}
}

// AppConfig builds the application config. admin replaces Genesis.Admin
// when the file leaves it empty.
func (c Config) AppConfig(admin common.Address) options.Config {
	out := options.DefaultConfig()
	out.Market = c.MarketParams()
	out.MempoolSize = c.Node.MempoolSize
	out.Faucet = c.Node.Faucet
	out.Genesis.AssetSymbol = c.Genesis.AssetSymbol
	out.Genesis.AssetDecimals = c.Genesis.AssetDecimals
	out.Genesis.Time = c.Genesis.Time
	out.Genesis.Admin = admin
	if c.Genesis.Admin != "" {
		out.Genesis.Admin = common.HexToAddress(c.Genesis.Admin)
	}
	for _, a := range c.Genesis.Allocations {
		out.Genesis.Allocations = append(out.Genesis.Allocations, options.Allocation{
			Address: common.HexToAddress(a.Address),
			Native:  a.Native,
			Asset:   a.Asset,
		})
	}
	return out
}
