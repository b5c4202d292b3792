package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
)

// setenvFromFile lets godotenv populate key and still restores it afterwards.
func setenvFromFile(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Market.OpeningFee != amount.Ether("0.001") || cfg.Market.ExpiryStep != 24*time.Hour {
		t.Errorf("market defaults %+v", cfg.Market)
	}
	if cfg.Node.Faucet || cfg.Node.TxGen {
		t.Error("devnet helpers enabled by default")
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "node.yaml", `
node:
  api_addr: ":9090"
  min_block_time: 50ms
market:
  opening_fee: 100
  exercise_window: 12h
genesis:
  admin: "0x00000000000000000000000000000000000000aa"
  time: 2025-03-01T00:00:00Z
  allocations:
    - address: "0x00000000000000000000000000000000000000bb"
      native: 10
      asset: 20
`)
	cfg, err := LoadFile(Default(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Node.APIAddr != ":9090" || cfg.Node.MinBlockTime != 50*time.Millisecond {
		t.Errorf("node %+v", cfg.Node)
	}
	if cfg.Node.DataDir != "data" {
		t.Errorf("data dir lost default: %q", cfg.Node.DataDir)
	}
	if cfg.Market.OpeningFee != amount.New(100) || cfg.Market.ExerciseWindow != 12*time.Hour {
		t.Errorf("market %+v", cfg.Market)
	}
	if cfg.Market.LiquidationGrace != Default().Market.LiquidationGrace {
		t.Errorf("liquidation grace lost default: %s", cfg.Market.LiquidationGrace)
	}
	if !cfg.Genesis.Time.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("genesis time %s", cfg.Genesis.Time)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	app := cfg.AppConfig(common.HexToAddress("0x01"))
	if app.Genesis.Admin != common.HexToAddress("0xaa") {
		t.Errorf("file admin not preferred: %s", app.Genesis.Admin.Hex())
	}
	if len(app.Genesis.Allocations) != 1 || app.Genesis.Allocations[0].Asset != amount.New(20) {
		t.Errorf("allocations %+v", app.Genesis.Allocations)
	}
	if app.Market.OpeningFee != amount.New(100) {
		t.Errorf("app opening fee %s", app.Market.OpeningFee)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(Default(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromEnvLayering(t *testing.T) {
	yamlPath := writeFile(t, "node.yaml", "market:\n  opening_fee: 100\n  max_matches: 7\nnode:\n  api_addr: \":7000\"\n")
	envPath := writeFile(t, ".env", "MARKET_OPENING_FEE=200\nAPI_ADDR=:7100\nENABLE_FAUCET=true\n")
	setenvFromFile(t, "MARKET_OPENING_FEE", "API_ADDR", "ENABLE_FAUCET")
	t.Setenv("CONFIG_FILE", yamlPath)
	t.Setenv("NODE_MIN_BLOCK_TIME_MS", "25")
	t.Setenv("MARKET_EXERCISE_WINDOW", "2h")

	cfg, err := LoadFromEnv(envPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Market.MaxMatches != 7 {
		t.Errorf("yaml value lost: max matches %d", cfg.Market.MaxMatches)
	}
	if cfg.Market.OpeningFee != amount.New(200) || cfg.Node.APIAddr != ":7100" || !cfg.Node.Faucet {
		t.Errorf(".env should override yaml: %+v %+v", cfg.Node, cfg.Market)
	}
	if cfg.Node.MinBlockTime != 25*time.Millisecond || cfg.Market.ExerciseWindow != 2*time.Hour {
		t.Errorf("env overrides: %s %s", cfg.Node.MinBlockTime, cfg.Market.ExerciseWindow)
	}
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"non-numeric fee", "MARKET_OPENING_FEE", "lots"},
		{"bad duration", "MARKET_EXERCISE_WINDOW", "soon"},
		{"negative fee", "MARKET_OPENING_FEE", "-1"},
		{"zero window", "MARKET_EXERCISE_WINDOW", "0s"},
		{"bad admin", "GENESIS_ADMIN", "alice"},
		{"zero block bytes", "MAX_BLOCK_BYTES", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv(filepath.Join(t.TempDir(), "none.env")); err == nil {
				t.Fatalf("%s=%s accepted", tt.key, tt.value)
			}
		})
	}
}

func TestWeiScaleAmounts(t *testing.T) {
	path := writeFile(t, "node.yaml", `
market:
  opening_fee: "1000000000000000"
genesis:
  allocations:
    - address: "0x00000000000000000000000000000000000000bb"
      native: "250000000000000000000"
      asset: 100000000000000000000000
`)
	cfg, err := LoadFile(Default(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Market.OpeningFee != amount.Ether("0.001") {
		t.Errorf("opening fee %s", cfg.Market.OpeningFee)
	}
	a := cfg.Genesis.Allocations[0]
	if a.Native != amount.Ether("250") || a.Asset != amount.Ether("100000") {
		t.Errorf("allocation %s native %s asset %s", a.Address, a.Native, a.Asset)
	}

	t.Setenv("MARKET_OPENING_FEE", "20000000000000000000")
	cfg, err = LoadFromEnv(filepath.Join(t.TempDir(), "none.env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Market.OpeningFee != amount.Ether("20") {
		t.Errorf("env opening fee %s", cfg.Market.OpeningFee)
	}
}

func TestLoadFileRejectsNegativeAmounts(t *testing.T) {
	path := writeFile(t, "node.yaml", "market:\n  opening_fee: -5\n")
	if _, err := LoadFile(Default(), path); err == nil {
		t.Fatal("negative opening fee accepted")
	}
}
