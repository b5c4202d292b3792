package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperoptions/params"
	"github.com/uhyunpark/hyperoptions/pkg/abci"
	"github.com/uhyunpark/hyperoptions/pkg/api"
	"github.com/uhyunpark/hyperoptions/pkg/app/options"
	"github.com/uhyunpark/hyperoptions/pkg/consensus"
	"github.com/uhyunpark/hyperoptions/pkg/crypto"
	"github.com/uhyunpark/hyperoptions/pkg/storage"
	"github.com/uhyunpark/hyperoptions/pkg/util"
)

func main() {
	// Load config from .env file, CONFIG_FILE and environment variables
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Setup logging (write to both console and file)
	newLogger := util.NewLogger
	if cfg.Node.LogFile != "" {
		newLogger = func() (*zap.Logger, error) { return util.NewLoggerWithFile(cfg.Node.LogFile) }
	}
	logger, err := newLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Storage ----
	var (
		blocks  consensus.BlockStore = storage.NewInMemoryBlockStore()
		results api.ResultStore
		wal     consensus.WAL = storage.NewNopWAL()
		pebble  *storage.PebbleStore
	)
	if cfg.Node.DataDir != "" {
		if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
			sugar.Fatalw("data_dir_failed", "err", err)
		}
		pebble, err = storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "chain"))
		if err != nil {
			sugar.Fatalw("pebble_open_failed", "err", err)
		}
		defer pebble.Close()
		blocks, results = pebble, pebble

		fw, err := storage.NewFileWAL(filepath.Join(cfg.Node.DataDir, "wal.log"))
		if err != nil {
			sugar.Fatalw("wal_open_failed", "err", err)
		}
		defer func() {
			if err := fw.Close(); err != nil {
				sugar.Errorw("wal_close_failed", "entries", fw.Entries(), "err", err)
			}
		}()
		wal = fw
	}

	// ---- App: options market ----
	admin, err := adminAddress(cfg)
	if err != nil {
		sugar.Fatalw("admin_key_failed", "err", err)
	}
	appCfg := cfg.AppConfig(admin)
	app, err := options.NewApp(appCfg, logger.Named("app"))
	if err != nil {
		sugar.Fatalw("app_init_failed", "err", err)
	}
	if pebble != nil {
		app.SetResultSink(pebble)
	}
	sugar.Infow("genesis",
		"admin", appCfg.Genesis.Admin.Hex(),
		"token", app.Token().Address().Hex(),
		"markets", len(app.Registry().List()),
		"faucet", appCfg.Faucet)

	bridge := &abci.Bridge{App: app, MaxTxBytes: cfg.Node.MaxBlockBytes}

	// ---- Consensus: single sequencer ----
	pm := consensus.NewPacemaker(cfg.Node.MinBlockTime, util.RealClock{})
	engine := consensus.NewEngine(consensus.NodeID(cfg.Node.ID), bridge, pm, util.RealClock{},
		consensus.GenesisBlock(appCfg.Genesis.Time))
	engine.Logger = sugar.Named("consensus")
	engine.Store = blocks
	engine.WAL = wal

	// Control logging verbosity via config (default: quiet)
	if cfg.Node.Verbose {
		engine.VerboseLogging = true
		sugar.Info("verbose logging enabled")
	}
	sugar.Infow("block_time_config", "min_block_time_ms", cfg.Node.MinBlockTime.Milliseconds())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	replayed, err := engine.Replay(ctx)
	if err != nil {
		sugar.Fatalw("replay_failed", "replayed", replayed, "err", err)
	}
	head, headHash := engine.Head()
	sugar.Infow("replay_done", "blocks", replayed, "height", head.Height, "hash", headHash.Hex())

	// ---- API Server ----
	apiCfg := api.Config{Blocks: blocks, Results: results, WAL: wal, CORSOrigins: cfg.Node.CORSOrigins}
	apiServer := api.NewServer(app, apiCfg, logger.Named("api"))
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		if err := apiServer.Start(ctx, cfg.Node.APIAddr); err != nil {
			sugar.Errorw("api_server_failed", "err", err)
			stop()
		}
	}()

	// Hook API server to consensus: broadcast every committed block
	engine.OnBlockCommit = apiServer.BroadcastBlock

	// ---- Transaction Feeder (optional) ----
	// Enable with: ENABLE_TXGEN=true ENABLE_FAUCET=true
	if cfg.Node.TxGen {
		cancelFeeder, err := options.StartTxFeeder(ctx, app, options.DefaultFeederConfig(), logger.Named("txfeeder"))
		if err != nil {
			sugar.Fatalw("txgen_failed", "err", err)
		}
		defer cancelFeeder()
	} else {
		sugar.Info("txgen_disabled")
	}

	// Start consensus engine
	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			sugar.Errorw("engine_failed", "err", err)
			stop()
		}
	}()

	// Progress logging loop: log every N blocks to reduce noise
	logInterval := consensus.Height(100)
	lastLogged := head.Height
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sugar.Info("node_stopping")
			return
		case <-ticker.C:
			b, _ := engine.Head()
			if b.Height-lastLogged >= logInterval || b.Height <= 5 {
				sugar.Infow("chain_progress",
					"height", b.Height,
					"mempool", app.MempoolSize(),
					"blocks_since_last_log", b.Height-lastLogged)
				lastLogged = b.Height
			}
		}
	}
}

// adminAddress returns the configured admin, or the address of a devnet key
// kept in the data dir so replays see the same genesis.
func adminAddress(cfg params.Config) (common.Address, error) {
	if cfg.Genesis.Admin != "" {
		return common.HexToAddress(cfg.Genesis.Admin), nil
	}
	if cfg.Node.DataDir == "" {
		s, err := crypto.GenerateKey()
		if err != nil {
			return common.Address{}, err
		}
		return s.Address(), nil
	}

	path := filepath.Join(cfg.Node.DataDir, "admin.key")
	if raw, err := os.ReadFile(path); err == nil {
		s, err := crypto.FromPrivateKeyHex(strings.TrimSpace(string(raw)))
		if err != nil {
			return common.Address{}, err
		}
		return s.Address(), nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return common.Address{}, err
	}

	s, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, err
	}
	if err := os.WriteFile(path, []byte(s.PrivateKeyHex()+"\n"), 0o600); err != nil {
		return common.Address{}, err
	}
	return s.Address(), nil
}
