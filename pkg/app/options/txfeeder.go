package options

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/util"
)

// TxFeederConfig controls the devnet order flow.
type TxFeederConfig struct {
	Interval    time.Duration // How often to generate batches
	BatchSize   int           // Number of txs to generate per batch
	NumAccounts int           // Number of simulated traders
	Native      amount.Int    // Faucet native base units per trader
	Asset       amount.Int    // Faucet settlement base units per trader
	Seed        int64
}

// DefaultFeederConfig returns reasonable defaults for a local devnet.
func DefaultFeederConfig() TxFeederConfig {
	return TxFeederConfig{
		Interval:    200 * time.Millisecond,
		BatchSize:   10,
		NumAccounts: 20,
		Native:      amount.New(1_000_000),
		Asset:       amount.New(1_000_000_000),
		Seed:        1,
	}
}

// StartTxFeeder funds simulated traders through the faucet, then keeps
// submitting random orders on every open book until ctx is done.
func StartTxFeeder(ctx context.Context, app *App, cfg TxFeederConfig, logger *zap.Logger) (context.CancelFunc, error) {
	logger = util.OrNop(logger)
	if !app.FaucetEnabled() {
		return nil, errors.New("tx feeder needs the faucet")
	}
	gen, err := NewSignedTxGenerator(cfg.NumAccounts, cfg.Seed, app.Domain())
	if err != nil {
		return nil, err
	}
	var markets []common.Address
	for _, m := range app.Registry().List() {
		markets = append(markets, m.Address())
	}
	boot, err := gen.Bootstrap(app.Token().Address(), markets, cfg.Native, cfg.Asset)
	if err != nil {
		return nil, err
	}
	for _, raw := range boot {
		if _, err := app.CheckTx(raw); err != nil {
			return nil, err
		}
	}

	feedCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		startTime := time.Now()
		lastStats := startTime
		total, dropped := 0, 0
		logger.Info("txfeeder_started",
			zap.Int("accounts", cfg.NumAccounts),
			zap.Int("batch", cfg.BatchSize),
			zap.Duration("interval", cfg.Interval))

		for {
			select {
			case <-feedCtx.Done():
				logger.Info("txfeeder_stopped", zap.Int("total", total), zap.Duration("elapsed", time.Since(startTime)))
				return
			case <-ticker.C:
				for _, raw := range gen.GenerateBatch(cfg.BatchSize, app.OpenBooks()) {
					if _, err := app.CheckTx(raw); err != nil {
						dropped++
						continue
					}
					total++
				}
				if time.Since(lastStats) >= 10*time.Second {
					lastStats = time.Now()
					elapsed := time.Since(startTime).Seconds()
					logger.Info("txfeeder_stats",
						zap.Int("total", total),
						zap.Int("dropped", dropped),
						zap.Float64("rate", float64(total)/elapsed))
				}
			}
		}
	}()
	return cancel, nil
}

// OpenBooks lists every book that has not expired yet.
func (a *App) OpenBooks() []BookTarget {
	var out []BookTarget
	a.View(func() {
		now := a.ledger.Now()
		for _, m := range a.registry.List() {
			for _, l := range m.Listings() {
				if !now.Before(l.Expiry) {
					continue
				}
				cfg := l.Book.Config()
				out = append(out, BookTarget{
					Market: m.Address(),
					Kind:   m.Kind(),
					Book:   l.Book.Address(),
					MinQty: cfg.MinimumQuantity,
					Tick:   cfg.TickSize,
				})
			}
		}
	})
	return out
}
