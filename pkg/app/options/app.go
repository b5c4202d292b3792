// Package options is the node application: it owns the ledger with the
// settlement token and both option markets, admits signed transactions into
// the mempool and executes them block by block.
package options

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperoptions/pkg/abci"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/market"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/mempool"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/option"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/token"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperoptions/pkg/consensus"
	"github.com/uhyunpark/hyperoptions/pkg/crypto"
	"github.com/uhyunpark/hyperoptions/pkg/util"
)

type App struct {
	logger *zap.Logger

	// clock follows block time so execution is a function of the chain.
	clock    *util.ManualClock
	ledger   *ledger.Ledger
	token    *token.Token
	registry *market.Registry
	calls    *market.Market
	puts     *market.Market
	admin    common.Address
	faucet   bool

	mempool  *mempool.Mempool
	verifier *transaction.Verifier
	domain   crypto.EIP712Domain
	sink     ResultSink

	nonceMu sync.Mutex
	// used nonces per sender; any unused nonce is accepted since the
	// mempool reorders transactions by class
	nonces map[common.Address]map[uint64]struct{}

	headMu  sync.RWMutex
	height  uint64
	appHash consensus.Hash
}

func NewApp(cfg Config, logger *zap.Logger) (*App, error) {
	logger = util.OrNop(logger)
	clock := util.NewManualClock(cfg.Genesis.Time)
	l := ledger.New(clock, logger)

	c, err := runGenesis(l, cfg.Genesis, cfg.Market)
	if err != nil {
		return nil, err
	}
	registry := market.NewRegistry()
	for _, m := range []*market.Market{c.calls, c.puts} {
		if err := registry.Register(m); err != nil {
			return nil, err
		}
	}

	a := &App{
		logger:   logger,
		clock:    clock,
		ledger:   l,
		token:    c.token,
		registry: registry,
		calls:    c.calls,
		puts:     c.puts,
		admin:    cfg.Genesis.Admin,
		faucet:   cfg.Faucet,
		mempool:  mempool.NewMempool(cfg.MempoolSize),
		verifier: transaction.NewVerifier(cfg.Domain),
		domain:   cfg.Domain,
		nonces:   make(map[common.Address]map[uint64]struct{}),
	}
	a.appHash = a.computeStateHash(0, cfg.Genesis.Time)

	logger.Info("genesis",
		zap.String("admin", a.admin.Hex()),
		zap.String("token", a.token.Address().Hex()),
		zap.String("call_market", a.calls.Address().Hex()),
		zap.String("put_market", a.puts.Address().Hex()),
		zap.Int("allocations", len(cfg.Genesis.Allocations)),
		zap.Bool("faucet", a.faucet))
	return a, nil
}

// SetResultSink installs where block results are persisted.
func (a *App) SetResultSink(s ResultSink) { a.sink = s }

// CheckTx admits raw into the mempool after the checks that do not need
// execution: structure, signature and nonce freshness.
func (a *App) CheckTx(raw []byte) (common.Hash, error) {
	hash := TxHash(raw)
	tx, err := transaction.ParseTransaction(raw)
	if err != nil {
		return hash, errs.Wrap(ErrMalformed, "%v", err)
	}
	sender, err := a.verifier.Verify(tx)
	if err != nil {
		return hash, errs.Wrap(ErrBadSignature, "%v", err)
	}
	if a.nonceUsed(sender, tx.Nonce) {
		return hash, errs.Wrap(ErrNonceUsed, "%s nonce %d", sender.Hex(), tx.Nonce)
	}
	if !a.mempool.PushRaw(raw) {
		return hash, errs.Wrap(ErrMempoolFull, "%d pending", a.mempool.Len())
	}
	return hash, nil
}

// PushTx queues raw without checks; FinalizeBlock rejects what is invalid.
func (a *App) PushTx(b []byte) bool { return a.mempool.PushRaw(b) }

func (a *App) PrepareProposal(req abci.RequestPrepareProposal) abci.ResponsePrepareProposal {
	txs := a.mempool.SelectForProposal(req.MaxTxBytes)
	return abci.ResponsePrepareProposal{Txs: txs}
}

func (a *App) ProcessProposal(_ abci.RequestProcessProposal) abci.ResponseProcessProposal {
	return abci.ResponseProcessProposal{Accept: true}
}

func (a *App) FinalizeBlock(req abci.RequestFinalizeBlock) abci.ResponseFinalizeBlock {
	height := uint64(req.Height)
	a.clock.Set(req.Time)

	block := BlockResult{
		Height:  height,
		Time:    req.Time,
		Results: make([]TxResult, 0, len(req.Txs)),
	}
	fills, failed := 0, 0
	for _, raw := range req.Txs {
		r := a.applyTx(raw, height)
		fills += r.Fills()
		if r.Status != TxSuccess {
			failed++
			a.logger.Info("tx_rejected",
				zap.Uint64("height", height),
				zap.String("hash", r.Hash.Hex()),
				zap.String("type", string(r.Type)),
				zap.String("kind", r.ErrorKind),
				zap.String("err", r.Error))
		}
		block.Results = append(block.Results, r)
	}

	block.AppHash = a.computeStateHash(height, req.Time)
	if a.sink != nil {
		if err := a.sink.SaveBlockResult(&block); err != nil {
			a.logger.Error("results_persist_failed", zap.Uint64("height", height), zap.Error(err))
		}
	}

	a.headMu.Lock()
	a.height, a.appHash = height, block.AppHash
	a.headMu.Unlock()

	// Quiet logging: only log non-empty blocks
	if len(req.Txs) > 0 {
		a.logger.Info("block_finalized",
			zap.Uint64("height", height),
			zap.Int("txs", len(req.Txs)),
			zap.Int("failed", failed),
			zap.Int("fills", fills),
			zap.String("apphash", block.AppHash.Hex()))
	}

	return abci.ResponseFinalizeBlock{
		Events:  []string{"commit"},
		AppHash: block.AppHash,
	}
}

func (a *App) nonceUsed(sender common.Address, nonce uint64) bool {
	a.nonceMu.Lock()
	defer a.nonceMu.Unlock()
	_, used := a.nonces[sender][nonce]
	return used
}

// useNonce marks nonce used and reports whether it was fresh.
func (a *App) useNonce(sender common.Address, nonce uint64) bool {
	a.nonceMu.Lock()
	defer a.nonceMu.Unlock()
	set, ok := a.nonces[sender]
	if !ok {
		set = make(map[uint64]struct{})
		a.nonces[sender] = set
	}
	if _, used := set[nonce]; used {
		return false
	}
	set[nonce] = struct{}{}
	return true
}

// ---- read side ----

// View runs fn under the ledger read lock. Component reads go through it.
func (a *App) View(fn func()) { a.ledger.View(fn) }

// Subscribe forwards every committed ledger receipt to fn.
func (a *App) Subscribe(fn func(*ledger.Receipt)) { a.ledger.Subscribe(fn) }

// Head returns the last finalized height and app hash.
func (a *App) Head() (uint64, consensus.Hash) {
	a.headMu.RLock()
	defer a.headMu.RUnlock()
	return a.height, a.appHash
}

// Now is the time of the last finalized block.
func (a *App) Now() time.Time { return a.ledger.Now() }

func (a *App) Ledger() *ledger.Ledger          { return a.ledger }
func (a *App) Token() *token.Token             { return a.token }
func (a *App) Registry() *market.Registry      { return a.registry }
func (a *App) Admin() common.Address           { return a.admin }
func (a *App) FaucetEnabled() bool             { return a.faucet }
func (a *App) MempoolSize() int                { return a.mempool.Len() }
func (a *App) Verifier() *transaction.Verifier { return a.verifier }
func (a *App) Domain() crypto.EIP712Domain     { return a.domain }

// Market returns the call or put market.
func (a *App) Market(kind option.Kind) *market.Market {
	if kind == option.Put {
		return a.puts
	}
	return a.calls
}

// NextNonce is the lowest nonce sender has not used yet. Clients may use
// any unused nonce; this is a convenience for sequential signers.
func (a *App) NextNonce(sender common.Address) uint64 {
	a.nonceMu.Lock()
	defer a.nonceMu.Unlock()
	set := a.nonces[sender]
	var n uint64
	for {
		if _, used := set[n]; !used {
			return n
		}
		n++
	}
}

var _ abci.Application = (*App)(nil)
