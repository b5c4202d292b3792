package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperoptions/pkg/util"
)

var ErrAppHashMismatch = errors.New("app hash mismatch on replay")

type Engine struct {
	App   AppHook
	PM    *Pacemaker
	Clock util.Clock
	ID    NodeID

	Logger         *zap.SugaredLogger
	VerboseLogging bool // if false, only log non-empty commits and errors

	// Optional: pluggable storage/WAL
	Store BlockStore
	WAL   WAL

	// OnBlockCommit runs after every committed block.
	OnBlockCommit func(b Block)

	mu       sync.RWMutex
	head     Block
	headHash Hash
}

// NewEngine starts from genesis, which must be the same on every restart
// for Replay to link up with stored blocks.
func NewEngine(id NodeID, app AppHook, pm *Pacemaker, clock util.Clock, genesis Block) *Engine {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Engine{
		App:      app,
		PM:       pm,
		Clock:    clock,
		ID:       id,
		Logger:   zap.NewNop().Sugar(),
		head:     genesis,
		headHash: HashOfBlock(genesis),
	}
}

// Head returns the last committed block and its hash.
func (e *Engine) Head() (Block, Hash) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.head, e.headHash
}

// Replay re-executes every stored block from height 1 so the application
// rebuilds its state. A block whose recomputed AppHash differs from the
// stored one stops the replay.
func (e *Engine) Replay(ctx context.Context) (int, error) {
	if e.Store == nil {
		return 0, nil
	}
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		next := e.head.Height + 1
		b, ok, err := e.Store.BlockAt(next)
		if err != nil {
			return n, fmt.Errorf("load block %d: %w", next, err)
		}
		if !ok {
			return n, nil
		}
		if b.Parent != e.headHash {
			return n, fmt.Errorf("block %d does not extend head 0x%s", next, e.headHash)
		}
		appHash := e.App.OnCommit(b)
		if appHash != b.AppHash {
			return n, fmt.Errorf("%w: height %d stored 0x%s computed 0x%s", ErrAppHashMismatch, next, b.AppHash, appHash)
		}
		e.setHead(b)
		n++
	}
}

// Run produces blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		head, _ := e.Head()
		if err := e.PM.WaitForNextBlock(ctx, head.Time); err != nil {
			return err
		}
		if _, err := e.Step(); err != nil {
			return err
		}
	}
}

// RunN: For testing - produce exactly rounds blocks without pacing.
func (e *Engine) RunN(ctx context.Context, rounds int) error {
	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step seals the application's next payload into a block, executes it and
// commits it.
func (e *Engine) Step() (Block, error) {
	parent, parentHash := e.Head()
	t := e.Clock.Now()
	if !t.After(parent.Time) {
		t = parent.Time
	}

	b := Block{
		Height:   parent.Height + 1,
		Parent:   parentHash,
		Payload:  e.App.PreparePayload(parent, parent.Height+1),
		Proposer: e.ID,
		Time:     t,
	}
	if e.VerboseLogging {
		e.Logger.Debugw("propose", "height", b.Height, "bytes", len(b.Payload))
	}

	b.AppHash = e.App.OnCommit(b)
	h := HashOfBlock(b)

	if e.Store != nil {
		if err := e.Store.SaveBlock(b); err != nil {
			return Block{}, fmt.Errorf("save block %d: %w", b.Height, err)
		}
		if err := e.Store.SetCommitted(h); err != nil {
			return Block{}, fmt.Errorf("set committed %d: %w", b.Height, err)
		}
	}
	e.setHead(b)

	if e.WAL != nil {
		e.WAL.Append(fmt.Sprintf("commit height=%d hash=%s apphash=%s", b.Height, h.Hex(), b.AppHash.Hex()))
	}
	if len(b.Payload) > 0 || e.VerboseLogging {
		e.Logger.Infow("commit", "height", b.Height, "hash", h.Hex(), "apphash", b.AppHash.Hex())
	}
	if e.OnBlockCommit != nil {
		e.OnBlockCommit(b)
	}
	return b, nil
}

func (e *Engine) setHead(b Block) {
	h := HashOfBlock(b)
	e.mu.Lock()
	e.head, e.headHash = b, h
	e.mu.Unlock()
}
