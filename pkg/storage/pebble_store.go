package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/app/options"
	"github.com/uhyunpark/hyperoptions/pkg/consensus"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}
func (s *PebbleStore) Close() error { return s.db.Close() }

// get returns a copy of the value at key; pebble's slice dies with the closer.
func (s *PebbleStore) get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return bytes.Clone(val), true, nil
}

// ============================================================================
// Chain
// ============================================================================

// SaveBlock stores b under its hash and indexes it by height.
func (s *PebbleStore) SaveBlock(b consensus.Block) error {
	h := consensus.HashOfBlock(b)
	val, err := encodeGob(b)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(kBlock(h), val, nil); err != nil {
		return err
	}
	if err := batch.Set(kHeight(b.Height), h[:], nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleStore) GetBlock(h consensus.Hash) (consensus.Block, bool, error) {
	val, ok, err := s.get(kBlock(h))
	if err != nil || !ok {
		return consensus.Block{}, false, err
	}
	var out consensus.Block
	if err := decodeGob(val, &out); err != nil {
		return consensus.Block{}, false, fmt.Errorf("decode block %s: %w", h, err)
	}
	return out, true, nil
}

func (s *PebbleStore) BlockAt(height consensus.Height) (consensus.Block, bool, error) {
	val, ok, err := s.get(kHeight(height))
	if err != nil || !ok {
		return consensus.Block{}, false, err
	}
	var h consensus.Hash
	copy(h[:], val)
	return s.GetBlock(h)
}

func (s *PebbleStore) SetCommitted(h consensus.Hash) error {
	return s.db.Set(kCommitted(), h[:], pebble.Sync)
}

func (s *PebbleStore) GetCommitted() (consensus.Hash, bool, error) {
	val, ok, err := s.get(kCommitted())
	if err != nil || !ok {
		return consensus.Hash{}, false, err
	}
	var out consensus.Hash
	copy(out[:], val)
	return out, true, nil
}

var _ consensus.BlockStore = (*PebbleStore)(nil)

// ============================================================================
// Execution results
// ============================================================================

// BlockSummary is what is kept per height next to the block itself.
type BlockSummary struct {
	Height  uint64         `json:"height"`
	Time    time.Time      `json:"time"`
	AppHash consensus.Hash `json:"appHash"`
	Txs     []TxSummary    `json:"txs"`
}

type TxSummary struct {
	Hash   common.Hash      `json:"hash"`
	Type   string           `json:"type,omitempty"`
	Status options.TxStatus `json:"status"`
}

// LogEntry is one event indexed under the address that emitted it.
type LogEntry struct {
	Height uint64      `json:"height"`
	Tx     common.Hash `json:"tx"`
	Index  int         `json:"index"`
	Log    ledger.Log  `json:"log"`
}

// SaveBlockResult writes the block summary, every transaction result and the
// per-emitter log index in one batch.
func (s *PebbleStore) SaveBlockResult(b *options.BlockResult) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	summary := BlockSummary{Height: b.Height, Time: b.Time, AppHash: b.AppHash, Txs: make([]TxSummary, 0, len(b.Results))}
	for i := range b.Results {
		r := &b.Results[i]
		summary.Txs = append(summary.Txs, TxSummary{Hash: r.Hash, Type: string(r.Type), Status: r.Status})

		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal tx %s: %w", r.Hash.Hex(), err)
		}
		if err := batch.Set(kTx(r.Hash), data, nil); err != nil {
			return err
		}
		if r.Receipt == nil {
			continue
		}
		for j, lg := range r.Receipt.Logs {
			data, err := json.Marshal(LogEntry{Height: b.Height, Tx: r.Hash, Index: j, Log: lg})
			if err != nil {
				return fmt.Errorf("marshal log %s/%d: %w", r.Hash.Hex(), j, err)
			}
			if err := batch.Set(logKey(lg.Address, b.Height, i, j), data, nil); err != nil {
				return err
			}
		}
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal block %d: %w", b.Height, err)
	}
	if err := batch.Set(kBlockResult(b.Height), data, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.NoSync)
}

// GetTxResultJSON returns the stored result of a transaction. Receipts hold
// typed events, so results are served as stored rather than decoded.
func (s *PebbleStore) GetTxResultJSON(h common.Hash) (json.RawMessage, bool, error) {
	return s.get(kTx(h))
}

func (s *PebbleStore) GetBlockSummary(height uint64) (*BlockSummary, bool, error) {
	val, ok, err := s.get(kBlockResult(height))
	if err != nil || !ok {
		return nil, false, err
	}
	var out BlockSummary
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, false, fmt.Errorf("decode block summary %d: %w", height, err)
	}
	return &out, true, nil
}

// LogsByAddress returns up to limit logs emitted by addr, newest first.
func (s *PebbleStore) LogsByAddress(addr common.Address, limit int) ([]json.RawMessage, error) {
	prefix := logPrefix(addr)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []json.RawMessage
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		out = append(out, bytes.Clone(iter.Value()))
	}
	return out, iter.Error()
}

var _ options.ResultSink = (*PebbleStore)(nil)
