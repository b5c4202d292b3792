package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/consensus"
)

// Key schema for Pebble storage
//
// Chain keys:
//   b:<32-byte hash>   → Block (gob)
//   h:<8-byte height>  → block hash
//   cm                 → committed hash
//
// Result keys:
//   br:<8-byte height>                       → BlockSummary (JSON)
//   tx:<32-byte hash>                        → TxResult (JSON)
//   log:<address>:<height>:<tx>:<log index>  → LogEntry (JSON)
const (
	prefixBlock       = "b:"
	prefixHeight      = "h:"
	prefixBlockResult = "br:"
	prefixTx          = "tx:"
	prefixLog         = "log:"
)

func kBlock(h consensus.Hash) []byte { return append([]byte(prefixBlock), h[:]...) }

func kHeight(h consensus.Height) []byte {
	return append([]byte(prefixHeight), heightKey(uint64(h))...)
}

func kCommitted() []byte { return []byte("cm") }

func kBlockResult(height uint64) []byte {
	return append([]byte(prefixBlockResult), heightKey(height)...)
}

func kTx(h common.Hash) []byte { return append([]byte(prefixTx), h[:]...) }

// logKey sorts an emitter's logs by chain position.
// Format: "log:{address}:{height}:{tx index}:{log index}", zero-padded
func logKey(addr common.Address, height uint64, tx, index int) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%06d:%04d", prefixLog, addr.Hex(), height, tx, index))
}

// logPrefix returns the prefix for all logs emitted by addr
// Format: "log:{address}:"
func logPrefix(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixLog, addr.Hex()))
}

func heightKey(v uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], v)
	return k[:]
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
