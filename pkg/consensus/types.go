// Package consensus sequences blocks for a single-operator node. The engine
// asks the application for a payload, seals it into a block linked to its
// parent, executes it and commits the resulting application hash.
package consensus

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

type NodeID string
type Height uint64

type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:]) }

// Hex renders the hash 0x-prefixed, Ethereum style.
func (h Hash) Hex() string { return "0x" + h.String() }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

func (h *Hash) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(string(b), "0x"))
	if err != nil {
		return fmt.Errorf("invalid hash: %w", err)
	}
	if len(raw) != len(h) {
		return fmt.Errorf("invalid hash length %d", len(raw))
	}
	copy(h[:], raw)
	return nil
}

type Block struct {
	Height   Height
	Parent   Hash
	AppHash  Hash // state after executing this block
	Payload  []byte
	Proposer NodeID
	Time     time.Time
}

// GenesisBlock is the implicit parent of height 1.
func GenesisBlock(t time.Time) Block {
	return Block{Height: 0, Time: t}
}

// HashOfBlock commits to the block header and payload. AppHash is left out:
// it is only known after execution and is checked separately on replay.
func HashOfBlock(b Block) Hash {
	h := sha3.NewLegacyKeccak256()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(b.Height))
	h.Write(buf[:])
	h.Write(b.Parent[:])
	h.Write(b.Payload)
	h.Write([]byte(b.Proposer))
	binary.BigEndian.PutUint64(buf[:], uint64(b.Time.UnixNano()))
	h.Write(buf[:])

	var out Hash
	h.Sum(out[:0])
	return out
}

// ---- Storage/WAL interfaces (impl in pkg/storage) ----

type BlockStore interface {
	SaveBlock(b Block) error
	GetBlock(h Hash) (Block, bool, error)
	BlockAt(height Height) (Block, bool, error)
	SetCommitted(h Hash) error
	GetCommitted() (Hash, bool, error)
}

type WAL interface {
	Append(line string)
}

type AppHook interface {
	PreparePayload(parent Block, next Height) []byte
	OnCommit(committed Block) Hash // returns AppHash after executing block
}
