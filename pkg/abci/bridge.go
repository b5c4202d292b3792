package abci

import (
	"time"

	"github.com/uhyunpark/hyperoptions/pkg/consensus"
)

type RequestPrepareProposal struct{ Height, MaxTxBytes int64 }
type ResponsePrepareProposal struct{ Txs [][]byte }
type RequestProcessProposal struct {
	Height int64
	Txs    [][]byte
}
type ResponseProcessProposal struct{ Accept bool }
type RequestFinalizeBlock struct {
	Height int64
	Time   time.Time
	Txs    [][]byte
}
type ResponseFinalizeBlock struct {
	Events  []string
	AppHash consensus.Hash // Hash of application state after execution
}

type Application interface {
	PrepareProposal(RequestPrepareProposal) ResponsePrepareProposal
	ProcessProposal(RequestProcessProposal) ResponseProcessProposal
	FinalizeBlock(RequestFinalizeBlock) ResponseFinalizeBlock
}

// DefaultMaxTxBytes bounds one block payload when the bridge is not configured.
const DefaultMaxTxBytes = 1 << 24

// Bridge adapts an Application to the consensus engine.
type Bridge struct {
	App        Application
	MaxTxBytes int64
}

func (b *Bridge) PreparePayload(_ consensus.Block, next consensus.Height) []byte {
	limit := b.MaxTxBytes
	if limit <= 0 {
		limit = DefaultMaxTxBytes
	}
	resp := b.App.PrepareProposal(RequestPrepareProposal{Height: int64(next), MaxTxBytes: limit})
	// payload: txs joined with a 0x00 delimiter; JSON envelopes never contain a raw NUL

	var payload []byte

	for _, tx := range resp.Txs {
		payload = append(payload, tx...)
		payload = append(payload, 0x00)
	}
	return payload
}

func (b *Bridge) OnCommit(committed consensus.Block) consensus.Hash {
	txs := splitPayload(committed.Payload)
	if !b.App.ProcessProposal(RequestProcessProposal{Height: int64(committed.Height), Txs: txs}).Accept {
		txs = nil
	}
	resp := b.App.FinalizeBlock(RequestFinalizeBlock{
		Height: int64(committed.Height),
		Time:   committed.Time,
		Txs:    txs,
	})
	return resp.AppHash
}

func splitPayload(p []byte) [][]byte {
	var out [][]byte
	cur := make([]byte, 0, len(p))
	for _, b := range p {
		if b == 0x00 {
			if len(cur) > 0 {
				out = append(out, append([]byte(nil), cur...))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, b)
	}
	if len(cur) > 0 {
		out = append(out, append([]byte(nil), cur...))
	}
	return out
}

var _ consensus.AppHook = (*Bridge)(nil)
