package options

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperoptions/pkg/consensus"
)

// TxStatus is the outcome of one transaction in a block.
type TxStatus string

const (
	// TxSuccess: executed and committed.
	TxSuccess TxStatus = "success"
	// TxFailed: executed by the ledger and reverted.
	TxFailed TxStatus = "failed"
	// TxRejected: never reached the ledger (parse, signature or nonce).
	TxRejected TxStatus = "rejected"
)

// TxResult is stored per transaction and served by the API.
type TxResult struct {
	Hash      common.Hash        `json:"hash"`
	Height    uint64             `json:"height"`
	Type      transaction.TxType `json:"type,omitempty"`
	Sender    common.Address     `json:"sender"`
	Nonce     uint64             `json:"nonce"`
	Status    TxStatus           `json:"status"`
	Error     string             `json:"error,omitempty"`
	ErrorKind string             `json:"errorKind,omitempty"`
	Receipt   *ledger.Receipt    `json:"receipt,omitempty"`
}

func (r *TxResult) reject(err error) TxResult {
	r.Status = TxRejected
	r.Error = err.Error()
	r.ErrorKind = errs.KindOf(err).String()
	return *r
}

// Fills counts the Hit events of the transaction.
func (r *TxResult) Fills() int {
	if r.Receipt == nil {
		return 0
	}
	n := 0
	for _, lg := range r.Receipt.Logs {
		if _, ok := lg.Event.(orderbook.Hit); ok {
			n++
		}
	}
	return n
}

// BlockResult is everything FinalizeBlock produced for one height.
type BlockResult struct {
	Height  uint64         `json:"height"`
	Time    time.Time      `json:"time"`
	AppHash consensus.Hash `json:"appHash"`
	Results []TxResult     `json:"results"`
}

// ResultSink persists block results. Errors are logged, not fatal: the
// results can be rebuilt by replaying blocks.
type ResultSink interface {
	SaveBlockResult(b *BlockResult) error
}

// TxHash identifies a raw transaction.
func TxHash(raw []byte) common.Hash { return ethcrypto.Keccak256Hash(raw) }
