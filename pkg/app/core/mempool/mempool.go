package mempool

import (
	"encoding/json"
	"sync"
)

// Class is the bucket a transaction is proposed from.
type Class int

const (
	ClassNonOrder Class = iota // book opening, exercise, settlement, transfers, admin
	ClassCancel                // cancel, expire_order, sweep: release escrow before matching
	ClassOrder                 // buy, sell, sell_secondary
)

// ClassifyRaw reads the "type" field of a JSON envelope. Anything that does
// not parse is treated as an order; the app rejects it later.
func ClassifyRaw(b []byte) Class {
	if len(b) == 0 || b[0] != '{' {
		return ClassOrder
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return ClassOrder
	}
	switch envelope.Type {
	case "buy", "sell", "sell_secondary":
		return ClassOrder
	case "cancel", "expire_order", "sweep":
		return ClassCancel
	case "":
		return ClassOrder
	default:
		return ClassNonOrder
	}
}

// Mempool keeps three FIFO queues and proposes them in the order
// non-order, cancel, order.
type Mempool struct {
	mu       sync.Mutex
	nonOrder [][]byte
	cancel   [][]byte
	orders   [][]byte
	maxTxs   int
}

// NewMempool creates a pool holding at most maxTxs pending transactions;
// zero means unbounded.
func NewMempool(maxTxs int) *Mempool {
	return &Mempool{maxTxs: maxTxs}
}

// PushRaw classifies and enqueues a copy of b. It reports false when the
// pool is full.
func (m *Mempool) PushRaw(b []byte) bool {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxTxs > 0 && m.lenLocked() >= m.maxTxs {
		return false
	}
	switch ClassifyRaw(b) {
	case ClassNonOrder:
		m.nonOrder = append(m.nonOrder, cp)
	case ClassCancel:
		m.cancel = append(m.cancel, cp)
	default:
		m.orders = append(m.orders, cp)
	}
	return true
}

// SelectForProposal removes and returns up to maxBytes worth of
// transactions. A bucket that does not fit stops selection, so later
// buckets never overtake it.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64
	full := false

	pull := func(q *[][]byte) {
		for !full && len(*q) > 0 {
			tx := (*q)[0]
			n := int64(len(tx))
			if maxBytes > 0 && used+n > maxBytes {
				full = true
				return
			}
			out = append(out, tx)
			used += n
			(*q)[0] = nil
			*q = (*q)[1:]
		}
	}

	pull(&m.nonOrder)
	pull(&m.cancel)
	pull(&m.orders)

	return out
}

// Len returns total pending txs.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lenLocked()
}

func (m *Mempool) lenLocked() int {
	return len(m.nonOrder) + len(m.cancel) + len(m.orders)
}
