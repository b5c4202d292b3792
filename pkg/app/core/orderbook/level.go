package orderbook

import (
	"github.com/google/btree"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
)

// level holds the FIFO queue of order ids resting at one price.
// Queue updates always install a new slice header so undo can restore the old one.
type level struct {
	price amount.Int
	queue []OrderID
}

// ladder is one side of the book: levels sorted best price first.
type ladder struct {
	tree *btree.BTreeG[*level]
}

func newLadder(side Side) ladder {
	less := func(a, b *level) bool { return a.price.Lt(b.price) }
	if side == Buy {
		less = func(a, b *level) bool { return a.price.Gt(b.price) }
	}
	return ladder{tree: btree.NewG[*level](16, less)}
}

func (ld ladder) len() int { return ld.tree.Len() }

func (ld ladder) best() (*level, bool) { return ld.tree.Min() }

func (ld ladder) get(price amount.Int) (*level, bool) {
	return ld.tree.Get(&level{price: price})
}

// at returns the i-th level in priority order.
func (ld ladder) at(i int) (*level, bool) {
	if i < 0 || i >= ld.tree.Len() {
		return nil, false
	}
	var found *level
	n := 0
	ld.tree.Ascend(func(l *level) bool {
		if n == i {
			found = l
			return false
		}
		n++
		return true
	})
	return found, found != nil
}

// push appends id to the level at price, creating the level if needed.
func (ld ladder) push(tx *ledger.Tx, price amount.Int, id OrderID) {
	lvl, ok := ld.get(price)
	if !ok {
		lvl = &level{price: price}
		ld.tree.ReplaceOrInsert(lvl)
		tx.Journal(func() { ld.tree.Delete(lvl) })
	}
	prev := lvl.queue
	lvl.queue = append(prev, id)
	tx.Journal(func() { lvl.queue = prev })
}

// popFront drops the head of lvl and removes lvl once it is empty.
func (ld ladder) popFront(tx *ledger.Tx, lvl *level) {
	prev := lvl.queue
	lvl.queue = prev[1:]
	tx.Journal(func() { lvl.queue = prev })
	if len(lvl.queue) == 0 {
		ld.remove(tx, lvl)
	}
}

// drop removes the ids for which gone reports true, keeping FIFO order.
func (ld ladder) drop(tx *ledger.Tx, lvl *level, gone func(OrderID) bool) {
	prev := lvl.queue
	next := make([]OrderID, 0, len(prev))
	for _, id := range prev {
		if !gone(id) {
			next = append(next, id)
		}
	}
	if len(next) == len(prev) {
		return
	}
	lvl.queue = next
	tx.Journal(func() { lvl.queue = prev })
	if len(next) == 0 {
		ld.remove(tx, lvl)
	}
}

func (ld ladder) remove(tx *ledger.Tx, lvl *level) {
	ld.tree.Delete(lvl)
	tx.Journal(func() { ld.tree.ReplaceOrInsert(lvl) })
}

// depth aggregates the live quantity of each level in priority order.
// A level total that would overflow saturates at the last representable sum.
func (ld ladder) depth(live func(OrderID) (amount.Int, bool)) []PriceLevel {
	out := make([]PriceLevel, 0, ld.tree.Len())
	ld.tree.Ascend(func(l *level) bool {
		pl := PriceLevel{Price: l.price}
		for _, id := range l.queue {
			if qty, ok := live(id); ok {
				if sum, err := pl.Qty.Add(qty); err == nil {
					pl.Qty = sum
				}
				pl.Orders++
			}
		}
		if pl.Orders > 0 {
			out = append(out, pl)
		}
		return true
	})
	return out
}
