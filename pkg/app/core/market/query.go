package market

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/option"
)

// NbBooks is the number of books ever opened.
func (m *Market) NbBooks() int { return len(m.listings) }

// BookAddress returns the address of the i-th opened book.
func (m *Market) BookAddress(i int) (common.Address, error) {
	if i < 0 || i >= len(m.listings) {
		return common.Address{}, errs.Wrap(ErrUnknownBook, "index %d of %d", i, len(m.listings))
	}
	return m.listings[i].Book.Address(), nil
}

// BookFor finds the book opened for (expiry, strike).
func (m *Market) BookFor(expiry time.Time, strike amount.Int) (common.Address, bool) {
	offset, err := m.params.ExpiryOffset(expiry)
	if err != nil {
		return common.Address{}, false
	}
	l, ok := m.byKey[bookKey{offset: offset, strike: strike}]
	if !ok {
		return common.Address{}, false
	}
	return l.Book.Address(), true
}

func (m *Market) ExpiryOffset(expiry time.Time) (int64, error) {
	return m.params.ExpiryOffset(expiry)
}

func (m *Market) Listing(book common.Address) (*Listing, bool) {
	l, ok := m.byBook[book]
	return l, ok
}

// Listings returns every listing in opening order.
func (m *Market) Listings() []*Listing {
	return append([]*Listing(nil), m.listings...)
}

// OptionFor returns the contract issued on book.
func (m *Market) OptionFor(book common.Address) (*option.Contract, error) {
	l, err := m.listing(book)
	if err != nil {
		return nil, err
	}
	if l.Option == nil {
		return nil, errs.Wrap(ErrNoOption, "%s", book.Hex())
	}
	return l.Option, nil
}

// Option resolves a contract address issued by this market.
func (m *Market) Option(addr common.Address) (*option.Contract, bool) {
	l, ok := m.byOption[addr]
	if !ok {
		return nil, false
	}
	return l.Option, true
}
