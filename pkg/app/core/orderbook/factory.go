package orderbook

import "github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"

// Factory creates isolated books. The caller of NewBook becomes the owner.
type Factory interface {
	NewBook(tx *ledger.Tx, cfg Config) (*Book, error)
}

// AddressFactory derives each book address from the owner and its creation nonce.
type AddressFactory struct{}

func (AddressFactory) NewBook(tx *ledger.Tx, cfg Config) (*Book, error) {
	cfg.Owner = tx.Sender
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(tx.CreateAddress(), cfg)
}

var _ Factory = AddressFactory{}
