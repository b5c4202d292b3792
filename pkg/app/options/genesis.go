package options

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/market"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/option"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/token"
	"github.com/uhyunpark/hyperoptions/pkg/crypto"
)

// Allocation seeds one account at genesis.
type Allocation struct {
	Address common.Address
	Native  amount.Int
	Asset   amount.Int
}

// Genesis fixes everything block 1 builds on. Two nodes with the same
// Genesis and the same blocks reach the same app hash.
type Genesis struct {
	// Admin mints the settlement asset and administers both markets.
	Admin         common.Address
	AssetSymbol   string
	AssetDecimals int32
	Time          time.Time
	Allocations   []Allocation
}

type Config struct {
	Genesis     Genesis
	Market      market.Params
	MempoolSize int
	// Faucet enables the devnet faucet transaction.
	Faucet bool
	Domain crypto.EIP712Domain
}

func DefaultConfig() Config {
	return Config{
		Genesis: Genesis{
			AssetSymbol:   "USDC",
			AssetDecimals: 6,
			Time:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Market:      market.DefaultParams(),
		MempoolSize: 100_000,
		Domain:      crypto.DefaultDomain(),
	}
}

// components are created by the admin in one genesis transaction, so their
// addresses follow from the admin address alone: token, call market, put market.
type components struct {
	token *token.Token
	calls *market.Market
	puts  *market.Market
}

func runGenesis(l *ledger.Ledger, g Genesis, params market.Params) (*components, error) {
	if g.Admin == (common.Address{}) {
		return nil, fmt.Errorf("genesis: admin address required")
	}
	var c components
	_, err := l.Exec(g.Admin, g.Admin, amount.Zero, func(tx *ledger.Tx) error {
		c.token = token.New(tx.CreateAddress(), g.Admin, g.AssetSymbol, g.AssetDecimals)

		var err error
		if c.calls, err = market.New(tx.CreateAddress(), g.Admin, option.Call, c.token, params, nil); err != nil {
			return err
		}
		if c.puts, err = market.New(tx.CreateAddress(), g.Admin, option.Put, c.token, params, nil); err != nil {
			return err
		}

		for _, a := range g.Allocations {
			if err := tx.CreditNative(a.Address, a.Native); err != nil {
				return fmt.Errorf("allocate %s: %w", a.Address.Hex(), err)
			}
			if err := c.token.Mint(tx, a.Address, a.Asset); err != nil {
				return fmt.Errorf("allocate %s: %w", a.Address.Hex(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	return &c, nil
}
