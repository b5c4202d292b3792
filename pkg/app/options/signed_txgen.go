package options

import (
	"fmt"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/option"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperoptions/pkg/crypto"
)

// BookTarget is what the generator needs to know to trade on a book.
type BookTarget struct {
	Market common.Address
	Kind   option.Kind
	Book   common.Address
	MinQty amount.Int
	Tick   amount.Int
}

// SignedTxGenerator creates signed transactions for simulated traders.
type SignedTxGenerator struct {
	signers  []*crypto.Signer
	nonces   map[common.Address]uint64
	rng      *rand.Rand
	verifier *transaction.Verifier
}

func NewSignedTxGenerator(numAccounts int, seed int64, domain crypto.EIP712Domain) (*SignedTxGenerator, error) {
	g := &SignedTxGenerator{
		nonces:   make(map[common.Address]uint64),
		rng:      rand.New(rand.NewSource(seed)),
		verifier: transaction.NewVerifier(domain),
	}
	for i := 0; i < numAccounts; i++ {
		s, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate trader key: %w", err)
		}
		g.signers = append(g.signers, s)
	}
	return g, nil
}

// Signers returns all simulated traders.
func (g *SignedTxGenerator) Signers() []*crypto.Signer { return g.signers }

// Sign builds, signs and serializes one transaction for s with its next nonce.
func (g *SignedTxGenerator) Sign(s *crypto.Signer, typ transaction.TxType, target common.Address, value amount.Int, payload any) ([]byte, error) {
	nonce := g.nonces[s.Address()]
	tx, err := transaction.New(typ, s.Address(), target, value, nonce, payload)
	if err != nil {
		return nil, err
	}
	if err := g.verifier.Sign(s, tx); err != nil {
		return nil, err
	}
	raw, err := tx.Serialize()
	if err != nil {
		return nil, err
	}
	g.nonces[s.Address()] = nonce + 1
	return raw, nil
}

// Bootstrap funds every trader through the faucet and approves each
// market to pull its settlement asset.
func (g *SignedTxGenerator) Bootstrap(tokenAddr common.Address, markets []common.Address, native, asset amount.Int) ([][]byte, error) {
	var out [][]byte
	for _, s := range g.signers {
		raw, err := g.Sign(s, transaction.TxFaucet, tokenAddr, amount.Zero, transaction.FaucetPayload{
			To:     s.Address().Hex(),
			Native: native,
			Asset:  asset,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
		for _, m := range markets {
			raw, err := g.Sign(s, transaction.TxApprove, tokenAddr, amount.Zero, transaction.ApprovePayload{
				Spender: m.Hex(),
				Amount:  asset,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, raw)
		}
	}
	return out, nil
}

// GenerateOrder signs a random buy or primary sell on b for a random trader.
func (g *SignedTxGenerator) GenerateOrder(b BookTarget) ([]byte, error) {
	s := g.signers[g.rng.Intn(len(g.signers))]
	qty, err := b.MinQty.Mul(amount.New(uint64(g.rng.Intn(5) + 1)))
	if err != nil {
		return nil, err
	}
	price, err := b.Tick.Mul(amount.New(uint64(g.rng.Intn(20) + 1)))
	if err != nil {
		return nil, err
	}
	payload := transaction.OrderPayload{Book: b.Book.Hex(), Quantity: qty, Price: price}

	if g.rng.Intn(2) == 0 {
		return g.Sign(s, transaction.TxBuy, b.Market, amount.Zero, payload)
	}
	var value amount.Int
	if b.Kind == option.Call {
		value = qty
	}
	return g.Sign(s, transaction.TxSell, b.Market, value, payload)
}

// GenerateBatch signs n random orders spread over books.
func (g *SignedTxGenerator) GenerateBatch(n int, books []BookTarget) [][]byte {
	if len(books) == 0 || len(g.signers) == 0 {
		return nil
	}
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		raw, err := g.GenerateOrder(books[g.rng.Intn(len(books))])
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	return out
}
