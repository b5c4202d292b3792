package options

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/market"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/option"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/transaction"
)

// call is the body of one ledger transaction.
type call func(tx *ledger.Tx) error

// applyTx authenticates raw, consumes its nonce and executes it. A
// transaction that fails after the nonce check still uses up its nonce.
func (a *App) applyTx(raw []byte, height uint64) TxResult {
	res := TxResult{Hash: TxHash(raw), Height: height}

	tx, err := transaction.ParseTransaction(raw)
	if err != nil {
		return res.reject(errs.Wrap(ErrMalformed, "%v", err))
	}
	res.Type, res.Sender, res.Nonce = tx.Type, tx.SenderAddress(), tx.Nonce

	sender, err := a.verifier.Verify(tx)
	if err != nil {
		return res.reject(errs.Wrap(ErrBadSignature, "%v", err))
	}
	if !a.useNonce(sender, tx.Nonce) {
		return res.reject(errs.Wrap(ErrNonceUsed, "%s nonce %d", sender.Hex(), tx.Nonce))
	}
	value, err := tx.NativeValue()
	if err != nil {
		return res.reject(errs.Wrap(ErrMalformed, "%v", err))
	}
	fn, err := a.route(tx)
	if err != nil {
		return res.reject(err)
	}

	receipt, err := a.ledger.Exec(sender, tx.TargetAddress(), value, fn)
	res.Receipt = receipt
	if err != nil {
		res.Status = TxFailed
		res.Error = err.Error()
		res.ErrorKind = errs.KindOf(err).String()
		return res
	}
	res.Status = TxSuccess
	return res
}

// route resolves the target component and decodes the payload. Nothing here
// touches state; the returned call runs inside the ledger transaction.
func (a *App) route(tx *transaction.SignedTransaction) (call, error) {
	target := tx.TargetAddress()

	if m, err := a.registry.Get(target); err == nil {
		return a.routeMarket(tx, m)
	}
	if c, _, ok := a.registry.Option(target); ok {
		return a.routeOption(tx, c)
	}
	if target == a.token.Address() {
		return a.routeToken(tx)
	}
	return nil, errs.Wrap(ErrUnknownTarget, "%s", target.Hex())
}

func (a *App) routeMarket(tx *transaction.SignedTransaction, m *market.Market) (call, error) {
	switch tx.Type {
	case transaction.TxOpenBook:
		var p transaction.OpenBookPayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		expiry := time.Unix(p.Expiry, 0).UTC()
		lifetime := time.Duration(p.LifetimeSeconds) * time.Second
		return func(ltx *ledger.Tx) error {
			_, err := m.OpenBook(ltx, expiry, p.Strike, p.MinimumQuantity, p.TickSize, lifetime)
			return err
		}, nil

	case transaction.TxBuy, transaction.TxSell, transaction.TxSellSecondary:
		var p transaction.OrderPayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		book, err := address(p.Book, "book")
		if err != nil {
			return nil, err
		}
		switch tx.Type {
		case transaction.TxBuy:
			return func(ltx *ledger.Tx) error {
				_, err := m.Buy(ltx, book, p.Quantity, p.Price)
				return err
			}, nil
		case transaction.TxSell:
			return func(ltx *ledger.Tx) error {
				_, err := m.Sell(ltx, book, p.Quantity, p.Price)
				return err
			}, nil
		}
		opt, err := address(p.Option, "option")
		if err != nil {
			return nil, err
		}
		return func(ltx *ledger.Tx) error {
			_, err := m.SellSecondary(ltx, book, p.Quantity, p.Price, opt)
			return err
		}, nil

	case transaction.TxCancel, transaction.TxExpireOrder:
		var p transaction.OrderRefPayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		book, err := address(p.Book, "book")
		if err != nil {
			return nil, err
		}
		id := orderbook.OrderID(p.OrderID)
		if tx.Type == transaction.TxCancel {
			return func(ltx *ledger.Tx) error { return noValue(ltx, m.Cancel(ltx, book, id)) }, nil
		}
		return func(ltx *ledger.Tx) error { return noValue(ltx, m.ExpireOrder(ltx, book, id)) }, nil

	case transaction.TxSweep:
		var p transaction.SweepPayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		book, err := address(p.Book, "book")
		if err != nil {
			return nil, err
		}
		return func(ltx *ledger.Tx) error {
			_, err := m.Sweep(ltx, book, p.Max)
			return noValue(ltx, err)
		}, nil

	case transaction.TxCollectFees:
		var p transaction.RecipientPayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		to, err := address(p.To, "to")
		if err != nil {
			return nil, err
		}
		return func(ltx *ledger.Tx) error {
			_, err := m.CollectFees(ltx, to)
			return noValue(ltx, err)
		}, nil

	case transaction.TxLiquidate:
		var p transaction.OptionRefPayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		opt, err := address(p.Option, "option")
		if err != nil {
			return nil, err
		}
		return func(ltx *ledger.Tx) error { return noValue(ltx, m.Liquidate(ltx, opt)) }, nil
	}
	return nil, errs.Wrap(ErrUnsupported, "%s on %s market", tx.Type, m.Kind())
}

func (a *App) routeOption(tx *transaction.SignedTransaction, c *option.Contract) (call, error) {
	switch tx.Type {
	case transaction.TxExercise:
		var p transaction.ExercisePayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		return func(ltx *ledger.Tx) error { return c.Exercise(ltx, p.Quantity) }, nil

	case transaction.TxSettle:
		return func(ltx *ledger.Tx) error { return noValue(ltx, c.Settle(ltx)) }, nil

	case transaction.TxLiquidate:
		return func(ltx *ledger.Tx) error { return noValue(ltx, c.Liquidate(ltx)) }, nil

	case transaction.TxApprove:
		var p transaction.ApprovePayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		spender, err := address(p.Spender, "spender")
		if err != nil {
			return nil, err
		}
		return func(ltx *ledger.Tx) error { return noValue(ltx, c.Approve(ltx, spender, p.Amount)) }, nil

	case transaction.TxTransfer:
		var p transaction.TransferPayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		to, err := address(p.To, "to")
		if err != nil {
			return nil, err
		}
		return func(ltx *ledger.Tx) error { return noValue(ltx, c.Transfer(ltx, to, p.Amount)) }, nil
	}
	return nil, errs.Wrap(ErrUnsupported, "%s on option %s", tx.Type, c.Address().Hex())
}

func (a *App) routeToken(tx *transaction.SignedTransaction) (call, error) {
	switch tx.Type {
	case transaction.TxApprove:
		var p transaction.ApprovePayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		spender, err := address(p.Spender, "spender")
		if err != nil {
			return nil, err
		}
		return func(ltx *ledger.Tx) error { return noValue(ltx, a.token.Approve(ltx, spender, p.Amount)) }, nil

	case transaction.TxTransfer:
		var p transaction.TransferPayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		to, err := address(p.To, "to")
		if err != nil {
			return nil, err
		}
		return func(ltx *ledger.Tx) error { return noValue(ltx, a.token.Transfer(ltx, to, p.Amount)) }, nil

	case transaction.TxFaucet:
		if !a.faucet {
			return nil, ErrFaucetDisabled
		}
		var p transaction.FaucetPayload
		if err := decode(tx, &p); err != nil {
			return nil, err
		}
		to, err := address(p.To, "to")
		if err != nil {
			return nil, err
		}
		return func(ltx *ledger.Tx) error {
			if err := ltx.CreditNative(to, p.Native); err != nil {
				return err
			}
			return noValue(ltx, a.token.Mint(ltx.As(a.admin), to, p.Asset))
		}, nil
	}
	return nil, errs.Wrap(ErrUnsupported, "%s on token", tx.Type)
}

// noValue rejects value attached to an entry point that does not take any.
// The error of the entry point itself wins.
func noValue(tx *ledger.Tx, err error) error {
	if err != nil {
		return err
	}
	if !tx.Value.IsZero() {
		return errs.Wrap(ErrUnexpectedVal, "%s", tx.Value)
	}
	return nil
}

func decode(tx *transaction.SignedTransaction, out any) error {
	if err := tx.DecodePayload(out); err != nil {
		return errs.Wrap(ErrMalformed, "%v", err)
	}
	return nil
}

func address(s, field string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errs.Wrap(ErrMalformed, "%s: %q is not an address", field, s)
	}
	return common.HexToAddress(s), nil
}
