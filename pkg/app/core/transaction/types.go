package transaction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/crypto"
)

// TxType names the entry point a transaction calls.
type TxType string

const (
	TxOpenBook      TxType = "open_book"      // market, value pays the fee
	TxBuy           TxType = "buy"            // market
	TxSell          TxType = "sell"           // market, Call value = quantity
	TxSellSecondary TxType = "sell_secondary" // market
	TxCancel        TxType = "cancel"         // market
	TxExpireOrder   TxType = "expire_order"   // market
	TxSweep         TxType = "sweep"          // market
	TxCollectFees   TxType = "collect_fees"   // market, admin
	TxExercise      TxType = "exercise"       // option, Put value = quantity
	TxSettle        TxType = "settle"         // option, writer
	TxLiquidate     TxType = "liquidate"      // option, writer or market admin
	TxApprove       TxType = "approve"        // token or option
	TxTransfer      TxType = "transfer"       // token or option
	TxFaucet        TxType = "faucet"         // devnet only
)

// SignedTransaction is the JSON envelope accepted by the node.
//
//	{
//	  "type": "buy",
//	  "sender": "0x742d...",
//	  "target": "0xCA11...",
//	  "value": "0",
//	  "nonce": 3,
//	  "payload": {"book": "0xB00C...", "quantity": "100", "price": "3"},
//	  "signature": "0x..."
//	}
type SignedTransaction struct {
	Type      TxType          `json:"type"`
	Sender    string          `json:"sender"`
	Target    string          `json:"target"`
	Value     string          `json:"value,omitempty"` // native base units, decimal
	Nonce     uint64          `json:"nonce"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Signature string          `json:"signature"`
}

// Amount fields are base-unit decimal strings; bare JSON integers are
// accepted too.
type OpenBookPayload struct {
	Expiry          int64      `json:"expiry"` // unix seconds
	Strike          amount.Int `json:"strike"`
	MinimumQuantity amount.Int `json:"minimum_quantity"`
	TickSize        amount.Int `json:"tick_size"`
	LifetimeSeconds int64      `json:"lifetime_seconds"`
}

// OrderPayload serves buy, sell and sell_secondary. Option is set only for
// secondary sells.
type OrderPayload struct {
	Book     string     `json:"book"`
	Quantity amount.Int `json:"quantity"`
	Price    amount.Int `json:"price"`
	Option   string     `json:"option,omitempty"`
}

// OrderRefPayload serves cancel and expire_order.
type OrderRefPayload struct {
	Book    string `json:"book"`
	OrderID uint64 `json:"order_id"`
}

type SweepPayload struct {
	Book string `json:"book"`
	Max  int    `json:"max"`
}

// RecipientPayload serves collect_fees.
type RecipientPayload struct {
	To string `json:"to"`
}

// OptionRefPayload lets the market admin liquidate one of the market's options.
type OptionRefPayload struct {
	Option string `json:"option"`
}

type ExercisePayload struct {
	Quantity amount.Int `json:"quantity"`
}

type ApprovePayload struct {
	Spender string     `json:"spender"`
	Amount  amount.Int `json:"amount"`
}

type TransferPayload struct {
	To     string     `json:"to"`
	Amount amount.Int `json:"amount"`
}

type FaucetPayload struct {
	To     string     `json:"to"`
	Native amount.Int `json:"native"`
	Asset  amount.Int `json:"asset"`
}

// New builds an unsigned transaction with payload encoded compactly.
func New(typ TxType, sender, target common.Address, value amount.Int, nonce uint64, payload any) (*SignedTransaction, error) {
	tx := &SignedTransaction{
		Type:   typ,
		Sender: sender.Hex(),
		Target: target.Hex(),
		Value:  value.String(),
		Nonce:  nonce,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		tx.Payload = raw
	}
	return tx, nil
}

func (tx *SignedTransaction) SenderAddress() common.Address { return common.HexToAddress(tx.Sender) }

func (tx *SignedTransaction) TargetAddress() common.Address { return common.HexToAddress(tx.Target) }

// NativeValue parses Value; empty means zero.
func (tx *SignedTransaction) NativeValue() (amount.Int, error) {
	if tx.Value == "" {
		return amount.Zero, nil
	}
	v, err := amount.FromDecimal(tx.Value)
	if err != nil {
		return amount.Zero, fmt.Errorf("invalid value: %q", tx.Value)
	}
	return v, nil
}

// DecodePayload unmarshals the payload into out, rejecting unknown fields.
func (tx *SignedTransaction) DecodePayload(out any) error {
	if len(tx.Payload) == 0 {
		return fmt.Errorf("%s requires a payload", tx.Type)
	}
	dec := json.NewDecoder(bytes.NewReader(tx.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid %s payload: %w", tx.Type, err)
	}
	return nil
}

// Action is the typed-data message covered by the signature. The payload is
// compacted so whitespace does not change the digest.
func (tx *SignedTransaction) Action() (*crypto.Action, error) {
	value, err := tx.NativeValue()
	if err != nil {
		return nil, err
	}
	var payload bytes.Buffer
	if len(tx.Payload) > 0 {
		if err := json.Compact(&payload, tx.Payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
	}
	return &crypto.Action{
		Kind:    string(tx.Type),
		Sender:  tx.SenderAddress(),
		Target:  tx.TargetAddress(),
		Value:   value.Big(),
		Nonce:   tx.Nonce,
		Payload: payload.String(),
	}, nil
}

// Serialize converts SignedTransaction to JSON bytes
func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Deserialize parses JSON bytes into SignedTransaction
func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// Validate performs basic validation on transaction structure
func (tx *SignedTransaction) Validate() error {
	if tx.Type == "" {
		return fmt.Errorf("missing transaction type")
	}
	if tx.Signature == "" {
		return fmt.Errorf("missing signature")
	}
	if !common.IsHexAddress(tx.Sender) {
		return fmt.Errorf("invalid sender: %q", tx.Sender)
	}
	if !common.IsHexAddress(tx.Target) {
		return fmt.Errorf("invalid target: %q", tx.Target)
	}
	if _, err := tx.NativeValue(); err != nil {
		return err
	}

	switch tx.Type {
	case TxOpenBook, TxBuy, TxSell, TxSellSecondary, TxCancel, TxExpireOrder, TxSweep,
		TxCollectFees, TxExercise, TxApprove, TxTransfer, TxFaucet:
		if len(tx.Payload) == 0 {
			return fmt.Errorf("%s requires a payload", tx.Type)
		}
	case TxSettle, TxLiquidate:
	default:
		return fmt.Errorf("unknown transaction type: %s", tx.Type)
	}
	return nil
}

// ParseTransaction decodes and structurally validates a raw transaction.
func ParseTransaction(data []byte) (*SignedTransaction, error) {
	tx, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return tx, nil
}
