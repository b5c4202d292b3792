package api

import (
	"time"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/option"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperoptions/pkg/consensus"
)

// API response types for REST endpoints and WebSocket messages.
// Amounts are base units encoded as decimal strings; fields suffixed
// "Display" render them with the asset's decimals.

// ==============================
// REST Response Types
// ==============================

// ChainStatus is the node's view of the chain head
type ChainStatus struct {
	Height      uint64         `json:"height"`
	AppHash     consensus.Hash `json:"appHash"`
	Time        time.Time      `json:"time"` // Time of the last finalized block
	MempoolSize int            `json:"mempoolSize"`
	Admin       string         `json:"admin"`
	Token       TokenInfo      `json:"token"`
	Markets     []string       `json:"markets"`
	Faucet      bool           `json:"faucet"`
}

// TokenInfo describes the settlement asset
type TokenInfo struct {
	Address       string     `json:"address"`
	Symbol        string     `json:"symbol"`
	Decimals      int32      `json:"decimals"`
	Supply        amount.Int `json:"supply"`
	SupplyDisplay string     `json:"supplyDisplay"`
}

// MarketInfo represents one side of the options market
type MarketInfo struct {
	Address     string     `json:"address"`
	Kind        string     `json:"kind"` // "call" or "put"
	Admin       string     `json:"admin"`
	Books       int        `json:"books"`
	OpeningFee  amount.Int `json:"openingFee"` // native base units
	Fees        amount.Int `json:"fees"`       // accrued, not yet collected
	FeesDisplay string     `json:"feesDisplay"`
}

// BookInfo is the static configuration and top of book of one listing
type BookInfo struct {
	Address          string      `json:"address"`
	Market           string      `json:"market"`
	Kind             string      `json:"kind"`
	Expiry           time.Time   `json:"expiry"`
	Strike           amount.Int  `json:"strike"`
	MinimumQuantity  amount.Int  `json:"minimumQuantity"`
	TickSize         amount.Int  `json:"tickSize"`
	MaxOrderLifetime int64       `json:"maxOrderLifetime"` // seconds
	BestBid          *amount.Int `json:"bestBid,omitempty"`
	BestAsk          *amount.Int `json:"bestAsk,omitempty"`
	LastPrice        amount.Int  `json:"lastPrice"`
	Orders           int         `json:"orders"` // ever submitted
	Option           string      `json:"option,omitempty"`
}

// BookSnapshot represents current live depth
type BookSnapshot struct {
	Book   string                 `json:"book"`
	Bids   []orderbook.PriceLevel `json:"bids"` // Sorted high to low
	Asks   []orderbook.PriceLevel `json:"asks"` // Sorted low to high
	Height uint64                 `json:"height"`
	Time   time.Time              `json:"time"`
}

// OrderInfo represents one order of a book
type OrderInfo struct {
	ID        uint64     `json:"id"`
	Book      string     `json:"book"`
	Issuer    string     `json:"issuer"`
	Side      string     `json:"side"` // "buy" or "sell"
	Price     amount.Int `json:"price"`
	Quantity  amount.Int `json:"quantity"` // left to fill
	Timestamp time.Time  `json:"timestamp"`
	Secondary bool       `json:"secondary"` // sells already-issued options
	Live      bool       `json:"live"`
	Escrow    amount.Int `json:"escrow"` // held by the market for this order
}

// OptionInfo is the option contract summary with a readable status
type OptionInfo struct {
	option.Info
	StatusName      string    `json:"statusName"`
	Book            string    `json:"book"`
	WindowClose     time.Time `json:"windowClose"`
	LiquidationOpen time.Time `json:"liquidationOpen"`
}

// OptionPosition is one account's stake in one option contract
type OptionPosition struct {
	Option  string     `json:"option"`
	Kind    string     `json:"kind"`
	Balance amount.Int `json:"balance"`
	Locked  amount.Int `json:"locked"`  // behind secondary sell orders
	Written amount.Int `json:"written"` // as writer
	Settled bool       `json:"settled,omitempty"`
}

// AccountInfo represents balances of one address
type AccountInfo struct {
	Address       string           `json:"address"`
	Native        amount.Int       `json:"native"`
	NativeDisplay string           `json:"nativeDisplay"`
	Asset         amount.Int       `json:"asset"`
	AssetDisplay  string           `json:"assetDisplay"`
	NextNonce     uint64           `json:"nextNonce"`
	Options       []OptionPosition `json:"options"`
}

// BlockInfo is a committed block header with its transaction outcomes
type BlockInfo struct {
	Height   uint64         `json:"height"`
	Hash     consensus.Hash `json:"hash"`
	Parent   consensus.Hash `json:"parent"`
	AppHash  consensus.Hash `json:"appHash"`
	Proposer string         `json:"proposer"`
	Time     time.Time      `json:"time"`
	Txs      any            `json:"txs,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the envelope of every pushed message
type WSMessage struct {
	Type    string `json:"type"` // "block", "log", "book"
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["blocks", "logs", "logs:0x...", "book:0x..."]
}

// BlockUpdate is broadcast on every committed block
type BlockUpdate struct {
	Height  uint64         `json:"height"`
	Hash    consensus.Hash `json:"hash"`
	AppHash consensus.Hash `json:"appHash"`
	Time    time.Time      `json:"time"`
	Txs     int            `json:"txs"`
}

// ==============================
// REST Request Types
// ==============================

// SubmitTxResponse is the response from POST /api/v1/tx
type SubmitTxResponse struct {
	Status string `json:"status"` // "accepted"
	Hash   string `json:"hash"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}
