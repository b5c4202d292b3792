// Package api serves the node over HTTP: read endpoints for the chain, the
// markets and accounts, transaction submission, and a WebSocket feed of
// blocks, event logs and book depth.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperoptions/pkg/app/core/amount"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/errs"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/market"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/option"
	"github.com/uhyunpark/hyperoptions/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperoptions/pkg/app/options"
	"github.com/uhyunpark/hyperoptions/pkg/consensus"
	"github.com/uhyunpark/hyperoptions/pkg/storage"
)

// NativeDecimals is the display precision of native value.
const NativeDecimals = amount.NativeDecimals

const (
	maxTxBytes       = 1 << 20
	defaultLogsLimit = 100
	maxLogsLimit     = 1000
)

// ResultStore serves what FinalizeBlock persisted.
type ResultStore interface {
	GetTxResultJSON(h common.Hash) (json.RawMessage, bool, error)
	GetBlockSummary(height uint64) (*storage.BlockSummary, bool, error)
	LogsByAddress(addr common.Address, limit int) ([]json.RawMessage, error)
}

// Config wires the optional backends. Endpoints whose backend is missing
// answer 503.
type Config struct {
	Blocks      consensus.BlockStore
	Results     ResultStore
	WAL         consensus.WAL // accepted transactions are appended here
	CORSOrigins []string
}

// Server handles REST API and WebSocket connections
type Server struct {
	app     *options.App
	cfg     Config
	router  *mux.Router
	hub     *Hub // WebSocket hub
	logger  *zap.Logger
	handler http.Handler
}

// NewServer creates a new API server and starts forwarding ledger receipts
// to log subscribers.
func NewServer(app *options.App, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		app:    app,
		cfg:    cfg,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		logger: logger,
	}
	s.setupRoutes()

	// CORS configuration
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(s.router)

	app.Subscribe(s.publishReceipt)
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Chain endpoints
	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")
	api.HandleFunc("/blocks/{height:[0-9]+}", s.handleGetBlock).Methods("GET")
	api.HandleFunc("/txs/{hash}", s.handleGetTx).Methods("GET")
	api.HandleFunc("/logs/{address}", s.handleGetLogs).Methods("GET")

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{market}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{market}/books", s.handleGetBooks).Methods("GET")
	api.HandleFunc("/books/{book}", s.handleGetBook).Methods("GET")
	api.HandleFunc("/books/{book}/depth", s.handleGetDepth).Methods("GET")
	api.HandleFunc("/books/{book}/executions", s.handleGetExecutions).Methods("GET")
	api.HandleFunc("/books/{book}/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/options/{option}", s.handleGetOption).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")

	// Transaction submission
	api.HandleFunc("/tx", s.handleSubmitTx).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler is the router wrapped with CORS.
func (s *Server) Handler() http.Handler { return s.handler }

// Hub exposes the WebSocket hub for block broadcasts.
func (s *Server) Hub() *Hub { return s.hub }

// Start serves addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	// Start WebSocket hub
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api_listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ==============================
// Chain Handlers
// ==============================

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	height, appHash := s.app.Head()
	resp := ChainStatus{
		Height:      height,
		AppHash:     appHash,
		MempoolSize: s.app.MempoolSize(),
		Admin:       s.app.Admin().Hex(),
		Faucet:      s.app.FaucetEnabled(),
	}
	s.app.View(func() {
		resp.Time = s.app.Now()
		resp.Token = tokenInfo(s.app)
		for _, m := range s.app.Registry().List() {
			resp.Markets = append(resp.Markets, m.Address().Hex())
		}
	})
	respondJSON(w, resp)
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Blocks == nil {
		respondError(w, http.StatusServiceUnavailable, "block store unavailable", "")
		return
	}
	height, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid height", err.Error())
		return
	}
	b, ok, err := s.cfg.Blocks.BlockAt(consensus.Height(height))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "block lookup failed", err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "block not found", "")
		return
	}
	resp := BlockInfo{
		Height:   uint64(b.Height),
		Hash:     consensus.HashOfBlock(b),
		Parent:   b.Parent,
		AppHash:  b.AppHash,
		Proposer: string(b.Proposer),
		Time:     b.Time,
	}
	if s.cfg.Results != nil {
		if sum, ok, err := s.cfg.Results.GetBlockSummary(height); err == nil && ok {
			resp.Txs = sum.Txs
		}
	}
	respondJSON(w, resp)
}

func (s *Server) handleGetTx(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Results == nil {
		respondError(w, http.StatusServiceUnavailable, "result store unavailable", "")
		return
	}
	raw := mux.Vars(r)["hash"]
	if len(strings.TrimPrefix(raw, "0x")) != 2*common.HashLength {
		respondError(w, http.StatusBadRequest, "invalid hash", "")
		return
	}
	data, ok, err := s.cfg.Results.GetTxResultJSON(common.HexToHash(raw))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "tx lookup failed", err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "tx not found", "not executed yet or unknown")
		return
	}
	respondJSON(w, data)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Results == nil {
		respondError(w, http.StatusServiceUnavailable, "result store unavailable", "")
		return
	}
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	limit := defaultLogsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = min(n, maxLogsLimit)
	}
	logs, err := s.cfg.Results.LogsByAddress(addr, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "log lookup failed", err.Error())
		return
	}
	if logs == nil {
		logs = []json.RawMessage{}
	}
	respondJSON(w, logs)
}

// ==============================
// Market Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	var resp []MarketInfo
	s.app.View(func() {
		for _, m := range s.app.Registry().List() {
			resp = append(resp, marketInfo(m))
		}
	})
	respondJSON(w, resp)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupMarket(w, r)
	if !ok {
		return
	}
	var resp MarketInfo
	s.app.View(func() { resp = marketInfo(m) })
	respondJSON(w, resp)
}

func (s *Server) handleGetBooks(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupMarket(w, r)
	if !ok {
		return
	}
	resp := []BookInfo{}
	s.app.View(func() {
		for _, l := range m.Listings() {
			resp = append(resp, bookInfo(m, l))
		}
	})
	respondJSON(w, resp)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, ok := pathAddress(w, r, "book")
	if !ok {
		return
	}
	var resp BookInfo
	found := false
	s.app.View(func() {
		if m, l, ok := s.listing(book); ok {
			resp, found = bookInfo(m, l), true
		}
	})
	if !found {
		respondError(w, http.StatusNotFound, "book not found", book.Hex())
		return
	}
	respondJSON(w, resp)
}

func (s *Server) handleGetDepth(w http.ResponseWriter, r *http.Request) {
	book, ok := pathAddress(w, r, "book")
	if !ok {
		return
	}
	snap, found := s.depth(book)
	if !found {
		respondError(w, http.StatusNotFound, "book not found", book.Hex())
		return
	}
	respondJSON(w, snap)
}

func (s *Server) handleGetExecutions(w http.ResponseWriter, r *http.Request) {
	book, ok := pathAddress(w, r, "book")
	if !ok {
		return
	}
	var resp []orderbook.Execution
	found := false
	s.app.View(func() {
		if _, l, ok := s.listing(book); ok {
			resp, found = l.Book.Executions(), true
		}
	})
	if !found {
		respondError(w, http.StatusNotFound, "book not found", book.Hex())
		return
	}
	respondJSON(w, resp)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	book, ok := pathAddress(w, r, "book")
	if !ok {
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	var resp OrderInfo
	var lookupErr error
	found := false
	s.app.View(func() {
		_, l, ok := s.listing(book)
		if !ok {
			return
		}
		found = true
		o, err := l.Book.Order(orderbook.OrderID(id))
		if err != nil {
			lookupErr = err
			return
		}
		resp = OrderInfo{
			ID:        uint64(o.ID),
			Book:      book.Hex(),
			Issuer:    o.Issuer.Hex(),
			Side:      o.Side.String(),
			Price:     o.Price,
			Quantity:  o.Quantity,
			Timestamp: o.Timestamp,
			Secondary: o.UserData != (common.Address{}),
			Live:      l.Book.IsLive(o.ID, s.app.Now()),
			Escrow:    l.Escrow(o.ID),
		}
	})
	switch {
	case !found:
		respondError(w, http.StatusNotFound, "book not found", book.Hex())
	case lookupErr != nil:
		respondError(w, http.StatusNotFound, "order not found", lookupErr.Error())
	default:
		respondJSON(w, resp)
	}
}

func (s *Server) handleGetOption(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "option")
	if !ok {
		return
	}
	var resp OptionInfo
	found := false
	s.app.View(func() {
		c, m, ok := s.app.Registry().Option(addr)
		if !ok {
			return
		}
		found = true
		info := c.Info(s.app.Now())
		resp = OptionInfo{
			Info:            info,
			StatusName:      info.Status.String(),
			WindowClose:     c.Terms().WindowClose(),
			LiquidationOpen: c.Terms().LiquidationOpen(),
		}
		for _, l := range m.Listings() {
			if l.Option == c {
				resp.Book = l.Book.Address().Hex()
				break
			}
		}
	})
	if !found {
		respondError(w, http.StatusNotFound, "option not found", addr.Hex())
		return
	}
	respondJSON(w, resp)
}

// ==============================
// Account Handlers
// ==============================

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	resp := AccountInfo{
		Address:   addr.Hex(),
		NextNonce: s.app.NextNonce(addr),
		Options:   []OptionPosition{},
	}
	s.app.View(func() {
		tok := s.app.Token()
		resp.Native = s.app.Ledger().NativeBalance(addr)
		resp.NativeDisplay = resp.Native.Format(NativeDecimals)
		resp.Asset = tok.BalanceOf(addr)
		resp.AssetDisplay = resp.Asset.Format(tok.Decimals)

		for _, m := range s.app.Registry().List() {
			for _, l := range m.Listings() {
				c := l.Option
				if c == nil {
					continue
				}
				pos := OptionPosition{
					Option:  c.Address().Hex(),
					Kind:    c.Kind().String(),
					Balance: c.BalanceOf(addr),
					Locked:  c.LockedOf(addr),
					Written: c.WrittenBy(addr),
					Settled: c.HasSettled(addr),
				}
				if !pos.Balance.IsZero() || !pos.Written.IsZero() {
					resp.Options = append(resp.Options, pos)
				}
			}
		}
	})
	respondJSON(w, resp)
}

// ==============================
// Transaction Submission
// ==============================

func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTxBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "failed to read body", err.Error())
		return
	}

	hash, err := s.app.CheckTx(body)
	if err != nil {
		kind := errs.KindOf(err)
		s.logger.Info("tx_refused",
			zap.String("hash", hash.Hex()),
			zap.String("kind", kind.String()),
			zap.Error(err))
		respondKindError(w, kind, "transaction refused", err)
		return
	}

	if s.cfg.WAL != nil {
		s.cfg.WAL.Append("tx hash=" + hash.Hex() + " bytes=" + strconv.Itoa(len(body)))
	}
	s.logger.Debug("tx_accepted", zap.String("hash", hash.Hex()), zap.Int("bytes", len(body)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(SubmitTxResponse{Status: "accepted", Hash: hash.Hex()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from consensus)
// ==============================

// BroadcastBlock pushes the committed block header and the depth of every
// book somebody watches.
func (s *Server) BroadcastBlock(b consensus.Block) {
	s.hub.BroadcastToChannel(ChannelBlocks, WSMessage{
		Type:    "block",
		Channel: ChannelBlocks,
		Data: BlockUpdate{
			Height:  uint64(b.Height),
			Hash:    consensus.HashOfBlock(b),
			AppHash: b.AppHash,
			Time:    b.Time,
			Txs:     countTxs(b.Payload),
		},
	})

	for _, ch := range s.hub.Channels(ChannelBookPrefix) {
		book := common.HexToAddress(strings.TrimPrefix(ch, ChannelBookPrefix))
		if snap, ok := s.depth(book); ok {
			s.hub.BroadcastToChannel(ch, WSMessage{Type: "book", Channel: ch, Data: snap})
		}
	}
}

// publishReceipt fans the logs of a committed ledger transaction out to
// "logs" and "logs:<emitter>". It runs under the ledger lock and never blocks.
func (s *Server) publishReceipt(r *ledger.Receipt) {
	for _, lg := range r.Logs {
		data, err := json.Marshal(lg)
		if err != nil {
			continue
		}
		raw := json.RawMessage(data)
		s.hub.BroadcastToChannel(ChannelLogs, WSMessage{Type: "log", Channel: ChannelLogs, Data: raw})
		ch := ChannelLogsPrefix + lg.Address.Hex()
		s.hub.BroadcastToChannel(ch, WSMessage{Type: "log", Channel: ch, Data: raw})
	}
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) depth(book common.Address) (BookSnapshot, bool) {
	height, _ := s.app.Head()
	var snap BookSnapshot
	found := false
	s.app.View(func() {
		_, l, ok := s.listing(book)
		if !ok {
			return
		}
		now := s.app.Now()
		snap = BookSnapshot{
			Book:   book.Hex(),
			Bids:   orEmpty(l.Book.GetBidLevels(now)),
			Asks:   orEmpty(l.Book.GetAskLevels(now)),
			Height: height,
			Time:   now,
		}
		found = true
	})
	return snap, found
}

// listing resolves a book to its market and listing. Call inside View.
func (s *Server) listing(book common.Address) (*market.Market, *market.Listing, bool) {
	m, ok := s.app.Registry().BookOwner(book)
	if !ok {
		return nil, nil, false
	}
	l, ok := m.Listing(book)
	return m, l, ok
}

// lookupMarket accepts "call", "put" or a market address.
func (s *Server) lookupMarket(w http.ResponseWriter, r *http.Request) (*market.Market, bool) {
	key := mux.Vars(r)["market"]
	switch strings.ToLower(key) {
	case option.Call.String():
		return s.app.Market(option.Call), true
	case option.Put.String():
		return s.app.Market(option.Put), true
	}
	if !common.IsHexAddress(key) {
		respondError(w, http.StatusBadRequest, "invalid market", "expected call, put or an address")
		return nil, false
	}
	m, err := s.app.Registry().Get(common.HexToAddress(key))
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return nil, false
	}
	return m, true
}

func marketInfo(m *market.Market) MarketInfo {
	return MarketInfo{
		Address:     m.Address().Hex(),
		Kind:        m.Kind().String(),
		Admin:       m.Admin().Hex(),
		Books:       m.NbBooks(),
		OpeningFee:  m.Params().OpeningFee,
		Fees:        m.Fees(),
		FeesDisplay: m.Fees().Format(NativeDecimals),
	}
}

func bookInfo(m *market.Market, l *market.Listing) BookInfo {
	cfg := l.Book.Config()
	info := BookInfo{
		Address:          l.Book.Address().Hex(),
		Market:           m.Address().Hex(),
		Kind:             m.Kind().String(),
		Expiry:           l.Expiry,
		Strike:           l.Strike,
		MinimumQuantity:  cfg.MinimumQuantity,
		TickSize:         cfg.TickSize,
		MaxOrderLifetime: int64(cfg.MaxOrderLifetime / time.Second),
		LastPrice:        l.Book.GetLastPrice(),
		Orders:           l.Book.OrderCount(),
	}
	if p, ok := l.Book.GetBestBid(); ok {
		info.BestBid = &p
	}
	if p, ok := l.Book.GetBestAsk(); ok {
		info.BestAsk = &p
	}
	if l.Option != nil {
		info.Option = l.Option.Address().Hex()
	}
	return info
}

func tokenInfo(app *options.App) TokenInfo {
	tok := app.Token()
	return TokenInfo{
		Address:       tok.Address().Hex(),
		Symbol:        tok.Symbol,
		Decimals:      tok.Decimals,
		Supply:        tok.TotalSupply(),
		SupplyDisplay: tok.TotalSupply().Format(tok.Decimals),
	}
}

func pathAddress(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	v := mux.Vars(r)[name]
	if !common.IsHexAddress(v) {
		respondError(w, http.StatusBadRequest, "invalid "+name, v)
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

func orEmpty(levels []orderbook.PriceLevel) []orderbook.PriceLevel {
	if levels == nil {
		return []orderbook.PriceLevel{}
	}
	return levels
}

// countTxs counts the 0x00-terminated transactions of a block payload.
func countTxs(payload []byte) int {
	n := 0
	for _, c := range payload {
		if c == 0 {
			n++
		}
	}
	return n
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// respondKindError maps an error category onto an HTTP status.
func respondKindError(w http.ResponseWriter, kind errs.Kind, title string, err error) {
	status := http.StatusBadRequest
	switch kind {
	case errs.KindAuthorization:
		status = http.StatusUnauthorized
	case errs.KindState:
		status = http.StatusConflict
	case errs.KindInsufficient:
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   title,
		Kind:    kind.String(),
		Message: err.Error(),
	})
}
