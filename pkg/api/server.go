package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tegro/tegrodex/pkg/dex"
	"github.com/tegro/tegrodex/pkg/token"
)

// Server exposes the settlement engine and the devnet token bank over REST,
// plus a websocket trade feed.
type Server struct {
	engine *dex.Engine
	bank   *token.Bank
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer creates a new API server
func NewServer(engine *dex.Engine, bank *token.Bank, logger *zap.SugaredLogger) *Server {
	s := &Server{
		engine: engine,
		bank:   bank,
		router: mux.NewRouter(),
		hub:    NewHub(),
		log:    logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Settlement
	api.HandleFunc("/settlements", s.handleSettle).Methods("POST")
	api.HandleFunc("/orders/hash", s.handleHashOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{hash}", s.handleGetFilled).Methods("GET")

	// Admin
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/admin/initialize", s.handleInitialize).Methods("POST")
	api.HandleFunc("/admin/fee-rate", s.handleSetFeeRate).Methods("POST")
	api.HandleFunc("/admin/trading-contract", s.handleSetTradingContract).Methods("POST")

	// Devnet token bank
	api.HandleFunc("/tokens", s.handleCreateToken).Methods("POST")
	api.HandleFunc("/tokens", s.handleListTokens).Methods("GET")
	api.HandleFunc("/tokens/mint", s.handleMint).Methods("POST")
	api.HandleFunc("/tokens/approve", s.handleApprove).Methods("POST")
	api.HandleFunc("/tokens/{token}/balances/{holder}", s.handleGetBalance).Methods("GET")

	// WebSocket trade feed
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// ServeHTTP dispatches to the router. Exposed so the server can be mounted
// or driven directly in tests without binding a port.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Settlement handlers
// ==============================

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	buyOrder, err := req.BuyOrder.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid buy order", err.Error())
		return
	}
	sellOrder, err := req.SellOrder.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sell order", err.Error())
		return
	}
	buySig, err := parseSignature(req.BuySignature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid buy signature", err.Error())
		return
	}
	sellSig, err := parseSignature(req.SellSignature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sell signature", err.Error())
		return
	}
	fillQuantity, err := parseBigInt("fillQuantity", req.FillQuantity)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	trade, err := s.engine.SettleOrders(caller, buyOrder, buySig, sellOrder, sellSig, fillQuantity)
	if err != nil {
		respondError(w, settlementStatus(err), "settlement rejected", err.Error())
		return
	}

	info := tradeInfo(trade)
	s.hub.BroadcastToChannel("trades", WSMessage{Type: "trade", Data: info})
	respondJSON(w, info)
}

func (s *Server) handleHashOrder(w http.ResponseWriter, r *http.Request) {
	var payload OrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := payload.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	orderID, err := s.engine.HashOrder(order)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	respondJSON(w, HashResponse{OrderID: orderID.Hex()})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := req.Order.ToOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}
	sig, err := parseSignature(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return
	}

	orderID, err := s.engine.CancelOrder(order, sig)
	if err != nil {
		respondError(w, settlementStatus(err), "cancel rejected", err.Error())
		return
	}

	respondJSON(w, HashResponse{OrderID: orderID.Hex()})
}

func (s *Server) handleGetFilled(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hash := vars["hash"]

	if len(hash) != 2+2*common.HashLength || hash[:2] != "0x" {
		respondError(w, http.StatusBadRequest, "invalid order hash", hash)
		return
	}
	orderID := common.HexToHash(hash)

	respondJSON(w, FilledResponse{
		OrderID: orderID.Hex(),
		Filled:  s.engine.Filled(orderID).String(),
	})
}

// ==============================
// Admin handlers
// ==============================

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, ConfigResponse{
		Initialized:     s.engine.Initialized(),
		Owner:           s.engine.Owner().Hex(),
		FeeRateBps:      s.engine.FeeRateBps(),
		TradingContract: s.engine.TradingContract().Hex(),
	})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := s.engine.Initialize(owner, req.FeeRateBps); err != nil {
		respondError(w, settlementStatus(err), "initialize rejected", err.Error())
		return
	}

	s.handleGetConfig(w, r)
}

func (s *Server) handleSetFeeRate(w http.ResponseWriter, r *http.Request) {
	var req SetFeeRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := s.engine.SetFeeRate(caller, req.FeeRateBps); err != nil {
		respondError(w, settlementStatus(err), "update rejected", err.Error())
		return
	}

	s.handleGetConfig(w, r)
}

func (s *Server) handleSetTradingContract(w http.ResponseWriter, r *http.Request) {
	var req SetTradingContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	tradingContract, err := parseAddress("tradingContract", req.TradingContract)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := s.engine.SetTradingContract(caller, tradingContract); err != nil {
		respondError(w, settlementStatus(err), "update rejected", err.Error())
		return
	}

	s.handleGetConfig(w, r)
}

// ==============================
// Token bank handlers (devnet)
// ==============================

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Name == "" || req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "invalid request", "name and symbol are required")
		return
	}

	asset := s.bank.Create(req.Name, req.Symbol, req.Decimals)
	s.log.Infow("token_created", "address", asset.Address().Hex(), "symbol", asset.Symbol())

	respondJSON(w, TokenInfo{
		Address:  asset.Address().Hex(),
		Name:     asset.Name(),
		Symbol:   asset.Symbol(),
		Decimals: asset.Decimals(),
	})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	assets := s.bank.Assets()
	response := make([]TokenInfo, len(assets))
	for i, a := range assets {
		response[i] = TokenInfo{
			Address:  a.Address().Hex(),
			Name:     a.Name(),
			Symbol:   a.Symbol(),
			Decimals: a.Decimals(),
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tokenAddr, err := parseAddress("token", req.Token)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	amount, err := parseBigInt("amount", req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := s.bank.Mint(tokenAddr, to, amount); err != nil {
		respondError(w, http.StatusBadRequest, "mint failed", err.Error())
		return
	}

	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tokenAddr, err := parseAddress("token", req.Token)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	amount, err := parseBigInt("amount", req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := s.bank.Approve(tokenAddr, owner, spender, amount); err != nil {
		respondError(w, http.StatusBadRequest, "approve failed", err.Error())
		return
	}

	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	tokenAddr, err := parseAddress("token", vars["token"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	holder, err := parseAddress("holder", vars["holder"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	balance, err := s.bank.BalanceOf(tokenAddr, holder)
	if err != nil {
		respondError(w, http.StatusNotFound, "token not found", err.Error())
		return
	}

	respondJSON(w, BalanceResponse{
		Token:   tokenAddr.Hex(),
		Holder:  holder.Hex(),
		Balance: balance.String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Response helpers
// ==============================

// settlementStatus maps core failures to HTTP status codes.
func settlementStatus(err error) int {
	switch {
	case errors.Is(err, dex.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, dex.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, dex.ErrCapacityExceeded):
		return http.StatusConflict
	case errors.Is(err, dex.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func respondError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  message,
		"detail": detail,
	})
}
