// Package api serves the read-only REST surface and the websocket receipts
// feed. All writes to the exchange flow through the ledger, never HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tangelo-dex/tangelo/pkg/app/core/asset"
	"github.com/tangelo-dex/tangelo/pkg/app/core/book"
	"github.com/tangelo-dex/tangelo/pkg/app/exchange"
	"github.com/tangelo-dex/tangelo/pkg/metrics"
)

// Server handles REST API and WebSocket connections.
type Server struct {
	ex     *exchange.Exchange
	router *mux.Router
	hub    *Hub
	log    *zap.Logger
}

func NewServer(ex *exchange.Exchange, log *zap.Logger) *Server {
	s := &Server{
		ex:     ex,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

// HubObserver bridges committed receipts onto the websocket feed. Clients
// subscribe to "receipts" for everything, or "receipts:<SYMBOL>" per pair.
type HubObserver struct {
	hub *Hub
}

func (s *Server) Observer() HubObserver { return HubObserver{hub: s.hub} }

func (o HubObserver) Publish(r exchange.Receipt) {
	o.hub.BroadcastToChannel("receipts", r)
	o.hub.BroadcastToChannel("receipts:"+r.Symbol, r)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/whitelist", s.handleGetWhitelist).Methods("GET")
	api.HandleFunc("/books", s.handleListBooks).Methods("GET")
	api.HandleFunc("/books/{symbol}", s.handleGetBook).Methods("GET")
	api.HandleFunc("/books/{symbol}/{side}/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/balances/{account}", s.handleGetBalances).Methods("GET")

	s.router.Handle("/metrics", metrics.Handler())
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.log.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleGetWhitelist(w http.ResponseWriter, r *http.Request) {
	entries := s.ex.Whitelist().Entries()
	response := make([]WhitelistInfo, len(entries))
	for i, e := range entries {
		response[i] = WhitelistInfo{
			Symbol:    e.Symbol.Code,
			Precision: e.Symbol.Precision,
			Issuer:    e.Issuer.Hex(),
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.ex.Symbols())
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	respondJSON(w, BookSnapshot{
		Symbol:    symbol,
		Buys:      orderInfos(book.Buy, s.ex.Book(symbol, book.Buy)),
		Sells:     orderInfos(book.Sell, s.ex.Book(symbol, book.Sell)),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	side, ok := parseSide(vars["side"])
	if !ok {
		respondError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad order id")
		return
	}
	for _, o := range s.ex.Book(vars["symbol"], side) {
		if o.ID == id {
			respondJSON(w, orderInfo(side, o))
			return
		}
	}
	respondError(w, http.StatusNotFound, "order not found")
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["account"]
	if !common.IsHexAddress(addr) {
		respondError(w, http.StatusBadRequest, "bad account address")
		return
	}
	holdings := s.ex.Balances(common.HexToAddress(addr))
	response := make([]BalanceInfo, len(holdings))
	for i, h := range holdings {
		response[i] = BalanceInfo{
			Token:   h.Token.Hex(),
			Symbol:  h.Balance.Symbol.Code,
			Balance: h.Balance.String(),
		}
	}
	respondJSON(w, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func parseSide(s string) (book.Side, bool) {
	switch s {
	case "buy", "buys":
		return book.Buy, true
	case "sell", "sells":
		return book.Sell, true
	}
	return 0, false
}

func orderInfos(side book.Side, orders []book.Order) []OrderInfo {
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = orderInfo(side, o)
	}
	return out
}

func orderInfo(side book.Side, o book.Order) OrderInfo {
	return OrderInfo{
		ID:        o.ID,
		Side:      side.String(),
		Owner:     o.Owner.Hex(),
		Bid:       o.Bid.String(),
		Ask:       o.Ask.String(),
		UnitPrice: asset.PriceString(o.UnitPrice),
		CreatedAt: o.CreatedAt,
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
