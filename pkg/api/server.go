// Package api exposes the persisted on-chain order state (pkg/storage)
// as a read-only REST and WebSocket surface, the same gorilla/mux +
// gorilla/websocket + rs/cors stack the teacher uses for its own
// trading API.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/cowbatch/auction-pipeline/pkg/domain"
	"github.com/cowbatch/auction-pipeline/pkg/onchain"
	"github.com/cowbatch/auction-pipeline/pkg/storage"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Indexer is the subset of OnchainOrderParser the API server needs.
type Indexer interface {
	LastEventBlock() (uint64, bool, error)
}

var _ Indexer = (*onchain.OnchainOrderParser)(nil)

// Server serves queries against a storage.Store and relays live updates
// over WebSocket.
type Server struct {
	store         storage.Store
	indexer       Indexer
	watermarkName string
	router        *mux.Router
	hub           *Hub
}

// NewServer creates a new API server over the given store.
func NewServer(store storage.Store, indexer Indexer, watermarkName string) *Server {
	s := &Server{
		store:         store,
		indexer:       indexer,
		watermarkName: watermarkName,
		router:        mux.NewRouter(),
		hub:           NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders/{uid}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{uid}/broadcast", s.handleGetBroadcast).Methods("GET")
	api.HandleFunc("/orders/{uid}/quote", s.handleGetQuote).Methods("GET")
	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	handler := c.Handler(s.router)
	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

func parseUid(r *http.Request) (domain.OrderUid, error) {
	return domain.OrderUidFromHex(mux.Vars(r)["uid"])
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	uid, err := parseUid(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid uid", err.Error())
		return
	}
	row, ok, err := s.store.GetOrder(uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lookup failed", err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, toOrderInfo(row))
}

func (s *Server) handleGetBroadcast(w http.ResponseWriter, r *http.Request) {
	uid, err := parseUid(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid uid", err.Error())
		return
	}
	row, ok, err := s.store.GetBroadcast(uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lookup failed", err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "broadcast not found", "")
		return
	}
	respondJSON(w, toBroadcastInfo(row))
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	uid, err := parseUid(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid uid", err.Error())
		return
	}
	row, ok, err := s.store.GetQuote(uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lookup failed", err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "quote not found", "")
		return
	}
	respondJSON(w, toQuoteInfo(row))
}

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	block, ok, err := s.indexer.LastEventBlock()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "watermark read failed", err.Error())
		return
	}
	respondJSON(w, ChainStatus{Name: s.watermarkName, LastIndexedBlock: block, Indexed: ok})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// BroadcastOrderPlaced pushes a live update to clients subscribed to the
// "orders" channel. Called by the indexing loop after a committed
// AppendEvents/ReplaceEvents resolves a new placement.
func (s *Server) BroadcastOrderPlaced(row storage.OrderRow) {
	s.hub.BroadcastToChannel("orders", OrderPlacedUpdate{Type: "order_placed", Order: toOrderInfo(row)})
}

// BroadcastOrderInvalidated pushes a live update to clients subscribed to
// the "invalidations" channel.
func (s *Server) BroadcastOrderInvalidated(row storage.InvalidationRow) {
	s.hub.BroadcastToChannel("invalidations", OrderInvalidatedUpdate{
		Type:        "order_invalidated",
		Uid:         row.Uid.String(),
		BlockNumber: row.BlockNumber,
	})
}

func toOrderInfo(row storage.OrderRow) OrderInfo {
	info := OrderInfo{
		Uid:               row.Uid.String(),
		SellToken:         row.SellToken.Hex(),
		BuyToken:          row.BuyToken.Hex(),
		SellAmount:        row.SellAmount.String(),
		BuyAmount:         row.BuyAmount.String(),
		ValidTo:           row.ValidTo,
		AppData:           row.AppData.Hex(),
		FeeAmount:         row.FeeAmount.String(),
		Kind:              row.Kind.String(),
		PartiallyFillable: row.PartiallyFillable,
		Class:             classString(row.Class),
	}
	if row.Receiver != nil {
		info.Receiver = row.Receiver.Hex()
	}
	return info
}

func toBroadcastInfo(row storage.BroadcastRow) BroadcastInfo {
	return BroadcastInfo{
		Uid:            row.Uid.String(),
		Sender:         row.Sender.Hex(),
		BlockNumber:    row.BlockNumber,
		BlockTimestamp: row.BlockTimestamp,
		PlacementError: row.PlacementError,
		Reorged:        row.Reorged,
	}
}

func toQuoteInfo(row storage.QuoteRow) QuoteInfo {
	return QuoteInfo{
		Uid:            row.Uid.String(),
		QuoteID:        row.QuoteID,
		SellAmount:     row.SellAmount.String(),
		BuyAmount:      row.BuyAmount.String(),
		GasAmount:      row.GasAmount,
		GasPrice:       row.GasPrice,
		SellTokenPrice: row.SellTokenPrice,
		Solver:         row.Solver.Hex(),
		Verified:       row.Verified,
		QuoteKind:      row.QuoteKind,
	}
}

func classString(c storage.OrderClass) string {
	switch c {
	case storage.ClassMarket:
		return "market"
	case storage.ClassLiquidity:
		return "liquidity"
	default:
		return "limit"
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
