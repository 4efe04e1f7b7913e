package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/anthic/pkg/app/matcher"
	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/ledger"
	"github.com/uhyunpark/anthic/pkg/model"
	"github.com/uhyunpark/anthic/pkg/pool"
	"github.com/uhyunpark/anthic/pkg/storage"
	"github.com/uhyunpark/anthic/pkg/subintent"
	"github.com/uhyunpark/anthic/pkg/tradeapi"
)

const maxBodyBytes = 1 << 20

type ServerConfig struct {
	AllowedOrigins []string
}

// Server serves the venue's trade API from a venue file and takes order
// submissions for the matcher. It is also the matcher's live feed.
type Server struct {
	app    *matcher.App
	venue  model.VenueFile
	config model.AnthicConfig
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
	cfg    ServerConfig

	httpSrv *http.Server
}

func NewServer(app *matcher.App, venue model.VenueFile, cfg ServerConfig, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		app:    app,
		venue:  venue,
		config: venue.AnthicConfig(),
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
		cfg:    cfg,
	}
	s.setupRoutes()
	app.SetFeed(s)
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.HandleFunc("/network/status", s.handleNetworkStatus).Methods("GET")

	// Venue configuration
	r.HandleFunc("/trade/info", s.handleInfo).Methods("GET")
	r.HandleFunc("/trade/tokens", s.handleTokens).Methods("GET")
	r.HandleFunc("/trade/token_pairs", s.handleTokenPairs).Methods("GET")
	r.HandleFunc("/trade/account_addresses/{address}", s.handleAddressInfo).Methods("GET")
	r.HandleFunc("/trade/accounts", s.requireAPIKey(s.handleAccounts)).Methods("GET")
	r.HandleFunc("/instamint/info", s.handleInstamintInfo).Methods("GET")
	r.HandleFunc("/instamint/accounts", s.requireAPIKey(s.handleInstamintAccounts)).Methods("GET")

	// Orders
	r.HandleFunc("/trade/subintents", s.handleSubmit).Methods("POST")
	r.HandleFunc("/trade/subintents/{hash}", s.handleGetOrder).Methods("GET")
	r.HandleFunc("/trade/subintents/{hash}/cancel", s.handleCancel).Methods("POST")
	r.HandleFunc("/trade/orders", s.handleOrders).Methods("GET")

	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler is the router wrapped in CORS.
func (s *Server) Handler() http.Handler {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", tradeapi.APIKeyHeader},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- s.httpSrv.ListenAndServe() }()
	s.log.Infow("api_listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Hub exposes the websocket hub; tests drive it directly.
func (s *Server) Hub() *Hub { return s.hub }

// PublishOrder pushes an order event to "orders" and the account's channel.
func (s *Server) PublishOrder(ev matcher.OrderEvent) {
	s.hub.BroadcastToChannel(orderUpdate(s.config, ev), ChannelOrders, ChannelAccountPrefix+ev.Record.Account.String())
}

// venue

func (s *Server) handleNetworkStatus(w http.ResponseWriter, r *http.Request) {
	epoch, err := s.app.Directory().CurrentEpoch(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "epoch unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tradeapi.NetworkStatusResponse{CurEpoch: epoch})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, infoResponse(s.venue))
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, tokensResponse(s.venue))
}

func (s *Server) handleTokenPairs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, tokenPairsResponse(s.venue))
}

func (s *Server) handleAddressInfo(w http.ResponseWriter, r *http.Request) {
	addr, err := ledger.ParseComponentAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}
	info, err := s.app.Directory().LoadAddressInfo(r.Context(), addr)
	if err != nil {
		respondError(w, http.StatusBadGateway, "address info unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tradeapi.AccountAddressInfo{Level: info.Level})
}

type accountKey struct{}

// requireAPIKey resolves the caller's venue account from the api key header.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, ok := s.venue.AccountByAPIKey(r.Header.Get(tradeapi.APIKeyHeader))
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing or unknown api key")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, acct)))
	}
}

func callerAccount(r *http.Request) model.VenueAccount {
	acct, _ := r.Context().Value(accountKey{}).(model.VenueAccount)
	return acct
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	acct := callerAccount(r)
	respondJSON(w, http.StatusOK, tradeapi.AccountsResponse{Accounts: []tradeapi.Account{{
		Address:  acct.Address.String(),
		Balances: balances(acct.Balances),
	}}})
}

func (s *Server) handleInstamintInfo(w http.ResponseWriter, r *http.Request) {
	im, ok := s.venue.InstamintConfig()
	if !ok {
		respondError(w, http.StatusNotFound, "instamint disabled", "")
		return
	}
	respondJSON(w, http.StatusOK, tradeapi.InstamintInfo{
		InstamintComponent:    im.InstamintComponent.String(),
		CustomerBadgeResource: im.CustomerBadgeResource.String(),
	})
}

func (s *Server) handleInstamintAccounts(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.venue.InstamintConfig(); !ok {
		respondError(w, http.StatusNotFound, "instamint disabled", "")
		return
	}
	acct := callerAccount(r)
	respondJSON(w, http.StatusOK, tradeapi.InstamintAccountsResponse{
		Accounts: []tradeapi.InstamintAccount{instamintAccount(acct)},
	})
}

// orders

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req tradeapi.SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SignedPartialTransactionHex == "" {
		respondError(w, http.StatusBadRequest, "missing signed_partial_transaction_hex", "")
		return
	}

	rec, err := s.app.Submit(r.Context(), req.SignedPartialTransactionHex, matcher.OriginAPI)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tradeapi.SubmitResponse{
		ID:        rec.ID.String(),
		Hash:      rec.Hash.String(),
		ExpiresAt: rec.ExpiresAt.Unix(),
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	h, ok := hashVar(w, r)
	if !ok {
		return
	}
	rec, err := s.app.Order(h)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderResponse(s.config, rec))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	h, ok := hashVar(w, r)
	if !ok {
		return
	}
	var req tradeapi.CancelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return
	}
	rec, err := s.app.Cancel(r.Context(), h, sig)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderResponse(s.config, rec))
}

// handleOrders lists the book of one pair (?sell=&buy= symbols), every
// stored order of an account (?account=), or the whole open pool.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("account") != "":
		account, err := ledger.ParseComponentAddress(q.Get("account"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid account", err.Error())
			return
		}
		recs, err := s.app.AccountOrders(account)
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, ordersResponse(s.config, recs))

	case q.Get("sell") != "" || q.Get("buy") != "":
		sell, err := s.config.Resource(q.Get("sell"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "unknown sell token", err.Error())
			return
		}
		buy, err := s.config.Resource(q.Get("buy"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "unknown buy token", err.Error())
			return
		}
		book := s.app.Pool().Book(pool.Pair{Sell: sell, Buy: buy})
		respondJSON(w, http.StatusOK, ordersResponse(s.config, book))

	default:
		respondJSON(w, http.StatusOK, ordersResponse(s.config, s.app.Pool().Snapshot()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"open":       s.app.Pool().Len(),
		"ws_clients": s.hub.Clients(),
		"instamint":  s.app.InstamintEnabled(),
	})
}

// helpers

func hashVar(w http.ResponseWriter, r *http.Request) (intent.Hash, bool) {
	var h intent.Hash
	if err := h.UnmarshalText([]byte(mux.Vars(r)["hash"])); err != nil {
		respondError(w, http.StatusBadRequest, "invalid hash", err.Error())
		return h, false
	}
	return h, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// statusFor maps matcher errors to HTTP statuses. Anything unrecognised is
// a server fault.
func statusFor(err error) (int, string) {
	var rej *subintent.RejectionError
	switch {
	case errors.Is(err, matcher.ErrDuplicate), errors.Is(err, pool.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, matcher.ErrNotOpen):
		return http.StatusConflict, "not open"
	case errors.Is(err, storage.ErrOrderNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, matcher.ErrNotOwner):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, pool.ErrFull):
		return http.StatusServiceUnavailable, "pool full"
	case errors.As(err, &rej),
		errors.Is(err, matcher.ErrMalformed),
		errors.Is(err, matcher.ErrWrongNetwork),
		errors.Is(err, matcher.ErrNoExpiry),
		errors.Is(err, matcher.ErrWrongGate),
		errors.Is(err, matcher.ErrNotSigned),
		errors.Is(err, intent.ErrExpired),
		errors.Is(err, intent.ErrEpochWindow),
		errors.Is(err, intent.ErrNoSignature),
		errors.Is(err, intent.ErrBadSignature),
		errors.Is(err, subintent.ErrIncomplete),
		errors.Is(err, subintent.ErrInsufficientFee),
		errors.Is(err, subintent.ErrConfig):
		return http.StatusUnprocessableEntity, "rejected"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondErr(w http.ResponseWriter, err error) {
	status, label := statusFor(err)
	respondError(w, status, label, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondJSON(w, status, tradeapi.ErrorResponse{Error: error, Message: message})
}
