package faucet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"token-faucet/faucet/domain"
)

// Disburser é o que o adapter precisa do caso de uso; permite dublê nos testes.
type Disburser interface {
	Disburse(ctx context.Context, recipient, origin string) domain.Outcome
}

type Handler struct {
	svc       Disburser
	chain     domain.ChainClient
	custodial string
	amount    domain.Coin
	originFn  OriginFunc

	// retryAfter é a dica devolvida com 429 de cota; a janela é de 24h,
	// então a recomendação é conservadora, não exata.
	retryAfter time.Duration

	log zerolog.Logger
}

type HandlerOption func(*Handler)

func WithOriginFunc(fn OriginFunc) HandlerOption {
	return func(h *Handler) { h.originFn = fn }
}

func WithRetryAfter(d time.Duration) HandlerOption {
	return func(h *Handler) { h.retryAfter = d }
}

func NewHandler(svc Disburser, chain domain.ChainClient, custodialAddress string, amount domain.Coin, log zerolog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:        svc,
		chain:      chain,
		custodial:  custodialAddress,
		amount:     amount,
		originFn:   DefaultOriginFunc(false),
		retryAfter: 1 * time.Hour,
		log:        log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes monta o router. O middleware de rajada (se houver) protege só o
// endpoint de crédito; status e health ficam fora.
func (h *Handler) Routes(burst func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/status", h.Status)
	r.Group(func(gr chi.Router) {
		if burst != nil {
			gr.Use(burst)
		}
		gr.Post("/credit", h.Credit)
	})
	return r
}

type creditRequest struct {
	Address string `json:"address"`
}

type creditResponse struct {
	TransactionHash string `json:"transactionHash"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be JSON with an \"address\" field"})
		return
	}

	origin := h.originFn(r)
	outcome := h.svc.Disburse(r.Context(), req.Address, origin)
	if outcome.OK {
		writeJSON(w, http.StatusOK, creditResponse{TransactionHash: outcome.TxHash})
		return
	}

	switch {
	case errors.Is(outcome.Err, domain.ErrInvalidRecipient):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid recipient address"})
	case errors.Is(outcome.Err, domain.ErrQuotaExceeded):
		w.Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "quota exceeded, try again later"})
	case domain.IsConfigError(outcome.Err), errors.Is(outcome.Err, domain.ErrQuotaStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "faucet unavailable"})
	default:
		// falha de chain/rede: detalhe fica no log, o chamador vê falha opaca
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "faucet unavailable"})
	}
}

type statusResponse struct {
	ChainID   string        `json:"chainId"`
	Custodial string        `json:"custodialAddress"`
	Amount    domain.Coin   `json:"creditAmount"`
	Balances  []domain.Coin `json:"balances"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := h.chain.ChainID(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("status: chain unreachable")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "chain unreachable"})
		return
	}

	balances, err := h.chain.AllBalances(ctx, h.custodial)
	if err != nil {
		h.log.Error().Err(err).Msg("status: balance query failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "chain unreachable"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		ChainID:   id,
		Custodial: h.custodial,
		Amount:    h.amount,
		Balances:  balances,
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
