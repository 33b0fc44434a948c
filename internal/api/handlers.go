// Package api is the HTTP surface: auth, transaction booking, history,
// reconciliation, and the gateway webhook receiver.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tonerolima/kobopay/internal/domain"
	"github.com/tonerolima/kobopay/internal/gateway"
	"github.com/tonerolima/kobopay/internal/ledger"
	"github.com/tonerolima/kobopay/internal/notify"
	"github.com/tonerolima/kobopay/internal/reconcile"
	"github.com/tonerolima/kobopay/internal/session"
	"github.com/tonerolima/kobopay/internal/worker"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kobopay_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kobopay_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	webhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kobopay_webhooks_total",
		Help: "Webhook deliveries received, labeled by outcome",
	}, []string{"outcome"})
)

// UserStore is the slice of the persistence layer the handlers need for
// accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Handler struct {
	engine   *ledger.Engine
	recon    *reconcile.Engine
	users    UserStore
	sessions *session.Manager

	resolver  gateway.Resolver
	transfers gateway.Transferer
	airtime   gateway.AirtimeDispatcher
	notifier  *notify.Notifier
	pool      *worker.Pool

	webhookBase string
	eventsURL   string
	logger      *slog.Logger
}

type HandlerConfig struct {
	Engine   *ledger.Engine
	Recon    *reconcile.Engine
	Users    UserStore
	Sessions *session.Manager

	Resolver  gateway.Resolver
	Transfers gateway.Transferer
	Airtime   gateway.AirtimeDispatcher
	Notifier  *notify.Notifier
	Pool      *worker.Pool

	WebhookBase string
	EventsURL   string
	Logger      *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		engine:      cfg.Engine,
		recon:       cfg.Recon,
		users:       cfg.Users,
		sessions:    cfg.Sessions,
		resolver:    cfg.Resolver,
		transfers:   cfg.Transfers,
		airtime:     cfg.Airtime,
		notifier:    cfg.Notifier,
		pool:        cfg.Pool,
		webhookBase: cfg.WebhookBase,
		eventsURL:   cfg.EventsURL,
		logger:      cfg.Logger,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type depositRequest struct {
	Amount      int64  `json:"amount"`
	ReferenceID string `json:"reference_id,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Deposit books a credit. A gateway-settled deposit arrives with its
// reference and a successful status; a manual one is generated a
// reference and defaults to pending.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	txn, err := h.engine.Create(r.Context(), ledger.CreateParams{
		UserID:      user.ID,
		Type:        domain.TypeDeposit,
		Amount:      req.Amount,
		ReferenceID: req.ReferenceID,
		Status:      domain.TxStatus(req.Status),
	})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, txn)
}

type debitRequest struct {
	Amount        int64  `json:"amount"`
	Pin           string `json:"pin"`
	Recipient     string `json:"recipient,omitempty"`
	Remarks       string `json:"remarks,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
}

// Debit books an outbound payment. When bank details are supplied the
// account is resolved and a gateway transfer initiated first; the
// transfer's reference becomes the ledger reference, so the two sides
// reconcile by the same id.
func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req debitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := verifyPin(user, req.Pin); err != nil {
		respondWithDomainError(w, err)
		return
	}

	var (
		ref    string
		status domain.TxStatus
	)
	if req.BankName != "" {
		code, ok := gateway.BankCode(req.BankName)
		if !ok {
			respondWithError(w, http.StatusBadRequest, "unrecognized bank name")
			return
		}
		accountName, err := h.resolver.ResolveAccount(r.Context(), code, req.AccountNumber)
		if err != nil {
			h.logger.Error("account resolution failed", "bank", req.BankName, "error", err)
			respondWithError(w, http.StatusBadGateway, "could not resolve account")
			return
		}
		record, err := h.transfers.InitiateTransfer(r.Context(), req.Amount, req.AccountNumber, req.Remarks)
		if err != nil {
			h.logger.Error("transfer initiation failed", "bank", req.BankName, "error", err)
			respondWithError(w, http.StatusBadGateway, "could not initiate transfer")
			return
		}
		ref = record.Reference
		req.Recipient = accountName
		if record.Status == "success" {
			status = domain.StatusSuccessful
		}
	}

	details, _ := json.Marshal(domain.DebitDetail{
		Recipient: req.Recipient,
		Remarks:   req.Remarks,
	})
	txn, err := h.engine.Create(r.Context(), ledger.CreateParams{
		UserID:      user.ID,
		Type:        domain.TypeDebit,
		Amount:      req.Amount,
		ReferenceID: ref,
		Status:      status,
		Details:     details,
	})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, txn)
}

type airtimeRequest struct {
	Amount          int64  `json:"amount"`
	TelecomProvider string `json:"telecom_provider"`
	Phone           string `json:"phone"`
}

// ConvertAirtime books a pending airtime-to-cash conversion and fires
// the dispatch. The wallet is credited only when the gateway webhook
// confirms; a rejected dispatch fails the transaction immediately.
func (h *Handler) ConvertAirtime(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req airtimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	details, _ := json.Marshal(domain.AirtimeConversionDetail{
		TelecomProvider: req.TelecomProvider,
		Phone:           req.Phone,
	})
	txn, err := h.engine.Create(r.Context(), ledger.CreateParams{
		UserID:  user.ID,
		Type:    domain.TypeAirtimeConversion,
		Amount:  req.Amount,
		Details: details,
	})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	callbackURL := h.webhookBase + "/api/v1/webhooks/airtime"
	if err := h.airtime.DispatchAirtime(r.Context(), req.Amount, req.TelecomProvider, req.Phone, txn.ReferenceID, callbackURL); err != nil {
		h.logger.Error("airtime dispatch failed", "reference_id", txn.ReferenceID, "error", err)
		if _, ferr := h.engine.Confirm(r.Context(), ledger.ConfirmParams{
			ReferenceID: txn.ReferenceID,
			Status:      domain.StatusFailed,
		}); ferr != nil {
			h.logger.Error("failing dispatched transaction failed",
				"reference_id", txn.ReferenceID, "error", ferr)
		}
		respondWithError(w, http.StatusBadGateway, "airtime dispatch rejected")
		return
	}
	respondWithJSON(w, http.StatusAccepted, txn)
}

type billPaymentRequest struct {
	Amount       int64  `json:"amount"`
	Pin          string `json:"pin"`
	BillType     string `json:"bill_type"`
	BillProvider string `json:"bill_provider"`
}

func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req billPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := verifyPin(user, req.Pin); err != nil {
		respondWithDomainError(w, err)
		return
	}

	details, _ := json.Marshal(domain.BillPaymentDetail{
		BillType:     req.BillType,
		BillProvider: req.BillProvider,
	})
	txn, err := h.engine.Create(r.Context(), ledger.CreateParams{
		UserID:  user.ID,
		Type:    domain.TypeBillPayment,
		Amount:  req.Amount,
		Status:  domain.StatusSuccessful,
		Details: details,
	})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, txn)
}

// History returns the caller's joined transaction view. Admins may
// query any user with ?user_id=; type, from and to narrow further.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	filter := ledger.HistoryFilter{UserID: &user.ID}
	if user.Role == domain.RoleAdmin {
		if raw := r.URL.Query().Get("user_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "invalid user_id")
				return
			}
			filter.UserID = &id
		} else {
			filter.UserID = nil
		}
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := domain.TxType(raw)
		if !t.Valid() {
			respondWithError(w, http.StatusBadRequest, "invalid type filter")
			return
		}
		filter.Type = &t
	}
	for param, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid "+param+" timestamp, want RFC 3339")
			return
		}
		*dst = &ts
	}

	rows, err := h.engine.History(r.Context(), filter)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rows)
}

// Reconcile runs the read-only reconciliation pass. Admin only. Matched
// entries whose amounts disagree are pushed to the ops event sink.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	entries, err := h.recon.Run(r.Context())
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	if h.eventsURL != "" {
		var mismatched []domain.ReconciliationEntry
		for _, entry := range entries {
			if entry.Status == domain.ReconStatusReconciled && !entry.AmountsMatch {
				mismatched = append(mismatched, entry)
			}
		}
		if len(mismatched) > 0 {
			h.notifier.Send(h.eventsURL, map[string]any{
				"event":   "reconciliation.amount_mismatch",
				"entries": mismatched,
			})
		}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// Me returns the authenticated user's profile and balance.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, userFrom(r.Context()))
}
