package api

import (
	"encoding/json"
	"net/http"

	"github.com/tonerolima/kobopay/internal/domain"
	"github.com/tonerolima/kobopay/internal/ledger"
	"github.com/tonerolima/kobopay/internal/worker"
)

// airtimeWebhook is the settlement callback the airtime gateway posts
// when a dispatched conversion resolves.
type airtimeWebhook struct {
	Ref     string `json:"ref"`
	Status  string `json:"status"`
	Service string `json:"service"`
	Amount  int64  `json:"amount"`
	Credit  int64  `json:"credit"`
	Charge  int64  `json:"Charge"`
	Sender  string `json:"sender"`
}

const airtimeService = "Airtime2Cash"

// AirtimeWebhook acknowledges the delivery immediately and hands the
// confirmation to the worker pool. The gateway retries on non-2xx, so
// anything we cannot act on is logged and acked rather than bounced.
func (h *Handler) AirtimeWebhook(w http.ResponseWriter, r *http.Request) {
	var payload airtimeWebhook
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		webhooksTotal.WithLabelValues("malformed").Inc()
		h.logger.Warn("malformed webhook payload", "error", err)
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "ignored"})
		return
	}
	if payload.Service != airtimeService || payload.Ref == "" {
		webhooksTotal.WithLabelValues("ignored").Inc()
		h.logger.Warn("unrecognized webhook", "service", payload.Service, "ref", payload.Ref)
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "ignored"})
		return
	}

	status, ok := webhookStatus(payload.Status)
	if !ok {
		webhooksTotal.WithLabelValues("ignored").Inc()
		h.logger.Warn("non-terminal webhook status", "ref", payload.Ref, "status", payload.Status)
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "ignored"})
		return
	}

	patch := &domain.DetailPatch{}
	if payload.Credit > 0 {
		patch.Credit = &payload.Credit
	}
	if payload.Charge > 0 {
		patch.Charge = &payload.Charge
	}
	if payload.Sender != "" {
		patch.Sender = &payload.Sender
	}

	job := worker.ConfirmJob{Params: ledger.ConfirmParams{
		ReferenceID: payload.Ref,
		Status:      status,
		Credit:      payload.Credit,
		Patch:       patch,
	}}
	if !h.pool.Submit(job) {
		webhooksTotal.WithLabelValues("shed").Inc()
		h.logger.Error("confirmation queue full, delivery dropped", "ref", payload.Ref)
		respondWithError(w, http.StatusServiceUnavailable, "try again later")
		return
	}

	if h.eventsURL != "" {
		h.notifier.Send(h.eventsURL, map[string]any{
			"event":        "airtime.settlement",
			"reference_id": payload.Ref,
			"status":       string(status),
			"credit":       payload.Credit,
		})
	}

	webhooksTotal.WithLabelValues("accepted").Inc()
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "received"})
}

// webhookStatus maps the gateway's status vocabulary onto the ledger's
// terminal states.
func webhookStatus(s string) (domain.TxStatus, bool) {
	switch s {
	case "successful", "success", "delivered":
		return domain.StatusSuccessful, true
	case "failed", "fail", "rejected":
		return domain.StatusFailed, true
	}
	return "", false
}
