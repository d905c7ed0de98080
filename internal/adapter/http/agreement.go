package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"meta-ads/internal/core/domain"
)

// DepositHeader carries the amount attached to a payable call, in smallest
// units.
const DepositHeader = "X-Attached-Deposit"

type settleResp struct {
	Settled bool `json:"settled"`
}

// handleFormAgreement books a spot. The deposit travels in DepositHeader;
// a missing header attaches nothing. On success it returns the signed
// agreement with HTTP 201.
func (h *Handler) handleFormAgreement(w http.ResponseWriter, r *http.Request) {
	deposit := decimal.Zero
	if raw := r.Header.Get(DepositHeader); raw != "" {
		var err error
		if deposit, err = domain.ParseAmount(raw); err != nil {
			h.writeError(w, r, "form agreement", err)
			return
		}
	}

	var b domain.Booking
	if err := decodeJSON(w, r, &b); err != nil {
		h.writeError(w, r, "form agreement", err)
		return
	}
	a, err := h.svc.FormAgreement(r.Context(), callerFrom(r.Context()), b, deposit)
	if err != nil {
		h.writeError(w, r, "form agreement", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// handleSettle releases a finished agreement. An unknown id answers
// HTTP 404 with settled=false.
func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "settle", err)
		return
	}
	caller := callerFrom(r.Context())
	ok, err := h.svc.Settle(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, r, "settle", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, settleResp{Settled: false})
		return
	}
	h.logger.Info("settlement triggered", slog.Int64("agreement_id", id), slog.String("caller", caller.Principal))
	writeJSON(w, http.StatusOK, settleResp{Settled: true})
}

func (h *Handler) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "get agreement", err)
		return
	}
	a, err := h.svc.GetAgreement(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get agreement", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.ListAgreements(r.Context())
	if err != nil {
		h.writeError(w, r, "list agreements", err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}
