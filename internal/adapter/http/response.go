package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/pkg/errs"
)

type errorResp struct {
	Error    string `json:"error"`
	Attached string `json:"attached,omitempty"`
	Required string `json:"required,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResp{Error: msg})
}

// statusOf maps the escrow error taxonomy to an HTTP status.
func statusOf(err error) int {
	switch {
	case errs.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errs.Is(err, domain.ErrInsufficientDeposit):
		return http.StatusPaymentRequired
	case errs.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errs.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errs.Is(err, domain.ErrConflict),
		errs.Is(err, domain.ErrAlreadySettled),
		errs.Is(err, domain.ErrAlreadyInitialized):
		return http.StatusConflict
	case errs.Is(err, domain.ErrWindowNotElapsed):
		return http.StatusTooEarly
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs unexpected failures and writes the mapped status. Only
// domain errors reach the client verbatim.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" error",
			slog.Any("error", err),
			slog.Any("stack", errs.ExtractStackLines(err, 8)),
			slog.Any("request_id", r.Context().Value(ctxRequestIDKey)),
		)
		writeJSONError(w, status, "internal error")
		return
	}

	resp := errorResp{Error: err.Error()}
	var depErr *domain.InsufficientDepositError
	if errs.As(err, &depErr) {
		resp.Attached = depErr.Attached.String()
		resp.Required = depErr.Required.String()
	}
	writeJSON(w, status, resp)
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errs.Wrapf(domain.ErrInvalidInput, "invalid id %q", raw)
	}
	return id, nil
}

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(domain.ErrInvalidInput, "invalid JSON")
	}
	return nil
}
