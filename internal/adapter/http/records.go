package httpadapter

import (
	"net/http"

	"meta-ads/internal/core/port"
)

// handleRegisterCreative stores a creative owned by the caller and returns
// it with HTTP 201.
func (h *Handler) handleRegisterCreative(w http.ResponseWriter, r *http.Request) {
	var req port.CreativeReq
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "register creative", err)
		return
	}
	c, err := h.svc.RegisterCreative(r.Context(), callerFrom(r.Context()), req)
	if err != nil {
		h.writeError(w, r, "register creative", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGetCreative(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "get creative", err)
		return
	}
	c, err := h.svc.GetCreative(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get creative", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleListCreatives returns all creatives as an object keyed by id.
func (h *Handler) handleListCreatives(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.ListCreatives(r.Context())
	if err != nil {
		h.writeError(w, r, "list creatives", err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// handleRegisterAdSpot stores an ad spot owned by the caller. The price in
// the body is in whole currency units.
func (h *Handler) handleRegisterAdSpot(w http.ResponseWriter, r *http.Request) {
	var req port.AdSpotReq
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "register ad spot", err)
		return
	}
	sp, err := h.svc.RegisterAdSpot(r.Context(), callerFrom(r.Context()), req)
	if err != nil {
		h.writeError(w, r, "register ad spot", err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (h *Handler) handleGetAdSpot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, "get ad spot", err)
		return
	}
	sp, err := h.svc.GetAdSpot(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get ad spot", err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (h *Handler) handleListAdSpots(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.ListAdSpots(r.Context())
	if err != nil {
		h.writeError(w, r, "list ad spots", err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}
