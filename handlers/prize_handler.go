package handlers

import (
	"net/http"

	"github.com/Dosada05/tombola/services"
)

type PrizeHandler struct {
	prizeService services.PrizeService
}

func NewPrizeHandler(ps services.PrizeService) *PrizeHandler {
	return &PrizeHandler{prizeService: ps}
}

func (h *PrizeHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var input services.CreatePrizeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	prize, err := h.prizeService.CreatePrize(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"prize": prize}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PrizeHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	prizes, err := h.prizeService.ListPrizes(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"prizes": prizes}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PrizeHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "prizeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	prize, err := h.prizeService.GetPrize(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"prize": prize}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PrizeHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "prizeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.prizeService.DeletePrize(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
