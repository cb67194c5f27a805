package handlers

import (
	"net/http"

	"github.com/Dosada05/tombola/services"
)

type CardHandler struct {
	cardService services.CardService
}

func NewCardHandler(cs services.CardService) *CardHandler {
	return &CardHandler{cardService: cs}
}

type createCardInput struct {
	OwnerID int `json:"owner_id"`
}

// CreateHandler handles POST /games/{gameID}/cards. Without a body the card
// goes to the caller.
func (h *CardHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input createCardInput
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	card, err := h.cardService.CreateCard(r.Context(), actor, gameID, input.OwnerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"card": card}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /cards?game_id=&owner_id= and GET /games/{gameID}/cards.
func (h *CardHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var filter services.CardFilter
	var err error
	if filter.GameID, err = queryInt(r, "game_id"); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if filter.OwnerID, err = queryInt(r, "owner_id"); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if routeGameID, err := getIDFromURL(r, "gameID"); err == nil {
		filter.GameID = &routeGameID
	}

	cards, err := h.cardService.ListCards(r.Context(), actor, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"cards": cards}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CardHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "cardID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	card, err := h.cardService.GetCard(r.Context(), actor, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"card": card}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CardHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "cardID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.cardService.DeleteCard(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
