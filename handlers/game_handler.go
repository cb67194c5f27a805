package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/services"
	"github.com/Dosada05/tombola/tombola"
)

type GameHandler struct {
	gameService services.GameService
}

func NewGameHandler(gs services.GameService) *GameHandler {
	return &GameHandler{gameService: gs}
}

type setStatusInput struct {
	Status models.GameStatus `json:"status"`
}

func viewsOf(games []models.Game) []models.GameView {
	out := make([]models.GameView, 0, len(games))
	for i := range games {
		out = append(out, models.NewGameView(&games[i]))
	}
	return out
}

// CreateHandler handles POST /games.
func (h *GameHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var input services.CreateGameInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.CreateGame(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"game": models.NewGameView(game)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /games?user_id=&status=&limit=&offset=.
func (h *GameHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	var filter services.ListGamesFilter
	var err error
	if filter.UserID, err = queryInt(r, "user_id"); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if status := models.GameStatus(r.URL.Query().Get("status")); status != "" {
		if !status.Valid() {
			badRequestResponse(w, r, errors.New("invalid status query parameter"))
			return
		}
		filter.Status = &status
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		n, err := queryInt(r, name)
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
		if n != nil {
			*dst = *n
		}
	}

	games, err := h.gameService.ListGames(r.Context(), actor, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"games": viewsOf(games)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /games/{gameID}.
func (h *GameHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.gameService.GetGame(r.Context(), actor, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateHandler handles PATCH /games/{gameID}.
func (h *GameHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateGameInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.UpdateGame(r.Context(), actor, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": models.NewGameView(game)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SetStatusHandler handles PUT /games/{gameID}/status.
func (h *GameHandler) SetStatusHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input setStatusInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.SetGameStatus(r.Context(), actor, id, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": models.NewGameView(game)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ExtractHandler handles POST /games/{gameID}/extract and draws the next number.
func (h *GameHandler) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.DrawNextNumber(r.Context(), actor, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"game": models.NewGameView(game)}
	if number, ok := game.LastExtracted(); ok {
		response["number"] = number
		if v, err := tombola.VariantByName(game.Variant); err == nil {
			response["label"] = v.Label(number)
		}
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteHandler handles DELETE /games/{gameID}.
func (h *GameHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.gameService.DeleteGame(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
