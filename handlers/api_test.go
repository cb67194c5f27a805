package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/tombola/broadcast"
	"github.com/Dosada05/tombola/handlers"
	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/routes"
	"github.com/Dosada05/tombola/services"
	"github.com/Dosada05/tombola/tombola"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var (
	admin  = models.Principal{UserID: 1, Role: models.RoleAdmin}
	player = models.Principal{UserID: 2, Role: models.RoleUser}
)

type stubGameService struct {
	services.GameService
	create func(models.Principal, services.CreateGameInput) (*models.Game, error)
	list   func(models.Principal, services.ListGamesFilter) ([]models.Game, error)
	draw   func(models.Principal, int) (*models.Game, error)
}

func (s *stubGameService) CreateGame(_ context.Context, actor models.Principal, in services.CreateGameInput) (*models.Game, error) {
	return s.create(actor, in)
}

func (s *stubGameService) ListGames(_ context.Context, actor models.Principal, f services.ListGamesFilter) ([]models.Game, error) {
	return s.list(actor, f)
}

func (s *stubGameService) DrawNextNumber(_ context.Context, actor models.Principal, gameID int) (*models.Game, error) {
	return s.draw(actor, gameID)
}

type stubCardService struct {
	services.CardService
	create func(models.Principal, int, int) (*models.Card, error)
	list   func(models.Principal, services.CardFilter) ([]models.Card, error)
}

func (s *stubCardService) CreateCard(_ context.Context, actor models.Principal, gameID, ownerID int) (*models.Card, error) {
	return s.create(actor, gameID, ownerID)
}

func (s *stubCardService) ListCards(_ context.Context, actor models.Principal, f services.CardFilter) ([]models.Card, error) {
	return s.list(actor, f)
}

type stubAuthService struct {
	login func(models.Credentials) (string, *models.User, error)
}

func (s *stubAuthService) Register(_ context.Context, in services.RegisterInput, role models.UserRole) (*models.User, error) {
	return &models.User{ID: 9, Username: in.Username, Email: in.Email, Role: role}, nil
}

func (s *stubAuthService) Login(_ context.Context, creds models.Credentials) (string, *models.User, error) {
	return s.login(creds)
}

type stubUserService struct {
	list func(models.Principal, services.ListUsersFilter) ([]models.User, error)
}

func (s *stubUserService) GetProfile(_ context.Context, actor models.Principal) (*models.User, error) {
	return &models.User{ID: actor.UserID, Username: "me", Role: actor.Role}, nil
}

func (s *stubUserService) ListUsers(_ context.Context, actor models.Principal, f services.ListUsersFilter) ([]models.User, error) {
	return s.list(actor, f)
}

type testAPI struct {
	server *httptest.Server
	games  *stubGameService
	cards  *stubCardService
	auth   *stubAuthService
	users  *stubUserService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := broadcast.NewHub(logger)
	go hub.Run(ctx)

	api := &testAPI{
		games: &stubGameService{},
		cards: &stubCardService{},
		auth:  &stubAuthService{},
		users: &stubUserService{},
	}

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Options{JWTSecret: testSecret, Logger: logger}, routes.Handlers{
		Auth:      handlers.NewAuthHandler(api.auth),
		Variant:   handlers.NewVariantHandler(),
		Game:      handlers.NewGameHandler(api.games),
		Card:      handlers.NewCardHandler(api.cards),
		Prize:     handlers.NewPrizeHandler(nil),
		User:      handlers.NewUserHandler(api.users),
		AdminUser: handlers.NewAdminUserHandler(api.users),
		WebSocket: handlers.NewWebSocketHandler(hub, api.games, nil, logger),
		Health:    handlers.NewHealthHandler(nil, nil, logger),
	})

	api.server = httptest.NewServer(router)
	t.Cleanup(api.server.Close)
	return api
}

func tokenFor(t *testing.T, p models.Principal) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": p.UserID,
		"role":    string(p.Role),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (a *testAPI) do(t *testing.T, method, path string, p *models.Principal, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if p != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *p))
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]json.RawMessage
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func runningGame() *models.Game {
	return &models.Game{
		ID:            7,
		Name:          "Friday",
		Variant:       tombola.DefaultVariant,
		Status:        models.GameStatusRunning,
		MaxCards:      3,
		CurrentNumber: 2,
		Extractions:   []int{5, 77, 12, 40},
		OwnerID:       admin.UserID,
		Bingo:         &models.Winner{CardID: 3, AtDraw: 4},
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do(t, http.MethodGet, "/games", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/games", &player, `{"name":"x"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = api.do(t, http.MethodGet, "/admin/users", &player, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateGame(t *testing.T) {
	api := newTestAPI(t)
	api.games.create = func(actor models.Principal, in services.CreateGameInput) (*models.Game, error) {
		assert.Equal(t, admin, actor)
		assert.Equal(t, "Friday", in.Name)
		assert.Equal(t, []int{2, 3}, in.AllowedUserIDs)
		return &models.Game{ID: 11, Name: in.Name, Variant: tombola.DefaultVariant, Status: models.GameStatusCreated, Extractions: []int{1, 2}}, nil
	}

	resp, body := api.do(t, http.MethodPost, "/games", &admin, `{"name":"Friday","allowed_user_ids":[2,3]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var view models.GameView
	require.NoError(t, json.Unmarshal(body["game"], &view))
	assert.Equal(t, 11, view.ID)
	assert.Empty(t, view.ExtractedNumbers)

	resp, body = api.do(t, http.MethodPost, "/games", &admin, `{"name":"Friday","colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body["error"]), "unknown key")
}

func TestListGamesParsesFilter(t *testing.T) {
	api := newTestAPI(t)
	api.games.list = func(actor models.Principal, f services.ListGamesFilter) ([]models.Game, error) {
		assert.Equal(t, player, actor)
		if assert.NotNil(t, f.Status) {
			assert.Equal(t, models.GameStatusRunning, *f.Status)
		}
		assert.Equal(t, 5, f.Limit)
		return []models.Game{*runningGame()}, nil
	}

	resp, body := api.do(t, http.MethodGet, "/games?status=Running&limit=5", &player, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []models.GameView
	require.NoError(t, json.Unmarshal(body["games"], &views))
	require.Len(t, views, 1)
	assert.Equal(t, []int{5, 77}, views[0].ExtractedNumbers)
	assert.Nil(t, views[0].Bingo, "winner must stay hidden until its draw")

	resp, _ = api.do(t, http.MethodGet, "/games?status=Paused", &player, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExtract(t *testing.T) {
	api := newTestAPI(t)
	api.games.draw = func(actor models.Principal, gameID int) (*models.Game, error) {
		switch gameID {
		case 7:
			return runningGame(), nil
		case 8:
			return nil, services.ErrGameNotRunning
		case 9:
			return nil, services.ErrExtractionsExhausted
		}
		return nil, services.ErrGameNotFound
	}

	resp, body := api.do(t, http.MethodPost, "/games/7/extract", &admin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `77`, string(body["number"]))

	v, err := tombola.VariantByName(tombola.DefaultVariant)
	require.NoError(t, err)
	var label string
	require.NoError(t, json.Unmarshal(body["label"], &label))
	assert.Equal(t, v.Label(77), label)

	for id, status := range map[string]int{
		"8":   http.StatusUnprocessableEntity,
		"9":   http.StatusUnprocessableEntity,
		"10":  http.StatusNotFound,
		"abc": http.StatusBadRequest,
	} {
		resp, _ := api.do(t, http.MethodPost, "/games/"+id+"/extract", &admin, "")
		assert.Equal(t, status, resp.StatusCode, "game %s", id)
	}
}

func TestCreateCard(t *testing.T) {
	api := newTestAPI(t)
	api.cards.create = func(actor models.Principal, gameID, ownerID int) (*models.Card, error) {
		if ownerID == 0 {
			ownerID = actor.UserID
		}
		if ownerID == 99 {
			return nil, services.ErrMaxCardsReached
		}
		return &models.Card{ID: 1, GameID: gameID, OwnerID: ownerID}, nil
	}

	resp, body := api.do(t, http.MethodPost, "/games/7/cards", &player, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var card models.Card
	require.NoError(t, json.Unmarshal(body["card"], &card))
	assert.Equal(t, 7, card.GameID)
	assert.Equal(t, player.UserID, card.OwnerID)

	resp, body = api.do(t, http.MethodPost, "/games/7/cards", &admin, `{"owner_id":4}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body["card"], &card))
	assert.Equal(t, 4, card.OwnerID)

	resp, _ = api.do(t, http.MethodPost, "/games/7/cards", &admin, `{"owner_id":99}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListCardsUsesRouteGame(t *testing.T) {
	api := newTestAPI(t)
	api.cards.list = func(_ models.Principal, f services.CardFilter) ([]models.Card, error) {
		if assert.NotNil(t, f.GameID) {
			assert.Equal(t, 7, *f.GameID)
		}
		return []models.Card{{ID: 1, GameID: 7}}, nil
	}

	resp, body := api.do(t, http.MethodGet, "/games/7/cards", &player, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["cards"])

	resp, _ = api.do(t, http.MethodGet, "/cards?game_id=7", &player, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVariants(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodGet, "/variants", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []struct {
		Name    string `json:"name"`
		Default bool   `json:"default"`
	}
	require.NoError(t, json.Unmarshal(body["variants"], &list))
	require.NotEmpty(t, list)

	defaults := 0
	for _, v := range list {
		if v.Default {
			defaults++
			assert.Equal(t, tombola.DefaultVariant, v.Name)
		}
	}
	assert.Equal(t, 1, defaults)

	resp, _ = api.do(t, http.MethodGet, "/variants/"+tombola.DefaultVariant, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = api.do(t, http.MethodGet, "/variants/Nope", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.auth.login = func(c models.Credentials) (string, *models.User, error) {
		if c.Password != "secret-pass" {
			return "", nil, services.ErrAuthInvalidCredentials
		}
		return "signed", &models.User{ID: 2, Username: c.Username}, nil
	}

	resp, body := api.do(t, http.MethodPost, "/auth/register", nil, `{"username":"ann","email":"ann@example.com","password":"secret-pass"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var registered models.User
	require.NoError(t, json.Unmarshal(body["user"], &registered))
	assert.Equal(t, models.RoleUser, registered.Role)
	assert.Equal(t, "ann", registered.Username)

	resp, _ = api.do(t, http.MethodPost, "/auth/register", nil, `{"username":"ann"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = api.do(t, http.MethodPost, "/auth/login", nil, `{"username":"ann","password":"secret-pass"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"signed"`, string(body["token"]))

	resp, _ = api.do(t, http.MethodPost, "/auth/login", nil, `{"username":"ann","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUserEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.users.list = func(_ models.Principal, f services.ListUsersFilter) ([]models.User, error) {
		assert.Equal(t, "an", f.Search)
		if assert.NotNil(t, f.Role) {
			assert.Equal(t, models.RoleUser, *f.Role)
		}
		assert.Equal(t, 10, f.Offset)
		return []models.User{{ID: 2, Username: "ann"}}, nil
	}

	resp, body := api.do(t, http.MethodGet, "/users/me", &player, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me models.User
	require.NoError(t, json.Unmarshal(body["user"], &me))
	assert.Equal(t, player.UserID, me.ID)

	resp, body = api.do(t, http.MethodGet, "/admin/users?search=an&role=user&offset=10", &admin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []models.User
	require.NoError(t, json.Unmarshal(body["users"], &users))
	require.Len(t, users, 1)
	assert.Equal(t, "ann", users[0].Username)
}

func TestWebSocketExtract(t *testing.T) {
	api := newTestAPI(t)
	api.games.draw = func(actor models.Principal, gameID int) (*models.Game, error) {
		assert.Equal(t, player, actor)
		return nil, services.ErrGameNotRunning
	}

	wsURL := "ws" + strings.TrimPrefix(api.server.URL, "http") + "/ws?token=" + tokenFor(t, player)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	read := func() broadcast.InboundMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg broadcast.InboundMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", read().Type)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "extract", "payload": map[string]int{"game_id": 7}}))
	msg := read()
	assert.Equal(t, broadcast.EventError, msg.Type)
	assert.Contains(t, string(msg.Payload), services.ErrGameNotRunning.Error())

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	msg = read()
	assert.Equal(t, broadcast.EventError, msg.Type)
	assert.Contains(t, string(msg.Payload), "unknown message type")
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)

	wsURL := "ws" + strings.TrimPrefix(api.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
