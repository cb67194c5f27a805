package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/repositories"
	"github.com/Dosada05/tombola/tombola"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTx snapshots the game and card repos and restores them when fn fails,
// so a failed operation leaves nothing behind as a rolled back transaction.
type fakeTx struct {
	mu    sync.Mutex
	calls int
	games *memGameRepo
	cards *memCardRepo
}

func (f *fakeTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	games := f.games.snapshot()
	cards := f.cards.snapshot()
	if err := fn(nil); err != nil {
		f.games.restore(games)
		f.cards.restore(cards)
		return err
	}
	return nil
}

func cloneGame(g *models.Game) *models.Game {
	c := *g
	c.Extractions = append([]int(nil), g.Extractions...)
	c.AllowedUserIDs = append([]int(nil), g.AllowedUserIDs...)
	for _, w := range []**models.Winner{&c.Cinquina, &c.Bingo, &c.MiniBingo} {
		if *w != nil {
			cp := **w
			*w = &cp
		}
	}
	return &c
}

type memGameRepo struct {
	mu     sync.Mutex
	nextID int
	games  map[int]*models.Game
}

func newMemGameRepo() *memGameRepo {
	return &memGameRepo{games: make(map[int]*models.Game)}
}

type gameSnapshot struct {
	nextID int
	games  map[int]*models.Game
}

func (r *memGameRepo) snapshot() gameSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := gameSnapshot{nextID: r.nextID, games: make(map[int]*models.Game, len(r.games))}
	for id, g := range r.games {
		snap.games[id] = cloneGame(g)
	}
	return snap
}

func (r *memGameRepo) restore(snap gameSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID = snap.nextID
	r.games = snap.games
}

func (r *memGameRepo) Create(_ context.Context, _ repositories.SQLExecutor, g *models.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	g.ID = r.nextID
	g.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.games[g.ID] = cloneGame(g)
	return nil
}

func (r *memGameRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	if !ok {
		return nil, repositories.ErrGameNotFound
	}
	return cloneGame(g), nil
}

func (r *memGameRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *memGameRepo) List(_ context.Context, filter repositories.ListGamesFilter) ([]models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Game, 0)
	for _, g := range r.games {
		if filter.VisibleTo != nil && !g.CanView(*filter.VisibleTo) {
			continue
		}
		if filter.Status != nil && g.Status != *filter.Status {
			continue
		}
		out = append(out, *cloneGame(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memGameRepo) Update(_ context.Context, _ repositories.SQLExecutor, g *models.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[g.ID]; !ok {
		return repositories.ErrGameNotFound
	}
	r.games[g.ID] = cloneGame(g)
	return nil
}

func (r *memGameRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[id]; !ok {
		return repositories.ErrGameNotFound
	}
	delete(r.games, id)
	return nil
}

type memCardRepo struct {
	mu     sync.Mutex
	nextID int
	cards  map[int]models.Card
}

func newMemCardRepo() *memCardRepo {
	return &memCardRepo{cards: make(map[int]models.Card)}
}

type cardSnapshot struct {
	nextID int
	cards  map[int]models.Card
}

func (r *memCardRepo) snapshot() cardSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := cardSnapshot{nextID: r.nextID, cards: make(map[int]models.Card, len(r.cards))}
	for id, c := range r.cards {
		snap.cards[id] = c
	}
	return snap
}

func (r *memCardRepo) restore(snap cardSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID = snap.nextID
	r.cards = snap.cards
}

func (r *memCardRepo) Create(_ context.Context, _ repositories.SQLExecutor, c *models.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.cards[c.ID] = *c
	return nil
}

func (r *memCardRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[id]
	if !ok {
		return nil, repositories.ErrCardNotFound
	}
	return &c, nil
}

func (r *memCardRepo) List(_ context.Context, _ repositories.SQLExecutor, filter repositories.ListCardsFilter) ([]models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Card, 0)
	for _, c := range r.cards {
		if filter.GameID != nil && c.GameID != *filter.GameID {
			continue
		}
		if filter.OwnerID != nil && c.OwnerID != *filter.OwnerID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCardRepo) CountByOwner(ctx context.Context, exec repositories.SQLExecutor, gameID, ownerID int) (int, error) {
	cards, _ := r.List(ctx, exec, repositories.ListCardsFilter{GameID: &gameID, OwnerID: &ownerID})
	return len(cards), nil
}

func (r *memCardRepo) UpdateNumbers(_ context.Context, _ repositories.SQLExecutor, id int, numbers tombola.Grid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[id]
	if !ok {
		return repositories.ErrCardNotFound
	}
	c.Numbers = numbers
	r.cards[id] = c
	return nil
}

func (r *memCardRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cards[id]; !ok {
		return repositories.ErrCardNotFound
	}
	delete(r.cards, id)
	return nil
}

func (r *memCardRepo) DeleteByIDs(_ context.Context, _ repositories.SQLExecutor, ids []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.cards, id)
	}
	return nil
}

func (r *memCardRepo) DeleteByGame(_ context.Context, _ repositories.SQLExecutor, gameID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.cards {
		if c.GameID == gameID {
			delete(r.cards, id)
		}
	}
	return nil
}

type memUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]models.User
}

func newMemUserRepo(users ...models.User) *memUserRepo {
	r := &memUserRepo{users: make(map[int]models.User)}
	for _, u := range users {
		r.users[u.ID] = u
		if u.ID > r.nextID {
			r.nextID = u.ID
		}
	}
	return r
}

func (r *memUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return repositories.ErrUserUsernameConflict
		}
		if existing.Email == u.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *memUserRepo) ListByIDs(_ context.Context, ids []int) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memUserRepo) List(_ context.Context, filter repositories.ListUsersFilter) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Search != "" && !strings.Contains(u.Username+" "+u.Name+" "+u.Email, filter.Search) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else {
		out = out[:0]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type memPrizeRepo struct {
	mu     sync.Mutex
	nextID int
	prizes map[int]models.Prize
}

func newMemPrizeRepo() *memPrizeRepo {
	return &memPrizeRepo{prizes: make(map[int]models.Prize)}
}

func (r *memPrizeRepo) Create(_ context.Context, p *models.Prize) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	r.prizes[p.ID] = *p
	return nil
}

func (r *memPrizeRepo) GetByID(_ context.Context, id int) (*models.Prize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prizes[id]
	if !ok {
		return nil, repositories.ErrPrizeNotFound
	}
	return &p, nil
}

func (r *memPrizeRepo) List(_ context.Context) ([]models.Prize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Prize, 0, len(r.prizes))
	for _, p := range r.prizes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memPrizeRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.prizes[id]; !ok {
		return repositories.ErrPrizeNotFound
	}
	delete(r.prizes, id)
	return nil
}

type fakeImageStore struct {
	objects map[string]bool
	deleted []string
}

func (f *fakeImageStore) Exists(_ context.Context, key string) (bool, error) {
	return f.objects[key], nil
}

func (f *fakeImageStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeImageStore) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type notification struct {
	kind   string
	gameID int
	tier   models.Tier
	winner models.Winner
	draw   int
	number int
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) record(e notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) GameAdded(_ context.Context, g *models.Game) {
	n.record(notification{kind: "gameAdded", gameID: g.ID, draw: g.CurrentNumber})
}

func (n *recordingNotifier) GameChanged(_ context.Context, g *models.Game) {
	n.record(notification{kind: "gameUpdate", gameID: g.ID, draw: g.CurrentNumber})
}

func (n *recordingNotifier) NumberDrawn(_ context.Context, g *models.Game, number int) {
	n.record(notification{kind: "extraction", gameID: g.ID, draw: g.CurrentNumber, number: number})
}

func (n *recordingNotifier) GameDeleted(_ context.Context, gameID int, _ *models.Game) {
	n.record(notification{kind: "gameDeleted", gameID: gameID})
}

func (n *recordingNotifier) AchievementReached(_ context.Context, g *models.Game, tier models.Tier, w models.Winner) {
	n.record(notification{kind: "achievement", gameID: g.ID, tier: tier, winner: w, draw: g.CurrentNumber})
}

func (n *recordingNotifier) achievements() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, e := range n.events {
		if e.kind == "achievement" {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.kind
	}
	return out
}

// scriptedSource hands out queued grids first and falls back to a seeded
// generator. Every extraction order is the fixed one when set.
type scriptedSource struct {
	mu    sync.Mutex
	grids []tombola.Grid
	order []int
	gen   *tombola.Generator
	// cardsLeft, when set, is how many more cards may be dealt before Card fails.
	cardsLeft *int
}

func newScriptedSource(order []int, grids ...tombola.Grid) *scriptedSource {
	return &scriptedSource{
		grids: grids,
		order: order,
		gen:   tombola.NewGenerator(rand.NewSource(1)),
	}
}

func (s *scriptedSource) Card(v tombola.Variant) (tombola.Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cardsLeft != nil {
		if *s.cardsLeft == 0 {
			return tombola.Grid{}, errSourceExhausted
		}
		*s.cardsLeft--
	}
	if len(s.grids) > 0 {
		g := s.grids[0]
		s.grids = s.grids[1:]
		return g, nil
	}
	return s.gen.Card(v)
}

func (s *scriptedSource) ExtractionOrder(v tombola.Variant) ([]int, error) {
	if s.order != nil {
		return append([]int(nil), s.order...), nil
	}
	return s.gen.ExtractionOrder(v)
}

var errSourceExhausted = errors.New("card source exhausted")

func (s *scriptedSource) failAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cardsLeft = &n
}

func (s *scriptedSource) push(grids ...tombola.Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grids = append(s.grids, grids...)
}

type testEnv struct {
	tx       *fakeTx
	games    *memGameRepo
	cards    *memCardRepo
	users    *memUserRepo
	prizes   *memPrizeRepo
	images   *fakeImageStore
	source   *scriptedSource
	notifier *recordingNotifier
	locks    *GameLocks
	gameSvc  GameService
	cardSvc  CardService
	now      time.Time
}

var (
	admin    = models.Principal{UserID: 1, Role: models.RoleAdmin}
	playerA  = models.Principal{UserID: 2, Role: models.RoleUser}
	playerB  = models.Principal{UserID: 3, Role: models.RoleUser}
	outsider = models.Principal{UserID: 4, Role: models.RoleUser}
)

func newTestEnv(t *testing.T, source *scriptedSource, cfg GameServiceConfig) *testEnv {
	t.Helper()
	if cfg.DetectionAttempts == 0 {
		cfg.DetectionAttempts = 3
	}
	games, cards := newMemGameRepo(), newMemCardRepo()
	env := &testEnv{
		tx:    &fakeTx{games: games, cards: cards},
		games: games,
		cards: cards,
		users: newMemUserRepo(
			models.User{ID: 1, Username: "admin", Email: "admin@example.com", Role: models.RoleAdmin},
			models.User{ID: 2, Username: "user1", Email: "user1@example.com", Role: models.RoleUser},
			models.User{ID: 3, Username: "user2", Email: "user2@example.com", Role: models.RoleUser},
			models.User{ID: 4, Username: "user3", Email: "user3@example.com", Role: models.RoleUser},
		),
		prizes:   newMemPrizeRepo(),
		images:   &fakeImageStore{objects: map[string]bool{}},
		source:   source,
		notifier: &recordingNotifier{},
		locks:    NewGameLocks(),
		now:      time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC),
	}
	svc := NewGameService(GameServiceDeps{
		Tx:       env.tx,
		Games:    env.games,
		Cards:    env.cards,
		Users:    env.users,
		Prizes:   env.prizes,
		Images:   env.images,
		Source:   env.source,
		Notifier: env.notifier,
		Locks:    env.locks,
		Logger:   discardLogger(),
	}, cfg)
	svc.(*gameService).now = func() time.Time { return env.now }
	env.gameSvc = svc
	env.cardSvc = NewCardService(env.tx, env.games, env.cards, env.source, env.locks, discardLogger())
	return env
}
