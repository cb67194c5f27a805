package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/repositories"
	"github.com/Dosada05/tombola/storage"
	"github.com/Dosada05/tombola/tombola"
	"golang.org/x/sync/errgroup"
)

const (
	minMaxCards = 1
	maxMaxCards = 99
)

type CreateGameInput struct {
	Name             string  `json:"name"`
	Description      *string `json:"description"`
	Variant          string  `json:"variant"`
	MaxCards         int     `json:"max_cards"`
	OwnerID          *int    `json:"owner_id"`
	AllowedUserIDs   []int   `json:"allowed_user_ids"`
	CinquinaPrizeID  *int    `json:"cinquina_prize_id"`
	BingoPrizeID     *int    `json:"bingo_prize_id"`
	MiniBingoPrizeID *int    `json:"mini_bingo_prize_id"`
}

// UpdateGameInput carries only the fields to change.
type UpdateGameInput struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	MaxCards         *int    `json:"max_cards"`
	AllowedUserIDs   *[]int  `json:"allowed_user_ids"`
	CinquinaPrizeID  *int    `json:"cinquina_prize_id"`
	BingoPrizeID     *int    `json:"bingo_prize_id"`
	MiniBingoPrizeID *int    `json:"mini_bingo_prize_id"`
}

type ListGamesFilter struct {
	// UserID keeps games owned by or open to this user. Ignored for
	// non-admins, who always see only their own games.
	UserID *int
	Status *models.GameStatus
	Limit  int
	Offset int
}

type GameServiceConfig struct {
	// DefaultOwnerID is used when CreateGameInput.OwnerID is nil. Zero
	// makes the owner mandatory.
	DefaultOwnerID    int
	DetectionAttempts int
}

type GameService interface {
	CreateGame(ctx context.Context, actor models.Principal, input CreateGameInput) (*models.Game, error)
	GetGame(ctx context.Context, actor models.Principal, gameID int) (*models.GameView, error)
	ListGames(ctx context.Context, actor models.Principal, filter ListGamesFilter) ([]models.Game, error)
	UpdateGame(ctx context.Context, actor models.Principal, gameID int, input UpdateGameInput) (*models.Game, error)
	SetGameStatus(ctx context.Context, actor models.Principal, gameID int, status models.GameStatus) (*models.Game, error)
	DrawNextNumber(ctx context.Context, actor models.Principal, gameID int) (*models.Game, error)
	DeleteGame(ctx context.Context, actor models.Principal, gameID int) error
}

type GameServiceDeps struct {
	Tx       repositories.Transactor
	Games    repositories.GameRepository
	Cards    repositories.CardRepository
	Users    repositories.UserRepository
	Prizes   repositories.PrizeRepository
	Images   storage.ImageStore
	Source   CardSource
	Notifier Notifier
	Locks    *GameLocks
	Logger   *slog.Logger
}

type gameService struct {
	tx        repositories.Transactor
	gameRepo  repositories.GameRepository
	cardRepo  repositories.CardRepository
	userRepo  repositories.UserRepository
	prizeRepo repositories.PrizeRepository
	images    storage.ImageStore
	source    CardSource
	notifier  Notifier
	locks     *GameLocks
	cfg       GameServiceConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewGameService(deps GameServiceDeps, cfg GameServiceConfig) GameService {
	if cfg.DetectionAttempts < 1 {
		cfg.DetectionAttempts = 1
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	locks := deps.Locks
	if locks == nil {
		locks = NewGameLocks()
	}
	return &gameService{
		tx:        deps.Tx,
		gameRepo:  deps.Games,
		cardRepo:  deps.Cards,
		userRepo:  deps.Users,
		prizeRepo: deps.Prizes,
		images:    deps.Images,
		source:    deps.Source,
		notifier:  notifier,
		locks:     locks,
		cfg:       cfg,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

func (s *gameService) CreateGame(ctx context.Context, actor models.Principal, input CreateGameInput) (*models.Game, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrGameNameRequired
	}
	if input.MaxCards < minMaxCards || input.MaxCards > maxMaxCards {
		return nil, ErrInvalidMaxCards
	}

	variantName := input.Variant
	if variantName == "" {
		variantName = tombola.DefaultVariant
	}
	variant, err := tombola.VariantByName(variantName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	ownerID := s.cfg.DefaultOwnerID
	if input.OwnerID != nil {
		ownerID = *input.OwnerID
	}
	if ownerID <= 0 {
		return nil, ErrOwnerRequired
	}
	if _, err := s.userRepo.GetByID(ctx, ownerID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: owner %d does not exist", ErrValidationFailed, ownerID)
		}
		return nil, fmt.Errorf("failed to load owner %d: %w", ownerID, err)
	}

	allowed, err := s.resolveAllowedUsers(ctx, input.AllowedUserIDs)
	if err != nil {
		return nil, err
	}
	if err := s.checkPrizes(ctx, input.CinquinaPrizeID, input.BingoPrizeID, input.MiniBingoPrizeID); err != nil {
		return nil, err
	}

	order, err := s.source.ExtractionOrder(variant)
	if err != nil {
		return nil, fmt.Errorf("failed to generate extraction order: %w", err)
	}

	game := &models.Game{
		Name:             name,
		Description:      input.Description,
		Variant:          variant.Name,
		Status:           models.GameStatusCreated,
		MaxCards:         input.MaxCards,
		Extractions:      order,
		OwnerID:          ownerID,
		AllowedUserIDs:   allowed,
		CinquinaPrizeID:  input.CinquinaPrizeID,
		BingoPrizeID:     input.BingoPrizeID,
		MiniBingoPrizeID: input.MiniBingoPrizeID,
	}
	if err := s.gameRepo.Create(ctx, nil, game); err != nil {
		return nil, translateRepoError(err)
	}

	s.logger.InfoContext(ctx, "game created",
		slog.Int("game_id", game.ID),
		slog.String("variant", game.Variant),
		slog.Int("owner_id", game.OwnerID),
		slog.Int("allowed_users", len(game.AllowedUserIDs)),
	)
	s.notifier.GameAdded(ctx, game)
	return game, nil
}

func (s *gameService) GetGame(ctx context.Context, actor models.Principal, gameID int) (*models.GameView, error) {
	game, err := s.gameRepo.GetByID(ctx, nil, gameID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if !canViewGame(actor, game) {
		return nil, ErrForbiddenOperation
	}

	view := models.NewGameView(game)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		owner, err := s.userRepo.GetByID(gCtx, game.OwnerID)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				s.logger.WarnContext(ctx, "game owner missing", slog.Int("game_id", game.ID), slog.Int("owner_id", game.OwnerID))
				return nil
			}
			return fmt.Errorf("failed to load owner %d: %w", game.OwnerID, err)
		}
		view.Owner = owner
		return nil
	})

	g.Go(func() error {
		users, err := s.userRepo.ListByIDs(gCtx, game.AllowedUserIDs)
		if err != nil {
			return fmt.Errorf("failed to load allowed users: %w", err)
		}
		view.AllowedUsers = users
		return nil
	})

	g.Go(func() error {
		var err error
		if view.CinquinaPrize, err = s.loadPrize(gCtx, game.CinquinaPrizeID); err != nil {
			return err
		}
		if view.BingoPrize, err = s.loadPrize(gCtx, game.BingoPrizeID); err != nil {
			return err
		}
		view.MiniBingoPrize, err = s.loadPrize(gCtx, game.MiniBingoPrizeID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load details of game %d: %w", gameID, err)
	}
	return &view, nil
}

func (s *gameService) loadPrize(ctx context.Context, id *int) (*models.Prize, error) {
	if id == nil {
		return nil, nil
	}
	prize, err := s.prizeRepo.GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, repositories.ErrPrizeNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load prize %d: %w", *id, err)
	}
	populatePrizeImageURL(prize, s.images)
	return prize, nil
}

func (s *gameService) ListGames(ctx context.Context, actor models.Principal, filter ListGamesFilter) ([]models.Game, error) {
	repoFilter := repositories.ListGamesFilter{
		Status: filter.Status,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if actor.IsAdmin() {
		repoFilter.VisibleTo = filter.UserID
	} else {
		userID := actor.UserID
		repoFilter.VisibleTo = &userID
	}

	games, err := s.gameRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return games, nil
}

func (s *gameService) UpdateGame(ctx context.Context, actor models.Principal, gameID int, input UpdateGameInput) (*models.Game, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, ErrGameNameRequired
	}
	if input.MaxCards != nil && (*input.MaxCards < minMaxCards || *input.MaxCards > maxMaxCards) {
		return nil, ErrInvalidMaxCards
	}
	var allowed []int
	if input.AllowedUserIDs != nil {
		var err error
		if allowed, err = s.resolveAllowedUsers(ctx, *input.AllowedUserIDs); err != nil {
			return nil, err
		}
	}
	if err := s.checkPrizes(ctx, input.CinquinaPrizeID, input.BingoPrizeID, input.MiniBingoPrizeID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(gameID)
	defer unlock()

	var game *models.Game
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		g, err := s.gameRepo.GetByIDForUpdate(ctx, exec, gameID)
		if err != nil {
			return translateRepoError(err)
		}
		if !canManageGame(actor, g) {
			return ErrForbiddenOperation
		}

		if input.Name != nil {
			g.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			g.Description = input.Description
		}
		if input.MaxCards != nil {
			g.MaxCards = *input.MaxCards
		}
		if input.AllowedUserIDs != nil {
			g.AllowedUserIDs = allowed
		}
		if input.CinquinaPrizeID != nil {
			g.CinquinaPrizeID = input.CinquinaPrizeID
		}
		if input.BingoPrizeID != nil {
			g.BingoPrizeID = input.BingoPrizeID
		}
		if input.MiniBingoPrizeID != nil {
			g.MiniBingoPrizeID = input.MiniBingoPrizeID
		}

		if err := s.gameRepo.Update(ctx, exec, g); err != nil {
			return translateRepoError(err)
		}
		game = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.GameChanged(ctx, game)
	return game, nil
}

func (s *gameService) SetGameStatus(ctx context.Context, actor models.Principal, gameID int, status models.GameStatus) (*models.Game, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	unlock := s.locks.Lock(gameID)
	defer unlock()

	var game *models.Game
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		g, err := s.gameRepo.GetByIDForUpdate(ctx, exec, gameID)
		if err != nil {
			return translateRepoError(err)
		}
		if !canManageGame(actor, g) {
			return ErrForbiddenOperation
		}

		from := g.Status
		switch {
		case status == models.GameStatusCreated:
			err = s.reset(g)
		case from == models.GameStatusCreated && status == models.GameStatusRunning:
			err = s.start(ctx, exec, g)
		case from == models.GameStatusClosed && status == models.GameStatusRunning:
			if err = s.reset(g); err == nil {
				err = s.start(ctx, exec, g)
			}
		case from == models.GameStatusRunning && status == models.GameStatusClosed:
			now := s.now().UTC()
			g.EndTs = &now
			g.Status = models.GameStatusClosed
		default:
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, status)
		}
		if err != nil {
			return err
		}

		if err := s.gameRepo.Update(ctx, exec, g); err != nil {
			return translateRepoError(err)
		}
		s.logger.InfoContext(ctx, "game status changed",
			slog.Int("game_id", g.ID),
			slog.String("from", string(from)),
			slog.String("to", string(g.Status)),
		)
		game = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.GameChanged(ctx, game)
	return game, nil
}

// reset clears draw state and reshuffles. Cards are kept.
func (s *gameService) reset(g *models.Game) error {
	variant, err := tombola.VariantByName(g.Variant)
	if err != nil {
		return fmt.Errorf("game %d: %w", g.ID, err)
	}
	order, err := s.source.ExtractionOrder(variant)
	if err != nil {
		return fmt.Errorf("failed to generate extraction order: %w", err)
	}
	g.ResetDrawState(order)
	g.Status = models.GameStatusCreated
	return nil
}

// start reconciles cards and settles the tiers against the whole draw order.
// Ties trigger a full regeneration of every card, up to DetectionAttempts.
func (s *gameService) start(ctx context.Context, exec repositories.SQLExecutor, g *models.Game) error {
	variant, err := tombola.VariantByName(g.Variant)
	if err != nil {
		return fmt.Errorf("game %d: %w", g.ID, err)
	}
	if len(g.Extractions) != variant.Size() {
		if g.Extractions, err = s.source.ExtractionOrder(variant); err != nil {
			return fmt.Errorf("failed to generate extraction order: %w", err)
		}
	}

	var res tombola.Achievements
	for attempt := 1; attempt <= s.cfg.DetectionAttempts; attempt++ {
		cards, err := s.reconcileCards(ctx, exec, g, variant, attempt > 1)
		if err != nil {
			return err
		}
		res = tombola.DetectAchievements(cardNumbers(cards), g.Extractions)
		if res.Resolved() {
			break
		}
		s.logger.InfoContext(ctx, "tied achievements, regenerating cards",
			slog.Int("game_id", g.ID),
			slog.Int("attempt", attempt),
			slog.Int("cards", len(cards)),
		)
	}

	g.Cinquina = winnerOf(res.Cinquina, true)
	g.Bingo = winnerOf(res.Bingo, false)
	g.MiniBingo = winnerOf(res.MiniBingo, false)
	g.DetectionUnresolved = !res.Resolved()
	if g.DetectionUnresolved {
		s.logger.WarnContext(ctx, "achievements still tied after all attempts",
			slog.Int("game_id", g.ID),
			slog.Int("attempts", s.cfg.DetectionAttempts),
			slog.String("cinquina", string(res.Cinquina.Status)),
			slog.String("bingo", string(res.Bingo.Status)),
			slog.String("mini_bingo", string(res.MiniBingo.Status)),
		)
	}

	now := s.now().UTC()
	g.StartTs = &now
	g.EndTs = nil
	g.Status = models.GameStatusRunning
	return nil
}

// reconcileCards brings every allowed user to exactly MaxCards cards, keeping
// the lowest ids, and returns the game's cards. With regenerate set every card
// gets a fresh layout.
func (s *gameService) reconcileCards(ctx context.Context, exec repositories.SQLExecutor, g *models.Game, v tombola.Variant, regenerate bool) ([]models.Card, error) {
	filter := repositories.ListCardsFilter{GameID: &g.ID}
	existing, err := s.cardRepo.List(ctx, exec, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of game %d: %w", g.ID, err)
	}
	byOwner := make(map[int][]models.Card)
	for _, c := range existing {
		byOwner[c.OwnerID] = append(byOwner[c.OwnerID], c)
	}

	var surplus []int
	for _, userID := range g.AllowedUserIDs {
		owned := byOwner[userID]
		if len(owned) > g.MaxCards {
			for _, c := range owned[g.MaxCards:] {
				surplus = append(surplus, c.ID)
			}
			continue
		}
		for i := len(owned); i < g.MaxCards; i++ {
			grid, err := s.source.Card(v)
			if err != nil {
				return nil, fmt.Errorf("failed to generate card: %w", err)
			}
			card := &models.Card{GameID: g.ID, OwnerID: userID, Numbers: grid}
			if err := s.cardRepo.Create(ctx, exec, card); err != nil {
				return nil, translateRepoError(err)
			}
		}
	}
	if err := s.cardRepo.DeleteByIDs(ctx, exec, surplus); err != nil {
		return nil, err
	}

	cards, err := s.cardRepo.List(ctx, exec, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of game %d: %w", g.ID, err)
	}
	if regenerate {
		for i := range cards {
			grid, err := s.source.Card(v)
			if err != nil {
				return nil, fmt.Errorf("failed to generate card: %w", err)
			}
			if err := s.cardRepo.UpdateNumbers(ctx, exec, cards[i].ID, grid); err != nil {
				return nil, translateRepoError(err)
			}
			cards[i].Numbers = grid
		}
	}
	return cards, nil
}

// DrawNextNumber may be triggered by an admin, the owner or any allowed player.
func (s *gameService) DrawNextNumber(ctx context.Context, actor models.Principal, gameID int) (*models.Game, error) {
	unlock := s.locks.Lock(gameID)
	defer unlock()

	var (
		game    *models.Game
		reached []models.Tier
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		g, err := s.gameRepo.GetByIDForUpdate(ctx, exec, gameID)
		if err != nil {
			return translateRepoError(err)
		}
		if !canViewGame(actor, g) {
			return ErrForbiddenOperation
		}
		if g.Status != models.GameStatusRunning {
			return ErrGameNotRunning
		}
		if g.Exhausted() {
			return ErrExtractionsExhausted
		}

		revealed := g.CurrentNumber
		g.CurrentNumber++
		newly, err := s.settleUnrevealedTiers(ctx, exec, g, revealed)
		if err != nil {
			return err
		}
		if err := s.gameRepo.Update(ctx, exec, g); err != nil {
			return translateRepoError(err)
		}
		reached = reachedTiers(g, newly)
		game = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	number, _ := game.LastExtracted()
	s.logger.DebugContext(ctx, "number drawn",
		slog.Int("game_id", game.ID),
		slog.Int("draw", game.CurrentNumber),
		slog.Int("number", number),
	)
	s.notifier.NumberDrawn(ctx, game, number)
	s.notifier.GameChanged(ctx, game)
	for _, tier := range reached {
		w := game.WinnerFor(tier)
		s.logger.InfoContext(ctx, "achievement reached",
			slog.Int("game_id", game.ID),
			slog.String("tier", string(tier)),
			slog.Int("card_id", w.CardID),
			slog.Int("at_draw", w.AtDraw),
		)
		s.notifier.AchievementReached(ctx, game, tier, *w)
	}
	return game, nil
}

// settleUnrevealedTiers re-runs detection over the current cards for every
// tier not yet revealed, that is unset or won after draw revealed. Cards bought
// or deleted while running can move those winners; revealed ones never change.
func (s *gameService) settleUnrevealedTiers(ctx context.Context, exec repositories.SQLExecutor, g *models.Game, revealed int) (map[models.Tier]bool, error) {
	open := func(tier models.Tier) bool {
		w := g.WinnerFor(tier)
		return w == nil || w.AtDraw > revealed
	}
	if !open(models.TierCinquina) && !open(models.TierBingo) && !open(models.TierMiniBingo) {
		return nil, nil
	}
	cards, err := s.cardRepo.List(ctx, exec, repositories.ListCardsFilter{GameID: &g.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list cards of game %d: %w", g.ID, err)
	}
	numbers := cardNumbers(cards)
	res := tombola.DetectAchievements(numbers, g.Extractions)

	changed := make(map[models.Tier]bool)
	ambiguous := false
	settle := func(tier models.Tier, r tombola.TierResult) {
		if !open(tier) {
			return
		}
		if r.Status == tombola.TierAmbiguous {
			ambiguous = true
		}
		w := winnerOf(r, tier == models.TierCinquina)
		if sameWinner(g.WinnerFor(tier), w) {
			return
		}
		g.SetWinner(tier, w)
		if w != nil {
			changed[tier] = true
		}
	}
	settle(models.TierCinquina, res.Cinquina)
	settle(models.TierBingo, res.Bingo)
	if g.Bingo != nil {
		settle(models.TierMiniBingo, tombola.DetectMiniBingo(numbers, g.Extractions, g.Bingo.CardID))
	} else if open(models.TierMiniBingo) {
		g.MiniBingo = nil
	}
	g.DetectionUnresolved = ambiguous
	return changed, nil
}

// reachedTiers lists the tiers to announce after a draw: those whose winning
// draw is the current one, plus tiers settled late for an earlier draw.
func reachedTiers(g *models.Game, newly map[models.Tier]bool) []models.Tier {
	var out []models.Tier
	for _, tier := range models.Tiers {
		w := g.WinnerFor(tier)
		if w == nil {
			continue
		}
		if w.AtDraw == g.CurrentNumber || (newly[tier] && w.AtDraw < g.CurrentNumber) {
			out = append(out, tier)
		}
	}
	return out
}

func (s *gameService) DeleteGame(ctx context.Context, actor models.Principal, gameID int) error {
	unlock := s.locks.Lock(gameID)
	defer unlock()

	var last *models.Game
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		g, err := s.gameRepo.GetByIDForUpdate(ctx, exec, gameID)
		if err != nil {
			return translateRepoError(err)
		}
		if !canManageGame(actor, g) {
			return ErrForbiddenOperation
		}
		if err := s.cardRepo.DeleteByGame(ctx, exec, gameID); err != nil {
			return err
		}
		if err := s.gameRepo.Delete(ctx, exec, gameID); err != nil {
			return translateRepoError(err)
		}
		last = g
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "game deleted", slog.Int("game_id", gameID))
	s.notifier.GameDeleted(ctx, gameID, last)
	return nil
}

func (s *gameService) resolveAllowedUsers(ctx context.Context, ids []int) ([]int, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return ids, nil
	}
	users, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load allowed users: %w", err)
	}
	found := make(map[int]bool, len(users))
	for _, u := range users {
		found[u.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, fmt.Errorf("%w: allowed user %d does not exist", ErrValidationFailed, id)
		}
	}
	return ids, nil
}

func (s *gameService) checkPrizes(ctx context.Context, ids ...*int) error {
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, err := s.prizeRepo.GetByID(ctx, *id); err != nil {
			if errors.Is(err, repositories.ErrPrizeNotFound) {
				return fmt.Errorf("%w: prize %d does not exist", ErrValidationFailed, *id)
			}
			return fmt.Errorf("failed to load prize %d: %w", *id, err)
		}
	}
	return nil
}
