package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/repositories"
	"github.com/Dosada05/tombola/tombola"
)

type CardFilter struct {
	GameID  *int
	OwnerID *int
}

type CardService interface {
	// CreateCard issues one card to ownerID in gameID. A zero ownerID means
	// the caller.
	CreateCard(ctx context.Context, actor models.Principal, gameID, ownerID int) (*models.Card, error)
	GetCard(ctx context.Context, actor models.Principal, cardID int) (*models.Card, error)
	ListCards(ctx context.Context, actor models.Principal, filter CardFilter) ([]models.Card, error)
	DeleteCard(ctx context.Context, actor models.Principal, cardID int) error
}

type cardService struct {
	tx       repositories.Transactor
	gameRepo repositories.GameRepository
	cardRepo repositories.CardRepository
	source   CardSource
	locks    *GameLocks
	logger   *slog.Logger
}

func NewCardService(
	tx repositories.Transactor,
	gameRepo repositories.GameRepository,
	cardRepo repositories.CardRepository,
	source CardSource,
	locks *GameLocks,
	logger *slog.Logger,
) CardService {
	return &cardService{
		tx:       tx,
		gameRepo: gameRepo,
		cardRepo: cardRepo,
		source:   source,
		locks:    locks,
		logger:   logger,
	}
}

func (s *cardService) CreateCard(ctx context.Context, actor models.Principal, gameID, ownerID int) (*models.Card, error) {
	if ownerID == 0 {
		ownerID = actor.UserID
	}

	unlock := s.locks.Lock(gameID)
	defer unlock()

	var card *models.Card
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		game, err := s.gameRepo.GetByIDForUpdate(ctx, exec, gameID)
		if err != nil {
			return translateRepoError(err)
		}
		if ownerID != actor.UserID && !canManageGame(actor, game) {
			return ErrForbiddenOperation
		}
		if !game.IsAllowed(ownerID) {
			return fmt.Errorf("%w: user %d may not hold cards in game %d", ErrForbiddenOperation, ownerID, gameID)
		}
		if game.Status == models.GameStatusClosed {
			return ErrGameClosed
		}

		count, err := s.cardRepo.CountByOwner(ctx, exec, gameID, ownerID)
		if err != nil {
			return err
		}
		if count >= game.MaxCards {
			return ErrMaxCardsReached
		}

		variant, err := tombola.VariantByName(game.Variant)
		if err != nil {
			return fmt.Errorf("game %d: %w", gameID, err)
		}
		grid, err := s.source.Card(variant)
		if err != nil {
			return fmt.Errorf("failed to generate card: %w", err)
		}

		card = &models.Card{GameID: gameID, OwnerID: ownerID, Numbers: grid}
		if err := s.cardRepo.Create(ctx, exec, card); err != nil {
			return translateRepoError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "card created",
		slog.Int("card_id", card.ID),
		slog.Int("game_id", gameID),
		slog.Int("owner_id", ownerID),
	)
	return card, nil
}

func (s *cardService) GetCard(ctx context.Context, actor models.Principal, cardID int) (*models.Card, error) {
	card, err := s.cardRepo.GetByID(ctx, nil, cardID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if actor.IsAdmin() || card.OwnerID == actor.UserID {
		return card, nil
	}
	game, err := s.gameRepo.GetByID(ctx, nil, card.GameID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if game.OwnerID != actor.UserID {
		return nil, ErrForbiddenOperation
	}
	return card, nil
}

// ListCards returns cards ordered by id. Players see only their own cards
// unless they own the game being listed.
func (s *cardService) ListCards(ctx context.Context, actor models.Principal, filter CardFilter) ([]models.Card, error) {
	repoFilter := repositories.ListCardsFilter{GameID: filter.GameID, OwnerID: filter.OwnerID}

	if !actor.IsAdmin() {
		ownsGame := false
		if filter.GameID != nil {
			game, err := s.gameRepo.GetByID(ctx, nil, *filter.GameID)
			if err != nil {
				return nil, translateRepoError(err)
			}
			if !canViewGame(actor, game) {
				return nil, ErrForbiddenOperation
			}
			ownsGame = game.OwnerID == actor.UserID
		}
		if !ownsGame {
			if filter.OwnerID != nil && *filter.OwnerID != actor.UserID {
				return nil, ErrForbiddenOperation
			}
			userID := actor.UserID
			repoFilter.OwnerID = &userID
		}
	}

	cards, err := s.cardRepo.List(ctx, nil, repoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

func (s *cardService) DeleteCard(ctx context.Context, actor models.Principal, cardID int) error {
	card, err := s.cardRepo.GetByID(ctx, nil, cardID)
	if err != nil {
		return translateRepoError(err)
	}

	unlock := s.locks.Lock(card.GameID)
	defer unlock()

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		game, err := s.gameRepo.GetByIDForUpdate(ctx, exec, card.GameID)
		if err != nil {
			return translateRepoError(err)
		}
		if !canManageGame(actor, game) {
			return ErrForbiddenOperation
		}
		return translateRepoError(s.cardRepo.Delete(ctx, exec, cardID))
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "card deleted", slog.Int("card_id", cardID), slog.Int("game_id", card.GameID))
	return nil
}
