package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/repositories"
	"github.com/Dosada05/tombola/storage"
	"github.com/Dosada05/tombola/tombola"
)

// translateRepoError maps storage errors onto the service error set.
func translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repositories.ErrCardNotFound):
		return ErrCardNotFound
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrPrizeNotFound):
		return ErrPrizeNotFound
	case errors.Is(err, repositories.ErrGameInvalidOwner),
		errors.Is(err, repositories.ErrGameInvalidPrize),
		errors.Is(err, repositories.ErrCardInvalidGame),
		errors.Is(err, repositories.ErrCardInvalidOwner):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	case errors.Is(err, repositories.ErrUserUsernameConflict):
		return ErrUsernameConflict
	case errors.Is(err, repositories.ErrUserEmailConflict):
		return ErrEmailConflict
	}
	return err
}

func canManageGame(actor models.Principal, g *models.Game) bool {
	return actor.IsAdmin() || g.OwnerID == actor.UserID
}

func canViewGame(actor models.Principal, g *models.Game) bool {
	return actor.IsAdmin() || g.CanView(actor.UserID)
}

func cardNumbers(cards []models.Card) []tombola.CardNumbers {
	out := make([]tombola.CardNumbers, len(cards))
	for i, c := range cards {
		out[i] = tombola.CardNumbers{ID: c.ID, Grid: c.Numbers}
	}
	return out
}

// winnerOf converts a settled tier into a stored winner; anything else is nil.
func winnerOf(r tombola.TierResult, withRow bool) *models.Winner {
	if !r.Won() {
		return nil
	}
	w := &models.Winner{CardID: r.CardID, AtDraw: r.AtDraw}
	if withRow {
		row := r.RowIndex
		w.RowIndex = &row
	}
	return w
}

func sameWinner(a, b *models.Winner) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.CardID != b.CardID || a.AtDraw != b.AtDraw {
		return false
	}
	if a.RowIndex == nil || b.RowIndex == nil {
		return a.RowIndex == b.RowIndex
	}
	return *a.RowIndex == *b.RowIndex
}

func populatePrizeImageURL(p *models.Prize, images storage.ImageStore) {
	if p == nil || p.ImageKey == nil || *p.ImageKey == "" || images == nil {
		return
	}
	if url := images.GetPublicURL(*p.ImageKey); url != "" {
		p.ImageURL = &url
	}
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
