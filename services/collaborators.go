package services

import (
	"context"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/tombola"
)

// Notifier delivers game events to the owner and every allowed user.
// Delivery is best effort and never fails the operation that triggered it.
type Notifier interface {
	GameAdded(ctx context.Context, game *models.Game)
	GameChanged(ctx context.Context, game *models.Game)
	// NumberDrawn announces the number just extracted by a draw.
	NumberDrawn(ctx context.Context, game *models.Game, number int)
	GameDeleted(ctx context.Context, gameID int, last *models.Game)
	AchievementReached(ctx context.Context, game *models.Game, tier models.Tier, winner models.Winner)
}

// CardSource supplies card layouts and draw orders. *tombola.Generator
// satisfies it.
type CardSource interface {
	Card(v tombola.Variant) (tombola.Grid, error)
	ExtractionOrder(v tombola.Variant) ([]int, error)
}

type noopNotifier struct{}

func (noopNotifier) GameAdded(context.Context, *models.Game)        {}
func (noopNotifier) GameChanged(context.Context, *models.Game)      {}
func (noopNotifier) NumberDrawn(context.Context, *models.Game, int) {}
func (noopNotifier) GameDeleted(context.Context, int, *models.Game) {}
func (noopNotifier) AchievementReached(context.Context, *models.Game, models.Tier, models.Winner) {
}
