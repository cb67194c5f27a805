package broadcast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/tombola"
	"golang.org/x/sync/errgroup"
)

// Event types sent to clients.
const (
	EventGameAdded   = "gameAdded"
	EventGameUpdate  = "gameUpdate"
	EventGameDeleted = "gameDeleted"
	EventExtraction  = "extraction"
	EventAchievement = "achievement"
	EventError       = "error"
)

const maxConcurrentPublishes = 8

// Publisher delivers a message to a room. The Hub publishes locally,
// RedisPublisher through a Redis channel shared by every instance.
type Publisher interface {
	Publish(ctx context.Context, room string, msg Message) error
}

type GameDeletedPayload struct {
	ID int `json:"id"`
}

// ExtractionPayload carries a drawn number and the caption the game's variant
// reads out for it.
type ExtractionPayload struct {
	GameID int    `json:"game_id"`
	Draw   int    `json:"draw"`
	Number int    `json:"number"`
	Label  string `json:"label,omitempty"`
}

type AchievementPayload struct {
	GameID int             `json:"game_id"`
	Tier   models.Tier     `json:"tier"`
	Winner models.Winner   `json:"winner"`
	Game   models.GameView `json:"game"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Notifier sends game events to the owner's and every allowed user's room.
// Failures are logged and never reported back to the caller.
type Notifier struct {
	pub    Publisher
	logger *slog.Logger
}

func NewNotifier(pub Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{pub: pub, logger: logger}
}

func (n *Notifier) GameAdded(ctx context.Context, game *models.Game) {
	n.fanOut(ctx, game.Recipients(), Message{Type: EventGameAdded, Payload: models.NewGameView(game)})
}

func (n *Notifier) GameChanged(ctx context.Context, game *models.Game) {
	n.fanOut(ctx, game.Recipients(), Message{Type: EventGameUpdate, Payload: models.NewGameView(game)})
}

func (n *Notifier) NumberDrawn(ctx context.Context, game *models.Game, number int) {
	payload := ExtractionPayload{GameID: game.ID, Draw: game.CurrentNumber, Number: number}
	if v, err := tombola.VariantByName(game.Variant); err == nil {
		payload.Label = v.Label(number)
	}
	n.fanOut(ctx, game.Recipients(), Message{Type: EventExtraction, Payload: payload})
}

func (n *Notifier) GameDeleted(ctx context.Context, gameID int, last *models.Game) {
	if last == nil {
		return
	}
	n.fanOut(ctx, last.Recipients(), Message{Type: EventGameDeleted, Payload: GameDeletedPayload{ID: gameID}})
}

func (n *Notifier) AchievementReached(ctx context.Context, game *models.Game, tier models.Tier, winner models.Winner) {
	n.fanOut(ctx, game.Recipients(), Message{
		Type: EventAchievement,
		Payload: AchievementPayload{
			GameID: game.ID,
			Tier:   tier,
			Winner: winner,
			Game:   models.NewGameView(game),
		},
	})
}

func (n *Notifier) fanOut(ctx context.Context, userIDs []int, msg Message) {
	var g errgroup.Group
	g.SetLimit(maxConcurrentPublishes)
	for _, userID := range userIDs {
		g.Go(func() error {
			room := UserRoom(userID)
			if err := n.pub.Publish(ctx, room, msg); err != nil {
				return fmt.Errorf("publish %s to %s: %w", msg.Type, room, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		n.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("type", msg.Type),
			slog.Int("recipients", len(userIDs)),
			slog.Any("error", err),
		)
	}
}
