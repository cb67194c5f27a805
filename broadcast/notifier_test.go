package broadcast

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/tombola"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	room string
	msg  Message
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
	fail map[string]bool
}

func (p *recordingPublisher) Publish(_ context.Context, room string, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[room] {
		return errors.New("connection reset")
	}
	p.sent = append(p.sent, published{room: room, msg: msg})
	return nil
}

func (p *recordingPublisher) rooms() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, s := range p.sent {
		out[i] = s.room
	}
	sort.Strings(out)
	return out
}

func sampleGame() *models.Game {
	return &models.Game{
		ID:             4,
		Name:           "Vigilia",
		Status:         models.GameStatusRunning,
		OwnerID:        1,
		AllowedUserIDs: []int{2, 3, 1},
		Extractions:    []int{17, 5, 90},
		CurrentNumber:  1,
		Bingo:          &models.Winner{CardID: 9, AtDraw: 3},
	}
}

func TestNotifierAddressesOwnerAndAllowedUsers(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub, discardLogger())

	n.GameChanged(context.Background(), sampleGame())

	assert.Equal(t, []string{"user_1", "user_2", "user_3"}, pub.rooms())
	view, ok := pub.sent[0].msg.Payload.(models.GameView)
	require.True(t, ok)
	assert.Equal(t, EventGameUpdate, pub.sent[0].msg.Type)
	assert.Equal(t, []int{17}, view.ExtractedNumbers)
	assert.Nil(t, view.Bingo, "winner stays hidden until its draw")
}

func TestNotifierEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	n := NewNotifier(pub, discardLogger())
	g := sampleGame()

	n.GameAdded(ctx, g)
	n.AchievementReached(ctx, g, models.TierBingo, *g.Bingo)
	n.GameDeleted(ctx, g.ID, g)
	n.GameDeleted(ctx, 99, nil)

	types := map[string]int{}
	for _, s := range pub.sent {
		types[s.msg.Type]++
	}
	assert.Equal(t, map[string]int{EventGameAdded: 3, EventAchievement: 3, EventGameDeleted: 3}, types)

	for _, s := range pub.sent {
		switch p := s.msg.Payload.(type) {
		case AchievementPayload:
			assert.Equal(t, models.TierBingo, p.Tier)
			assert.Equal(t, 9, p.Winner.CardID)
		case GameDeletedPayload:
			assert.Equal(t, g.ID, p.ID)
		}
	}
}

func TestNotifierExtractionCarriesLabel(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub, discardLogger())
	g := sampleGame()
	g.Variant = tombola.DefaultVariant

	n.NumberDrawn(context.Background(), g, 17)

	require.Len(t, pub.sent, 3)
	v, err := tombola.VariantByName(tombola.DefaultVariant)
	require.NoError(t, err)
	for _, s := range pub.sent {
		assert.Equal(t, EventExtraction, s.msg.Type)
		assert.Equal(t, ExtractionPayload{GameID: 4, Draw: 1, Number: 17, Label: v.Label(17)}, s.msg.Payload)
	}

	pub = &recordingPublisher{}
	n = NewNotifier(pub, discardLogger())
	g.Variant = "Unknown"
	n.NumberDrawn(context.Background(), g, 5)
	require.Len(t, pub.sent, 3)
	assert.Empty(t, pub.sent[0].msg.Payload.(ExtractionPayload).Label)
}

func TestNotifierSurvivesPublishFailures(t *testing.T) {
	pub := &recordingPublisher{fail: map[string]bool{"user_2": true}}
	n := NewNotifier(pub, discardLogger())

	n.GameChanged(context.Background(), sampleGame())

	assert.Equal(t, []string{"user_1", "user_3"}, pub.rooms())
}
