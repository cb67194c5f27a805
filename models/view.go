package models

import "time"

// Tier names one of the three prizes of a game.
type Tier string

const (
	TierCinquina  Tier = "cinquina"
	TierBingo     Tier = "bingo"
	TierMiniBingo Tier = "miniBingo"
)

var Tiers = []Tier{TierCinquina, TierBingo, TierMiniBingo}

// WinnerFor returns the stored winner of tier, revealed or not.
func (g *Game) WinnerFor(t Tier) *Winner {
	switch t {
	case TierCinquina:
		return g.Cinquina
	case TierBingo:
		return g.Bingo
	case TierMiniBingo:
		return g.MiniBingo
	}
	return nil
}

func (g *Game) SetWinner(t Tier, w *Winner) {
	switch t {
	case TierCinquina:
		g.Cinquina = w
	case TierBingo:
		g.Bingo = w
	case TierMiniBingo:
		g.MiniBingo = w
	}
}

// RevealedWinner returns the winner of tier only once the draw has reached it.
func (g *Game) RevealedWinner(t Tier) *Winner {
	w := g.WinnerFor(t)
	if w == nil || g.CurrentNumber < w.AtDraw {
		return nil
	}
	return w
}

// GameView is what clients see of a game. The draw order beyond the current
// position and winners not yet reached stay hidden.
type GameView struct {
	ID               int        `json:"id"`
	Name             string     `json:"name"`
	Description      *string    `json:"description,omitempty"`
	Variant          string     `json:"variant"`
	Status           GameStatus `json:"game_status"`
	MaxCards         int        `json:"max_cards"`
	CurrentNumber    int        `json:"current_number"`
	ExtractedNumbers []int      `json:"extracted_numbers"`
	LastExtracted    *int       `json:"last_extracted,omitempty"`
	OwnerID          int        `json:"owner_id"`
	AllowedUserIDs   []int      `json:"allowed_user_ids"`

	CinquinaPrizeID  *int `json:"cinquina_prize_id,omitempty"`
	BingoPrizeID     *int `json:"bingo_prize_id,omitempty"`
	MiniBingoPrizeID *int `json:"mini_bingo_prize_id,omitempty"`

	Cinquina  *Winner `json:"cinquina,omitempty"`
	Bingo     *Winner `json:"bingo,omitempty"`
	MiniBingo *Winner `json:"mini_bingo,omitempty"`

	DetectionUnresolved bool       `json:"detection_unresolved"`
	CreatedAt           time.Time  `json:"created_at"`
	StartTs             *time.Time `json:"start_ts,omitempty"`
	EndTs               *time.Time `json:"end_ts,omitempty"`
	// DurationSeconds is set once the game has both started and ended.
	DurationSeconds *int64 `json:"duration,omitempty"`

	Owner          *User  `json:"owner,omitempty"`
	AllowedUsers   []User `json:"allowed_users,omitempty"`
	CinquinaPrize  *Prize `json:"cinquina_prize,omitempty"`
	BingoPrize     *Prize `json:"bingo_prize,omitempty"`
	MiniBingoPrize *Prize `json:"mini_bingo_prize,omitempty"`
}

func NewGameView(g *Game) GameView {
	v := GameView{
		ID:                  g.ID,
		Name:                g.Name,
		Description:         g.Description,
		Variant:             g.Variant,
		Status:              g.Status,
		MaxCards:            g.MaxCards,
		CurrentNumber:       g.CurrentNumber,
		ExtractedNumbers:    g.ExtractedNumbers(),
		OwnerID:             g.OwnerID,
		AllowedUserIDs:      append([]int{}, g.AllowedUserIDs...),
		CinquinaPrizeID:     g.CinquinaPrizeID,
		BingoPrizeID:        g.BingoPrizeID,
		MiniBingoPrizeID:    g.MiniBingoPrizeID,
		Cinquina:            g.RevealedWinner(TierCinquina),
		Bingo:               g.RevealedWinner(TierBingo),
		MiniBingo:           g.RevealedWinner(TierMiniBingo),
		DetectionUnresolved: g.DetectionUnresolved,
		CreatedAt:           g.CreatedAt,
		StartTs:             g.StartTs,
		EndTs:               g.EndTs,
	}
	if n, ok := g.LastExtracted(); ok {
		v.LastExtracted = &n
	}
	if g.StartTs != nil && g.EndTs != nil {
		d := int64(g.EndTs.Sub(*g.StartTs).Seconds())
		v.DurationSeconds = &d
	}
	return v
}
