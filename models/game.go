package models

import "time"

// GameStatus mirrors the game_status column.
type GameStatus string

const (
	GameStatusCreated GameStatus = "Created"
	GameStatusRunning GameStatus = "Running"
	GameStatusClosed  GameStatus = "Closed"
)

func (s GameStatus) Valid() bool {
	switch s {
	case GameStatusCreated, GameStatusRunning, GameStatusClosed:
		return true
	}
	return false
}

// Winner records which card took a tier and on which draw.
type Winner struct {
	CardID   int  `json:"card_id"`
	AtDraw   int  `json:"at_draw"`
	RowIndex *int `json:"row_index,omitempty"`
}

type Game struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Description   *string    `json:"description,omitempty"`
	Variant       string     `json:"variant"`
	Status        GameStatus `json:"game_status"`
	MaxCards      int        `json:"max_cards"`
	CurrentNumber int        `json:"current_number"`
	// Extractions is the whole draw order. It never leaves the server.
	Extractions    []int `json:"-"`
	OwnerID        int   `json:"owner_id"`
	AllowedUserIDs []int `json:"allowed_user_ids"`

	CinquinaPrizeID  *int `json:"cinquina_prize_id,omitempty"`
	BingoPrizeID     *int `json:"bingo_prize_id,omitempty"`
	MiniBingoPrizeID *int `json:"mini_bingo_prize_id,omitempty"`

	Cinquina  *Winner `json:"-"`
	Bingo     *Winner `json:"-"`
	MiniBingo *Winner `json:"-"`

	// DetectionUnresolved is set when starting the game could not settle
	// every tier after all regeneration attempts.
	DetectionUnresolved bool `json:"detection_unresolved"`

	CreatedAt time.Time  `json:"created_at"`
	StartTs   *time.Time `json:"start_ts,omitempty"`
	EndTs     *time.Time `json:"end_ts,omitempty"`
}

// ExtractedNumbers is the prefix of the draw order revealed so far.
func (g *Game) ExtractedNumbers() []int {
	n := g.CurrentNumber
	if n > len(g.Extractions) {
		n = len(g.Extractions)
	}
	out := make([]int, n)
	copy(out, g.Extractions[:n])
	return out
}

// LastExtracted returns the most recently drawn number.
func (g *Game) LastExtracted() (int, bool) {
	if g.CurrentNumber == 0 || g.CurrentNumber > len(g.Extractions) {
		return 0, false
	}
	return g.Extractions[g.CurrentNumber-1], true
}

func (g *Game) Exhausted() bool {
	return g.CurrentNumber >= len(g.Extractions)
}

func (g *Game) IsAllowed(userID int) bool {
	for _, id := range g.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CanView reports whether the user owns the game or may play in it.
func (g *Game) CanView(userID int) bool {
	return g.OwnerID == userID || g.IsAllowed(userID)
}

// Recipients lists the owner and every allowed user, each once.
func (g *Game) Recipients() []int {
	seen := map[int]bool{g.OwnerID: true}
	out := []int{g.OwnerID}
	for _, id := range g.AllowedUserIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ResetDrawState puts the game back to a pre-start condition with a new
// draw order. Cards are untouched.
func (g *Game) ResetDrawState(extractions []int) {
	g.CurrentNumber = 0
	g.Extractions = extractions
	g.Cinquina = nil
	g.Bingo = nil
	g.MiniBingo = nil
	g.DetectionUnresolved = false
	g.StartTs = nil
	g.EndTs = nil
}
