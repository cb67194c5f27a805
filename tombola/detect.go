package tombola

// MinDrawsForWin is the smallest draw count at which a row can be complete.
const MinDrawsForWin = FilledPerRow

type TierStatus string

const (
	// TierPending means no card completes the tier within the given draws.
	TierPending TierStatus = "pending"
	TierWon     TierStatus = "won"
	// TierAmbiguous means several candidates complete at the same minimal draw
	// count. Callers treat it as "not enough information", never as a split.
	TierAmbiguous TierStatus = "ambiguous"
)

type TierResult struct {
	Status TierStatus `json:"status"`
	CardID int        `json:"card_id,omitempty"`
	AtDraw int        `json:"at_draw,omitempty"`
	// RowIndex is only meaningful for cinquina.
	RowIndex   int   `json:"row_index,omitempty"`
	Contenders []int `json:"contenders,omitempty"`
}

func (r TierResult) Won() bool { return r.Status == TierWon }

type Achievements struct {
	Cinquina  TierResult `json:"cinquina"`
	Bingo     TierResult `json:"bingo"`
	MiniBingo TierResult `json:"mini_bingo"`
}

// Resolved is false when any tier ended in a tie.
func (a Achievements) Resolved() bool {
	return a.Cinquina.Status != TierAmbiguous &&
		a.Bingo.Status != TierAmbiguous &&
		a.MiniBingo.Status != TierAmbiguous
}

type CardNumbers struct {
	ID   int
	Grid Grid
}

type candidate struct {
	cardID int
	row    int
	set    []int
}

// DetectAchievements finds, for each tier, the smallest draw count k at which
// exactly one candidate has all of its numbers within drawn[:k].
func DetectAchievements(cards []CardNumbers, drawn []int) Achievements {
	pos := drawPositions(drawn)

	rows := make([]candidate, 0, len(cards)*Rows)
	full := make([]candidate, 0, len(cards))
	for _, c := range cards {
		for row := 0; row < Rows; row++ {
			rows = append(rows, candidate{cardID: c.ID, row: row, set: c.Grid.Row(row)})
		}
		full = append(full, candidate{cardID: c.ID, set: c.Grid.Numbers()})
	}

	res := Achievements{
		Cinquina:  earliest(rows, pos),
		Bingo:     earliest(full, pos),
		MiniBingo: TierResult{Status: TierPending},
	}

	if res.Bingo.Won() {
		res.MiniBingo = earliest(excluding(full, res.Bingo.CardID), pos)
	}
	return res
}

// DetectMiniBingo runs the bingo scan over every card except bingoCardID.
// It serves callers that already hold a settled bingo winner.
func DetectMiniBingo(cards []CardNumbers, drawn []int, bingoCardID int) TierResult {
	full := make([]candidate, 0, len(cards))
	for _, c := range cards {
		full = append(full, candidate{cardID: c.ID, set: c.Grid.Numbers()})
	}
	return earliest(excluding(full, bingoCardID), drawPositions(drawn))
}

func excluding(cands []candidate, cardID int) []candidate {
	rest := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if c.cardID != cardID {
			rest = append(rest, c)
		}
	}
	return rest
}

func drawPositions(drawn []int) map[int]int {
	pos := make(map[int]int, len(drawn))
	for i, n := range drawn {
		if _, ok := pos[n]; !ok {
			pos[n] = i + 1
		}
	}
	return pos
}

// completion is the draw count at which every number of set has appeared,
// or 0 if some number never appears.
func completion(set []int, pos map[int]int) int {
	if len(set) == 0 {
		return 0
	}
	k := 0
	for _, n := range set {
		p, ok := pos[n]
		if !ok {
			return 0
		}
		if p > k {
			k = p
		}
	}
	return k
}

func earliest(cands []candidate, pos map[int]int) TierResult {
	best := 0
	var winners []candidate
	for _, c := range cands {
		k := completion(c.set, pos)
		if k == 0 || k < MinDrawsForWin {
			continue
		}
		switch {
		case best == 0 || k < best:
			best = k
			winners = append(winners[:0], c)
		case k == best:
			winners = append(winners, c)
		}
	}

	switch len(winners) {
	case 0:
		return TierResult{Status: TierPending}
	case 1:
		return TierResult{Status: TierWon, CardID: winners[0].cardID, AtDraw: best, RowIndex: winners[0].row}
	default:
		ids := make([]int, 0, len(winners))
		for _, w := range winners {
			ids = append(ids, w.cardID)
		}
		return TierResult{Status: TierAmbiguous, AtDraw: best, Contenders: ids}
	}
}
