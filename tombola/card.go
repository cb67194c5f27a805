package tombola

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

const (
	Rows         = 3
	Columns      = 9
	FilledPerRow = 5
	BlankPerRow  = Columns - FilledPerRow

	// Blank marks an empty cell. It is also the value clients receive.
	Blank = -1

	maxBlankAttempts = 64
)

var (
	ErrInvalidGrid         = errors.New("invalid card layout")
	ErrLayoutUnsatisfiable = errors.New("card layout cannot satisfy column coverage")
)

// Grid is a 3x9 tombola card, row-major.
type Grid [Rows][Columns]int

// ColumnRange returns the inclusive sub-range column col draws from.
func ColumnRange(col int, v Variant) (lo, hi int) {
	lo = col*10 + 1
	hi = col*10 + 10
	if col == Columns-1 {
		hi = v.Max
	}
	return lo, hi
}

// GenerateCard builds a traditional layout: 5 numbers per row, no empty
// column, values increasing down every column.
func GenerateCard(rng *rand.Rand, v Variant) (Grid, error) {
	if err := v.Validate(); err != nil {
		return Grid{}, err
	}

	var candidates [Columns][Rows]int
	for col := 0; col < Columns; col++ {
		lo, hi := ColumnRange(col, v)
		perm := rng.Perm(hi - lo + 1)
		for row := 0; row < Rows; row++ {
			candidates[col][row] = lo + perm[row]
		}
	}

	var blank [Rows][Columns]bool
	for row := 0; row < Rows-1; row++ {
		for _, col := range rng.Perm(Columns)[:BlankPerRow] {
			blank[row][col] = true
		}
	}
	lastRow, err := chooseLastRowBlanks(rng, blank[0], blank[1])
	if err != nil {
		return Grid{}, err
	}
	blank[Rows-1] = lastRow

	var g Grid
	for col := 0; col < Columns; col++ {
		kept := make([]int, 0, Rows)
		for row := 0; row < Rows; row++ {
			if !blank[row][col] {
				kept = append(kept, candidates[col][row])
			}
		}
		sort.Ints(kept)
		next := 0
		for row := 0; row < Rows; row++ {
			if blank[row][col] {
				g[row][col] = Blank
				continue
			}
			g[row][col] = kept[next]
			next++
		}
	}
	return g, nil
}

// chooseLastRowBlanks picks the blanks of the bottom row so that no column
// ends up blank in all three rows.
func chooseLastRowBlanks(rng *rand.Rand, top, middle [Columns]bool) ([Columns]bool, error) {
	var out [Columns]bool
	for attempt := 0; attempt < maxBlankAttempts; attempt++ {
		pick := rng.Perm(Columns)[:BlankPerRow]
		ok := true
		for _, col := range pick {
			if top[col] && middle[col] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for _, col := range pick {
			out[col] = true
		}
		return out, nil
	}

	eligible := make([]int, 0, Columns)
	for col := 0; col < Columns; col++ {
		if !(top[col] && middle[col]) {
			eligible = append(eligible, col)
		}
	}
	if len(eligible) < BlankPerRow {
		return out, ErrLayoutUnsatisfiable
	}
	rng.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
	for _, col := range eligible[:BlankPerRow] {
		out[col] = true
	}
	return out, nil
}

// Row returns the filled numbers of one row.
func (g Grid) Row(row int) []int {
	out := make([]int, 0, FilledPerRow)
	for _, n := range g[row] {
		if n != Blank {
			out = append(out, n)
		}
	}
	return out
}

// Numbers returns every filled number on the card.
func (g Grid) Numbers() []int {
	out := make([]int, 0, Rows*FilledPerRow)
	for row := 0; row < Rows; row++ {
		out = append(out, g.Row(row)...)
	}
	return out
}

// Validate checks the layout rules against variant v.
func (g Grid) Validate(v Variant) error {
	for row := 0; row < Rows; row++ {
		if n := len(g.Row(row)); n != FilledPerRow {
			return fmt.Errorf("%w: row %d has %d numbers, want %d", ErrInvalidGrid, row, n, FilledPerRow)
		}
	}
	seen := make(map[int]bool, Rows*FilledPerRow)
	for col := 0; col < Columns; col++ {
		lo, hi := ColumnRange(col, v)
		prev, filled := 0, 0
		for row := 0; row < Rows; row++ {
			n := g[row][col]
			if n == Blank {
				continue
			}
			if n < lo || n > hi {
				return fmt.Errorf("%w: %d out of column %d range [%d, %d]", ErrInvalidGrid, n, col, lo, hi)
			}
			if filled > 0 && n <= prev {
				return fmt.Errorf("%w: column %d not increasing", ErrInvalidGrid, col)
			}
			if seen[n] {
				return fmt.Errorf("%w: duplicate number %d", ErrInvalidGrid, n)
			}
			seen[n] = true
			prev = n
			filled++
		}
		if filled == 0 {
			return fmt.Errorf("%w: column %d is empty", ErrInvalidGrid, col)
		}
	}
	return nil
}

// EncodeGrid serializes a grid for storage.
func EncodeGrid(g Grid) ([]byte, error) {
	return json.Marshal(g)
}

// DecodeGrid is the inverse of EncodeGrid. The input must be exactly 3x9 and
// hold only positive numbers or Blank.
func DecodeGrid(raw []byte) (Grid, error) {
	var rows [][]int
	if err := json.Unmarshal(raw, &rows); err != nil {
		return Grid{}, fmt.Errorf("%w: %v", ErrInvalidGrid, err)
	}
	if len(rows) != Rows {
		return Grid{}, fmt.Errorf("%w: %d rows, want %d", ErrInvalidGrid, len(rows), Rows)
	}
	var g Grid
	for r, row := range rows {
		if len(row) != Columns {
			return Grid{}, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidGrid, r, len(row), Columns)
		}
		for c, n := range row {
			if n != Blank && n < 1 {
				return Grid{}, fmt.Errorf("%w: cell %d,%d holds %d", ErrInvalidGrid, r, c, n)
			}
			g[r][c] = n
		}
	}
	return g, nil
}
