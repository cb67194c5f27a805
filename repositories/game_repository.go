package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tombola/models"
	"github.com/lib/pq"
)

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameInvalidOwner = errors.New("invalid game owner reference")
	ErrGameInvalidPrize = errors.New("invalid prize reference")
)

type ListGamesFilter struct {
	// VisibleTo restricts the list to games the user owns or may play in.
	VisibleTo *int
	Status    *models.GameStatus
	Limit     int
	Offset    int
}

type GameRepository interface {
	Create(ctx context.Context, exec SQLExecutor, game *models.Game) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error)
	// GetByIDForUpdate locks the game row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error)
	List(ctx context.Context, filter ListGamesFilter) ([]models.Game, error)
	Update(ctx context.Context, exec SQLExecutor, game *models.Game) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresGameRepository struct {
	db *sql.DB
}

func NewPostgresGameRepository(db *sql.DB) GameRepository {
	return &postgresGameRepository{db: db}
}

func (r *postgresGameRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const gameColumns = `
	id, name, description, variant, game_status, max_cards, current_number, extractions,
	owner_id, allowed_users, cinquina_prize_id, bingo_prize_id, mini_bingo_prize_id,
	cinquina_card_id, cinquina_at_draw, cinquina_row,
	bingo_card_id, bingo_at_draw,
	mini_bingo_card_id, mini_bingo_at_draw,
	detection_unresolved, created_at, start_ts, end_ts`

func (r *postgresGameRepository) Create(ctx context.Context, exec SQLExecutor, g *models.Game) error {
	query := `
		INSERT INTO games (
			name, description, variant, game_status, max_cards, current_number, extractions,
			owner_id, allowed_users, cinquina_prize_id, bingo_prize_id, mini_bingo_prize_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		g.Name, g.Description, g.Variant, g.Status, g.MaxCards, g.CurrentNumber, intsToInt64s(g.Extractions),
		g.OwnerID, intsToInt64s(g.AllowedUserIDs),
		nullInt(g.CinquinaPrizeID), nullInt(g.BingoPrizeID), nullInt(g.MiniBingoPrizeID),
	).Scan(&g.ID, &g.CreatedAt)

	return r.handleGameError(err)
}

func (r *postgresGameRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	return r.getOne(ctx, exec, query, id)
}

func (r *postgresGameRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, exec, query, id)
}

func (r *postgresGameRepository) getOne(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Game, error) {
	g, err := scanGame(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to scan game %d: %w", id, err)
	}
	return g, nil
}

func (r *postgresGameRepository) List(ctx context.Context, filter ListGamesFilter) ([]models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.VisibleTo != nil {
		query += fmt.Sprintf(" AND (owner_id = $%d OR $%d = ANY(allowed_users))", argID, argID)
		args = append(args, *filter.VisibleTo)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND game_status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	games := make([]models.Game, 0)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		games = append(games, *g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game rows: %w", err)
	}
	return games, nil
}

func (r *postgresGameRepository) Update(ctx context.Context, exec SQLExecutor, g *models.Game) error {
	cinquinaCard, cinquinaDraw, cinquinaRow := winnerColumns(g.Cinquina)
	bingoCard, bingoDraw, _ := winnerColumns(g.Bingo)
	miniCard, miniDraw, _ := winnerColumns(g.MiniBingo)

	query := `
		UPDATE games SET
			name = $1, description = $2, game_status = $3, max_cards = $4, current_number = $5,
			extractions = $6, allowed_users = $7,
			cinquina_prize_id = $8, bingo_prize_id = $9, mini_bingo_prize_id = $10,
			cinquina_card_id = $11, cinquina_at_draw = $12, cinquina_row = $13,
			bingo_card_id = $14, bingo_at_draw = $15,
			mini_bingo_card_id = $16, mini_bingo_at_draw = $17,
			detection_unresolved = $18, start_ts = $19, end_ts = $20
		WHERE id = $21`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		g.Name, g.Description, g.Status, g.MaxCards, g.CurrentNumber,
		intsToInt64s(g.Extractions), intsToInt64s(g.AllowedUserIDs),
		nullInt(g.CinquinaPrizeID), nullInt(g.BingoPrizeID), nullInt(g.MiniBingoPrizeID),
		cinquinaCard, cinquinaDraw, cinquinaRow,
		bingoCard, bingoDraw,
		miniCard, miniDraw,
		g.DetectionUnresolved, g.StartTs, g.EndTs,
		g.ID,
	)
	if err != nil {
		return r.handleGameError(err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) handleGameError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := pgError(err); ok && pqErr.Code == pqForeignKeyViolation {
		switch pqErr.Constraint {
		case "games_owner_id_fkey":
			return ErrGameInvalidOwner
		case "games_cinquina_prize_id_fkey", "games_bingo_prize_id_fkey", "games_mini_bingo_prize_id_fkey":
			return ErrGameInvalidPrize
		}
	}
	return err
}

func winnerColumns(w *models.Winner) (card, atDraw, row sql.NullInt64) {
	if w == nil {
		return
	}
	card = sql.NullInt64{Int64: int64(w.CardID), Valid: true}
	atDraw = sql.NullInt64{Int64: int64(w.AtDraw), Valid: true}
	row = nullInt(w.RowIndex)
	return
}

func winnerFrom(card, atDraw, row sql.NullInt64) *models.Winner {
	if !card.Valid || !atDraw.Valid {
		return nil
	}
	return &models.Winner{CardID: int(card.Int64), AtDraw: int(atDraw.Int64), RowIndex: intPtr(row)}
}

func scanGame(s rowScanner) (*models.Game, error) {
	var (
		g                                        models.Game
		extractions, allowed                     pq.Int64Array
		cinquinaPrize, bingoPrize, miniPrize     sql.NullInt64
		cinquinaCard, cinquinaDraw, cinquinaRow  sql.NullInt64
		bingoCard, bingoDraw, miniCard, miniDraw sql.NullInt64
	)
	err := s.Scan(
		&g.ID, &g.Name, &g.Description, &g.Variant, &g.Status, &g.MaxCards, &g.CurrentNumber, &extractions,
		&g.OwnerID, &allowed, &cinquinaPrize, &bingoPrize, &miniPrize,
		&cinquinaCard, &cinquinaDraw, &cinquinaRow,
		&bingoCard, &bingoDraw,
		&miniCard, &miniDraw,
		&g.DetectionUnresolved, &g.CreatedAt, &g.StartTs, &g.EndTs,
	)
	if err != nil {
		return nil, err
	}
	g.Extractions = int64sToInts(extractions)
	g.AllowedUserIDs = int64sToInts(allowed)
	g.CinquinaPrizeID = intPtr(cinquinaPrize)
	g.BingoPrizeID = intPtr(bingoPrize)
	g.MiniBingoPrizeID = intPtr(miniPrize)
	g.Cinquina = winnerFrom(cinquinaCard, cinquinaDraw, cinquinaRow)
	g.Bingo = winnerFrom(bingoCard, bingoDraw, sql.NullInt64{})
	g.MiniBingo = winnerFrom(miniCard, miniDraw, sql.NullInt64{})
	return &g, nil
}
