package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/tombola"
)

var (
	ErrCardNotFound     = errors.New("card not found")
	ErrCardInvalidGame  = errors.New("invalid game reference")
	ErrCardInvalidOwner = errors.New("invalid card owner reference")
)

type ListCardsFilter struct {
	GameID  *int
	OwnerID *int
}

type CardRepository interface {
	Create(ctx context.Context, exec SQLExecutor, card *models.Card) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Card, error)
	// List returns cards ordered by id ascending.
	List(ctx context.Context, exec SQLExecutor, filter ListCardsFilter) ([]models.Card, error)
	CountByOwner(ctx context.Context, exec SQLExecutor, gameID, ownerID int) (int, error)
	UpdateNumbers(ctx context.Context, exec SQLExecutor, id int, numbers tombola.Grid) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	DeleteByIDs(ctx context.Context, exec SQLExecutor, ids []int) error
	DeleteByGame(ctx context.Context, exec SQLExecutor, gameID int) error
}

type postgresCardRepository struct {
	db *sql.DB
}

func NewPostgresCardRepository(db *sql.DB) CardRepository {
	return &postgresCardRepository{db: db}
}

func (r *postgresCardRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresCardRepository) Create(ctx context.Context, exec SQLExecutor, c *models.Card) error {
	raw, err := tombola.EncodeGrid(c.Numbers)
	if err != nil {
		return fmt.Errorf("failed to encode card numbers: %w", err)
	}
	query := `
		INSERT INTO cards (game_id, owner_id, numbers)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query, c.GameID, c.OwnerID, raw).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if pqErr, ok := pgError(err); ok && pqErr.Code == pqForeignKeyViolation {
			switch pqErr.Constraint {
			case "cards_game_id_fkey":
				return ErrCardInvalidGame
			case "cards_owner_id_fkey":
				return ErrCardInvalidOwner
			}
		}
		return err
	}
	return nil
}

func (r *postgresCardRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Card, error) {
	query := `SELECT id, game_id, owner_id, numbers, created_at FROM cards WHERE id = $1`
	c, err := scanCard(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to scan card %d: %w", id, err)
	}
	return c, nil
}

func (r *postgresCardRepository) List(ctx context.Context, exec SQLExecutor, filter ListCardsFilter) ([]models.Card, error) {
	query := `SELECT id, game_id, owner_id, numbers, created_at FROM cards WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.GameID != nil {
		query += fmt.Sprintf(" AND game_id = $%d", argID)
		args = append(args, *filter.GameID)
		argID++
	}
	if filter.OwnerID != nil {
		query += fmt.Sprintf(" AND owner_id = $%d", argID)
		args = append(args, *filter.OwnerID)
	}
	query += " ORDER BY id ASC"

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	cards := make([]models.Card, 0)
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card rows: %w", err)
	}
	return cards, nil
}

func (r *postgresCardRepository) CountByOwner(ctx context.Context, exec SQLExecutor, gameID, ownerID int) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM cards WHERE game_id = $1 AND owner_id = $2`
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, gameID, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}

func (r *postgresCardRepository) UpdateNumbers(ctx context.Context, exec SQLExecutor, id int, numbers tombola.Grid) error {
	raw, err := tombola.EncodeGrid(numbers)
	if err != nil {
		return fmt.Errorf("failed to encode card numbers: %w", err)
	}
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE cards SET numbers = $1 WHERE id = $2`, raw, id)
	if err != nil {
		return fmt.Errorf("failed to update card %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrCardNotFound)
}

func (r *postgresCardRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrCardNotFound)
}

func (r *postgresCardRepository) DeleteByIDs(ctx context.Context, exec SQLExecutor, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM cards WHERE id = ANY($1)`, intsToInt64s(ids))
	if err != nil {
		return fmt.Errorf("failed to delete cards: %w", err)
	}
	return nil
}

func (r *postgresCardRepository) DeleteByGame(ctx context.Context, exec SQLExecutor, gameID int) error {
	_, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM cards WHERE game_id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete cards of game %d: %w", gameID, err)
	}
	return nil
}

func scanCard(s rowScanner) (*models.Card, error) {
	var (
		c   models.Card
		raw []byte
	)
	if err := s.Scan(&c.ID, &c.GameID, &c.OwnerID, &raw, &c.CreatedAt); err != nil {
		return nil, err
	}
	grid, err := tombola.DecodeGrid(raw)
	if err != nil {
		return nil, err
	}
	c.Numbers = grid
	return &c, nil
}

