package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tombola/models"
)

var (
	ErrPrizeNotFound = errors.New("prize not found")
)

type PrizeRepository interface {
	Create(ctx context.Context, prize *models.Prize) error
	GetByID(ctx context.Context, id int) (*models.Prize, error)
	List(ctx context.Context) ([]models.Prize, error)
	Delete(ctx context.Context, id int) error
}

type postgresPrizeRepository struct {
	db *sql.DB
}

func NewPostgresPrizeRepository(db *sql.DB) PrizeRepository {
	return &postgresPrizeRepository{db: db}
}

func (r *postgresPrizeRepository) Create(ctx context.Context, p *models.Prize) error {
	query := `
		INSERT INTO prizes (name, description, image_key)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, p.Name, p.Description, p.ImageKey).Scan(&p.ID, &p.CreatedAt)
}

func (r *postgresPrizeRepository) GetByID(ctx context.Context, id int) (*models.Prize, error) {
	query := `SELECT id, name, description, image_key, created_at FROM prizes WHERE id = $1`
	p := &models.Prize{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.ImageKey, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrizeNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresPrizeRepository) List(ctx context.Context) ([]models.Prize, error) {
	query := `SELECT id, name, description, image_key, created_at FROM prizes ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list prizes: %w", err)
	}
	defer rows.Close()

	prizes := make([]models.Prize, 0)
	for rows.Next() {
		var p models.Prize
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ImageKey, &p.CreatedAt); err != nil {
			return nil, err
		}
		prizes = append(prizes, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return prizes, nil
}

// Delete removes the prize. Games referencing it lose the reference.
func (r *postgresPrizeRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM prizes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPrizeNotFound)
}
