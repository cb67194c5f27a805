package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/repositories"
	"github.com/Dosada05/tombola/storage"
)

type CreatePrizeInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageKey    *string `json:"image_key"`
}

type PrizeService interface {
	CreatePrize(ctx context.Context, actor models.Principal, input CreatePrizeInput) (*models.Prize, error)
	GetPrize(ctx context.Context, prizeID int) (*models.Prize, error)
	ListPrizes(ctx context.Context) ([]models.Prize, error)
	DeletePrize(ctx context.Context, actor models.Principal, prizeID int) error
}

type prizeService struct {
	prizeRepo repositories.PrizeRepository
	images    storage.ImageStore
	logger    *slog.Logger
}

// NewPrizeService builds the service. images may be nil when no bucket is
// configured; prizes then carry no image.
func NewPrizeService(prizeRepo repositories.PrizeRepository, images storage.ImageStore, logger *slog.Logger) PrizeService {
	return &prizeService{prizeRepo: prizeRepo, images: images, logger: logger}
}

func (s *prizeService) CreatePrize(ctx context.Context, actor models.Principal, input CreatePrizeInput) (*models.Prize, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrPrizeNameRequired
	}

	prize := &models.Prize{Name: name, Description: strings.TrimSpace(input.Description)}
	if input.ImageKey != nil && *input.ImageKey != "" {
		if s.images == nil {
			return nil, fmt.Errorf("%w: prize images are not configured", ErrValidationFailed)
		}
		ok, err := s.images.Exists(ctx, *input.ImageKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check prize image: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: image %q not found", ErrValidationFailed, *input.ImageKey)
		}
		prize.ImageKey = input.ImageKey
	}

	if err := s.prizeRepo.Create(ctx, prize); err != nil {
		return nil, fmt.Errorf("failed to create prize: %w", err)
	}
	populatePrizeImageURL(prize, s.images)
	return prize, nil
}

func (s *prizeService) GetPrize(ctx context.Context, prizeID int) (*models.Prize, error) {
	prize, err := s.prizeRepo.GetByID(ctx, prizeID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	populatePrizeImageURL(prize, s.images)
	return prize, nil
}

func (s *prizeService) ListPrizes(ctx context.Context) ([]models.Prize, error) {
	prizes, err := s.prizeRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range prizes {
		populatePrizeImageURL(&prizes[i], s.images)
	}
	return prizes, nil
}

// DeletePrize removes the prize and then its image. A failed image delete
// is logged only.
func (s *prizeService) DeletePrize(ctx context.Context, actor models.Principal, prizeID int) error {
	if !actor.IsAdmin() {
		return ErrForbiddenOperation
	}
	prize, err := s.prizeRepo.GetByID(ctx, prizeID)
	if err != nil {
		return translateRepoError(err)
	}
	if err := s.prizeRepo.Delete(ctx, prizeID); err != nil {
		return translateRepoError(err)
	}

	if prize.ImageKey != nil && *prize.ImageKey != "" && s.images != nil {
		if err := s.images.Delete(ctx, *prize.ImageKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete prize image",
				slog.Int("prize_id", prizeID),
				slog.String("key", *prize.ImageKey),
				slog.Any("error", err),
			)
		}
	}
	return nil
}
