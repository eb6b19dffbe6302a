package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/lunch-roulette/models"
	"github.com/Dosada05/lunch-roulette/repositories"
	"github.com/Dosada05/lunch-roulette/utils"
	"golang.org/x/sync/singleflight"
)

type RestaurantService interface {
	GetDetail(ctx context.Context, rid string) (*models.Detail, error)
	Autocomplete(ctx context.Context, keyword string) ([]models.Suggestion, error)
}

type restaurantService struct {
	repo   repositories.RestaurantRepository
	logger *slog.Logger
	// Одновременные запросы одной карточки уходят в API один раз.
	details singleflight.Group
}

func NewRestaurantService(repo repositories.RestaurantRepository, logger *slog.Logger) RestaurantService {
	if logger == nil {
		logger = slog.Default()
	}
	return &restaurantService{repo: repo, logger: logger}
}

func (s *restaurantService) GetDetail(ctx context.Context, rid string) (*models.Detail, error) {
	rid = strings.TrimSpace(rid)
	if rid == "" {
		return nil, fmt.Errorf("%w: restaurant id is required", ErrValidationFailed)
	}

	// Запрос общий для всех ожидающих: отмена первого вызывающего его не прерывает,
	// время ограничено таймаутом HTTP клиента.
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := s.details.Do(rid, func() (interface{}, error) {
		return s.repo.GetDetail(flightCtx, rid)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrRestaurantNotFound) {
			return nil, ErrRestaurantNotFound
		}
		s.logger.WarnContext(ctx, "Failed to load restaurant detail", slog.String("rid", rid), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	if shared {
		s.logger.DebugContext(ctx, "Restaurant detail shared between callers", slog.String("rid", rid))
	}

	// Копия, чтобы вызывающие не делили слайсы.
	detail := v.(*models.Detail)
	out := &models.Detail{
		Menus:   append([]models.Menu{}, detail.Menus...),
		Reviews: append([]models.Review{}, detail.Reviews...),
	}
	return out, nil
}

// Autocomplete returns suggestions for keyword, dropping entries whose name
// equals the keyword itself.
func (s *restaurantService) Autocomplete(ctx context.Context, keyword string) ([]models.Suggestion, error) {
	keyword = utils.NormalizeSpace(keyword)
	if keyword == "" {
		return []models.Suggestion{}, nil
	}
	items, err := s.repo.Autocomplete(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	out := make([]models.Suggestion, 0, len(items))
	for _, it := range items {
		if strings.EqualFold(it.Name, keyword) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
