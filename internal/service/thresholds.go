package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/models"
	"farm_telemetry/internal/repository"
)

// Safe bounds for the EC range, in mS/cm.
const (
	ecSafeMin = 0.5
	ecSafeMax = 3.0
)

// ThresholdService keeps the active thresholds in memory and persists changes.
type ThresholdService struct {
	repo repository.ThresholdRepo
	log  *logger.Logger

	mu      sync.RWMutex
	current models.Thresholds
}

func NewThresholdService(repo repository.ThresholdRepo, log *logger.Logger) *ThresholdService {
	return &ThresholdService{repo: repo, log: log, current: models.DefaultThresholds()}
}

// Load reads the stored row; defaults stay active when none exists.
func (s *ThresholdService) Load(ctx context.Context) error {
	t, ok, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Infow("thresholds_default")
		return nil
	}
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
	return nil
}

func (s *ThresholdService) Current() models.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates t, upserts it and reloads the stored row. Nothing is
// applied when validation fails.
func (s *ThresholdService) Update(ctx context.Context, t models.Thresholds) (models.Thresholds, error) {
	if err := ValidateThresholds(t); err != nil {
		return models.Thresholds{}, err
	}
	t.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, t); err != nil {
		return models.Thresholds{}, err
	}
	if err := s.Load(ctx); err != nil {
		return models.Thresholds{}, err
	}
	return s.Current(), nil
}

func ValidateThresholds(t models.Thresholds) error {
	switch {
	case t.ECMin < ecSafeMin || t.ECMin > ecSafeMax:
		return fmt.Errorf("%w: ec_min must be between %.1f and %.1f mS/cm", ErrValidation, ecSafeMin, ecSafeMax)
	case t.ECMax < ecSafeMin || t.ECMax > ecSafeMax:
		return fmt.Errorf("%w: ec_max must be between %.1f and %.1f mS/cm", ErrValidation, ecSafeMin, ecSafeMax)
	case t.ECMin >= t.ECMax:
		return fmt.Errorf("%w: ec_min must be lower than ec_max", ErrValidation)
	case t.TankMaxMm <= 0:
		return fmt.Errorf("%w: tank_max must be positive", ErrValidation)
	case t.TempMinC >= t.TempMaxC:
		return fmt.Errorf("%w: temp_min must be lower than temp_max", ErrValidation)
	case t.WaterCriticalMm < 0 || t.WaterCriticalMm >= t.WaterHighMm:
		return fmt.Errorf("%w: water_critical must be non-negative and lower than water_high", ErrValidation)
	case t.WaterHighMm > t.TankMaxMm:
		return fmt.Errorf("%w: water_high must not exceed tank_max", ErrValidation)
	}
	return nil
}
