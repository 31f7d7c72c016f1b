package app

import (
	"context"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

type OperatorService struct {
	repo port.OperatorRepository
}

func NewOperatorService(repo port.OperatorRepository) *OperatorService {
	return &OperatorService{repo: repo}
}

func (s *OperatorService) Get(ctx context.Context, userID, chatID int64) (*entity.Operator, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *OperatorService) SetMode(ctx context.Context, userID, chatID int64, mode entity.OperatorMode) (*entity.Operator, error) {
	return s.repo.Update(ctx, userID, chatID, func(op *entity.Operator) {
		op.SetMode(mode)
	})
}

func (s *OperatorService) BeginUpload(ctx context.Context, userID, chatID int64) (*entity.Operator, error) {
	return s.SetMode(ctx, userID, chatID, entity.ModeUpload)
}

func (s *OperatorService) Home(ctx context.Context, userID, chatID int64) (*entity.Operator, error) {
	return s.SetMode(ctx, userID, chatID, entity.ModeHome)
}

// SetAutoCapture включает или выключает автосъёмку.
func (s *OperatorService) SetAutoCapture(ctx context.Context, userID, chatID int64, on bool) (*entity.Operator, error) {
	return s.repo.Update(ctx, userID, chatID, func(op *entity.Operator) {
		op.AutoCapture = on
		if on {
			op.SetMode(entity.ModeCamera)
		} else if op.Mode == entity.ModeCamera {
			op.SetMode(entity.ModeHome)
		}
	})
}
