package port

import (
	"context"

	"ivsite-bot/internal/domain/entity"
)

// ComplicationAnalyzer интерфейс анализатора осложнений
type ComplicationAnalyzer interface {
	// Analyze возвращает оценку или *entity.AnalysisFailedError
	Analyze(ctx context.Context, image entity.CapturedImage, inputs entity.ClinicalInputs) (*entity.ComplicationAssessment, error)
}
