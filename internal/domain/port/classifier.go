package port

import (
	"context"

	"ivsite-bot/internal/domain/entity"
)

// ClassifyInput текст с названием или фото этикетки (хотя бы одно из двух).
type ClassifyInput struct {
	Text        string
	ImageBase64 string
}

// FluidClassifier интерфейс классификатора растворов
type FluidClassifier interface {
	// Classify никогда не возвращает ошибку: при сбое отдаёт безопасное значение
	Classify(ctx context.Context, input ClassifyInput) entity.FluidClassification
}
