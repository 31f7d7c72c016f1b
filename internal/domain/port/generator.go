package port

import (
	"context"

	"ivsite-bot/internal/domain/entity"
)

// Generator интерфейс мультимодальной модели
type Generator interface {
	// Generate выполняет запрос и возвращает текст ответа
	Generate(ctx context.Context, req entity.GenerateRequest) (string, error)
}
