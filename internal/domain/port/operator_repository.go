package port

import (
	"context"

	"ivsite-bot/internal/domain/entity"
)

// OperatorRepository интерфейс хранилища операторов, один оператор на чат
type OperatorRepository interface {
	// Get возвращает копию оператора чата, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.Operator, error)

	// Save сохраняет состояние оператора
	Save(ctx context.Context, operator *entity.Operator) error

	// Update атомарно меняет оператора чата и возвращает копию
	Update(ctx context.Context, userID, chatID int64, fn func(*entity.Operator)) (*entity.Operator, error)
}
