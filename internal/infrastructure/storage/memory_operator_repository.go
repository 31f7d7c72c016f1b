package storage

import (
	"context"
	"sync"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

// MemoryOperatorRepository in-memory хранилище операторов по чатам.
// Хранит только экран и флаги интерфейса, данных пациента здесь нет.
// Наружу отдаются копии: изменять состояние можно только через Save и Update.
type MemoryOperatorRepository struct {
	mu        sync.Mutex
	operators map[int64]*entity.Operator
}

// NewMemoryOperatorRepository создаёт новое in-memory хранилище
func NewMemoryOperatorRepository() *MemoryOperatorRepository {
	return &MemoryOperatorRepository{
		operators: make(map[int64]*entity.Operator),
	}
}

// Get возвращает копию оператора чата, создаёт нового если не найден
func (r *MemoryOperatorRepository) Get(ctx context.Context, userID, chatID int64) (*entity.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *r.getLocked(userID, chatID)
	return &cp, nil
}

// Save сохраняет состояние оператора
func (r *MemoryOperatorRepository) Save(ctx context.Context, operator *entity.Operator) error {
	cp := *operator

	r.mu.Lock()
	r.operators[operator.ChatID] = &cp
	r.mu.Unlock()

	return nil
}

// Update меняет оператора чата под блокировкой и возвращает копию результата
func (r *MemoryOperatorRepository) Update(ctx context.Context, userID, chatID int64, fn func(*entity.Operator)) (*entity.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := r.getLocked(userID, chatID)
	fn(op)

	cp := *op
	return &cp, nil
}

func (r *MemoryOperatorRepository) getLocked(userID, chatID int64) *entity.Operator {
	op, exists := r.operators[chatID]
	if !exists {
		op = entity.NewOperator(userID, chatID)
		r.operators[chatID] = op
	}
	return op
}

// Проверка реализации интерфейса
var _ port.OperatorRepository = (*MemoryOperatorRepository)(nil)
