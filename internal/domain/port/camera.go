package port

import (
	"context"
)

// Facing какую камеру запрашиваем
type Facing string

const (
	FacingBack Facing = "environment" // Задняя камера
	FacingAny  Facing = "any"         // Любое доступное видеоустройство
)

// CameraOpener открывает видеоустройство
type CameraOpener interface {
	// Open возвращает поток или *entity.CameraUnavailableError
	Open(ctx context.Context, facing Facing) (CameraStream, error)
}

// CameraStream открытое видеоустройство
type CameraStream interface {
	// Ready сообщает, что в буфере достаточно данных для кадра
	Ready() bool

	// Grab снимает текущий кадр в JPEG заданного качества.
	// Нулевые размеры означают, что устройство ещё не готово.
	Grab(quality int) (data []byte, width, height int, err error)

	// Close останавливает устройство
	Close() error
}
