//go:build !gocv
// +build !gocv

package camera

import (
	"context"
	"errors"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

// Open возвращает ошибку, если сборка без тега gocv.
func (o *Opener) Open(ctx context.Context, facing port.Facing) (port.CameraStream, error) {
	_ = ctx
	_ = o.deviceFor(facing)
	return nil, &entity.CameraUnavailableError{
		Reason: entity.CameraNoDevice,
		Err:    errors.New("gocv build tag is not enabled"),
	}
}
