package camera

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

// Opener открывает видеоустройства станции по номерам /dev/videoN.
type Opener struct {
	BackDevice     int // задняя камера
	FallbackDevice int // любое устройство
}

// NewOpener создаёт открывалку с номерами задней и запасной камер.
func NewOpener(backDevice, fallbackDevice int) *Opener {
	return &Opener{
		BackDevice:     backDevice,
		FallbackDevice: fallbackDevice,
	}
}

func (o *Opener) deviceFor(facing port.Facing) int {
	if facing == port.FacingBack {
		return o.BackDevice
	}
	return o.FallbackDevice
}

func devicePath(id int) string {
	return fmt.Sprintf("/dev/video%d", id)
}

// probeDevice проверяет узел устройства до открытия через OpenCV,
// чтобы различить причины отказа.
func probeDevice(id int) error {
	f, err := os.OpenFile(devicePath(id), os.O_RDWR, 0)
	if err != nil {
		return &entity.CameraUnavailableError{Reason: classifyOpenError(err), Err: err}
	}
	return f.Close()
}

// classifyOpenError сопоставляет ошибку ОС с причиной недоступности камеры.
func classifyOpenError(err error) entity.CameraFailure {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return entity.CameraNoDevice
	case errors.Is(err, fs.ErrPermission):
		return entity.CameraPermissionDenied
	case errors.Is(err, syscall.EBUSY):
		return entity.CameraBusy
	default:
		return entity.CameraOther
	}
}

var _ port.CameraOpener = (*Opener)(nil)
