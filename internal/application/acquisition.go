package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

// Значения по умолчанию для съёмки.
const (
	DefaultJPEGQuality  = 85
	DefaultAutoInterval = 4 * time.Second
)

var errCameraReleased = errors.New("camera is released")

// AcquisitionConfig параметры съёмки.
type AcquisitionConfig struct {
	JPEGQuality  int
	AutoInterval time.Duration
}

// Acquisition получает снимок с камеры станции или из загруженного файла.
type Acquisition struct {
	opener port.CameraOpener
	cfg    AcquisitionConfig
	log    *logrus.Entry
}

// NewAcquisition создаёт сервис съёмки.
func NewAcquisition(opener port.CameraOpener, cfg AcquisitionConfig, logger *logrus.Logger) *Acquisition {
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.AutoInterval <= 0 {
		cfg.AutoInterval = DefaultAutoInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Acquisition{
		opener: opener,
		cfg:    cfg,
		log:    logger.WithField("component", "acquisition"),
	}
}

// OpenCamera открывает заднюю камеру, при неудаче любую доступную.
// Вызывающий обязан вызвать Release на любом пути выхода.
func (a *Acquisition) OpenCamera(ctx context.Context) (*CameraHandle, error) {
	if a.opener == nil {
		return nil, &entity.CameraUnavailableError{Reason: entity.CameraNoDevice}
	}

	stream, err := a.opener.Open(ctx, port.FacingBack)
	if err == nil {
		return newCameraHandle(stream, a.cfg.JPEGQuality), nil
	}
	a.log.WithError(err).Warn("back camera failed, falling back to any video device")

	stream, fallbackErr := a.opener.Open(ctx, port.FacingAny)
	if fallbackErr == nil {
		return newCameraHandle(stream, a.cfg.JPEGQuality), nil
	}

	reason := cameraReason(fallbackErr)
	if reason == entity.CameraOther {
		reason = cameraReason(err)
	}
	return nil, &entity.CameraUnavailableError{Reason: reason, Err: fallbackErr}
}

func cameraReason(err error) entity.CameraFailure {
	var cu *entity.CameraUnavailableError
	if errors.As(err, &cu) {
		return cu.Reason
	}
	return entity.CameraOther
}

// AutoCapture снимает кадр с заданным периодом, пока не отменён ctx.
// Пропускает тик, если идёт анализ или устройство ещё не накопило кадр.
func (a *Acquisition) AutoCapture(ctx context.Context, h *CameraHandle, busy func() bool, onCapture func(entity.CapturedImage)) error {
	ticker := time.NewTicker(a.cfg.AutoInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if busy != nil && busy() {
			continue
		}
		if !h.Ready() {
			continue
		}

		img, ok, err := h.Shutter()
		if err != nil {
			if errors.Is(err, errCameraReleased) {
				return err
			}
			a.log.WithError(err).Warn("auto capture failed")
			continue
		}
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		onCapture(img)
	}
}

// FromUpload принимает только изображения.
func (a *Acquisition) FromUpload(r io.Reader, declaredType string) (entity.CapturedImage, error) {
	if !entity.IsImageType(declaredType) {
		return entity.CapturedImage{}, fmt.Errorf("%w: %q is not an image", entity.ErrInvalidInput, declaredType)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return entity.CapturedImage{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return entity.CapturedImage{}, fmt.Errorf("%w: empty file", entity.ErrInvalidInput)
	}
	return entity.NewCapturedImage(data, declaredType), nil
}

// LabelPayload принимает фото этикетки и отдаёт его base64-нагрузку для классификатора.
func (a *Acquisition) LabelPayload(r io.Reader, declaredType string) (string, error) {
	if !entity.IsImageType(declaredType) {
		return "", fmt.Errorf("%w: %q is not an image", entity.ErrInvalidInput, declaredType)
	}
	payload, err := EncodeBase64(r)
	if err != nil {
		return "", err
	}
	if payload == "" {
		return "", fmt.Errorf("%w: empty file", entity.ErrInvalidInput)
	}
	return payload, nil
}

// CameraHandle единолично владеет открытым устройством.
type CameraHandle struct {
	mu       sync.Mutex
	stream   port.CameraStream
	quality  int
	released bool
}

func newCameraHandle(stream port.CameraStream, quality int) *CameraHandle {
	return &CameraHandle{stream: stream, quality: quality}
}

// Ready сообщает, что устройство готово отдать кадр.
func (h *CameraHandle) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.released && h.stream.Ready()
}

// Shutter снимает текущий кадр. ok=false без ошибки значит, что у видео
// ещё нет размеров; это не ошибка для оператора, достаточно повторить.
func (h *CameraHandle) Shutter() (entity.CapturedImage, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return entity.CapturedImage{}, false, errCameraReleased
	}
	data, width, height, err := h.stream.Grab(h.quality)
	if err != nil {
		return entity.CapturedImage{}, false, fmt.Errorf("grab frame: %w", err)
	}
	if width == 0 || height == 0 || len(data) == 0 {
		return entity.CapturedImage{}, false, nil
	}
	return entity.NewCapturedImage(data, entity.MimeJPEG), true, nil
}

// Release останавливает устройство. Повторный вызов безопасен.
func (h *CameraHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	h.released = true
	return h.stream.Close()
}
