package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput выбран не файл изображения или неверное значение поля.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoImage отправка формы без сохранённого снимка.
	ErrNoImage = errors.New("no captured image")
	// ErrAnalysisInFlight анализ уже выполняется.
	ErrAnalysisInFlight = errors.New("analysis already in flight")
	// ErrStaleResolution результат пришёл для устаревшего запроса.
	ErrStaleResolution = errors.New("stale analysis resolution")
	// ErrInvalidTransition переход недопустим в текущей фазе.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// CameraFailure причина недоступности камеры.
type CameraFailure string

const (
	CameraPermissionDenied CameraFailure = "permission-denied"
	CameraNoDevice         CameraFailure = "no-device"
	CameraBusy             CameraFailure = "busy"
	CameraOther            CameraFailure = "other"
)

// CameraUnavailableError камера не открылась ни основная, ни запасная.
type CameraUnavailableError struct {
	Reason CameraFailure
	Err    error
}

func (e *CameraUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera unavailable (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("camera unavailable (%s)", e.Reason)
}

func (e *CameraUnavailableError) Unwrap() error {
	return e.Err
}

// Message текст для оператора.
func (e *CameraUnavailableError) Message() string {
	switch e.Reason {
	case CameraPermissionDenied:
		return "Доступ к камере запрещён. Разрешите доступ к устройству и попробуйте снова."
	case CameraNoDevice:
		return "Камера не найдена."
	case CameraBusy:
		return "Камера занята другим приложением или не может быть запущена."
	default:
		return "Не удалось получить доступ к камере."
	}
}

// AnalysisFailedMessage фиксированный текст ошибки анализа.
const AnalysisFailedMessage = "Анализ не удался. Пожалуйста, попробуйте ещё раз."

// UnexpectedErrorMessage текст для ошибок без собственного сообщения.
const UnexpectedErrorMessage = "Произошла непредвиденная ошибка."

// AnalysisFailedError ошибка анализатора осложнений.
type AnalysisFailedError struct {
	Err error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("analysis failed: %v", e.Err)
}

func (e *AnalysisFailedError) Unwrap() error {
	return e.Err
}

// Message текст для оператора, всегда одинаковый.
func (e *AnalysisFailedError) Message() string {
	return AnalysisFailedMessage
}

// UserMessage достаёт текст для оператора из любой ошибки.
func UserMessage(err error) string {
	var af *AnalysisFailedError
	if errors.As(err, &af) {
		return af.Message()
	}
	var cu *CameraUnavailableError
	if errors.As(err, &cu) {
		return cu.Message()
	}
	if err != nil {
		return UnexpectedErrorMessage
	}
	return ""
}
