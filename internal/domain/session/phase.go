package session

import (
	"github.com/google/uuid"

	"ivsite-bot/internal/domain/entity"
)

// PhaseName имя фазы для логов и отображения.
type PhaseName string

const (
	PhaseIdle         PhaseName = "idle"
	PhaseInputDetails PhaseName = "input_details"
	PhaseAnalyzing    PhaseName = "analyzing"
	PhaseSuccess      PhaseName = "success"
	PhaseError        PhaseName = "error"
)

// Phase состояние сессии. Каждый вариант несёт только допустимые в нём поля.
type Phase interface {
	Name() PhaseName
	isPhase()
}

// Idle сессия пуста.
type Idle struct{}

// InputDetails снимок получен, ждём клинические данные.
type InputDetails struct {
	Image entity.CapturedImage
}

// Analyzing запрос к анализатору в работе.
type Analyzing struct {
	Image  entity.CapturedImage
	Inputs entity.ClinicalInputs
	Ticket uuid.UUID
}

// Success анализ завершён; снимок больше не хранится.
type Success struct {
	Inputs entity.ClinicalInputs
	Result entity.ComplicationAssessment
}

// Failed анализ не удался; снимок сохранён для повтора.
type Failed struct {
	Image   entity.CapturedImage
	Inputs  entity.ClinicalInputs
	Message string
	Err     error
}

func (Idle) Name() PhaseName         { return PhaseIdle }
func (InputDetails) Name() PhaseName { return PhaseInputDetails }
func (Analyzing) Name() PhaseName    { return PhaseAnalyzing }
func (Success) Name() PhaseName      { return PhaseSuccess }
func (Failed) Name() PhaseName       { return PhaseError }

func (Idle) isPhase()         {}
func (InputDetails) isPhase() {}
func (Analyzing) isPhase()    {}
func (Success) isPhase()      {}
func (Failed) isPhase()       {}

// ImageOf возвращает снимок, если фаза его хранит.
func ImageOf(p Phase) (entity.CapturedImage, bool) {
	switch v := p.(type) {
	case InputDetails:
		return v.Image, true
	case Analyzing:
		return v.Image, true
	case Failed:
		return v.Image, true
	}
	return entity.CapturedImage{}, false
}
