package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

// Machine единственный владелец состояния сессии. Остальные компоненты
// общаются с ней только через возвращаемые значения.
type Machine struct {
	mu       sync.Mutex
	phase    Phase
	analyzer port.ComplicationAnalyzer
	observer func(Phase)
	log      *logrus.Entry
}

// New создаёт сессию в фазе Idle.
func New(analyzer port.ComplicationAnalyzer, logger *logrus.Logger) *Machine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Machine{
		phase:    Idle{},
		analyzer: analyzer,
		log:      logger.WithField("component", "session"),
	}
}

// OnTransition подписывает наблюдателя на смену фаз. Вызывается вне блокировки.
func (m *Machine) OnTransition(fn func(Phase)) {
	m.mu.Lock()
	m.observer = fn
	m.mu.Unlock()
}

// Snapshot возвращает текущую фазу.
func (m *Machine) Snapshot() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Busy сообщает, что анализ в работе.
func (m *Machine) Busy() bool {
	_, ok := m.Snapshot().(Analyzing)
	return ok
}

// Capture сохраняет новый снимок и переводит сессию к вводу данных.
// Прежние результат и ошибка сбрасываются; последний снимок вытесняет предыдущий.
func (m *Machine) Capture(img entity.CapturedImage) error {
	if img.Empty() {
		return entity.ErrNoImage
	}

	m.mu.Lock()
	if _, ok := m.phase.(Analyzing); ok {
		m.mu.Unlock()
		return entity.ErrAnalysisInFlight
	}
	next := m.transitionLocked(InputDetails{Image: img})
	m.mu.Unlock()

	m.notify(next)
	return nil
}

// Submit отправляет данные формы на анализ и ждёт результат.
// Фаза Analyzing видна наблюдателям до того, как анализатор ответит.
// Ошибка возвращается только для отклонённого перехода или устаревшего результата;
// сбой анализа выражается фазой Failed.
func (m *Machine) Submit(ctx context.Context, inputs entity.ClinicalInputs) (Phase, error) {
	m.mu.Lock()
	var img entity.CapturedImage
	switch cur := m.phase.(type) {
	case InputDetails:
		img = cur.Image
	case Failed:
		img = cur.Image
	case Analyzing:
		m.mu.Unlock()
		return cur, entity.ErrAnalysisInFlight
	default:
		m.mu.Unlock()
		return cur, entity.ErrNoImage
	}
	pending := m.beginLocked(img, inputs.Normalize())
	m.mu.Unlock()

	m.notify(pending)
	return m.run(ctx, pending)
}

// Retry повторяет анализ из фазы Failed с сохранёнными снимком и данными.
func (m *Machine) Retry(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	cur, ok := m.phase.(Failed)
	if !ok {
		p := m.phase
		m.mu.Unlock()
		if _, busy := p.(Analyzing); busy {
			return p, entity.ErrAnalysisInFlight
		}
		return p, entity.ErrInvalidTransition
	}
	pending := m.beginLocked(cur.Image, cur.Inputs)
	m.mu.Unlock()

	m.notify(pending)
	return m.run(ctx, pending)
}

// Amend возвращает сессию из Failed к вводу данных без повторной съёмки.
func (m *Machine) Amend() error {
	m.mu.Lock()
	cur, ok := m.phase.(Failed)
	if !ok {
		m.mu.Unlock()
		return entity.ErrInvalidTransition
	}
	next := m.transitionLocked(InputDetails{Image: cur.Image})
	m.mu.Unlock()

	m.notify(next)
	return nil
}

// Reset безусловно возвращает сессию в Idle. Ответ анализатора,
// запущенного до сброса, будет отброшен.
func (m *Machine) Reset() {
	m.mu.Lock()
	next := m.transitionLocked(Idle{})
	m.mu.Unlock()

	m.notify(next)
}

func (m *Machine) beginLocked(img entity.CapturedImage, inputs entity.ClinicalInputs) Analyzing {
	pending := Analyzing{Image: img, Inputs: inputs, Ticket: uuid.New()}
	m.transitionLocked(pending)
	return pending
}

func (m *Machine) run(ctx context.Context, pending Analyzing) (Phase, error) {
	result, err := m.analyze(ctx, pending)

	m.mu.Lock()
	cur, ok := m.phase.(Analyzing)
	if !ok || cur.Ticket != pending.Ticket {
		p := m.phase
		m.mu.Unlock()
		m.log.WithField("ticket", pending.Ticket).Info("discarding stale analysis result")
		return p, entity.ErrStaleResolution
	}

	var next Phase
	if err != nil {
		next = Failed{
			Image:   pending.Image,
			Inputs:  pending.Inputs,
			Message: entity.UserMessage(err),
			Err:     err,
		}
		m.log.WithField("ticket", pending.Ticket).WithError(err).Warn("analysis failed")
	} else {
		next = Success{Inputs: pending.Inputs, Result: *result}
	}
	m.transitionLocked(next)
	m.mu.Unlock()

	m.notify(next)
	return next, nil
}

func (m *Machine) analyze(ctx context.Context, pending Analyzing) (*entity.ComplicationAssessment, error) {
	if m.analyzer == nil {
		return nil, &entity.AnalysisFailedError{Err: errors.New("analyzer is not configured")}
	}
	result, err := m.analyzer.Analyze(ctx, pending.Image, pending.Inputs)
	if err == nil && result == nil {
		err = &entity.AnalysisFailedError{Err: errors.New("analyzer returned no result")}
	}
	return result, err
}

func (m *Machine) transitionLocked(next Phase) Phase {
	m.log.WithFields(logrus.Fields{
		"from": m.phase.Name(),
		"to":   next.Name(),
	}).Debug("session transition")
	m.phase = next
	return next
}

func (m *Machine) notify(p Phase) {
	m.mu.Lock()
	fn := m.observer
	m.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}
