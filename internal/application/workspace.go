package app

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/intake"
	"ivsite-bot/internal/domain/port"
	"ivsite-bot/internal/domain/session"
)

// Workspace сессия и форма одного чата.
type Workspace struct {
	Session *session.Machine
	Form    *intake.Form
}

// WorkspaceService ведёт сценарий съёмка -> форма -> анализ для каждого чата.
type WorkspaceService struct {
	operators  *OperatorService
	analyzer   port.ComplicationAnalyzer
	classifier port.FluidClassifier
	logger     *logrus.Logger
	workspaces map[int64]*Workspace
	observer   func(chatID int64, p session.Phase)
	mu         sync.Mutex
}

// NewWorkspaceService создаёт сервис сценария.
func NewWorkspaceService(operators *OperatorService, analyzer port.ComplicationAnalyzer, classifier port.FluidClassifier, logger *logrus.Logger) *WorkspaceService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WorkspaceService{
		operators:  operators,
		analyzer:   analyzer,
		classifier: classifier,
		logger:     logger,
		workspaces: make(map[int64]*Workspace),
	}
}

// Get возвращает рабочее пространство чата, создаёт при первом обращении.
func (s *WorkspaceService) Get(chatID int64) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.workspaces[chatID]
	if !ok {
		ws = &Workspace{
			Session: session.New(s.analyzer, s.logger),
			Form:    intake.NewForm(s.classifier),
		}
		s.workspaces[chatID] = ws
		s.watchLocked(chatID, ws)
	}
	return ws
}

// OnTransition подписывает наблюдателя на смену фаз во всех чатах,
// включая уже созданные.
func (s *WorkspaceService) OnTransition(fn func(chatID int64, p session.Phase)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observer = fn
	for chatID, ws := range s.workspaces {
		s.watchLocked(chatID, ws)
	}
}

func (s *WorkspaceService) watchLocked(chatID int64, ws *Workspace) {
	fn := s.observer
	if fn == nil {
		return
	}
	ws.Session.OnTransition(func(p session.Phase) {
		fn(chatID, p)
	})
}

// AcceptImage сохраняет снимок и открывает новую форму.
func (s *WorkspaceService) AcceptImage(ctx context.Context, userID, chatID int64, img entity.CapturedImage) (*entity.Operator, error) {
	ws := s.Get(chatID)
	if err := ws.Session.Capture(img); err != nil {
		return nil, err
	}
	ws.Form.Cancel()
	return s.operators.Home(ctx, userID, chatID)
}

// Submit отправляет форму на анализ и ждёт результат.
func (s *WorkspaceService) Submit(ctx context.Context, userID, chatID int64) (session.Phase, error) {
	ws := s.Get(chatID)
	if _, ok := session.ImageOf(ws.Session.Snapshot()); !ok {
		return ws.Session.Snapshot(), entity.ErrNoImage
	}
	if _, err := s.operators.SetMode(ctx, userID, chatID, entity.ModeResult); err != nil {
		return nil, err
	}
	return ws.Session.Submit(ctx, ws.Form.Submit())
}

// Retry повторяет анализ после ошибки.
func (s *WorkspaceService) Retry(ctx context.Context, userID, chatID int64) (session.Phase, error) {
	if _, err := s.operators.SetMode(ctx, userID, chatID, entity.ModeResult); err != nil {
		return nil, err
	}
	return s.Get(chatID).Session.Retry(ctx)
}

// Reset возвращает чат в исходное состояние.
func (s *WorkspaceService) Reset(ctx context.Context, userID, chatID int64) (*entity.Operator, error) {
	ws := s.Get(chatID)
	ws.Session.Reset()
	ws.Form.Cancel()
	return s.operators.Home(ctx, userID, chatID)
}
