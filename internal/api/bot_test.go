package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	app "ivsite-bot/internal/application"
	"ivsite-bot/internal/container"
	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
	"ivsite-bot/internal/domain/session"
	"ivsite-bot/internal/infrastructure/storage"
)

const (
	chatID = int64(42)

	assessmentJSON     = `{"status":"Инфильтрация","severity":"Степень 2","visualEvidence":"отёк","nursingIntervention":"остановить инфузию","safetyWarning":"наблюдать"}`
	classificationJSON = `{"category":"vesicant","reason":"Гликопептид, раздражает вену","drugName":"Vancomycin"}`
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []string
	fileURL string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// scriptedGenerator отвечает по схеме запроса.
type scriptedGenerator struct {
	analysisErr error
}

func (g scriptedGenerator) Generate(ctx context.Context, req entity.GenerateRequest) (string, error) {
	if req.ResponseSchema != nil {
		if _, ok := req.ResponseSchema.Properties["category"]; ok {
			return classificationJSON, nil
		}
	}
	if g.analysisErr != nil {
		return "", g.analysisErr
	}
	return assessmentJSON, nil
}

type fakeStream struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeStream) Ready() bool { return true }

func (s *fakeStream) Grab(quality int) ([]byte, int, int, error) {
	return []byte{0xff, 0xd8, 0xff}, 640, 480, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOpener struct{ stream *fakeStream }

func (o fakeOpener) Open(ctx context.Context, facing port.Facing) (port.CameraStream, error) {
	return o.stream, nil
}

type fixture struct {
	bot *Bot
	api *fakeAPI
	c   *container.Container
}

func newFixture(t *testing.T, gen port.Generator, cam port.CameraOpener) *fixture {
	t.Helper()

	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	}))
	t.Cleanup(files.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	c, err := container.New(container.Options{
		Operators:   storage.NewMemoryOperatorRepository(),
		Generator:   gen,
		Camera:      cam,
		Acquisition: app.AcquisitionConfig{AutoInterval: 10 * time.Millisecond},
		Language:    "Russian",
		CacheSize:   8,
		Logger:      logger,
	})
	require.NoError(t, err)

	api := &fakeAPI{fileURL: files.URL}
	return &fixture{bot: newBot(api, c, logger, files.Client()), api: api, c: c}
}

// blockingGenerator держит классификацию до закрытия release.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g blockingGenerator) Generate(ctx context.Context, req entity.GenerateRequest) (string, error) {
	if _, ok := req.ResponseSchema.Properties["category"]; ok {
		g.started <- struct{}{}
		<-g.release
		return classificationJSON, nil
	}
	return assessmentJSON, nil
}

func (f *fixture) send(msg *tgbotapi.Message) {
	f.bot.handleMessage(context.Background(), msg)
}

func (f *fixture) phase() session.Phase {
	return f.c.WorkspaceService.Get(chatID).Session.Snapshot()
}

func command(text string) *tgbotapi.Message {
	name := strings.SplitN(text, " ", 2)[0]
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: chatID},
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func photo() *tgbotapi.Message {
	return photoIn(chatID)
}

func photoIn(chat int64) *tgbotapi.Message {
	return &tgbotapi.Message{
		From:  &tgbotapi.User{ID: chatID},
		Chat:  &tgbotapi.Chat{ID: chat},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}
}

func document(mimeType string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: chatID},
		Chat:     &tgbotapi.Chat{ID: chatID},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: mimeType},
	}
}

func TestBot_StartAndHelp(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)

	f.send(command("/start"))
	require.Equal(t, msgStart, f.api.last())

	f.send(command("/help"))
	require.Equal(t, msgHelp, f.api.last())

	f.send(command("/unknown"))
	require.Equal(t, msgUnknownCommand, f.api.last())
}

func TestBot_PhotoOpensForm(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)

	f.send(command("/check"))
	require.Equal(t, msgAwaitingPhoto, f.api.last())

	f.send(photo())
	require.Contains(t, f.api.last(), "Клинические данные")
	require.Equal(t, session.PhaseInputDetails, f.phase().Name())
}

func TestBot_ImageDocumentAccepted(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)

	f.send(document("image/png"))
	require.Equal(t, session.PhaseInputDetails, f.phase().Name())
}

func TestBot_NonImageDocumentRejected(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)

	f.send(document("application/pdf"))
	require.Equal(t, msgNotImage, f.api.last())
	require.Equal(t, session.PhaseIdle, f.phase().Name())
}

func TestBot_IntakeRequiresImage(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)

	f.send(command("/pain 5"))
	require.Equal(t, msgNoImage, f.api.last())

	f.send(command("/submit"))
	f.bot.wait()
	require.Equal(t, msgNoImage, f.api.last())
}

func TestBot_IntakeCommandsUpdateForm(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)
	f.send(photo())

	f.send(command("/pain 15"))
	require.Contains(t, f.api.last(), "Боль: 10/10")

	f.send(command("/size 3,5"))
	require.Contains(t, f.api.last(), "Размер: 3.5 см")

	f.send(command("/temp cool"))
	require.Contains(t, f.api.last(), "Температура кожи: cool")

	f.send(command("/cord да"))
	require.Contains(t, f.api.last(), "Пальпируемый тяж: да")

	f.send(command("/category vesicant"))
	require.Contains(t, f.api.last(), "везикант")

	f.send(command("/temp hot"))
	require.Equal(t, msgBadTemp, f.api.last())

	f.send(command("/pain много"))
	require.Equal(t, msgBadNumber, f.api.last())
}

func TestBot_LookupUsesDraftName(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)
	f.send(photo())

	f.send(command("/lookup"))
	require.Equal(t, msgEnterDrug, f.api.last())

	f.send(command("/drug vanco"))
	f.send(command("/lookup"))
	f.bot.wait()
	require.Contains(t, f.api.all(), msgClassifying)
	require.Contains(t, f.api.last(), "Vancomycin")

	draft, reason := f.c.WorkspaceService.Get(chatID).Form.Draft()
	require.Equal(t, entity.FluidVesicant, draft.FluidCategory)
	require.Equal(t, "Vancomycin", draft.DrugName)
	require.NotEmpty(t, reason)
}

func TestBot_LabelScanAppliesClassification(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)
	f.send(photo())
	f.send(command("/pain 4"))

	f.send(command("/label"))
	require.Equal(t, msgAwaitingLabel, f.api.last())

	f.send(photo())
	f.bot.wait()
	require.Contains(t, f.api.last(), "Vancomycin")
	require.Contains(t, f.api.last(), "Боль: 4/10")

	op, err := f.c.OperatorService.Get(context.Background(), chatID, chatID)
	require.NoError(t, err)
	require.Equal(t, entity.ModeHome, op.Mode)
	require.Equal(t, session.PhaseInputDetails, f.phase().Name())
}

func TestBot_SubmitRendersAssessment(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)
	f.send(photo())
	f.send(command("/drug NSS"))

	f.send(command("/submit"))
	f.bot.wait()

	sent := f.api.all()
	require.Contains(t, sent, msgAnalyzing)
	require.Contains(t, f.api.last(), "Инфильтрация")
	require.Contains(t, f.api.last(), "остановить инфузию")
	require.Equal(t, session.PhaseSuccess, f.phase().Name())
}

func TestBot_FailureThenEditAndRetry(t *testing.T) {
	f := newFixture(t, scriptedGenerator{analysisErr: errors.New("503")}, nil)
	f.send(photo())

	f.send(command("/submit"))
	f.bot.wait()
	require.Contains(t, f.api.last(), entity.AnalysisFailedMessage)
	require.Equal(t, session.PhaseError, f.phase().Name())

	f.send(command("/retry"))
	f.bot.wait()
	require.Contains(t, f.api.last(), entity.AnalysisFailedMessage)

	f.send(command("/edit"))
	require.Contains(t, f.api.last(), "Клинические данные")
	require.Equal(t, session.PhaseInputDetails, f.phase().Name())
}

func TestBot_RetryWithoutFailure(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)

	f.send(command("/retry"))
	f.bot.wait()
	require.Equal(t, msgNothingToRetry, f.api.last())

	f.send(command("/edit"))
	require.Equal(t, msgNothingToRetry, f.api.last())
}

func TestBot_ResetClearsSession(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)
	f.send(photo())

	f.send(command("/reset"))
	require.Equal(t, msgCancelled, f.api.last())
	require.Equal(t, session.PhaseIdle, f.phase().Name())
}

func TestBot_CameraUnavailable(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)

	f.send(command("/camera"))
	require.Equal(t, entity.UserMessage(&entity.CameraUnavailableError{Reason: entity.CameraNoDevice}), f.api.last())
}

func TestBot_CameraShutterReleasesDevice(t *testing.T) {
	stream := &fakeStream{}
	f := newFixture(t, scriptedGenerator{}, fakeOpener{stream: stream})

	f.send(command("/camera"))
	require.Contains(t, f.api.last(), "Клинические данные")
	require.Equal(t, session.PhaseInputDetails, f.phase().Name())
	require.True(t, stream.isClosed())
}

func TestBot_AutoCaptureStopsAfterFirstFrame(t *testing.T) {
	stream := &fakeStream{}
	f := newFixture(t, scriptedGenerator{}, fakeOpener{stream: stream})

	f.send(command("/auto"))
	require.Contains(t, f.api.all(), msgAutoOn)

	require.Eventually(t, func() bool {
		return f.phase().Name() == session.PhaseInputDetails
	}, time.Second, 5*time.Millisecond)

	f.bot.wait()
	require.True(t, stream.isClosed())
	require.False(t, f.bot.autoRunning(chatID))

	op, err := f.c.OperatorService.Get(context.Background(), chatID, chatID)
	require.NoError(t, err)
	require.False(t, op.AutoCapture)
}

func TestBot_AutoCaptureToggleOff(t *testing.T) {
	stream := &fakeStream{}
	f := newFixture(t, scriptedGenerator{}, fakeOpener{stream: stream})
	f.bot.container.Acquisition = app.NewAcquisition(fakeOpener{stream: stream}, app.AcquisitionConfig{AutoInterval: time.Hour}, nil)

	f.send(command("/auto"))
	require.True(t, f.bot.autoRunning(chatID))

	f.send(command("/auto"))
	require.Equal(t, msgAutoOff, f.api.last())

	f.bot.wait()
	require.True(t, stream.isClosed())
	require.Equal(t, session.PhaseIdle, f.phase().Name())
}

func TestBot_RunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.bot.Run(ctx))
}

func TestBot_LookupDoesNotBlockUpdates(t *testing.T) {
	gen := blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, gen, nil)
	f.send(photo())

	f.send(command("/lookup dopamine"))
	<-gen.started

	// Пока модель думает, остальные команды обрабатываются.
	f.send(command("/pain 3"))
	require.Contains(t, f.api.last(), "Боль: 3/10")

	close(gen.release)
	f.bot.wait()
	require.Contains(t, f.api.last(), "Vancomycin")
	require.Contains(t, f.api.last(), "Боль: 3/10")
}

func TestBot_ResetDiscardsPendingLookup(t *testing.T) {
	gen := blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, gen, nil)
	f.send(photo())

	f.send(command("/lookup dopamine"))
	<-gen.started
	f.send(command("/reset"))

	close(gen.release)
	f.bot.wait()
	require.Equal(t, msgCancelled, f.api.last())

	draft, _ := f.c.WorkspaceService.Get(chatID).Form.Draft()
	require.Empty(t, draft.DrugName)
}

func TestBot_LabelModeIsPerChat(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)
	const otherChat = int64(77)

	f.send(photo())
	f.send(command("/label"))

	// Тот же пользователь присылает фото в другой чат: это снимок места пункции.
	f.send(photoIn(otherChat))
	f.bot.wait()
	require.Equal(t, session.PhaseInputDetails, f.c.WorkspaceService.Get(otherChat).Session.Snapshot().Name())

	op, err := f.c.OperatorService.Get(context.Background(), chatID, chatID)
	require.NoError(t, err)
	require.Equal(t, entity.ModeLabelScan, op.Mode)
}

func TestBot_AnalysisDoesNotRaceWithUpdates(t *testing.T) {
	f := newFixture(t, scriptedGenerator{}, nil)
	f.send(photo())

	f.send(command("/submit"))
	// Чтение режима оператора из цикла обновлений во время анализа.
	for i := 0; i < 20; i++ {
		f.send(command("/form"))
	}
	f.bot.wait()
	require.Equal(t, session.PhaseSuccess, f.phase().Name())
}
