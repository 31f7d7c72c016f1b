package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "ivsite-bot/internal/application"
	"ivsite-bot/internal/container"
	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/session"
)

const (
	shutterAttempts = 5
	shutterBackoff  = 200 * time.Millisecond
)

// botAPI часть tgbotapi.BotAPI, которой пользуется бот.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// autoRun запущенная автосъёмка одного чата.
type autoRun struct {
	cancel context.CancelFunc
}

// Bot представляет Telegram-бота
type Bot struct {
	api        botAPI
	httpClient *http.Client
	container  *container.Container
	log        *logrus.Entry

	// фоновые задачи чатов
	wg       sync.WaitGroup
	autoMu   sync.Mutex
	autoRuns map[int64]*autoRun
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, logger *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithField("account", api.Self.UserName).Info("authorized")

	return newBot(api, c, logger, &http.Client{Timeout: 30 * time.Second}), nil
}

func newBot(api botAPI, c *container.Container, logger *logrus.Logger, httpClient *http.Client) *Bot {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	b := &Bot{
		api:        api,
		httpClient: httpClient,
		container:  c,
		log:        logger.WithField("component", "telegram"),
		autoRuns:   make(map[int64]*autoRun),
	}
	c.WorkspaceService.OnTransition(b.onTransition)
	return b
}

// onTransition сообщает оператору о начале и итоге анализа.
func (b *Bot) onTransition(chatID int64, p session.Phase) {
	switch p.(type) {
	case session.Analyzing, session.Success, session.Failed:
		b.sendMessage(chatID, formatPhase(p))
	}
}

// Run запускает основной цикл обработки сообщений
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.stopAllAuto()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// wait дожидается фоновых задач.
func (b *Bot) wait() {
	b.wg.Wait()
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	op, err := b.container.OperatorService.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.WithError(err).WithField("chat_id", msg.Chat.ID).Error("get operator")
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, op)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		b.handleImage(ctx, msg, op, photo.FileID, entity.MimeJPEG)
		return
	}

	// Изображение, отправленное файлом
	if msg.Document != nil {
		b.handleImage(ctx, msg, op, msg.Document.FileID, msg.Document.MimeType)
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, op *entity.Operator) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.reset(ctx, userID, chatID)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		if _, err := b.container.OperatorService.BeginUpload(ctx, userID, chatID); err != nil {
			b.fail(chatID, err)
			return
		}
		b.sendMessage(chatID, msgAwaitingPhoto)

	case "camera":
		b.handleCamera(ctx, msg)

	case "auto":
		b.toggleAuto(ctx, msg, op)

	case "drug", "lookup", "label", "pain", "size", "temp", "cord", "category", "form":
		b.handleIntake(ctx, msg, args)

	case "submit":
		b.startAnalysis(ctx, chatID, func(ctx context.Context) (session.Phase, error) {
			return b.container.WorkspaceService.Submit(ctx, userID, chatID)
		})

	case "retry":
		b.startAnalysis(ctx, chatID, func(ctx context.Context) (session.Phase, error) {
			return b.container.WorkspaceService.Retry(ctx, userID, chatID)
		})

	case "edit":
		ws := b.container.WorkspaceService.Get(chatID)
		if err := ws.Session.Amend(); err != nil {
			b.sendMessage(chatID, msgNothingToRetry)
			return
		}
		b.sendForm(chatID, ws)

	case "cancel", "reset":
		b.reset(ctx, userID, chatID)
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handleIntake меняет поля формы. Доступно, пока в сессии есть снимок.
func (b *Bot) handleIntake(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	ws := b.container.WorkspaceService.Get(chatID)

	switch ws.Session.Snapshot().(type) {
	case session.InputDetails, session.Failed:
	case session.Analyzing:
		b.sendMessage(chatID, msgBusy)
		return
	default:
		b.sendMessage(chatID, msgNoImage)
		return
	}

	form := ws.Form
	switch msg.Command() {
	case "drug":
		if args == "" {
			b.sendMessage(chatID, msgEnterDrug)
			return
		}
		form.SetDrugName(args)

	case "lookup":
		name := args
		if name == "" {
			draft, _ := form.Draft()
			name = draft.DrugName
		}
		if strings.TrimSpace(name) == "" {
			b.sendMessage(chatID, msgEnterDrug)
			return
		}
		b.startClassification(ctx, chatID, ws, func(ctx context.Context) (entity.FluidClassification, bool) {
			return form.LookupName(ctx, name)
		})
		return

	case "label":
		if _, err := b.container.OperatorService.SetMode(ctx, msg.From.ID, chatID, entity.ModeLabelScan); err != nil {
			b.fail(chatID, err)
			return
		}
		b.sendMessage(chatID, msgAwaitingLabel)
		return

	case "pain":
		v, err := strconv.Atoi(args)
		if err != nil {
			b.sendMessage(chatID, msgBadNumber)
			return
		}
		form.SetPainLevel(v)

	case "size":
		v, err := strconv.ParseFloat(strings.ReplaceAll(args, ",", "."), 64)
		if err != nil {
			b.sendMessage(chatID, msgBadNumber)
			return
		}
		form.SetSymptomSize(v)

	case "temp":
		t, err := entity.ParseSkinTemp(args)
		if err != nil {
			b.sendMessage(chatID, msgBadTemp)
			return
		}
		form.SetSkinTemp(t)

	case "cord":
		v, ok := parseYesNo(args)
		if !ok {
			b.sendMessage(chatID, msgBadCord)
			return
		}
		form.SetHardness(v)

	case "category":
		c, err := entity.ParseFluidCategory(args)
		if err != nil {
			b.sendMessage(chatID, msgBadCategory)
			return
		}
		form.SetFluidCategory(c)
	}

	b.sendForm(chatID, ws)
}

// handleImage принимает фото места пункции или этикетки.
func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message, op *entity.Operator, fileID, mimeType string) {
	chatID := msg.Chat.ID

	if !entity.IsImageType(mimeType) {
		b.sendMessage(chatID, msgNotImage)
		return
	}

	data, err := b.downloadFile(fileID)
	if err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("download file")
		b.sendMessage(chatID, msgDownloadError)
		return
	}

	if op.Mode == entity.ModeLabelScan {
		b.scanLabel(ctx, msg, data, mimeType)
		return
	}

	img, err := b.container.Acquisition.FromUpload(bytes.NewReader(data), mimeType)
	if err != nil {
		b.sendMessage(chatID, entity.UserMessage(err))
		return
	}

	b.acceptImage(ctx, msg.From.ID, chatID, img)
}

func (b *Bot) scanLabel(ctx context.Context, msg *tgbotapi.Message, data []byte, mimeType string) {
	chatID := msg.Chat.ID
	if _, err := b.container.OperatorService.Home(ctx, msg.From.ID, chatID); err != nil {
		b.fail(chatID, err)
		return
	}

	payload, err := b.container.Acquisition.LabelPayload(bytes.NewReader(data), mimeType)
	if err != nil {
		b.sendMessage(chatID, msgNotImage)
		return
	}

	ws := b.container.WorkspaceService.Get(chatID)
	b.startClassification(ctx, chatID, ws, func(ctx context.Context) (entity.FluidClassification, bool) {
		return ws.Form.ScanLabel(ctx, payload)
	})
}

// startClassification запускает запрос к классификатору в фоне. Результат,
// отброшенный формой после сброса, оператору не показывается.
func (b *Bot) startClassification(ctx context.Context, chatID int64, ws *app.Workspace, classify func(context.Context) (entity.FluidClassification, bool)) {
	b.sendMessage(chatID, msgClassifying)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		result, applied := classify(context.WithoutCancel(ctx))
		if !applied {
			return
		}
		b.sendMessage(chatID, formatClassification(result))
		b.sendForm(chatID, ws)
	}()
}

func (b *Bot) acceptImage(ctx context.Context, userID, chatID int64, img entity.CapturedImage) {
	if _, err := b.container.WorkspaceService.AcceptImage(ctx, userID, chatID, img); err != nil {
		if errors.Is(err, entity.ErrAnalysisInFlight) {
			b.sendMessage(chatID, msgBusy)
			return
		}
		b.fail(chatID, err)
		return
	}
	b.sendForm(chatID, b.container.WorkspaceService.Get(chatID))
}

// handleCamera делает один снимок камерой станции.
func (b *Bot) handleCamera(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if b.container.WorkspaceService.Get(chatID).Session.Busy() {
		b.sendMessage(chatID, msgBusy)
		return
	}

	h, err := b.container.Acquisition.OpenCamera(ctx)
	if err != nil {
		b.sendMessage(chatID, entity.UserMessage(err))
		return
	}
	defer h.Release()

	img, err := shutterWhenReady(ctx, h)
	if err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("camera shutter")
		b.sendMessage(chatID, msgCameraNotReady)
		return
	}
	if img.Empty() {
		b.sendMessage(chatID, msgCameraNotReady)
		return
	}

	b.acceptImage(ctx, msg.From.ID, chatID, img)
}

// shutterWhenReady даёт камере прогреться: пустые кадры пропускаются.
func shutterWhenReady(ctx context.Context, h *app.CameraHandle) (entity.CapturedImage, error) {
	for i := 0; i < shutterAttempts; i++ {
		img, ok, err := h.Shutter()
		if err != nil {
			return entity.CapturedImage{}, err
		}
		if ok {
			return img, nil
		}
		select {
		case <-ctx.Done():
			return entity.CapturedImage{}, ctx.Err()
		case <-time.After(shutterBackoff):
		}
	}
	return entity.CapturedImage{}, nil
}

// toggleAuto включает или выключает автосъёмку для чата.
func (b *Bot) toggleAuto(ctx context.Context, msg *tgbotapi.Message, op *entity.Operator) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if op.AutoCapture || b.autoRunning(chatID) {
		b.stopAuto(chatID)
		if _, err := b.container.OperatorService.SetAutoCapture(ctx, userID, chatID, false); err != nil {
			b.fail(chatID, err)
			return
		}
		b.sendMessage(chatID, msgAutoOff)
		return
	}

	h, err := b.container.Acquisition.OpenCamera(ctx)
	if err != nil {
		b.sendMessage(chatID, entity.UserMessage(err))
		return
	}
	if _, err := b.container.OperatorService.SetAutoCapture(ctx, userID, chatID, true); err != nil {
		h.Release()
		b.fail(chatID, err)
		return
	}

	baseCtx := context.WithoutCancel(ctx)
	autoCtx, cancel := context.WithCancel(baseCtx)
	run := &autoRun{cancel: cancel}
	b.autoMu.Lock()
	b.autoRuns[chatID] = run
	b.autoMu.Unlock()

	ws := b.container.WorkspaceService.Get(chatID)
	b.sendMessage(chatID, msgAutoOn)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer h.Release()

		err := b.container.Acquisition.AutoCapture(autoCtx, h, ws.Session.Busy, func(img entity.CapturedImage) {
			// Первый удачный кадр завершает автосъёмку.
			cancel()
			b.acceptImage(baseCtx, userID, chatID, img)
		})
		if err != nil {
			b.log.WithError(err).WithField("chat_id", chatID).Warn("auto capture stopped")
		}

		// При выключении командой флаг уже сброшен.
		if !b.finishAuto(chatID, run) {
			return
		}
		if _, err := b.container.OperatorService.SetAutoCapture(baseCtx, userID, chatID, false); err != nil {
			b.log.WithError(err).WithField("chat_id", chatID).Warn("reset auto capture flag")
		}
	}()
}

func (b *Bot) autoRunning(chatID int64) bool {
	b.autoMu.Lock()
	defer b.autoMu.Unlock()
	_, ok := b.autoRuns[chatID]
	return ok
}

func (b *Bot) stopAuto(chatID int64) {
	b.autoMu.Lock()
	run, ok := b.autoRuns[chatID]
	delete(b.autoRuns, chatID)
	b.autoMu.Unlock()
	if ok {
		run.cancel()
	}
}

func (b *Bot) stopAllAuto() {
	b.autoMu.Lock()
	runs := b.autoRuns
	b.autoRuns = make(map[int64]*autoRun)
	b.autoMu.Unlock()
	for _, run := range runs {
		run.cancel()
	}
}

// finishAuto убирает запись, только если она принадлежит этому запуску.
func (b *Bot) finishAuto(chatID int64, run *autoRun) bool {
	run.cancel()
	b.autoMu.Lock()
	defer b.autoMu.Unlock()
	if b.autoRuns[chatID] != run {
		return false
	}
	delete(b.autoRuns, chatID)
	return true
}

// startAnalysis запускает анализ в фоне, чтобы цикл обновлений не блокировался.
// О начале и итоге анализа сообщает onTransition.
func (b *Bot) startAnalysis(ctx context.Context, chatID int64, run func(context.Context) (session.Phase, error)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		phase, err := run(context.WithoutCancel(ctx))
		switch {
		case err == nil:
		case errors.Is(err, entity.ErrStaleResolution):
			// сессию сбросили, пока шёл анализ
		case errors.Is(err, entity.ErrNoImage):
			b.sendMessage(chatID, msgNoImage)
		case errors.Is(err, entity.ErrAnalysisInFlight):
			b.sendMessage(chatID, msgBusy)
		case errors.Is(err, entity.ErrInvalidTransition):
			b.sendMessage(chatID, msgNothingToRetry)
		case phase == nil:
			b.fail(chatID, err)
		}
	}()
}

func (b *Bot) reset(ctx context.Context, userID, chatID int64) {
	b.stopAuto(chatID)
	if _, err := b.container.WorkspaceService.Reset(ctx, userID, chatID); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Error("reset workspace")
	}
	if _, err := b.container.OperatorService.SetAutoCapture(ctx, userID, chatID, false); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Error("reset auto capture flag")
	}
}

func (b *Bot) sendForm(chatID int64, ws *app.Workspace) {
	draft, reason := ws.Form.Draft()
	b.sendMessage(chatID, formatForm(draft, reason))
}

func (b *Bot) fail(chatID int64, err error) {
	b.log.WithError(err).WithField("chat_id", chatID).Error("handle update")
	b.sendMessage(chatID, msgUnexpectedFailed)
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	resp, err := b.httpClient.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("send message")
	}
}
