package telegram

import (
	"fmt"
	"strings"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/session"
)

const (
	msgStart = `👋 Привет! Я помогаю оценить место установки периферического катетера.

📸 Отправьте фото места пункции или снимите его камерой станции, затем заполните клинические данные.

📋 Команды:
/check — загрузить фото
/camera — снять камерой станции
/auto — автосъёмка каждые несколько секунд
/help — справка
/reset — начать заново`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото места пункции (/check) или снимите его (/camera, /auto)
2️⃣ Заполните данные:
/drug <название> — препарат или раствор
/lookup [название] — определить группу риска по названию
/label — определить по фото этикетки
/category vesicant|non_vesicant|unsure — группа риска вручную
/pain <0-10> — шкала боли
/size <0-20> — размер очага, см
/temp cool|normal|warm — температура кожи
/cord yes|no — пальпируемый тяж
/form — показать данные
3️⃣ /submit — запустить анализ

При ошибке: /retry — повторить, /edit — изменить данные.
/cancel — отменить, /reset — начать заново.`

	msgAwaitingPhoto    = "📸 Отправьте фото места пункции."
	msgAwaitingLabel    = "🏷 Отправьте фото этикетки препарата."
	msgCancelled        = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendPhoto        = "📸 Пожалуйста, отправьте фото места пункции или используйте /help."
	msgUnknownCommand   = "❓ Неизвестная команда. Используйте /help для справки."
	msgNotImage         = "⚠️ Можно загрузить только изображение. Выберите другой файл."
	msgDownloadError    = "⚠️ Не удалось загрузить файл. Попробуйте ещё раз."
	msgNoImage          = "📸 Сначала отправьте фото места пункции."
	msgBusy             = "⏳ Анализ уже выполняется, дождитесь результата."
	msgAnalyzing        = "🧠 Анализирую снимок вместе с клиническими данными..."
	msgClassifying      = "🔎 Определяю группу риска раствора..."
	msgCameraNotReady   = "📷 Камера ещё не готова. Попробуйте ещё раз."
	msgAutoOn           = "🔄 Автосъёмка включена. Наведите камеру на место пункции."
	msgAutoOff          = "⏹ Автосъёмка выключена."
	msgNothingToRetry   = "Повторять нечего. Используйте /check."
	msgEnterDrug        = "Укажите название: /drug <название> или /lookup <название>."
	msgBadNumber        = "⚠️ Нужно число."
	msgBadTemp          = "⚠️ Допустимо: cool, normal, warm."
	msgBadCord          = "⚠️ Допустимо: yes или no."
	msgBadCategory      = "⚠️ Допустимо: vesicant, non_vesicant, unsure."
	msgUnexpectedFailed = "⚠️ Не удалось выполнить действие. Попробуйте /reset."
)

func formatForm(in entity.ClinicalInputs, reason string) string {
	var b strings.Builder
	b.WriteString("📝 Клинические данные:\n")

	drug := in.DrugName
	if drug == "" {
		drug = "—"
	}
	fmt.Fprintf(&b, "💧 Препарат: %s\n", drug)
	fmt.Fprintf(&b, "⚗️ Группа риска: %s\n", categoryLabel(in.FluidCategory))
	if reason != "" {
		fmt.Fprintf(&b, "🤖 Заметка ИИ: %s\n", reason)
	}
	fmt.Fprintf(&b, "😣 Боль: %d/10\n", in.PainLevel)
	fmt.Fprintf(&b, "📏 Размер: %.1f см\n", in.SymptomSizeCm)
	fmt.Fprintf(&b, "🌡 Температура кожи: %s\n", in.SkinTemp)
	fmt.Fprintf(&b, "🪢 Пальпируемый тяж: %s\n", yesNo(in.Hardness))
	b.WriteString("\nИзмените поля командами из /help и отправьте /submit.")
	return b.String()
}

func formatClassification(c entity.FluidClassification) string {
	return fmt.Sprintf("🔎 %s: %s\n%s", c.DrugName, categoryLabel(c.Category), c.Reason)
}

func formatPhase(p session.Phase) string {
	switch v := p.(type) {
	case session.Success:
		return formatAssessment(v.Result)
	case session.Failed:
		return fmt.Sprintf("⚠️ Анализ прерван.\n%s\n\n/retry — повторить, /edit — изменить данные, /reset — начать заново.", v.Message)
	case session.Analyzing:
		return msgAnalyzing
	case session.InputDetails:
		return "Снимок получен. Заполните данные и отправьте /submit."
	default:
		return msgSendPhoto
	}
}

func formatAssessment(r entity.ComplicationAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🩺 %s\n", r.Status)
	fmt.Fprintf(&b, "📊 Степень: %s\n\n", r.Severity)
	fmt.Fprintf(&b, "👁 Визуальные признаки:\n%s\n\n", r.VisualEvidence)
	fmt.Fprintf(&b, "💉 Сестринские вмешательства:\n%s\n\n", r.NursingIntervention)
	fmt.Fprintf(&b, "⚠️ Предупреждение:\n%s\n\n", r.SafetyWarning)
	b.WriteString("/check — новая проверка")
	return b.String()
}

func categoryLabel(c entity.FluidCategory) string {
	switch c {
	case entity.FluidVesicant:
		return "везикант (высокий риск)"
	case entity.FluidUnsure:
		return "не определено"
	default:
		return "не везикант"
	}
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}

func parseYesNo(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "да", "1", "true":
		return true, true
	case "no", "n", "нет", "0", "false":
		return false, true
	}
	return false, false
}
