package intake

import (
	"context"
	"strings"
	"sync"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

// Form черновик клинических данных одной сессии.
type Form struct {
	mu         sync.Mutex
	classifier port.FluidClassifier
	draft      entity.ClinicalInputs
	reason     string
	generation uint64
}

// NewForm создаёт форму со значениями по умолчанию.
func NewForm(classifier port.FluidClassifier) *Form {
	return &Form{
		classifier: classifier,
		draft:      entity.NewClinicalInputs(),
	}
}

// Draft возвращает текущие значения и заметку классификатора.
func (f *Form) Draft() (entity.ClinicalInputs, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft, f.reason
}

func (f *Form) SetDrugName(name string) {
	f.mu.Lock()
	f.draft.DrugName = strings.TrimSpace(name)
	f.mu.Unlock()
}

// SetPainLevel принимает любое значение, хранит его в пределах шкалы.
func (f *Form) SetPainLevel(v int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.PainLevel = entity.ClampPain(v)
	return f.draft.PainLevel
}

// SetSymptomSize принимает размер в сантиметрах, хранит его в пределах 0..20.
func (f *Form) SetSymptomSize(cm float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.SymptomSizeCm = entity.ClampSize(cm)
	return f.draft.SymptomSizeCm
}

func (f *Form) SetSkinTemp(t entity.SkinTemp) {
	f.mu.Lock()
	f.draft.SkinTemp = t
	f.mu.Unlock()
}

func (f *Form) SetHardness(v bool) {
	f.mu.Lock()
	f.draft.Hardness = v
	f.mu.Unlock()
}

// SetFluidCategory ручной выбор оператора всегда важнее подсказки.
func (f *Form) SetFluidCategory(c entity.FluidCategory) {
	f.mu.Lock()
	f.draft.FluidCategory = c
	f.mu.Unlock()
}

// LookupName классифицирует раствор по названию.
// Пустое название ничего не делает. Возвращает false, если результат отброшен.
func (f *Form) LookupName(ctx context.Context, text string) (entity.FluidClassification, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return entity.FluidClassification{}, false
	}
	return f.classify(ctx, port.ClassifyInput{Text: text})
}

// ScanLabel классифицирует раствор по фото этикетки, переданному в base64.
func (f *Form) ScanLabel(ctx context.Context, imageBase64 string) (entity.FluidClassification, bool) {
	if imageBase64 == "" {
		return entity.FluidClassification{}, false
	}
	return f.classify(ctx, port.ClassifyInput{ImageBase64: imageBase64})
}

func (f *Form) classify(ctx context.Context, input port.ClassifyInput) (entity.FluidClassification, bool) {
	if f.classifier == nil {
		return entity.FluidClassification{}, false
	}

	f.mu.Lock()
	gen := f.generation
	f.mu.Unlock()

	result := f.classifier.Classify(ctx, input)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return result, false
	}
	f.applyLocked(result)
	return result, true
}

// applyLocked переносит подсказку в форму. Касается только названия,
// категории и заметки.
func (f *Form) applyLocked(result entity.FluidClassification) {
	if name := strings.TrimSpace(result.DrugName); name != "" {
		f.draft.DrugName = name
	}
	if c, err := entity.ParseFluidCategory(string(result.Category)); err == nil {
		f.draft.FluidCategory = c
	}
	f.reason = result.Reason
}

// Submit возвращает данные в допустимых диапазонах.
func (f *Form) Submit() entity.ClinicalInputs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Normalize()
}

// Cancel сбрасывает черновик; незавершённая классификация будет отброшена.
func (f *Form) Cancel() {
	f.mu.Lock()
	f.generation++
	f.draft = entity.NewClinicalInputs()
	f.reason = ""
	f.mu.Unlock()
}
