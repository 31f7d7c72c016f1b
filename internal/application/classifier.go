package app

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

const (
	// ClassifierFallbackReason заметка, когда определить раствор не удалось.
	ClassifierFallbackReason = "Не удалось определить"
	unknownDrugName          = "Unknown"
)

var classificationFields = []string{"category", "reason", "drugName"}

const classificationPrompt = `Role: Expert Clinical Pharmacist.
Task: Identify the IV drug/fluid and classify it as "vesicant" or "non_vesicant".
- Vesicants: Chemotherapy, Vasopressors (Dopamine, Norepinephrine), Calcium Gluconate, Potassium Chloride (>40mEq/L), Dextrose >10%%, Phenytoin, etc.
- Non-Vesicants: NS, LR, most antibiotics (unless specified high risk), vitamins.

Output in JSON:
{
  "category": "vesicant" | "non_vesicant" | "unsure",
  "reason": "short explanation in %s",
  "drugName": "identified generic or brand name"
}`

// FluidClassifier определяет группу риска раствора.
// Никогда не возвращает ошибку вызывающему: при любом сбое отдаёт "unsure".
type FluidClassifier struct {
	generator port.Generator
	language  string
	cache     *lru.Cache[string, entity.FluidClassification]
	log       *logrus.Entry
}

// NewFluidClassifier создаёт классификатор. cacheSize <= 0 отключает кэш названий.
func NewFluidClassifier(generator port.Generator, language string, cacheSize int, logger *logrus.Logger) (*FluidClassifier, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &FluidClassifier{
		generator: generator,
		language:  language,
		log:       logger.WithField("component", "fluid_classifier"),
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, entity.FluidClassification](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create classification cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Classify отправляет название и/или фото этикетки модели.
func (c *FluidClassifier) Classify(ctx context.Context, input port.ClassifyInput) entity.FluidClassification {
	key := cacheKey(input)
	if key != "" && c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			return cached
		}
	}

	result, err := c.classify(ctx, input)
	if err != nil {
		c.log.WithError(err).Warn("fluid classification degraded")
		return fallbackClassification(input)
	}

	if key != "" && c.cache != nil {
		c.cache.Add(key, result)
	}
	return result
}

func (c *FluidClassifier) classify(ctx context.Context, input port.ClassifyInput) (entity.FluidClassification, error) {
	if c.generator == nil {
		return entity.FluidClassification{}, fmt.Errorf("generator is not configured")
	}

	text, err := c.generator.Generate(ctx, BuildClassificationRequest(input, c.language))
	if err != nil {
		return entity.FluidClassification{}, fmt.Errorf("generate: %w", err)
	}

	var result entity.FluidClassification
	if err := decodeStrict(text, classificationFields, &result); err != nil {
		return entity.FluidClassification{}, err
	}
	category, err := entity.ParseFluidCategory(string(result.Category))
	if err != nil {
		return entity.FluidClassification{}, fmt.Errorf("%w: %v", errSchemaMismatch, err)
	}
	result.Category = category
	return result, nil
}

// BuildClassificationRequest собирает запрос классификации.
func BuildClassificationRequest(input port.ClassifyInput, language string) entity.GenerateRequest {
	parts := []entity.Part{entity.TextPart(fmt.Sprintf(classificationPrompt, language))}
	if input.Text != "" {
		parts = append(parts, entity.TextPart("Drug name to check: "+input.Text))
	}
	if input.ImageBase64 != "" {
		parts = append(parts, entity.Part{InlineData: &entity.InlineData{
			Data:     input.ImageBase64,
			MimeType: entity.MimeJPEG,
		}})
	}
	return entity.GenerateRequest{
		Parts:            parts,
		ResponseMimeType: "application/json",
		ResponseSchema:   entity.StringObjectSchema(classificationFields...),
	}
}

func fallbackClassification(input port.ClassifyInput) entity.FluidClassification {
	name := input.Text
	if name == "" {
		name = unknownDrugName
	}
	return entity.FluidClassification{
		Category: entity.FluidUnsure,
		Reason:   ClassifierFallbackReason,
		DrugName: name,
	}
}

// cacheKey кэшируются только текстовые запросы.
func cacheKey(input port.ClassifyInput) string {
	if input.ImageBase64 != "" {
		return ""
	}
	return strings.ToLower(strings.Join(strings.Fields(input.Text), " "))
}

var _ port.FluidClassifier = (*FluidClassifier)(nil)
