package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

var assessmentFields = []string{"status", "severity", "visualEvidence", "nursingIntervention", "safetyWarning"}

const analysisDirective = "Analyze this IV site complication using the provided clinical data."

// ComplicationAnalyzer оценивает осложнение по снимку и клиническим данным.
// В отличие от классификатора, сбой всегда возвращается вызывающему.
type ComplicationAnalyzer struct {
	generator port.Generator
	language  string
	log       *logrus.Entry
}

// NewComplicationAnalyzer создаёт анализатор.
func NewComplicationAnalyzer(generator port.Generator, language string, logger *logrus.Logger) *ComplicationAnalyzer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ComplicationAnalyzer{
		generator: generator,
		language:  language,
		log:       logger.WithField("component", "complication_analyzer"),
	}
}

// Analyze возвращает оценку или *entity.AnalysisFailedError.
func (a *ComplicationAnalyzer) Analyze(ctx context.Context, image entity.CapturedImage, inputs entity.ClinicalInputs) (*entity.ComplicationAssessment, error) {
	if a.generator == nil {
		return nil, &entity.AnalysisFailedError{Err: errors.New("generator is not configured")}
	}
	if image.Empty() {
		return nil, &entity.AnalysisFailedError{Err: entity.ErrNoImage}
	}

	text, err := a.generator.Generate(ctx, BuildAnalysisRequest(image, inputs, a.language))
	if err != nil {
		return nil, &entity.AnalysisFailedError{Err: fmt.Errorf("generate: %w", err)}
	}

	var result entity.ComplicationAssessment
	if err := decodeStrict(text, assessmentFields, &result); err != nil {
		return nil, &entity.AnalysisFailedError{Err: err}
	}

	a.log.WithField("severity", result.Severity).Debug("analysis completed")
	return &result, nil
}

// BuildAnalysisRequest собирает запрос анализа. Клинические данные сериализуются
// в системную инструкцию всегда в одном порядке.
func BuildAnalysisRequest(image entity.CapturedImage, inputs entity.ClinicalInputs, language string) entity.GenerateRequest {
	return entity.GenerateRequest{
		SystemInstruction: analysisInstruction(inputs, language),
		Parts: []entity.Part{
			entity.ImagePart(image),
			entity.TextPart(analysisDirective),
		},
		ResponseMimeType: "application/json",
		ResponseSchema:   entity.StringObjectSchema(assessmentFields...),
	}
}

func analysisInstruction(in entity.ClinicalInputs, language string) string {
	cord := "No"
	if in.Hardness {
		cord = "Yes"
	}
	drug := in.DrugName
	if drug == "" {
		drug = unknownDrugName
	}

	var b strings.Builder
	b.WriteString("Role: Expert Infusion Nurse Specialist. Analyze IV complications (Phlebitis, Infiltration, Extravasation) per INS standards.\n")
	b.WriteString("Input Data:\n")
	fmt.Fprintf(&b, "- Drug: %s (%s)\n", drug, in.FluidCategory)
	fmt.Fprintf(&b, "- Size: %.1f cm\n", in.SymptomSizeCm)
	fmt.Fprintf(&b, "- Pain: %d/10\n", in.PainLevel)
	fmt.Fprintf(&b, "- Temp: %s\n", in.SkinTemp)
	fmt.Fprintf(&b, "- Cord: %s\n", cord)
	fmt.Fprintf(&b, "\nOutput JSON in %s.", language)
	return b.String()
}

var _ port.ComplicationAnalyzer = (*ComplicationAnalyzer)(nil)
