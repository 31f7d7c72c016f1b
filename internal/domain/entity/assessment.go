package entity

// FluidClassification подсказка классификатора по раствору.
// Не является решением: оператор может её переопределить.
type FluidClassification struct {
	Category FluidCategory `json:"category"`
	Reason   string        `json:"reason"`
	DrugName string        `json:"drugName"`
}

// ComplicationAssessment итог анализа осложнения от модели.
type ComplicationAssessment struct {
	Status              string `json:"status"`
	Severity            string `json:"severity"`
	VisualEvidence      string `json:"visualEvidence"`
	NursingIntervention string `json:"nursingIntervention"`
	SafetyWarning       string `json:"safetyWarning"`
}
