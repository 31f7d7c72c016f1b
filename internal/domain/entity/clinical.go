package entity

import (
	"fmt"
	"math"
	"strings"
)

// Границы слайдеров формы.
const (
	MinPainLevel   = 0
	MaxPainLevel   = 10
	MinSymptomSize = 0.0
	MaxSymptomSize = 20.0
)

// SkinTemp температура кожи в области пункции.
type SkinTemp string

const (
	SkinCool   SkinTemp = "cool"
	SkinNormal SkinTemp = "normal"
	SkinWarm   SkinTemp = "warm"
)

// FluidCategory группа риска вводимого раствора.
type FluidCategory string

const (
	FluidNonVesicant FluidCategory = "non_vesicant"
	FluidVesicant    FluidCategory = "vesicant"
	FluidUnsure      FluidCategory = "unsure"
)

// ParseSkinTemp разбирает значение температуры кожи.
func ParseSkinTemp(s string) (SkinTemp, error) {
	switch t := SkinTemp(strings.ToLower(strings.TrimSpace(s))); t {
	case SkinCool, SkinNormal, SkinWarm:
		return t, nil
	}
	return "", fmt.Errorf("%w: skin temperature %q", ErrInvalidInput, s)
}

// ParseFluidCategory разбирает категорию раствора.
func ParseFluidCategory(s string) (FluidCategory, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	switch c := FluidCategory(v); c {
	case FluidNonVesicant, FluidVesicant, FluidUnsure:
		return c, nil
	}
	return "", fmt.Errorf("%w: fluid category %q", ErrInvalidInput, s)
}

// ClinicalInputs клинические данные, которые оператор вводит перед анализом.
type ClinicalInputs struct {
	DrugName      string
	PainLevel     int
	SkinTemp      SkinTemp
	Hardness      bool // пальпируемый тяж
	FluidCategory FluidCategory
	SymptomSizeCm float64
}

// NewClinicalInputs возвращает значения формы по умолчанию.
func NewClinicalInputs() ClinicalInputs {
	return ClinicalInputs{
		SkinTemp:      SkinNormal,
		FluidCategory: FluidNonVesicant,
	}
}

// Normalize приводит поля к допустимым диапазонам.
func (c ClinicalInputs) Normalize() ClinicalInputs {
	c.DrugName = strings.TrimSpace(c.DrugName)
	c.PainLevel = ClampPain(c.PainLevel)
	c.SymptomSizeCm = ClampSize(c.SymptomSizeCm)
	if _, err := ParseSkinTemp(string(c.SkinTemp)); err != nil {
		c.SkinTemp = SkinNormal
	}
	if _, err := ParseFluidCategory(string(c.FluidCategory)); err != nil {
		c.FluidCategory = FluidNonVesicant
	}
	return c
}

// ClampPain ограничивает шкалу боли 0..10.
func ClampPain(v int) int {
	if v < MinPainLevel {
		return MinPainLevel
	}
	if v > MaxPainLevel {
		return MaxPainLevel
	}
	return v
}

// ClampSize ограничивает размер очага 0..20 см.
func ClampSize(v float64) float64 {
	if math.IsNaN(v) || v < MinSymptomSize {
		return MinSymptomSize
	}
	if v > MaxSymptomSize {
		return MaxSymptomSize
	}
	return v
}
