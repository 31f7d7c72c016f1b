package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/domain/port"
)

func newTestClassifier(t *testing.T, gen *fakeGenerator, cacheSize int) *FluidClassifier {
	t.Helper()
	c, err := NewFluidClassifier(gen, "Russian", cacheSize, quietLogger())
	require.NoError(t, err)
	return c
}

func TestFluidClassifier_Success(t *testing.T) {
	gen := &fakeGenerator{response: `{"category":"vesicant","reason":"вазопрессор","drugName":"Dopamine"}`}
	c := newTestClassifier(t, gen, 0)

	got := c.Classify(context.Background(), port.ClassifyInput{Text: "dopamine"})
	require.Equal(t, entity.FluidClassification{
		Category: entity.FluidVesicant,
		Reason:   "вазопрессор",
		DrugName: "Dopamine",
	}, got)
}

func TestFluidClassifier_RequestShape(t *testing.T) {
	gen := &fakeGenerator{response: `{"category":"unsure","reason":"r","drugName":"d"}`}
	c := newTestClassifier(t, gen, 0)

	c.Classify(context.Background(), port.ClassifyInput{Text: "KCl", ImageBase64: "AAAA"})

	req := gen.requests[0]
	require.Equal(t, "application/json", req.ResponseMimeType)
	require.Equal(t, []string{"category", "reason", "drugName"}, req.ResponseSchema.Required)
	require.Equal(t, entity.SchemaString, req.ResponseSchema.Properties["drugName"])
	require.Len(t, req.Parts, 3)
	require.Contains(t, req.Parts[0].Text, "Expert Clinical Pharmacist")
	require.Contains(t, req.Parts[0].Text, "short explanation in Russian")
	require.Equal(t, "Drug name to check: KCl", req.Parts[1].Text)
	require.Equal(t, "AAAA", req.Parts[2].InlineData.Data)
	require.Equal(t, entity.MimeJPEG, req.Parts[2].InlineData.MimeType)
}

func TestFluidClassifier_DegradesOnFailure(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"transport":        {err: errors.New("connection refused")},
		"malformed json":   {response: `{"category": "vesicant",`},
		"not json":         {response: "Dopamine is a vesicant"},
		"missing field":    {response: `{"category":"vesicant","drugName":"Dopamine"}`},
		"non string field": {response: `{"category":"vesicant","reason":1,"drugName":"Dopamine"}`},
		"unknown category": {response: `{"category":"toxic","reason":"r","drugName":"Dopamine"}`},
		"empty":            {response: ""},
		"null reason":      {response: `{"category":"vesicant","reason":null,"drugName":"Dopamine"}`},
		"empty reason":     {response: `{"category":"vesicant","reason":"","drugName":"Dopamine"}`},
		"empty drug name":  {response: `{"category":"vesicant","reason":"r","drugName":""}`},
		"bool category":    {response: `{"category":true,"reason":"r","drugName":"Dopamine"}`},
	}

	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClassifier(t, gen, 8)
			got := c.Classify(context.Background(), port.ClassifyInput{Text: "dopamine"})
			require.Equal(t, entity.FluidUnsure, got.Category)
			require.Equal(t, ClassifierFallbackReason, got.Reason)
			require.Equal(t, "dopamine", got.DrugName)
		})
	}
}

func TestFluidClassifier_FallbackNameForLabelScan(t *testing.T) {
	gen := &fakeGenerator{response: "not json"}
	c := newTestClassifier(t, gen, 0)

	got := c.Classify(context.Background(), port.ClassifyInput{ImageBase64: "AAAA"})
	require.Equal(t, entity.FluidUnsure, got.Category)
	require.Equal(t, "Unknown", got.DrugName)
}

func TestFluidClassifier_NilGeneratorDegrades(t *testing.T) {
	c, err := NewFluidClassifier(nil, "Russian", 0, nil)
	require.NoError(t, err)
	got := c.Classify(context.Background(), port.ClassifyInput{Text: "NSS"})
	require.Equal(t, entity.FluidUnsure, got.Category)
}

func TestFluidClassifier_CachesTextLookups(t *testing.T) {
	gen := &fakeGenerator{response: `{"category":"non_vesicant","reason":"изотонический","drugName":"NSS"}`}
	c := newTestClassifier(t, gen, 8)

	first := c.Classify(context.Background(), port.ClassifyInput{Text: "NSS"})
	second := c.Classify(context.Background(), port.ClassifyInput{Text: "  nss "})
	require.Equal(t, first, second)
	require.Equal(t, 1, gen.calls())

	c.Classify(context.Background(), port.ClassifyInput{ImageBase64: "AAAA"})
	c.Classify(context.Background(), port.ClassifyInput{ImageBase64: "AAAA"})
	require.Equal(t, 3, gen.calls())
}

func TestFluidClassifier_DoesNotCacheFallback(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("timeout")}
	c := newTestClassifier(t, gen, 8)

	c.Classify(context.Background(), port.ClassifyInput{Text: "NSS"})
	gen.err = nil
	gen.response = `{"category":"non_vesicant","reason":"r","drugName":"NSS"}`

	got := c.Classify(context.Background(), port.ClassifyInput{Text: "NSS"})
	require.Equal(t, entity.FluidNonVesicant, got.Category)
	require.Equal(t, 2, gen.calls())
}
