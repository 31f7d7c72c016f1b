package gemini

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"ivsite-bot/internal/domain/entity"
)

// toContents переводит части запроса в одно сообщение пользователя.
// Картинки приходят в base64, SDK ждёт сырые байты.
func toContents(req entity.GenerateRequest) ([]*genai.Content, error) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for i, p := range req.Parts {
		if p.InlineData != nil {
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("part %d: decode inline data: %w", i, err)
			}
			parts = append(parts, genai.NewPartFromBytes(data, p.InlineData.MimeType))
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}, nil
}

func toConfig(req entity.GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: req.ResponseMimeType,
		ResponseSchema:   toSchema(req.ResponseSchema),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}
	return cfg
}

func toSchema(s *entity.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{Type: genai.Type(s.Type), Required: s.Required}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, t := range s.Properties {
			out.Properties[name] = &genai.Schema{Type: genai.Type(t)}
		}
	}
	return out
}

// responseText склеивает текст первого кандидата.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked prompt: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var text string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			text += p.Text
		}
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
