package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errSchemaMismatch = errors.New("response does not match schema")

// decodeStrict разбирает ответ модели: все обязательные поля должны быть
// непустыми строками.
func decodeStrict(text string, required []string, dst any) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: empty response", errSchemaMismatch)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	for _, name := range required {
		raw, ok := fields[name]
		if !ok {
			return fmt.Errorf("%w: missing %q", errSchemaMismatch, name)
		}
		// null в string разбирается без ошибки, поэтому проверяем токен сами
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '"' {
			return fmt.Errorf("%w: field %q is not a string", errSchemaMismatch, name)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%w: field %q is not a string", errSchemaMismatch, name)
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: field %q is empty", errSchemaMismatch, name)
		}
	}

	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
