package app

import (
	"encoding/base64"
	"fmt"
	"io"
)

// EncodeBase64 читает источник целиком и возвращает только base64-нагрузку.
func EncodeBase64(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
