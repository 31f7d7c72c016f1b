package entity

import (
	"encoding/base64"
	"strings"
)

// MimeJPEG MIME-тип кадров с камеры.
const MimeJPEG = "image/jpeg"

// CapturedImage неизменяемый снимок места установки катетера.
type CapturedImage struct {
	Bytes    []byte // закодированное изображение
	MimeType string // объявленный MIME-тип
}

// NewCapturedImage копирует байты, чтобы снимок не зависел от буфера источника.
func NewCapturedImage(data []byte, mimeType string) CapturedImage {
	buf := make([]byte, len(data))
	copy(buf, data)
	return CapturedImage{Bytes: buf, MimeType: mimeType}
}

// Empty сообщает, что снимка нет.
func (i CapturedImage) Empty() bool {
	return len(i.Bytes) == 0
}

// Base64 возвращает только полезную нагрузку без data:-заголовка.
func (i CapturedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Bytes)
}

// IsImageType проверяет, что объявленный тип относится к изображениям.
func IsImageType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
