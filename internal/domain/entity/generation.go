package entity

// GenerateRequest запрос к мультимодальной модели.
type GenerateRequest struct {
	SystemInstruction string
	Parts             []Part
	ResponseMimeType  string
	ResponseSchema    *Schema
}

// Part часть запроса: либо текст, либо встроенные данные.
type Part struct {
	Text       string
	InlineData *InlineData
}

// InlineData изображение в base64 с MIME-типом.
type InlineData struct {
	Data     string
	MimeType string
}

// TextPart создаёт текстовую часть.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart создаёт часть со встроенным изображением.
func ImagePart(img CapturedImage) Part {
	return Part{InlineData: &InlineData{Data: img.Base64(), MimeType: img.MimeType}}
}

// SchemaType примитивный тип свойства схемы ответа.
type SchemaType string

const (
	SchemaObject SchemaType = "OBJECT"
	SchemaString SchemaType = "STRING"
)

// Schema описание ожидаемого JSON-объекта.
type Schema struct {
	Type       SchemaType
	Properties map[string]SchemaType
	Required   []string
}

// StringObjectSchema схема объекта, где все поля обязательные строки.
func StringObjectSchema(fields ...string) *Schema {
	props := make(map[string]SchemaType, len(fields))
	for _, f := range fields {
		props[f] = SchemaString
	}
	required := make([]string, len(fields))
	copy(required, fields)
	return &Schema{Type: SchemaObject, Properties: props, Required: required}
}
