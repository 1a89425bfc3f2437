package ai

import (
	"github.com/invopop/jsonschema"
)

// GenerateSchema は T から構造化出力用の JSON スキーマを作るのだ。
func GenerateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

// NewStructuredSchema は名前と説明付きのスキーマを返すのだ。
func NewStructuredSchema[T any](name, description string) *StructuredSchema {
	return &StructuredSchema{
		Name:        name,
		Description: description,
		Schema:      GenerateSchema[T](),
	}
}
