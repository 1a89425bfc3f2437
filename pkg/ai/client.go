package ai

import (
	"context"
	"errors"
)

// CompletionRequest は LLM への1回分の依頼なのだ。
type CompletionRequest struct {
	Purpose     string // ログとテスト用のステージ名（"story_analysis" など）
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	Schema      *StructuredSchema // nil ならプレーンテキストで返してもらうのだ
}

// StructuredSchema は構造化出力を要求するときの JSON スキーマなのだ。
type StructuredSchema struct {
	Name        string
	Description string
	Schema      any
}

// LLMClient はテキスト補完サービスとの境界なのだ。複数の実行から同時に使われても安全でなければならないのだ。
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ImageRequest は1枚分の画像生成依頼なのだ。
type ImageRequest struct {
	Prompt      string
	Negative    string
	Seed        int64
	AspectRatio string // "16:9" など
	Size        string // "1536x1024" など。プロバイダによっては無視されるのだ
}

// ImageResult は生成された画像のバイト列なのだ。
type ImageResult struct {
	Data     []byte
	MIMEType string
}

// ImageClient は画像合成サービスとの境界なのだ。
type ImageClient interface {
	Synthesize(ctx context.Context, req ImageRequest) (ImageResult, error)
}

// EmbeddingClient は埋め込みサービスとの境界なのだ。
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ErrEmbeddingNotConfigured は埋め込みサービスが設定されていないことを表すのだ。
// 一時的な失敗（ServiceError）とは区別されるのだ。
var ErrEmbeddingNotConfigured = errors.New("embedding service is not configured")

// DisabledEmbedder は埋め込みを無効化したときに使う実装なのだ。
type DisabledEmbedder struct{}

func (DisabledEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, ErrEmbeddingNotConfigured
}

// IsEmbeddingConfigured は e が実際に呼び出し可能かどうかを返すのだ。
func IsEmbeddingConfigured(e EmbeddingClient) bool {
	if e == nil {
		return false
	}
	_, disabled := e.(DisabledEmbedder)
	return !disabled
}
