package ai

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiConfig は Gemini API への接続設定なのだ。
type GeminiConfig struct {
	APIKey string
	Model  string
	Retry  RetryPolicy
}

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
	}
	return client, nil
}

// GeminiLLM は Models.GenerateContent を使う LLMClient なのだ。
type GeminiLLM struct {
	client *genai.Client
	model  string
	retry  RetryPolicy
}

func NewGeminiLLM(ctx context.Context, cfg GeminiConfig) (*GeminiLLM, error) {
	client, err := newGeminiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return &GeminiLLM{client: client, model: cmp.Or(cfg.Model, "gemini-2.5-flash"), retry: cfg.Retry}, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(cmp.Or(req.MaxTokens, 2000)),
		Temperature:     genai.Ptr(float32(cmp.Or(req.Temperature, 0.7))),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
	}

	var text string
	err := g.retry.Do(ctx, "gemini completion "+req.Purpose, func(ctx context.Context) error {
		result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.User), config)
		if err != nil {
			return fmt.Errorf("failed to generate content: %w", err)
		}
		text = result.Text()
		if text == "" {
			return errors.New("empty completion content")
		}
		return nil
	})
	return text, err
}

// GeminiImage は Imagen 系モデルで画像を作る ImageClient なのだ。
type GeminiImage struct {
	client *genai.Client
	model  string
	retry  RetryPolicy
}

func NewGeminiImage(ctx context.Context, cfg GeminiConfig) (*GeminiImage, error) {
	client, err := newGeminiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return &GeminiImage{client: client, model: cmp.Or(cfg.Model, "imagen-4.0-generate-001"), retry: cfg.Retry}, nil
}

func (g *GeminiImage) Synthesize(ctx context.Context, req ImageRequest) (ImageResult, error) {
	prompt := req.Prompt
	if req.Negative != "" {
		prompt += ". Avoid: " + req.Negative
	}
	config := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    cmp.Or(req.AspectRatio, "16:9"),
		OutputMIMEType: "image/png",
	}

	var result ImageResult
	err := g.retry.Do(ctx, "gemini image", func(ctx context.Context) error {
		resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, config)
		if err != nil {
			return fmt.Errorf("failed to generate image: %w", err)
		}
		if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
			return errors.New("no image returned")
		}
		img := resp.GeneratedImages[0].Image
		if len(img.ImageBytes) == 0 {
			return errors.New("empty image bytes")
		}
		result = ImageResult{Data: img.ImageBytes, MIMEType: cmp.Or(img.MIMEType, http.DetectContentType(img.ImageBytes))}
		return nil
	})
	return result, err
}

// GeminiEmbedder は Models.EmbedContent を使う EmbeddingClient なのだ。
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	retry  RetryPolicy
}

func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	client, err := newGeminiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: cmp.Or(cfg.Model, "gemini-embedding-001"), retry: cfg.Retry}, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var vector []float64
	err := g.retry.Do(ctx, "gemini embedding", func(ctx context.Context) error {
		resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), nil)
		if err != nil {
			return fmt.Errorf("failed to embed content: %w", err)
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return errors.New("empty embedding")
		}
		values := resp.Embeddings[0].Values
		vector = make([]float64, len(values))
		for i, v := range values {
			vector[i] = float64(v)
		}
		return nil
	})
	return vector, err
}
