package ai

import (
	"cmp"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/shouni/go-http-kit/pkg/httpkit"
)

const (
	// DefaultImageFetchTimeout は URL で返された画像を取りに行くときの既定のタイムアウトなのだ。
	DefaultImageFetchTimeout = 30 * time.Second
	// MaxImageBytes を超える画像本体は受け取らないのだ。
	MaxImageBytes = 32 << 20
)

// ErrImageTooLarge は取得した画像が MaxImageBytes を超えたときのエラーなのだ。再試行はしないのだ。
var ErrImageTooLarge = errors.New("image exceeds size limit")

// HTTPDoer は画像 URL の取得に使う HTTP クライアントなのだ。httpkit のクライアントをそのまま渡せるのだ。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OpenAIConfig は OpenAI 互換エンドポイントへの接続設定なのだ。
// BaseURL を変えれば SambaNova や Nebius などの互換サービスにもそのまま繋がるのだ。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Retry   RetryPolicy
	// HTTPClient は images API が URL だけを返したときに本体を取得するのに使うのだ。
	HTTPClient HTTPDoer
}

func newOpenAIClient(cfg OpenAIConfig) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// 再試行は RetryPolicy に一本化するのだ
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &client
}

// OpenAILLM は chat completions を使う LLMClient なのだ。
type OpenAILLM struct {
	client *openai.Client
	model  string
	retry  RetryPolicy
}

func NewOpenAILLM(cfg OpenAIConfig) *OpenAILLM {
	return &OpenAILLM{
		client: newOpenAIClient(cfg),
		model:  cmp.Or(cfg.Model, "gpt-4o-mini"),
		retry:  cfg.Retry,
	}
}

func (o *OpenAILLM) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Role: "system",
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.Opt[string]{Value: req.System},
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Role: "user",
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: param.Opt[string]{Value: req.User},
					},
				},
			},
		},
		MaxCompletionTokens: openai.Int(int64(cmp.Or(req.MaxTokens, 2000))),
		Temperature:         openai.Float(cmp.Or(req.Temperature, 0.7)),
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name,
					Description: openai.String(req.Schema.Description),
					Schema:      req.Schema.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	var content string
	err := o.retry.Do(ctx, "openai completion "+req.Purpose, func(ctx context.Context) error {
		resp, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return fmt.Errorf("openai inference error: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return errors.New("empty completion content")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	return content, err
}

// OpenAIImage は images API を使う ImageClient なのだ。
type OpenAIImage struct {
	client     *openai.Client
	model      string
	retry      RetryPolicy
	httpClient HTTPDoer
}

func NewOpenAIImage(cfg OpenAIConfig) *OpenAIImage {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpkit.New(DefaultImageFetchTimeout)
	}
	return &OpenAIImage{
		client:     newOpenAIClient(cfg),
		model:      cmp.Or(cfg.Model, "gpt-image-1"),
		retry:      cfg.Retry,
		httpClient: httpClient,
	}
}

func (o *OpenAIImage) Synthesize(ctx context.Context, req ImageRequest) (ImageResult, error) {
	prompt := req.Prompt
	// images API にはネガティブプロンプトがないので、本文に添えるのだ
	if req.Negative != "" {
		prompt += ". Avoid: " + req.Negative
	}
	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(o.model),
		N:      openai.Int(1),
	}
	if req.Size != "" {
		params.Size = openai.ImageGenerateParamsSize(req.Size)
	}
	if strings.HasPrefix(o.model, "dall-e") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}

	var result ImageResult
	err := o.retry.Do(ctx, "openai image", func(ctx context.Context) error {
		resp, err := o.client.Images.Generate(ctx, params)
		if err != nil {
			return fmt.Errorf("openai image error: %w", err)
		}
		if len(resp.Data) == 0 {
			return errors.New("no image returned")
		}
		data, err := o.decode(ctx, resp.Data[0].B64JSON, resp.Data[0].URL)
		if err != nil {
			return err
		}
		result = ImageResult{Data: data, MIMEType: http.DetectContentType(data)}
		return nil
	})
	return result, err
}

// decode は base64 か URL のどちらかから画像本体を取り出すのだ。
func (o *OpenAIImage) decode(ctx context.Context, b64, url string) ([]byte, error) {
	if b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image payload: %w", err)
		}
		return data, nil
	}
	if url == "" {
		return nil, errors.New("image response has neither data nor url")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: %s", ErrImageTooLarge, url)
	}
	return data, nil
}

// OpenAIEmbedder は embeddings API を使う EmbeddingClient なのだ。
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	retry  RetryPolicy
}

func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: newOpenAIClient(cfg),
		model:  cmp.Or(cfg.Model, "text-embedding-3-small"),
		retry:  cfg.Retry,
	}
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var vector []float64
	err := o.retry.Do(ctx, "openai embedding", func(ctx context.Context) error {
		resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
			Model: openai.EmbeddingModel(o.model),
		})
		if err != nil {
			return fmt.Errorf("openai embedding error: %w", err)
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return errors.New("empty embedding")
		}
		vector = resp.Data[0].Embedding
		return nil
	})
	return vector, err
}
