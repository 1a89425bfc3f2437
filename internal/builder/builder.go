package builder

import (
	"cmp"
	"context"
	"fmt"
	"io"

	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/go-frameflow-kit/internal/config"
	"github.com/shouni/go-frameflow-kit/internal/runner"
	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
	"github.com/shouni/go-frameflow-kit/pkg/publisher"
	"github.com/shouni/go-frameflow-kit/pkg/screenplay"
	"github.com/shouni/go-frameflow-kit/pkg/storyboard"
)

// BuildAppContext は設定から共有クライアントと司令塔を一度だけ組み立てます。
func BuildAppContext(ctx context.Context, cfg *config.Config, progress pipeline.ProgressFunc) (*AppContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が正しくないのだ: %w", err)
	}
	httpClient := httpkit.New(cmp.Or(cfg.HTTPTimeout, config.DefaultHTTPTimeout))
	clients, err := InitializeClients(ctx, cfg, httpClient)
	if err != nil {
		return nil, err
	}
	orchestrator, err := BuildOrchestrator(cfg, clients, progress)
	if err != nil {
		return nil, err
	}
	appCtx := NewAppContext(cfg, httpClient, clients, publisher.LocalWriter{}, orchestrator)
	return &appCtx, nil
}

// BuildOrchestrator は設定の並行数、レート制限、閾値を司令塔に渡します。
func BuildOrchestrator(cfg *config.Config, clients pipeline.Clients, progress pipeline.ProgressFunc) (*pipeline.Orchestrator, error) {
	opts := []pipeline.Option{
		pipeline.WithWriterOptions(screenplay.WithConcurrency(cfg.SceneConcurrency)),
		pipeline.WithFrameOptions(
			storyboard.WithFrameConcurrency(cfg.FrameConcurrency),
			storyboard.WithRateLimit(cfg.RateInterval, cfg.FrameConcurrency),
		),
		pipeline.WithThreshold(cfg.Threshold),
		pipeline.WithCameraAngleSuggestions(cfg.SuggestAngles),
		pipeline.WithProgress(progress),
	}
	if cfg.WebPQuality > 0 {
		opts = append(opts, pipeline.WithExporterOptions(publisher.WithWebP(cfg.WebPQuality)))
	}
	orchestrator, err := pipeline.NewOrchestrator(clients, opts...)
	if err != nil {
		return nil, fmt.Errorf("司令塔の初期化に失敗しました: %w", err)
	}
	return orchestrator, nil
}

// InitializeClients は設定されたプロバイダごとに LLM、画像、埋め込みのクライアントを初期化します。
// httpClient は OpenAI の画像が URL で返ったときの取得に使います。
func InitializeClients(ctx context.Context, cfg *config.Config, httpClient ai.HTTPDoer) (pipeline.Clients, error) {
	retry := cfg.Retry()
	openaiCfg := func(model string) ai.OpenAIConfig {
		return ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Model: model, Retry: retry, HTTPClient: httpClient}
	}
	geminiCfg := func(model string) ai.GeminiConfig {
		return ai.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: model, Retry: retry}
	}

	var clients pipeline.Clients
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		clients.LLM = ai.NewOpenAILLM(openaiCfg(cfg.LLMModel))
	case config.ProviderGemini:
		llm, err := ai.NewGeminiLLM(ctx, geminiCfg(cfg.LLMModel))
		if err != nil {
			return pipeline.Clients{}, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
		}
		clients.LLM = llm
	default:
		return pipeline.Clients{}, fmt.Errorf("未知の LLM プロバイダなのだ: %q", cfg.LLMProvider)
	}

	switch cfg.ImageProvider {
	case config.ProviderOpenAI:
		clients.Image = ai.NewOpenAIImage(openaiCfg(cfg.ImageModel))
	case config.ProviderGemini:
		img, err := ai.NewGeminiImage(ctx, geminiCfg(cfg.ImageModel))
		if err != nil {
			return pipeline.Clients{}, fmt.Errorf("画像クライアントの初期化に失敗しました: %w", err)
		}
		clients.Image = img
	default:
		return pipeline.Clients{}, fmt.Errorf("未知の画像プロバイダなのだ: %q", cfg.ImageProvider)
	}

	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		clients.Embedder = ai.NewOpenAIEmbedder(openaiCfg(cfg.EmbeddingModel))
	case config.ProviderGemini:
		emb, err := ai.NewGeminiEmbedder(ctx, geminiCfg(cfg.EmbeddingModel))
		if err != nil {
			return pipeline.Clients{}, fmt.Errorf("埋め込みクライアントの初期化に失敗しました: %w", err)
		}
		clients.Embedder = emb
	case config.ProviderNone, "":
		clients.Embedder = ai.DisabledEmbedder{}
	default:
		return pipeline.Clients{}, fmt.Errorf("未知の埋め込みプロバイダなのだ: %q", cfg.EmbeddingProvider)
	}
	return clients, nil
}

// BuildScriptRunner は脚本だけを書く Runner を構築します。
func BuildScriptRunner(appCtx *AppContext, stdin io.Reader) runner.ScriptRunner {
	return runner.NewScriptRunner(appCtx.Orchestrator, appCtx.Options, stdin)
}

// BuildFullRunner はあらすじから書き出しまでを実行する Runner を構築します。
func BuildFullRunner(appCtx *AppContext, stdin io.Reader) runner.ScriptRunner {
	return runner.NewFullRunner(appCtx.Orchestrator, appCtx.Options, stdin)
}

// BuildStoryboardRunner は保存済みの脚本から絵コンテを作る Runner を構築します。
func BuildStoryboardRunner(appCtx *AppContext) runner.StoryboardRunner {
	return runner.NewStoryboardRunner(appCtx.Orchestrator, appCtx.Options)
}

// BuildPublisherRunner は実行結果を保存する Runner を構築します。
func BuildPublisherRunner(appCtx *AppContext) runner.PublisherRunner {
	outputDir := appCtx.Options.OutputDir
	if outputDir == "" {
		outputDir = appCtx.Config.OutputDir
	}
	return runner.NewDefaultPublisherRunner(appCtx.Writer, outputDir)
}
