package builder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shouni/go-frameflow-kit/internal/config"
	"github.com/shouni/go-frameflow-kit/pkg/ai"
)

func openAIConfig() *config.Config {
	return &config.Config{
		LLMProvider:       config.ProviderOpenAI,
		ImageProvider:     config.ProviderOpenAI,
		EmbeddingProvider: config.ProviderNone,
		OpenAIAPIKey:      "sk-test",
		SceneConcurrency:  3,
		FrameConcurrency:  4,
		MaxAttempts:       3,
		Threshold:         0.85,
		WebPQuality:       75,
		OutputDir:         "output",
		RunTTL:            time.Minute,
	}
}

func TestInitializeClients(t *testing.T) {
	t.Run("openai と埋め込みなし", func(t *testing.T) {
		clients, err := InitializeClients(context.Background(), openAIConfig(), nil)
		if err != nil {
			t.Fatalf("初期化に失敗したのだ: %v", err)
		}
		if _, ok := clients.LLM.(*ai.OpenAILLM); !ok {
			t.Errorf("LLM が openai ではないのだ: %T", clients.LLM)
		}
		if _, ok := clients.Image.(*ai.OpenAIImage); !ok {
			t.Errorf("画像が openai ではないのだ: %T", clients.Image)
		}
		if ai.IsEmbeddingConfigured(clients.Embedder) {
			t.Errorf("埋め込みは無効のはずなのだ: %T", clients.Embedder)
		}
	})

	t.Run("openai の埋め込み", func(t *testing.T) {
		cfg := openAIConfig()
		cfg.EmbeddingProvider = config.ProviderOpenAI
		clients, err := InitializeClients(context.Background(), cfg, nil)
		if err != nil {
			t.Fatalf("初期化に失敗したのだ: %v", err)
		}
		if _, ok := clients.Embedder.(*ai.OpenAIEmbedder); !ok {
			t.Errorf("埋め込みが openai ではないのだ: %T", clients.Embedder)
		}
	})

	t.Run("未知のプロバイダ", func(t *testing.T) {
		cfg := openAIConfig()
		cfg.ImageProvider = "dall-e"
		if _, err := InitializeClients(context.Background(), cfg, nil); err == nil {
			t.Error("エラーになるはずなのだ")
		}
	})
}

func TestBuildAppContext(t *testing.T) {
	cfg := openAIConfig()
	cfg.Options = config.GenerateOptions{OutputDir: filepath.Join(t.TempDir(), "out")}
	appCtx, err := BuildAppContext(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("組み立てに失敗したのだ: %v", err)
	}
	if appCtx.Orchestrator == nil || appCtx.Writer == nil || appCtx.HTTPClient == nil {
		t.Fatalf("部品が揃っていないのだ: %+v", appCtx)
	}
	if appCtx.Options.OutputDir != cfg.Options.OutputDir {
		t.Errorf("オプションが引き継がれていないのだ: %+v", appCtx.Options)
	}
	if BuildScriptRunner(appCtx, nil) == nil || BuildStoryboardRunner(appCtx) == nil || BuildPublisherRunner(appCtx) == nil {
		t.Error("Runner が作れないのだ")
	}

	bad := openAIConfig()
	bad.Threshold = 2
	if _, err := BuildAppContext(context.Background(), bad, nil); err == nil {
		t.Error("検証に通らない設定はエラーのはずなのだ")
	}
}
