package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
	"github.com/shouni/go-frameflow-kit/pkg/screenplay"
	"github.com/shouni/go-frameflow-kit/pkg/storyboard"
)

// デフォルト値の定義なのだ
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"

	DefaultProvider          = ProviderOpenAI
	DefaultEmbeddingProvider = ProviderNone
	DefaultLLMModel          = "gpt-4o-mini"
	DefaultImageModel        = "gpt-image-1"
	DefaultEmbeddingModel    = "text-embedding-3-small"
	DefaultRateInterval      = 2 * time.Second
	DefaultOutputDir         = "output"
	DefaultServerAddr        = ":8080"
	DefaultRunTTL            = 30 * time.Minute
	DefaultRunFile           = "run.json"
	DefaultHTTPTimeout       = 30 * time.Second
)

// Config はアプリケーション全体の設定なのだ。環境変数、設定ファイル、CLI フラグの順に上書きされるのだ。
type Config struct {
	LLMProvider       string `yaml:"llm_provider"`
	ImageProvider     string `yaml:"image_provider"`
	EmbeddingProvider string `yaml:"embedding_provider"` // none なら一貫性の採点をしないのだ

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"` // SambaNova や Nebius などの互換エンドポイント
	GeminiAPIKey  string `yaml:"gemini_api_key"`

	LLMModel       string `yaml:"llm_model"`
	ImageModel     string `yaml:"image_model"`
	EmbeddingModel string `yaml:"embedding_model"`

	SceneConcurrency int           `yaml:"scene_concurrency"`
	FrameConcurrency int           `yaml:"frame_concurrency"`
	RateInterval     time.Duration `yaml:"rate_interval"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"` // 画像 URL の取得に使うのだ
	MaxAttempts      int           `yaml:"max_attempts"`

	Threshold     float64 `yaml:"consistency_threshold"`
	SuggestAngles bool    `yaml:"suggest_camera_angles"`
	WebPQuality   int     `yaml:"webp_quality"` // 0 なら ZIP のコマは元の形式のままなのだ

	OutputDir  string        `yaml:"output_dir"`
	ServerAddr string        `yaml:"server_addr"`
	RunTTL     time.Duration `yaml:"run_ttl"`

	Options GenerateOptions `yaml:"-"`
}

// LoadConfig は .env と環境変数から設定を読み込み、path があれば YAML で上書きするのだ！
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".env の読み込みに失敗したのだ: %w", err)
	}

	var errs []error
	cfg := &Config{
		LLMProvider:       strings.ToLower(envutil.GetEnv("LLM_PROVIDER", DefaultProvider)),
		ImageProvider:     strings.ToLower(envutil.GetEnv("IMAGE_PROVIDER", DefaultProvider)),
		EmbeddingProvider: strings.ToLower(envutil.GetEnv("EMBEDDING_PROVIDER", DefaultEmbeddingProvider)),
		OpenAIAPIKey:      envutil.GetEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     envutil.GetEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:      envutil.GetEnv("GEMINI_API_KEY", ""),
		LLMModel:          envutil.GetEnv("LLM_MODEL", ""),
		ImageModel:        envutil.GetEnv("IMAGE_MODEL", ""),
		EmbeddingModel:    envutil.GetEnv("EMBEDDING_MODEL", ""),
		SceneConcurrency:  envInt("SCENE_CONCURRENCY", screenplay.DefaultConcurrency, &errs),
		FrameConcurrency:  envInt("FRAME_CONCURRENCY", storyboard.DefaultFrameConcurrency, &errs),
		RateInterval:      envDuration("RATE_INTERVAL", DefaultRateInterval, &errs),
		CallTimeout:       envDuration("CALL_TIMEOUT", ai.DefaultCallTimeout, &errs),
		HTTPTimeout:       envDuration("HTTP_TIMEOUT", DefaultHTTPTimeout, &errs),
		MaxAttempts:       envInt("MAX_ATTEMPTS", ai.DefaultMaxAttempts, &errs),
		Threshold:         envFloat("CONSISTENCY_THRESHOLD", storyboard.DefaultThreshold, &errs),
		SuggestAngles:     envBool("SUGGEST_CAMERA_ANGLES", false, &errs),
		WebPQuality:       envInt("WEBP_QUALITY", 0, &errs),
		OutputDir:         envutil.GetEnv("OUTPUT_DIR", DefaultOutputDir),
		ServerAddr:        envutil.GetEnv("SERVER_ADDR", DefaultServerAddr),
		RunTTL:            envDuration("RUN_TTL", DefaultRunTTL, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイル '%s' の読み込みに失敗したのだ: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイル '%s' の解析に失敗したのだ: %w", path, err)
		}
	}
	cfg.applyModelDefaults()
	return cfg, nil
}

// applyModelDefaults は空のモデル名をプロバイダごとの既定値で埋めるのだ。
func (c *Config) applyModelDefaults() {
	if c.LLMModel == "" && c.LLMProvider == ProviderOpenAI {
		c.LLMModel = DefaultLLMModel
	}
	if c.ImageModel == "" && c.ImageProvider == ProviderOpenAI {
		c.ImageModel = DefaultImageModel
	}
	if c.EmbeddingModel == "" && c.EmbeddingProvider == ProviderOpenAI {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
}

// Validate はプロバイダ、API キー、数値の範囲を確かめるのだ。外部サービスを呼ぶ前に通すのだ。
func (c *Config) Validate() error {
	var errs []error
	check := func(name, provider string, allowNone bool) {
		switch provider {
		case ProviderOpenAI:
			if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
				errs = append(errs, fmt.Errorf("%s: OPENAI_API_KEY が設定されていないのだ", name))
			}
		case ProviderGemini:
			if c.GeminiAPIKey == "" {
				errs = append(errs, fmt.Errorf("%s: GEMINI_API_KEY が設定されていないのだ", name))
			}
		case ProviderNone:
			if !allowNone {
				errs = append(errs, fmt.Errorf("%s は必須なのだ", name))
			}
		default:
			errs = append(errs, fmt.Errorf("%s に未知のプロバイダ %q が指定されたのだ", name, provider))
		}
	}
	check("llm_provider", c.LLMProvider, false)
	check("image_provider", c.ImageProvider, false)
	check("embedding_provider", c.EmbeddingProvider, true)

	if c.SceneConcurrency < 1 || c.FrameConcurrency < 1 {
		errs = append(errs, fmt.Errorf("並行数は1以上にしてほしいのだ: scene=%d frame=%d", c.SceneConcurrency, c.FrameConcurrency))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts は1以上にしてほしいのだ: %d", c.MaxAttempts))
	}
	if c.RateInterval < 0 || c.CallTimeout < 0 {
		errs = append(errs, errors.New("rate_interval と call_timeout に負の値は使えないのだ"))
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("consistency_threshold は 0 より大きく 1 以下にしてほしいのだ: %v", c.Threshold))
	}
	if c.WebPQuality < 0 || c.WebPQuality > 100 {
		errs = append(errs, fmt.Errorf("webp_quality は 0 から 100 の間にしてほしいのだ: %d", c.WebPQuality))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("http_timeout に負の値は使えないのだ: %v", c.HTTPTimeout))
	}
	if c.RunTTL <= 0 {
		errs = append(errs, fmt.Errorf("run_ttl は正の値にしてほしいのだ: %v", c.RunTTL))
	}
	return errors.Join(errs...)
}

// Retry は外部呼び出しの再試行ポリシーなのだ。
func (c *Config) Retry() ai.RetryPolicy {
	p := ai.DefaultRetryPolicy()
	p.MaxAttempts = c.MaxAttempts
	if c.CallTimeout > 0 {
		p.Timeout = c.CallTimeout
	}
	return p
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// 入力関連
	Prompt     string // --prompt
	PromptFile string // --prompt-file ('-' で標準入力)
	RunFile    string // --run-file: image コマンドで読む run.json

	// 作品の設定
	Genre          string
	DialogueStyle  string
	ActStructure   string
	VisualStyle    string
	FrameCount     int
	CharacterCount int
	Exports        []string

	// 出力関連
	OutputDir string // --output-dir
}

// Request は CLI のオプションを実行の入力に詰め替えるのだ。検証は pipeline 側で行うのだ。
func (o GenerateOptions) Request(prompt string) pipeline.Request {
	req := pipeline.Request{
		Prompt:         prompt,
		Genre:          domain.Genre(o.Genre),
		DialogueStyle:  domain.DialogueStyle(o.DialogueStyle),
		ActStructure:   domain.ActStructure(o.ActStructure),
		VisualStyle:    domain.VisualStyle(o.VisualStyle),
		FrameCount:     o.FrameCount,
		CharacterCount: o.CharacterCount,
	}
	if o.Exports != nil {
		req.Exports = make([]domain.ArtifactKind, 0, len(o.Exports))
		for _, e := range o.Exports {
			if e = strings.TrimSpace(e); e != "" && !slices.Contains(req.Exports, domain.ArtifactKind(e)) {
				req.Exports = append(req.Exports, domain.ArtifactKind(e))
			}
		}
	}
	return req
}

func envInt(key string, def int, errs *[]error) int {
	v := envutil.GetEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("環境変数 %s が整数ではないのだ: %w", key, err))
		return def
	}
	return n
}

func envFloat(key string, def float64, errs *[]error) float64 {
	v := envutil.GetEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("環境変数 %s が数値ではないのだ: %w", key, err))
		return def
	}
	return f
}

func envBool(key string, def bool, errs *[]error) bool {
	v := envutil.GetEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("環境変数 %s が真偽値ではないのだ: %w", key, err))
		return def
	}
	return b
}

func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := envutil.GetEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("環境変数 %s が期間ではないのだ: %w", key, err))
		return def
	}
	return d
}
