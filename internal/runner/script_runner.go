package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shouni/go-frameflow-kit/internal/config"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
)

// Generator は runner から使う司令塔の操作なのだ。*pipeline.Orchestrator が満たすのだ。
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	GenerateScreenplay(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	GenerateStoryboard(ctx context.Context, req pipeline.Request, sp domain.Screenplay) (*pipeline.Result, error)
}

// ScriptRunner は、あらすじから脚本（必要なら絵コンテまで）を作るためのインターフェースなのだ。
type ScriptRunner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// FrameFlowScriptRunner は、入力のあらすじを読み込んで司令塔に渡す核となる構造体なのだ。
type FrameFlowScriptRunner struct {
	generator  Generator
	options    config.GenerateOptions
	stdin      io.Reader
	storyboard bool // true なら絵コンテと書き出しまで一気に進めるのだ
}

// NewScriptRunner は脚本だけを書く Runner を返すのだ。
func NewScriptRunner(g Generator, opts config.GenerateOptions, stdin io.Reader) *FrameFlowScriptRunner {
	return &FrameFlowScriptRunner{generator: g, options: opts, stdin: stdin}
}

// NewFullRunner は全段階を実行する Runner を返すのだ。
func NewFullRunner(g Generator, opts config.GenerateOptions, stdin io.Reader) *FrameFlowScriptRunner {
	return &FrameFlowScriptRunner{generator: g, options: opts, stdin: stdin, storyboard: true}
}

// Run は、あらすじの読み込み、入力の組み立て、司令塔の実行を一気に行うのだ。
func (sr *FrameFlowScriptRunner) Run(ctx context.Context) (*pipeline.Result, error) {
	premise, err := ReadPrompt(sr.options, sr.stdin)
	if err != nil {
		return nil, err
	}
	req := sr.options.Request(premise)
	if sr.storyboard {
		return sr.generator.Generate(ctx, req)
	}
	return sr.generator.GenerateScreenplay(ctx, req)
}

// ReadPrompt は --prompt、--prompt-file の順にあらすじを探すのだ。'-' は標準入力なのだ。
func ReadPrompt(opts config.GenerateOptions, stdin io.Reader) (string, error) {
	if strings.TrimSpace(opts.Prompt) != "" {
		return opts.Prompt, nil
	}
	switch opts.PromptFile {
	case "":
		return "", fmt.Errorf("あらすじ（--prompt または --prompt-file）を指定してほしいのだ")
	case "-":
		if stdin == nil {
			return "", fmt.Errorf("標準入力が使えないのだ")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("標準入力の読み込みに失敗したのだ: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(opts.PromptFile)
		if err != nil {
			return "", fmt.Errorf("あらすじファイル '%s' の読み込みに失敗したのだ: %w", opts.PromptFile, err)
		}
		return string(data), nil
	}
}
