package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shouni/go-frameflow-kit/internal/config"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
)

// StoryboardRunner は、保存済みの run.json の脚本から絵コンテを作り直すためのインターフェースなのだ。
type StoryboardRunner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// FrameFlowStoryboardRunner は DetectingMoments 以降だけを実行するのだ。
type FrameFlowStoryboardRunner struct {
	generator Generator
	options   config.GenerateOptions
}

func NewStoryboardRunner(g Generator, opts config.GenerateOptions) *FrameFlowStoryboardRunner {
	return &FrameFlowStoryboardRunner{generator: g, options: opts}
}

func (ir *FrameFlowStoryboardRunner) Run(ctx context.Context) (*pipeline.Result, error) {
	prev, err := LoadRun(ir.options.RunFile)
	if err != nil {
		return nil, err
	}
	req := ir.options.Request("")
	// 未指定の項目は前回の実行の設定を引き継ぐのだ
	if req.DialogueStyle == "" {
		req.DialogueStyle = prev.Request.DialogueStyle
	}
	if req.ActStructure == "" {
		req.ActStructure = prev.Request.ActStructure
	}
	if req.VisualStyle == "" {
		req.VisualStyle = prev.Request.VisualStyle
	}
	if req.FrameCount == 0 {
		req.FrameCount = prev.Request.FrameCount
	}
	if req.Exports == nil && prev.Request.Exports != nil {
		req.Exports = prev.Request.Exports
	}
	return ir.generator.GenerateStoryboard(ctx, req, prev.Screenplay)
}

// LoadRun は run.json を読み込むのだ。
func LoadRun(path string) (*pipeline.Result, error) {
	if path == "" {
		return nil, fmt.Errorf("run.json のパス（--run-file）を指定してほしいのだ")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("実行記録 '%s' の読み込みに失敗したのだ: %w", path, err)
	}
	var res pipeline.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("実行記録 '%s' のデコードに失敗したのだ: %w", path, err)
	}
	return &res, nil
}
