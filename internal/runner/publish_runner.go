package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shouni/go-frameflow-kit/internal/config"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
	"github.com/shouni/go-frameflow-kit/pkg/publisher"
)

// PublisherRunner はパブリッシュ処理のインターフェースです。
type PublisherRunner interface {
	Run(ctx context.Context, res *pipeline.Result) (string, error)
}

// DefaultPublisherRunner は pkg/publisher の AssetManager を利用した標準実装です。
// 実行ごとに run-<id>/ を作り、run.json と成果物、コマ画像を保存します。
type DefaultPublisherRunner struct {
	writer    publisher.OutputWriter
	outputDir string
}

func NewDefaultPublisherRunner(writer publisher.OutputWriter, outputDir string) *DefaultPublisherRunner {
	return &DefaultPublisherRunner{writer: writer, outputDir: outputDir}
}

// Run は保存先のディレクトリを返します。
func (pr *DefaultPublisherRunner) Run(ctx context.Context, res *pipeline.Result) (string, error) {
	dir := publisher.RunDir(pr.outputDir, res.RunID)
	am := publisher.NewAssetManager(pr.writer, dir)

	record, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("実行記録のエンコードに失敗しました: %w", err)
	}
	if _, err := am.Save(ctx, config.DefaultRunFile, record); err != nil {
		return "", err
	}

	paths, err := am.SaveArtifacts(ctx, res.Artifacts)
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		slog.Info("成果物を保存したのだ", "path", p)
	}

	framePaths, err := am.SaveFrames(ctx, res.Frames)
	if err != nil {
		return "", err
	}
	if len(framePaths) > 0 {
		slog.Info("コマ画像を保存したのだ", "count", len(framePaths), "dir", dir)
	}
	return dir, nil
}
