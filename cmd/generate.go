package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shouni/go-frameflow-kit/internal/pipeline"
)

// generateCmd は、あらすじから脚本、絵コンテ、書き出しまでを一気に実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "あらすじから脚本と絵コンテを生成しますなのだ。",
	Long: `あらすじを解析し、登場人物、シーン、台詞、絵コンテのコマを生成するのだ。
出力は run-<id>/ 以下の run.json、PDF、ZIP、コマ画像になるのだよ。`,
	RunE: generateCommand,
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("FrameFlow パイプラインを起動するのだ！",
		"llm", cfg.LLMProvider,
		"image", cfg.ImageProvider,
		"embedding", cfg.EmbeddingProvider,
		"output", cfg.OutputDir)

	dir, err := pipeline.Execute(ctx, cfg, cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！", "dir", dir)
	return nil
}
