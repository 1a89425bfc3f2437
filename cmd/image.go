package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shouni/go-frameflow-kit/internal/pipeline"
)

// imageCmd は、保存済みの脚本から絵コンテだけを作り直すのだ。
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "保存済みの run.json から絵コンテを生成するのだ。",
	Long: `script や generate が保存した run.json の脚本を読み込み、
重要な瞬間の検出からコマ画像の生成、書き出しまでを実行するのだ。`,
	RunE: imageCommand,
}

func init() {
	imageCmd.Flags().StringVarP(&opts.RunFile, "run-file", "r", "", "読み込む run.json のパスなのだ。")
	_ = imageCmd.MarkFlagRequired("run-file")
}

func imageCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("絵コンテの生成を開始するのだ", "run_file", opts.RunFile, "image", cfg.ImageProvider)
	dir, err := pipeline.ExecuteStoryboardOnly(ctx, cfg)
	if err != nil {
		return fmt.Errorf("絵コンテの生成に失敗したのだ: %w", err)
	}

	slog.Info("画像生成と公開処理が完了したのだ！", "dir", dir)
	return nil
}
