package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shouni/go-frameflow-kit/internal/pipeline"
)

// scriptCmd は、脚本の生成（run.json と screenplay.pdf）のみを実行するのだ。
var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "脚本のみを生成して保存するのだ。",
	Long: `あらすじを解析し、登場人物とシーン、台詞を書き起こして
run.json と screenplay.pdf を出力するのだ。画像生成は行わないのだよ。`,
	RunE: scriptCommand,
}

func scriptCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("脚本の生成を開始するのだ", "llm", cfg.LLMProvider, "model", cfg.LLMModel)
	dir, err := pipeline.ExecuteScriptOnly(ctx, cfg, cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("脚本の生成に失敗したのだ: %w", err)
	}

	slog.Info("脚本の生成が完了したのだ！ image コマンドに run.json を渡せば絵コンテを作れるのだ", "dir", dir)
	return nil
}
