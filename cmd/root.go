package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shouni/go-frameflow-kit/internal/config"
)

var (
	opts        config.GenerateOptions
	configFile  string
	verbose     bool
	httpTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "frameflow",
	Short: "あらすじから脚本と絵コンテを作るのだ。",
	Long: `短いあらすじを解析して、登場人物、幕ごとのシーン、台詞を書き起こし、
重要な瞬間を絵コンテのコマにして PDF や ZIP に書き出すのだ。`,
	SilenceUsage:      true,
	PersistentPreRunE: preRunAppE,
}

// addAppFlags は、すべてのコマンドに適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	// --- 全体設定 ---
	flags.StringVarP(&configFile, "config", "c", "", "環境変数を上書きする YAML 設定ファイルなのだ。")
	flags.BoolVarP(&verbose, "verbose", "v", false, "デバッグログを出すのだ。")
	flags.DurationVar(&httpTimeout, "http-timeout", 0, "画像 URL を取得するときのタイムアウトなのだ（既定は HTTP_TIMEOUT）。")

	// --- 入力関連 ---
	flags.StringVarP(&opts.Prompt, "prompt", "p", "", "物語のあらすじなのだ。")
	flags.StringVarP(&opts.PromptFile, "prompt-file", "f", "", "あらすじのファイルパス（'-'で標準入力なのだ）。")

	// --- 作品の設定 ---
	flags.StringVar(&opts.Genre, "genre", "", "ジャンル（Drama, Thriller, Comedy など）なのだ。")
	flags.StringVar(&opts.DialogueStyle, "dialogue-style", "", "台詞の文体（Realistic, Stylized など）なのだ。")
	flags.StringVar(&opts.ActStructure, "act-structure", "", "幕構成（ThreeAct, FiveAct など）なのだ。")
	flags.StringVar(&opts.VisualStyle, "visual-style", "", "絵コンテの画風（Realistic, Noir, Sketch など）なのだ。")
	flags.IntVarP(&opts.FrameCount, "frames", "n", 0, "絵コンテのコマ数（1〜24）なのだ。")
	flags.IntVar(&opts.CharacterCount, "characters", 0, "登場人物の数（2〜6）なのだ。")
	flags.StringSliceVar(&opts.Exports, "export", nil, "書き出す成果物（pdf, zip, lookbook, csv）なのだ。")

	// --- 出力関連 ---
	flags.StringVarP(&opts.OutputDir, "output-dir", "o", "", "成果物の保存先ディレクトリなのだ（既定は OUTPUT_DIR）。")
}

// preRunAppE は、コマンド実行前にログの出力先を整えるのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	setupLogger(verbose)
	return nil
}

// setupLogger は charmbracelet/log を slog のハンドラとして登録するのだ。
func setupLogger(debug bool) {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "frameflow",
	})
	slog.SetDefault(slog.New(logger))
}

// loadConfig は環境変数と設定ファイルを読み込み、CLI フラグで上書きするのだ。
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}
	if httpTimeout > 0 {
		cfg.HTTPTimeout = httpTimeout
	}
	cfg.Options = opts
	return cfg, nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addAppFlags(rootCmd)
	rootCmd.AddCommand(generateCmd, scriptCmd, imageCmd, serveCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
