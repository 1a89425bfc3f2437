package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shouni/go-frameflow-kit/internal/builder"
	"github.com/shouni/go-frameflow-kit/internal/config"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
)

// Execute は、あらすじから脚本、絵コンテ、書き出しまでの全段階を実行して保存するのだ。
func Execute(ctx context.Context, cfg *config.Config, stdin io.Reader) (string, error) {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return "", err
	}
	return runAndPublish(ctx, appCtx, builder.BuildFullRunner(appCtx, stdin))
}

// ExecuteScriptOnly は、脚本までを書いて run.json と screenplay.pdf を保存するのだ。
// 保存した run.json は ExecuteStoryboardOnly にそのまま渡せるのだ。
func ExecuteScriptOnly(ctx context.Context, cfg *config.Config, stdin io.Reader) (string, error) {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return "", err
	}
	return runAndPublish(ctx, appCtx, builder.BuildScriptRunner(appCtx, stdin))
}

// ExecuteStoryboardOnly は、保存済みの run.json の脚本から絵コンテを作り直して保存するのだ。
func ExecuteStoryboardOnly(ctx context.Context, cfg *config.Config) (string, error) {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return "", err
	}
	return runAndPublish(ctx, appCtx, builder.BuildStoryboardRunner(appCtx))
}

// setupAppContext は、進捗をログに流す司令塔を含むアプリケーションコンテキストを初期化するのだ。
func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	appCtx, err := builder.BuildAppContext(ctx, cfg, LogProgress)
	if err != nil {
		return nil, fmt.Errorf("アプリケーションの初期化に失敗したのだ: %w", err)
	}
	return appCtx, nil
}

type stageRunner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// runAndPublish は Runner を実行し、失敗していなければ結果を保存するのだ。
// 一部のコマの失敗は警告だけで、保存は行うのだ。
func runAndPublish(ctx context.Context, appCtx *builder.AppContext, r stageRunner) (string, error) {
	res, err := r.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("パイプラインの実行に失敗したのだ: %w", err)
	}
	if perr := res.Partial(); perr != nil {
		slog.Warn("一部のコマが代替画像になったのだ", "error", perr)
	}

	dir, err := builder.BuildPublisherRunner(appCtx).Run(ctx, res)
	if err != nil {
		return "", fmt.Errorf("公開処理に失敗したのだ: %w", err)
	}
	slog.Info("成果物の保存が完了したのだ！", "run", res.RunID, "dir", dir)
	return dir, nil
}

// LogProgress は段階の進捗を構造化ログに流すのだ。
func LogProgress(ev pipeline.ProgressEvent) {
	switch ev.Status {
	case pipeline.StatusStarted:
		slog.Info("段階を開始するのだ", "run", ev.RunID, "stage", ev.Stage)
	case pipeline.StatusFailed:
		slog.Error("段階が失敗したのだ", "run", ev.RunID, "stage", ev.Stage, "error", ev.Err)
	default:
		slog.Debug("段階が完了したのだ", "run", ev.RunID, "stage", ev.Stage)
	}
}
