package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-frameflow-kit/internal/builder"
	"github.com/shouni/go-frameflow-kit/internal/server"
)

const shutdownTimeout = 30 * time.Second

var serveAddr string

// serveCmd は、実行の受付と成果物の取得を HTTP API として提供するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTP API サーバーを起動するのだ。",
	Long: `POST /api/runs で実行を受け付け、GET /api/runs/:id で進捗を、
GET /api/runs/:id/artifacts/:kind で成果物を返すのだ。実行は RUN_TTL の間だけ覚えておくのだよ。`,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "待ち受けアドレスなのだ（既定は SERVER_ADDR）。")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.ServerAddr = serveAddr
	}

	appCtx, err := builder.BuildAppContext(ctx, cfg, nil)
	if err != nil {
		return err
	}
	srv := server.NewServer(ctx, server.OrchestratorRunFunc(appCtx.Orchestrator), cfg.RunTTL)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.ServerAddr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバーが停止したのだ: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーの停止に失敗したのだ: %w", err)
	}
	slog.Info("サーバーを停止したのだ")
	return nil
}
