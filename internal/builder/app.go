package builder

import (
	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/go-frameflow-kit/internal/config"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
	"github.com/shouni/go-frameflow-kit/pkg/publisher"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config       *config.Config          // Configは、環境変数と設定ファイルから読み込まれた設定です（プロバイダ、APIキーなど）。
	Options      config.GenerateOptions  // Optionsは、コマンドラインから渡された実行時の設定です（あらすじ、ジャンル、コマ数など）。
	Writer       publisher.OutputWriter  // Writerは、生成された内容を保存するための出力先です。
	HTTPClient   httpkit.ClientInterface // HTTPClientは、画像 URL の取得に使う共通クライアントです。
	Orchestrator *pipeline.Orchestrator  // Orchestratorは、脚本から絵コンテまでを実行する司令塔です。
	Clients      pipeline.Clients        // Clientsは、外部サービスへの共有クライアントです。
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(
	cfg *config.Config,
	httpClient httpkit.ClientInterface,
	clients pipeline.Clients,
	writer publisher.OutputWriter,
	orchestrator *pipeline.Orchestrator,
) AppContext {
	return AppContext{
		Config:       cfg,
		Options:      cfg.Options,
		Writer:       writer,
		HTTPClient:   httpClient,
		Orchestrator: orchestrator,
		Clients:      clients,
	}
}
