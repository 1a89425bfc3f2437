package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shouni/go-frameflow-kit/internal/builder"
	"github.com/shouni/go-frameflow-kit/internal/config"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
	"github.com/shouni/go-frameflow-kit/pkg/publisher"
)

type fixedRunner struct {
	res *pipeline.Result
	err error
}

func (f fixedRunner) Run(context.Context) (*pipeline.Result, error) {
	return f.res, f.err
}

func testAppContext(t *testing.T) *builder.AppContext {
	t.Helper()
	cfg := &config.Config{OutputDir: t.TempDir()}
	appCtx := builder.NewAppContext(cfg, nil, pipeline.Clients{}, publisher.LocalWriter{}, nil)
	return &appCtx
}

func TestRunAndPublish(t *testing.T) {
	t.Run("一部のコマが失敗していても保存するのだ", func(t *testing.T) {
		appCtx := testAppContext(t)
		res := &pipeline.Result{
			RunID:    "partial",
			State:    pipeline.StateDone,
			Failures: []domain.FrameFailure{{FrameNumber: 3, SceneIndex: 2, Error: "timeout"}},
		}
		dir, err := runAndPublish(context.Background(), appCtx, fixedRunner{res: res})
		if err != nil {
			t.Fatalf("保存に失敗したのだ: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, config.DefaultRunFile)); err != nil {
			t.Errorf("run.json がないのだ: %v", err)
		}
	})

	t.Run("実行が失敗したら何も保存しないのだ", func(t *testing.T) {
		appCtx := testAppContext(t)
		stageErr := &pipelineErr{}
		_, err := runAndPublish(context.Background(), appCtx, fixedRunner{err: stageErr})
		if !errors.Is(err, stageErr) {
			t.Errorf("元のエラーを包んでいないのだ: %v", err)
		}
		entries, _ := os.ReadDir(appCtx.Config.OutputDir)
		if len(entries) != 0 {
			t.Errorf("何か保存されたのだ: %v", entries)
		}
	})
}

type pipelineErr struct{}

func (*pipelineErr) Error() string { return "stage WritingScenes failed" }

func TestLogProgress(t *testing.T) {
	for _, st := range []pipeline.Status{pipeline.StatusStarted, pipeline.StatusCompleted, pipeline.StatusFailed} {
		LogProgress(pipeline.ProgressEvent{RunID: "r", Stage: pipeline.StateAnalyzing, Status: st})
	}
}
