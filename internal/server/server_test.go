package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
	"github.com/shouni/go-frameflow-kit/pkg/storyboard"
)

const validBody = `{"prompt":"a detective discovers the serial killer is his future self","genre":"thriller","frame_count":1}`

func doneRun(_ context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Result, error) {
	for _, st := range pipeline.Stages() {
		progress(pipeline.ProgressEvent{Stage: st, Status: pipeline.StatusStarted})
		progress(pipeline.ProgressEvent{Stage: st, Status: pipeline.StatusCompleted})
	}
	progress(pipeline.ProgressEvent{Stage: pipeline.StateDone, Status: pipeline.StatusCompleted})
	return &pipeline.Result{
		State:   pipeline.StateDone,
		Request: req,
		Frames:  []domain.Frame{{FrameNumber: 1, ImageBytes: storyboard.PlaceholderPNG(), MIMEType: "image/png"}},
		Artifacts: []domain.ExportArtifact{
			{Kind: domain.ArtifactScreenplayPDF, FileName: "screenplay.pdf", MIMEType: "application/pdf", Bytes: []byte("%PDF-fake")},
		},
	}, nil
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func postRun(t *testing.T, s *Server) string {
	t.Helper()
	rec := serve(s, http.MethodPost, "/api/runs", validBody)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("受け付けられなかったのだ: %d %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp["run_id"]
}

func TestServer_Health(t *testing.T) {
	s := NewServer(context.Background(), doneRun, time.Minute)
	if rec := serve(s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz が %d なのだ", rec.Code)
	}
}

func TestServer_RunLifecycle(t *testing.T) {
	s := NewServer(context.Background(), doneRun, time.Minute)
	id := postRun(t, s)
	s.Wait()

	rec := serve(s, http.MethodGet, "/api/runs/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("実行が見つからないのだ: %d", rec.Code)
	}
	var view RunView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.State != pipeline.StateDone || len(view.Events) != 15 {
		t.Errorf("状態か進捗が違うのだ: %s %d", view.State, len(view.Events))
	}
	if view.Result == nil || view.Result.Request.Genre != domain.GenreThriller {
		t.Errorf("正規化した入力が渡されていないのだ: %+v", view.Result)
	}
	if len(view.Artifacts) != 1 || view.Artifacts[0].URL != "/api/runs/"+id+"/artifacts/ScreenplayPDF" {
		t.Errorf("成果物の一覧が違うのだ: %+v", view.Artifacts)
	}

	t.Run("成果物を取得できるのだ", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/runs/"+id+"/artifacts/pdf", "")
		if rec.Code != http.StatusOK || rec.Body.String() != "%PDF-fake" {
			t.Fatalf("成果物が返らないのだ: %d %q", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
			t.Errorf("Content-Type が違うのだ: %s", ct)
		}
		if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "screenplay.pdf") {
			t.Errorf("ファイル名がないのだ: %s", cd)
		}
	})

	t.Run("書き出していない成果物は404なのだ", func(t *testing.T) {
		if rec := serve(s, http.MethodGet, "/api/runs/"+id+"/artifacts/lookbook", ""); rec.Code != http.StatusNotFound {
			t.Errorf("404 のはずなのだ: %d", rec.Code)
		}
	})

	t.Run("未知の種類は400なのだ", func(t *testing.T) {
		if rec := serve(s, http.MethodGet, "/api/runs/"+id+"/artifacts/gif", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("400 のはずなのだ: %d", rec.Code)
		}
	})

	t.Run("コマ画像を取得できるのだ", func(t *testing.T) {
		rec := serve(s, http.MethodGet, "/api/runs/"+id+"/frames/1", "")
		if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "image/png" {
			t.Errorf("コマ画像が返らないのだ: %d", rec.Code)
		}
		if rec := serve(s, http.MethodGet, "/api/runs/"+id+"/frames/9", ""); rec.Code != http.StatusNotFound {
			t.Errorf("存在しないコマは404のはずなのだ: %d", rec.Code)
		}
	})

	t.Run("完了した実行は取り消せないのだ", func(t *testing.T) {
		if rec := serve(s, http.MethodDelete, "/api/runs/"+id, ""); rec.Code != http.StatusConflict {
			t.Errorf("409 のはずなのだ: %d", rec.Code)
		}
	})

	t.Run("存在しない実行は404なのだ", func(t *testing.T) {
		if rec := serve(s, http.MethodGet, "/api/runs/missing", ""); rec.Code != http.StatusNotFound {
			t.Errorf("404 のはずなのだ: %d", rec.Code)
		}
	})
}

func TestServer_Validation(t *testing.T) {
	called := false
	s := NewServer(context.Background(), func(context.Context, pipeline.Request, pipeline.ProgressFunc) (*pipeline.Result, error) {
		called = true
		return nil, nil
	}, time.Minute)

	for _, body := range []string{`{"prompt":"short"}`, `{"prompt":"a detective discovers the truth","frame_count":99}`, `{"prompt":`} {
		if rec := serve(s, http.MethodPost, "/api/runs", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s は400のはずなのだ: %d", body, rec.Code)
		}
	}
	s.Wait()
	if called {
		t.Error("検証に通らない入力で実行が始まったのだ")
	}
}

func TestServer_Cancel(t *testing.T) {
	started := make(chan struct{})
	blocking := func(ctx context.Context, _ pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Result, error) {
		progress(pipeline.ProgressEvent{Stage: pipeline.StateAnalyzing, Status: pipeline.StatusStarted})
		close(started)
		<-ctx.Done()
		err := &apperr.StageError{Stage: string(pipeline.StateCreatingCharacters), Err: apperr.Cancelled(ctx.Err())}
		progress(pipeline.ProgressEvent{Stage: pipeline.StateCreatingCharacters, Status: pipeline.StatusFailed, Err: err.Error()})
		return &pipeline.Result{State: pipeline.StateFailed}, err
	}
	s := NewServer(context.Background(), blocking, time.Minute)
	id := postRun(t, s)
	<-started

	if rec := serve(s, http.MethodDelete, "/api/runs/"+id, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("取り消しが受け付けられないのだ: %d", rec.Code)
	}
	s.Wait()

	var view RunView
	if err := json.Unmarshal(serve(s, http.MethodGet, "/api/runs/"+id, "").Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.State != pipeline.StateFailed || view.Stage != string(pipeline.StateCreatingCharacters) {
		t.Errorf("取り消しで失敗になっていないのだ: %+v", view)
	}
	if rec := serve(s, http.MethodGet, "/api/runs/"+id+"/artifacts/pdf", ""); rec.Code != http.StatusConflict {
		t.Errorf("失敗した実行の成果物は409のはずなのだ: %d", rec.Code)
	}
}

func TestServer_Shutdown(t *testing.T) {
	ctx := context.Background()
	s := NewServer(ctx, func(ctx context.Context, _ pipeline.Request, _ pipeline.ProgressFunc) (*pipeline.Result, error) {
		<-ctx.Done()
		return nil, apperr.Cancelled(ctx.Err())
	}, time.Minute)
	postRun(t, s)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		t.Errorf("停止に失敗したのだ: %v", err)
	}
}
