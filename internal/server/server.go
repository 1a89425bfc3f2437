package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
)

// RunFunc は1回の実行なのだ。progress は同じ実行の中で逐次に呼ばれるのだ。
type RunFunc func(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Result, error)

// OrchestratorRunFunc は司令塔を実行ごとの進捗通知つきで呼ぶ RunFunc なのだ。
func OrchestratorRunFunc(o *pipeline.Orchestrator) RunFunc {
	return func(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Result, error) {
		return o.WithProgress(progress).Generate(ctx, req)
	}
}

// Server は実行の受付と成果物の取得を HTTP で提供するのだ。
type Server struct {
	Echo *echo.Echo

	run    RunFunc
	runs   *registry
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewServer は実行を ctx の下で動かすのだ。ctx が終わると実行中のものはすべて取り消されるのだ。
func NewServer(ctx context.Context, run RunFunc, ttl time.Duration) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	base, cancel := context.WithCancel(ctx)
	s := &Server{
		Echo:   e,
		run:    run,
		runs:   newRegistry(ttl),
		ctx:    base,
		cancel: cancel,
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/healthz", s.handleHealth)

	api := s.Echo.Group("/api")
	api.POST("/runs", s.handlePostRun)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/:id/artifacts/:kind", s.handleGetArtifact)
	api.GET("/runs/:id/frames/:n", s.handleGetFrame)
	api.DELETE("/runs/:id", s.handleDeleteRun)
}

func (s *Server) Start(addr string) error {
	slog.Info("HTTP サーバーを起動するのだ", "addr", addr)
	return s.Echo.Start(addr)
}

// Shutdown は実行中のものを取り消し、終わるのを待ってからサーバーを止めるのだ。
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("HTTP サーバーを停止するのだ")
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("実行中の処理を待ちきれなかったのだ")
	}
	return s.Echo.Shutdown(ctx)
}

// Wait は受け付けた実行がすべて終わるまで待つのだ。
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"service": "frameflow", "status": "ok"})
}

// POST /api/runs
func (s *Server) handlePostRun(c echo.Context) error {
	var req pipeline.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	// 検証に通らない入力は受け付けないのだ
	normalized, err := req.Normalize()
	if err != nil {
		return httpError(err)
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(pipeline.ContextWithRunID(s.ctx, id))
	entry := newRunEntry(id, cancel, s.now())
	s.runs.put(entry)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		res, err := s.run(ctx, normalized, entry.record)
		entry.complete(res, err)
		if err != nil {
			slog.Warn("実行が失敗したのだ", "run", id, "error", err)
			return
		}
		slog.Info("実行が完了したのだ", "run", id, "frames", len(res.Frames), "failures", len(res.Failures))
	}()

	return c.JSON(http.StatusAccepted, map[string]string{
		"run_id": id,
		"state":  string(pipeline.StateIdle),
		"url":    "/api/runs/" + id,
	})
}

// GET /api/runs/:id
func (s *Server) handleGetRun(c echo.Context) error {
	entry, err := s.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry.view())
}

// GET /api/runs/:id/artifacts/:kind
func (s *Server) handleGetArtifact(c echo.Context) error {
	entry, err := s.lookup(c)
	if err != nil {
		return err
	}
	kind, err := domain.ParseArtifactKind(c.Param("kind"))
	if err != nil {
		return httpError(err)
	}
	res, err := finishedResult(entry)
	if err != nil {
		return err
	}
	a, ok := res.Artifact(kind)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "artifact was not exported: "+string(kind))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+a.FileName+`"`)
	return c.Blob(http.StatusOK, a.MIMEType, a.Bytes)
}

// GET /api/runs/:id/frames/:n
func (s *Server) handleGetFrame(c echo.Context) error {
	entry, err := s.lookup(c)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "frame number must be a positive integer")
	}
	res, err := finishedResult(entry)
	if err != nil {
		return err
	}
	for _, f := range res.Frames {
		if f.FrameNumber == n {
			return c.Blob(http.StatusOK, f.MIMEType, f.ImageBytes)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "frame not found")
}

// DELETE /api/runs/:id は実行を取り消すのだ。呼び出し中の外部サービスの完了は待たないのだ。
func (s *Server) handleDeleteRun(c echo.Context) error {
	entry, err := s.lookup(c)
	if err != nil {
		return err
	}
	state, _ := entry.snapshot()
	if state.Terminal() {
		return echo.NewHTTPError(http.StatusConflict, "run already finished: "+string(state))
	}
	entry.cancel()
	slog.Info("実行の取り消しを受け付けたのだ", "run", entry.id, "state", state)
	return c.JSON(http.StatusAccepted, map[string]string{"run_id": entry.id, "state": string(state), "status": "cancelling"})
}

func (s *Server) lookup(c echo.Context) (*runEntry, error) {
	entry, ok := s.runs.get(c.Param("id"))
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return entry, nil
}

func finishedResult(entry *runEntry) (*pipeline.Result, error) {
	state, res := entry.snapshot()
	if state != pipeline.StateDone || res == nil {
		return nil, echo.NewHTTPError(http.StatusConflict, "run is not done: "+string(state))
	}
	return res, nil
}

// httpError はエラーの種類を HTTP のステータスに対応づけるのだ。
func httpError(err error) *echo.HTTPError {
	t, _ := apperr.TypeOf(err)
	switch t {
	case apperr.TypeValidation, apperr.TypeParse:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperr.TypeService:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func stageOf(err error) string {
	if stage, ok := apperr.StageOf(err); ok {
		return stage
	}
	if errors.Is(err, apperr.ErrCancelled) {
		return "cancelled"
	}
	return ""
}
