package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/character"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
	"github.com/shouni/go-frameflow-kit/pkg/publisher"
	"github.com/shouni/go-frameflow-kit/pkg/screenplay"
	"github.com/shouni/go-frameflow-kit/pkg/story"
	"github.com/shouni/go-frameflow-kit/pkg/storyboard"
)

// Clients は外部サービスへの接続なのだ。複数の実行で共有するので並行に呼べる必要があるのだ。
// Embedder は nil でもよく、その場合は一貫性の採点が unavailable になるのだ。
type Clients struct {
	LLM      ai.LLMClient
	Image    ai.ImageClient
	Embedder ai.EmbeddingClient
}

// Orchestrator は各段階を決まった順に実行する司令塔なのだ。
type Orchestrator struct {
	analyzer  *story.Analyzer
	creator   *character.Creator
	writer    *screenplay.Writer
	detector  *storyboard.Detector
	prompts   *storyboard.PromptGenerator
	frames    *storyboard.FrameGenerator
	exporter  *publisher.Exporter
	embedder  ai.EmbeddingClient
	threshold float64

	suggestAngles bool
	progress      ProgressFunc
	now           func() time.Time
}

type Option func(*orchestratorConfig)

type orchestratorConfig struct {
	writerOpts    []screenplay.Option
	frameOpts     []storyboard.FrameOption
	exporterOpts  []publisher.Option
	threshold     float64
	suggestAngles bool
	progress      ProgressFunc
}

func WithWriterOptions(opts ...screenplay.Option) Option {
	return func(c *orchestratorConfig) { c.writerOpts = append(c.writerOpts, opts...) }
}

func WithFrameOptions(opts ...storyboard.FrameOption) Option {
	return func(c *orchestratorConfig) { c.frameOpts = append(c.frameOpts, opts...) }
}

func WithExporterOptions(opts ...publisher.Option) Option {
	return func(c *orchestratorConfig) { c.exporterOpts = append(c.exporterOpts, opts...) }
}

// WithThreshold は一貫性の警告の閾値なのだ。
func WithThreshold(t float64) Option {
	return func(c *orchestratorConfig) { c.threshold = t }
}

// WithCameraAngleSuggestions はカメラアングルを LLM にも尋ねるのだ。コマごとに1回補完が増えるのだ。
func WithCameraAngleSuggestions(enabled bool) Option {
	return func(c *orchestratorConfig) { c.suggestAngles = enabled }
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *orchestratorConfig) { c.progress = fn }
}

// NewOrchestrator は共有クライアントから各段階の部品を組み立てるのだ。
func NewOrchestrator(clients Clients, opts ...Option) (*Orchestrator, error) {
	if clients.LLM == nil {
		return nil, apperr.Validation("llm client is required")
	}
	if clients.Image == nil {
		return nil, apperr.Validation("image client is required")
	}
	cfg := orchestratorConfig{threshold: storyboard.DefaultThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}
	embedder := clients.Embedder
	if embedder == nil {
		embedder = ai.DisabledEmbedder{}
	}

	return &Orchestrator{
		analyzer:      story.NewAnalyzer(clients.LLM),
		creator:       character.NewCreator(clients.LLM),
		writer:        screenplay.NewWriter(clients.LLM, cfg.writerOpts...),
		detector:      storyboard.NewDetector(),
		prompts:       storyboard.NewPromptGenerator(clients.LLM),
		frames:        storyboard.NewFrameGenerator(clients.Image, cfg.frameOpts...),
		exporter:      publisher.NewExporter(cfg.exporterOpts...),
		embedder:      embedder,
		threshold:     cfg.threshold,
		suggestAngles: cfg.suggestAngles,
		progress:      cfg.progress,
		now:           time.Now,
	}, nil
}

// WithProgress は進捗の通知先だけを差し替えた複製を返すのだ。部品は共有するのだ。
func (o *Orchestrator) WithProgress(fn ProgressFunc) *Orchestrator {
	c := *o
	c.progress = fn
	return &c
}

// Generate は入力を検証してから全段階を実行するのだ。
// 失敗した場合は *apperr.StageError を返し、Result にはそこまでの成果が残るのだ。
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	r := o.newRun(ctx, req)
	slog.InfoContext(ctx, "実行を開始するのだ", "run", r.res.RunID, "genre", req.Genre, "structure", req.ActStructure, "frames", req.FrameCount)

	err = r.steps(
		stageStep{StateAnalyzing, r.analyze},
		stageStep{StateCreatingCharacters, r.createCharacters},
		stageStep{StateWritingScenes, r.writeScenes},
		stageStep{StateDetectingMoments, r.detectMoments},
		stageStep{StateGeneratingPrompts, r.generatePrompts},
		stageStep{StateGeneratingFrames, r.generateFrames},
		stageStep{StateExporting, r.export},
	)
	if err != nil {
		return r.res, err
	}
	return r.finish(), nil
}

// GenerateScreenplay は WritingScenes までを実行し、書き出しは脚本 PDF だけに絞るのだ。
// 絵コンテは後から GenerateStoryboard で作れるのだ。
func (o *Orchestrator) GenerateScreenplay(ctx context.Context, req Request) (*Result, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	req.Exports = slices.DeleteFunc(req.Exports, func(k domain.ArtifactKind) bool {
		return k != domain.ArtifactScreenplayPDF
	})
	r := o.newRun(ctx, req)
	slog.InfoContext(ctx, "脚本だけを書くのだ", "run", r.res.RunID, "genre", req.Genre, "structure", req.ActStructure)

	err = r.steps(
		stageStep{StateAnalyzing, r.analyze},
		stageStep{StateCreatingCharacters, r.createCharacters},
		stageStep{StateWritingScenes, r.writeScenes},
		stageStep{StateExporting, r.export},
	)
	if err != nil {
		return r.res, err
	}
	return r.finish(), nil
}

// GenerateStoryboard は既存の脚本から DetectingMoments 以降を実行するのだ。Prompt は不要なのだ。
func (o *Orchestrator) GenerateStoryboard(ctx context.Context, req Request, sp domain.Screenplay) (*Result, error) {
	inheritGenre := strings.TrimSpace(string(req.Genre)) == ""
	if err := req.normalizeOptions(); err != nil {
		return nil, err
	}
	if len(sp.Scenes) == 0 {
		return nil, apperr.Validation("screenplay has no scenes")
	}
	if err := sp.Validate(); err != nil {
		return nil, err
	}
	if inheritGenre && sp.Genre != "" {
		req.Genre = sp.Genre
	}
	// 呼び出し側の脚本を書き換えないように複製するのだ
	sp.Scenes = slices.Clone(sp.Scenes)
	sp.Characters = slices.Clone(sp.Characters)

	r := o.newRun(ctx, req)
	r.res.Screenplay = sp
	slog.InfoContext(ctx, "既存の脚本から絵コンテを作るのだ", "run", r.res.RunID, "scenes", len(sp.Scenes), "frames", req.FrameCount)

	err := r.steps(
		stageStep{StateDetectingMoments, func(ctx context.Context) error {
			r.res.Screenplay.Characters = r.register(ctx, r.res.Screenplay.Characters)
			return r.detectMoments(ctx)
		}},
		stageStep{StateGeneratingPrompts, r.generatePrompts},
		stageStep{StateGeneratingFrames, r.generateFrames},
		stageStep{StateExporting, r.export},
	)
	if err != nil {
		return r.res, err
	}
	return r.finish(), nil
}

// run は1回の実行の可変な状態なのだ。実行をまたいで共有しないのだ。
type run struct {
	o       *Orchestrator
	ctx     context.Context
	work    context.Context
	tracker *storyboard.Tracker
	res     *Result
}

type runIDKey struct{}

// ContextWithRunID は実行 ID を呼び出し側で決めるときに使うのだ。
// 指定がなければ実行ごとに新しい UUID を振るのだ。
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

func (o *Orchestrator) newRun(ctx context.Context, req Request) *run {
	return &run{
		o:   o,
		ctx: ctx,
		// 段階の途中では取り消さず、呼び出し中の外部サービスは完了させるのだ
		work:    context.WithoutCancel(ctx),
		tracker: storyboard.NewTracker(o.embedder, o.threshold),
		res: &Result{
			RunID:   runIDFrom(ctx),
			State:   StateIdle,
			Request: req,
		},
	}
}

type stageStep struct {
	stage State
	fn    func(context.Context) error
}

// steps は最初に失敗した段階で止まるのだ。
func (r *run) steps(steps ...stageStep) error {
	for _, s := range steps {
		if err := r.step(s.stage, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// step は段階の前に取り消しを確認し、前後で進捗を通知するのだ。
func (r *run) step(stage State, fn func(context.Context) error) error {
	if err := r.ctx.Err(); err != nil {
		r.res.State = StateFailed
		cancelErr := apperr.Cancelled(err)
		r.emit(stage, StatusFailed, cancelErr)
		slog.WarnContext(r.work, "実行が取り消されたのだ", "run", r.res.RunID, "before", stage)
		return &apperr.StageError{Stage: string(stage), Err: cancelErr}
	}

	r.res.State = stage
	r.emit(stage, StatusStarted, nil)
	started := r.o.now()
	if err := fn(r.work); err != nil {
		r.res.State = StateFailed
		r.emit(stage, StatusFailed, err)
		slog.ErrorContext(r.work, "段階が失敗したのだ", "run", r.res.RunID, "stage", stage, "error", err)
		return &apperr.StageError{Stage: string(stage), Err: err}
	}
	r.emit(stage, StatusCompleted, nil)
	slog.DebugContext(r.work, "段階が完了したのだ", "run", r.res.RunID, "stage", stage, "elapsed", r.o.now().Sub(started))
	return nil
}

func (r *run) finish() *Result {
	r.res.State = StateDone
	r.emit(StateDone, StatusCompleted, nil)
	if err := r.res.Partial(); err != nil {
		slog.WarnContext(r.work, "一部のコマが失敗したまま完了したのだ", "run", r.res.RunID, "error", err)
	}
	slog.InfoContext(r.work, "実行が完了したのだ", "run", r.res.RunID, "scenes", len(r.res.Screenplay.Scenes), "frames", len(r.res.Frames), "artifacts", len(r.res.Artifacts))
	return r.res
}

func (r *run) emit(stage State, status Status, err error) {
	if r.o.progress == nil {
		return
	}
	ev := ProgressEvent{RunID: r.res.RunID, Stage: stage, Status: status, At: r.o.now()}
	if err != nil {
		ev.Err = err.Error()
	}
	r.o.progress(ev)
}

func (r *run) analyze(ctx context.Context) error {
	req := r.res.Request
	outline, err := r.o.analyzer.Analyze(ctx, req.Prompt, req.Genre, req.ActStructure)
	if err != nil {
		return err
	}
	r.res.Outline = outline
	return nil
}

func (r *run) createCharacters(ctx context.Context) error {
	characters, err := r.o.creator.Create(ctx, r.res.Outline, r.res.Request.CharacterCount)
	if err != nil {
		return err
	}
	r.res.Screenplay.Characters = r.register(ctx, characters)
	return nil
}

// register は登場人物の外見を埋め込んで覚えるのだ。埋め込みの失敗は実行を止めないのだ。
func (r *run) register(ctx context.Context, characters []domain.Character) []domain.Character {
	if !r.tracker.Enabled() {
		slog.InfoContext(ctx, "埋め込みサービスが未設定なので一貫性の採点は行わないのだ", "run", r.res.RunID)
		return characters
	}
	for i, c := range characters {
		vec, err := r.tracker.Register(ctx, c)
		if err != nil {
			slog.WarnContext(ctx, "登場人物の埋め込みに失敗したのだ", "run", r.res.RunID, "character", c.Name, "error", err)
			continue
		}
		characters[i].Embedding = vec
	}
	return characters
}

func (r *run) writeScenes(ctx context.Context) error {
	sp, err := r.o.writer.Write(ctx, r.res.Outline, r.res.Screenplay.Characters, r.res.Request.DialogueStyle)
	if err != nil {
		return err
	}
	r.res.Screenplay = sp
	return nil
}

func (r *run) detectMoments(context.Context) error {
	moments := r.o.detector.Detect(&r.res.Screenplay, r.res.Request.FrameCount)
	if len(moments) == 0 {
		return apperr.Validation("screenplay has no scenes to storyboard")
	}
	r.res.Moments = moments
	return nil
}

func (r *run) generatePrompts(ctx context.Context) error {
	req := r.res.Request
	sp := r.res.Screenplay
	prompts := make([]domain.VisualPrompt, len(r.res.Moments))
	for i, m := range r.res.Moments {
		scene, ok := sp.SceneByIndex(m.SceneIndex)
		if !ok {
			return fmt.Errorf("key moment %d refers to missing scene %d", m.FrameNumber, m.SceneIndex)
		}
		if r.o.suggestAngles {
			m.CameraAngle = r.o.prompts.SuggestCameraAngle(ctx, m, req.Genre)
			r.res.Moments[i] = m
		}
		prompts[i] = r.o.prompts.Generate(m, scene, sp.Characters, req.VisualStyle)
	}
	r.res.Prompts = prompts
	return nil
}

func (r *run) generateFrames(ctx context.Context) error {
	frames, failures := r.o.frames.Generate(ctx, r.res.Prompts)
	if len(frames) != len(r.res.Moments) {
		return fmt.Errorf("generated %d frames for %d key moments", len(frames), len(r.res.Moments))
	}
	for i := range frames {
		if frames[i].Failed {
			continue
		}
		p := r.res.Prompts[i]
		frames[i].Consistency = r.tracker.Score(ctx, p.Text, p.Characters)
	}
	r.res.Frames = frames
	r.res.Failures = failures
	return nil
}

func (r *run) export(context.Context) error {
	artifacts, err := r.o.exporter.Export(r.res.Request.Exports, publisher.Bundle{
		Screenplay: r.res.Screenplay,
		Moments:    r.res.Moments,
		Prompts:    r.res.Prompts,
		Frames:     r.res.Frames,
		Failures:   r.res.Failures,
	})
	if err != nil {
		return err
	}
	r.res.Artifacts = artifacts
	return nil
}

func formatFailures(failures []domain.FrameFailure) string {
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%d frame(s) failed: %s", len(failures), strings.Join(parts, "; "))
}

// IsCancelled は実行が取り消しで終わったかどうかなのだ。
func IsCancelled(err error) bool {
	return errors.Is(err, apperr.ErrCancelled)
}
