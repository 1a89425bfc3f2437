package storyboard

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

const (
	DefaultFrameConcurrency = 4
	DefaultAspectRatio      = "16:9"
)

// FrameGenerator はプロンプトごとに1枚ずつ画像を作るのだ。
type FrameGenerator struct {
	images      ai.ImageClient
	concurrency int
	limiter     *rate.Limiter
	aspectRatio string
}

// FrameOption は FrameGenerator の設定を変えるのだ。
type FrameOption func(*FrameGenerator)

// WithFrameConcurrency は同時生成数を設定するのだ。上限は4なのだ。
func WithFrameConcurrency(n int) FrameOption {
	return func(g *FrameGenerator) {
		if n > 0 {
			g.concurrency = min(n, DefaultFrameConcurrency)
		}
	}
}

// WithRateLimit は画像 API を叩く間隔を設定するのだ。0 なら制限しないのだ。
func WithRateLimit(interval time.Duration, burst int) FrameOption {
	return func(g *FrameGenerator) {
		if interval > 0 {
			g.limiter = rate.NewLimiter(rate.Every(interval), max(burst, 1))
		}
	}
}

func WithAspectRatio(ratio string) FrameOption {
	return func(g *FrameGenerator) {
		g.aspectRatio = cmp.Or(ratio, g.aspectRatio)
	}
}

func NewFrameGenerator(images ai.ImageClient, opts ...FrameOption) *FrameGenerator {
	g := &FrameGenerator{
		images:      images,
		concurrency: DefaultFrameConcurrency,
		aspectRatio: DefaultAspectRatio,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate は入力と同じ順序、同じ長さのコマを返すのだ。
// 1枚の失敗は他に影響させず、灰色の代替画像と失敗の記録に置き換えるのだ。
func (g *FrameGenerator) Generate(ctx context.Context, prompts []domain.VisualPrompt) ([]domain.Frame, []domain.FrameFailure) {
	frames := make([]domain.Frame, len(prompts))

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, p := range prompts {
		eg.Go(func() error {
			frames[i] = g.generateOne(ctx, p)
			return nil
		})
	}
	_ = eg.Wait()

	var failures []domain.FrameFailure
	for _, f := range frames {
		if f.Failed {
			failures = append(failures, domain.FrameFailure{FrameNumber: f.FrameNumber, SceneIndex: f.SceneIndex, Error: f.Err})
		}
	}
	slog.Info("絵コンテの生成が完了したのだ", "frames", len(frames), "failed", len(failures))
	return frames, failures
}

func (g *FrameGenerator) generateOne(ctx context.Context, p domain.VisualPrompt) domain.Frame {
	frame := domain.Frame{FrameNumber: p.FrameNumber, SceneIndex: p.SceneIndex}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return failedFrame(frame, fmt.Errorf("rate limiter: %w", err))
		}
	}

	slog.Debug("コマを生成するのだ", "frame", p.FrameNumber, "seed", p.Seed)
	res, err := g.images.Synthesize(ctx, ai.ImageRequest{
		Prompt:      p.Text,
		Negative:    p.Negative,
		Seed:        p.Seed,
		AspectRatio: g.aspectRatio,
	})
	if err != nil {
		slog.WarnContext(ctx, "コマの生成に失敗したので代替画像を使うのだ", "frame", p.FrameNumber, "error", err)
		return failedFrame(frame, err)
	}
	if len(res.Data) == 0 {
		return failedFrame(frame, fmt.Errorf("image service returned no data"))
	}

	frame.ImageBytes = res.Data
	frame.MIMEType = cmp.Or(res.MIMEType, http.DetectContentType(res.Data))
	return frame
}

func failedFrame(f domain.Frame, err error) domain.Frame {
	f.Failed = true
	f.Err = err.Error()
	f.ImageBytes = PlaceholderPNG()
	f.MIMEType = "image/png"
	f.Consistency = domain.Consistency{Status: domain.ConsistencyUnavailable, Reason: "frame generation failed"}
	return f
}
