package publisher

import (
	"log/slog"
	"slices"
	"time"

	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

// DefaultTimestamp は PDF の作成日時と ZIP の更新日時に使う固定値なのだ。ZIP は1980年より前を表せないのだ。
var DefaultTimestamp = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	FileScreenplayPDF = "screenplay.pdf"
	FileStoryboardZIP = "storyboard.zip"
	FileLookbook      = "lookbook.pdf"
	FileShotList      = "shot_list.csv"
)

// Bundle は書き出しに使う1回の実行の成果なのだ。
type Bundle struct {
	Screenplay domain.Screenplay
	Moments    []domain.KeyMoment
	Prompts    []domain.VisualPrompt
	Frames     []domain.Frame
	Failures   []domain.FrameFailure
}

// Exporter は成果物をバイト列に変換するのだ。ネットワークには触れず、同じ入力なら同じ出力になるのだ。
type Exporter struct {
	timestamp   time.Time
	webpQuality int
}

type Option func(*Exporter)

// WithTimestamp は埋め込む日時を変えるのだ。
func WithTimestamp(t time.Time) Option {
	return func(e *Exporter) {
		if !t.IsZero() {
			e.timestamp = t.UTC()
		}
	}
}

// WithWebP は絵コンテ ZIP のコマを WebP に変換するのだ。quality が0なら変換しないのだ。
func WithWebP(quality int) Option {
	return func(e *Exporter) {
		e.webpQuality = max(0, min(quality, 100))
	}
}

func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{timestamp: DefaultTimestamp}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export は要求された種類の成果物を ArtifactKind の定義順で作るのだ。重複した種類は1つにまとめるのだ。
func (e *Exporter) Export(kinds []domain.ArtifactKind, b Bundle) ([]domain.ExportArtifact, error) {
	var artifacts []domain.ExportArtifact
	for _, kind := range domain.AllArtifactKinds() {
		if !slices.Contains(kinds, kind) {
			continue
		}
		a, err := e.exportOne(kind, b)
		if err != nil {
			return nil, apperr.Generation("failed to export "+string(kind), err)
		}
		slog.Info("成果物を書き出したのだ", "kind", kind, "file", a.FileName, "bytes", len(a.Bytes))
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

func (e *Exporter) exportOne(kind domain.ArtifactKind, b Bundle) (domain.ExportArtifact, error) {
	a := domain.ExportArtifact{Kind: kind, FileName: FileNameFor(kind), MIMEType: MIMETypeFor(kind)}
	var err error
	switch kind {
	case domain.ArtifactScreenplayPDF:
		a.Bytes, err = e.ScreenplayPDF(b.Screenplay)
	case domain.ArtifactStoryboardZIP:
		a.Bytes, err = e.StoryboardZIP(b.Frames, b.Failures)
	case domain.ArtifactLookbook:
		a.Bytes, err = e.Lookbook(b.Screenplay, b.Moments, b.Frames)
	case domain.ArtifactShotList:
		a.Bytes, err = e.ShotList(b.Screenplay, b.Moments, b.Prompts)
	default:
		err = apperr.Validationf("unknown artifact kind %q", kind)
	}
	return a, err
}

func FileNameFor(kind domain.ArtifactKind) string {
	switch kind {
	case domain.ArtifactScreenplayPDF:
		return FileScreenplayPDF
	case domain.ArtifactStoryboardZIP:
		return FileStoryboardZIP
	case domain.ArtifactLookbook:
		return FileLookbook
	case domain.ArtifactShotList:
		return FileShotList
	}
	return string(kind)
}

func MIMETypeFor(kind domain.ArtifactKind) string {
	switch kind {
	case domain.ArtifactScreenplayPDF, domain.ArtifactLookbook:
		return "application/pdf"
	case domain.ArtifactStoryboardZIP:
		return "application/zip"
	case domain.ArtifactShotList:
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}
