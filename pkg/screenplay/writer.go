package screenplay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-frameflow-kit/internal/prompt"
	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

const (
	DefaultConcurrency   = 3
	DefaultContextTokens = 1200
)

// Writer は幕ごとにシーンと台詞を書くのだ。
type Writer struct {
	llm           ai.LLMClient
	concurrency   int
	contextTokens int
}

// Option は Writer の設定を変えるのだ。
type Option func(*Writer)

// WithConcurrency は同時に書く幕の数の上限を設定するのだ。
func WithConcurrency(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithContextTokens は幕ごとの物語コンテキストのトークン上限を設定するのだ。
func WithContextTokens(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.contextTokens = n
		}
	}
}

// NewWriter は Writer を生成するのだ。
func NewWriter(llm ai.LLMClient, opts ...Option) *Writer {
	w := &Writer{llm: llm, concurrency: DefaultConcurrency, contextTokens: DefaultContextTokens}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write は幕ごとに1回ずつ補完を並行して呼び、骨組みの幕順にシーンをつなげるのだ。
// シーン番号は幕をまたいで0から振り直すのだ。
func (w *Writer) Write(ctx context.Context, outline domain.StoryOutline, characters []domain.Character, style domain.DialogueStyle) (domain.Screenplay, error) {
	acts := outline.Acts
	if len(acts) == 0 {
		return domain.Screenplay{}, fmt.Errorf("outline has no acts")
	}
	storyContext := ai.TruncateToTokens(buildContext(outline), w.contextTokens)

	results := make([][]domain.Scene, len(acts))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(w.concurrency)

	for i, act := range acts {
		eg.Go(func() error {
			scenes, err := w.writeAct(egCtx, outline, i, act, characters, style, storyContext)
			if err != nil {
				return fmt.Errorf("第%d幕の執筆に失敗しました: %w", i+1, err)
			}
			results[i] = scenes
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return domain.Screenplay{}, err
	}

	sp := domain.Screenplay{
		Title:      outline.Title,
		Author:     domain.DefaultAuthor,
		Draft:      domain.DefaultDraft,
		Genre:      outline.Genre,
		Logline:    outline.Logline,
		Characters: append(domain.Roster(nil), characters...),
	}
	for actIdx, scenes := range results {
		for _, s := range scenes {
			s.Index = len(sp.Scenes)
			s.Act = actIdx + 1
			sp.Scenes = append(sp.Scenes, s)
		}
	}
	sp.Characters = resolveSpeakers(sp.Scenes, sp.Characters)

	if err := sp.Validate(); err != nil {
		return domain.Screenplay{}, err
	}
	slog.Info("脚本を書き上げたのだ", "acts", len(acts), "scenes", len(sp.Scenes), "characters", len(sp.Characters))
	return sp, nil
}

func (w *Writer) writeAct(
	ctx context.Context,
	outline domain.StoryOutline,
	idx int,
	act domain.Act,
	characters []domain.Character,
	style domain.DialogueStyle,
	storyContext string,
) ([]domain.Scene, error) {
	sceneCount := max(len(act.SceneRefs), 1)
	user, err := prompt.Render(prompt.SceneWriting, prompt.SceneData{
		ActNumber:        idx + 1,
		TotalActs:        len(outline.Acts),
		ActTitle:         act.Title,
		ActSummary:       act.Summary,
		SceneCount:       sceneCount,
		Context:          storyContext,
		Characters:       characters,
		DialogueStyle:    style,
		DialogueGuidance: style.Guidance(),
		Genre:            outline.Genre,
		GenreGuidance:    prompt.GenreGuidance(outline.Genre),
	})
	if err != nil {
		return nil, err
	}

	text, err := w.llm.Complete(ctx, ai.CompletionRequest{
		Purpose:     prompt.SceneWriting,
		System:      prompt.SystemCreative,
		User:        user,
		MaxTokens:   700 * sceneCount,
		Temperature: 0.8,
	})
	if err != nil {
		return nil, err
	}

	scenes := ParseScenes(text)
	if len(scenes) == 0 {
		slog.WarnContext(ctx, "シーンを読み取れなかったので幕の要約から代わりのシーンを作るのだ", "act", idx+1, "title", act.Title)
		return []domain.Scene{fallbackScene(outline, act)}, nil
	}
	return scenes, nil
}

// buildContext は全幕の一覧を含む物語の要約なのだ。
func buildContext(o domain.StoryOutline) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", o.Title)
	fmt.Fprintf(&sb, "Premise: %s\n", o.Premise)
	if o.Logline != "" {
		fmt.Fprintf(&sb, "Logline: %s\n", o.Logline)
	}
	fmt.Fprintf(&sb, "Theme: %s\nConflict: %s\nSetting: %s\n", o.Theme, o.Conflict, o.Setting)
	sb.WriteString("Acts:\n")
	for i, a := range o.Acts {
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, a.Title, a.Summary)
	}
	return strings.TrimSpace(sb.String())
}

func fallbackScene(o domain.StoryOutline, act domain.Act) domain.Scene {
	location := strings.ToUpper(firstClause(o.Setting))
	if location == "" {
		location = "UNKNOWN LOCATION"
	}
	summary := act.Summary
	if summary == "" {
		summary = act.Title
	}
	return domain.Scene{
		Slugline:    domain.Slugline{Setting: "INT.", Location: location, Time: "DAY"},
		ActionLines: []string{summary},
		Fallback:    true,
	}
}

func firstClause(s string) string {
	if i := strings.IndexAny(s, ",;("); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
