package character

import (
	"context"
	"log/slog"

	"github.com/shouni/go-frameflow-kit/internal/prompt"
	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

const (
	DefaultCount = 3
	MinCount     = 2
	MaxCount     = 6
)

// profile は構造化出力で要求する1人分の形なのだ。
type profile struct {
	Name              string   `json:"name" jsonschema:"description=Full name, unique within the story"`
	Age               int      `json:"age" jsonschema:"description=Approximate age"`
	Role              string   `json:"role" jsonschema:"enum=protagonist,enum=antagonist,enum=supporting"`
	Description       string   `json:"description" jsonschema:"description=One-sentence character description"`
	Traits            []string `json:"traits" jsonschema:"description=3-5 personality traits"`
	VisualDescription string   `json:"visual_description" jsonschema:"description=Physical appearance for storyboard generation"`
	Motivation        string   `json:"motivation"`
	Arc               string   `json:"arc"`
}

// batch はトップレベルをオブジェクトにするための入れ物なのだ。
type batch struct {
	Characters []profile `json:"characters"`
}

var batchSchema = ai.NewStructuredSchema[batch]("character_batch", "Character profiles for a screenplay")

// Creator は物語の骨組みから登場人物を作るのだ。
type Creator struct {
	llm ai.LLMClient
}

// NewCreator は Creator を生成するのだ。
func NewCreator(llm ai.LLMClient) *Creator {
	return &Creator{llm: llm}
}

// Create は1回の補完で count 人の登場人物を作るのだ。
// 足りない分は既定の名前の候補から補い、多すぎる分は切り捨てるのだ。
func (c *Creator) Create(ctx context.Context, outline domain.StoryOutline, count int) ([]domain.Character, error) {
	count = ClampCount(count)

	user, err := prompt.Render(prompt.CharacterCreation, prompt.CharacterData{
		StoryOutline:  outline,
		Count:         count,
		GenreGuidance: prompt.GenreGuidance(outline.Genre),
	})
	if err != nil {
		return nil, err
	}

	text, err := c.llm.Complete(ctx, ai.CompletionRequest{
		Purpose:     prompt.CharacterCreation,
		System:      prompt.SystemCreative,
		User:        user,
		MaxTokens:   2500,
		Temperature: 0.8,
		Schema:      batchSchema,
	})
	if err != nil {
		return nil, apperr.Generation("character creation failed", err)
	}

	parsed := ParseCharacters(text)
	if len(parsed) == 0 {
		slog.WarnContext(ctx, "登場人物を読み取れなかったので既定の候補で補うのだ")
	}
	characters := Normalize(parsed, count, outline)

	slog.Info("登場人物を作成したのだ", "requested", count, "parsed", len(parsed), "names", domain.Roster(characters).Names())
	return characters, nil
}

// ClampCount は人数を既定の範囲に収めるのだ。0 以下は既定値なのだ。
func ClampCount(count int) int {
	switch {
	case count <= 0:
		return DefaultCount
	case count < MinCount:
		return MinCount
	case count > MaxCount:
		return MaxCount
	}
	return count
}
