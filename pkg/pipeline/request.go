package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/character"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

const (
	MinPromptLength = 10
	MaxPromptLength = 5000

	DefaultFrameCount = 8
	MinFrameCount     = 1
	MaxFrameCount     = 24
)

// Request は1回の実行の入力なのだ。ゼロ値の項目は既定値で補うのだ。
type Request struct {
	Prompt         string                `json:"prompt"`
	Genre          domain.Genre          `json:"genre"`
	DialogueStyle  domain.DialogueStyle  `json:"dialogue_style"`
	ActStructure   domain.ActStructure   `json:"act_structure"`
	FrameCount     int                   `json:"frame_count"`
	VisualStyle    domain.VisualStyle    `json:"visual_style"`
	CharacterCount int                   `json:"character_count"`
	Exports        []domain.ArtifactKind `json:"exports"`
}

// Normalize は既定値を補い、列挙値を正規の表記に揃えた上で検証するのだ。
// 外部サービスを呼ぶ前に必ず通すのだ。
func (r Request) Normalize() (Request, error) {
	if err := r.normalizeOptions(); err != nil {
		return Request{}, err
	}
	r.Prompt = strings.TrimSpace(r.Prompt)
	switch n := utf8.RuneCountInString(r.Prompt); {
	case n < MinPromptLength:
		return Request{}, apperr.Validationf("prompt must be at least %d characters, got %d", MinPromptLength, n)
	case n > MaxPromptLength:
		return Request{}, apperr.Validationf("prompt must be at most %d characters, got %d", MaxPromptLength, n)
	}
	return r, nil
}

// normalizeOptions は Prompt 以外を検証するのだ。既存の脚本から絵コンテだけを作るときはこちらだけを使うのだ。
func (r *Request) normalizeOptions() error {
	var err error
	if r.Genre, err = parseOr(r.Genre, domain.GenreDrama, domain.ParseGenre); err != nil {
		return err
	}
	if r.DialogueStyle, err = parseOr(r.DialogueStyle, domain.DialogueRealistic, domain.ParseDialogueStyle); err != nil {
		return err
	}
	if r.ActStructure, err = parseOr(r.ActStructure, domain.ThreeAct, domain.ParseActStructure); err != nil {
		return err
	}
	if r.VisualStyle, err = parseOr(r.VisualStyle, domain.StyleRealistic, domain.ParseVisualStyle); err != nil {
		return err
	}

	if r.FrameCount == 0 {
		r.FrameCount = DefaultFrameCount
	}
	if r.FrameCount < MinFrameCount || r.FrameCount > MaxFrameCount {
		return apperr.Validationf("frame count must be between %d and %d, got %d", MinFrameCount, MaxFrameCount, r.FrameCount)
	}

	if r.CharacterCount == 0 {
		r.CharacterCount = character.DefaultCount
	}
	if r.CharacterCount < character.MinCount || r.CharacterCount > character.MaxCount {
		return apperr.Validationf("character count must be between %d and %d, got %d", character.MinCount, character.MaxCount, r.CharacterCount)
	}

	// nil は既定の組み合わせ、空のスライスは書き出しなしなのだ
	if r.Exports == nil {
		r.Exports = DefaultExports()
		return nil
	}
	kinds := make([]domain.ArtifactKind, 0, len(r.Exports))
	for _, k := range r.Exports {
		kind, err := domain.ParseArtifactKind(string(k))
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}
	r.Exports = kinds
	return nil
}

// DefaultExports は脚本 PDF と絵コンテ ZIP なのだ。
func DefaultExports() []domain.ArtifactKind {
	return []domain.ArtifactKind{domain.ArtifactScreenplayPDF, domain.ArtifactStoryboardZIP}
}

func parseOr[T ~string](v, def T, parse func(string) (T, error)) (T, error) {
	if strings.TrimSpace(string(v)) == "" {
		return def, nil
	}
	return parse(string(v))
}
