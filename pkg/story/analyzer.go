package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-frameflow-kit/internal/prompt"
	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

// Analyzer は前提文から物語の骨組みを作るのだ。
type Analyzer struct {
	llm ai.LLMClient
}

// NewAnalyzer は Analyzer を生成するのだ。
func NewAnalyzer(llm ai.LLMClient) *Analyzer {
	return &Analyzer{llm: llm}
}

// Analyze は1回の補完で物語を分析するのだ。解析できなければ三幕構成の既定の骨組みに切り替えるのだ。
func (a *Analyzer) Analyze(ctx context.Context, premise string, genre domain.Genre, structure domain.ActStructure) (domain.StoryOutline, error) {
	// 1. 分析用のプロンプトを組み立てるのだ
	user, err := prompt.Render(prompt.StoryAnalysis, prompt.StoryAnalysisData{
		Premise:       premise,
		Genre:         genre,
		ActStructure:  structure.Label(),
		Beats:         structure.Beats(),
		GenreGuidance: prompt.GenreGuidance(genre),
	})
	if err != nil {
		return domain.StoryOutline{}, err
	}

	// 2. LLM に分析させるのだ。サービス障害はそのまま上に返すのだ
	text, err := a.llm.Complete(ctx, ai.CompletionRequest{
		Purpose:     prompt.StoryAnalysis,
		System:      prompt.SystemCreative,
		User:        user,
		MaxTokens:   2000,
		Temperature: 0.7,
	})
	if err != nil {
		return domain.StoryOutline{}, fmt.Errorf("物語の分析に失敗しました: %w", err)
	}

	// 3. 読み取れなければ既定の骨組みを使うのだ
	outline, err := ParseOutline(text, premise, genre, structure)
	if err != nil {
		if !errors.Is(err, apperr.ErrParse) {
			return domain.StoryOutline{}, err
		}
		slog.WarnContext(ctx, "分析結果を読み取れなかったので三幕構成の既定の骨組みを使うのだ", "error", err)
		outline = FallbackOutline(premise, genre)
	}

	return finalize(outline), nil
}

// finalize はタイトルとログラインを補い、各幕にシーン枠を割り当てるのだ。
func finalize(o domain.StoryOutline) domain.StoryOutline {
	if o.Title == "" {
		o.Title = fmt.Sprintf("Untitled %s Project", o.Genre)
	}
	if o.Logline == "" {
		o.Logline = DeriveLogline(o)
	}
	if o.Setting == "" {
		o.Setting = prompt.ProfileFor(o.Genre).Setting
	}
	if len(o.Acts) == 0 {
		o.Acts = defaultActs(domain.ThreeAct, o.Premise)
	}
	o.Acts = domain.AssignSceneRefs(o.Acts, o.ActStructure.ScenesPerAct())
	return o
}

// DeriveLogline はテンプレートからログラインを作るのだ。
func DeriveLogline(o domain.StoryOutline) string {
	protagonist := firstNonEmpty(o.Protagonist, "A character")
	conflict := firstNonEmpty(o.Conflict, "overwhelming odds")
	theme := firstNonEmpty(o.Theme, "transformation")
	return fmt.Sprintf("%s must overcome %s in a story about %s.",
		strings.TrimRight(protagonist, ". "),
		strings.TrimRight(conflict, ". "),
		strings.TrimRight(theme, ". "))
}

// FallbackOutline は三幕構成の既定の骨組みに前提文をそのまま入れたものなのだ。
func FallbackOutline(premise string, genre domain.Genre) domain.StoryOutline {
	return domain.StoryOutline{
		Premise:      premise,
		Genre:        genre,
		ActStructure: domain.ThreeAct,
		Theme:        "Personal journey and transformation",
		Conflict:     "Internal and external challenges",
		Protagonist:  inferProtagonist(premise),
		Antagonist:   "Forces of opposition",
		Setting:      prompt.ProfileFor(genre).Setting,
		PlotPoints: []string{
			"Opening - Introduce protagonist and world",
			"Inciting Incident - Event that starts the story",
			"First Plot Point - Protagonist commits to journey",
			"Midpoint - Major revelation or reversal",
			"Low Point - All seems lost",
			"Climax - Final confrontation",
			"Resolution - Tie up loose ends",
		},
		Acts:     defaultActs(domain.ThreeAct, premise),
		Fallback: true,
	}
}

func defaultActs(structure domain.ActStructure, premise string) []domain.Act {
	beats := structure.Beats()
	acts := make([]domain.Act, len(beats))
	for i, beat := range beats {
		acts[i] = domain.Act{Title: beat, Summary: beatSummary(beat, premise)}
	}
	return acts
}

var beatNotes = map[string]string{
	"Setup":                       "Introduce the protagonist, the world and the conflict",
	"Confrontation":               "Escalate the conflict as the protagonist faces obstacles",
	"Resolution":                  "Climax and resolution of the conflict",
	"Exposition":                  "Introduce characters and setting",
	"Rising Action":               "The conflict emerges and develops",
	"Climax":                      "The peak of dramatic tension",
	"Falling Action":              "Consequences unfold",
	"Denouement":                  "Resolution and conclusion",
	"Ordinary World":              "Establish the protagonist's normal life",
	"Call to Adventure":           "The inciting incident",
	"Refusal of the Call":         "Initial resistance",
	"Meeting the Mentor":          "Guidance is received",
	"Crossing the Threshold":      "Commit to the journey",
	"Tests, Allies, and Enemies":  "Face challenges",
	"Approach to the Inmost Cave": "Prepare for the ordeal",
	"The Ordeal":                  "Face the greatest fear",
	"Reward":                      "Gain something from the ordeal",
	"The Road Back":               "The return journey begins",
	"Resurrection":                "The final test",
	"Return with the Elixir":      "A transformed return",
}

func beatSummary(beat, premise string) string {
	note := firstNonEmpty(beatNotes[beat], beat)
	if premise == "" {
		return note + "."
	}
	return fmt.Sprintf("%s. %s", note, premise)
}

var protagonistKeywords = []string{"detective", "hero", "woman", "man", "girl", "boy", "scientist", "soldier"}

func inferProtagonist(premise string) string {
	lower := strings.ToLower(premise)
	for _, kw := range protagonistKeywords {
		for _, w := range strings.Fields(lower) {
			if strings.Trim(w, ".,;:!?'\"") == kw {
				return "The " + strings.ToUpper(kw[:1]) + kw[1:]
			}
		}
	}
	return "Main Character"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
