package storyboard

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shouni/go-frameflow-kit/internal/prompt"
	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

// styleModifier は画風ごとの接頭辞、品質指定、照明、ネガティブ指定なのだ。
type styleModifier struct {
	prefix   string
	quality  string
	lighting string
	negative string
}

var styleModifiers = map[domain.VisualStyle]styleModifier{
	domain.StyleRealistic: {
		prefix:   "Cinematic photograph",
		quality:  "photorealistic, film still, 4k quality",
		lighting: "natural cinematic lighting",
		negative: "cartoon, anime, illustration, painting, drawing",
	},
	domain.StyleNoir: {
		prefix:   "Film noir style",
		quality:  "black and white, high contrast, dramatic shadows",
		lighting: "dramatic chiaroscuro lighting, venetian blind shadows",
		negative: "color, bright, cheerful, soft lighting",
	},
	domain.StyleIllustrated: {
		prefix:   "Digital illustration",
		quality:  "concept art style, detailed artwork",
		lighting: "painterly lighting",
		negative: "photograph, photorealistic, 3d render",
	},
	domain.StyleAnime: {
		prefix:   "Anime style illustration",
		quality:  "anime art, cel-shaded, vibrant colors",
		lighting: "anime lighting style",
		negative: "photograph, realistic, western art style",
	},
	domain.StyleSketch: {
		prefix:   "Storyboard sketch",
		quality:  "pencil drawing, loose sketch, storyboard art",
		lighting: "sketch shading",
		negative: "photograph, colored, finished artwork",
	},
}

var lightingPresets = map[string]string{
	"tense":        "harsh lighting, deep shadows, high contrast",
	"dramatic":     "dramatic three-point lighting, rim lighting",
	"mysterious":   "low-key lighting, shadows, dim ambiance",
	"romantic":     "soft warm lighting, golden hour glow",
	"action":       "dynamic lighting, motion-enhanced",
	"peaceful":     "soft natural lighting, gentle diffusion",
	"dark":         "low-key lighting, minimal fill light",
	"lighthearted": "bright even lighting, cheerful ambiance",
}

var compositionRules = map[domain.CameraAngle]string{
	domain.AngleWide:            "rule of thirds, environmental context, establishing shot composition",
	domain.AngleMedium:          "centered framing, balanced composition, waist-up framing",
	domain.AngleCloseUp:         "tight framing, facial focus, shallow depth of field",
	domain.AngleExtremeCloseUp:  "extreme detail focus, macro composition",
	domain.AnglePOV:             "subjective camera angle, first-person perspective",
	domain.AngleOverTheShoulder: "over-shoulder framing, conversational composition",
	domain.AngleBirdsEye:        "top-down perspective, overhead angle",
	domain.AngleLow:             "upward camera angle, dramatic power composition",
	domain.AngleHigh:            "downward camera angle, vulnerable framing",
}

var toneDescriptors = map[string]string{
	"tense":        "tense atmosphere, high contrast",
	"dramatic":     "dramatic mood, cinematic",
	"mysterious":   "mysterious ambiance, shadows",
	"romantic":     "warm and intimate atmosphere",
	"action":       "dynamic energy, motion blur",
	"peaceful":     "calm and serene mood",
	"dark":         "dark and moody atmosphere",
	"lighthearted": "bright and cheerful mood",
}

// PromptGenerator はキーモーメントから画像生成プロンプトを組み立てるのだ。
// llm は SuggestCameraAngle にだけ使うので nil でもよいのだ。
type PromptGenerator struct {
	llm ai.LLMClient
}

func NewPromptGenerator(llm ai.LLMClient) *PromptGenerator {
	return &PromptGenerator{llm: llm}
}

// Generate は同じ入力なら必ず同じプロンプトを返すのだ。
func (g *PromptGenerator) Generate(m domain.KeyMoment, scene domain.Scene, characters domain.Roster, style domain.VisualStyle) domain.VisualPrompt {
	mod := styleModifiers[style]
	names := ReferencedCharacters(scene, characters)

	parts := make([]string, 0, 10)
	if mod.prefix != "" {
		parts = append(parts, mod.prefix)
	}
	parts = append(parts, m.Description)
	if m.Setting != "" {
		parts = append(parts, "in "+m.Setting)
	}
	if featured := describeCharacters(names, characters); featured != "" {
		parts = append(parts, "featuring "+featured)
	}
	parts = append(parts, strings.ToLower(string(m.CameraAngle)))
	parts = append(parts, lightingFor(m.Tone, mod))
	parts = append(parts, compositionFor(m.CameraAngle))
	if mod.quality != "" {
		parts = append(parts, mod.quality)
	}
	parts = append(parts, toneDescriptor(m.Tone))
	parts = append(parts, "highly detailed, professional quality")

	return domain.VisualPrompt{
		FrameNumber: m.FrameNumber,
		SceneIndex:  m.SceneIndex,
		Style:       style,
		CameraAngle: m.CameraAngle,
		Text:        strings.Join(parts, ", "),
		Negative:    mod.negative,
		Characters:  names,
		Seed:        seedFor(names, scene),
	}
}

// seedFor は最初に登場する人物の名前からシードを作るのだ。同じ人物なら全コマで同じシードなのだ。
func seedFor(names []string, scene domain.Scene) int64 {
	if len(names) > 0 {
		return int64(domain.GetSeedFromName(names[0]))
	}
	return int64(domain.GetSeedFromName(scene.Slugline.String()))
}

func describeCharacters(names []string, roster domain.Roster) string {
	descs := make([]string, 0, len(names))
	for _, name := range names {
		c, ok := roster.Find(name)
		if ok && strings.TrimSpace(c.VisualDescription) != "" {
			descs = append(descs, c.VisualDescription)
			continue
		}
		descs = append(descs, "character "+name)
	}
	return joinAnd(descs)
}

// joinAnd は "A and B"、"A, B, and C" の形でつなぐのだ。
func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}

// lightingFor は画風の照明に、雰囲気ごとの照明を添えるのだ。
func lightingFor(tone string, mod styleModifier) string {
	preset := lightingPresets[tone]
	switch {
	case mod.lighting != "" && preset != "":
		return mod.lighting + ", " + preset
	case mod.lighting != "":
		return mod.lighting
	case preset != "":
		return preset
	default:
		return "natural lighting"
	}
}

func compositionFor(angle domain.CameraAngle) string {
	if c, ok := compositionRules[angle]; ok {
		return c
	}
	return "balanced composition"
}

func toneDescriptor(tone string) string {
	if d, ok := toneDescriptors[tone]; ok {
		return d
	}
	return "cinematic atmosphere"
}

// SuggestCameraAngle は LLM にカメラアングルを尋ねるのだ。
// 認識できる答えが返ればそれを使い、失敗したら推定済みのアングルのままにするのだ。
func (g *PromptGenerator) SuggestCameraAngle(ctx context.Context, m domain.KeyMoment, genre domain.Genre) domain.CameraAngle {
	if g.llm == nil {
		return m.CameraAngle
	}
	user, err := prompt.Render(prompt.CameraAngle, prompt.CameraAngleData{
		Description: m.Description,
		Tone:        m.Tone,
		Genre:       genre,
		Characters:  m.Characters,
		Angles:      domain.AllCameraAngles(),
	})
	if err != nil {
		return m.CameraAngle
	}
	text, err := g.llm.Complete(ctx, ai.CompletionRequest{
		Purpose:     prompt.CameraAngle,
		System:      prompt.SystemTechnical,
		User:        user,
		MaxTokens:   20,
		Temperature: 0.2,
	})
	if err != nil {
		slog.DebugContext(ctx, "カメラアングルの提案に失敗したので推定のままにするのだ", "frame", m.FrameNumber, "error", err)
		return m.CameraAngle
	}
	if angle, ok := domain.ParseCameraAngle(text); ok {
		return angle
	}
	return m.CameraAngle
}
