package domain

import (
	"strings"

	"github.com/shouni/go-frameflow-kit/pkg/apperr"
)

// Genre は物語のジャンルなのだ。
type Genre string

const (
	GenreDrama    Genre = "Drama"
	GenreComedy   Genre = "Comedy"
	GenreThriller Genre = "Thriller"
	GenreSciFi    Genre = "Sci-Fi"
	GenreHorror   Genre = "Horror"
	GenreRomance  Genre = "Romance"
	GenreAction   Genre = "Action"
	GenreMystery  Genre = "Mystery"
)

func AllGenres() []Genre {
	return []Genre{GenreDrama, GenreComedy, GenreThriller, GenreSciFi, GenreHorror, GenreRomance, GenreAction, GenreMystery}
}

// ParseGenre は大文字小文字や記号の揺れを許容してジャンルを解決するのだ。
func ParseGenre(s string) (Genre, error) {
	for _, g := range AllGenres() {
		if normalizeKey(string(g)) == normalizeKey(s) {
			return g, nil
		}
	}
	return "", apperr.Validationf("unknown genre %q", s)
}

// ActStructure は幕構成なのだ。
type ActStructure string

const (
	ThreeAct     ActStructure = "ThreeAct"
	FiveAct      ActStructure = "FiveAct"
	HerosJourney ActStructure = "HerosJourney"
)

func AllActStructures() []ActStructure {
	return []ActStructure{ThreeAct, FiveAct, HerosJourney}
}

func ParseActStructure(s string) (ActStructure, error) {
	key := normalizeKey(s)
	switch key {
	case "threeact", "3act", "three":
		return ThreeAct, nil
	case "fiveact", "5act", "five":
		return FiveAct, nil
	case "herosjourney", "heroesjourney", "hero":
		return HerosJourney, nil
	}
	return "", apperr.Validationf("unknown act structure %q", s)
}

var actBeats = map[ActStructure][]string{
	ThreeAct: {"Setup", "Confrontation", "Resolution"},
	FiveAct:  {"Exposition", "Rising Action", "Climax", "Falling Action", "Denouement"},
	HerosJourney: {
		"Ordinary World", "Call to Adventure", "Refusal of the Call", "Meeting the Mentor",
		"Crossing the Threshold", "Tests, Allies, and Enemies", "Approach to the Inmost Cave",
		"The Ordeal", "Reward", "The Road Back", "Resurrection", "Return with the Elixir",
	},
}

// Beats は幕構成ごとの固定ビート名を返すのだ。呼び出し側が書き換えても影響しないようにコピーを返すのだ。
func (a ActStructure) Beats() []string {
	return append([]string(nil), actBeats[a]...)
}

// ScenesPerAct は1幕あたりに計画するシーン数なのだ。
func (a ActStructure) ScenesPerAct() int {
	switch a {
	case FiveAct:
		return 2
	case HerosJourney:
		return 1
	default:
		return 3
	}
}

// Label はプロンプトに埋め込む人間向けの表記なのだ。
func (a ActStructure) Label() string {
	switch a {
	case FiveAct:
		return "Five-Act Structure"
	case HerosJourney:
		return "Hero's Journey"
	default:
		return "Three-Act Structure"
	}
}

// DialogueStyle は台詞の文体なのだ。
type DialogueStyle string

const (
	DialogueRealistic      DialogueStyle = "Realistic"
	DialogueStylized       DialogueStyle = "Stylized"
	DialogueMinimal        DialogueStyle = "Minimal"
	DialoguePeriodSpecific DialogueStyle = "PeriodSpecific"
	DialogueWitty          DialogueStyle = "Witty"
)

func AllDialogueStyles() []DialogueStyle {
	return []DialogueStyle{DialogueRealistic, DialogueStylized, DialogueMinimal, DialoguePeriodSpecific, DialogueWitty}
}

func ParseDialogueStyle(s string) (DialogueStyle, error) {
	for _, d := range AllDialogueStyles() {
		if normalizeKey(string(d)) == normalizeKey(s) {
			return d, nil
		}
	}
	return "", apperr.Validationf("unknown dialogue style %q", s)
}

var dialogueGuidance = map[DialogueStyle]string{
	DialogueRealistic:      "Natural, conversational dialogue with interruptions, subtext and everyday rhythm.",
	DialogueStylized:       "Heightened, rhythmic dialogue with memorable turns of phrase and a distinct voice per character.",
	DialogueMinimal:        "Sparse dialogue. Let action and silence carry the scene; lines are short and loaded.",
	DialoguePeriodSpecific: "Dialogue true to the story's historical period in vocabulary, manners and idiom.",
	DialogueWitty:          "Quick, clever exchanges with banter, wordplay and sharp comebacks.",
}

// Guidance はシーン執筆テンプレートに渡す文体の指示なのだ。
func (d DialogueStyle) Guidance() string {
	return dialogueGuidance[d]
}

// VisualStyle は絵コンテの画風なのだ。
type VisualStyle string

const (
	StyleRealistic   VisualStyle = "Realistic"
	StyleNoir        VisualStyle = "Noir"
	StyleAnime       VisualStyle = "Anime"
	StyleIllustrated VisualStyle = "Illustrated"
	StyleSketch      VisualStyle = "Sketch"
)

func AllVisualStyles() []VisualStyle {
	return []VisualStyle{StyleRealistic, StyleNoir, StyleAnime, StyleIllustrated, StyleSketch}
}

func ParseVisualStyle(s string) (VisualStyle, error) {
	for _, v := range AllVisualStyles() {
		if normalizeKey(string(v)) == normalizeKey(s) {
			return v, nil
		}
	}
	return "", apperr.Validationf("unknown visual style %q", s)
}

// Role は登場人物の役割なのだ。
type Role string

const (
	RoleProtagonist Role = "protagonist"
	RoleAntagonist  Role = "antagonist"
	RoleSupporting  Role = "supporting"
)

// ParseRole は未知の値を supporting として扱うのだ。LLM の表記揺れが多いからなのだ。
func ParseRole(s string) Role {
	key := normalizeKey(s)
	switch {
	case strings.Contains(key, "protagonist"), key == "hero", key == "lead", key == "main":
		return RoleProtagonist
	case strings.Contains(key, "antagonist"), key == "villain":
		return RoleAntagonist
	default:
		return RoleSupporting
	}
}

// CameraAngle はコマのカメラアングルなのだ。
type CameraAngle string

const (
	AngleWide            CameraAngle = "Wide Shot"
	AngleMedium          CameraAngle = "Medium Shot"
	AngleCloseUp         CameraAngle = "Close-Up"
	AngleExtremeCloseUp  CameraAngle = "Extreme Close-Up"
	AnglePOV             CameraAngle = "POV"
	AngleOverTheShoulder CameraAngle = "Over the Shoulder"
	AngleBirdsEye        CameraAngle = "Bird's Eye View"
	AngleLow             CameraAngle = "Low Angle"
	AngleHigh            CameraAngle = "High Angle"
)

func AllCameraAngles() []CameraAngle {
	return []CameraAngle{
		AngleWide, AngleMedium, AngleCloseUp, AngleExtremeCloseUp, AnglePOV,
		AngleOverTheShoulder, AngleBirdsEye, AngleLow, AngleHigh,
	}
}

// ParseCameraAngle は自由記述の中からカメラアングルを探すのだ。紛らわしいものから順に照合するのだ。
func ParseCameraAngle(s string) (CameraAngle, bool) {
	key := normalizeKey(s)
	if key == "" {
		return "", false
	}
	for _, entry := range angleKeywords {
		for _, kw := range entry.keys {
			if strings.Contains(key, kw) {
				return entry.angle, true
			}
		}
	}
	return "", false
}

var angleKeywords = []struct {
	angle CameraAngle
	keys  []string
}{
	{AngleExtremeCloseUp, []string{"extremecloseup"}},
	{AngleOverTheShoulder, []string{"overtheshoulder", "overshoulder"}},
	{AngleBirdsEye, []string{"birdseye", "overhead", "topdown"}},
	{AngleCloseUp, []string{"closeup"}},
	{AngleMedium, []string{"medium"}},
	{AngleWide, []string{"wide", "establishing", "longshot"}},
	{AngleLow, []string{"lowangle"}},
	{AngleHigh, []string{"highangle"}},
	{AnglePOV, []string{"pov", "pointofview"}},
}

// AngleCategory はカメラアングルの粗い分類なのだ。
type AngleCategory string

const (
	CategoryWide    AngleCategory = "wide"
	CategoryMedium  AngleCategory = "medium"
	CategoryCloseUp AngleCategory = "close-up"
	CategoryPOV     AngleCategory = "POV"
	CategoryOther   AngleCategory = "other"
)

func (a CameraAngle) Category() AngleCategory {
	switch a {
	case AngleWide:
		return CategoryWide
	case AngleMedium:
		return CategoryMedium
	case AngleCloseUp, AngleExtremeCloseUp:
		return CategoryCloseUp
	case AnglePOV:
		return CategoryPOV
	default:
		return CategoryOther
	}
}

// ArtifactKind は書き出し成果物の種類なのだ。
type ArtifactKind string

const (
	ArtifactScreenplayPDF ArtifactKind = "ScreenplayPDF"
	ArtifactStoryboardZIP ArtifactKind = "StoryboardZIP"
	ArtifactLookbook      ArtifactKind = "Lookbook"
	ArtifactShotList      ArtifactKind = "ShotList"
)

func AllArtifactKinds() []ArtifactKind {
	return []ArtifactKind{ArtifactScreenplayPDF, ArtifactStoryboardZIP, ArtifactLookbook, ArtifactShotList}
}

func ParseArtifactKind(s string) (ArtifactKind, error) {
	key := normalizeKey(s)
	switch key {
	case "screenplaypdf", "screenplay", "pdf":
		return ArtifactScreenplayPDF, nil
	case "storyboardzip", "storyboard", "zip":
		return ArtifactStoryboardZIP, nil
	case "lookbook":
		return ArtifactLookbook, nil
	case "shotlist", "shots", "csv":
		return ArtifactShotList, nil
	}
	return "", apperr.Validationf("unknown artifact kind %q", s)
}

// normalizeKey は英数字だけを小文字で残すのだ。"Sci-Fi" と "scifi" を同一視するためなのだ。
func normalizeKey(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
