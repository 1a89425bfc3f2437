package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

const (
	StoryAnalysis     = "story_analysis"
	CharacterCreation = "character_creation"
	SceneWriting      = "scene_writing"
	CameraAngle       = "camera_angle"
)

//go:embed templates/*.md
var templateFS embed.FS

//go:embed templates/system_creative.md
var SystemCreative string

//go:embed templates/system_technical.md
var SystemTechnical string

var funcs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}

// stageTemplates はステージ名と解析済みテンプレートを紐づけるマップなのだ。
var stageTemplates = mustParse(StoryAnalysis, CharacterCreation, SceneWriting, CameraAngle)

func mustParse(names ...string) map[string]*template.Template {
	m := make(map[string]*template.Template, len(names))
	for _, name := range names {
		raw, err := templateFS.ReadFile("templates/" + name + ".md")
		if err != nil {
			panic(fmt.Sprintf("テンプレート '%s' が埋め込まれていないのだ: %v", name, err))
		}
		m[name] = template.Must(template.New(name).Funcs(funcs).Option("missingkey=error").Parse(string(raw)))
	}
	return m
}

// StoryAnalysisData は story_analysis テンプレートの入力なのだ。
type StoryAnalysisData struct {
	Premise       string
	Genre         domain.Genre
	ActStructure  string
	Beats         []string
	GenreGuidance string
}

// CharacterData は character_creation テンプレートの入力なのだ。
type CharacterData struct {
	domain.StoryOutline
	Count         int
	GenreGuidance string
}

// SceneData は scene_writing テンプレートの入力なのだ。
type SceneData struct {
	ActNumber        int
	TotalActs        int
	ActTitle         string
	ActSummary       string
	SceneCount       int
	Context          string
	Characters       []domain.Character
	DialogueStyle    domain.DialogueStyle
	DialogueGuidance string
	Genre            domain.Genre
	GenreGuidance    string
}

// CameraAngleData は camera_angle テンプレートの入力なのだ。
type CameraAngleData struct {
	Description string
	Tone        string
	Genre       domain.Genre
	Characters  []string
	Angles      []domain.CameraAngle
}

// Render は指定されたステージのテンプレートにデータを埋め込んで返すのだ。
func Render(name string, data any) (string, error) {
	tmpl, ok := stageTemplates[name]
	if !ok {
		supported := slices.Collect(maps.Keys(stageTemplates))
		slices.Sort(supported)

		return "", fmt.Errorf("サポートされていないテンプレート: '%s'。サポートされているテンプレートは [%s] です",
			name, strings.Join(supported, ", "))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("テンプレート '%s' の展開に失敗しました: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
