package storyboard

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

type keyword struct {
	word   string
	weight float64
}

var (
	actionKeywords = []keyword{
		{"fight", 3.0}, {"chase", 2.5}, {"explosion", 2.5}, {"crash", 2.0}, {"runs", 1.5},
		{"enters", 1.0}, {"reveals", 2.0}, {"discovers", 2.0}, {"opens", 1.5}, {"looks", 1.0},
		{"watches", 1.0}, {"fire", 2.0}, {"blood", 2.0}, {"kiss", 2.0},
	}
	emotionalKeywords = []keyword{
		{"tears", 1.5}, {"screams", 1.5}, {"laughs", 1.0}, {"cries", 1.5},
		{"shouts", 1.0}, {"whispers", 1.0}, {"smiles", 0.5}, {"frowns", 0.5},
	}
	cinematicKeywords = []keyword{
		{"darkness", 1.0}, {"light", 1.0}, {"shadow", 1.5}, {"rain", 1.0},
		{"storm", 1.5}, {"sunset", 1.0}, {"dawn", 1.0},
	}
)

const (
	emotionalFactor = 0.7
	cinematicFactor = 0.5

	multiSpeakerBonus = 1.5
	openingBonus      = 2.0
	endingBonus       = 2.5
	firstQuarterBonus = 1.0
	lastQuarterBonus  = 1.5
	lengthBonus       = 1.0
	actBoundaryBonus  = 0.75
	densityBonus      = 0.5

	longSceneChars   = 500
	denseDialogue    = 4
	maxDescriptionRs = 200
)

// toneKeywords の順序は同点時の優先順位なのだ。
var toneKeywords = []struct {
	tone  string
	words []string
}{
	{"tense", []string{"danger", "threat", "chase", "fight", "urgent", "panic"}},
	{"dramatic", []string{"confrontation", "revelation", "tears", "shout", "argument"}},
	{"mysterious", []string{"shadow", "dark", "hidden", "secret", "whisper"}},
	{"romantic", []string{"kiss", "embrace", "love", "tender", "gentle"}},
	{"action", []string{"explosion", "crash", "run", "leap", "strike"}},
	{"peaceful", []string{"calm", "quiet", "serene", "gentle", "soft"}},
}

// Detector は絵コンテにするシーンを選ぶのだ。外部サービスは使わないので何度呼んでも同じ結果なのだ。
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Detect は全シーンを採点して上位 frameCount 件を脚本順で返すのだ。
// 点数は Scene.VisualImportanceScore に書き戻すのだ。同点なら前のシーンを優先するのだ。
func (d *Detector) Detect(sp *domain.Screenplay, frameCount int) []domain.KeyMoment {
	total := len(sp.Scenes)
	n := min(frameCount, total)
	if n <= 0 {
		return nil
	}

	bounds := actBounds(sp.Scenes)
	order := make([]int, total)
	for i := range sp.Scenes {
		sp.Scenes[i].VisualImportanceScore = ScoreScene(sp.Scenes[i], i, total, bounds[i])
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(sp.Scenes[b].VisualImportanceScore, sp.Scenes[a].VisualImportanceScore)
	})

	rank := make(map[int]int, n)
	selected := append([]int(nil), order[:n]...)
	for r, idx := range selected {
		rank[idx] = r + 1
	}
	slices.Sort(selected)

	moments := make([]domain.KeyMoment, n)
	for i, idx := range selected {
		scene := sp.Scenes[idx]
		moments[i] = domain.KeyMoment{
			FrameNumber: i + 1,
			SceneIndex:  scene.Index,
			Description: describe(scene),
			Setting:     settingOf(scene.Slugline),
			Tone:        InferTone(scene.Content()),
			Characters:  ReferencedCharacters(scene, sp.Characters),
			CameraAngle: SuggestAngle(scene),
			Importance:  scene.VisualImportanceScore,
			Rank:        rank[idx],
		}
	}
	return moments
}

// ScoreScene は1シーンの視覚的な重要度なのだ。pos は0始まり、total は全シーン数なのだ。
func ScoreScene(s domain.Scene, pos, total int, actBoundary bool) float64 {
	content := strings.ToLower(s.Content())
	score := 0.0

	for _, kw := range actionKeywords {
		if strings.Contains(content, kw.word) {
			score += kw.weight
		}
	}
	for _, kw := range emotionalKeywords {
		if strings.Contains(content, kw.word) {
			score += kw.weight * emotionalFactor
		}
	}
	for _, kw := range cinematicKeywords {
		if strings.Contains(content, kw.word) {
			score += kw.weight * cinematicFactor
		}
	}

	if len(s.Speakers()) >= 2 {
		score += multiSpeakerBonus
	}

	num := pos + 1
	switch {
	case num == 1:
		score += openingBonus
	case num == total:
		score += endingBonus
	case float64(num) <= float64(total)*0.25:
		score += firstQuarterBonus
	case float64(num) >= float64(total)*0.75:
		score += lastQuarterBonus
	}

	if len(content) > longSceneChars {
		score += lengthBonus
	}
	if actBoundary {
		score += actBoundaryBonus
	}
	if len(s.Dialogue) >= denseDialogue {
		score += densityBonus
	}
	return score
}

// actBounds は各シーンが幕の最初か最後かどうかなのだ。
func actBounds(scenes []domain.Scene) []bool {
	out := make([]bool, len(scenes))
	for i, s := range scenes {
		if i == 0 || scenes[i-1].Act != s.Act || i == len(scenes)-1 || scenes[i+1].Act != s.Act {
			out[i] = true
		}
	}
	return out
}

// InferTone は雰囲気のキーワードが最も多い調子を返すのだ。なければ dramatic なのだ。
func InferTone(content string) string {
	lower := strings.ToLower(content)
	best, bestScore := "dramatic", 0
	for _, t := range toneKeywords {
		n := 0
		for _, w := range t.words {
			if strings.Contains(lower, w) {
				n++
			}
		}
		if n > bestScore {
			best, bestScore = t.tone, n
		}
	}
	return best
}

var (
	wideCues       = []string{"fight", "chase", "runs", "explosion", "crash"}
	lookCues       = []string{"watches", "looks", "stares", "peers", "observes"}
	emotionalCues  = []string{"tears", "whispers", "kiss", "cries", "screams"}
	revelationCues = []string{"discovers", "reveals", "realizes"}
)

// SuggestAngle はシーンの中身からカメラアングルを粗く決めるのだ。
func SuggestAngle(s domain.Scene) domain.CameraAngle {
	action := strings.ToLower(s.Action())
	if hits := countHits(action, wideCues); hits > 0 {
		if countHits(action, lookCues) > hits {
			return domain.AnglePOV
		}
		return domain.AngleWide
	}
	if countHits(action, emotionalCues) > 0 {
		return domain.AngleCloseUp
	}
	if countHits(action, revelationCues) > 0 {
		return domain.AngleMedium
	}
	if len(s.Dialogue) > 0 && len(s.Dialogue) >= len(s.ActionLines) {
		switch speakers := len(s.Speakers()); {
		case speakers == 2:
			return domain.AngleOverTheShoulder
		case speakers > 2:
			return domain.AngleMedium
		default:
			return domain.AngleCloseUp
		}
	}
	return domain.AngleMedium
}

func countHits(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

// describe はト書きの最初の3行を説明にするのだ。
func describe(s domain.Scene) string {
	lines := s.ActionLines
	if len(lines) > 3 {
		lines = lines[:3]
	}
	desc := strings.Join(lines, " ")
	if desc == "" && len(s.Dialogue) > 0 {
		desc = fmt.Sprintf("%s says: %s", s.Dialogue[0].Character, s.Dialogue[0].Line)
	}
	if desc == "" {
		desc = "A scene at " + strings.ToLower(s.Slugline.Location)
	}
	if r := []rune(desc); len(r) > maxDescriptionRs {
		desc = string(r[:maxDescriptionRs-3]) + "..."
	}
	return desc
}

func settingOf(slug domain.Slugline) string {
	location := strings.ToLower(slug.Location)
	if location == "" {
		location = "an unknown location"
	}
	if slug.Time == "" {
		return location
	}
	return location + " at " + strings.ToLower(slug.Time)
}

// ReferencedCharacters は台詞の話者か、ト書きで名前が出た登場人物を名簿順で返すのだ。
func ReferencedCharacters(s domain.Scene, roster domain.Roster) []string {
	speakers := make(map[string]bool)
	for _, name := range s.Speakers() {
		speakers[strings.ToLower(name)] = true
	}
	text := " " + wordsOnly(s.Action()) + " "

	var out []string
	for _, c := range roster {
		name := strings.ToLower(c.Name)
		if speakers[name] || strings.Contains(text, " "+wordsOnly(name)+" ") {
			out = append(out, c.Name)
			continue
		}
		if fields := strings.Fields(name); len(fields) > 1 && len(fields[0]) >= 3 && strings.Contains(text, " "+fields[0]+" ") {
			out = append(out, c.Name)
		}
	}
	return out
}

// wordsOnly は小文字にして英数字以外を空白にするのだ。
func wordsOnly(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
