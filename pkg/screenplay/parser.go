package screenplay

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

var (
	sluglineRe   = regexp.MustCompile(`(?i)^(INT\./EXT\.?|INT/EXT\.?|I/E\.?|INT\.?|EXT\.?)\s+(.+)$`)
	separatorRe  = regexp.MustCompile(`\s*[-–—]+\s*`)
	extensionRe  = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	inlineCueRe  = regexp.MustCompile(`^([A-Z][A-Z0-9 .'\-]{0,28}?)(\s*\([^)]*\))?\s*:\s*(.+)$`)
	sceneLabelRe = regexp.MustCompile(`(?i)^(?:#+\s*)?scene\s+\d+\b`)
	leadNumRe    = regexp.MustCompile(`^\s*(?:#+\s*|\d+[.)]\s+)`)
)

var times = map[string]bool{
	"DAY": true, "NIGHT": true, "DAWN": true, "DUSK": true, "CONTINUOUS": true,
	"MORNING": true, "EVENING": true, "LATER": true, "AFTERNOON": true, "SUNSET": true,
}

// ParseScenes は LLM が書いた台本テキストからシーンを読み取るのだ。
// 最初のシーン見出しより前の文章は捨てるのだ。Index と Act は呼び出し側が付けるのだ。
func ParseScenes(text string) []domain.Scene {
	lines := strings.Split(text, "\n")
	var (
		scenes  []domain.Scene
		current *domain.Scene
		cue     string
		pending *domain.DialogueLine
	)

	flush := func() {
		if current != nil && pending != nil && strings.TrimSpace(pending.Line) != "" {
			pending.Line = strings.TrimSpace(pending.Line)
			current.Dialogue = append(current.Dialogue, *pending)
		}
		pending = nil
	}

	for i, raw := range lines {
		line := cleanLine(raw)
		if line == "" {
			flush()
			cue = ""
			continue
		}
		if strings.HasPrefix(line, "```") || isTransition(line) || sceneLabelRe.MatchString(line) {
			continue
		}

		if slug, ok := ParseSlugline(line); ok {
			flush()
			cue = ""
			scenes = append(scenes, domain.Scene{Slugline: slug})
			current = &scenes[len(scenes)-1]
			continue
		}
		if current == nil {
			continue
		}

		if cue != "" {
			if name, ok := cueName(line); ok && pending != nil && strings.TrimSpace(pending.Line) != "" && hasFollowingLine(lines, i) {
				flush()
				cue = name
				continue
			}
			if isParenthetical(line) {
				if pending != nil && strings.TrimSpace(pending.Line) != "" {
					flush()
				}
				pending = &domain.DialogueLine{Character: cue, Parenthetical: trimParens(line)}
				continue
			}
			if pending == nil {
				pending = &domain.DialogueLine{Character: cue}
			}
			pending.Line += " " + line
			continue
		}

		if name, ok := cueName(line); ok && hasFollowingLine(lines, i) {
			cue = name
			continue
		}
		if m := inlineCueRe.FindStringSubmatch(line); m != nil && isName(m[1]) {
			current.Dialogue = append(current.Dialogue, domain.DialogueLine{
				Character:     strings.TrimSpace(m[1]),
				Parenthetical: trimParens(strings.TrimSpace(m[2])),
				Line:          strings.TrimSpace(m[3]),
			})
			continue
		}
		current.ActionLines = append(current.ActionLines, line)
	}
	flush()
	return scenes
}

// ParseSlugline は "INT. KITCHEN – NIGHT" のような見出しを読むのだ。
func ParseSlugline(line string) (domain.Slugline, bool) {
	m := sluglineRe.FindStringSubmatch(line)
	if m == nil {
		return domain.Slugline{}, false
	}
	slug := domain.Slugline{Setting: normalizeSetting(m[1])}
	rest := strings.TrimSpace(m[2])

	if seps := separatorRe.FindAllStringIndex(rest, -1); len(seps) > 0 {
		last := seps[len(seps)-1]
		suffix := strings.ToUpper(strings.TrimSpace(rest[last[1]:]))
		if fields := strings.Fields(suffix); len(fields) > 0 && times[strings.Trim(fields[0], ".,")] {
			slug.Time = strings.TrimRight(suffix, ".")
			rest = rest[:last[0]]
		}
	}
	slug.Location = strings.ToUpper(strings.TrimSpace(rest))
	if slug.Location == "" {
		return domain.Slugline{}, false
	}
	return slug, true
}

func normalizeSetting(s string) string {
	switch strings.ToUpper(strings.TrimRight(s, ".")) {
	case "INT":
		return "INT."
	case "EXT":
		return "EXT."
	default:
		return "INT./EXT."
	}
}

// cleanLine は Markdown の強調記号と見出し番号を取り除くのだ。
func cleanLine(raw string) string {
	line := strings.TrimSpace(raw)
	if strings.HasPrefix(line, "```") {
		return line
	}
	line = strings.ReplaceAll(line, "**", "")
	line = strings.ReplaceAll(line, "__", "")
	line = strings.TrimSpace(strings.Trim(line, "*_"))
	if leadNumRe.MatchString(line) {
		if stripped := leadNumRe.ReplaceAllString(line, ""); sluglineRe.MatchString(stripped) || strings.HasPrefix(line, "#") {
			line = stripped
		}
	}
	return strings.TrimSpace(line)
}

func isTransition(line string) bool {
	if line != strings.ToUpper(line) {
		return false
	}
	switch {
	case strings.HasSuffix(line, "TO:"),
		strings.HasPrefix(line, "FADE IN"),
		strings.HasPrefix(line, "FADE OUT"),
		line == "THE END",
		line == "END OF ACT",
		strings.HasPrefix(line, "(CONTINUED"):
		return true
	}
	return false
}

func isParenthetical(line string) bool {
	return strings.HasPrefix(line, "(") && strings.HasSuffix(line, ")")
}

func trimParens(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "("), ")"))
}

// cueName は "MARA (V.O.)" のような話者行から拡張を除いた名前を返すのだ。
func cueName(line string) (string, bool) {
	name := strings.TrimSpace(extensionRe.ReplaceAllString(line, ""))
	if !isName(name) {
		return "", false
	}
	return name, true
}

// isName は4語以内、30文字未満の大文字の名前かどうかなのだ。
func isName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) >= 30 || len(strings.Fields(s)) > 4 {
		return false
	}
	if strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, ":") || strings.HasSuffix(s, ".") {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func hasFollowingLine(lines []string, i int) bool {
	if i+1 >= len(lines) {
		return false
	}
	next := cleanLine(lines[i+1])
	if next == "" {
		return false
	}
	_, slug := ParseSlugline(next)
	return !slug
}
