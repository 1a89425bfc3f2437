package story

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

type field int

const (
	fieldNone field = iota
	fieldTitle
	fieldLogline
	fieldTheme
	fieldConflict
	fieldProtagonist
	fieldAntagonist
	fieldSetting
	sectionPlotPoints
	sectionActs
)

// labels は行頭のラベルと項目の対応なのだ。長いものから順に照合するのだ。
var labels = []struct {
	prefix string
	field  field
}{
	{"key plot points", sectionPlotPoints},
	{"plot points", sectionPlotPoints},
	{"suggested acts", sectionActs},
	{"suggested act structure", sectionActs},
	{"central conflict", fieldConflict},
	{"main theme", fieldTheme},
	{"protagonist", fieldProtagonist},
	{"antagonist", fieldAntagonist},
	{"conflict", fieldConflict},
	{"logline", fieldLogline},
	{"setting", fieldSetting},
	{"theme", fieldTheme},
	{"title", fieldTitle},
}

var (
	listItemRe   = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(.+)$`)
	leadingNumRe = regexp.MustCompile(`^\s*(?:#+\s*)?(?:\d+[.)]\s*)?`)
	actPrefixRe  = regexp.MustCompile(`(?i)^act\s+(?:\d+|[ivx]+)\s*[:.\-–—]?\s*`)
)

// ParseOutline は LLM の分析結果を寛容に読み取って StoryOutline にするのだ。
// Main Theme、Conflict、Protagonist のいずれかが欠けていれば ParseError を返すのだ。
func ParseOutline(text, premise string, genre domain.Genre, structure domain.ActStructure) (domain.StoryOutline, error) {
	outline := domain.StoryOutline{
		Premise:      premise,
		Genre:        genre,
		ActStructure: structure,
	}
	var actItems []string

	current := fieldNone
	for _, raw := range strings.Split(text, "\n") {
		line := cleanLine(raw)
		if line == "" {
			continue
		}

		if f, value, ok := matchLabel(line); ok {
			current = f
			if value != "" {
				assign(&outline, &actItems, f, value)
			}
			continue
		}

		switch current {
		case sectionPlotPoints, sectionActs:
			if m := listItemRe.FindStringSubmatch(raw); m != nil {
				assign(&outline, &actItems, current, stripEmphasis(m[1]))
			}
		case fieldNone:
		default:
			// ラベルの次の行に値が来る書き方もあるのだ
			if fieldValue(&outline, current) == "" {
				assign(&outline, &actItems, current, line)
			}
		}
	}

	var missing []string
	if outline.Theme == "" {
		missing = append(missing, "Main Theme")
	}
	if outline.Conflict == "" {
		missing = append(missing, "Conflict")
	}
	if outline.Protagonist == "" {
		missing = append(missing, "Protagonist")
	}
	if len(missing) > 0 {
		return outline, apperr.Parse(fmt.Sprintf("story analysis is missing %s", strings.Join(missing, ", ")), nil)
	}

	outline.Acts = buildActs(structure, actItems, outline.PlotPoints, premise)
	return outline, nil
}

// cleanLine は見出し記号や強調記号を取り除くのだ。
func cleanLine(raw string) string {
	line := strings.TrimSpace(raw)
	if strings.HasPrefix(line, "```") {
		return ""
	}
	return stripEmphasis(line)
}

func stripEmphasis(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.TrimSpace(s)
}

// matchLabel は "Main Theme: ..." や "1. Conflict - ..." の形を認識するのだ。
func matchLabel(line string) (field, string, bool) {
	body := leadingNumRe.ReplaceAllString(line, "")
	lower := strings.ToLower(body)
	for _, l := range labels {
		if !strings.HasPrefix(lower, l.prefix) {
			continue
		}
		rest := strings.TrimSpace(body[len(l.prefix):])
		switch {
		case rest == "":
			if l.field == sectionPlotPoints || l.field == sectionActs {
				return l.field, "", true
			}
		case strings.HasPrefix(rest, ":"):
			return l.field, strings.TrimSpace(rest[1:]), true
		}
	}
	return fieldNone, "", false
}

func assign(o *domain.StoryOutline, actItems *[]string, f field, value string) {
	switch f {
	case fieldTitle:
		o.Title = strings.Trim(value, `"'`)
	case fieldLogline:
		o.Logline = value
	case fieldTheme:
		o.Theme = value
	case fieldConflict:
		o.Conflict = value
	case fieldProtagonist:
		o.Protagonist = value
	case fieldAntagonist:
		o.Antagonist = value
	case fieldSetting:
		o.Setting = value
	case sectionPlotPoints:
		o.PlotPoints = append(o.PlotPoints, value)
	case sectionActs:
		*actItems = append(*actItems, value)
	}
}

func fieldValue(o *domain.StoryOutline, f field) string {
	switch f {
	case fieldTitle:
		return o.Title
	case fieldLogline:
		return o.Logline
	case fieldTheme:
		return o.Theme
	case fieldConflict:
		return o.Conflict
	case fieldProtagonist:
		return o.Protagonist
	case fieldAntagonist:
		return o.Antagonist
	case fieldSetting:
		return o.Setting
	}
	return ""
}

// buildActs はビート名で一致した要約を優先し、残りは出現順に割り当てるのだ。
func buildActs(structure domain.ActStructure, items, plotPoints []string, premise string) []domain.Act {
	beats := structure.Beats()
	acts := make([]domain.Act, len(beats))
	used := make([]bool, len(items))

	for i, beat := range beats {
		acts[i].Title = beat
		for j, item := range items {
			if used[j] {
				continue
			}
			if summary, ok := matchBeat(item, beat); ok {
				acts[i].Summary = summary
				used[j] = true
				break
			}
		}
	}

	var rest []string
	for j, item := range items {
		if !used[j] {
			rest = append(rest, actPrefixRe.ReplaceAllString(item, ""))
		}
	}
	for i := range acts {
		if acts[i].Summary != "" {
			continue
		}
		switch {
		case len(rest) > 0:
			acts[i].Summary = rest[0]
			rest = rest[1:]
		case i < len(plotPoints):
			acts[i].Summary = plotPoints[i]
		default:
			acts[i].Summary = beatSummary(acts[i].Title, premise)
		}
	}

	distributePlotPoints(acts, plotPoints)
	return acts
}

// matchBeat は "Act 1: Setup - ..." や "Setup: ..." からビート名以降の要約を取り出すのだ。
func matchBeat(item, beat string) (string, bool) {
	body := actPrefixRe.ReplaceAllString(item, "")
	if !strings.HasPrefix(strings.ToLower(body), strings.ToLower(beat)) {
		return "", false
	}
	summary := strings.TrimLeft(body[len(beat):], " :-–—.")
	if summary == "" {
		summary = beat
	}
	return summary, true
}

// distributePlotPoints は筋書きの要点を幕の数で均等に分けるのだ。
func distributePlotPoints(acts []domain.Act, plotPoints []string) {
	if len(acts) == 0 || len(plotPoints) == 0 {
		return
	}
	for i, p := range plotPoints {
		idx := i * len(acts) / len(plotPoints)
		acts[idx].PlotPoints = append(acts[idx].PlotPoints, p)
	}
}
