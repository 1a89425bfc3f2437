package domain

import (
	"fmt"
	"strings"

	"github.com/shouni/go-frameflow-kit/pkg/apperr"
)

const (
	DefaultAuthor = "FrameFlow"
	DefaultDraft  = "First Draft"

	cueIndent           = 20
	parentheticalIndent = 15
	dialogueIndent      = 10
	actionWidth         = 60
	dialogueWidth       = 35
)

// Slugline はシーン見出し（INT./EXT. 場所 – 時間帯）なのだ。
type Slugline struct {
	Setting  string `json:"setting"`  // INT. / EXT. / INT./EXT.
	Location string `json:"location"` // 大文字で保持するのだ
	Time     string `json:"time"`     // DAY, NIGHT など
}

func (s Slugline) String() string {
	setting := s.Setting
	if setting == "" {
		setting = "INT."
	}
	location := s.Location
	if location == "" {
		location = "UNKNOWN LOCATION"
	}
	if s.Time == "" {
		return fmt.Sprintf("%s %s", setting, location)
	}
	return fmt.Sprintf("%s %s – %s", setting, location, s.Time)
}

// DialogueLine は話者名と台詞の組なのだ。
type DialogueLine struct {
	Character     string `json:"character"`
	Parenthetical string `json:"parenthetical,omitempty"`
	Line          string `json:"line"`
}

// Scene は脚本の1シーンなのだ。
type Scene struct {
	Index                 int            `json:"index"`
	Act                   int            `json:"act"`
	Slugline              Slugline       `json:"slugline"`
	ActionLines           []string       `json:"action_lines"`
	Dialogue              []DialogueLine `json:"dialogue"`
	VisualImportanceScore float64        `json:"visual_importance_score"`
	Fallback              bool           `json:"fallback,omitempty"`
}

// Speakers は台詞に登場する話者を登場順に重複なしで返すのだ。
func (s Scene) Speakers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range s.Dialogue {
		key := strings.ToLower(d.Character)
		if d.Character == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d.Character)
	}
	return out
}

// Action はト書きを1つの段落として返すのだ。
func (s Scene) Action() string {
	return strings.Join(s.ActionLines, " ")
}

// Content はシーン全体の平文なのだ。キーワード判定などに使うのだ。
func (s Scene) Content() string {
	var sb strings.Builder
	sb.WriteString(s.Slugline.String())
	sb.WriteString("\n")
	for _, a := range s.ActionLines {
		sb.WriteString(a)
		sb.WriteString("\n")
	}
	for _, d := range s.Dialogue {
		sb.WriteString(strings.ToUpper(d.Character))
		sb.WriteString("\n")
		if d.Parenthetical != "" {
			sb.WriteString("(" + d.Parenthetical + ")\n")
		}
		sb.WriteString(d.Line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormattedText は業界標準のインデントで整形したシーン本文なのだ。
func (s Scene) FormattedText() string {
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(s.Slugline.String()))
	sb.WriteString("\n\n")
	for _, a := range s.ActionLines {
		for _, line := range Wrap(a, actionWidth) {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	for _, d := range s.Dialogue {
		sb.WriteString(strings.Repeat(" ", cueIndent))
		sb.WriteString(strings.ToUpper(d.Character))
		sb.WriteString("\n")
		if d.Parenthetical != "" {
			sb.WriteString(strings.Repeat(" ", parentheticalIndent))
			sb.WriteString("(" + d.Parenthetical + ")\n")
		}
		for _, line := range Wrap(d.Line, dialogueWidth) {
			sb.WriteString(strings.Repeat(" ", dialogueIndent))
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Screenplay は1回の実行が所有する脚本全体なのだ。
type Screenplay struct {
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Draft      string  `json:"draft"`
	Genre      Genre   `json:"genre"`
	Logline    string  `json:"logline"`
	Characters Roster  `json:"characters"`
	Scenes     []Scene `json:"scenes"`
}

// Text は全シーンを連結した書き出し用の台本テキストなのだ。
func (sp Screenplay) Text() string {
	var sb strings.Builder
	sb.WriteString("FADE IN:\n\n")
	for _, s := range sp.Scenes {
		sb.WriteString(s.FormattedText())
	}
	sb.WriteString(strings.Repeat(" ", 50))
	sb.WriteString("FADE OUT.\n")
	return sb.String()
}

// SceneByIndex はインデックスからシーンを引くのだ。
func (sp Screenplay) SceneByIndex(idx int) (Scene, bool) {
	if idx >= 0 && idx < len(sp.Scenes) && sp.Scenes[idx].Index == idx {
		return sp.Scenes[idx], true
	}
	for _, s := range sp.Scenes {
		if s.Index == idx {
			return s, true
		}
	}
	return Scene{}, false
}

// Validate はシーン番号の連続性と話者の存在を確認するのだ。
func (sp Screenplay) Validate() error {
	for i, s := range sp.Scenes {
		if s.Index != i {
			return apperr.Validationf("scene %d has index %d, indices must be contiguous from 0", i, s.Index)
		}
		for _, d := range s.Dialogue {
			if _, ok := sp.Characters.Find(d.Character); !ok {
				return apperr.Validationf("scene %d: speaker %q is not in the character set", i, d.Character)
			}
		}
	}
	return nil
}

// Wrap は単語境界で width 文字以内に折り返すのだ。長すぎる単語はそのまま1行にするのだ。
func Wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		if len([]rune(current))+1+len([]rune(w)) > width {
			lines = append(lines, current)
			current = w
			continue
		}
		current += " " + w
	}
	return append(lines, current)
}
