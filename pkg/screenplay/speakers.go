package screenplay

import (
	"log/slog"
	"strings"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

// resolveSpeakers は話者名を登場人物の名前に揃えるのだ。
// 見つからない話者は端役として登場人物に加えるので、台詞は捨てないのだ。
func resolveSpeakers(scenes []domain.Scene, roster domain.Roster) domain.Roster {
	for i := range scenes {
		for j := range scenes[i].Dialogue {
			line := &scenes[i].Dialogue[j]
			if c, ok := ResolveSpeaker(line.Character, roster); ok {
				line.Character = c.Name
				continue
			}
			minor := domain.Character{
				Name:        titleCase(line.Character),
				Role:        domain.RoleSupporting,
				Description: "Minor character who appears in dialogue",
				Minor:       true,
			}
			roster = append(roster, minor)
			line.Character = minor.Name
			slog.Debug("台詞の話者を端役として加えたのだ", "name", minor.Name, "scene", scenes[i].Index)
		}
	}
	return roster
}

// ResolveSpeaker は話者名をフルネーム、名、姓の順で登場人物に照合するのだ。大文字小文字は区別しないのだ。
func ResolveSpeaker(cue string, roster domain.Roster) (domain.Character, bool) {
	key := strings.ToLower(strings.TrimSpace(cue))
	if key == "" {
		return domain.Character{}, false
	}
	if c, ok := roster.Find(key); ok {
		return c, true
	}
	for _, c := range roster {
		if strings.Contains(" "+key+" ", " "+strings.ToLower(c.Name)+" ") {
			return c, true
		}
	}
	for _, part := range []func([]string) string{first, last} {
		for _, c := range roster {
			fields := strings.Fields(strings.ToLower(c.Name))
			if len(fields) > 1 && part(fields) == key {
				return c, true
			}
		}
	}
	return domain.Character{}, false
}

func first(fields []string) string { return fields[0] }
func last(fields []string) string  { return fields[len(fields)-1] }

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
