package character

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

var (
	fenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	digitsRe = regexp.MustCompile(`\d+`)
	labelRe  = regexp.MustCompile(`^([A-Za-z][A-Za-z ]{1,30}):\s*(.*)$`)
	bulletRe = regexp.MustCompile(`^\s*(?:#+\s*|\d+[.)]\s*|[-*•]\s*)`)
)

// ParseCharacters は JSON（フェンス付き、配列、{"characters": [...]}）を優先して読み、
// だめならラベル付きテキスト形式として読むのだ。
func ParseCharacters(text string) []domain.Character {
	if chars, ok := parseJSON(text); ok {
		return chars
	}
	return parseLabelled(text)
}

func parseJSON(text string) ([]domain.Character, bool) {
	candidates := []string{strings.TrimSpace(text)}
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		candidates = append([]string{strings.TrimSpace(m[1])}, candidates...)
	}
	if i := strings.IndexAny(text, "[{"); i >= 0 {
		candidates = append(candidates, strings.TrimSpace(text[i:]))
	}

	for _, raw := range candidates {
		items, ok := decodeItems(raw)
		if !ok {
			continue
		}
		var chars []domain.Character
		for _, item := range items {
			if c, ok := fromFields(item); ok {
				chars = append(chars, c)
			}
		}
		return chars, true
	}
	return nil, false
}

// decodeItems は配列か、characters を持つオブジェクトか、1人分のオブジェクトを受け付けるのだ。
func decodeItems(raw string) ([]map[string]json.RawMessage, bool) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		return items, true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, false
	}
	for k, v := range obj {
		if normalizeKey(k) == "characters" {
			if err := json.Unmarshal(v, &items); err == nil {
				return items, true
			}
		}
	}
	if _, ok := obj["name"]; ok {
		return []map[string]json.RawMessage{obj}, true
	}
	return nil, false
}

func fromFields(item map[string]json.RawMessage) (domain.Character, bool) {
	fields := make(map[string]string, len(item))
	var traits []string
	for k, v := range item {
		key := canonicalKey(k)
		if key == "traits" {
			traits = decodeList(v)
			continue
		}
		fields[key] = decodeString(v)
	}
	c := build(fields)
	c.Traits = traits
	return c, c.Name != ""
}

func decodeString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.Trim(strings.TrimSpace(string(v)), `"`)
}

func decodeList(v json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(v, &list); err == nil {
		return cleanList(list)
	}
	return splitList(decodeString(v))
}

// parseLabelled は "Name: ..." で始まるブロックごとに1人分を読むのだ。
func parseLabelled(text string) []domain.Character {
	var (
		blocks  []map[string]string
		current map[string]string
		lastKey string
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.ReplaceAll(raw, "**", ""))
		if line == "" {
			lastKey = ""
			continue
		}
		line = bulletRe.ReplaceAllString(line, "")

		if m := labelRe.FindStringSubmatch(line); m != nil {
			key := canonicalKey(m[1])
			if key != "" {
				if key == "name" {
					current = map[string]string{}
					blocks = append(blocks, current)
				}
				if current != nil {
					current[key] = strings.TrimSpace(m[2])
					lastKey = key
				}
				continue
			}
		}
		// 複数行にまたがる説明は直前の項目に足すのだ
		if current != nil && lastKey != "" && lastKey != "name" && lastKey != "age" && lastKey != "role" {
			current[lastKey] = strings.TrimSpace(current[lastKey] + " " + line)
		}
	}

	var chars []domain.Character
	for _, fields := range blocks {
		c := build(fields)
		c.Traits = splitList(fields["traits"])
		if c.Name != "" {
			chars = append(chars, c)
		}
	}
	return chars
}

func build(fields map[string]string) domain.Character {
	return domain.Character{
		Name:              strings.Trim(fields["name"], ` "'`),
		Age:               parseAge(fields["age"]),
		Role:              domain.ParseRole(fields["role"]),
		Description:       fields["description"],
		Motivation:        fields["motivation"],
		Arc:               fields["arc"],
		VisualDescription: fields["visual"],
	}
}

// canonicalKey は表記揺れのあるキーを統一するのだ。知らないキーは空文字なのだ。
func canonicalKey(k string) string {
	switch normalizeKey(k) {
	case "name", "fullname", "charactername", "character":
		return "name"
	case "age":
		return "age"
	case "role":
		return "role"
	case "description", "summary", "bio":
		return "description"
	case "traits", "personalitytraits", "personality":
		return "traits"
	case "visualdescription", "visual", "appearance", "look":
		return "visual"
	case "motivation", "goal":
		return "motivation"
	case "arc", "characterarc":
		return "arc"
	}
	return ""
}

func parseAge(s string) int {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return cleanList(strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '/' }))
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		item = strings.Trim(strings.TrimSpace(item), ".")
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func normalizeKey(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
