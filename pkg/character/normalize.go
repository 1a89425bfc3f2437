package character

import (
	"fmt"
	"strings"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

var (
	firstNames = []string{"Alex", "Jordan", "Morgan", "Casey", "Riley", "Taylor", "Sam", "Jamie"}
	lastNames  = []string{"Chen", "Garcia", "Smith", "Johnson", "Williams", "Martinez", "Davis", "Rodriguez"}

	builds   = []string{"Tall", "Average height", "Athletic", "Slender", "Stocky"}
	hair     = []string{"dark hair", "blonde hair", "red hair", "gray hair", "brown hair"}
	features = []string{"sharp features", "kind eyes", "strong presence", "distinctive appearance"}
)

var genreTraits = map[domain.Genre]map[domain.Role][]string{
	domain.GenreThriller: {
		domain.RoleProtagonist: {"determined", "intelligent", "cautious", "resourceful"},
		domain.RoleAntagonist:  {"cunning", "ruthless", "calculating", "mysterious"},
		domain.RoleSupporting:  {"loyal", "skeptical", "brave", "insightful"},
	},
	domain.GenreDrama: {
		domain.RoleProtagonist: {"complex", "emotional", "conflicted", "passionate"},
		domain.RoleAntagonist:  {"flawed", "stubborn", "proud", "defensive"},
		domain.RoleSupporting:  {"empathetic", "wise", "patient", "understanding"},
	},
	domain.GenreComedy: {
		domain.RoleProtagonist: {"optimistic", "awkward", "endearing", "witty"},
		domain.RoleAntagonist:  {"pompous", "oblivious", "competitive", "eccentric"},
		domain.RoleSupporting:  {"quirky", "supportive", "humorous", "lovable"},
	},
	domain.GenreSciFi: {
		domain.RoleProtagonist: {"curious", "adaptable", "logical", "visionary"},
		domain.RoleAntagonist:  {"ambitious", "cold", "technological", "powerful"},
		domain.RoleSupporting:  {"knowledgeable", "inventive", "analytical", "cautious"},
	},
	domain.GenreHorror: {
		domain.RoleProtagonist: {"brave", "traumatized", "protective", "desperate"},
		domain.RoleAntagonist:  {"terrifying", "relentless", "supernatural", "evil"},
		domain.RoleSupporting:  {"fearful", "doubtful", "vulnerable", "resilient"},
	},
	domain.GenreRomance: {
		domain.RoleProtagonist: {"guarded", "hopeful", "sincere", "stubborn"},
		domain.RoleAntagonist:  {"possessive", "charming", "jealous", "controlling"},
		domain.RoleSupporting:  {"candid", "meddling", "warm", "loyal"},
	},
	domain.GenreAction: {
		domain.RoleProtagonist: {"fearless", "disciplined", "resourceful", "haunted"},
		domain.RoleAntagonist:  {"ruthless", "strategic", "charismatic", "brutal"},
		domain.RoleSupporting:  {"reliable", "tech-savvy", "sardonic", "brave"},
	},
	domain.GenreMystery: {
		domain.RoleProtagonist: {"observant", "methodical", "curious", "persistent"},
		domain.RoleAntagonist:  {"secretive", "clever", "composed", "deceptive"},
		domain.RoleSupporting:  {"nervous", "evasive", "helpful", "suspicious"},
	},
}

var genreWardrobe = map[domain.Genre]string{
	domain.GenreThriller: "professional attire, often a leather jacket",
	domain.GenreDrama:    "casual but thoughtful clothing",
	domain.GenreComedy:   "colorful, expressive wardrobe",
	domain.GenreSciFi:    "practical, futuristic clothing",
	domain.GenreHorror:   "practical, worn clothing",
}

func traitsFor(genre domain.Genre, role domain.Role) []string {
	if t, ok := genreTraits[genre][role]; ok {
		return append([]string(nil), t...)
	}
	return []string{"complex", "interesting", "motivated"}
}

// Normalize は名前を一意にし、人数をちょうど count 人に揃えるのだ。
// 主人公が複数いれば最初の1人だけを残すのだ。
func Normalize(parsed []domain.Character, count int, outline domain.StoryOutline) []domain.Character {
	taken := make(map[string]bool)
	out := make([]domain.Character, 0, count)
	hasProtagonist, hasAntagonist := false, false

	for _, c := range parsed {
		if len(out) == count {
			break
		}
		c.Name = domain.UniqueName(c.Name, taken)
		switch c.Role {
		case domain.RoleProtagonist:
			if hasProtagonist {
				c.Role = domain.RoleSupporting
			}
			hasProtagonist = true
		case domain.RoleAntagonist:
			hasAntagonist = true
		}
		fillProfile(&c, outline.Genre, len(out))
		out = append(out, c)
	}

	offset := int(domain.GetSeedFromName(outline.Premise))
	for i := 0; len(out) < count; i++ {
		role := domain.RoleSupporting
		switch {
		case !hasProtagonist:
			role, hasProtagonist = domain.RoleProtagonist, true
		case !hasAntagonist:
			role, hasAntagonist = domain.RoleAntagonist, true
		}
		out = append(out, fallbackCharacter(outline, role, offset+i, taken))
	}
	return out
}

// fallbackCharacter は前提文から決まる順番で名前の候補を選ぶのだ。同じ前提文なら同じ顔ぶれになるのだ。
func fallbackCharacter(outline domain.StoryOutline, role domain.Role, n int, taken map[string]bool) domain.Character {
	name := fmt.Sprintf("%s %s", firstNames[n%len(firstNames)], lastNames[(n/len(firstNames)+n*3)%len(lastNames)])
	c := domain.Character{
		Name:   domain.UniqueName(name, taken),
		Role:   role,
		Traits: traitsFor(outline.Genre, role),
	}
	switch role {
	case domain.RoleProtagonist:
		c.Age = 32
		c.Description = "The determined lead at the center of the story"
		c.Motivation = firstNonEmpty(outline.Theme, "To overcome the challenge")
		c.Arc = "From doubt to confidence and understanding"
	case domain.RoleAntagonist:
		c.Age = 45
		c.Description = "The force opposing the protagonist"
		c.Motivation = "To achieve their goal at any cost"
		c.Arc = "Escalating conflict with the protagonist"
	default:
		c.Age = 30
		c.Description = "A key supporting character in the story"
		c.Motivation = "To help or hinder the protagonist"
		c.Arc = "Growth through the story"
	}
	c.VisualDescription = visualFor(outline.Genre, n)
	return c
}

func fillProfile(c *domain.Character, genre domain.Genre, n int) {
	if len(c.Traits) == 0 {
		c.Traits = traitsFor(genre, c.Role)
	}
	if strings.TrimSpace(c.VisualDescription) == "" {
		c.VisualDescription = visualFor(genre, n)
	}
	if c.Description == "" {
		c.Description = fmt.Sprintf("A %s character in the story", c.Role)
	}
}

func visualFor(genre domain.Genre, n int) string {
	if n < 0 {
		n = -n
	}
	wardrobe, ok := genreWardrobe[genre]
	if !ok {
		wardrobe = "contemporary clothing"
	}
	return fmt.Sprintf("%s, %s, %s, typically wears %s",
		builds[n%len(builds)], hair[(n+1)%len(hair)], features[(n+2)%len(features)], wardrobe)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
