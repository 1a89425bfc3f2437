package prompt

import "github.com/shouni/go-frameflow-kit/pkg/domain"

// GenreProfile はジャンルごとの執筆上の傾向なのだ。
type GenreProfile struct {
	Guidance string
	Setting  string // 解析に失敗したときの既定の舞台
	Tone     string
}

var genreProfiles = map[domain.Genre]GenreProfile{
	domain.GenreDrama: {
		Guidance: "Grounded characters, emotional honesty and consequences that matter.",
		Setting:  "Realistic contemporary setting",
		Tone:     "dramatic",
	},
	domain.GenreComedy: {
		Guidance: "Escalating situations, comic timing and characters whose flaws drive the laughs.",
		Setting:  "Everyday relatable setting",
		Tone:     "lighthearted",
	},
	domain.GenreThriller: {
		Guidance: "Rising tension, ticking clocks, reversals and a protagonist under pressure.",
		Setting:  "Contemporary urban environment",
		Tone:     "tense",
	},
	domain.GenreSciFi: {
		Guidance: "A clear speculative premise with rules, explored through its human cost.",
		Setting:  "Futuristic or alternate reality setting",
		Tone:     "contemplative",
	},
	domain.GenreHorror: {
		Guidance: "Dread over gore, isolation, the unseen and a threat that escalates.",
		Setting:  "Isolated or eerie location",
		Tone:     "dark",
	},
	domain.GenreRomance: {
		Guidance: "Chemistry, obstacles between the leads and an emotionally earned ending.",
		Setting:  "Intimate contemporary setting",
		Tone:     "emotional",
	},
	domain.GenreAction: {
		Guidance: "Kinetic set pieces, clear geography and stakes that rise with every sequence.",
		Setting:  "Dynamic, multiple locations",
		Tone:     "intense",
	},
	domain.GenreMystery: {
		Guidance: "Fair-play clues, red herrings and a reveal that recontextualizes the story.",
		Setting:  "Atmospheric location with secrets",
		Tone:     "mysterious",
	},
}

// ProfileFor はジャンルの傾向を返すのだ。未知のジャンルはドラマ扱いなのだ。
func ProfileFor(g domain.Genre) GenreProfile {
	if p, ok := genreProfiles[g]; ok {
		return p
	}
	return genreProfiles[domain.GenreDrama]
}

// GenreGuidance はテンプレートに埋め込むジャンル別の指示なのだ。
func GenreGuidance(g domain.Genre) string {
	return ProfileFor(g).Guidance
}
