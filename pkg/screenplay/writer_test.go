package screenplay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

const sampleAct = `Here are the scenes for this act.

1. INT. POLICE PRECINCT – NIGHT

Rain streaks the windows. MARA QUINN (36) pores over crime scene photos.

MARA
(without looking up)
You were at the river last night.

ELI (V.O.)
Everyone was at the river.

CUT TO:

**EXT. ROOFTOP - DAWN**

Mara watches the city wake. A lighter flickers in the shadow.
OFFICER DAVIS: Detective, you need to see this.
`

func TestParseScenes(t *testing.T) {
	scenes := ParseScenes(sampleAct)
	if len(scenes) != 2 {
		t.Fatalf("2シーン読めるはずなのだ: %d", len(scenes))
	}

	first := scenes[0]
	if first.Slugline.String() != "INT. POLICE PRECINCT – NIGHT" {
		t.Errorf("見出しが違うのだ: %q", first.Slugline.String())
	}
	if len(first.ActionLines) != 1 || !strings.HasPrefix(first.ActionLines[0], "Rain streaks") {
		t.Errorf("ト書きが違うのだ: %v", first.ActionLines)
	}
	if len(first.Dialogue) != 2 {
		t.Fatalf("台詞が2つではないのだ: %+v", first.Dialogue)
	}
	if first.Dialogue[0].Character != "MARA" || first.Dialogue[0].Parenthetical != "without looking up" {
		t.Errorf("話者か括弧書きが違うのだ: %+v", first.Dialogue[0])
	}
	if first.Dialogue[1].Character != "ELI" {
		t.Errorf("(V.O.) が取り除かれていないのだ: %q", first.Dialogue[1].Character)
	}

	second := scenes[1]
	if second.Slugline.Setting != "EXT." || second.Slugline.Time != "DAWN" {
		t.Errorf("強調付きの見出しが読めていないのだ: %+v", second.Slugline)
	}
	if len(second.Dialogue) != 1 || second.Dialogue[0].Character != "OFFICER DAVIS" {
		t.Errorf("行内の話者が読めていないのだ: %+v", second.Dialogue)
	}
}

func TestParseSlugline(t *testing.T) {
	cases := []struct {
		in                     string
		setting, location, tod string
	}{
		{"INT. KITCHEN - NIGHT", "INT.", "KITCHEN", "NIGHT"},
		{"ext. harbor — dusk", "EXT.", "HARBOR", "DUSK"},
		{"INT./EXT. CAR - MOVING - DAY", "INT./EXT.", "CAR - MOVING", "DAY"},
		{"I/E SUBWAY CAR – CONTINUOUS", "INT./EXT.", "SUBWAY CAR", "CONTINUOUS"},
		{"INT. SEVEN-ELEVEN", "INT.", "SEVEN-ELEVEN", ""},
	}
	for _, c := range cases {
		got, ok := ParseSlugline(c.in)
		if !ok {
			t.Errorf("%q を見出しと認識できないのだ", c.in)
			continue
		}
		if got.Setting != c.setting || got.Location != c.location || got.Time != c.tod {
			t.Errorf("%q: 期待値 %s|%s|%s, 実際の値 %+v", c.in, c.setting, c.location, c.tod, got)
		}
	}
	if _, ok := ParseSlugline("Interior design matters."); ok {
		t.Error("普通の文を見出しと誤認しているのだ")
	}
}

// actLLM は依頼に含まれる幕番号ごとに返答を変える偽物なのだ。
type actLLM struct {
	mu       sync.Mutex
	replies  map[string]string
	err      error
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *actLLM) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, reply := range f.replies {
		if strings.Contains(req.User, key) {
			return reply, nil
		}
	}
	return "no screenplay here", nil
}

func testOutline(structure domain.ActStructure) domain.StoryOutline {
	beats := structure.Beats()
	acts := make([]domain.Act, len(beats))
	for i, b := range beats {
		acts[i] = domain.Act{Title: b, Summary: b + " summary"}
	}
	return domain.StoryOutline{
		Premise:      "A detective discovers her partner is the killer",
		Genre:        domain.GenreThriller,
		ActStructure: structure,
		Title:        "Partners in Blood",
		Setting:      "Chicago, present day",
		Acts:         domain.AssignSceneRefs(acts, structure.ScenesPerAct()),
	}
}

var roster = []domain.Character{
	{Name: "Mara Quinn", Role: domain.RoleProtagonist},
	{Name: "Eli Voss", Role: domain.RoleAntagonist},
}

func TestWriter_Write(t *testing.T) {
	t.Run("幕順に連結して番号を振り直すのだ", func(t *testing.T) {
		llm := &actLLM{replies: map[string]string{
			"Act 1 of 5": "INT. PRECINCT - DAY\nMara reads.\n\nINT. MORGUE - NIGHT\nThe body.",
			"Act 2 of 5": "EXT. RIVER - DAWN\nFog.",
			"Act 3 of 5": "EXT. ROOFTOP - NIGHT\nWind.",
			"Act 4 of 5": "INT. CAR - NIGHT\nSilence.",
			"Act 5 of 5": "EXT. CEMETERY - DAY\nMARA\nIt's over.",
		}}
		sp, err := NewWriter(llm, WithConcurrency(2)).Write(context.Background(), testOutline(domain.FiveAct), roster, domain.DialogueMinimal)
		if err != nil {
			t.Fatalf("執筆に失敗したのだ: %v", err)
		}
		if len(sp.Scenes) != 6 {
			t.Fatalf("6シーンのはずなのだ: %d", len(sp.Scenes))
		}
		wantLoc := []string{"PRECINCT", "MORGUE", "RIVER", "ROOFTOP", "CAR", "CEMETERY"}
		for i, s := range sp.Scenes {
			if s.Index != i || s.Slugline.Location != wantLoc[i] {
				t.Errorf("シーン%d の順序か番号が違うのだ: %d %s", i, s.Index, s.Slugline.Location)
			}
		}
		if sp.Scenes[5].Act != 5 || sp.Scenes[5].Dialogue[0].Character != "Mara Quinn" {
			t.Errorf("名だけの話者が解決されていないのだ: %+v", sp.Scenes[5])
		}
		if peak := llm.peak.Load(); peak > 2 {
			t.Errorf("同時実行数の上限を超えているのだ: %d", peak)
		}
		if sp.Author != domain.DefaultAuthor || sp.Title != "Partners in Blood" {
			t.Errorf("表紙情報が違うのだ: %+v", sp)
		}
	})

	t.Run("読み取れない幕は代わりのシーンになるのだ", func(t *testing.T) {
		llm := &actLLM{replies: map[string]string{
			"Act 1 of 3": "INT. PRECINCT - DAY\nMara reads.",
			"Act 3 of 3": "EXT. ROOFTOP - NIGHT\nWind.",
		}}
		sp, err := NewWriter(llm).Write(context.Background(), testOutline(domain.ThreeAct), roster, domain.DialogueRealistic)
		if err != nil {
			t.Fatalf("執筆に失敗したのだ: %v", err)
		}
		if len(sp.Scenes) != 3 || !sp.Scenes[1].Fallback {
			t.Fatalf("第2幕が代わりのシーンになっていないのだ: %+v", sp.Scenes)
		}
		if sp.Scenes[1].Slugline.Location != "CHICAGO" || sp.Scenes[1].ActionLines[0] != "Confrontation summary" {
			t.Errorf("代わりのシーンの中身が違うのだ: %+v", sp.Scenes[1])
		}
	})

	t.Run("知らない話者は端役として加えるのだ", func(t *testing.T) {
		llm := &actLLM{replies: map[string]string{
			"Act 1 of 1": "INT. PRECINCT - DAY\nOFFICER DAVIS\nDetective!\n\nDAVIS\nOver here.",
		}}
		o := testOutline(domain.ThreeAct)
		o.Acts = o.Acts[:1]
		sp, err := NewWriter(llm).Write(context.Background(), o, roster, domain.DialogueRealistic)
		if err != nil {
			t.Fatalf("執筆に失敗したのだ: %v", err)
		}
		if len(sp.Characters) != 3 {
			t.Fatalf("端役が1人だけ加わるはずなのだ: %v", sp.Characters.Names())
		}
		minor := sp.Characters[2]
		if minor.Name != "Officer Davis" || !minor.Minor || minor.Role != domain.RoleSupporting {
			t.Errorf("端役の内容が違うのだ: %+v", minor)
		}
		if err := sp.Validate(); err != nil {
			t.Errorf("話者の不変条件が崩れているのだ: %v", err)
		}
	})

	t.Run("サービス障害はそのまま返すのだ", func(t *testing.T) {
		llm := &actLLM{err: apperr.Service("down", nil)}
		_, err := NewWriter(llm).Write(context.Background(), testOutline(domain.ThreeAct), roster, domain.DialogueWitty)
		if !errors.Is(err, apperr.ErrService) {
			t.Errorf("ServiceError ではないのだ: %v", err)
		}
	})
}
