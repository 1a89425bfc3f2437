package domain

import (
	"testing"
)

func TestGetSeedFromName(t *testing.T) {
	t.Run("同じ名前なら同じシードになるのだ", func(t *testing.T) {
		seed1 := GetSeedFromName("Alex Morgan")
		seed2 := GetSeedFromName("  alex morgan ")
		if seed1 != seed2 {
			t.Errorf("正規化後の名前が同じなのにシードが違うのだ: %d != %d", seed1, seed2)
		}
	})

	t.Run("シードは常に正の値なのだ", func(t *testing.T) {
		for _, name := range []string{"Alex", "Jordan Chen", "DR. SARAH CHEN", ""} {
			if seed := GetSeedFromName(name); seed < 0 {
				t.Errorf("%q のシードが負なのだ: %d", name, seed)
			}
		}
	})
}

func TestCharacter_String(t *testing.T) {
	c := Character{Name: "Alex Morgan", Role: RoleProtagonist}
	expected := "Alex Morgan (protagonist)"
	if c.String() != expected {
		t.Errorf("期待値 '%s', 実際の値 '%s'", expected, c.String())
	}
	if c.Cue() != "ALEX MORGAN" {
		t.Errorf("話者名が大文字になっていないのだ: %s", c.Cue())
	}
}

func TestRoster(t *testing.T) {
	roster := Roster{
		{Name: "Riley Davis", Role: RoleSupporting},
		{Name: "Alex Morgan", Role: RoleProtagonist},
	}

	if c, ok := roster.Find("alex MORGAN"); !ok || c.Name != "Alex Morgan" {
		t.Errorf("大文字小文字を無視して見つけられないのだ: %+v", c)
	}
	if _, ok := roster.Find("Nobody"); ok {
		t.Error("存在しない名前が見つかったのだ")
	}
	if p, _ := roster.Protagonist(); p.Name != "Alex Morgan" {
		t.Errorf("主人公の解決が違うのだ: %s", p.Name)
	}
}

func TestUniqueName(t *testing.T) {
	taken := map[string]bool{}
	names := []string{
		UniqueName("Alex", taken),
		UniqueName("alex", taken),
		UniqueName("Alex", taken),
		UniqueName("", taken),
	}
	expected := []string{"Alex", "alex (2)", "Alex (3)", "Unnamed"}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("%d番目: 期待値 %q, 実際の値 %q", i, expected[i], names[i])
		}
	}
}
