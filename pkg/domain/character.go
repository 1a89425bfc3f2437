package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// Character は脚本に登場する人物の定義を保持します。
type Character struct {
	Name              string    `json:"name"`
	Age               int       `json:"age,omitempty"`
	Role              Role      `json:"role"`
	Description       string    `json:"description,omitempty"`
	Traits            []string  `json:"traits,omitempty"`
	Motivation        string    `json:"motivation"`
	Arc               string    `json:"arc,omitempty"`
	VisualDescription string    `json:"visual_description"` // 画像生成プロンプトに注入する外見上の特徴
	Embedding         []float64 `json:"embedding,omitempty"` // 一貫性チェック用。埋め込みサービスがなければ空なのだ
	Minor             bool      `json:"minor,omitempty"`     // 台詞だけに登場した端役なら true
}

// String はキャラクターの情報を文字列で返すのだ。
func (c Character) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Role)
}

// Seed は名前から決定論的な画像シードを返すのだ。
func (c Character) Seed() int64 {
	return int64(GetSeedFromName(c.Name))
}

// Cue は台本に書く話者名（大文字）なのだ。
func (c Character) Cue() string {
	return strings.ToUpper(c.Name)
}

// GetSeedFromName は名前から決定論的なシード値を生成します。
func GetSeedFromName(name string) int32 {
	hash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name))))
	seed := int32(binary.BigEndian.Uint32(hash[:4]))
	// 画像APIのシード値は正の数が望ましいため、最上位ビットを落とすのだ
	return seed & 0x7FFFFFFF
}

// Roster は名前で引けるキャラクター一覧なのだ。順序は作成順のまま保つのだ。
type Roster []Character

// Find は大文字小文字を無視して名前が一致するキャラクターを返すのだ。
func (r Roster) Find(name string) (Character, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, c := range r {
		if strings.ToLower(c.Name) == key {
			return c, true
		}
	}
	return Character{}, false
}

// Names は名前の一覧を返すのだ。
func (r Roster) Names() []string {
	names := make([]string, len(r))
	for i, c := range r {
		names[i] = c.Name
	}
	return names
}

// Protagonist は最初の主人公を返すのだ。いなければ先頭なのだ。
func (r Roster) Protagonist() (Character, bool) {
	for _, c := range r {
		if c.Role == RoleProtagonist {
			return c, true
		}
	}
	if len(r) > 0 {
		return r[0], true
	}
	return Character{}, false
}

// UniqueName は既存の名前と重ならないように " (2)" などの接尾辞を付けるのだ。
func UniqueName(name string, taken map[string]bool) string {
	base := strings.TrimSpace(name)
	if base == "" {
		base = "Unnamed"
	}
	candidate := base
	for n := 2; taken[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s (%d)", base, n)
	}
	taken[strings.ToLower(candidate)] = true
	return candidate
}
