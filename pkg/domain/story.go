package domain

// Act は物語の1幕分の計画なのだ。
type Act struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	PlotPoints []string `json:"plot_points,omitempty"`
	SceneRefs  []int    `json:"scene_refs"` // この幕に計画されたシーン枠（通し番号、0始まり）
}

// StoryOutline は分析ステージが作る物語の骨組みなのだ。一度作ったら書き換えないのだ。
type StoryOutline struct {
	Premise      string       `json:"premise"`
	Genre        Genre        `json:"genre"`
	ActStructure ActStructure `json:"act_structure"`
	Title        string       `json:"title"`
	Logline      string       `json:"logline"`
	Theme        string       `json:"theme"`
	Conflict     string       `json:"conflict"`
	Protagonist  string       `json:"protagonist"`
	Antagonist   string       `json:"antagonist"`
	Setting      string       `json:"setting"`
	PlotPoints   []string     `json:"plot_points,omitempty"`
	Acts         []Act        `json:"acts"`
	Fallback     bool         `json:"fallback,omitempty"` // 解析に失敗して既定の骨組みを使った場合に true
}

// PlannedScenes は全幕の計画シーン数の合計なのだ。
func (o StoryOutline) PlannedScenes() int {
	n := 0
	for _, a := range o.Acts {
		n += len(a.SceneRefs)
	}
	return n
}

// AssignSceneRefs は各幕に perAct 個ずつ連続したシーン枠を割り当てるのだ。
func AssignSceneRefs(acts []Act, perAct int) []Act {
	if perAct < 1 {
		perAct = 1
	}
	out := make([]Act, len(acts))
	next := 0
	for i, a := range acts {
		a.SceneRefs = make([]int, perAct)
		for j := range a.SceneRefs {
			a.SceneRefs[j] = next
			next++
		}
		out[i] = a
	}
	return out
}
