package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shouni/go-frameflow-kit/internal/prompt"
	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
	"github.com/shouni/go-frameflow-kit/pkg/storyboard"
)

const detectivePremise = "a detective discovers the serial killer is his future self"

const analysisReply = `Title: Future Tense
Main Theme: You cannot outrun yourself
Conflict: The detective must stop a killer who knows his every move
Protagonist: Detective Sam Hale
Antagonist: The older Sam Hale
Setting: A rain-soaked city, present day

Suggested Acts:
1. Setup: Sam finds his own fingerprints at a fresh crime scene.
2. Confrontation: The killer leaves messages only Sam could understand.
3. Resolution: Sam faces the man he will become.
`

const charactersReply = `{"characters": [
  {"name": "Sam Hale", "role": "protagonist", "age": "41", "description": "A tired homicide detective", "visual_description": "Rumpled grey suit, stubble"},
  {"name": "Old Sam", "role": "antagonist", "age": "68", "description": "Sam, thirty years on", "visual_description": "White beard, long black coat"},
  {"name": "Rita Cole", "role": "supporting", "age": "35", "description": "Forensics lead", "visual_description": "Lab coat, red scarf"}
]}`

var actRe = regexp.MustCompile(`Act (\d+) of (\d+)`)

// scriptLLM は用途ごとに決まった応答を返す偽物なのだ。幕ごとのシーン数は scenesPerAct で決めるのだ。
type scriptLLM struct {
	scenesPerAct []int
	failPurpose  string

	mu    sync.Mutex
	calls map[string]int
}

func (f *scriptLLM) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[req.Purpose]++
	f.mu.Unlock()

	if req.Purpose == f.failPurpose {
		return "", apperr.Service("llm unavailable", nil)
	}
	switch req.Purpose {
	case prompt.StoryAnalysis:
		return analysisReply, nil
	case prompt.CharacterCreation:
		return charactersReply, nil
	case prompt.SceneWriting:
		m := actRe.FindStringSubmatch(req.User)
		if m == nil {
			return "", errors.New("act header missing")
		}
		act, _ := strconv.Atoi(m[1])
		return actScript(act, f.scenesPerAct[act-1]), nil
	case prompt.CameraAngle:
		return "Low Angle", nil
	}
	return "", fmt.Errorf("unexpected purpose %q", req.Purpose)
}

func (f *scriptLLM) count(purpose string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[purpose]
}

func actScript(act, n int) string {
	var sb strings.Builder
	for s := 1; s <= n; s++ {
		fmt.Fprintf(&sb, "INT. ROOM %d%d – NIGHT\n\n", act, s)
		fmt.Fprintf(&sb, "Act %d beat %d unfolds while Sam watches.\n\n", act, s)
		fmt.Fprintf(&sb, "SAM\nLine %d of act %d.\n\n", s, act)
	}
	return sb.String()
}

// stubImages は failOn を含むプロンプトだけ失敗する偽物なのだ。
type stubImages struct {
	failOn string
	calls  atomic.Int32
}

func (s *stubImages) Synthesize(_ context.Context, req ai.ImageRequest) (ai.ImageResult, error) {
	s.calls.Add(1)
	if s.failOn != "" && strings.Contains(req.Prompt, s.failOn) {
		return ai.ImageResult{}, apperr.Service("image service timeout", nil)
	}
	return ai.ImageResult{Data: storyboard.PlaceholderPNG(), MIMEType: "image/png"}, nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float64, error) {
	return []float64{0.6, 0.8}, nil
}

func thrillerRequest(frames int) Request {
	return Request{
		Prompt:        detectivePremise,
		Genre:         domain.GenreThriller,
		DialogueStyle: domain.DialogueRealistic,
		ActStructure:  domain.ThreeAct,
		FrameCount:    frames,
		VisualStyle:   domain.StyleNoir,
		Exports:       domain.AllArtifactKinds(),
	}
}

func newTestOrchestrator(t *testing.T, llm ai.LLMClient, images ai.ImageClient, emb ai.EmbeddingClient, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Clients{LLM: llm, Image: images, Embedder: emb}, opts...)
	if err != nil {
		t.Fatalf("組み立てに失敗したのだ: %v", err)
	}
	return o
}

func TestOrchestrator_Generate(t *testing.T) {
	t.Run("スリラーで8コマの絵コンテまで作るのだ", func(t *testing.T) {
		llm := &scriptLLM{scenesPerAct: []int{3, 3, 3}}
		var events []ProgressEvent
		o := newTestOrchestrator(t, llm, &stubImages{}, constEmbedder{}, WithProgress(func(ev ProgressEvent) {
			events = append(events, ev)
		}))

		res, err := o.Generate(context.Background(), thrillerRequest(8))
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if res.State != StateDone || res.RunID == "" {
			t.Errorf("完了していないのだ: %s %q", res.State, res.RunID)
		}
		if len(res.Screenplay.Scenes) != 9 {
			t.Errorf("3幕分のシーンがないのだ: %d", len(res.Screenplay.Scenes))
		}
		if len(res.Moments) != 8 || len(res.Frames) != 8 || len(res.Prompts) != 8 {
			t.Fatalf("8コマではないのだ: moments=%d frames=%d", len(res.Moments), len(res.Frames))
		}
		for i := 1; i < len(res.Frames); i++ {
			if res.Frames[i].SceneIndex <= res.Frames[i-1].SceneIndex {
				t.Errorf("コマが脚本順ではないのだ: %d, %d", res.Frames[i-1].SceneIndex, res.Frames[i].SceneIndex)
			}
		}
		for _, f := range res.Frames {
			if f.Consistency.Status != domain.ConsistencyScored {
				t.Errorf("コマ %d が採点されていないのだ: %+v", f.FrameNumber, f.Consistency)
			}
		}
		if _, ok := res.Screenplay.Characters.Find("Sam Hale"); !ok {
			t.Errorf("登場人物が脚本に入っていないのだ: %v", res.Screenplay.Characters.Names())
		}
		if len(res.Artifacts) != 4 {
			t.Errorf("成果物が4つではないのだ: %d", len(res.Artifacts))
		}
		if res.Partial() != nil {
			t.Errorf("失敗したコマはないはずなのだ: %v", res.Partial())
		}

		// 7段階それぞれの開始と完了、最後に Done なのだ
		if len(events) != 15 {
			t.Fatalf("進捗の通知数が違うのだ: %d", len(events))
		}
		for i, stage := range Stages() {
			if events[2*i].Stage != stage || events[2*i].Status != StatusStarted || events[2*i+1].Status != StatusCompleted {
				t.Errorf("%s の通知が違うのだ: %+v %+v", stage, events[2*i], events[2*i+1])
			}
		}
		if last := events[len(events)-1]; last.Stage != StateDone || last.RunID != res.RunID {
			t.Errorf("最後の通知が Done ではないのだ: %+v", last)
		}
	})

	t.Run("埋め込みが未設定でも完了するのだ", func(t *testing.T) {
		o := newTestOrchestrator(t, &scriptLLM{scenesPerAct: []int{3, 3, 3}}, &stubImages{}, nil)
		res, err := o.Generate(context.Background(), thrillerRequest(4))
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if res.State != StateDone {
			t.Errorf("完了していないのだ: %s", res.State)
		}
		for _, f := range res.Frames {
			if f.Consistency.Status != domain.ConsistencyUnavailable {
				t.Errorf("unavailable ではないのだ: %+v", f.Consistency)
			}
		}
	})

	t.Run("3コマ目の失敗は印を付けて完了するのだ", func(t *testing.T) {
		images := &stubImages{failOn: "Act 1 beat 3 unfolds"}
		o := newTestOrchestrator(t, &scriptLLM{scenesPerAct: []int{3, 3, 2}}, images, nil)
		res, err := o.Generate(context.Background(), thrillerRequest(8))
		if err != nil {
			t.Fatalf("コマの失敗で実行が失敗したのだ: %v", err)
		}
		if res.State != StateDone || len(res.Frames) != 8 {
			t.Fatalf("8コマで完了していないのだ: %s %d", res.State, len(res.Frames))
		}
		for _, f := range res.Frames {
			if f.Failed != (f.FrameNumber == 3) {
				t.Errorf("コマ %d の失敗の印が違うのだ: %v", f.FrameNumber, f.Failed)
			}
		}
		if !errors.Is(res.Partial(), apperr.ErrPartialFailure) || len(res.Failures) != 1 {
			t.Errorf("部分的な失敗が記録されていないのだ: %v", res.Failures)
		}
		if _, ok := res.Artifact(domain.ArtifactStoryboardZIP); !ok {
			t.Error("部分的な失敗でも書き出すはずなのだ")
		}
	})

	t.Run("シーン数より多いコマ数はシーン数で止まるのだ", func(t *testing.T) {
		o := newTestOrchestrator(t, &scriptLLM{scenesPerAct: []int{2, 2, 1}}, &stubImages{}, nil)
		res, err := o.Generate(context.Background(), thrillerRequest(20))
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		if len(res.Moments) != 5 || len(res.Frames) != 5 {
			t.Errorf("5コマのはずなのだ: %d, %d", len(res.Moments), len(res.Frames))
		}
	})

	t.Run("検証に失敗したら外部サービスを呼ばないのだ", func(t *testing.T) {
		llm := &scriptLLM{scenesPerAct: []int{3, 3, 3}}
		o := newTestOrchestrator(t, llm, &stubImages{}, nil)
		for _, req := range []Request{
			{Prompt: "too short"},
			{Prompt: detectivePremise, FrameCount: 25},
			{Prompt: detectivePremise, Genre: "Western"},
			{Prompt: detectivePremise, CharacterCount: 9},
		} {
			if _, err := o.Generate(context.Background(), req); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("%+v は検証エラーのはずなのだ: %v", req, err)
			}
		}
		if n := llm.count(prompt.StoryAnalysis); n != 0 {
			t.Errorf("検証前に LLM が呼ばれたのだ: %d", n)
		}
	})

	t.Run("段階の失敗は StageError になるのだ", func(t *testing.T) {
		llm := &scriptLLM{scenesPerAct: []int{3, 3, 3}, failPurpose: prompt.SceneWriting}
		o := newTestOrchestrator(t, llm, &stubImages{}, nil)
		res, err := o.Generate(context.Background(), thrillerRequest(8))
		if stage, ok := apperr.StageOf(err); !ok || stage != string(StateWritingScenes) {
			t.Fatalf("WritingScenes の失敗ではないのだ: %v", err)
		}
		if !errors.Is(err, apperr.ErrService) {
			t.Errorf("サービスエラーが包まれていないのだ: %v", err)
		}
		if res.State != StateFailed || res.Outline.Title == "" {
			t.Errorf("失敗状態と途中までの成果が残っていないのだ: %s %+v", res.State, res.Outline)
		}
	})

	t.Run("LLM にカメラアングルを尋ねるのだ", func(t *testing.T) {
		llm := &scriptLLM{scenesPerAct: []int{1, 1, 1}}
		o := newTestOrchestrator(t, llm, &stubImages{}, nil, WithCameraAngleSuggestions(true))
		res, err := o.Generate(context.Background(), thrillerRequest(3))
		if err != nil {
			t.Fatalf("実行に失敗したのだ: %v", err)
		}
		for _, p := range res.Prompts {
			if p.CameraAngle != domain.AngleLow {
				t.Errorf("提案されたアングルが使われていないのだ: %v", p.CameraAngle)
			}
		}
		if llm.count(prompt.CameraAngle) != 3 {
			t.Errorf("コマごとに1回尋ねるはずなのだ: %d", llm.count(prompt.CameraAngle))
		}
	})
}

func TestOrchestrator_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	images := &stubImages{}
	o := newTestOrchestrator(t, &scriptLLM{scenesPerAct: []int{3, 3, 3}}, images, nil, WithProgress(func(ev ProgressEvent) {
		if ev.Stage == StateWritingScenes && ev.Status == StatusCompleted {
			cancel()
		}
	}))

	res, err := o.Generate(ctx, thrillerRequest(8))
	if !IsCancelled(err) {
		t.Fatalf("取り消しのエラーではないのだ: %v", err)
	}
	if stage, _ := apperr.StageOf(err); stage != string(StateDetectingMoments) {
		t.Errorf("次の段階の前で止まっていないのだ: %s", stage)
	}
	if res.State != StateFailed || len(res.Artifacts) != 0 || images.calls.Load() != 0 {
		t.Errorf("取り消し後に処理が進んだのだ: %s artifacts=%d images=%d", res.State, len(res.Artifacts), images.calls.Load())
	}
	if len(res.Screenplay.Scenes) != 9 {
		t.Errorf("実行中だった段階は最後まで終わるはずなのだ: %d", len(res.Screenplay.Scenes))
	}
}

func TestOrchestrator_GenerateStoryboard(t *testing.T) {
	llm := &scriptLLM{scenesPerAct: []int{2, 2, 2}}
	o := newTestOrchestrator(t, llm, &stubImages{}, constEmbedder{})
	first, err := o.Generate(context.Background(), thrillerRequest(6))
	if err != nil {
		t.Fatalf("実行に失敗したのだ: %v", err)
	}

	var stages []State
	rerun := o.WithProgress(func(ev ProgressEvent) {
		if ev.Status == StatusStarted {
			stages = append(stages, ev.Stage)
		}
	})
	res, err := rerun.GenerateStoryboard(context.Background(), Request{FrameCount: 4, VisualStyle: domain.StyleSketch}, first.Screenplay)
	if err != nil {
		t.Fatalf("絵コンテの作り直しに失敗したのだ: %v", err)
	}
	if stages[0] != StateDetectingMoments || len(stages) != 4 {
		t.Errorf("DetectingMoments から始まっていないのだ: %v", stages)
	}
	if res.RunID == first.RunID {
		t.Error("実行ごとに別の ID のはずなのだ")
	}
	if res.Request.Genre != domain.GenreThriller {
		t.Errorf("脚本のジャンルを引き継いでいないのだ: %s", res.Request.Genre)
	}
	if len(res.Frames) != 4 || res.Prompts[0].Style != domain.StyleSketch {
		t.Errorf("絵コンテが作られていないのだ: %d %v", len(res.Frames), res.Prompts[0].Style)
	}
	if llm.count(prompt.StoryAnalysis) != 1 {
		t.Errorf("脚本の段階が再実行されたのだ: %d", llm.count(prompt.StoryAnalysis))
	}
}

func TestOrchestrator_GenerateScreenplay(t *testing.T) {
	images := &stubImages{}
	o := newTestOrchestrator(t, &scriptLLM{scenesPerAct: []int{2, 2, 1}}, images, constEmbedder{})

	var stages []State
	o = o.WithProgress(func(ev ProgressEvent) {
		if ev.Status == StatusStarted {
			stages = append(stages, ev.Stage)
		}
	})
	res, err := o.GenerateScreenplay(ContextWithRunID(context.Background(), "fixed-id"), thrillerRequest(8))
	if err != nil {
		t.Fatalf("脚本の作成に失敗したのだ: %v", err)
	}
	if res.RunID != "fixed-id" {
		t.Errorf("指定した実行 ID が使われていないのだ: %s", res.RunID)
	}
	want := []State{StateAnalyzing, StateCreatingCharacters, StateWritingScenes, StateExporting}
	if fmt.Sprint(stages) != fmt.Sprint(want) {
		t.Errorf("段階が違うのだ: %v", stages)
	}
	if len(res.Screenplay.Scenes) != 5 || len(res.Frames) != 0 || images.calls.Load() != 0 {
		t.Errorf("絵コンテまで進んでしまったのだ: scenes=%d frames=%d images=%d", len(res.Screenplay.Scenes), len(res.Frames), images.calls.Load())
	}
	if len(res.Artifacts) != 1 || res.Artifacts[0].Kind != domain.ArtifactScreenplayPDF {
		t.Errorf("脚本 PDF だけのはずなのだ: %+v", res.Artifacts)
	}
	if res.State != StateDone {
		t.Errorf("完了していないのだ: %s", res.State)
	}
}

func TestRequest_Normalize(t *testing.T) {
	req, err := Request{Prompt: "  " + detectivePremise + "  ", Genre: "sci-fi", ActStructure: "hero"}.Normalize()
	if err != nil {
		t.Fatalf("正規化に失敗したのだ: %v", err)
	}
	if req.Genre != domain.GenreSciFi || req.ActStructure != domain.HerosJourney || req.Prompt != detectivePremise {
		t.Errorf("表記が揃っていないのだ: %+v", req)
	}
	if req.FrameCount != DefaultFrameCount || req.CharacterCount != 3 || req.VisualStyle != domain.StyleRealistic {
		t.Errorf("既定値が補われていないのだ: %+v", req)
	}
	if len(req.Exports) != 2 {
		t.Errorf("既定の書き出しではないのだ: %v", req.Exports)
	}

	none, err := Request{Prompt: detectivePremise, Exports: []domain.ArtifactKind{}}.Normalize()
	if err != nil || len(none.Exports) != 0 {
		t.Errorf("空の書き出し指定は空のままのはずなのだ: %v, %v", none.Exports, err)
	}
}
