package pipeline

import (
	"time"

	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

// State は実行の段階なのだ。Failed 以外は定義順にしか進まないのだ。
type State string

const (
	StateIdle               State = "Idle"
	StateAnalyzing          State = "Analyzing"
	StateCreatingCharacters State = "CreatingCharacters"
	StateWritingScenes      State = "WritingScenes"
	StateDetectingMoments   State = "DetectingMoments"
	StateGeneratingPrompts  State = "GeneratingPrompts"
	StateGeneratingFrames   State = "GeneratingFrames"
	StateExporting          State = "Exporting"
	StateDone               State = "Done"
	StateFailed             State = "Failed"
)

// Stages は作業を伴う段階を実行順に返すのだ。
func Stages() []State {
	return []State{
		StateAnalyzing, StateCreatingCharacters, StateWritingScenes, StateDetectingMoments,
		StateGeneratingPrompts, StateGeneratingFrames, StateExporting,
	}
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ProgressEvent は段階の開始と終了のたびに通知されるのだ。
type ProgressEvent struct {
	RunID  string    `json:"run_id"`
	Stage  State     `json:"stage"`
	Status Status    `json:"status"`
	Err    string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// ProgressFunc は同じ実行の中では逐次に呼ばれるのだ。
type ProgressFunc func(ProgressEvent)

// Result は1回の実行の成果なのだ。失敗した場合も、そこまでに得られたものが入っているのだ。
type Result struct {
	RunID      string                  `json:"run_id"`
	State      State                   `json:"state"`
	Request    Request                 `json:"request"`
	Outline    domain.StoryOutline     `json:"outline"`
	Screenplay domain.Screenplay       `json:"screenplay"`
	Moments    []domain.KeyMoment      `json:"moments"`
	Prompts    []domain.VisualPrompt   `json:"prompts"`
	Frames     []domain.Frame          `json:"frames"`
	Failures   []domain.FrameFailure   `json:"failures,omitempty"`
	Artifacts  []domain.ExportArtifact `json:"artifacts,omitempty"`
}

// Partial は一部のコマが失敗していれば PartialFailure を返すのだ。実行自体は成功扱いなのだ。
func (r *Result) Partial() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return apperr.PartialFailure(formatFailures(r.Failures))
}

// Artifact は種類で成果物を引くのだ。
func (r *Result) Artifact(kind domain.ArtifactKind) (domain.ExportArtifact, bool) {
	for _, a := range r.Artifacts {
		if a.Kind == kind {
			return a, true
		}
	}
	return domain.ExportArtifact{}, false
}
