package server

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
	"github.com/shouni/go-frameflow-kit/pkg/pipeline"
)

// runEntry は受け付けた1回の実行の状態なのだ。進捗の通知と HTTP ハンドラから並行に触るのでロックで守るのだ。
type runEntry struct {
	mu       sync.Mutex
	id       string
	state    pipeline.State
	events   []pipeline.ProgressEvent
	result   *pipeline.Result
	err      error
	created  time.Time
	cancel   context.CancelFunc
	finished chan struct{}
}

func newRunEntry(id string, cancel context.CancelFunc, now time.Time) *runEntry {
	return &runEntry{
		id:       id,
		state:    pipeline.StateIdle,
		created:  now,
		cancel:   cancel,
		finished: make(chan struct{}),
	}
}

func (e *runEntry) record(ev pipeline.ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	switch ev.Status {
	case pipeline.StatusFailed:
		e.state = pipeline.StateFailed
	default:
		e.state = ev.Stage
	}
}

func (e *runEntry) complete(res *pipeline.Result, err error) {
	e.mu.Lock()
	e.result = res
	e.err = err
	switch {
	case err != nil:
		e.state = pipeline.StateFailed
	case res != nil:
		e.state = res.State
	}
	e.mu.Unlock()
	close(e.finished)
}

// RunView は GET /api/runs/:id の応答なのだ。画像やファイルの中身は含めないのだ。
type RunView struct {
	RunID     string                   `json:"run_id"`
	State     pipeline.State           `json:"state"`
	Error     string                   `json:"error,omitempty"`
	Stage     string                   `json:"failed_stage,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	Events    []pipeline.ProgressEvent `json:"events"`
	Result    *pipeline.Result         `json:"result,omitempty"`
	Artifacts []ArtifactView           `json:"artifacts,omitempty"`
}

type ArtifactView struct {
	Kind     domain.ArtifactKind `json:"kind"`
	FileName string              `json:"file_name"`
	MIMEType string              `json:"mime_type"`
	Size     int                 `json:"size"`
	URL      string              `json:"url"`
}

func (e *runEntry) view() RunView {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := RunView{
		RunID:     e.id,
		State:     e.state,
		CreatedAt: e.created,
		Events:    append([]pipeline.ProgressEvent(nil), e.events...),
		Result:    e.result,
	}
	if e.err != nil {
		v.Error = e.err.Error()
		v.Stage = stageOf(e.err)
	}
	if e.result != nil {
		for _, a := range e.result.Artifacts {
			v.Artifacts = append(v.Artifacts, ArtifactView{
				Kind:     a.Kind,
				FileName: a.FileName,
				MIMEType: a.MIMEType,
				Size:     len(a.Bytes),
				URL:      "/api/runs/" + e.id + "/artifacts/" + string(a.Kind),
			})
		}
	}
	return v
}

func (e *runEntry) snapshot() (pipeline.State, *pipeline.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.result
}

// registry は実行を TTL 付きで覚えておくのだ。期限切れの実行がまだ動いていれば取り消すのだ。
type registry struct {
	runs *cache.Cache
}

func newRegistry(ttl time.Duration) *registry {
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(_ string, v any) {
		if e, ok := v.(*runEntry); ok {
			e.cancel()
		}
	})
	return &registry{runs: c}
}

func (r *registry) put(e *runEntry) {
	r.runs.Set(e.id, e, cache.DefaultExpiration)
}

func (r *registry) get(id string) (*runEntry, bool) {
	v, ok := r.runs.Get(id)
	if !ok {
		return nil, false
	}
	e, ok := v.(*runEntry)
	return e, ok
}
