package storyboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/shouni/go-frameflow-kit/pkg/ai"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

// DefaultThreshold を下回るコマは見た目のずれとして印を付けるのだ。
const DefaultThreshold = 0.85

// Tracker は1回の実行の間だけ登場人物の埋め込みを覚えておくのだ。実行をまたいで共有しないのだ。
type Tracker struct {
	embedder  ai.EmbeddingClient
	threshold float64
	store     *cache.Cache
}

// NewTracker は Tracker を生成するのだ。threshold が範囲外なら既定値を使うのだ。
func NewTracker(embedder ai.EmbeddingClient, threshold float64) *Tracker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if embedder == nil {
		embedder = ai.DisabledEmbedder{}
	}
	return &Tracker{
		embedder:  embedder,
		threshold: threshold,
		store:     cache.New(cache.NoExpiration, 0),
	}
}

// Enabled は埋め込みサービスが設定されているかどうかなのだ。
func (t *Tracker) Enabled() bool {
	return ai.IsEmbeddingConfigured(t.embedder)
}

// Register は登場人物の外見の説明を埋め込んで名前で覚えるのだ。
func (t *Tracker) Register(ctx context.Context, c domain.Character) ([]float64, error) {
	desc := strings.TrimSpace(c.VisualDescription)
	if desc == "" {
		desc = c.Name
	}
	vec, err := t.embedder.Embed(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", c.Name, err)
	}
	t.store.Set(storeKey(c.Name), vec, cache.NoExpiration)
	return vec, nil
}

// Score はコマの説明と登場人物の埋め込みのコサイン類似度を人物ごとに出し、その平均をコマの点数にするのだ。
// 失敗してもパイプラインは止めず、状態として返すのだ。
func (t *Tracker) Score(ctx context.Context, descriptor string, names []string) domain.Consistency {
	if !t.Enabled() {
		return domain.Consistency{Status: domain.ConsistencyUnavailable, Reason: ai.ErrEmbeddingNotConfigured.Error()}
	}

	refs := make(map[string][]float64, len(names))
	for _, name := range names {
		if v, ok := t.store.Get(storeKey(name)); ok {
			refs[name] = v.([]float64)
		}
	}
	if len(refs) == 0 {
		return domain.Consistency{Status: domain.ConsistencyUnavailable, Reason: "no registered characters in frame"}
	}

	vec, err := t.embedder.Embed(ctx, descriptor)
	if err != nil {
		if errors.Is(err, ai.ErrEmbeddingNotConfigured) {
			return domain.Consistency{Status: domain.ConsistencyUnavailable, Reason: err.Error()}
		}
		slog.WarnContext(ctx, "一貫性の採点に失敗したのだ", "error", err)
		return domain.Consistency{Status: domain.ConsistencyFailed, Reason: err.Error()}
	}

	per := make(map[string]float64, len(refs))
	sum := 0.0
	for _, name := range names {
		ref, ok := refs[name]
		if _, done := per[name]; !ok || done {
			continue
		}
		s := CosineSimilarity(vec, ref)
		per[name] = s
		sum += s
	}
	mean := sum / float64(len(per))
	return domain.Consistency{
		Status:       domain.ConsistencyScored,
		Score:        mean,
		PerCharacter: per,
		Flagged:      mean < t.threshold,
	}
}

// CosineSimilarity は [0,1] に収めたコサイン類似度なのだ。長さが違うかゼロベクトルなら0なのだ。
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, s))
}

func storeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
