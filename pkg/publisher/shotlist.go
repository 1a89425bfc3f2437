package publisher

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

var shotListHeader = []string{"shot", "scene", "slugline", "description", "camera angle", "characters", "notes"}

// ShotList はキーモーメントを撮影順の CSV にするのだ。カメラアングルはプロンプトがあればそちらを優先するのだ。
func (e *Exporter) ShotList(sp domain.Screenplay, moments []domain.KeyMoment, prompts []domain.VisualPrompt) ([]byte, error) {
	angles := make(map[int]domain.CameraAngle, len(prompts))
	for _, p := range prompts {
		angles[p.FrameNumber] = p.CameraAngle
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(shotListHeader); err != nil {
		return nil, fmt.Errorf("failed to write shot list header: %w", err)
	}
	for _, m := range moments {
		slugline := ""
		if scene, ok := sp.SceneByIndex(m.SceneIndex); ok {
			slugline = strings.ToUpper(scene.Slugline.String())
		}
		angle := m.CameraAngle
		if a, ok := angles[m.FrameNumber]; ok && a != "" {
			angle = a
		}
		row := []string{
			strconv.Itoa(m.FrameNumber),
			strconv.Itoa(m.SceneIndex + 1),
			slugline,
			m.Description,
			string(angle),
			strings.Join(m.Characters, "; "),
			fmt.Sprintf("Storyboard frame %d, %s tone, importance %.2f", m.FrameNumber, m.Tone, m.Importance),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write shot %d: %w", m.FrameNumber, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush shot list: %w", err)
	}
	return buf.Bytes(), nil
}
