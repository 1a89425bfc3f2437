package publisher

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"

	"github.com/gen2brain/webp"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

const manifestName = "manifest.yaml"

// Manifest は絵コンテ ZIP に同梱するコマの一覧なのだ。
type Manifest struct {
	FrameCount int               `yaml:"frame_count"`
	Frames     []ManifestFrame   `yaml:"frames"`
	Failures   []ManifestFailure `yaml:"failures,omitempty"`
}

type ManifestFrame struct {
	File         string             `yaml:"file"`
	FrameNumber  int                `yaml:"frame_number"`
	SceneIndex   int                `yaml:"scene_index"`
	MIMEType     string             `yaml:"mime_type"`
	Placeholder  bool               `yaml:"placeholder,omitempty"`
	Consistency  string             `yaml:"consistency"`
	Score        float64            `yaml:"score,omitempty"`
	PerCharacter map[string]float64 `yaml:"per_character,omitempty"`
	Flagged      bool               `yaml:"flagged,omitempty"`
}

type ManifestFailure struct {
	FrameNumber int    `yaml:"frame_number"`
	SceneIndex  int    `yaml:"scene_index"`
	Error       string `yaml:"error"`
}

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// StoryboardZIP はコマを frame_001.<拡張子> の名前で詰め、manifest.yaml を添えるのだ。
// 各エントリの更新日時を固定しているので、同じ入力なら同じバイト列になるのだ。
func (e *Exporter) StoryboardZIP(frames []domain.Frame, failures []domain.FrameFailure) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest := Manifest{FrameCount: len(frames)}
	for _, f := range frames {
		data, mimeType := e.frameImage(f)
		name := FrameFileName(f.FrameNumber, mimeType)
		if err := e.addFile(zw, name, data); err != nil {
			return nil, err
		}
		manifest.Frames = append(manifest.Frames, ManifestFrame{
			File:         name,
			FrameNumber:  f.FrameNumber,
			SceneIndex:   f.SceneIndex,
			MIMEType:     mimeType,
			Placeholder:  f.Failed,
			Consistency:  string(statusOf(f.Consistency.Status)),
			Score:        f.Consistency.Score,
			PerCharacter: f.Consistency.PerCharacter,
			Flagged:      f.Consistency.Flagged,
		})
	}
	for _, fail := range failures {
		manifest.Failures = append(manifest.Failures, ManifestFailure{
			FrameNumber: fail.FrameNumber,
			SceneIndex:  fail.SceneIndex,
			Error:       fail.Error,
		})
	}

	meta, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := e.addFile(zw, manifestName, meta); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize zip: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Exporter) addFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: e.timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// frameImage は ZIP に入れる画像と MIME を決めるのだ。WebP 変換が有効なら生成に成功したコマだけ変換するのだ。
func (e *Exporter) frameImage(f domain.Frame) ([]byte, string) {
	mimeType := detectMIME(f)
	if e.webpQuality <= 0 || f.Failed || mimeType == "image/webp" {
		return f.ImageBytes, mimeType
	}
	img, _, err := image.Decode(bytes.NewReader(f.ImageBytes))
	if err != nil {
		slog.Warn("WebP に変換できないので元の画像を入れるのだ", "frame", f.FrameNumber, "error", err)
		return f.ImageBytes, mimeType
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Lossless: false, Quality: e.webpQuality}); err != nil {
		slog.Warn("WebP に変換できないので元の画像を入れるのだ", "frame", f.FrameNumber, "error", err)
		return f.ImageBytes, mimeType
	}
	return buf.Bytes(), "image/webp"
}

func detectMIME(f domain.Frame) string {
	if _, ok := extensions[f.MIMEType]; ok {
		return f.MIMEType
	}
	return http.DetectContentType(f.ImageBytes)
}

// FrameFileName は 1 始まりのコマ番号を3桁に揃えたファイル名なのだ。
func FrameFileName(frameNumber int, mimeType string) string {
	ext, ok := extensions[mimeType]
	if !ok {
		ext = "png"
	}
	return fmt.Sprintf("frame_%03d.%s", frameNumber, ext)
}

func statusOf(s domain.ConsistencyStatus) domain.ConsistencyStatus {
	if s == "" {
		return domain.ConsistencyUnavailable
	}
	return s
}
