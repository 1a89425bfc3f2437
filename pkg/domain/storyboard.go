package domain

import "fmt"

// KeyMoment は絵コンテにする価値があると判定されたシーンへの参照なのだ。
type KeyMoment struct {
	FrameNumber int         `json:"frame_number"` // 1始まり、脚本順
	SceneIndex  int         `json:"scene_index"`
	Description string      `json:"description"`
	Setting     string      `json:"setting"`
	Tone        string      `json:"tone"`
	Characters  []string    `json:"characters"`
	CameraAngle CameraAngle `json:"camera_angle"`
	Importance  float64     `json:"importance"`
	Rank        int         `json:"rank"` // スコア順位（1が最重要）
}

// VisualPrompt は1コマ分の画像生成プロンプトなのだ。
type VisualPrompt struct {
	FrameNumber int         `json:"frame_number"`
	SceneIndex  int         `json:"scene_index"`
	Style       VisualStyle `json:"style"`
	CameraAngle CameraAngle `json:"camera_angle"`
	Text        string      `json:"text"`
	Negative    string      `json:"negative"`
	Characters  []string    `json:"characters"`
	Seed        int64       `json:"seed"`
}

// Full はネガティブ指定を含めた1行表現なのだ。
func (p VisualPrompt) Full() string {
	if p.Negative == "" {
		return p.Text
	}
	return p.Text + " | Negative: " + p.Negative
}

// ConsistencyStatus は一貫性スコアの状態なのだ。
type ConsistencyStatus string

const (
	ConsistencyScored      ConsistencyStatus = "scored"
	ConsistencyUnavailable ConsistencyStatus = "unavailable" // 埋め込みサービスが未設定
	ConsistencyFailed      ConsistencyStatus = "failed"      // 設定済みだが呼び出しに失敗
)

// Consistency はコマに付く助言的なメタデータなのだ。失敗条件にはならないのだ。
type Consistency struct {
	Status       ConsistencyStatus  `json:"status"`
	Score        float64            `json:"score,omitempty"`
	PerCharacter map[string]float64 `json:"per_character,omitempty"`
	Flagged      bool               `json:"flagged,omitempty"`
	Reason       string             `json:"reason,omitempty"`
}

// Frame は生成された1コマなのだ。
type Frame struct {
	FrameNumber int         `json:"frame_number"`
	SceneIndex  int         `json:"scene_index"`
	ImageBytes  []byte      `json:"-"`
	MIMEType    string      `json:"mime_type"`
	Consistency Consistency `json:"consistency"`
	Failed      bool        `json:"failed,omitempty"`
	Err         string      `json:"error,omitempty"`
}

// FrameFailure は失敗したコマの記録なのだ。
type FrameFailure struct {
	FrameNumber int    `json:"frame_number"`
	SceneIndex  int    `json:"scene_index"`
	Error       string `json:"error"`
}

func (f FrameFailure) String() string {
	return fmt.Sprintf("frame %d (scene %d): %s", f.FrameNumber, f.SceneIndex, f.Error)
}

// ExportArtifact は書き出された成果物なのだ。
type ExportArtifact struct {
	Kind     ArtifactKind `json:"kind"`
	FileName string       `json:"file_name"`
	MIMEType string       `json:"mime_type"`
	Bytes    []byte       `json:"-"`
}
