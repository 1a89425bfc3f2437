package publisher

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/shouni/go-frameflow-kit/pkg/apperr"
	"github.com/shouni/go-frameflow-kit/pkg/domain"
	"github.com/shouni/go-frameflow-kit/pkg/storyboard"
)

func testBundle() Bundle {
	sp := domain.Screenplay{
		Title:   "Partners in Blood",
		Genre:   domain.GenreThriller,
		Logline: "A detective must overcome her partner's betrayal in a story about trust.",
		Characters: domain.Roster{
			{Name: "Mara Quinn", Role: domain.RoleProtagonist},
			{Name: "Eli Voss", Role: domain.RoleAntagonist},
		},
		Scenes: []domain.Scene{
			{Index: 0, Act: 1, Slugline: domain.Slugline{Setting: "INT.", Location: "PRECINCT", Time: "NIGHT"},
				ActionLines: []string{"Rain streaks the windows. Mara reads a case file."},
				Dialogue: []domain.DialogueLine{
					{Character: "Mara Quinn", Parenthetical: "quietly", Line: "Somebody inside knew."},
					{Character: "Eli Voss", Line: "Then we find out who."},
				}},
			{Index: 1, Act: 2, Slugline: domain.Slugline{Setting: "EXT.", Location: "ROOFTOP", Time: "DAWN"},
				ActionLines: []string{"Mara faces Eli at the edge."}},
		},
	}
	moments := []domain.KeyMoment{
		{FrameNumber: 1, SceneIndex: 0, Description: "Rain streaks the windows.", Tone: "mysterious", CameraAngle: domain.AngleMedium, Characters: []string{"Mara Quinn", "Eli Voss"}, Importance: 4.5},
		{FrameNumber: 2, SceneIndex: 1, Description: "Mara faces Eli at the edge.", Tone: "tense", CameraAngle: domain.AngleWide, Characters: []string{"Mara Quinn", "Eli Voss"}, Importance: 6},
	}
	return Bundle{
		Screenplay: sp,
		Moments:    moments,
		Prompts: []domain.VisualPrompt{
			{FrameNumber: 1, SceneIndex: 0, CameraAngle: domain.AngleCloseUp},
			{FrameNumber: 2, SceneIndex: 1, CameraAngle: domain.AngleWide},
		},
		Frames: []domain.Frame{
			{FrameNumber: 1, SceneIndex: 0, ImageBytes: storyboard.PlaceholderPNG(), MIMEType: "image/png",
				Consistency: domain.Consistency{Status: domain.ConsistencyScored, Score: 0.91, PerCharacter: map[string]float64{"Mara Quinn": 0.91}}},
			{FrameNumber: 2, SceneIndex: 1, ImageBytes: storyboard.PlaceholderPNG(), MIMEType: "image/png",
				Failed: true, Err: "image service timeout", Consistency: domain.Consistency{Status: domain.ConsistencyUnavailable}},
		},
		Failures: []domain.FrameFailure{{FrameNumber: 2, SceneIndex: 1, Error: "image service timeout"}},
	}
}

func TestExporter_Export(t *testing.T) {
	t.Run("定義順で成果物を作り、同じ入力なら同じバイト列なのだ", func(t *testing.T) {
		e := NewExporter()
		kinds := []domain.ArtifactKind{domain.ArtifactShotList, domain.ArtifactScreenplayPDF, domain.ArtifactLookbook, domain.ArtifactStoryboardZIP, domain.ArtifactShotList}

		first, err := e.Export(kinds, testBundle())
		if err != nil {
			t.Fatalf("書き出しに失敗したのだ: %v", err)
		}
		second, err := e.Export(kinds, testBundle())
		if err != nil {
			t.Fatalf("2回目の書き出しに失敗したのだ: %v", err)
		}

		want := domain.AllArtifactKinds()
		if len(first) != len(want) {
			t.Fatalf("成果物の数が違うのだ: %d", len(first))
		}
		for i, a := range first {
			if a.Kind != want[i] {
				t.Errorf("%d番目が %s ではなく %s なのだ", i, want[i], a.Kind)
			}
			if !bytes.Equal(a.Bytes, second[i].Bytes) {
				t.Errorf("%s が毎回変わるのだ", a.Kind)
			}
			if a.FileName != FileNameFor(a.Kind) || a.MIMEType != MIMETypeFor(a.Kind) {
				t.Errorf("ファイル名か MIME が違うのだ: %+v", a)
			}
		}
		for _, i := range []int{0, 2} {
			if !bytes.HasPrefix(first[i].Bytes, []byte("%PDF-")) {
				t.Errorf("%s が PDF ではないのだ", first[i].Kind)
			}
		}
	})

	t.Run("何も要求しなければ何も作らないのだ", func(t *testing.T) {
		artifacts, err := NewExporter().Export(nil, testBundle())
		if err != nil || len(artifacts) != 0 {
			t.Errorf("空のはずなのだ: %v, %v", artifacts, err)
		}
	})
}

func readZIP(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("ZIP が読めないのだ: %v", err)
	}
	files := make(map[string][]byte)
	for _, f := range zr.File {
		if !f.Modified.Equal(DefaultTimestamp) {
			t.Errorf("%s の更新日時が固定されていないのだ: %v", f.Name, f.Modified)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("%s が開けないのだ: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("%s が読めないのだ: %v", f.Name, err)
		}
		files[f.Name] = body
	}
	return files
}

func TestExporter_StoryboardZIP(t *testing.T) {
	b := testBundle()
	data, err := NewExporter().StoryboardZIP(b.Frames, b.Failures)
	if err != nil {
		t.Fatalf("ZIP の作成に失敗したのだ: %v", err)
	}
	files := readZIP(t, data)
	for _, name := range []string{"frame_001.png", "frame_002.png", manifestName} {
		if _, ok := files[name]; !ok {
			t.Errorf("%s が入っていないのだ: %v", name, files)
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(files[manifestName], &m); err != nil {
		t.Fatalf("manifest が読めないのだ: %v", err)
	}
	if m.FrameCount != 2 || len(m.Frames) != 2 {
		t.Fatalf("コマ数が違うのだ: %+v", m)
	}
	if m.Frames[0].Consistency != "scored" || m.Frames[0].Score != 0.91 {
		t.Errorf("一貫性が記録されていないのだ: %+v", m.Frames[0])
	}
	if !m.Frames[1].Placeholder || len(m.Failures) != 1 || m.Failures[0].Error != "image service timeout" {
		t.Errorf("失敗が記録されていないのだ: %+v", m)
	}
}

func TestExporter_StoryboardZIP_WebP(t *testing.T) {
	b := testBundle()
	data, err := NewExporter(WithWebP(80)).StoryboardZIP(b.Frames, b.Failures)
	if err != nil {
		t.Fatalf("ZIP の作成に失敗したのだ: %v", err)
	}
	files := readZIP(t, data)
	if _, ok := files["frame_001.webp"]; !ok {
		t.Errorf("成功したコマが WebP になっていないのだ: %v", keys(files))
	}
	if _, ok := files["frame_002.png"]; !ok {
		t.Errorf("代替画像は PNG のままのはずなのだ: %v", keys(files))
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestFrameFileName(t *testing.T) {
	tests := []struct {
		n    int
		mime string
		want string
	}{
		{1, "image/png", "frame_001.png"},
		{12, "image/jpeg", "frame_012.jpg"},
		{3, "application/octet-stream", "frame_003.png"},
	}
	for _, tt := range tests {
		if got := FrameFileName(tt.n, tt.mime); got != tt.want {
			t.Errorf("FrameFileName(%d, %q) = %q, want %q", tt.n, tt.mime, got, tt.want)
		}
	}
}

func TestExporter_ShotList(t *testing.T) {
	b := testBundle()
	data, err := NewExporter().ShotList(b.Screenplay, b.Moments, b.Prompts)
	if err != nil {
		t.Fatalf("ショットリストの作成に失敗したのだ: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("CSV が読めないのだ: %v", err)
	}
	if len(rows) != 3 || strings.Join(rows[0], ",") != "shot,scene,slugline,description,camera angle,characters,notes" {
		t.Fatalf("見出しか行数が違うのだ: %v", rows)
	}
	if rows[1][2] != "INT. PRECINCT – NIGHT" {
		t.Errorf("スラッグラインが違うのだ: %q", rows[1][2])
	}
	if rows[1][4] != string(domain.AngleCloseUp) {
		t.Errorf("プロンプトのアングルが優先されていないのだ: %q", rows[1][4])
	}
	if rows[2][1] != "2" || rows[2][5] != "Mara Quinn; Eli Voss" {
		t.Errorf("2行目が違うのだ: %v", rows[2])
	}
}

func TestResolveOutputPath(t *testing.T) {
	got, err := ResolveOutputPath("out", "images/frame_001.png")
	if err != nil || got != filepath.Join("out", "images", "frame_001.png") {
		t.Errorf("パスが違うのだ: %q, %v", got, err)
	}
	for _, bad := range []string{"", "../secret", "/etc/passwd"} {
		if _, err := ResolveOutputPath("out", bad); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%q は拒否されるはずなのだ: %v", bad, err)
		}
	}
}

func TestAssetManager_SaveArtifacts(t *testing.T) {
	dir := t.TempDir()
	am := NewAssetManager(nil, filepath.Join(dir, "run"))
	artifacts := []domain.ExportArtifact{
		{Kind: domain.ArtifactShotList, FileName: FileShotList, Bytes: []byte("shot\n")},
	}
	paths, err := am.SaveArtifacts(context.Background(), artifacts)
	if err != nil {
		t.Fatalf("保存に失敗したのだ: %v", err)
	}
	body, err := os.ReadFile(paths[0])
	if err != nil || string(body) != "shot\n" {
		t.Errorf("保存した中身が違うのだ: %q, %v", body, err)
	}

	framePaths, err := am.SaveFrames(context.Background(), testBundle().Frames)
	if err != nil || len(framePaths) != 2 || filepath.Base(framePaths[1]) != "frame_002.png" {
		t.Errorf("コマの保存が違うのだ: %v, %v", framePaths, err)
	}
}
