package publisher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

// OutputWriter はデータを保存先に書き込むためのインターフェースなのだ。
type OutputWriter interface {
	Write(ctx context.Context, path string, data []byte) error
}

// LocalWriter はローカルのファイルシステムに書き込むのだ。親ディレクトリがなければ作るのだ。
type LocalWriter struct{}

func (LocalWriter) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// AssetManager は成果物の保存先パスと永続化を管理するのだ。
type AssetManager struct {
	writer  OutputWriter
	baseDir string
}

func NewAssetManager(writer OutputWriter, baseDir string) *AssetManager {
	if writer == nil {
		writer = LocalWriter{}
	}
	return &AssetManager{writer: writer, baseDir: baseDir}
}

// Save はデータを baseDir 配下に保存し、保存先のパスを返すのだ。
func (am *AssetManager) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	fullPath, err := ResolveOutputPath(am.baseDir, fileName)
	if err != nil {
		return "", err
	}
	if err := am.writer.Write(ctx, fullPath, data); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", fileName, err)
	}
	return fullPath, nil
}

// SaveArtifacts は成果物をすべて保存し、保存先のパスを同じ順序で返すのだ。
func (am *AssetManager) SaveArtifacts(ctx context.Context, artifacts []domain.ExportArtifact) ([]string, error) {
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		p, err := am.Save(ctx, a.FileName, a.Bytes)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// SaveFrames はコマ画像を images/ 配下に frame_001.png の名前で保存するのだ。
func (am *AssetManager) SaveFrames(ctx context.Context, frames []domain.Frame) ([]string, error) {
	paths := make([]string, 0, len(frames))
	for _, f := range frames {
		p, err := am.Save(ctx, filepath.Join(imageDirName, FrameFileName(f.FrameNumber, detectMIME(f))), f.ImageBytes)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
