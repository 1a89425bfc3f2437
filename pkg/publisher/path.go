package publisher

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shouni/go-frameflow-kit/pkg/apperr"
)

const imageDirName = "images"

// ResolveOutputPath はベースディレクトリとファイル名から出力パスを作るのだ。
// ファイル名がベースディレクトリの外を指す場合はエラーなのだ。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	if strings.TrimSpace(fileName) == "" {
		return "", apperr.Validation("output file name is empty")
	}
	if filepath.IsAbs(fileName) {
		return "", apperr.Validationf("output file name %q must be relative", fileName)
	}
	clean := filepath.Clean(fileName)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", apperr.Validationf("output file name %q escapes the output directory", fileName)
	}
	if baseDir == "" {
		baseDir = "."
	}
	return filepath.Join(baseDir, clean), nil
}

// RunDir は実行ごとの出力ディレクトリなのだ。
func RunDir(outputDir, runID string) string {
	if runID == "" {
		return outputDir
	}
	return filepath.Join(outputDir, fmt.Sprintf("run-%s", runID))
}
