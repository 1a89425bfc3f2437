package ai

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// encoding は BPE 辞書を一度だけ読み込むのだ。取得できなければ nil のまま文字数で見積もるのだ。
func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			slog.Debug("トークナイザを読み込めなかったので文字数で見積もるのだ", "error", err)
			return
		}
		enc = e
	})
	return enc
}

// CountTokens はテキストのトークン数を数えるのだ。
func CountTokens(text string) int {
	if e := encoding(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// TruncateToTokens は max トークンを超える分を末尾から切り詰めるのだ。
func TruncateToTokens(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if e := encoding(); e != nil {
		tokens := e.Encode(text, nil, nil)
		if len(tokens) <= max {
			return text
		}
		return strings.TrimSpace(e.Decode(tokens[:max])) + " ..."
	}
	if estimateTokens(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max*4])) + " ..."
}

// estimateTokens はおおよそ4文字で1トークンとして見積もるのだ。
func estimateTokens(text string) int {
	n := len([]rune(text))
	return (n + 3) / 4
}
