package storyboard

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

const (
	placeholderWidth  = 320
	placeholderHeight = 180
)

var (
	placeholderOnce  sync.Once
	placeholderBytes []byte
)

// PlaceholderPNG は失敗したコマに使う16:9の灰色の画像なのだ。呼び出し側が書き換えてもよいようにコピーを返すのだ。
func PlaceholderPNG() []byte {
	placeholderOnce.Do(func() {
		img := image.NewGray(image.Rect(0, 0, placeholderWidth, placeholderHeight))
		for y := 0; y < placeholderHeight; y++ {
			for x := 0; x < placeholderWidth; x++ {
				img.SetGray(x, y, color.Gray{Y: 0x99})
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			placeholderBytes = buf.Bytes()
		}
	})
	return append([]byte(nil), placeholderBytes...)
}
