package publisher

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

// 16:9 のコマを本文幅いっぱいに置いたときの高さなのだ。
const frameHeight = textWidth * 9 / 16

// Lookbook はキーモーメントごとにシーン本文とコマ画像、カメラアングル、一貫性の注記を1ページにまとめるのだ。
func (e *Exporter) Lookbook(sp domain.Screenplay, moments []domain.KeyMoment, frames []domain.Frame) ([]byte, error) {
	doc := e.newDocument(titleOf(sp)+" Lookbook", authorOf(sp))

	doc.AddPage()
	doc.SetY(titleY)
	doc.centered("LOOKBOOK")
	doc.Ln(lineHeight)
	doc.centered(strings.ToUpper(titleOf(sp)))
	if sp.Logline != "" {
		doc.Ln(lineHeight * 2)
		doc.SetX(marginLeft + dialogueOffset)
		doc.MultiCell(textWidth-2*dialogueOffset, lineHeight, doc.tr(sp.Logline), "", "C", false)
	}

	byNumber := make(map[int]domain.Frame, len(frames))
	for _, f := range frames {
		byNumber[f.FrameNumber] = f
	}

	for _, m := range moments {
		doc.AddPage()
		scene, ok := sp.SceneByIndex(m.SceneIndex)
		heading := fmt.Sprintf("FRAME %d", m.FrameNumber)
		if ok {
			heading += ": " + strings.ToUpper(scene.Slugline.String())
		}
		doc.block(0, 0, heading)
		doc.Ln(lineHeight / 2)

		frame, hasFrame := byNumber[m.FrameNumber]
		if hasFrame {
			doc.frameImage(frame)
		}
		doc.block(0, 0, "Camera: "+string(m.CameraAngle))
		doc.block(0, 0, consistencyNote(frame, hasFrame))
		doc.Ln(lineHeight)

		if ok {
			for _, line := range strings.Split(strings.TrimRight(scene.FormattedText(), "\n"), "\n") {
				doc.CellFormat(0, lineHeight, doc.tr(line), "", 1, "L", false, 0, "")
			}
		} else {
			doc.block(0, 0, m.Description)
		}
	}

	out, err := doc.render()
	if err != nil {
		return nil, fmt.Errorf("failed to render lookbook pdf: %w", err)
	}
	return out, nil
}

// frameImage はコマ画像を本文幅で置くのだ。fpdf が読めない形式は PNG に変換してから登録するのだ。
func (d *pdfDoc) frameImage(f domain.Frame) {
	data, imageType, err := pdfImage(f)
	if err != nil {
		slog.Warn("コマ画像を PDF に載せられないのだ", "frame", f.FrameNumber, "error", err)
		d.block(0, 0, "[image unavailable]")
		return
	}
	name := fmt.Sprintf("frame_%03d", f.FrameNumber)
	opts := fpdf.ImageOptions{ImageType: imageType}
	d.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if d.Err() {
		slog.Warn("コマ画像を PDF に載せられないのだ", "frame", f.FrameNumber, "error", d.Error())
		d.ClearError()
		d.block(0, 0, "[image unavailable]")
		return
	}
	if d.GetY()+frameHeight > 11*pointsPerInch-marginBottom {
		d.AddPage()
	}
	d.ImageOptions(name, marginLeft, d.GetY(), textWidth, frameHeight, false, opts, 0, "")
	d.SetY(d.GetY() + frameHeight + lineHeight/2)
}

func pdfImage(f domain.Frame) ([]byte, string, error) {
	switch detectMIME(f) {
	case "image/png":
		return f.ImageBytes, "PNG", nil
	case "image/jpeg":
		return f.ImageBytes, "JPG", nil
	case "image/gif":
		return f.ImageBytes, "GIF", nil
	}
	img, _, err := image.Decode(bytes.NewReader(f.ImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode frame image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("failed to convert frame image: %w", err)
	}
	return buf.Bytes(), "PNG", nil
}

func consistencyNote(f domain.Frame, ok bool) string {
	if !ok {
		return "Frame: not generated"
	}
	if f.Failed {
		return "Frame: generation failed (" + f.Err + ")"
	}
	switch f.Consistency.Status {
	case domain.ConsistencyScored:
		note := fmt.Sprintf("Consistency: %.2f", f.Consistency.Score)
		if f.Consistency.Flagged {
			note += " (flagged for review)"
		}
		return note
	case domain.ConsistencyFailed:
		return "Consistency: check failed"
	default:
		return "Consistency: unavailable"
	}
}
