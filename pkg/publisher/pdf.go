package publisher

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/shouni/go-frameflow-kit/pkg/domain"
)

// 寸法はすべてポイント（1インチ = 72pt）なのだ。
const (
	pointsPerInch = 72.0

	fontFamily = "Courier"
	fontSize   = 12.0
	lineHeight = 14.0

	marginLeft   = 1.25 * pointsPerInch
	marginRight  = 1.0 * pointsPerInch
	marginTop    = 1.0 * pointsPerInch
	marginBottom = 1.0 * pointsPerInch

	pageWidth = 8.5 * pointsPerInch
	textWidth = pageWidth - marginLeft - marginRight

	cueOffset           = 2.2 * pointsPerInch
	parentheticalOffset = 1.6 * pointsPerInch
	parentheticalWidth  = 2.5 * pointsPerInch
	dialogueOffset      = 1.0 * pointsPerInch
	dialogueWidth       = 3.5 * pointsPerInch

	pageNumberY = 0.5 * pointsPerInch
	titleY      = 3.0 * pointsPerInch
	creator     = "go-frameflow-kit"
)

// pdfDoc は fpdf に文字コード変換を添えたものなのだ。コアフォントは cp1252 なので UTF-8 を変換してから書くのだ。
type pdfDoc struct {
	*fpdf.Fpdf
	tr func(string) string
}

// newDocument は US Letter、Courier 12pt の文書を作るのだ。2ページ目からページ番号を右上に入れるのだ。
func (e *Exporter) newDocument(title, author string) *pdfDoc {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetCreationDate(e.timestamp)
	pdf.SetModificationDate(e.timestamp)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(title, true)
	pdf.SetAuthor(author, true)
	pdf.SetCreator(creator, true)

	doc := &pdfDoc{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() < 2 {
			return
		}
		pdf.SetFont(fontFamily, "", fontSize)
		pdf.SetY(pageNumberY)
		pdf.CellFormat(0, lineHeight, fmt.Sprintf("%d.", pdf.PageNo()), "", 0, "R", false, 0, "")
		pdf.SetY(marginTop)
	})
	pdf.SetFont(fontFamily, "", fontSize)
	return doc
}

// block は左端から offset 離して幅 width の段落を書くのだ。width が0なら右余白までなのだ。
func (d *pdfDoc) block(offset, width float64, text string) {
	d.SetX(marginLeft + offset)
	d.MultiCell(width, lineHeight, d.tr(text), "", "L", false)
}

func (d *pdfDoc) centered(text string) {
	d.CellFormat(0, lineHeight, d.tr(text), "", 1, "C", false, 0, "")
}

func (d *pdfDoc) render() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// titlePage はタイトル、作者、稿、ジャンル、ログラインの表紙なのだ。
func (d *pdfDoc) titlePage(sp domain.Screenplay) {
	d.AddPage()
	d.SetY(titleY)
	d.centered(strings.ToUpper(titleOf(sp)))
	d.Ln(lineHeight * 2)
	d.centered("by")
	d.Ln(lineHeight)
	d.centered(authorOf(sp))
	d.Ln(lineHeight * 2)
	d.centered(draftOf(sp))
	if sp.Genre != "" {
		d.Ln(lineHeight)
		d.centered(string(sp.Genre))
	}
	if sp.Logline != "" {
		d.Ln(lineHeight * 3)
		d.SetX(marginLeft + dialogueOffset)
		d.MultiCell(textWidth-2*dialogueOffset, lineHeight, d.tr(sp.Logline), "", "C", false)
	}
}

// ScreenplayPDF は業界標準の書式で脚本を PDF にするのだ。同じ入力なら同じバイト列になるのだ。
func (e *Exporter) ScreenplayPDF(sp domain.Screenplay) ([]byte, error) {
	doc := e.newDocument(titleOf(sp), authorOf(sp))
	doc.titlePage(sp)

	doc.AddPage()
	doc.block(0, 0, "FADE IN:")
	doc.Ln(lineHeight)
	for _, scene := range sp.Scenes {
		doc.scene(scene)
	}
	doc.CellFormat(0, lineHeight, "FADE OUT.", "", 1, "R", false, 0, "")

	out, err := doc.render()
	if err != nil {
		return nil, fmt.Errorf("failed to render screenplay pdf: %w", err)
	}
	return out, nil
}

func (d *pdfDoc) scene(s domain.Scene) {
	d.block(0, 0, strings.ToUpper(s.Slugline.String()))
	d.Ln(lineHeight)
	for _, action := range s.ActionLines {
		d.block(0, 0, action)
		d.Ln(lineHeight)
	}
	for _, line := range s.Dialogue {
		d.block(cueOffset, textWidth-cueOffset, strings.ToUpper(line.Character))
		if line.Parenthetical != "" {
			d.block(parentheticalOffset, parentheticalWidth, "("+strings.Trim(line.Parenthetical, "()")+")")
		}
		d.block(dialogueOffset, dialogueWidth, line.Line)
		d.Ln(lineHeight)
	}
}

func titleOf(sp domain.Screenplay) string {
	if t := strings.TrimSpace(sp.Title); t != "" {
		return t
	}
	return "Untitled"
}

func authorOf(sp domain.Screenplay) string {
	if a := strings.TrimSpace(sp.Author); a != "" {
		return a
	}
	return domain.DefaultAuthor
}

func draftOf(sp domain.Screenplay) string {
	if d := strings.TrimSpace(sp.Draft); d != "" {
		return d
	}
	return domain.DefaultDraft
}
