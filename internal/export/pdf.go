package export

import (
	"bytes"
	"strings"

	"github.com/go-pdf/fpdf"
)

// The core PDF fonts only cover cp1252, which has no arrow glyph.
var pdfReplacer = strings.NewReplacer("→", "->")

func renderPDF(doc document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(doc.stamp.UTC())
	pdf.SetModificationDate(doc.stamp.UTC())
	pdf.SetCatalogSort(true)
	pdf.SetTitle(doc.title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(pdfReplacer.Replace(s)) }

	title := func(s string) {
		pdf.SetFont("Helvetica", "B", 22)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 12, text(s), "", 1, "C", false, 0, "")
		pdf.Ln(2)
	}
	body := func(s string) {
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(0, 6, text(s), "", "L", false)
	}

	pdf.AddPage()
	title(doc.title)
	if doc.language != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 6, text("Language: "+doc.language), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	if len(doc.timecoded) > 0 {
		body(strings.Join(doc.timecoded, "\n"))
	} else {
		body(doc.body)
		if doc.translation != "" {
			pdf.AddPage()
			title("Translation")
			body(doc.translation)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
