package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/xuri/excelize/v2"
)

const docxBodyPart = "word/document.xml"

// extractDOCX returns the top-level paragraphs of the document, skipping
// blank ones. Paragraphs inside tables are not included.
func extractDOCX(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a docx archive: %w", err)
	}
	// Parse leaves the document name unset when the body part is absent.
	if doc.Document.XMLName.Local == "" {
		return "", errors.New("missing " + docxBodyPart)
	}

	var kept []string
	for _, item := range doc.Document.Body.Items {
		p, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if text := p.String(); strings.TrimSpace(text) != "" {
			kept = append(kept, text)
		}
	}
	return strings.Join(kept, "\n"), nil
}

// extractSpreadsheet emits a marker per sheet followed by tab-joined rows.
// Rows with no values are skipped.
func extractSpreadsheet(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		lines = append(lines, fmt.Sprintf("--- Sheet: %s ---", sheet))

		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			if rowIsEmpty(row) {
				continue
			}
			lines = append(lines, strings.Join(row, "\t"))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
