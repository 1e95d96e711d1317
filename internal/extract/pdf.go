package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, reader.NumPage()*2)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		parts = append(parts, fmt.Sprintf("--- Page %d ---", i))
		if page.V.IsNull() {
			parts = append(parts, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}
