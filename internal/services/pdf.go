package services

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDFText concatenates the plain text of every readable page, trimmed.
// Pages that fail to decode are skipped. The reader panics on some malformed
// files, which is reported as an error.
func extractPDFText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
	}
	return strings.TrimSpace(b.String()), nil
}
