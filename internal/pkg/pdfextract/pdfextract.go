package pdfextract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// HasText reports whether any page of the PDF carries extractable text.
// It stops at the first page with text.
func HasText(content []byte) (found bool, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			found, err = false, fmt.Errorf("parse pdf failed: %v", r)
		}
	}()

	if len(content) == 0 {
		return false, nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return false, fmt.Errorf("open pdf failed: %w", err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return false, fmt.Errorf("read pdf page %d failed: %w", i, err)
		}
		if strings.TrimSpace(text) != "" {
			return true, nil
		}
	}
	return false, nil
}
