package loader

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF concatenates the text of every page, one page per line. Pages
// whose content cannot be decoded contribute nothing.
func extractPDF(data []byte) (text string, err error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if _, err := api.ReadContext(bytes.NewReader(data), conf); err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("failed to decode pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		if t := pageText(reader.Page(i)); t != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n"), nil
}

// pageText decodes the shown strings of one page through the encoding and
// ToUnicode map of the font selected for each run.
func pageText(page pdf.Page) string {
	if page.V.IsNull() {
		return ""
	}
	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	text, err := page.GetPlainText(fonts)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Map(dropControl, text))
}

func dropControl(r rune) rune {
	switch {
	case r == '\n', r == '\t':
		return r
	case r < 0x20, r == 0x7f, r == utf8.RuneError:
		return -1
	}
	return r
}
