// Package report inspects downloaded referee-report PDFs.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

type Info struct {
	Pages int
	Text  string
}

// Inspect parses a referee report PDF from memory, returning its page
// count and plain text. Reports are occasionally free-text comments
// wrapped in a one-page PDF, the text is what the correlator and the
// analytics care about.
func Inspect(contents []byte) (info Info, err error) {
	// the pdf library panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			info = Info{}
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(contents), int64(len(contents)))
	if err != nil {
		return Info{}, fmt.Errorf("failed to parse pdf: %w", err)
	}

	pages := reader.NumPage()
	var text strings.Builder
	for i := 1; i <= pages; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(content)
	}

	return Info{
		Pages: pages,
		Text:  text.String(),
	}, nil
}
