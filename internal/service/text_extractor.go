package service

import (
	"fmt"
	"strings"
	"time"

	"contract-lens/internal/domain"
)

// TextSource is implemented by document handles that expose a text layer
// (PDFs do, plain images do not).
type TextSource interface {
	Text(pageNumber int) (string, error)
}

// MetadataSource is implemented by handles that expose document metadata.
type MetadataSource interface {
	Metadata() map[string]string
}

// pageTextTimeout bounds one page's text extraction. MuPDF occasionally
// hangs on damaged content streams; a stuck page becomes an empty page, not
// a stuck upload.
const pageTextTimeout = 90 * time.Second

// extractPageTexts pulls the text of every page, in order. A page that fails
// or times out yields an empty string so the page numbering stays intact.
func extractPageTexts(handle domain.DocumentHandle, logger domain.Logger) []string {
	src, ok := handle.(TextSource)
	if !ok {
		return nil
	}

	numPages := handle.PageCount()
	texts := make([]string, numPages)

	type pageResult struct {
		text string
		err  error
	}

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		resultCh := make(chan pageResult, 1)
		go func(n int) {
			t, e := src.Text(n)
			resultCh <- pageResult{text: t, err: e}
		}(pageNum)

		var text string
		var err error
		select {
		case res := <-resultCh:
			text, err = res.text, res.err
		case <-time.After(pageTextTimeout):
			logger.Warn("Page text extraction timeout; using empty page", "page", pageNum, "total", numPages)
			err = fmt.Errorf("timeout after %v", pageTextTimeout)
			go func() { <-resultCh }() // drain so goroutine can exit
		}

		if err != nil {
			logger.Warn("Failed to extract text from page", "page", pageNum, "total", numPages, "error", err)
			continue
		}
		texts[pageNum-1] = sanitizeText(strings.TrimSpace(text))
	}

	return texts
}

// sanitizeText removes NULL bytes, stray control characters, and surrogate
// code points so the text is safe to JSON-encode and store.
func sanitizeText(text string) string {
	var result strings.Builder
	result.Grow(len(text))

	for _, r := range text {
		switch {
		case r == 0x00:
			// skip
		case r == 0x09 || r == 0x0A || r == 0x0D:
			result.WriteRune(r)
		case r >= 0x20 && r < 0x7F:
			result.WriteRune(r)
		case r >= 0x7F && r <= 0x10FFFF:
			// Surrogates are invalid in JSON.
			if r < 0xD800 || r > 0xDFFF {
				result.WriteRune(r)
			}
		}
	}
	return result.String()
}
