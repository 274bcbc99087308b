package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Pipeline defaults.
const (
	DefaultPageChunkSize = 10
	DefaultMaxFileBytes  = 50 * 1024 * 1024
	DefaultMaxPages      = 500
)

// Validation errors for uploaded files. These surface synchronously at
// submission time; a job is never created for an invalid file.
var (
	ErrNotPDF       = errors.New("file is not a valid PDF")
	ErrFileTooLarge = errors.New("file exceeds the maximum allowed size")
	ErrTooManyPages = errors.New("document exceeds the maximum page count")
	ErrEmptyFile    = errors.New("file is empty")
)

// pdfSignature is the magic prefix of every well-formed PDF file.
var pdfSignature = []byte("%PDF-")

// Limits bounds the size and page count of an accepted upload.
type Limits struct {
	MaxFileBytes int64
	MaxPages     int
}

// DefaultLimits returns the standard upload limits.
func DefaultLimits() Limits {
	return Limits{MaxFileBytes: DefaultMaxFileBytes, MaxPages: DefaultMaxPages}
}

// Validate checks that data is a well-formed PDF within the given limits and
// returns its page count.
func Validate(data []byte, limits Limits) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyFile
	}

	if limits.MaxFileBytes > 0 && int64(len(data)) > limits.MaxFileBytes {
		return 0, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	if !bytes.HasPrefix(data, pdfSignature) {
		return 0, ErrNotPDF
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	pages := reader.NumPage()
	if pages < 1 {
		return 0, fmt.Errorf("%w: no pages", ErrNotPDF)
	}

	if limits.MaxPages > 0 && pages > limits.MaxPages {
		return 0, fmt.Errorf("%w: %d pages", ErrTooManyPages, pages)
	}

	return pages, nil
}

// PageRange identifies a contiguous, 1-based, inclusive page interval.
type PageRange struct {
	Start int
	End   int
}

// Label renders the range the way chunks record it, e.g. "1-10" or "11".
func (r PageRange) Label() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// SplitPageRanges partitions pages into consecutive ranges of at most
// chunkSize pages. The final range absorbs any remainder shorter than
// chunkSize.
func SplitPageRanges(pages, chunkSize int) []PageRange {
	if pages <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultPageChunkSize
	}

	ranges := make([]PageRange, 0, (pages+chunkSize-1)/chunkSize)
	for start := 1; start <= pages; start += chunkSize {
		end := start + chunkSize - 1
		if end > pages {
			end = pages
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}

	return ranges
}

// ExtractText extracts the plain text of the given page range from the PDF
// bytes. Pages with no extractable text contribute nothing; the result is
// trimmed, so fully image-based ranges come back empty.
func ExtractText(data []byte, r PageRange) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := r.Start; i <= r.End && i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the whole range.
			continue
		}

		if t := strings.TrimSpace(text); t != "" {
			sb.WriteString(t)
			sb.WriteString("\n")
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
