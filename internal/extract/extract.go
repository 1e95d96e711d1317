// Package extract turns uploaded file bytes into text that can be embedded in
// an LLM prompt. Every supported format has its own reader. A failure is
// reported as a placeholder string alongside the underlying error, so callers
// always have something to embed and can still tell that extraction failed.
//
// Supported extensions:
//   - txt, json, yaml, yml, md, csv, log: UTF-8 text
//   - pdf: plain text per page
//   - docx: non-blank body paragraphs
//   - xlsx, xls: tab-separated rows per sheet
//   - jpg, jpeg, png, gif, bmp, webp: a short metadata description
//
// Example:
//
//	res := extract.Extract(data, "report.pdf")
//	if res.Err != nil {
//	    log.Warn().Err(res.Err).Msg("Extraction fell back to placeholder")
//	}
//	prompt += res.Text
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Kind names the extraction branch a file went through.
type Kind string

const (
	KindText        Kind = "text"
	KindPDF         Kind = "pdf"
	KindDOCX        Kind = "docx"
	KindSpreadsheet Kind = "spreadsheet"
	KindImage       Kind = "image"
	KindUnsupported Kind = "unsupported"
)

var extensionKinds = map[string]Kind{
	"txt":  KindText,
	"json": KindText,
	"yaml": KindText,
	"yml":  KindText,
	"md":   KindText,
	"csv":  KindText,
	"log":  KindText,
	"pdf":  KindPDF,
	"docx": KindDOCX,
	"xlsx": KindSpreadsheet,
	"xls":  KindSpreadsheet,
	"jpg":  KindImage,
	"jpeg": KindImage,
	"png":  KindImage,
	"gif":  KindImage,
	"bmp":  KindImage,
	"webp": KindImage,
}

// Result is the outcome of an extraction. Text is always safe to embed.
// Err is non-nil when Text is a placeholder describing a failure.
type Result struct {
	Kind Kind
	Text string
	Err  error
}

// Failed reports whether Text is a failure placeholder.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Extension returns the lowercase extension of fileName without the dot.
// A name without a dot yields the whole lowercase name.
func Extension(fileName string) string {
	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	if ext == "" {
		return strings.ToLower(fileName)
	}
	return strings.ToLower(ext)
}

// Extract converts data into text according to the extension of fileName.
// It never panics and never returns an empty Result for a failure.
func Extract(data []byte, fileName string) Result {
	ext := Extension(fileName)
	kind, ok := extensionKinds[ext]
	if !ok {
		return Result{
			Kind: KindUnsupported,
			Text: fmt.Sprintf("[Unsupported file type: %s]", ext),
			Err:  fmt.Errorf("unsupported file type %q", ext),
		}
	}

	switch kind {
	case KindText:
		if !utf8.Valid(data) {
			return Result{
				Kind: kind,
				Text: fmt.Sprintf("[Binary text file: %s]", fileName),
				Err:  fmt.Errorf("%s is not valid UTF-8", fileName),
			}
		}
		return Result{Kind: kind, Text: string(data)}

	case KindPDF:
		return wrap(kind, "PDF processing error", func() (string, error) { return extractPDF(data) })

	case KindDOCX:
		return wrap(kind, "DOCX processing error", func() (string, error) { return extractDOCX(data) })

	case KindSpreadsheet:
		return wrap(kind, "Excel processing error", func() (string, error) { return extractSpreadsheet(data) })

	default:
		return wrap(kind, "Image processing error", func() (string, error) { return describeImage(data, fileName) })
	}
}

// wrap runs fn, converting both errors and panics from third-party parsers
// into a "[label: message]" placeholder.
func wrap(kind Kind, label string, fn func() (string, error)) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			res = Result{Kind: kind, Text: fmt.Sprintf("[%s: %v]", label, err), Err: err}
		}
	}()

	text, err := fn()
	if err != nil {
		return Result{Kind: kind, Text: fmt.Sprintf("[%s: %v]", label, err), Err: err}
	}
	return Result{Kind: kind, Text: text}
}

// Truncate cuts text to at most limit characters, appending marker when it
// had to cut. Characters are counted as runes.
func Truncate(text string, limit int, marker string) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + marker
}
