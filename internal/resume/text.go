// Package resume turns stored resume files into plain text for skill
// extraction.
package resume

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MimePlain = "text/plain"
	MimePDF   = "application/pdf"
	MimeDocx  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var ErrUnsupportedType = errors.New("unsupported resume type")

var xmlTag = regexp.MustCompile(`<[^>]+>`)

// MimeFromKey guesses the type from the object key extension.
func MimeFromKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDocx
	case ".txt", ".md":
		return MimePlain
	}
	return ""
}

func ExtractText(mime string, data []byte) (string, error) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case MimePlain:
		return string(data), nil
	case MimePDF:
		return extractPDFText(data)
	case MimeDocx:
		return extractDocxText(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, mime)
	}
}

func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// extractDocxText drops the WordprocessingML markup so tag and attribute
// names cannot match skill keywords.
func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	defer doc.Close()

	raw := doc.Editable().GetContent()
	text := xmlTag.ReplaceAllString(raw, " ")
	return strings.Join(strings.Fields(text), " "), nil
}
