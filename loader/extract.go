package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docqa/types"

	"github.com/gabriel-vasile/mimetype"
)

const sniffTextBytes = 100

var mimeToType = map[string]types.FileType{
	"application/pdf": types.FileTypePDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": types.FileTypeDOCX,
	"text/plain": types.FileTypeText,
}

var extToType = map[string]types.FileType{
	".pdf":  types.FileTypePDF,
	".docx": types.FileTypeDOCX,
	".txt":  types.FileTypeText,
}

// DeclaredType resolves the file type from the filename suffix first and the
// MIME type second. FileTypeUnknown means the caller has to sniff.
func DeclaredType(filename, contentType string) types.FileType {
	if ft, ok := extToType[strings.ToLower(filepath.Ext(filename))]; ok {
		return ft
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if ft, ok := mimeToType[mediaType]; ok {
		return ft
	}
	return types.FileTypeUnknown
}

// Sniff guesses the file type from the leading bytes of the document.
func Sniff(data []byte) types.FileType {
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return types.FileTypePDF
	}
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		switch {
		case mt.Is("application/pdf"):
			return types.FileTypePDF
		case mt.Is("application/zip"):
			// docx is a zip container, and so are many other formats;
			// the docx reader rejects the ones it cannot read.
			return types.FileTypeDOCX
		}
	}
	if looksLikeText(data) {
		return types.FileTypeText
	}
	return types.FileTypeUnknown
}

// looksLikeText reports whether the first bytes decode as UTF-8. A rune cut
// off by the sniff window does not count against the input.
func looksLikeText(data []byte) bool {
	head := data
	if len(head) > sniffTextBytes {
		head = head[:sniffTextBytes]
	}
	for len(head) > 0 {
		r, size := utf8.DecodeRune(head)
		if r == utf8.RuneError && size <= 1 {
			if len(data) > sniffTextBytes && !utf8.FullRune(head) {
				return true
			}
			return false
		}
		head = head[size:]
	}
	return true
}

// Extract converts a raw document into plain text. An unknown declared type
// falls back to sniffing the content.
func Extract(data []byte, declared types.FileType) (string, error) {
	ft := declared
	if ft == "" || ft == types.FileTypeUnknown {
		ft = Sniff(data)
	}

	switch ft {
	case types.FileTypePDF:
		return extractPDF(data)
	case types.FileTypeDOCX:
		return extractDOCX(data)
	case types.FileTypeText:
		return extractPlainText(data)
	}
	return "", fmt.Errorf("%w: cannot determine file type, supported types: .pdf, .docx, .txt", types.ErrUnsupportedFormat)
}

// ExtractFile reads a staged document from disk and extracts its text.
func ExtractFile(path string, declared types.FileType) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read staged file: %w", err)
	}
	return Extract(data, declared)
}

func extractPlainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text file is not valid UTF-8", types.ErrUnsupportedFormat)
	}
	return string(data), nil
}
