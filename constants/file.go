package constants

import "strings"

// Source identifies the ingestion path a document arrived through.
type Source string

const (
	SourceEmail  Source = "email"
	SourceUpload Source = "upload"
)

// AllowedExtensions holds the file extensions accepted for work-order ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFContentType reports whether a MIME type denotes a PDF attachment.
func IsPDFContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "application/pdf" || ct == "application/x-pdf"
}
