package httpx

import (
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// PartContentType returns the declared type of an uploaded part, falling
// back to the file extension when the client sent none or a generic one.
func PartContentType(h *multipart.FileHeader) string {
	declared := strings.TrimSpace(h.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(h.Filename))); byExt != "" {
		return byExt
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}
