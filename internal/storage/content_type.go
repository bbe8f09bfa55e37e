package storage

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DetectContentType determines the MIME type of an object.
//
// Detection priority:
// 1. providedType, when non-empty
// 2. the key's file extension
// 3. sniffing the first 512 bytes of data
// 4. "application/octet-stream"
func DetectContentType(providedType, key string, data []byte) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(key))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if len(data) > 0 {
		return http.DetectContentType(data)
	}

	return "application/octet-stream"
}

// extensionForContentType returns the file extension used in storage keys.
func extensionForContentType(contentType string) string {
	baseType := strings.Split(contentType, ";")[0]
	baseType = strings.TrimSpace(strings.ToLower(baseType))

	switch baseType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	}

	exts, err := mime.ExtensionsByType(baseType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
