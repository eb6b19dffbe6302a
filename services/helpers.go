package services

import (
	"fmt"
	"mime"
	"path"
	"strings"
)

// attachmentExtension picks a file extension from the original filename,
// falling back to the content type.
func attachmentExtension(filename, contentType string) (string, error) {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" && len(ext) <= 10 {
		return ext, nil
	}
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "application/pdf":
		return ".pdf", nil
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0], nil
	}
	return "", fmt.Errorf("could not determine file extension from content type: '%s'", contentType)
}
