package analysis

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ValidateText rejects missing, empty and whitespace-only report text.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid(ErrEmptyReport)
	}
	return nil
}

// ValidateImage sniffs the payload and returns its detected MIME type.
// Both the detected type and any declared type must be image/*.
func ValidateImage(img ImageRequest) (string, error) {
	if len(img.Data) == 0 {
		return "", invalid(ErrMissingImage)
	}
	detected := mimetype.Detect(img.Data)
	if !isImage(detected.String()) {
		return "", invalid(ErrNotImage)
	}
	if img.MIMEType != "" && img.MIMEType != "application/octet-stream" && !isImage(img.MIMEType) {
		return "", invalid(ErrNotImage)
	}
	mt, _, _ := mime.ParseMediaType(detected.String())
	return mt, nil
}

func isImage(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "image/")
}
