package policy

import (
	"bytes"
	"errors"
	"image"
	"net/url"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// MaxUploadBytes bounds a single file; larger selections are rejected
// before any optimistic mutation.
const MaxUploadBytes = 50 << 20

var (
	ErrChannelIDRequired   = errors.New("channel id is required")
	ErrNoUploadItems       = errors.New("upload batch is empty")
	ErrFileRequired        = errors.New("file is required")
	ErrEmptyFile           = errors.New("file is empty")
	ErrFileTooLarge        = errors.New("file exceeds the size limit")
	ErrExternalURLRequired = errors.New("external url is required")
	ErrExternalURLInvalid  = errors.New("external url is not a valid http(s) url")
)

func ValidateBatchInput(channelID string, itemCount int) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", ErrChannelIDRequired
	}
	if itemCount == 0 {
		return "", ErrNoUploadItems
	}
	return channelID, nil
}

func ValidateFile(name, mimeType string, size int) (string, string, error) {
	name = strings.TrimSpace(name)
	mimeType = strings.TrimSpace(mimeType)
	if name == "" {
		return "", "", ErrFileRequired
	}
	if size == 0 {
		return "", "", ErrEmptyFile
	}
	if size > MaxUploadBytes {
		return "", "", ErrFileTooLarge
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return name, mimeType, nil
}

func ValidateExternalReference(rawURL, mimeType string) (string, string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", "", ErrExternalURLRequired
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", ErrExternalURLInvalid
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = "image/gif"
	}
	return u.String(), mimeType, nil
}

// IsImageMime reports whether the file goes through the media path,
// which requires client-side dimensions for layout.
func IsImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// ProbeImageDimensions decodes just the header of the image bytes.
// Undecodable data yields zero dimensions, not an error: the upload
// still proceeds and the server may fill them in later.
func ProbeImageDimensions(data []byte) (width, height int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
