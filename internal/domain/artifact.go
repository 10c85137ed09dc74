package domain

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Artifact is a generated image or video.
type Artifact struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
	URL      string `json:"url"`
}

// NewArtifact encodes data and exposes it as a data URI. The MIME type is
// sniffed when mime is empty.
func NewArtifact(data []byte, mime string) *Artifact {
	mime = strings.TrimSpace(mime)
	if mime == "" || mime == "application/octet-stream" {
		mime = DetectMIME(data)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return &Artifact{
		Base64:   encoded,
		MimeType: mime,
		URL:      "data:" + mime + ";base64," + encoded,
	}
}

// Bytes decodes the base64 payload.
func (a *Artifact) Bytes() ([]byte, error) {
	if a == nil || a.Base64 == "" {
		return nil, fmt.Errorf("artifact has no payload")
	}
	return base64.StdEncoding.DecodeString(a.Base64)
}

// DetectMIME sniffs the media type of data without parameters.
func DetectMIME(data []byte) string {
	mt := mimetype.Detect(data)
	mime, _, _ := strings.Cut(mt.String(), ";")
	return mime
}

// DecodeImage accepts either raw base64 or a data URI and returns the bytes
// and their media type. Only image payloads are accepted.
func DecodeImage(field, encoded string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, "", NewValidationError(field, "image is required")
	}
	declared := ""
	if strings.HasPrefix(encoded, "data:") {
		header, payload, ok := strings.Cut(encoded, ",")
		if !ok {
			return nil, "", NewValidationError(field, "malformed data uri")
		}
		declared = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		encoded = payload
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", NewValidationError(field, "invalid base64 payload")
	}
	if len(data) == 0 {
		return nil, "", NewValidationError(field, "image is empty")
	}
	mime := DetectMIME(data)
	if !strings.HasPrefix(mime, "image/") {
		if strings.HasPrefix(declared, "image/") {
			mime = declared
		} else {
			return nil, "", NewValidationError(field, "unsupported media type %s", mime)
		}
	}
	return data, mime, nil
}
