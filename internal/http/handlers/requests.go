package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"faceswap/internal/domain"
	"faceswap/internal/providers/image"
)

// maxBodyBytes bounds JSON bodies; images arrive base64 encoded.
const maxBodyBytes = 25 << 20

type jobRequest struct {
	SourceImage    string   `json:"sourceImage"`
	SourceImages   []string `json:"sourceImages,omitempty"`
	ReferenceImage string   `json:"referenceImage,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
}

type pipelineRequest struct {
	SourceImage    string `json:"sourceImage"`
	ReferenceImage string `json:"referenceImage,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
	ClothingPrompt string `json:"clothingPrompt,omitempty"`
	Provider       string `json:"provider,omitempty"`
}

type videoRequest struct {
	SourceImage string `json:"sourceImage"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type startedResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return domain.NewValidationError("body", "request body is empty")
		}
		return domain.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}

func decodeSource(field, encoded string) (image.SourceImage, error) {
	data, mime, err := domain.DecodeImage(field, encoded)
	if err != nil {
		return image.SourceImage{}, err
	}
	return image.SourceImage{Data: data, MIME: mime}, nil
}

func decodeOptional(field, encoded string) (*image.SourceImage, error) {
	if encoded == "" {
		return nil, nil
	}
	img, err := decodeSource(field, encoded)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// sources collects sourceImage followed by any sourceImages.
func (j jobRequest) sources() ([]image.SourceImage, error) {
	encoded := j.SourceImages
	if j.SourceImage != "" {
		encoded = append([]string{j.SourceImage}, encoded...)
	}
	if len(encoded) == 0 {
		return nil, domain.NewValidationError("sourceImage", "image is required")
	}
	if len(encoded) > image.MaxSourceImages {
		return nil, domain.NewValidationError("sourceImages", "at most %d source images are accepted", image.MaxSourceImages)
	}
	out := make([]image.SourceImage, 0, len(encoded))
	for i, e := range encoded {
		img, err := decodeSource(fmt.Sprintf("sourceImages[%d]", i), e)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}
