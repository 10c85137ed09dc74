package image

import (
	"fmt"
	"strings"
)

// DefaultNegativePrompt captures undesirable artefacts we want the model to avoid.
const DefaultNegativePrompt = "low quality, blurry, distorted face, mismatched skin tone, extra limbs, text artefacts, watermark"

// BuildSwapPrompt turns the caller's optional note into an instruction for a
// text-driven editor. With a reference image the second picture is the face
// donor; without one the caller's prompt is used as is.
func BuildSwapPrompt(note string, hasReference bool) string {
	note = strings.TrimSpace(note)
	if !hasReference {
		return note
	}
	var lines []string
	lines = append(lines,
		"Replace the face of the person in the first image with the face from the second image.",
		"Keep the pose, hair, lighting, clothing and background of the first image unchanged.",
		"Match skin tone and lighting so the result looks like an unedited photograph.")
	if note != "" {
		lines = append(lines, fmt.Sprintf("Additional direction: %s", note))
	}
	return strings.Join(lines, "\n")
}

// BuildClothingPrompt phrases the second pipeline step.
func BuildClothingPrompt(clothing string) string {
	clothing = strings.TrimSpace(clothing)
	if clothing == "" {
		return ""
	}
	return fmt.Sprintf("Change only the clothing of the person in this image to: %s.\n"+
		"Keep the face, body shape, pose, hair and background exactly as they are.", clothing)
}
