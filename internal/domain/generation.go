package domain

import "time"

// GenerationRetention is how long a generation record stays readable.
const GenerationRetention = 72 * time.Hour

// GenerationType distinguishes image and video results in history.
type GenerationType string

const (
	GenerationTypeImage GenerationType = "image"
	GenerationTypeVideo GenerationType = "video"
)

// GenerationRecord is one persisted successful pipeline run.
type GenerationRecord struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Type           GenerationType `json:"type"`
	OriginalURL    string         `json:"originalUrl"`
	ResultURL      string         `json:"resultUrl"`
	Prompt         string         `json:"prompt,omitempty"`
	ClothingPrompt string         `json:"clothingPrompt,omitempty"`
	Method         string         `json:"method,omitempty"`
	Credits        int            `json:"credits"`
	CreatedAt      time.Time      `json:"createdAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`
}

// Stamp sets CreatedAt (when zero) and derives ExpiresAt from it.
func (r *GenerationRecord) Stamp(now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now.UTC()
	}
	r.ExpiresAt = r.CreatedAt.Add(GenerationRetention)
}

// Expired reports whether the record is past its retention at now.
func (r GenerationRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// ActiveGenerations drops records expired at now, keeping order.
func ActiveGenerations(records []GenerationRecord, now time.Time) []GenerationRecord {
	out := make([]GenerationRecord, 0, len(records))
	for _, r := range records {
		if !r.Expired(now) {
			out = append(out, r)
		}
	}
	return out
}
