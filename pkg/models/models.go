package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrPromptTooLong   = errors.New("prompt exceeds maximum length")
	ErrInvalidStyle    = errors.New("invalid style")
	ErrInvalidStrength = errors.New("style strength must be between 1 and 3")
	ErrInvalidVariants = errors.New("variant count must be between 1 and 6")
	ErrNoImages        = errors.New("response contains no images")
	ErrVariantNotInSet = errors.New("variant is not part of the current result")
)

const (
	MaxPromptLen = 200

	MinStyleStrength = 1
	MaxStyleStrength = 3

	MinVariants = 1
	MaxVariants = 6
)

// Style identifies one of the visual styles the backend understands.
type Style string

const (
	StyleCartoon    Style = "cartoon"
	StyleHandDrawn  Style = "hand-drawn"
	StyleAnime      Style = "anime"
	StyleRealistic  Style = "realistic"
	StyleRetro      Style = "retro"
	StyleMinimalist Style = "minimalist"
)

func ValidStyles() []Style {
	return []Style{StyleCartoon, StyleHandDrawn, StyleAnime, StyleRealistic, StyleRetro, StyleMinimalist}
}

func (s Style) IsValid() bool {
	return slices.Contains(ValidStyles(), s)
}

func (s Style) String() string {
	return string(s)
}

// Preferences is the persisted slice of the editing session. Field names
// match the document the web client wrote, so existing state survives.
type Preferences struct {
	Style              Style  `json:"style"`
	StyleStrength      int    `json:"styleStrength"`
	NumVariants        int    `json:"numVariants"`
	MemeMode           bool   `json:"memeMode"`
	AutoCaption        bool   `json:"autoCaption"`
	SelectedTemplateID string `json:"selectedTemplate"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Style:         StyleCartoon,
		StyleStrength: 2,
		NumVariants:   1,
	}
}

// Normalize clamps out-of-range values back to defaults so a corrupt or
// hand-edited document can never put the session into an invalid state.
func (p *Preferences) Normalize() {
	if !p.Style.IsValid() {
		p.Style = StyleCartoon
	}
	if p.StyleStrength < MinStyleStrength || p.StyleStrength > MaxStyleStrength {
		p.StyleStrength = 2
	}
	if p.NumVariants < MinVariants || p.NumVariants > MaxVariants {
		p.NumVariants = 1
	}
}

// GenerateRequest is the wire shape of a generation call.
type GenerateRequest struct {
	Prompt        string  `json:"prompt"`
	Style         Style   `json:"style"`
	StyleStrength int     `json:"styleStrength,omitempty"`
	NumVariants   int     `json:"numVariants,omitempty"`
	TemplateID    *string `json:"templateId,omitempty"`
	MemeMode      bool    `json:"memeMode,omitempty"`
	AddTextBubble bool    `json:"addTextBubble"`
	Text          string  `json:"text,omitempty"`
}

func (r *GenerateRequest) Validate() error {
	prompt := strings.TrimSpace(r.Prompt)
	if len([]rune(prompt)) > MaxPromptLen {
		return fmt.Errorf("%w: max %d characters", ErrPromptTooLong, MaxPromptLen)
	}
	if !r.Style.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStyle, r.Style)
	}
	if r.StyleStrength != 0 && (r.StyleStrength < MinStyleStrength || r.StyleStrength > MaxStyleStrength) {
		return ErrInvalidStrength
	}
	if r.NumVariants != 0 && (r.NumVariants < MinVariants || r.NumVariants > MaxVariants) {
		return ErrInvalidVariants
	}
	return nil
}

// Variant is one of the images returned for a single generation call.
type Variant struct {
	ID           string `json:"id"`
	ImageURL     string `json:"imageUrl"`
	CreatedAt    string `json:"createdAt"`
	Provider     string `json:"provider,omitempty"`
	IsMock       bool   `json:"isMock,omitempty"`
	VariantIndex int    `json:"variantIndex"`
}

// GenerationResult is the canonical outcome of a successful generation call.
// The legacy single-image response shape is folded into Images before a
// result is constructed, so Images always holds at least one variant.
type GenerationResult struct {
	ID              string
	OptimizedPrompt string
	CreatedAt       string
	Images          []Variant
	Selected        Variant
}

func NewGenerationResult(id, optimizedPrompt, createdAt string, images []Variant) (*GenerationResult, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	return &GenerationResult{
		ID:              id,
		OptimizedPrompt: optimizedPrompt,
		CreatedAt:       createdAt,
		Images:          images,
		Selected:        images[0],
	}, nil
}

func (r *GenerationResult) Primary() Variant {
	return r.Images[0]
}

// Select reassigns the selected variant. The candidate must be a member of
// Images, keeping the displayed image consistent with the variant strip.
func (r *GenerationResult) Select(v Variant) error {
	for _, img := range r.Images {
		if img.ID == v.ID {
			r.Selected = img
			return nil
		}
	}
	return ErrVariantNotInSet
}

// HistoryRecord mirrors the server-side history entry.
type HistoryRecord struct {
	ID              string `json:"id"`
	Prompt          string `json:"prompt"`
	OptimizedPrompt string `json:"optimizedPrompt"`
	Style           Style  `json:"style"`
	ImageURL        string `json:"imageUrl"`
	CreatedAt       string `json:"createdAt"`
	Provider        string `json:"provider,omitempty"`
	IsMock          bool   `json:"isMock,omitempty"`
	StyleStrength   int    `json:"styleStrength,omitempty"`
}

// Template is an immutable catalog entry served by the backend.
type Template struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PreviewURL string `json:"previewUrl"`
	SourceURL  string `json:"sourceUrl,omitempty"`
	License    string `json:"license,omitempty"`
}

// ProviderStatus is a read-only diagnostic snapshot of a backing
// image-generation service.
type ProviderStatus struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Detail  string `json:"detail"`
}

// SyncTemplatesRequest asks the backend to refresh its template catalog
// either from imgflip or from an explicit URL list.
type SyncTemplatesRequest struct {
	Source string   `json:"source"`
	Limit  int      `json:"limit,omitempty"`
	Force  bool     `json:"force,omitempty"`
	URLs   []string `json:"urls,omitempty"`
}

const (
	SyncSourceImgflip = "imgflip"
	SyncSourceURLs    = "urls"
)

// SyncResult summarizes one template sync pass.
type SyncResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SyncTemplatesResult carries the refreshed catalog plus the pass summary.
type SyncTemplatesResult struct {
	Templates []Template `json:"templates"`
	Result    SyncResult `json:"result"`
}
