package api

import "github.com/ShowBamboo/ai-meme-generator/pkg/models"

// generateResponse is the raw wire shape of POST /api/generate. Older
// backend builds omit images[] and carry a single top-level image; the
// client resolves both shapes into models.GenerationResult before anything
// downstream sees them.
type generateResponse struct {
	Success         bool             `json:"success"`
	ID              string           `json:"id,omitempty"`
	ImageURL        string           `json:"imageUrl"`
	OptimizedPrompt string           `json:"optimizedPrompt"`
	CreatedAt       string           `json:"createdAt,omitempty"`
	Provider        string           `json:"provider,omitempty"`
	IsMock          bool             `json:"isMock,omitempty"`
	Images          []models.Variant `json:"images,omitempty"`
	Error           string           `json:"error,omitempty"`
}

type optimizeRequest struct {
	Prompt        string       `json:"prompt"`
	Style         models.Style `json:"style"`
	StyleStrength int          `json:"styleStrength,omitempty"`
	MemeMode      bool         `json:"memeMode,omitempty"`
}

type optimizeResponse struct {
	OptimizedPrompt string `json:"optimizedPrompt"`
}

type captionRequest struct {
	Prompt   string       `json:"prompt"`
	Style    models.Style `json:"style"`
	MemeMode bool         `json:"memeMode"`
	Count    int          `json:"count,omitempty"`
}

type captionResponse struct {
	Caption string `json:"caption"`
}

type captionBatchResponse struct {
	Captions []string `json:"captions"`
}

type upscaleRequest struct {
	ImageURL string `json:"imageUrl"`
}

type upscaleResponse struct {
	ImageURL string `json:"imageUrl"`
}

type providersResponse struct {
	Providers []models.ProviderStatus `json:"providers"`
}

type templatesResponse struct {
	Templates []models.Template `json:"templates"`
}
