package engine

import "github.com/ShowBamboo/ai-meme-generator/pkg/models"

// Snapshot is an immutable copy of the engine state for consumers. The
// derived accessors keep presentation-level lookups out of the UI layer.
type Snapshot struct {
	Prompt          string
	OptimizedPrompt string
	Preferences     models.Preferences

	ImageURL string
	Images   []models.Variant
	Selected *models.Variant
	Provider string
	IsMock   bool
	Loading  bool
	Error    string

	Captions        []string
	SelectedCaption string
	CaptionLoading  bool
	CaptionError    string

	UpscaledImageURL string
	Upscaling        bool
	UpscaleError     string

	Providers      []models.ProviderStatus
	ProvidersError string
	Templates      []models.Template
	TemplatesError string

	TemplateSyncing     bool
	TemplateSyncMessage string
	TemplateSyncError   string

	History     []models.HistoryRecord
	FavoriteIDs []string
}

// Snapshot captures a consistent view of the engine state.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Prompt:          e.session.Prompt(),
		OptimizedPrompt: e.session.OptimizedPrompt(),
		Preferences:     e.session.Preferences(),
		History:         e.history.Records(),
		FavoriteIDs:     e.history.FavoriteIDs(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snap.ImageURL = e.imageURL
	snap.Provider = e.provider
	snap.IsMock = e.isMock
	snap.Loading = e.loading
	snap.Error = e.genError
	if e.result != nil {
		snap.Images = append([]models.Variant(nil), e.result.Images...)
		selected := e.result.Selected
		snap.Selected = &selected
	}

	snap.Captions = append([]string(nil), e.captions...)
	snap.SelectedCaption = e.selectedCaption
	snap.CaptionLoading = e.captionLoading
	snap.CaptionError = e.captionError

	snap.UpscaledImageURL = e.upscaledImageURL
	snap.Upscaling = e.upscaling
	snap.UpscaleError = e.upscaleError

	snap.Providers = append([]models.ProviderStatus(nil), e.providers...)
	snap.ProvidersError = e.providersError
	snap.Templates = append([]models.Template(nil), e.templates...)
	snap.TemplatesError = e.templatesError

	snap.TemplateSyncing = e.templateSyncing
	snap.TemplateSyncMessage = e.templateSyncMessage
	snap.TemplateSyncError = e.templateSyncError

	return snap
}

// EnabledProviderCount reports how many backing providers are live.
func (s *Snapshot) EnabledProviderCount() int {
	count := 0
	for _, p := range s.Providers {
		if p.Enabled {
			count++
		}
	}
	return count
}

// ActiveProvider returns the first enabled provider, if any.
func (s *Snapshot) ActiveProvider() (models.ProviderStatus, bool) {
	for _, p := range s.Providers {
		if p.Enabled {
			return p, true
		}
	}
	return models.ProviderStatus{}, false
}

// CurrentTemplate resolves the selected template id against the catalog.
func (s *Snapshot) CurrentTemplate() (models.Template, bool) {
	id := s.Preferences.SelectedTemplateID
	if id == "" {
		return models.Template{}, false
	}
	for _, t := range s.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return models.Template{}, false
}

// DisplayImageURL is the image the user should see right now: the upscaled
// result when one exists, otherwise the selected variant's image.
func (s *Snapshot) DisplayImageURL() string {
	if s.UpscaledImageURL != "" {
		return s.UpscaledImageURL
	}
	return s.ImageURL
}
