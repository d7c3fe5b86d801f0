// Package engine coordinates the meme generation session: it turns the
// session state into remote calls, applies results back into client state,
// and keeps the generation, caption and upscale workflows independent so
// they can be in flight concurrently.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShowBamboo/ai-meme-generator/internal/history"
	"github.com/ShowBamboo/ai-meme-generator/internal/session"
	"github.com/ShowBamboo/ai-meme-generator/pkg/models"
)

var (
	ErrGenerationInFlight   = errors.New("a generation is already in flight")
	ErrCaptionFetchInFlight = errors.New("a caption fetch is already in flight")
	ErrUpscaleInFlight      = errors.New("an upscale is already in flight")
	ErrTemplateSyncInFlight = errors.New("a template sync is already in flight")
)

// CaptionBatchSize is how many caption candidates one suggestion fetch asks for.
const CaptionBatchSize = 3

// Backend is the remote surface the engine depends on. *api.Client
// implements it; tests substitute a fake.
type Backend interface {
	Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerationResult, error)
	History(ctx context.Context) ([]models.HistoryRecord, error)
	DeleteHistory(ctx context.Context, id string) error
	OptimizePrompt(ctx context.Context, prompt string, style models.Style, styleStrength int, memeMode bool) (string, error)
	Caption(ctx context.Context, prompt string, style models.Style, memeMode bool) (string, error)
	CaptionBatch(ctx context.Context, prompt string, style models.Style, memeMode bool, count int) ([]string, error)
	Upscale(ctx context.Context, imageURL string) (string, error)
	Providers(ctx context.Context) ([]models.ProviderStatus, error)
	Templates(ctx context.Context) ([]models.Template, error)
	SyncTemplates(ctx context.Context, req models.SyncTemplatesRequest) (*models.SyncTemplatesResult, error)
}

// Engine owns the per-workflow state slices. Each workflow has its own
// loading flag and error slot: a caption failure never disturbs a pending
// generation and vice versa. Remote calls run outside the lock.
type Engine struct {
	backend Backend
	session *session.Store
	history *history.Manager

	mu sync.Mutex

	// generation workflow
	result   *models.GenerationResult
	imageURL string
	provider string
	isMock   bool
	loading  bool
	genError string

	// caption workflow
	captions        []string
	selectedCaption string
	captionLoading  bool
	captionError    string

	// upscale workflow
	upscaledImageURL string
	upscaling        bool
	upscaleError     string

	// diagnostics and catalog
	providers      []models.ProviderStatus
	providersError string
	templates      []models.Template
	templatesError string

	// template sync workflow
	templateSyncing     bool
	templateSyncMessage string
	templateSyncError   string
}

func New(backend Backend, sess *session.Store, hist *history.Manager) *Engine {
	return &Engine{
		backend: backend,
		session: sess,
		history: hist,
	}
}

func (e *Engine) Session() *session.Store {
	return e.session
}

func (e *Engine) History() *history.Manager {
	return e.history
}

// Hydrate performs the one-time startup fetches: history, provider status
// and template catalog. Each failure is isolated; a dead backend still
// leaves the engine usable with empty lists.
func (e *Engine) Hydrate(ctx context.Context) {
	if records, err := e.backend.History(ctx); err == nil {
		e.history.Replace(records)
	} else {
		e.history.Replace(nil)
	}

	providers, err := e.backend.Providers(ctx)
	e.mu.Lock()
	if err != nil {
		e.providers = nil
		e.providersError = err.Error()
	} else {
		e.providers = providers
		e.providersError = ""
	}
	e.mu.Unlock()

	templates, err := e.backend.Templates(ctx)
	e.mu.Lock()
	if err != nil {
		e.templates = nil
		e.templatesError = err.Error()
	} else {
		e.templates = templates
		e.templatesError = ""
	}
	e.mu.Unlock()
}

// Generate runs the full produce-a-meme workflow: optional caption
// resolution, request assembly, the remote call, result fan-out and
// history-record creation. An empty prompt is a silent no-op. A second
// call while one is pending is rejected.
func (e *Engine) Generate(ctx context.Context) error {
	prompt := strings.TrimSpace(e.session.Prompt())
	if prompt == "" {
		return nil
	}
	if len([]rune(prompt)) > models.MaxPromptLen {
		err := fmt.Errorf("%w: max %d characters", models.ErrPromptTooLong, models.MaxPromptLen)
		e.mu.Lock()
		e.genError = err.Error()
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return ErrGenerationInFlight
	}
	e.loading = true
	e.genError = ""
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
	}()

	text := prompt
	if e.session.AutoCaption() {
		caption, err := e.resolveCaption(ctx, prompt)
		if err != nil {
			// A caption failure during auto-caption resolution fails the
			// whole generation, not a partial success.
			e.mu.Lock()
			e.genError = err.Error()
			e.mu.Unlock()
			return err
		}
		text = caption
	}

	style := e.session.Style()
	styleStrength := e.session.StyleStrength()

	req := &models.GenerateRequest{
		Prompt:        prompt,
		Style:         style,
		StyleStrength: styleStrength,
		NumVariants:   e.session.NumVariants(),
		MemeMode:      e.session.MemeMode(),
		AddTextBubble: true,
		Text:          text,
	}
	if id := e.session.SelectedTemplateID(); id != "" {
		req.TemplateID = &id
	}

	result, err := e.backend.Generate(ctx, req)
	if err != nil {
		e.mu.Lock()
		e.genError = err.Error()
		e.mu.Unlock()
		return err
	}

	e.session.SetOptimizedPrompt(result.OptimizedPrompt)

	primary := result.Primary()
	e.mu.Lock()
	e.result = result
	e.imageURL = primary.ImageURL
	e.provider = primary.Provider
	e.isMock = primary.IsMock
	e.upscaledImageURL = ""
	e.upscaleError = ""
	e.mu.Unlock()

	e.history.Prepend(e.newHistoryRecord(prompt, style, styleStrength, result))
	return nil
}

// resolveCaption picks the overlay text for auto-caption mode: the
// explicitly selected caption, else the first suggestion, else a fresh
// single-caption fetch. Whichever wins becomes the selected caption.
func (e *Engine) resolveCaption(ctx context.Context, prompt string) (string, error) {
	e.mu.Lock()
	caption := e.selectedCaption
	if caption == "" && len(e.captions) > 0 {
		caption = e.captions[0]
	}
	e.mu.Unlock()

	if caption == "" {
		fetched, err := e.backend.Caption(ctx, prompt, e.session.Style(), e.session.MemeMode())
		if err != nil {
			return "", err
		}
		caption = fetched
	}

	e.mu.Lock()
	e.selectedCaption = caption
	e.mu.Unlock()
	return caption, nil
}

func (e *Engine) newHistoryRecord(prompt string, style models.Style, styleStrength int, result *models.GenerationResult) models.HistoryRecord {
	primary := result.Primary()

	id := result.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := result.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().Format(time.RFC3339)
	}

	return models.HistoryRecord{
		ID:              id,
		Prompt:          prompt,
		OptimizedPrompt: result.OptimizedPrompt,
		Style:           style,
		ImageURL:        primary.ImageURL,
		CreatedAt:       createdAt,
		Provider:        primary.Provider,
		IsMock:          primary.IsMock,
		StyleStrength:   styleStrength,
	}
}

// SelectVariant makes v the displayed image. The caller passes a member of
// the current result's image set; switching invalidates any upscale state
// since upscaling is defined against the displayed image.
func (e *Engine) SelectVariant(v models.Variant) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.result == nil {
		return models.ErrVariantNotInSet
	}
	if err := e.result.Select(v); err != nil {
		return err
	}
	selected := e.result.Selected
	e.imageURL = selected.ImageURL
	e.provider = selected.Provider
	e.isMock = selected.IsMock
	e.upscaledImageURL = ""
	e.upscaleError = ""
	return nil
}

// UpscaleImage runs super-resolution against the currently displayed
// image. No displayed image is a silent no-op. The previous upscale result
// is cleared up front so a stale image is never shown next to a fresh error.
func (e *Engine) UpscaleImage(ctx context.Context) error {
	e.mu.Lock()
	imageURL := e.imageURL
	if imageURL == "" {
		e.mu.Unlock()
		return nil
	}
	if e.upscaling {
		e.mu.Unlock()
		return ErrUpscaleInFlight
	}
	e.upscaling = true
	e.upscaleError = ""
	e.upscaledImageURL = ""
	e.mu.Unlock()

	upscaled, err := e.backend.Upscale(ctx, imageURL)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.upscaling = false
	if err != nil {
		e.upscaleError = err.Error()
		return err
	}
	// The displayed image may have changed while the call was in flight;
	// an upscale of a no-longer-displayed image is dropped.
	if e.imageURL == imageURL {
		e.upscaledImageURL = upscaled
	}
	return nil
}

// FetchCaptions requests a batch of caption candidates for the current
// prompt. On success the candidate list is replaced and the first entry
// becomes the default selection; on failure the stale list is kept.
func (e *Engine) FetchCaptions(ctx context.Context) error {
	prompt := strings.TrimSpace(e.session.Prompt())
	if prompt == "" {
		return nil
	}

	e.mu.Lock()
	if e.captionLoading {
		e.mu.Unlock()
		return ErrCaptionFetchInFlight
	}
	e.captionLoading = true
	e.captionError = ""
	e.mu.Unlock()

	captions, err := e.backend.CaptionBatch(ctx, prompt, e.session.Style(), e.session.MemeMode(), CaptionBatchSize)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.captionLoading = false
	if err != nil {
		e.captionError = err.Error()
		return err
	}
	e.captions = captions
	if len(captions) > 0 {
		e.selectedCaption = captions[0]
	} else {
		e.selectedCaption = ""
	}
	return nil
}

// SelectCaption overrides the default caption selection.
func (e *Engine) SelectCaption(caption string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selectedCaption = caption
}

// SetAutoCaption toggles auto-caption mode. Turning it on with a non-empty
// prompt kicks off a suggestion fetch as a convenience; the fetch outcome
// does not affect the toggle itself.
func (e *Engine) SetAutoCaption(ctx context.Context, on bool) {
	e.session.SetAutoCaption(on)
	if on && strings.TrimSpace(e.session.Prompt()) != "" {
		e.FetchCaptions(ctx)
	}
}

// OptimizePrompt asks the backend to rewrite the current prompt and stores
// the result on the session. An empty prompt is a silent no-op.
func (e *Engine) OptimizePrompt(ctx context.Context) (string, error) {
	prompt := strings.TrimSpace(e.session.Prompt())
	if prompt == "" {
		return "", nil
	}
	optimized, err := e.backend.OptimizePrompt(ctx, prompt, e.session.Style(), e.session.StyleStrength(), e.session.MemeMode())
	if err != nil {
		return "", err
	}
	e.session.SetOptimizedPrompt(optimized)
	return optimized, nil
}

// SelectHistoryItem reconstructs session state from a past record. This is
// a replay, not a re-generation: the record presents as a single image,
// multi-variant and upscale state are discarded.
func (e *Engine) SelectHistoryItem(record models.HistoryRecord) {
	e.session.SetPrompt(record.Prompt)
	e.session.SetOptimizedPrompt(record.OptimizedPrompt)
	e.session.SetStyle(record.Style)
	strength := record.StyleStrength
	if strength == 0 {
		strength = 2
	}
	e.session.SetStyleStrength(strength)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = nil
	e.imageURL = record.ImageURL
	e.provider = record.Provider
	e.isMock = record.IsMock
	e.upscaledImageURL = ""
	e.upscaleError = ""
}

// DeleteHistoryItem removes a record remotely and, only once the remote
// call confirms, from the local cache. A failed delete leaves the cache
// unchanged.
func (e *Engine) DeleteHistoryItem(ctx context.Context, id string) error {
	if err := e.backend.DeleteHistory(ctx, id); err != nil {
		return err
	}
	e.history.Remove(id)
	return nil
}

// ToggleFavorite flips the client-only favorite flag for id.
func (e *Engine) ToggleFavorite(id string) {
	e.history.ToggleFavorite(id)
}

// RefreshHistory re-fetches the server history into the local cache.
func (e *Engine) RefreshHistory(ctx context.Context) error {
	records, err := e.backend.History(ctx)
	if err != nil {
		return err
	}
	e.history.Replace(records)
	return nil
}

// RefreshProviders re-fetches the provider status snapshot.
func (e *Engine) RefreshProviders(ctx context.Context) error {
	providers, err := e.backend.Providers(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.providersError = err.Error()
		return err
	}
	e.providers = providers
	e.providersError = ""
	return nil
}

// RefreshTemplates re-fetches the template catalog.
func (e *Engine) RefreshTemplates(ctx context.Context) error {
	templates, err := e.backend.Templates(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.templatesError = err.Error()
		return err
	}
	e.templates = templates
	e.templatesError = ""
	return nil
}

// SyncTemplates asks the backend to refresh its catalog from imgflip or an
// explicit URL list, then replaces the local catalog with the result.
func (e *Engine) SyncTemplates(ctx context.Context, req models.SyncTemplatesRequest) error {
	e.mu.Lock()
	if e.templateSyncing {
		e.mu.Unlock()
		return ErrTemplateSyncInFlight
	}
	e.templateSyncing = true
	e.templateSyncError = ""
	e.templateSyncMessage = ""
	e.mu.Unlock()

	result, err := e.backend.SyncTemplates(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templateSyncing = false
	if err != nil {
		e.templateSyncError = err.Error()
		return err
	}
	e.templates = result.Templates
	e.templateSyncMessage = fmt.Sprintf("synced: %d added, %d skipped, %d failed",
		result.Result.Added, result.Result.Skipped, result.Result.Failed)
	return nil
}
