// Package session holds the mutable state of the current editing session:
// the prompt being worked on plus the preference fields that survive
// restarts. Preference mutations write through to the document store.
package session

import (
	"encoding/json"
	"sync"

	"github.com/ShowBamboo/ai-meme-generator/internal/store"
	"github.com/ShowBamboo/ai-meme-generator/pkg/models"
)

// Documents is the slice of the document store the session needs.
type Documents interface {
	Read(key string) ([]byte, bool)
	Write(key string, value []byte) error
}

// Store is the single source of truth for in-progress editing state.
// Setters are total: range clamping is the caller's job, and persistence
// failures are swallowed.
type Store struct {
	mu              sync.Mutex
	prompt          string
	optimizedPrompt string
	prefs           models.Preferences
	docs            Documents
}

// New hydrates the session from the persisted preferences document.
// A missing or corrupt document degrades to defaults.
func New(docs Documents) *Store {
	return &Store{
		prefs: loadPreferences(docs),
		docs:  docs,
	}
}

func loadPreferences(docs Documents) models.Preferences {
	prefs := models.DefaultPreferences()
	if docs == nil {
		return prefs
	}
	data, ok := docs.Read(store.KeyPreferences)
	if !ok {
		return prefs
	}
	var loaded models.Preferences
	if err := json.Unmarshal(data, &loaded); err != nil {
		return prefs
	}
	loaded.Normalize()
	return loaded
}

// persist re-serializes the whole preferences document. Called with mu held.
func (s *Store) persist() {
	if s.docs == nil {
		return
	}
	data, err := json.Marshal(s.prefs)
	if err != nil {
		return
	}
	s.docs.Write(store.KeyPreferences, data)
}

func (s *Store) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

func (s *Store) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
}

func (s *Store) OptimizedPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optimizedPrompt
}

func (s *Store) SetOptimizedPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optimizedPrompt = prompt
}

func (s *Store) Style() models.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Style
}

func (s *Store) SetStyle(style models.Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.Style = style
	s.persist()
}

func (s *Store) StyleStrength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.StyleStrength
}

func (s *Store) SetStyleStrength(strength int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.StyleStrength = strength
	s.persist()
}

func (s *Store) NumVariants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.NumVariants
}

func (s *Store) SetNumVariants(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.NumVariants = n
	s.persist()
}

func (s *Store) MemeMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.MemeMode
}

func (s *Store) SetMemeMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.MemeMode = on
	s.persist()
}

func (s *Store) AutoCaption() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.AutoCaption
}

func (s *Store) SetAutoCaption(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.AutoCaption = on
	s.persist()
}

// SelectedTemplateID returns the active template id, empty when the session
// runs in pure-generation mode.
func (s *Store) SelectedTemplateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.SelectedTemplateID
}

func (s *Store) SetSelectedTemplateID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.SelectedTemplateID = id
	s.persist()
}

// Preferences returns a copy of the persisted preference fields.
func (s *Store) Preferences() models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}
