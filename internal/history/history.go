// Package history caches a bounded prefix of the server-side generation
// history and layers a client-only favorites set on top of it.
package history

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/ShowBamboo/ai-meme-generator/internal/store"
	"github.com/ShowBamboo/ai-meme-generator/pkg/models"
)

// Cap bounds the cached history prefix. The server may retain more; the
// client only ever shows the newest Cap records.
const Cap = 20

// Documents is the slice of the document store the manager needs.
type Documents interface {
	Read(key string) ([]byte, bool)
	Write(key string, value []byte) error
}

// Filter selects a subset of the cached history for display.
type Filter struct {
	FavoritesOnly bool
	Provider      string // empty or "all" matches every provider
	Query         string // case-insensitive substring over prompt + optimizedPrompt
}

// Manager owns the cached history list (newest first) and the persisted
// favorite-id set. The server stays the source of truth for records;
// favorites are purely client-side.
type Manager struct {
	mu        sync.Mutex
	records   []models.HistoryRecord
	favorites map[string]bool
	docs      Documents
}

// NewManager loads the favorites document; a missing or corrupt document
// degrades to an empty set.
func NewManager(docs Documents) *Manager {
	return &Manager{
		favorites: loadFavorites(docs),
		docs:      docs,
	}
}

func loadFavorites(docs Documents) map[string]bool {
	favorites := make(map[string]bool)
	if docs == nil {
		return favorites
	}
	data, ok := docs.Read(store.KeyFavorites)
	if !ok {
		return favorites
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return favorites
	}
	for _, id := range ids {
		favorites[id] = true
	}
	return favorites
}

// persistFavorites writes the favorite ids as a plain JSON array.
// Called with mu held.
func (m *Manager) persistFavorites() {
	if m.docs == nil {
		return
	}
	ids := make([]string, 0, len(m.favorites))
	for id := range m.favorites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		return
	}
	m.docs.Write(store.KeyFavorites, data)
}

// Replace swaps in a freshly fetched history list, truncated to Cap.
func (m *Manager) Replace(records []models.HistoryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(records) > Cap {
		records = records[:Cap]
	}
	m.records = append([]models.HistoryRecord(nil), records...)
}

// Prepend inserts a new record at the head and evicts past Cap.
func (m *Manager) Prepend(record models.HistoryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]models.HistoryRecord{record}, m.records...)
	if len(m.records) > Cap {
		m.records = m.records[:Cap]
	}
}

// Remove drops the record with the given id, reporting whether it existed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.records {
		if rec.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return true
		}
	}
	return false
}

// Records returns a copy of the cached list, newest first.
func (m *Manager) Records() []models.HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.HistoryRecord(nil), m.records...)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Get looks up a cached record by id.
func (m *Manager) Get(id string) (models.HistoryRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return models.HistoryRecord{}, false
}

// ToggleFavorite flips membership of id in the favorite set and persists
// the set immediately. A favorite id with no matching record is fine: it
// simply matches nothing in the filtered view.
func (m *Manager) ToggleFavorite(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.favorites[id] {
		delete(m.favorites, id)
	} else {
		m.favorites[id] = true
	}
	m.persistFavorites()
}

func (m *Manager) IsFavorite(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.favorites[id]
}

// FavoriteIDs returns the favorite set as a sorted slice.
func (m *Manager) FavoriteIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.favorites))
	for id := range m.favorites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filtered returns the cached records passing every criterion of f,
// preserving newest-first order.
func (m *Manager) Filtered(f Filter) []models.HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.HistoryRecord, 0, len(m.records))
	for _, rec := range m.records {
		if f.FavoritesOnly && !m.favorites[rec.ID] {
			continue
		}
		if f.Provider != "" && f.Provider != "all" && rec.Provider != f.Provider {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(rec.Prompt+rec.OptimizedPrompt), query) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
