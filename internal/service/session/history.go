package session

import (
	"time"

	"storefront/internal/service/detail"
)

// maxHistory caps the browsing history kept per session.
const maxHistory = 20

// HistoryEntry is one product the shopper opened in the detail overlay.
type HistoryEntry struct {
	Key      string    `json:"key"`
	Title    string    `json:"title"`
	Price    string    `json:"price"`
	Icon     string    `json:"icon,omitempty"`
	ViewedAt time.Time `json:"viewedAt"`
}

// recordViewLocked moves key to the front of the history, newest first.
// Reopening a product refreshes its entry instead of adding another. Callers
// hold s.mu.
func (s *Session) recordViewLocked(key string, v detail.View) {
	entry := HistoryEntry{Key: key, Title: v.Title, Price: v.Price, Icon: v.Icon, ViewedAt: s.now()}
	out := make([]HistoryEntry, 0, len(s.history)+1)
	out = append(out, entry)
	for _, h := range s.history {
		if h.Key != key {
			out = append(out, h)
		}
	}
	if len(out) > maxHistory {
		out = out[:maxHistory]
	}
	s.history = out
}

// ClearHistory forgets every viewed product.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	s.alert = ""
	s.history = nil
	s.mu.Unlock()
}
