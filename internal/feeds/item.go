// Package feeds aggregates regulatory news from RSS and Atom feeds.
package feeds

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	// MaxPerFeed caps the items kept from a single feed.
	MaxPerFeed = 30
	// MaxPerCategory caps a merged category listing.
	MaxPerCategory = 30
	// MaxSummary is the summary length limit in runes.
	MaxSummary = 800

	defaultTitle   = "Untitled"
	defaultSummary = "No summary available"
)

// Item is a normalised news entry.
type Item struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Summary  string    `json:"summary"`
	Date     time.Time `json:"date"`
	Link     string    `json:"link"`
	Read     bool      `json:"read"`
	Category string    `json:"category"`
	Source   string    `json:"source,omitempty"`
}

// itemID derives a stable id so read flags survive refetches.
func itemID(category, link, title string, date time.Time) string {
	h := sha256.New()
	h.Write([]byte(category))
	h.Write([]byte{0})
	if link != "" {
		h.Write([]byte(link))
	} else {
		h.Write([]byte(title))
		h.Write([]byte{0})
		h.Write([]byte(date.UTC().Format(time.RFC3339)))
	}
	return category + "-" + hex.EncodeToString(h.Sum(nil))[:16]
}
