package dto

import (
	"time"

	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
)

// WaitlistEntryItem is the API shape of one queue position.
type WaitlistEntryItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	EventID   string    `json:"event_id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// WaitlistResponse is an event's queue in promotion order.
type WaitlistResponse struct {
	EventID string              `json:"event_id"`
	Entries []WaitlistEntryItem `json:"entries"`
}

// PurgeResponse reports how many entries a season purge removed.
type PurgeResponse struct {
	SeasonID string `json:"season_id"`
	Removed  int    `json:"removed"`
}

// WaitlistFromModels maps queue rows into the response shape.
func WaitlistFromModels(eventID string, entries []models.WaitlistEntry) WaitlistResponse {
	items := make([]WaitlistEntryItem, 0, len(entries))
	for i, entry := range entries {
		items = append(items, WaitlistEntryItem{
			ID:        entry.ID,
			UserID:    entry.UserID,
			EventID:   entry.EventID,
			Position:  i + 1,
			CreatedAt: entry.CreatedAt,
		})
	}
	return WaitlistResponse{EventID: eventID, Entries: items}
}
