package models

import "time"

// WaitlistEntry is a FIFO reservation for a freed slot on an event.
// Insertion order is promotion priority; entries are purged at season end.
type WaitlistEntry struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	EventID   string    `db:"event_id" json:"event_id"`
	SeasonID  string    `db:"season_id" json:"season_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
