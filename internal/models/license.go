package models

import "time"

// License is an approved leave period. On creation it credits a proportional
// share of the events it covers to the user's balance; deleting the license
// reverts the same stored delta.
type License struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	SeasonID  string    `db:"season_id" json:"season_id"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Credit    float64   `db:"credit" json:"credit"`
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Overlaps reports whether the license period intersects [start, end].
func (l *License) Overlaps(start, end time.Time) bool {
	return !l.StartDate.After(end) && !start.After(l.EndDate)
}
