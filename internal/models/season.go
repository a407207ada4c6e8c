package models

import "time"

// Season is the annual scheduling period. Exactly one season is active at a
// time; it is resolved at the handler boundary and passed explicitly to
// services.
type Season struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	Active      bool      `db:"active" json:"active"`
	WorkingDays int       `db:"working_days" json:"working_days"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
