package models

import "time"

// EventKind distinguishes rehearsals from performances.
type EventKind string

const (
	EventEnsayo  EventKind = "ENSAYO"
	EventFuncion EventKind = "FUNCION"
)

// Event is a single rehearsal or performance. QuotaOverride, when present,
// always wins over the rule-derived quota.
type Event struct {
	ID            string     `db:"id" json:"id"`
	SeasonID      string     `db:"season_id" json:"season_id"`
	TituloID      *string    `db:"titulo_id" json:"titulo_id,omitempty"`
	Date          time.Time  `db:"date" json:"date"`
	Kind          EventKind  `db:"kind" json:"kind"`
	QuotaOverride *int       `db:"quota_override" json:"quota_override,omitempty"`
	Doble         bool       `db:"doble" json:"doble"`
	StartTime     *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime       *time.Time `db:"end_time" json:"end_time,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// EventDetail enriches Event with title info needed for quota derivation.
type EventDetail struct {
	Event
	TituloName         *string     `db:"titulo_name" json:"titulo_name,omitempty"`
	TituloType         *TituloType `db:"titulo_type" json:"titulo_type,omitempty"`
	TituloDefaultQuota *int        `db:"titulo_default_quota" json:"titulo_default_quota,omitempty"`
}

// IsWeekend reports whether the event falls on a Saturday or Sunday.
func (e *Event) IsWeekend() bool {
	wd := e.Date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
