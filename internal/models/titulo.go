package models

import "time"

// TituloType classifies a production.
type TituloType string

const (
	TituloOpera   TituloType = "OPERA"
	TituloConcert TituloType = "CONCIERTO"
	TituloBallet  TituloType = "BALLET"
	TituloRecital TituloType = "RECITAL"
	TituloOtro    TituloType = "OTRO"
)

// Titulo is a production (opera, concert, ballet...) within a season,
// comprising multiple rehearsal and performance events.
type Titulo struct {
	ID           string     `db:"id" json:"id"`
	SeasonID     string     `db:"season_id" json:"season_id"`
	Name         string     `db:"name" json:"name"`
	Type         TituloType `db:"type" json:"type"`
	DefaultQuota *int       `db:"default_quota" json:"default_quota,omitempty"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      time.Time  `db:"end_date" json:"end_date"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
