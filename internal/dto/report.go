package dto

import "time"

// ReportResponse points at a generated report file through a signed URL.
type ReportResponse struct {
	SeasonID  string    `json:"season_id"`
	Format    string    `json:"format"`
	FileName  string    `json:"file_name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
