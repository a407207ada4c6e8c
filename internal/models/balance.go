package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// WeekendMonths maps a month key (YYYY-MM) to the number of weekends already
// consumed in that month. Stored as JSONB.
type WeekendMonths map[string]int

// Value implements driver.Valuer.
func (w WeekendMonths) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner.
func (w *WeekendMonths) Scan(src interface{}) error {
	if src == nil {
		*w = WeekendMonths{}
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported weekend months source %T", src)
	}
	if len(raw) == 0 {
		*w = WeekendMonths{}
		return nil
	}
	return json.Unmarshal(raw, w)
}

// MonthKey formats a date into the map key used by WeekendMonths.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// Balance is the per (user, season) ledger row. ProjectedMax is a
// denormalized cache; eligibility decisions always recompute it live unless a
// manual override is present.
type Balance struct {
	ID              string        `db:"id" json:"id"`
	UserID          string        `db:"user_id" json:"user_id"`
	SeasonID        string        `db:"season_id" json:"season_id"`
	Taken           int           `db:"taken" json:"taken"`
	Mandatory       int           `db:"mandatory" json:"mandatory"`
	LicenseCredit   float64       `db:"license_credit" json:"license_credit"`
	ProjectedMax    int           `db:"projected_max" json:"projected_max"`
	ManualMax       *int          `db:"manual_max" json:"manual_max,omitempty"`
	ManualMaxReason *string       `db:"manual_max_reason" json:"manual_max_reason,omitempty"`
	AdjustedBy      *string       `db:"adjusted_by" json:"adjusted_by,omitempty"`
	BlockUsed       bool          `db:"block_used" json:"block_used"`
	WeekendMonths   WeekendMonths `db:"weekend_months" json:"weekend_months"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// EffectiveMax returns the manual override when set, else the projected max.
func (b *Balance) EffectiveMax() int {
	if b.ManualMax != nil {
		return *b.ManualMax
	}
	return b.ProjectedMax
}

// TotalConsumed sums voluntary, mandatory and license-derived consumption.
// The license component stays fractional for comparisons.
func (b *Balance) TotalConsumed() float64 {
	return float64(b.Taken+b.Mandatory) + b.LicenseCredit
}

// DisplayConsumed floors the fractional license component for presentation.
func (b *Balance) DisplayConsumed() int {
	return int(math.Floor(b.TotalConsumed()))
}

// BalanceDetail enriches Balance with member info for reporting.
type BalanceDetail struct {
	Balance
	UserName  string `db:"user_name" json:"user_name"`
	UserEmail string `db:"user_email" json:"user_email"`
}
