package models

import "time"

// RuleKey identifies a configurable eligibility rule.
type RuleKey string

const (
	RuleCupoDiario         RuleKey = "CUPO_DIARIO"
	RuleFinesSemanaMax     RuleKey = "FINES_SEMANA_MAX"
	RuleMaxProyectado      RuleKey = "MAX_PROYECTADO"
	RuleEnsayosDobles      RuleKey = "ENSAYOS_DOBLES"
	RuleFuncionesPorTitulo RuleKey = "FUNCIONES_POR_TITULO"
	RulePlazoSolicitud     RuleKey = "PLAZO_SOLICITUD"
)

// RuleValueType declares how a rule's raw value is parsed.
type RuleValueType string

const (
	RuleValueInt  RuleValueType = "INT"
	RuleValueJSON RuleValueType = "JSON"
	RuleValueFlag RuleValueType = "FLAG"
)

// RuleConfig is a persisted rule row. Value is the raw representation; it is
// parsed and validated into the typed RuleSet at load time.
type RuleConfig struct {
	Key       RuleKey       `db:"key" json:"key"`
	Value     string        `db:"value" json:"value"`
	Type      RuleValueType `db:"type" json:"type"`
	Enabled   bool          `db:"enabled" json:"enabled"`
	Priority  int           `db:"priority" json:"priority"`
	Category  string        `db:"category" json:"category"`
	UpdatedBy *string       `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// DailyQuotas holds per-kind slot quotas used when an event carries no
// override. Performances bucket by title type: opera and ballet share one
// quota, concert and recital another.
type DailyQuotas struct {
	Ensayo           int `json:"ensayo"`
	EnsayoDoble      int `json:"ensayoDoble"`
	OperaBallet      int `json:"operaBallet"`
	ConciertoRecital int `json:"conciertoRecital"`
	Otro             int `json:"otro"`
}

// TitleCaps bounds how many performances of one title a user may take.
// Titles with at most Umbral performances allow MaxFijo rotations; larger
// titles allow ceil(Porcentaje * performances).
type TitleCaps struct {
	Umbral     int     `json:"umbral"`
	MaxFijo    int     `json:"maxFijo"`
	Porcentaje float64 `json:"porcentaje"`
}

// IntRule is an enabled-gated integer threshold.
type IntRule struct {
	Enabled bool `json:"enabled"`
	Value   int  `json:"value"`
}

// FlagRule is an enabled-gated rule whose threshold is computed live.
type FlagRule struct {
	Enabled bool `json:"enabled"`
}

// QuotaRule is an enabled-gated DailyQuotas value.
type QuotaRule struct {
	Enabled bool        `json:"enabled"`
	Value   DailyQuotas `json:"value"`
}

// TitleCapRule is an enabled-gated TitleCaps value.
type TitleCapRule struct {
	Enabled bool      `json:"enabled"`
	Value   TitleCaps `json:"value"`
}

// RuleSet is the validated, strongly typed configuration the eligibility
// engine evaluates against. One variant per rule key.
type RuleSet struct {
	CupoDiario         QuotaRule
	FinesSemanaMax     IntRule
	MaxProyectado      FlagRule
	EnsayosDobles      IntRule
	FuncionesPorTitulo TitleCapRule
	PlazoSolicitud     IntRule
}

// DefaultRuleSet returns the seed configuration used when a key is absent.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		CupoDiario: QuotaRule{Enabled: true, Value: DailyQuotas{
			Ensayo:           2,
			EnsayoDoble:      1,
			OperaBallet:      3,
			ConciertoRecital: 2,
			Otro:             1,
		}},
		FinesSemanaMax:     IntRule{Enabled: true, Value: 1},
		MaxProyectado:      FlagRule{Enabled: true},
		EnsayosDobles:      IntRule{Enabled: true, Value: 1},
		FuncionesPorTitulo: TitleCapRule{Enabled: true, Value: TitleCaps{Umbral: 4, MaxFijo: 2, Porcentaje: 0.5}},
		PlazoSolicitud:     IntRule{Enabled: true, Value: 1},
	}
}

// QuotaFor resolves the rule-derived quota for an event of the given kind and
// title type.
func (q DailyQuotas) QuotaFor(kind EventKind, tituloType TituloType, doble bool) int {
	if kind == EventEnsayo {
		if doble {
			return q.EnsayoDoble
		}
		return q.Ensayo
	}
	switch tituloType {
	case TituloOpera, TituloBallet:
		return q.OperaBallet
	case TituloConcert, TituloRecital:
		return q.ConciertoRecital
	default:
		return q.Otro
	}
}
