package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/orquesta-sinfonica/rotativos-api/internal/dto"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	appErrors "github.com/orquesta-sinfonica/rotativos-api/pkg/errors"
)

type ruleRepository interface {
	List(ctx context.Context) ([]models.RuleConfig, error)
	Get(ctx context.Context, key models.RuleKey) (*models.RuleConfig, error)
	Upsert(ctx context.Context, rule *models.RuleConfig) error
}

type ruleAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type ruleMeta struct {
	Key      models.RuleKey
	Type     models.RuleValueType
	Priority int
	Category string
}

var knownRules = map[models.RuleKey]ruleMeta{
	models.RuleCupoDiario:         {Key: models.RuleCupoDiario, Type: models.RuleValueJSON, Priority: 10, Category: "capacity"},
	models.RuleFinesSemanaMax:     {Key: models.RuleFinesSemanaMax, Type: models.RuleValueInt, Priority: 20, Category: "fairness"},
	models.RuleMaxProyectado:      {Key: models.RuleMaxProyectado, Type: models.RuleValueFlag, Priority: 30, Category: "fairness"},
	models.RuleEnsayosDobles:      {Key: models.RuleEnsayosDobles, Type: models.RuleValueInt, Priority: 40, Category: "capacity"},
	models.RuleFuncionesPorTitulo: {Key: models.RuleFuncionesPorTitulo, Type: models.RuleValueJSON, Priority: 50, Category: "fairness"},
	models.RulePlazoSolicitud:     {Key: models.RulePlazoSolicitud, Type: models.RuleValueInt, Priority: 60, Category: "workflow"},
}

var knownRuleOrder = []models.RuleKey{
	models.RuleCupoDiario,
	models.RuleFinesSemanaMax,
	models.RuleMaxProyectado,
	models.RuleEnsayosDobles,
	models.RuleFuncionesPorTitulo,
	models.RulePlazoSolicitud,
}

// RuleService parses persisted rule rows into the typed set the eligibility
// engine evaluates, and handles the admin configuration surface.
type RuleService struct {
	repo      ruleRepository
	audit     ruleAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRuleService constructs a RuleService.
func NewRuleService(repo ruleRepository, audit ruleAuditLogger, validate *validator.Validate, logger *zap.Logger) *RuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Load reads all rule rows and folds them into a RuleSet. Keys with no row
// keep their defaults; malformed rows fail loudly rather than silently
// falling back. Called fresh on every evaluation.
func (s *RuleService) Load(ctx context.Context) (models.RuleSet, error) {
	set := models.DefaultRuleSet()
	rows, err := s.repo.List(ctx)
	if err != nil {
		return set, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rules")
	}
	for _, row := range rows {
		if err := applyRule(&set, row); err != nil {
			return set, err
		}
	}
	return set, nil
}

// List returns every known rule, merging persisted rows over defaults.
func (s *RuleService) List(ctx context.Context) ([]dto.RuleItem, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rules")
	}
	existing := make(map[models.RuleKey]models.RuleConfig, len(rows))
	for _, row := range rows {
		existing[row.Key] = row
	}

	items := make([]dto.RuleItem, 0, len(knownRuleOrder))
	for _, key := range knownRuleOrder {
		if row, ok := existing[key]; ok {
			items = append(items, dto.RuleFromModel(&row))
			continue
		}
		def := defaultRuleConfig(key)
		items = append(items, dto.RuleFromModel(&def))
	}
	return items, nil
}

// Get returns one rule, falling back to its default when never persisted.
func (s *RuleService) Get(ctx context.Context, key models.RuleKey) (*dto.RuleItem, error) {
	if _, ok := knownRules[key]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown rule key")
	}
	row, err := s.repo.Get(ctx, key)
	if err != nil {
		if err == sql.ErrNoRows {
			def := defaultRuleConfig(key)
			item := dto.RuleFromModel(&def)
			return &item, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get rule")
	}
	item := dto.RuleFromModel(row)
	return &item, nil
}

// Update validates the raw value against the key's schema and upserts it.
func (s *RuleService) Update(ctx context.Context, key models.RuleKey, req dto.UpdateRuleRequest, actor *models.JWTClaims) (*dto.RuleItem, error) {
	meta, ok := knownRules[key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown rule key")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule payload")
	}
	if err := validateRuleValue(key, meta.Type, req.Value); err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, key)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch rule")
	}

	rule := &models.RuleConfig{
		Key:       key,
		Value:     req.Value,
		Type:      meta.Type,
		Enabled:   req.Enabled,
		Priority:  meta.Priority,
		Category:  meta.Category,
		UpdatedBy: actorIDPtr(actor),
	}
	if err := s.repo.Upsert(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rule")
	}

	s.emitAudit(ctx, actor, key, prev, rule)

	item := dto.RuleFromModel(rule)
	return &item, nil
}

func (s *RuleService) emitAudit(ctx context.Context, actor *models.JWTClaims, key models.RuleKey, prev, next *models.RuleConfig) {
	if s.audit == nil {
		return
	}
	var oldBytes []byte
	if prev != nil {
		oldBytes, _ = json.Marshal(map[string]interface{}{"value": prev.Value, "enabled": prev.Enabled})
	}
	newBytes, _ := json.Marshal(map[string]interface{}{"value": next.Value, "enabled": next.Enabled})
	resourceID := string(key)
	log := &models.AuditLog{
		UserID:     actorIDPtr(actor),
		Action:     models.AuditActionRuleUpdate,
		Resource:   "rule",
		ResourceID: &resourceID,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "rule-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record rule audit", zap.Error(err))
	}
}

func applyRule(set *models.RuleSet, row models.RuleConfig) error {
	switch row.Key {
	case models.RuleCupoDiario:
		var quotas models.DailyQuotas
		if err := parseJSONRule(row, &quotas); err != nil {
			return err
		}
		set.CupoDiario = models.QuotaRule{Enabled: row.Enabled, Value: quotas}
	case models.RuleFinesSemanaMax:
		value, err := parseIntRule(row)
		if err != nil {
			return err
		}
		set.FinesSemanaMax = models.IntRule{Enabled: row.Enabled, Value: value}
	case models.RuleMaxProyectado:
		set.MaxProyectado = models.FlagRule{Enabled: row.Enabled}
	case models.RuleEnsayosDobles:
		value, err := parseIntRule(row)
		if err != nil {
			return err
		}
		set.EnsayosDobles = models.IntRule{Enabled: row.Enabled, Value: value}
	case models.RuleFuncionesPorTitulo:
		var caps models.TitleCaps
		if err := parseJSONRule(row, &caps); err != nil {
			return err
		}
		set.FuncionesPorTitulo = models.TitleCapRule{Enabled: row.Enabled, Value: caps}
	case models.RulePlazoSolicitud:
		value, err := parseIntRule(row)
		if err != nil {
			return err
		}
		set.PlazoSolicitud = models.IntRule{Enabled: row.Enabled, Value: value}
	default:
		// Unknown persisted keys are ignored so old rows never break loads.
	}
	return nil
}

func parseIntRule(row models.RuleConfig) (int, error) {
	value, err := strconv.Atoi(row.Value)
	if err != nil || value < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("rule %s holds a malformed integer value", row.Key))
	}
	return value, nil
}

func parseJSONRule(row models.RuleConfig, target interface{}) error {
	if err := json.Unmarshal([]byte(row.Value), target); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("rule %s holds malformed JSON", row.Key))
	}
	return nil
}

func validateRuleValue(key models.RuleKey, valueType models.RuleValueType, raw string) error {
	row := models.RuleConfig{Key: key, Value: raw, Enabled: true}
	switch valueType {
	case models.RuleValueInt:
		_, err := parseIntRule(row)
		return err
	case models.RuleValueJSON:
		switch key {
		case models.RuleCupoDiario:
			var quotas models.DailyQuotas
			if err := parseJSONRule(row, &quotas); err != nil {
				return err
			}
			if quotas.Ensayo < 0 || quotas.EnsayoDoble < 0 || quotas.OperaBallet < 0 || quotas.ConciertoRecital < 0 || quotas.Otro < 0 {
				return appErrors.Clone(appErrors.ErrValidation, "daily quotas must be non-negative")
			}
		case models.RuleFuncionesPorTitulo:
			var caps models.TitleCaps
			if err := parseJSONRule(row, &caps); err != nil {
				return err
			}
			if caps.Umbral < 0 || caps.MaxFijo < 0 || caps.Porcentaje < 0 || caps.Porcentaje > 1 {
				return appErrors.Clone(appErrors.ErrValidation, "title caps out of range")
			}
		}
		return nil
	case models.RuleValueFlag:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unsupported rule value type")
	}
}

func defaultRuleConfig(key models.RuleKey) models.RuleConfig {
	meta := knownRules[key]
	set := models.DefaultRuleSet()
	cfg := models.RuleConfig{
		Key:      key,
		Type:     meta.Type,
		Priority: meta.Priority,
		Category: meta.Category,
	}
	switch key {
	case models.RuleCupoDiario:
		raw, _ := json.Marshal(set.CupoDiario.Value)
		cfg.Value = string(raw)
		cfg.Enabled = set.CupoDiario.Enabled
	case models.RuleFinesSemanaMax:
		cfg.Value = strconv.Itoa(set.FinesSemanaMax.Value)
		cfg.Enabled = set.FinesSemanaMax.Enabled
	case models.RuleMaxProyectado:
		cfg.Value = "true"
		cfg.Enabled = set.MaxProyectado.Enabled
	case models.RuleEnsayosDobles:
		cfg.Value = strconv.Itoa(set.EnsayosDobles.Value)
		cfg.Enabled = set.EnsayosDobles.Enabled
	case models.RuleFuncionesPorTitulo:
		raw, _ := json.Marshal(set.FuncionesPorTitulo.Value)
		cfg.Value = string(raw)
		cfg.Enabled = set.FuncionesPorTitulo.Enabled
	case models.RulePlazoSolicitud:
		cfg.Value = strconv.Itoa(set.PlazoSolicitud.Value)
		cfg.Enabled = set.PlazoSolicitud.Enabled
	}
	return cfg
}

func actorIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}
