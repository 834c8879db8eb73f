package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Defaults applied when a setting key has no stored value.
var (
	DefaultTaxRate          = decimal.RequireFromString("5.00")
	DefaultFeePctCard       = decimal.RequireFromString("2.36")
	DefaultFeePctNetbanking = decimal.RequireFromString("1.77")
	DefaultFeePctUPI        = decimal.Zero
	DefaultFeePctCOD        = decimal.Zero
)

var decimalDefaults = map[enums.SettingKey]decimal.Decimal{
	enums.SettingTaxRate:          DefaultTaxRate,
	enums.SettingFeePctCard:       DefaultFeePctCard,
	enums.SettingFeePctNetbanking: DefaultFeePctNetbanking,
	enums.SettingFeePctUPI:        DefaultFeePctUPI,
	enums.SettingFeePctCOD:        DefaultFeePctCOD,
}

var boolDefaults = map[enums.SettingKey]bool{
	enums.SettingGatewayEnabled: true,
	enums.SettingCODEnabled:     true,
	enums.SettingCouponsEnabled: true,
}

// Snapshot is a fixed view of the pricing-relevant settings, read once per
// checkout so every component of a single order computes off the same
// configuration even if an admin changes a value mid-flight.
type Snapshot struct {
	TaxRate        decimal.Decimal
	FeePcts        map[enums.PaymentMethod]decimal.Decimal
	GatewayEnabled bool
	CODEnabled     bool
	CouponsEnabled bool
}

// FeePct returns the platform-fee percentage for a normalized payment
// method. Methods without a configured fee take 0%.
func (s Snapshot) FeePct(method enums.PaymentMethod) decimal.Decimal {
	if pct, ok := s.FeePcts[method]; ok {
		return pct
	}
	return decimal.Zero
}

// ServiceParams groups dependencies for the settings service.
type ServiceParams struct {
	Repo   *Repository
	Logger *logger.Logger
}

// Service exposes typed access to the runtime-mutable settings store.
type Service interface {
	GetString(ctx context.Context, key enums.SettingKey) (string, bool, error)
	GetDecimal(ctx context.Context, key enums.SettingKey, fallback decimal.Decimal) (decimal.Decimal, error)
	GetBool(ctx context.Context, key enums.SettingKey, fallback bool) (bool, error)
	Set(ctx context.Context, key enums.SettingKey, value string) error
	Snapshot(ctx context.Context) (Snapshot, error)
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService builds a settings service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settings repo is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

// GetString returns the raw stored value. The bool reports presence.
func (s *service) GetString(ctx context.Context, key enums.SettingKey) (string, bool, error) {
	row, err := s.repo.Find(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load setting")
	}
	return row.Value, true, nil
}

// GetDecimal parses the stored value as a decimal, applying the fallback
// when the key is absent or unparsable.
func (s *service) GetDecimal(ctx context.Context, key enums.SettingKey, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw, ok, err := s.GetString(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return fallback, nil
	}
	parsed, perr := decimal.NewFromString(strings.TrimSpace(raw))
	if perr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "setting", key.String()), "stored setting is not a valid decimal, using fallback")
		return fallback, nil
	}
	return parsed, nil
}

// GetBool parses the stored value as a boolean, applying the fallback when
// the key is absent or unparsable.
func (s *service) GetBool(ctx context.Context, key enums.SettingKey, fallback bool) (bool, error) {
	raw, ok, err := s.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return fallback, nil
	}
	parsed, pok := parseBool(raw)
	if !pok {
		s.logg.Warn(s.logg.WithField(ctx, "setting", key.String()), "stored setting is not a valid boolean, using fallback")
		return fallback, nil
	}
	return parsed, nil
}

// Set validates and writes a setting value.
func (s *service) Set(ctx context.Context, key enums.SettingKey, value string) error {
	value = strings.TrimSpace(value)
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "setting key is required")
	}
	if value == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "setting value is required")
	}

	if _, isDecimal := decimalDefaults[key]; isDecimal {
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "setting value must be a decimal number").
				WithDetails(map[string]any{"key": key.String(), "value": value})
		}
		if parsed.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "setting value must not be negative").
				WithDetails(map[string]any{"key": key.String(), "value": value})
		}
	}
	if _, isBool := boolDefaults[key]; isBool {
		if _, ok := parseBool(value); !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "setting value must be a boolean").
				WithDetails(map[string]any{"key": key.String(), "value": value})
		}
	}

	if err := s.repo.Upsert(ctx, key, value); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store setting")
	}
	return nil
}

// Snapshot reads all pricing-relevant settings in one pass.
func (s *service) Snapshot(ctx context.Context) (Snapshot, error) {
	stored, err := s.repo.FindAll(ctx)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}

	snap := Snapshot{
		TaxRate: DefaultTaxRate,
		FeePcts: map[enums.PaymentMethod]decimal.Decimal{
			enums.PaymentMethodCard:       DefaultFeePctCard,
			enums.PaymentMethodNetbanking: DefaultFeePctNetbanking,
			enums.PaymentMethodUPI:        DefaultFeePctUPI,
			enums.PaymentMethodCOD:        DefaultFeePctCOD,
		},
		GatewayEnabled: boolDefaults[enums.SettingGatewayEnabled],
		CODEnabled:     boolDefaults[enums.SettingCODEnabled],
		CouponsEnabled: boolDefaults[enums.SettingCouponsEnabled],
	}

	for key, fallback := range decimalDefaults {
		raw, ok := stored[key]
		if !ok {
			continue
		}
		parsed, perr := decimal.NewFromString(strings.TrimSpace(raw))
		if perr != nil || parsed.IsNegative() {
			s.logg.Warn(s.logg.WithField(ctx, "setting", key.String()), "stored setting is invalid, using fallback")
			parsed = fallback
		}
		if key == enums.SettingTaxRate {
			snap.TaxRate = parsed
			continue
		}
		for method := range snap.FeePcts {
			if feeKey, _ := enums.FeePctKey(method); feeKey == key {
				snap.FeePcts[method] = parsed
			}
		}
	}

	for key, fallback := range boolDefaults {
		raw, ok := stored[key]
		if !ok {
			continue
		}
		parsed, pok := parseBool(raw)
		if !pok {
			s.logg.Warn(s.logg.WithField(ctx, "setting", key.String()), "stored setting is invalid, using fallback")
			parsed = fallback
		}
		switch key {
		case enums.SettingGatewayEnabled:
			snap.GatewayEnabled = parsed
		case enums.SettingCODEnabled:
			snap.CODEnabled = parsed
		case enums.SettingCouponsEnabled:
			snap.CouponsEnabled = parsed
		}
	}

	return snap, nil
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}
