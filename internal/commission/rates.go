package commission

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
)

// Rate table keys as stored in commission_rates.key.
const (
	RateKeyPlatformMargin      = "platform_margin"
	RateKeySystemMaintenance   = "system_maintenance"
	RateKeyFastDeliveryAgent   = "fast_delivery_agent"
	RateKeyPSMHelped           = "psm_helped"
	RateKeyPSMReceived         = "psm_received"
	RateKeyPickupDeliveryAgent = "pickup_delivery_agent"
	RateKeyHomeDeliveryFee     = "home_delivery_fee"
	RateKeyReferral            = "referral"
)

// Rates holds every split percentage as a fraction (0.21 == 21%).
type Rates struct {
	PlatformMargin      decimal.Decimal
	SystemMaintenance   decimal.Decimal
	FastDeliveryAgent   decimal.Decimal
	PSMHelped           decimal.Decimal
	PSMReceived         decimal.Decimal
	PickupDeliveryAgent decimal.Decimal
	HomeDeliveryFee     decimal.Decimal
	Referral            decimal.Decimal
}

// DefaultRates are used for any key the rate table does not provide.
func DefaultRates() Rates {
	return Rates{
		PlatformMargin:      decimal.RequireFromString("0.21"),
		SystemMaintenance:   decimal.RequireFromString("0.01"),
		FastDeliveryAgent:   decimal.RequireFromString("0.70"),
		PSMHelped:           decimal.RequireFromString("0.25"),
		PSMReceived:         decimal.RequireFromString("0.15"),
		PickupDeliveryAgent: decimal.RequireFromString("0.70"),
		HomeDeliveryFee:     decimal.RequireFromString("0.06"),
		Referral:            decimal.Zero,
	}
}

// RatesFromConfig converts the env-configured fallback table.
func RatesFromConfig(cfg config.CommissionConfig) Rates {
	return Rates{
		PlatformMargin:      decimal.NewFromFloat(cfg.PlatformMarginRate),
		SystemMaintenance:   decimal.NewFromFloat(cfg.SystemMaintenanceRate),
		FastDeliveryAgent:   decimal.NewFromFloat(cfg.FastDeliveryAgentRate),
		PSMHelped:           decimal.NewFromFloat(cfg.PSMHelpedRate),
		PSMReceived:         decimal.NewFromFloat(cfg.PSMReceivedRate),
		PickupDeliveryAgent: decimal.NewFromFloat(cfg.PickupDeliveryAgentRate),
		HomeDeliveryFee:     decimal.NewFromFloat(cfg.HomeDeliveryFeeRate),
		Referral:            decimal.NewFromFloat(cfg.ReferralRate),
	}
}

func (r *Rates) slot(key string) *decimal.Decimal {
	switch key {
	case RateKeyPlatformMargin:
		return &r.PlatformMargin
	case RateKeySystemMaintenance:
		return &r.SystemMaintenance
	case RateKeyFastDeliveryAgent:
		return &r.FastDeliveryAgent
	case RateKeyPSMHelped:
		return &r.PSMHelped
	case RateKeyPSMReceived:
		return &r.PSMReceived
	case RateKeyPickupDeliveryAgent:
		return &r.PickupDeliveryAgent
	case RateKeyHomeDeliveryFee:
		return &r.HomeDeliveryFee
	case RateKeyReferral:
		return &r.Referral
	default:
		return nil
	}
}

// RateSource yields the rate table for one operation.
type RateSource interface {
	GetRates(ctx context.Context) (Rates, error)
}

// StaticRates serves a fixed table.
type StaticRates Rates

func (s StaticRates) GetRates(context.Context) (Rates, error) {
	return Rates(s), nil
}

type tableRateSource struct {
	db       *gorm.DB
	defaults Rates
	logg     *logger.Logger
}

// NewTableRateSource reads commission_rates, falling back per key to defaults.
func NewTableRateSource(db *gorm.DB, defaults Rates, logg *logger.Logger) (RateSource, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	return &tableRateSource{db: db, defaults: defaults, logg: logg}, nil
}

// GetRates never fails: lookup errors and malformed rows fall back to the
// defaults and are logged.
func (s *tableRateSource) GetRates(ctx context.Context) (Rates, error) {
	rates := s.defaults

	var rows []models.CommissionRate
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		s.warn(ctx, map[string]any{"error": err.Error()}, "commission rate lookup failed, using defaults")
		return rates, nil
	}

	for _, row := range rows {
		key := strings.ToLower(strings.TrimSpace(row.Key))
		slot := rates.slot(key)
		if slot == nil {
			continue
		}
		pct, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(row.Percentage, "%")))
		if err != nil || pct.IsNegative() || pct.GreaterThan(hundred) {
			s.warn(ctx, map[string]any{"key": key, "value": row.Percentage}, "malformed commission rate, using default")
			continue
		}
		*slot = pct.Div(hundred)
	}
	return rates, nil
}

func (s *tableRateSource) warn(ctx context.Context, fields map[string]any, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), msg)
}
