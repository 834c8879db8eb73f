package enums

// SettingKey identifies a runtime-mutable business setting. Values are
// stored as strings and parsed by the settings service's typed getters.
type SettingKey string

const (
	SettingTaxRate          SettingKey = "tax_rate"
	SettingFeePctCard       SettingKey = "fee_pct_card"
	SettingFeePctNetbanking SettingKey = "fee_pct_netbanking"
	SettingFeePctUPI        SettingKey = "fee_pct_upi"
	SettingFeePctCOD        SettingKey = "fee_pct_cod"
	SettingGatewayEnabled   SettingKey = "gateway_enabled"
	SettingCODEnabled       SettingKey = "cod_enabled"
	SettingCouponsEnabled   SettingKey = "coupons_enabled"
)

var validSettingKeys = []SettingKey{
	SettingTaxRate,
	SettingFeePctCard,
	SettingFeePctNetbanking,
	SettingFeePctUPI,
	SettingFeePctCOD,
	SettingGatewayEnabled,
	SettingCODEnabled,
	SettingCouponsEnabled,
}

func (k SettingKey) String() string {
	return string(k)
}

// IsValid reports whether the value is a known SettingKey.
func (k SettingKey) IsValid() bool {
	for _, candidate := range validSettingKeys {
		if candidate == k {
			return true
		}
	}
	return false
}

// FeePctKey maps a normalized payment method to the setting that stores
// its platform-fee percentage. Unknown methods have no key and take a
// zero fee.
func FeePctKey(method PaymentMethod) (SettingKey, bool) {
	switch method {
	case PaymentMethodCard:
		return SettingFeePctCard, true
	case PaymentMethodNetbanking:
		return SettingFeePctNetbanking, true
	case PaymentMethodUPI:
		return SettingFeePctUPI, true
	case PaymentMethodCOD:
		return SettingFeePctCOD, true
	default:
		return "", false
	}
}
