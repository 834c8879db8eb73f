package enums

import "strings"

// PaymentMethod is the closed set of settlement channels the platform
// prices against. Raw method strings from clients and the gateway are
// normalized through an alias table before any fee lookup.
type PaymentMethod string

const (
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodNetbanking PaymentMethod = "netbanking"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodCOD        PaymentMethod = "cod"
	PaymentMethodUnknown    PaymentMethod = "unknown"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodNetbanking,
	PaymentMethodUPI,
	PaymentMethodCOD,
}

// paymentMethodAliases maps the spellings seen in the wild onto the closed
// enum. Lookups are case-insensitive.
var paymentMethodAliases = map[string]PaymentMethod{
	"card":        PaymentMethodCard,
	"cc":          PaymentMethodCard,
	"credit_card": PaymentMethodCard,
	"debit_card":  PaymentMethodCard,
	"razorpay":    PaymentMethodCard,
	"netbanking":  PaymentMethodNetbanking,
	"nb":          PaymentMethodNetbanking,
	"net_banking": PaymentMethodNetbanking,
	"upi":         PaymentMethodUPI,
	"cod":         PaymentMethodCOD,
	"cash":        PaymentMethodCOD,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresGateway reports whether upfront payment verification applies.
func (p PaymentMethod) RequiresGateway() bool {
	switch p {
	case PaymentMethodCard, PaymentMethodNetbanking, PaymentMethodUPI:
		return true
	default:
		return false
	}
}

// NormalizePaymentMethod maps raw input onto the closed enum. Unmapped
// spellings normalize to PaymentMethodUnknown; they never error because an
// unknown method simply carries a zero platform fee.
func NormalizePaymentMethod(value string) PaymentMethod {
	key := strings.ToLower(strings.TrimSpace(value))
	if method, ok := paymentMethodAliases[key]; ok {
		return method
	}
	return PaymentMethodUnknown
}
