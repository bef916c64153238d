package enums

import "fmt"

// OrderKind tags which storefront an order originated from. All kinds share
// one orders table and one lifecycle.
type OrderKind string

const (
	OrderKindStandard    OrderKind = "standard"
	OrderKindGrocery     OrderKind = "grocery"
	OrderKindLocalMarket OrderKind = "local_market"
)

var validOrderKinds = []OrderKind{
	OrderKindStandard,
	OrderKindGrocery,
	OrderKindLocalMarket,
}

// String implements fmt.Stringer.
func (k OrderKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known OrderKind.
func (k OrderKind) IsValid() bool {
	for _, candidate := range validOrderKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseOrderKind converts raw input into an OrderKind.
func ParseOrderKind(value string) (OrderKind, error) {
	for _, candidate := range validOrderKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order kind %q", value)
}
