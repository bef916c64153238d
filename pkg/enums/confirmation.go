package enums

import "fmt"

// ConfirmationType names the handover a confirmation proves.
type ConfirmationType string

const (
	ConfirmationTypeSellerHandover ConfirmationType = "seller_handover"
	ConfirmationTypePSMDeposit     ConfirmationType = "psm_deposit"
	ConfirmationTypeBuyerDelivery  ConfirmationType = "buyer_delivery"
	ConfirmationTypeBuyerPickup    ConfirmationType = "buyer_pickup"
)

var validConfirmationTypes = []ConfirmationType{
	ConfirmationTypeSellerHandover,
	ConfirmationTypePSMDeposit,
	ConfirmationTypeBuyerDelivery,
	ConfirmationTypeBuyerPickup,
}

func (c ConfirmationType) String() string {
	return string(c)
}

func (c ConfirmationType) IsValid() bool {
	for _, candidate := range validConfirmationTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConfirmationType converts raw input into a ConfirmationType.
func ParseConfirmationType(value string) (ConfirmationType, error) {
	for _, candidate := range validConfirmationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid confirmation type %q", value)
}

// ConfirmationMethod is the factor used to prove a handover.
type ConfirmationMethod string

const (
	ConfirmationMethodOTP       ConfirmationMethod = "otp"
	ConfirmationMethodQR        ConfirmationMethod = "qr"
	ConfirmationMethodSignature ConfirmationMethod = "signature"
	ConfirmationMethodPhoto     ConfirmationMethod = "photo"
)

var validConfirmationMethods = []ConfirmationMethod{
	ConfirmationMethodOTP,
	ConfirmationMethodQR,
	ConfirmationMethodSignature,
	ConfirmationMethodPhoto,
}

func (m ConfirmationMethod) IsValid() bool {
	for _, candidate := range validConfirmationMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseConfirmationMethod converts raw input into a ConfirmationMethod.
func ParseConfirmationMethod(value string) (ConfirmationMethod, error) {
	for _, candidate := range validConfirmationMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid confirmation method %q", value)
}
