package domain

import (
	"fmt"
	"strings"
)

// UtilityType is an external bill category paid through a utility payment.
type UtilityType string

const (
	UtilityElectricity UtilityType = "electricity"
	UtilityWater       UtilityType = "water"
	UtilityMobileTopup UtilityType = "mobile_topup"
)

// ParseUtilityType validates a raw utility type.
func ParseUtilityType(s string) (UtilityType, bool) {
	switch u := UtilityType(s); u {
	case UtilityElectricity, UtilityWater, UtilityMobileTopup:
		return u, true
	}
	return "", false
}

// Title renders "mobile_topup" as "Mobile Topup".
func (u UtilityType) Title() string {
	words := strings.Split(string(u), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// UtilityBill carries the biller reference of a utility payment.
type UtilityBill struct {
	Type        UtilityType
	MeterNumber string
	PhoneNumber string
}

// Validate checks the per-type required reference.
func (b UtilityBill) Validate() error {
	switch b.Type {
	case UtilityElectricity:
		if b.MeterNumber == "" {
			return fmt.Errorf("meter_number is required for electricity payments")
		}
	case UtilityMobileTopup:
		if b.PhoneNumber == "" {
			return fmt.Errorf("phone_number is required for mobile top-up")
		}
	case UtilityWater:
	default:
		return fmt.Errorf("unknown utility type %q", b.Type)
	}
	return nil
}

// Reference is the phone number when present, otherwise the meter number.
func (b UtilityBill) Reference() string {
	if b.PhoneNumber != "" {
		return b.PhoneNumber
	}
	return b.MeterNumber
}
