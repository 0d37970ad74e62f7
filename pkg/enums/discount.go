package enums

import "fmt"

// DiscountStatus mirrors the lifecycle states a discount rule can be in.
// DELETED is local-only: upstream deletions are modeled as a status change,
// never as a hard delete of the rule row.
type DiscountStatus string

const (
	DiscountStatusActive    DiscountStatus = "ACTIVE"
	DiscountStatusExpired   DiscountStatus = "EXPIRED"
	DiscountStatusDisabled  DiscountStatus = "DISABLED"
	DiscountStatusScheduled DiscountStatus = "SCHEDULED"
	DiscountStatusDeleted   DiscountStatus = "DELETED"
)

var validDiscountStatuses = []DiscountStatus{
	DiscountStatusActive,
	DiscountStatusExpired,
	DiscountStatusDisabled,
	DiscountStatusScheduled,
	DiscountStatusDeleted,
}

// String implements fmt.Stringer.
func (s DiscountStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DiscountStatus.
func (s DiscountStatus) IsValid() bool {
	for _, candidate := range validDiscountStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDiscountStatus converts raw input into a DiscountStatus.
func ParseDiscountStatus(value string) (DiscountStatus, error) {
	for _, candidate := range validDiscountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount status %q", value)
}

// DiscountType distinguishes code-activated discounts from automatic ones.
type DiscountType string

const (
	DiscountTypeCode      DiscountType = "code"
	DiscountTypeAutomatic DiscountType = "automatic"
)

var validDiscountTypes = []DiscountType{
	DiscountTypeCode,
	DiscountTypeAutomatic,
}

// String implements fmt.Stringer.
func (t DiscountType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known DiscountType.
func (t DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}

// DiscountValueKind discriminates the closed union of discount value shapes.
type DiscountValueKind string

const (
	DiscountValuePercentage  DiscountValueKind = "percentage"
	DiscountValueFixedAmount DiscountValueKind = "fixed_amount"
	DiscountValueBXGY        DiscountValueKind = "bxgy"
	DiscountValueUnknown     DiscountValueKind = "unknown"
)

var validDiscountValueKinds = []DiscountValueKind{
	DiscountValuePercentage,
	DiscountValueFixedAmount,
	DiscountValueBXGY,
	DiscountValueUnknown,
}

// String implements fmt.Stringer.
func (k DiscountValueKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known DiscountValueKind.
func (k DiscountValueKind) IsValid() bool {
	for _, candidate := range validDiscountValueKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseDiscountValueKind converts raw input into a DiscountValueKind.
func ParseDiscountValueKind(value string) (DiscountValueKind, error) {
	for _, candidate := range validDiscountValueKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount value kind %q", value)
}
