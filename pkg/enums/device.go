package enums

import "fmt"

// DeviceType distinguishes the two terminal roles at a station.
type DeviceType string

const (
	DeviceTypePOS             DeviceType = "pos"
	DeviceTypeCustomerDisplay DeviceType = "customer_display"
)

var validDeviceTypes = []DeviceType{
	DeviceTypePOS,
	DeviceTypeCustomerDisplay,
}

// String implements fmt.Stringer.
func (d DeviceType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeviceType.
func (d DeviceType) IsValid() bool {
	for _, candidate := range validDeviceTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeviceType converts raw input into a DeviceType.
func ParseDeviceType(value string) (DeviceType, error) {
	for _, candidate := range validDeviceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid device type %q", value)
}

// SessionStatus tracks the liveness of a device session record.
type SessionStatus string

const (
	SessionStatusOnline SessionStatus = "online"
	SessionStatusIdle   SessionStatus = "idle"
)

var validSessionStatuses = []SessionStatus{
	SessionStatusOnline,
	SessionStatusIdle,
}

// String implements fmt.Stringer.
func (s SessionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SessionStatus.
func (s SessionStatus) IsValid() bool {
	for _, candidate := range validSessionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSessionStatus converts raw input into a SessionStatus.
func ParseSessionStatus(value string) (SessionStatus, error) {
	for _, candidate := range validSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session status %q", value)
}
