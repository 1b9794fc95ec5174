package enums

import "fmt"

type InventoryAlertType string

const (
	InventoryAlertLowStock InventoryAlertType = "low_stock"
	InventoryAlertExpiry   InventoryAlertType = "expiry"
)

func (a InventoryAlertType) String() string {
	return string(a)
}

func (a InventoryAlertType) IsValid() bool {
	return a == InventoryAlertLowStock || a == InventoryAlertExpiry
}

func ParseInventoryAlertType(value string) (InventoryAlertType, error) {
	candidate := InventoryAlertType(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid inventory alert type %q", value)
	}
	return candidate, nil
}
