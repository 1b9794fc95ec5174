package enums

import "fmt"

// ProductType distinguishes regulated medicines from supplements.
type ProductType string

const (
	ProductTypeMedicine   ProductType = "medicine"
	ProductTypeSupplement ProductType = "supplement"
)

var validProductTypes = []ProductType{ProductTypeMedicine, ProductTypeSupplement}

func (p ProductType) String() string {
	return string(p)
}

func (p ProductType) IsValid() bool {
	for _, candidate := range validProductTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParseProductType(value string) (ProductType, error) {
	for _, candidate := range validProductTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product type %q", value)
}
