package validation

import (
	"testing"

	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

type sample struct {
	Name  string  `json:"name" validate:"required"`
	Phone string  `json:"phone_number" validate:"required,phone"`
	Kind  *string `json:"kind" validate:"omitempty,oneof=medicine supplement"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	kind := "candy"
	err := Struct(sample{Phone: "12", Kind: &kind})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details type %T", typed.Details())
	}
	for _, field := range []string{"name", "phone_number", "kind"} {
		if _, ok := details[field]; !ok {
			t.Fatalf("expected %s in details %v", field, details)
		}
	}
}

func TestIsPhoneNumber(t *testing.T) {
	tests := map[string]bool{
		"+91 98765-43210":  true,
		"9876543210":       true,
		"98765":            false,
		"98765abc10":       false,
		"1234567890123456": false,
	}
	for in, want := range tests {
		if got := IsPhoneNumber(in); got != want {
			t.Fatalf("IsPhoneNumber(%q) = %v, want %v", in, got, want)
		}
	}
	if NormalizePhone(" +1-555 010 9999 ") != "15550109999" {
		t.Fatalf("unexpected normalization %q", NormalizePhone(" +1-555 010 9999 "))
	}
}
