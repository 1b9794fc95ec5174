package orders

import (
	"strings"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	"github.com/angelmondragon/medcart-backend/pkg/validation"
)

// DeliveryInfo is supplied with each checkout. Blank address or phone fall
// back to the customer's profile.
type DeliveryInfo struct {
	DeliveryAddress string              `json:"delivery_address" validate:"omitempty,max=500"`
	PhoneNumber     string              `json:"phone_number" validate:"omitempty,phone"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required"`
	Notes           *string             `json:"notes" validate:"omitempty,max=1000"`
}

// resolve fills blanks from the profile and validates the result.
func (d DeliveryInfo) resolve(user *models.User) (DeliveryInfo, error) {
	if err := validation.Struct(d); err != nil {
		return d, err
	}
	if !d.PaymentMethod.IsCheckoutSelectable() {
		return d, validation.FieldError("payment_method", "must be one of cod, card, upi, wallet")
	}

	out := d
	out.DeliveryAddress = strings.TrimSpace(out.DeliveryAddress)
	out.PhoneNumber = strings.TrimSpace(out.PhoneNumber)
	if out.DeliveryAddress == "" && user != nil && user.Address != nil {
		out.DeliveryAddress = strings.TrimSpace(*user.Address)
	}
	if out.PhoneNumber == "" && user != nil && user.Phone != nil {
		out.PhoneNumber = strings.TrimSpace(*user.Phone)
	}

	if out.DeliveryAddress == "" {
		return out, validation.FieldError("delivery_address", "is required")
	}
	if !validation.IsPhoneNumber(out.PhoneNumber) {
		return out, validation.FieldError("phone_number", "must be 10 to 15 digits")
	}
	out.PhoneNumber = validation.NormalizePhone(out.PhoneNumber)
	return out, nil
}

// OrderEdit enumerates the fields an administrator may change after checkout.
// Items, prices and totals are never editable.
type OrderEdit struct {
	DeliveryAddress *string `json:"delivery_address" validate:"omitempty,min=1,max=500"`
	PhoneNumber     *string `json:"phone_number" validate:"omitempty,phone"`
	Notes           *string `json:"notes" validate:"omitempty,max=1000"`
	ClearNotes      bool    `json:"clear_notes"`
}

func (e OrderEdit) Validate() error {
	if err := validation.Struct(e); err != nil {
		return err
	}
	if e.DeliveryAddress != nil && strings.TrimSpace(*e.DeliveryAddress) == "" {
		return validation.FieldError("delivery_address", "must not be blank")
	}
	return nil
}

func (e OrderEdit) IsEmpty() bool {
	return e.DeliveryAddress == nil && e.PhoneNumber == nil && e.Notes == nil && !e.ClearNotes
}

func (e OrderEdit) updates() map[string]any {
	updates := map[string]any{}
	if e.DeliveryAddress != nil {
		updates["delivery_address"] = strings.TrimSpace(*e.DeliveryAddress)
	}
	if e.PhoneNumber != nil {
		updates["phone_number"] = validation.NormalizePhone(*e.PhoneNumber)
	}
	switch {
	case e.ClearNotes:
		updates["notes"] = nil
	case e.Notes != nil:
		updates["notes"] = strings.TrimSpace(*e.Notes)
	}
	return updates
}
