package checkoutapi

import (
	"fmt"
	"net/http"
	"net/url"

	formcodec "github.com/go-playground/form/v4"

	"github.com/MarcGrol/shopcheckout/lib/myerrors"
)

// CheckoutForm is the buyer data collected across the checkout steps
type CheckoutForm struct {
	Contact  ContactInfo `form:"contact" json:"contact"`
	Shipping Address     `form:"shipping" json:"shipping"`
}

type ContactInfo struct {
	Email     string `form:"email" json:"email"`
	FirstName string `form:"firstName" json:"firstName"`
	LastName  string `form:"lastName" json:"lastName"`
	Phone     string `form:"phone" json:"phone"`
}

type Address struct {
	Street      string `form:"street" json:"street"`
	HouseNumber string `form:"houseNumber" json:"houseNumber"`
	PostalCode  string `form:"postalCode" json:"postalCode"`
	City        string `form:"city" json:"city"`
	Country     string `form:"country" json:"country"`
}

func NewFromRequest(r *http.Request) (CheckoutForm, error) {
	err := r.ParseForm()
	if err != nil {
		return CheckoutForm{}, myerrors.NewInvalidInputError(err)
	}
	return NewFromValues(r.Form)
}

func NewFromValues(values url.Values) (CheckoutForm, error) {
	form := CheckoutForm{}
	err := formcodec.NewDecoder().Decode(&form, values)
	if err != nil {
		return form, fmt.Errorf("error decoding form: %s", err)
	}

	return form, nil
}

// ValidateContact reports the missing contact fields. A phone number is
// only required when the order needs shipping.
func (f CheckoutForm) ValidateContact(requirePhone bool) map[string]string {
	violations := map[string]string{}
	if f.Contact.Email == "" {
		violations["contact.email"] = "is required"
	}
	if f.Contact.FirstName == "" {
		violations["contact.firstName"] = "is required"
	}
	if f.Contact.LastName == "" {
		violations["contact.lastName"] = "is required"
	}
	if requirePhone && f.Contact.Phone == "" {
		violations["contact.phone"] = "is required for physical orders"
	}
	return violations
}

func (f CheckoutForm) ValidateShipping() map[string]string {
	violations := map[string]string{}
	if f.Shipping.Street == "" {
		violations["shipping.street"] = "is required"
	}
	if f.Shipping.HouseNumber == "" {
		violations["shipping.houseNumber"] = "is required"
	}
	if f.Shipping.PostalCode == "" {
		violations["shipping.postalCode"] = "is required"
	}
	if f.Shipping.City == "" {
		violations["shipping.city"] = "is required"
	}
	if f.Shipping.Country == "" {
		violations["shipping.country"] = "is required"
	}
	return violations
}
