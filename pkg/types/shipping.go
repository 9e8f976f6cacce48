package types

import "strings"

// ShippingInfo is the free-form delivery block captured at order time.
// Stored as jsonb on orders.
type ShippingInfo struct {
	RecipientName string  `json:"recipient_name" validate:"required"`
	Line1         string  `json:"line1" validate:"required"`
	Line2         *string `json:"line2,omitempty"`
	City          string  `json:"city" validate:"required"`
	State         string  `json:"state"`
	PostalCode    string  `json:"postal_code" validate:"required"`
	Country       string  `json:"country"`
	Phone         *string `json:"phone,omitempty"`
	Method        string  `json:"method,omitempty"`
}

// Normalize trims fields and defaults the country.
func (s ShippingInfo) Normalize() ShippingInfo {
	s.RecipientName = strings.TrimSpace(s.RecipientName)
	s.Line1 = strings.TrimSpace(s.Line1)
	s.City = strings.TrimSpace(s.City)
	s.State = strings.TrimSpace(s.State)
	s.PostalCode = strings.TrimSpace(s.PostalCode)
	s.Country = strings.ToUpper(strings.TrimSpace(s.Country))
	if s.Country == "" {
		s.Country = "US"
	}
	return s
}
