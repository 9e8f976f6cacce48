package types

import "testing"

func TestShippingInfoNormalize(t *testing.T) {
	got := ShippingInfo{RecipientName: "  Ada ", Line1: " 1 Loop ", City: "Austin ", PostalCode: " 73301", Country: " us"}.Normalize()
	if got.RecipientName != "Ada" || got.Line1 != "1 Loop" || got.City != "Austin" || got.PostalCode != "73301" {
		t.Fatalf("unexpected trim result %+v", got)
	}
	if got.Country != "US" {
		t.Fatalf("expected upper-cased country, got %q", got.Country)
	}

	if c := (ShippingInfo{}).Normalize().Country; c != "US" {
		t.Fatalf("expected default country US, got %q", c)
	}
}
