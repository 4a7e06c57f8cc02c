//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseDocumentID checks parsing never panics and accepted IDs round-trip.
func FuzzParseDocumentID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE documents;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseDocumentID(input)
		if err == nil {
			roundTrip, err2 := ParseDocumentID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
			if id.IsNil() {
				t.Error("nil ID accepted")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseAllIDs ensures all ID types accept and reject the same inputs.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errDoc := ParseDocumentID(input)
		_, errCred := ParseCredentialID(input)
		_, errIssuer := ParseIssuerID(input)
		_, errPrincipal := ParsePrincipalID(input)

		accepted := errDoc == nil
		if (errCred == nil) != accepted || (errIssuer == nil) != accepted || (errPrincipal == nil) != accepted {
			t.Error("inconsistent parsing across ID types")
		}
	})
}
