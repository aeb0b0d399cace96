//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParsePatientID checks that parsing never panics on arbitrary input and
// that accepted ids round-trip unchanged.
func FuzzParsePatientID(f *testing.F) {
	f.Add("")
	f.Add("TAG-00412")
	f.Add("hosp.a:patient_17")
	f.Add("'; DROP TABLE patients;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("P-1\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParsePatientID(input)
		if err != nil {
			return
		}
		if !utf8.ValidString(id.String()) {
			t.Errorf("accepted id is not valid UTF-8: %q", id)
		}
		if len(id) > maxExternalIDLength {
			t.Errorf("accepted id exceeds max length: %d", len(id))
		}
		roundTrip, err := ParsePatientID(id.String())
		if err != nil {
			t.Errorf("valid id failed round-trip: %v", err)
		}
		if roundTrip != id {
			t.Error("round-trip changed id value")
		}
	})
}
