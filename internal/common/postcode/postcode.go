// Package postcode validates and formats UK postcodes.
package postcode

import (
	"regexp"
	"strings"
)

// Outward code followed by the 3-character inward code, with spaces removed.
var ukPostcode = regexp.MustCompile(`^(GIR0AA|[A-PR-UWYZ][0-9]{1,2}[0-9][ABD-HJLNP-UW-Z]{2}|[A-PR-UWYZ][A-HK-Y][0-9]{1,2}[0-9][ABD-HJLNP-UW-Z]{2}|[A-PR-UWYZ][0-9][A-HJKPSTUW][0-9][ABD-HJLNP-UW-Z]{2}|[A-PR-UWYZ][A-HK-Y][0-9][ABEHMNPRV-Y][0-9][ABD-HJLNP-UW-Z]{2})$`)

// Postcode is a validated postcode in canonical "OUTWARD INWARD" form.
type Postcode struct {
	value string
}

// Parse normalizes raw input and reports whether it is a valid postcode.
func Parse(raw string) (Postcode, bool) {
	compact := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if len(compact) < 5 || len(compact) > 7 || !ukPostcode.MatchString(compact) {
		return Postcode{}, false
	}
	split := len(compact) - 3
	return Postcode{value: compact[:split] + " " + compact[split:]}, true
}

// String returns the canonical form, or "" for the zero value.
func (p Postcode) String() string {
	return p.value
}

// Outward returns the outward code (area and district).
func (p Postcode) Outward() string {
	if p.value == "" {
		return ""
	}
	return p.value[:len(p.value)-4]
}
