package model

import (
	"fmt"
	"strings"
)

// NormalizeIBAN uppercases the IBAN and strips spaces. It does not validate.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
}

// ValidateIBAN checks the length envelope and the ISO 13616 mod-97 checksum
// of a normalised IBAN. It does not check country specific lengths, only that
// the check digits are consistent.
func ValidateIBAN(iban string) error {
	if len(iban) < 15 || len(iban) > 34 {
		return fmt.Errorf("iban %q: length %d out of range", iban, len(iban))
	}
	for _, r := range iban {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("iban %q: invalid character %q", iban, r)
		}
	}
	// Move the country code and check digits to the end, map letters to
	// numbers (A=10..Z=35) and reduce mod 97 incrementally.
	rearranged := iban[4:] + iban[:4]
	rem := 0
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			n := int(r-'A') + 10
			rem = (rem*100 + n) % 97
		} else {
			rem = (rem*10 + int(r-'0')) % 97
		}
	}
	if rem != 1 {
		return fmt.Errorf("iban %q: checksum mismatch", iban)
	}
	return nil
}
