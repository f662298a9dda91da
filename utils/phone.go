package utils

import "strings"

// NormalizeMSISDN converts a Kenyan phone number to the 2547XXXXXXXX
// subscriber format the payment gateway expects. Unrecognized shapes are
// returned digits-only and left to the gateway to reject.
func NormalizeMSISDN(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "254") && len(digits) == 12:
		return digits
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "254" + digits[1:]
	case (strings.HasPrefix(digits, "7") || strings.HasPrefix(digits, "1")) && len(digits) == 9:
		return "254" + digits
	}
	return digits
}
