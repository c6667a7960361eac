package entities

import "strings"

// validate applies the subtype's validator to a raw match. It returns the
// adjusted confidence and whether the value passed; subtypes without a
// validator pass through unchanged and never count as validated.
func validate(subtype, value string, confidence float64) (float64, bool) {
	switch subtype {
	case SubtypeCreditCard:
		if luhnValid(value) {
			return 0.95, true
		}
		return confidence * 0.3, false

	case SubtypeBitcoin, SubtypeLitecoin:
		if n := len(value); n < 26 || n > 35 {
			return confidence * 0.5, false
		}
		return confidence, true

	case SubtypeEthereum:
		if !strings.HasPrefix(value, "0x") {
			return confidence * 0.5, false
		}
		return confidence, true

	case SubtypeEmail:
		at := strings.IndexByte(value, '@')
		if at < 0 || !strings.Contains(value[at+1:], ".") {
			return confidence * 0.5, false
		}
		return confidence, true
	}
	return confidence, false
}

// luhnValid runs the Luhn checksum over a digit string. Non-digit bytes
// make the value invalid.
func luhnValid(number string) bool {
	if number == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
