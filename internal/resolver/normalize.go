package resolver

// MinDigits is the minimum normalized length for a phone number to be
// considered valid. Shorter strings are treated as spurious signals.
const MinDigits = 6

// Normalize strips all non-digit characters from a phone number and keeps the
// last 10 digits when at least 10 are present. Two numbers differing only by
// country code or formatting normalize identically. Idempotent.
func Normalize(phone string) string {
	digits := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) >= 10 {
		digits = digits[len(digits)-10:]
	}
	return string(digits)
}

// Valid reports whether the number normalizes to at least MinDigits digits.
func Valid(phone string) bool {
	return len(Normalize(phone)) >= MinDigits
}
