package gifting

import "strconv"

// The remote gift service and the payment processor both speak kobo; guests
// see and type naira. The factor is fixed at 100 in both directions.
const minorPerMajor = 100

// ToMinor converts a major-unit amount (naira) to minor units (kobo).
func ToMinor(major int64) int64 {
	return major * minorPerMajor
}

// ToMajor converts a minor-unit amount (kobo) to major units (naira).
func ToMajor(minor int64) int64 {
	return minor / minorPerMajor
}

// FormatMinor renders a minor-unit amount as a display string, e.g. "₦5,000".
func FormatMinor(minor int64) string {
	return "₦" + groupThousands(ToMajor(minor))
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)

	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}

	var grouped []byte
	for i, digit := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, digit)
	}

	if neg {
		return "-" + string(grouped)
	}

	return string(grouped)
}
