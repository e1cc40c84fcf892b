package util

import "strconv"

// ParseFloat parses a price cell, tolerating thousands separators.
func ParseFloat(s string) (float64, bool) {
	clean := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ',', ' ', '\t':
		default:
			clean = append(clean, c)
		}
	}
	if len(clean) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(clean), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
