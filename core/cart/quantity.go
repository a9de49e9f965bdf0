package cart

import (
	"strconv"
	"strings"
)

// ParseQuantity reads a quantity the way a number input is read: optional
// leading whitespace and sign, then the leading run of digits; anything after
// it is ignored ("3abc" is 3). No digits, overflow, or a result below 1 all
// give 1.
func ParseQuantity(s string) int {
	s = strings.TrimLeft(s, " \t\n\r\f\v")

	sign := ""
	if s != "" && (s[0] == '+' || s[0] == '-') {
		sign, s = s[:1], s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 1
	}

	n, err := strconv.Atoi(sign + s[:end])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
