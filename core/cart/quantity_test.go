package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 1},
		{"abc", 1},
		{"0", 1},
		{"-4", 1},
		{"1", 1},
		{"12", 12},
		{"  7", 7},
		{"+3", 3},
		{"3abc", 3},
		{"2.9", 2},
		{"99999999999999999999", 1},
		{"-", 1},
		{" \t\n5 apples", 5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseQuantity(tc.in), "input %q", tc.in)
	}
}
