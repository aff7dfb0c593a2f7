package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePackLiters(t *testing.T) {
	cases := []struct {
		name      string
		packaging string
		want      float64
	}{
		{"count and size", "4x5L", 20},
		{"count and size with spaces", "12 x 1L", 12},
		{"count and size decimal", "4 x 2.5L", 10},
		{"multiplication sign", "6×4L", 24},
		{"count only, no unit", "4x5", 20},
		{"plain liters", "208L", 208},
		{"liters lowercase", "20 l drum", 20},
		{"bare number", "20", 20},
		{"trailing text", "4x5L cans per carton", 20},
		{"empty", "", 0},
		{"no digits", "bulk", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParsePackLiters(tc.packaging))
		})
	}
}

func TestParsePackLitersPriority(t *testing.T) {
	// "2 drums of 4x5L" must match the count-times-size pattern, not the
	// leading bare number.
	assert.Equal(t, 20.0, ParsePackLiters("2 pails 4x5L"))
}
