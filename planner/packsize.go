package planner

import (
	"regexp"
	"strconv"
	"strings"
)

// Packaging descriptions come in as free text like "4x5L", "12 x 1L",
// "208L" or just "20". The patterns are tried in priority order; the first
// match wins.
var (
	rePackCountSize = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*[x×]\s*(\d+(?:\.\d+)?)\s*l`)
	rePackCountOnly = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*[x×]\s*(\d+(?:\.\d+)?)`)
	rePackLiters    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*l`)
	rePackBare      = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

// ParsePackLiters extracts the liters-per-pack-unit figure from a packaging
// description. It never fails; unrecognized input yields 0.
func ParsePackLiters(packaging string) float64 {
	text := strings.TrimSpace(packaging)
	if text == "" {
		return 0
	}
	if m := rePackCountSize.FindStringSubmatch(text); m != nil {
		return parseNum(m[1]) * parseNum(m[2])
	}
	if m := rePackCountOnly.FindStringSubmatch(text); m != nil {
		return parseNum(m[1]) * parseNum(m[2])
	}
	if m := rePackLiters.FindStringSubmatch(text); m != nil {
		return parseNum(m[1])
	}
	if m := rePackBare.FindStringSubmatch(text); m != nil {
		return parseNum(m[1])
	}
	return 0
}

func parseNum(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
