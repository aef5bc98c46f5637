// Package formatting converts byte sizes between counts and human-readable
// strings, for upload limits in configuration and file sizes in listings.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d*)?)\s*([A-Za-z]*)$`)

// FormatBytes renders n with base-1024 units ("1.5 MB").
// Negative precision is treated as zero.
func FormatBytes(n int64, precision int) string {
	if n <= 0 {
		return "0 B"
	}
	precision = max(precision, 0)

	exp := min(int(math.Log(float64(n))/math.Log(1024)), len(units)-1)
	if exp == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}

	scaled := float64(n) / math.Pow(1024, float64(exp))
	return strconv.FormatFloat(scaled, 'f', precision, 64) + " " + units[exp]
}

// ParseBytes parses sizes such as "10MB", "512 kb" or "2048" (bytes)
// using base-1024 units. Unit matching is case-insensitive.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	if m[2] == "" {
		return int64(value), nil
	}

	exp := slices.Index(units, strings.ToUpper(m[2]))
	if exp < 0 {
		return 0, fmt.Errorf("unknown byte size unit: %q", m[2])
	}
	return int64(value * math.Pow(1024, float64(exp))), nil
}
