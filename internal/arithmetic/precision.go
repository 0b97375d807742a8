package arithmetic

import (
	"errors"
	"strconv"
	"strings"
)

// Precision is the number of fractional digits kept in a rounded result.
// It is never negative.
type Precision int

// DefaultPrecision is used when no usable precision is configured.
const DefaultPrecision Precision = 4

// MaxPrecision is the largest precision accepted from configuration.
const MaxPrecision Precision = 10000

// ResolvePrecision turns a raw configuration value into a Precision.
//
// Negative values clamp to zero. An empty, unparseable or out-of-range value
// (above MaxPrecision) resolves to DefaultPrecision and the second return
// value reports that the default was substituted. It never fails.
func ResolvePrecision(raw string) (Precision, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPrecision, true
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Hugely negative values still clamp.
		if errors.Is(err, strconv.ErrRange) && strings.HasPrefix(raw, "-") {
			return 0, false
		}
		return DefaultPrecision, true
	}
	if n < 0 {
		return 0, false
	}
	if n > int64(MaxPrecision) {
		return DefaultPrecision, true
	}
	return Precision(n), false
}

// Int returns the precision as a plain int.
func (p Precision) Int() int {
	return int(p)
}
