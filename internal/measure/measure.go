// Package measure normalizes raw sensor values into numeric readings.
package measure

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// numericPrefix matches the longest leading number, allowing an optional sign
// and a single decimal point. Anything after it (a unit suffix like "°C" or
// "%") is discarded.
var numericPrefix = regexp.MustCompile(`^[-+]?\d*\.?\d+`)

// Parse converts a raw measurement into a float, stripping a trailing unit if
// present. It returns nil when the value is absent or carries no numeric
// prefix; an unparseable field is an omitted field, not an error.
//
// Parse("18.4 °C") == 18.4, Parse("65 %") == 65.0, Parse("abc") == nil.
func Parse(raw any) *float64 {
	if raw == nil {
		return nil
	}

	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64:
		return &v
	case float32:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	default:
		s = fmt.Sprint(raw)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	m := numericPrefix.FindString(s)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &f
}
