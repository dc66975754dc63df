// SPDX-License-Identifier: MIT

package xisf

import (
	"strconv"
	"strings"
	"time"
)

// formatFloat32 renders a value with 9 significant digits.
func formatFloat32(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', 9, 32)
}

// formatFloat64 renders a value with 17 significant digits.
func formatFloat64(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}

// parseFloat parses a locale-invariant (dot decimal separator) float.
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errorf(ErrMalformedXML, "float %q: %v", s, err)
	}
	return v, nil
}

// timePointLayout is the TimePoint emit format: yyyy-MM-ddTHH:mm:ss.fffzzz.
const timePointLayout = "2006-01-02T15:04:05.000-07:00"

// formatTimePoint renders t in the canonical TimePoint text form.
func formatTimePoint(t time.Time) string {
	return t.Format(timePointLayout)
}

// parseTimePoint parses an ISO-8601 instant with offset.
func parseTimePoint(s string) (time.Time, error) {
	for _, layout := range []string{
		timePointLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errorf(ErrMalformedXML, "TimePoint %q", s)
}

// parseBool parses a Boolean property value: "true"/"false".
func parseBool(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errorf(ErrMalformedXML, "Boolean %q", s)
	}
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
