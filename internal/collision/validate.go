package collision

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Coordinate bounds, inclusive.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Validation messages shown to the user.
const (
	MsgInvalidTime      = "Invalid TIME format. Please use HHMM (e.g., 0830 for 8:30 AM, 1745 for 5:45 PM)."
	MsgInvalidDate      = "Invalid DATE format. Please use YYYY-MM-DD (e.g., 2023-10-26). Spaces around hyphens are allowed."
	MsgInvalidLatitude  = "Invalid LATITUDE. Must be a number between -90 and 90."
	MsgInvalidLongitude = "Invalid LONGITUDE. Must be a number between -180 and 180."
)

var (
	timeRegex = regexp.MustCompile(`^([01]?[0-9]|2[0-3])[0-5][0-9]$`)
	dateRegex = regexp.MustCompile(`^\d{4}\s*-\s*\d{2}\s*-\s*\d{2}$`)
	// Plain decimals only: no exponents, hex floats or digit separators.
	decimalRegex = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)
)

// ValidationError reports the first field that failed a format check.
type ValidationError struct {
	Field   Field
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate runs the submission checks in order (TIME, DATE, LATITUDE,
// LONGITUDE) and returns a *ValidationError for the first failure.
func Validate(r Record) error {
	if !ValidTime(r.Get(FieldTime)) {
		return &ValidationError{Field: FieldTime, Message: MsgInvalidTime}
	}
	if !ValidDate(r.Get(FieldDate)) {
		return &ValidationError{Field: FieldDate, Message: MsgInvalidDate}
	}
	if _, ok := parseBounded(r.Coordinate(FieldLatitude), MinLatitude, MaxLatitude); !ok {
		return &ValidationError{Field: FieldLatitude, Message: MsgInvalidLatitude}
	}
	if _, ok := parseBounded(r.Coordinate(FieldLongitude), MinLongitude, MaxLongitude); !ok {
		return &ValidationError{Field: FieldLongitude, Message: MsgInvalidLongitude}
	}
	return nil
}

// ValidTime reports whether s is a 4-character HHMM 24-hour time.
// The pattern alone would also accept 3-digit times such as "830".
func ValidTime(s string) bool {
	return len(s) == 4 && timeRegex.MatchString(s)
}

// ValidDate reports whether s has the YYYY-MM-DD shape, allowing whitespace
// around the hyphens.
func ValidDate(s string) bool {
	return dateRegex.MatchString(s)
}

// parseBounded converts a coordinate to a float within [lo, hi].
func parseBounded(c Coordinate, lo, hi float64) (float64, bool) {
	v := c.Value
	if !c.Confirmed {
		text := strings.TrimSpace(c.Text)
		if !decimalRegex.MatchString(text) {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	}
	if math.IsNaN(v) || v < lo || v > hi {
		return 0, false
	}
	return v, true
}
