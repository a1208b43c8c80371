package collision

import "regexp"

// InputKind identifies the UI control an edit came from.
type InputKind string

const (
	// InputText is a typed or selected value.
	InputText InputKind = "text"
	// InputToggle is a checkbox change.
	InputToggle InputKind = "toggle"
)

// Input is one raw edit event for a field.
type Input struct {
	Kind    InputKind
	Value   string
	Checked bool
}

// coordinateEntryRegex accepts every prefix of a signed decimal, including
// "", "-" and "43.", so the value can be typed one character at a time.
var coordinateEntryRegex = regexp.MustCompile(`^-?\d*\.?\d*$`)

// Apply computes the record that results from applying in to field f.
// It returns the new record and true, or current and false when the edit is
// rejected (a non-numeric keystroke in a coordinate field).
func Apply(current Record, f Field, in Input) (Record, bool) {
	if in.Kind == InputToggle {
		return current.With(f, flagToken(in.Checked)), true
	}
	if IsCoordinate(f) && !AcceptsCoordinateText(in.Value) {
		return current, false
	}
	return current.With(f, in.Value), true
}

// AcceptsCoordinateText reports whether s is a usable partial coordinate.
func AcceptsCoordinateText(s string) bool {
	return coordinateEntryRegex.MatchString(s)
}
