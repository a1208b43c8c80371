package collision

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Record is the full set of collision attributes being assessed. A Record is
// an immutable value: every edit returns a new Record and leaves the receiver
// untouched, so readers holding an older value always see a consistent set.
type Record struct {
	values map[Field]string
	// confirmed holds coordinates set as numbers by a map pick.
	confirmed map[Field]float64
}

// Coordinate is the current state of a latitude or longitude field.
type Coordinate struct {
	// Text is the edited text, or the formatted number for a confirmed value.
	Text string
	// Value is the confirmed number. Only meaningful when Confirmed is true.
	Value float64
	// Confirmed is true when the value arrived as a number from a map pick.
	Confirmed bool
}

// NewRecord returns a record holding every field's default value.
func NewRecord() Record {
	values := make(map[Field]string, len(fieldSpecs))
	for _, s := range fieldSpecs {
		values[s.Field] = s.Default
	}
	return Record{values: values}
}

// Get returns the text value of a field. Confirmed coordinates are returned
// in their shortest decimal form.
func (r Record) Get(f Field) string {
	if v, ok := r.confirmed[f]; ok {
		return formatCoordinate(v)
	}
	return r.values[f]
}

// Coordinate returns the state of a coordinate field.
func (r Record) Coordinate(f Field) Coordinate {
	if v, ok := r.confirmed[f]; ok {
		return Coordinate{Text: formatCoordinate(v), Value: v, Confirmed: true}
	}
	return Coordinate{Text: r.values[f]}
}

// With returns a copy of r with f set to the given text. Setting a coordinate
// as text drops any confirmed number for it.
func (r Record) With(f Field, text string) Record {
	next := r.clone()
	next.values[f] = text
	delete(next.confirmed, f)
	return next
}

// WithCoordinates returns a copy of r with latitude and longitude set to
// confirmed numeric values.
func (r Record) WithCoordinates(lat, lng float64) Record {
	next := r.clone()
	next.confirmed[FieldLatitude] = lat
	next.confirmed[FieldLongitude] = lng
	delete(next.values, FieldLatitude)
	delete(next.values, FieldLongitude)
	return next
}

// Names returns every field name present in the record, sorted.
func (r Record) Names() []Field {
	names := make([]Field, 0, len(r.values)+len(r.confirmed))
	for f := range r.values {
		names = append(names, f)
	}
	for f := range r.confirmed {
		if _, dup := r.values[f]; !dup {
			names = append(names, f)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (r Record) clone() Record {
	values := make(map[Field]string, len(r.values)+1)
	for k, v := range r.values {
		values[k] = v
	}
	confirmed := make(map[Field]float64, 2)
	for k, v := range r.confirmed {
		confirmed[k] = v
	}
	return Record{values: values, confirmed: confirmed}
}

// MarshalJSON encodes the record as an object keyed by field name.
// Confirmed coordinates are numbers, everything else is a string.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.values)+len(r.confirmed))
	for f, v := range r.values {
		out[string(f)] = v
	}
	for f, v := range r.confirmed {
		out[string(f)] = v
	}
	return json.Marshal(out)
}

// RecordFromValues builds a record from a decoded JSON object. Missing known
// fields take their defaults. Numeric coordinates become confirmed values;
// other values must be strings (numbers are accepted and formatted).
func RecordFromValues(values map[string]interface{}) (Record, error) {
	r := NewRecord()
	var lat, lng *float64
	for k, raw := range values {
		f := Field(k)
		switch v := raw.(type) {
		case string:
			r = r.With(f, v)
		case float64:
			if IsCoordinate(f) {
				n := v
				if f == FieldLatitude {
					lat = &n
				} else {
					lng = &n
				}
				continue
			}
			r = r.With(f, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			if spec, ok := Lookup(f); ok && spec.Kind == KindFlag {
				r = r.With(f, flagToken(v))
				continue
			}
			return Record{}, fmt.Errorf("field %s: unexpected boolean", k)
		case nil:
			continue
		default:
			return Record{}, fmt.Errorf("field %s: unsupported value type %T", k, raw)
		}
	}
	switch {
	case lat != nil && lng != nil:
		r = r.WithCoordinates(*lat, *lng)
	case lat != nil:
		r = r.With(FieldLatitude, formatCoordinate(*lat))
	case lng != nil:
		r = r.With(FieldLongitude, formatCoordinate(*lng))
	}
	return r, nil
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func flagToken(b bool) string {
	if b {
		return FlagYes
	}
	return FlagNo
}
