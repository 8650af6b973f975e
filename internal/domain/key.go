package domain

import (
	"strings"
	"unicode"
)

// LocationSpec describes how a feed identifies and describes its locations.
type LocationSpec struct {
	// KeyFields are concatenated, in order, into the location key.
	KeyFields []Field
	// Attributes are copied onto the GeoLocation when it is first created.
	Attributes []Field
	// Required fields must be non-empty after translation, otherwise the row is skipped.
	Required []Field
	// Translations run before the key is built.
	Translations []Translation
	// Fixed supplies constant values for fields the feed does not carry (e.g. the
	// country of a single-country feed).
	Fixed map[Field]string
}

// ResolvedLocation is the identity of a record's location.
type ResolvedLocation struct {
	Key    string
	Values map[Field]string
}

// Resolve extracts, translates and keys the location fields of r. The boolean is
// false when a required field is empty, in which case the row must be skipped.
func (s LocationSpec) Resolve(r Record) (ResolvedLocation, bool, error) {
	values := make(map[Field]string, len(s.KeyFields)+len(s.Attributes))
	for _, f := range s.fields() {
		if v, ok := s.Fixed[f]; ok {
			values[f] = v
			continue
		}
		v, err := r.Get(f)
		if err != nil {
			return ResolvedLocation{}, false, err
		}
		values[f] = v
	}

	for _, t := range s.Translations {
		if _, fixed := s.Fixed[t.Field]; fixed {
			continue
		}
		values[t.Field] = t.Apply(values[t.Field])
	}

	for _, f := range s.Required {
		if values[f] == "" {
			return ResolvedLocation{}, false, nil
		}
	}

	return ResolvedLocation{Key: BuildKey(values, s.KeyFields), Values: values}, true, nil
}

// fields returns the union of key, attribute and required fields, in first-seen order.
func (s LocationSpec) fields() []Field {
	seen := make(map[Field]bool)
	var out []Field
	for _, group := range [][]Field{s.KeyFields, s.Attributes, s.Required} {
		for _, f := range group {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// BuildKey concatenates the values of fields in order and removes all whitespace.
// Two records share a location exactly when they agree on every key field after
// whitespace is stripped.
func BuildKey(values map[Field]string, fields []Field) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(values[f])
	}
	return deleteWhitespace(b.String())
}

func deleteWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
