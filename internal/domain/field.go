package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShortRecord is returned when a record has fewer values than its header map expects.
var ErrShortRecord = errors.New("record too short")

// Field is a logical column name, independent of how a feed spells its header.
type Field int

const (
	FieldDate Field = iota
	FieldCountry
	FieldState
	FieldProvince
	FieldLatitude
	FieldLongitude
	FieldConfirmed
	FieldDeaths
	FieldRecovered
	FieldActive
	FieldNewConfirmed
	FieldNewDeaths

	// Sequence header fields.
	FieldAccession
	FieldReference
	FieldCompleteness
	FieldLength
)

var fieldNames = map[Field]string{
	FieldDate:         "date",
	FieldCountry:      "country",
	FieldState:        "state",
	FieldProvince:     "province",
	FieldLatitude:     "latitude",
	FieldLongitude:    "longitude",
	FieldConfirmed:    "confirmed",
	FieldDeaths:       "deaths",
	FieldRecovered:    "recovered",
	FieldActive:       "active",
	FieldNewConfirmed: "new_confirmed",
	FieldNewDeaths:    "new_deaths",
	FieldAccession:    "accession",
	FieldReference:    "reference",
	FieldCompleteness: "completeness",
	FieldLength:       "length",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// HeaderMap maps logical fields to column positions for one input file.
type HeaderMap map[Field]int

// Position returns the column index of f, or -1 when the feed does not carry it.
func (h HeaderMap) Position(f Field) int {
	pos, ok := h[f]
	if !ok {
		return -1
	}
	return pos
}

// Record is one data row together with the header map of the file it came from.
type Record struct {
	Values []string
	Header HeaderMap
}

// Get returns the trimmed value of f. Fields absent from the header map yield "".
func (r Record) Get(f Field) (string, error) {
	pos := r.Header.Position(f)
	if pos < 0 {
		return "", nil
	}
	if pos >= len(r.Values) {
		return "", fmt.Errorf("%w: %s at column %d, record has %d values", ErrShortRecord, f, pos, len(r.Values))
	}
	return strings.TrimSpace(r.Values[pos]), nil
}

// Lookup extracts several fields at once, keyed by field.
func (r Record) Lookup(fields ...Field) (map[Field]string, error) {
	out := make(map[Field]string, len(fields))
	for _, f := range fields {
		v, err := r.Get(f)
		if err != nil {
			return nil, err
		}
		out[f] = v
	}
	return out, nil
}
