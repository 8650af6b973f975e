package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BuildDistribution converts a record into a dated Distribution. Empty counts are
// left empty so they are omitted when stored. When deriveActive is set the active
// count is always populated, see DeriveActive.
func BuildDistribution(r Record, date time.Time, deriveActive bool) (Distribution, error) {
	v, err := r.Lookup(FieldConfirmed, FieldDeaths, FieldRecovered, FieldActive, FieldNewConfirmed, FieldNewDeaths)
	if err != nil {
		return Distribution{}, err
	}

	d := Distribution{
		Date:           date,
		TotalCases:     v[FieldConfirmed],
		TotalDeaths:    v[FieldDeaths],
		TotalRecovered: v[FieldRecovered],
		ActiveCases:    v[FieldActive],
		NewCases:       v[FieldNewConfirmed],
		NewDeaths:      v[FieldNewDeaths],
	}
	if deriveActive {
		d.ActiveCases = DeriveActive(v[FieldConfirmed], v[FieldRecovered], v[FieldDeaths], v[FieldActive])
	}
	return d, nil
}

// DeriveActive returns the source active count unless it is empty or "0", in which
// case it computes max(0, confirmed - recovered - deaths). Unparsable counts count
// as zero for the derivation.
func DeriveActive(confirmed, recovered, deaths, active string) string {
	active = strings.TrimSpace(active)
	if active != "" && active != "0" {
		return active
	}
	n := parseCountOrZero(confirmed) - parseCountOrZero(recovered) - parseCountOrZero(deaths)
	if n < 0 {
		n = 0
	}
	return strconv.FormatInt(n, 10)
}

// parseCountOrZero parses a base-10 integer count, returning 0 on failure.
func parseCountOrZero(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// BuildStrain converts a sequence-header record into a Strain.
func BuildStrain(r Record) (Strain, error) {
	v, err := r.Lookup(FieldAccession, FieldReference, FieldCompleteness, FieldLength)
	if err != nil {
		return Strain{}, err
	}
	var length int
	if text := v[FieldLength]; text != "" {
		length, err = strconv.Atoi(text)
		if err != nil {
			return Strain{}, fmt.Errorf("invalid sequence length %q: %w", text, err)
		}
	}
	return Strain{
		PrimaryIdentifier:      v[FieldAccession],
		ReferenceSequence:      v[FieldReference],
		NucleotideCompleteness: v[FieldCompleteness],
		Length:                 length,
	}, nil
}
