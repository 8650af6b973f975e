package domain

import (
	"strconv"
	"strings"
)

// SequenceHeaderMap is the column layout of records built from FASTA headers.
var SequenceHeaderMap = HeaderMap{
	FieldAccession:    0,
	FieldCountry:      1,
	FieldReference:    2,
	FieldCompleteness: 3,
	FieldLength:       4,
}

// SequenceHeader is the metadata carried on an NCBI FASTA header line:
//
//	>NC_045512 |China|refseq| complete
//	>MT123291 |China|complete
type SequenceHeader struct {
	Accession    string
	Country      string
	Reference    string // "Y" for the reference sequence, else "N"
	Completeness string // "Y", "N" or "N/A" when the header does not say
}

// ParseSequenceHeader splits a FASTA header (with or without the leading '>').
func ParseSequenceHeader(line string) SequenceHeader {
	line = strings.TrimPrefix(strings.TrimSpace(line), ">")
	tokens := strings.Split(line, "|")

	h := SequenceHeader{Reference: "N", Completeness: "N/A"}
	if len(tokens) > 0 {
		h.Accession = strings.TrimSpace(tokens[0])
	}
	if len(tokens) > 1 {
		h.Country = strings.TrimSpace(tokens[1])
	}
	if len(tokens) > 2 {
		// Any qualifier marks the sequence complete unless it says partial.
		h.Completeness = "Y"
		for _, tok := range tokens[2:] {
			tok = strings.ToLower(strings.TrimSpace(tok))
			switch {
			case strings.Contains(tok, "refseq"):
				h.Reference = "Y"
			case strings.Contains(tok, "partial"):
				h.Completeness = "N"
			}
		}
	}
	return h
}

// Record lays the header out as a Record so it can flow through the same
// location resolution as CSV rows.
func (h SequenceHeader) Record(length int) Record {
	return Record{
		Values: []string{h.Accession, h.Country, h.Reference, h.Completeness, strconv.Itoa(length)},
		Header: SequenceHeaderMap,
	}
}
