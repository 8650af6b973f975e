package feed

import (
	"strings"

	"github.com/couchcryptid/epi-data-etl/internal/domain"
)

// HeaderResolver builds the field positions of one input file from its header row.
type HeaderResolver interface {
	Resolve(header []string) domain.HeaderMap
}

// ExactHeaders matches whole header names, ignoring case.
type ExactHeaders map[string]domain.Field

func (e ExactHeaders) Resolve(header []string) domain.HeaderMap {
	m := make(domain.HeaderMap)
	for pos, name := range header {
		for text, field := range e {
			if strings.EqualFold(strings.TrimSpace(name), text) {
				m[field] = pos
				break
			}
		}
	}
	return m
}

// Fragment maps any header containing Text (case-insensitive) to Field.
type Fragment struct {
	Text  string
	Field domain.Field
}

// FragmentHeaders tries its fragments in order for each column; the first match
// wins for that column. When several columns match the same field the last one
// is kept. Columns that match nothing are ignored.
type FragmentHeaders []Fragment

func (f FragmentHeaders) Resolve(header []string) domain.HeaderMap {
	m := make(domain.HeaderMap)
	for pos, name := range header {
		name = strings.ToLower(name)
		for _, frag := range f {
			if strings.Contains(name, strings.ToLower(frag.Text)) {
				m[frag.Field] = pos
				break
			}
		}
	}
	return m
}

// FixedPositions ignores the header row and always returns the same layout.
type FixedPositions domain.HeaderMap

func (f FixedPositions) Resolve(_ []string) domain.HeaderMap {
	m := make(domain.HeaderMap, len(f))
	for field, pos := range f {
		m[field] = pos
	}
	return m
}
