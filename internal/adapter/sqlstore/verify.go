package sqlstore

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/epi-data-etl/internal/domain"
)

// Report summarizes an integrity check of a stored item graph.
type Report struct {
	Counts   map[string]int
	Problems []string
}

// OK reports whether no problems were found.
func (r Report) OK() bool { return len(r.Problems) == 0 }

// Verify checks that every reference and collection member points at a stored
// item, and that every child listed by a location references that location
// and is listed exactly once.
func Verify(items []domain.Item) Report {
	r := Report{Counts: make(map[string]int)}
	byID := make(map[string]domain.Item, len(items))
	for _, item := range items {
		r.Counts[item.ClassName]++
		byID[item.Identifier] = item
	}

	listedBy := make(map[string]string)
	for _, item := range items {
		for _, name := range sortedKeys(item.References) {
			if _, ok := byID[item.References[name]]; !ok {
				r.addf("%s: reference %s points at missing item %s", item.Identifier, name, item.References[name])
			}
		}

		names := make([]string, 0, len(item.Collections))
		for name := range item.Collections {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, id := range item.Collections[name] {
				child, ok := byID[id]
				if !ok {
					r.addf("%s: collection %s lists missing item %s", item.Identifier, name, id)
					continue
				}
				if item.ClassName != domain.ClassGeoLocation {
					continue
				}
				if prev, dup := listedBy[id]; dup {
					r.addf("%s: listed by both %s and %s", id, prev, item.Identifier)
				}
				listedBy[id] = item.Identifier
				if got := child.References[domain.RefGeoLocation]; got != item.Identifier {
					r.addf("%s: listed by %s but references %q", id, item.Identifier, got)
				}
			}
		}
	}

	for _, item := range items {
		if item.ClassName != domain.ClassDistribution && item.ClassName != domain.ClassStrain {
			continue
		}
		if _, ok := listedBy[item.Identifier]; !ok {
			r.addf("%s: not listed by any location", item.Identifier)
		}
	}
	return r
}

func (r *Report) addf(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}
