// Package domain models epidemiological case and sequence data feeds.
//
// # Data Sources
//
// Four upstream feeds are supported, each with its own layout:
//
//	COVID Tracking Project  one CSV for all US states, date column "yyyyMMdd" (UTC),
//	                        two-letter state codes translated via a state table.
//	JHU CSSE daily reports  one CSV per day named "MM-dd-yyyy.csv"; columns vary
//	                        between files and are matched by header fragment.
//	Our World in Data       CSVs with a stable layout, date column "yyyy-MM-dd" (UTC).
//	NCBI virus sequences    FASTA; headers carry accession, country and qualifiers.
//
// # Entities
//
// Every row becomes one child item (a [Distribution] or a [Strain]) that references
// exactly one [Location]. Locations are deduplicated by a key built from a feed
// specific list of fields with all whitespace removed (see [BuildKey]):
//
//	COVID Tracking  [state]                                    "California"
//	OWID            [country]                                  "UnitedStates"
//	JHU             [latitude, longitude, province, state, country]
//	NCBI            [country]
//
// Code tables (see [CodeTable]) are applied before the key is built, so "CA" and
// "California" resolve to the same location when the state table maps one to the other.
//
// # Counts
//
// Case counts are carried as the source's decimal text and omitted when empty.
// Feeds with an unreliable active count derive it as
//
//	active = max(0, confirmed - recovered - deaths)
//
// whenever the source value is empty or "0" (see [DeriveActive]).
//
// # Coordinates
//
// Locations whose feed carries neither latitude nor longitude may have them filled
// by a [Geocoder] when the location is first built (see [EnrichWithGeocoding]). Keys
// are built from source values only, so geocoding never merges or splits locations.
//
// # Dates
//
// Dates are stored as epoch milliseconds. Patterns use yyyy/MM/dd tokens and are
// parsed strictly; a mismatch is a [DateError], never a silently defaulted date.
package domain
