// Package feed declares the supported upstream data feeds. A Feed is pure
// configuration: the pipeline runs the same engine for all of them.
package feed

import (
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/epi-data-etl/internal/domain"
)

// Layout is how a feed's input is laid out on disk.
type Layout int

const (
	// SingleFile feeds read one file.
	SingleFile Layout = iota
	// Directory feeds read every file in a directory matching the feed's extension.
	Directory
)

// Format is the text format of the input files.
type Format int

const (
	CSV Format = iota
	FASTA
)

// DateSource tells where a record's date comes from.
type DateSource int

const (
	NoDate DateSource = iota
	// DateColumn dates are parsed per record, in UTC.
	DateColumn
	// DateFilename dates are parsed once per file from the file name.
	DateFilename
)

// Feed names accepted by Lookup.
const (
	NameCovidTracking = "covid-tracking"
	NameOWID          = "owid"
	NameJHU           = "jhu"
	NameNCBI          = "ncbi"
)

// Feed describes one upstream source.
type Feed struct {
	Name        string
	DataSource  string
	DataSet     string
	Description string

	Layout    Layout
	Format    Format
	Extension string
	Header    HeaderResolver

	Location domain.LocationSpec

	Dates        DateSource
	DatePattern  string
	DateLocation *time.Location

	// DeriveActive computes the active count when the source omits it.
	DeriveActive bool

	// ChildClass is the class of the item created per record.
	ChildClass string
	// Collection names the location's list of children.
	Collection string
}

// CovidTracking is the COVID Tracking Project daily US states file.
func CovidTracking(t Tables) *Feed {
	return &Feed{
		Name:        NameCovidTracking,
		DataSource:  "COVIDTrackingProject",
		DataSet:     "COVID Tracking Project states daily",
		Description: "Covid-19 data for US states",
		Layout:      SingleFile,
		Format:      CSV,
		Extension:   ".csv",
		Header: ExactHeaders{
			"date":             domain.FieldDate,
			"state":            domain.FieldState,
			"positive":         domain.FieldConfirmed,
			"death":            domain.FieldDeaths,
			"positiveIncrease": domain.FieldNewConfirmed,
			"deathIncrease":    domain.FieldNewDeaths,
		},
		Location: domain.LocationSpec{
			KeyFields:  []domain.Field{domain.FieldState},
			Attributes: []domain.Field{domain.FieldCountry, domain.FieldState},
			Required:   []domain.Field{domain.FieldState},
			Translations: []domain.Translation{
				{Field: domain.FieldState, Table: t.States, Strict: true},
			},
			Fixed: map[domain.Field]string{domain.FieldCountry: "United States"},
		},
		Dates:        DateColumn,
		DatePattern:  domain.PatternCompact,
		DateLocation: time.UTC,
		ChildClass:   domain.ClassDistribution,
		Collection:   "distributions",
	}
}

// OWID is the Our World in Data COVID-19 dataset, one or more CSVs with a
// stable column layout.
func OWID(t Tables) *Feed {
	return &Feed{
		Name:        NameOWID,
		DataSource:  "OWID",
		DataSet:     "OWID COVID-19 dataset",
		Description: "Our World in Data COVID-19 dataset",
		Layout:      Directory,
		Format:      CSV,
		Extension:   ".csv",
		Header: FixedPositions{
			domain.FieldCountry:      1,
			domain.FieldDate:         2,
			domain.FieldConfirmed:    3,
			domain.FieldNewConfirmed: 4,
			domain.FieldDeaths:       5,
			domain.FieldNewDeaths:    6,
		},
		Location: domain.LocationSpec{
			KeyFields:  []domain.Field{domain.FieldCountry},
			Attributes: []domain.Field{domain.FieldCountry},
			Required:   []domain.Field{domain.FieldCountry},
			Translations: []domain.Translation{
				{Field: domain.FieldCountry, Table: t.Countries},
			},
		},
		Dates:        DateColumn,
		DatePattern:  domain.PatternISO,
		DateLocation: time.UTC,
		ChildClass:   domain.ClassDistribution,
		Collection:   "distributions",
	}
}

// JHU is the JHU CSSE daily reports directory, one "MM-dd-yyyy.csv" per day.
// Column names changed over time, so headers are matched by fragment per file.
func JHU(t Tables, filenameLoc *time.Location) *Feed {
	if filenameLoc == nil {
		filenameLoc = time.Local
	}
	return &Feed{
		Name:        NameJHU,
		DataSource:  "JHU CSSE",
		DataSet:     "COVID-19 daily reports",
		Description: "Johns Hopkins CSSE COVID-19 daily reports",
		Layout:      Directory,
		Format:      CSV,
		Extension:   ".csv",
		Header: FragmentHeaders{
			{Text: "Admin", Field: domain.FieldProvince},
			{Text: "State", Field: domain.FieldState},
			{Text: "Country", Field: domain.FieldCountry},
			{Text: "Lat", Field: domain.FieldLatitude},
			{Text: "Long", Field: domain.FieldLongitude},
			{Text: "Confirmed", Field: domain.FieldConfirmed},
			{Text: "Deaths", Field: domain.FieldDeaths},
			{Text: "Recovered", Field: domain.FieldRecovered},
			{Text: "Active", Field: domain.FieldActive},
		},
		Location: domain.LocationSpec{
			KeyFields: []domain.Field{
				domain.FieldLatitude, domain.FieldLongitude,
				domain.FieldProvince, domain.FieldState, domain.FieldCountry,
			},
			Attributes: []domain.Field{
				domain.FieldCountry, domain.FieldState, domain.FieldProvince,
				domain.FieldLatitude, domain.FieldLongitude,
			},
			Required: []domain.Field{domain.FieldCountry},
			Translations: []domain.Translation{
				{Field: domain.FieldCountry, Table: t.Countries},
			},
		},
		Dates:        DateFilename,
		DatePattern:  domain.PatternUSDashed,
		DateLocation: filenameLoc,
		DeriveActive: true,
		ChildClass:   domain.ClassDistribution,
		Collection:   "distributions",
	}
}

// NCBI is a FASTA file of SARS-CoV-2 sequences. Locations are countries and
// their children are strains.
func NCBI(t Tables) *Feed {
	return &Feed{
		Name:        NameNCBI,
		DataSource:  "NCBI",
		DataSet:     "NCBI SARS-CoV-2 sequences",
		Description: "SARS-CoV-2 nucleotide sequences from NCBI Virus",
		Layout:      SingleFile,
		Format:      FASTA,
		Extension:   ".fasta",
		Header:      FixedPositions(domain.SequenceHeaderMap),
		Location: domain.LocationSpec{
			KeyFields:  []domain.Field{domain.FieldCountry},
			Attributes: []domain.Field{domain.FieldCountry},
			Required:   []domain.Field{domain.FieldCountry},
			Translations: []domain.Translation{
				{Field: domain.FieldCountry, Table: t.Countries},
			},
		},
		Dates:      NoDate,
		ChildClass: domain.ClassStrain,
		Collection: "strains",
	}
}

// Lookup returns the feed registered under name. filenameLoc is the location
// used for dates parsed from file names; nil means local time.
func Lookup(name string, t Tables, filenameLoc *time.Location) (*Feed, error) {
	switch name {
	case NameCovidTracking:
		return CovidTracking(t), nil
	case NameOWID:
		return OWID(t), nil
	case NameJHU:
		return JHU(t, filenameLoc), nil
	case NameNCBI:
		return NCBI(t), nil
	default:
		return nil, fmt.Errorf("unknown feed %q (known: %v)", name, Names())
	}
}

// Names lists the registered feed names in sorted order.
func Names() []string {
	names := []string{NameCovidTracking, NameOWID, NameJHU, NameNCBI}
	sort.Strings(names)
	return names
}
