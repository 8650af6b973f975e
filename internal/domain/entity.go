package domain

import (
	"strconv"
	"time"
)

// Attribute and reference names used on stored items.
const (
	AttrCountry   = "country"
	AttrState     = "state"
	AttrProvince  = "province"
	AttrLatitude  = "latitude"
	AttrLongitude = "longitude"

	AttrDate           = "date"
	AttrTotalCases     = "totalCases"
	AttrTotalDeaths    = "totalDeaths"
	AttrTotalRecovered = "totalRecovered"
	AttrActiveCases    = "activeCases"
	AttrNewCases       = "newCases"
	AttrNewDeaths      = "newDeaths"

	AttrPrimaryIdentifier      = "primaryIdentifier"
	AttrReferenceSequence      = "referenceSequence"
	AttrNucleotideCompleteness = "nucleotideCompleteness"
	AttrLength                 = "length"

	RefGeoLocation = "geoLocation"
	RefDataSource  = "dataSource"
	CollDataSets   = "dataSets"
)

// locationAttributes maps location fields to their item attribute names.
var locationAttributes = []struct {
	field Field
	attr  string
}{
	{FieldCountry, AttrCountry},
	{FieldState, AttrState},
	{FieldProvince, AttrProvince},
	{FieldLatitude, AttrLatitude},
	{FieldLongitude, AttrLongitude},
}

// Location is a geographic entity deduplicated by its key. It is created on the
// first record with a new key and only gains its child collection at flush time.
type Location struct {
	ID        string
	Key       string
	Country   string
	State     string
	Province  string
	Latitude  string
	Longitude string
}

// NewLocation builds a Location from resolved field values, keeping only attrs.
func NewLocation(id string, loc ResolvedLocation, attrs []Field) *Location {
	l := &Location{ID: id, Key: loc.Key}
	for _, f := range attrs {
		v := loc.Values[f]
		switch f {
		case FieldCountry:
			l.Country = v
		case FieldState:
			l.State = v
		case FieldProvince:
			l.Province = v
		case FieldLatitude:
			l.Latitude = v
		case FieldLongitude:
			l.Longitude = v
		}
	}
	return l
}

// Item converts the location into a sink item carrying children under collection.
func (l *Location) Item(collection string, children []string) Item {
	item := NewItem(l.ID, ClassGeoLocation)
	values := map[Field]string{
		FieldCountry:   l.Country,
		FieldState:     l.State,
		FieldProvince:  l.Province,
		FieldLatitude:  l.Latitude,
		FieldLongitude: l.Longitude,
	}
	for _, a := range locationAttributes {
		item.SetAttribute(a.attr, values[a.field])
	}
	item.SetCollection(collection, children)
	return item
}

// Distribution is a dated case-count observation for one location. Counts are
// kept as the source's decimal text; empty counts are omitted when stored.
type Distribution struct {
	ID             string
	Date           time.Time
	TotalCases     string
	TotalDeaths    string
	TotalRecovered string
	ActiveCases    string
	NewCases       string
	NewDeaths      string
	LocationID     string
}

// Item converts the distribution into a sink item.
func (d Distribution) Item() Item {
	item := NewItem(d.ID, ClassDistribution)
	item.SetAttribute(AttrDate, strconv.FormatInt(d.Date.UnixMilli(), 10))
	item.SetAttribute(AttrTotalCases, d.TotalCases)
	item.SetAttribute(AttrTotalDeaths, d.TotalDeaths)
	item.SetAttribute(AttrTotalRecovered, d.TotalRecovered)
	item.SetAttribute(AttrActiveCases, d.ActiveCases)
	item.SetAttribute(AttrNewCases, d.NewCases)
	item.SetAttribute(AttrNewDeaths, d.NewDeaths)
	item.SetReference(RefGeoLocation, d.LocationID)
	return item
}

// Strain is one sequenced isolate described by a FASTA header.
type Strain struct {
	ID                     string
	PrimaryIdentifier      string
	ReferenceSequence      string
	NucleotideCompleteness string
	Length                 int
	LocationID             string
}

// Item converts the strain into a sink item.
func (s Strain) Item() Item {
	item := NewItem(s.ID, ClassStrain)
	item.SetAttribute(AttrPrimaryIdentifier, s.PrimaryIdentifier)
	item.SetAttribute(AttrReferenceSequence, s.ReferenceSequence)
	item.SetAttribute(AttrNucleotideCompleteness, s.NucleotideCompleteness)
	if s.Length > 0 {
		item.SetAttribute(AttrLength, strconv.Itoa(s.Length))
	}
	item.SetReference(RefGeoLocation, s.LocationID)
	return item
}

// DataSetItems returns the DataSource and DataSet items describing a feed's provenance.
func DataSetItems(sourceID, setID, sourceName, setName, description string) (Item, Item) {
	source := NewItem(sourceID, ClassDataSource)
	source.SetAttribute("name", sourceName)

	set := NewItem(setID, ClassDataSet)
	set.SetAttribute("name", setName)
	set.SetAttribute("description", description)
	set.SetReference(RefDataSource, sourceID)
	return source, set
}
