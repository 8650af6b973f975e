package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/couchcryptid/epi-data-etl/internal/adapter/memory"
	"github.com/couchcryptid/epi-data-etl/internal/domain"
	"github.com/couchcryptid/epi-data-etl/internal/feed"
	"github.com/couchcryptid/epi-data-etl/internal/observability"
	"github.com/couchcryptid/epi-data-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func testTables(t *testing.T) feed.Tables {
	t.Helper()
	tables, err := feed.LoadTables("", "")
	require.NoError(t, err)
	return tables
}

func newPipeline(f *feed.Feed, sink pipeline.Sink) *pipeline.Pipeline {
	return pipeline.New(f, sink, slog.Default(), observability.NewMetricsForTesting(),
		pipeline.WithClock(clockwork.NewFakeClock()))
}

func runFeed(t *testing.T, f *feed.Feed, input string) (*memory.Sink, pipeline.Summary, error) {
	t.Helper()
	sink := memory.NewSink()
	summary, err := newPipeline(f, sink).Run(context.Background(), input)
	return sink, summary, err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// children returns the items a location lists under collection.
func children(t *testing.T, sink *memory.Sink, loc domain.Item, collection string) []domain.Item {
	t.Helper()
	var out []domain.Item
	for _, id := range loc.Collections[collection] {
		item, ok := sink.Item(id)
		require.True(t, ok, "child %s not stored", id)
		out = append(out, item)
	}
	return out
}

func locationByAttr(t *testing.T, sink *memory.Sink, attr, value string) domain.Item {
	t.Helper()
	for _, item := range sink.ItemsOf(domain.ClassGeoLocation) {
		if item.Attributes[attr] == value {
			return item
		}
	}
	t.Fatalf("no location with %s=%q", attr, value)
	return domain.Item{}
}

// --- covid tracking ---

func TestRun_CovidTracking(t *testing.T) {
	sink, summary, err := runFeed(t, feed.CovidTracking(testTables(t)), "testdata/daily.csv")
	require.NoError(t, err)
	assert.True(t, sink.Committed())

	want := pipeline.Summary{Files: 1, Rows: 5, Skipped: 2, Children: 3, Locations: 2}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}

	locations := sink.ItemsOf(domain.ClassGeoLocation)
	require.Len(t, locations, 2)

	ca := locationByAttr(t, sink, domain.AttrState, "California")
	assert.Equal(t, "United States", ca.Attributes[domain.AttrCountry])

	dists := children(t, sink, ca, "distributions")
	require.Len(t, dists, 2)
	assert.Equal(t, "10", dists[0].Attributes[domain.AttrTotalCases])
	assert.Equal(t, "1", dists[0].Attributes[domain.AttrTotalDeaths])
	assert.Equal(t, "1577836800000", dists[0].Attributes[domain.AttrDate])
	assert.Equal(t, "15", dists[1].Attributes[domain.AttrTotalCases])
	assert.Equal(t, "2", dists[1].Attributes[domain.AttrTotalDeaths])
	assert.Equal(t, "1577923200000", dists[1].Attributes[domain.AttrDate])

	for _, d := range dists {
		assert.Equal(t, ca.Identifier, d.References[domain.RefGeoLocation])
	}

	ny := locationByAttr(t, sink, domain.AttrState, "New York")
	nyDists := children(t, sink, ny, "distributions")
	require.Len(t, nyDists, 1)
	_, hasDeaths := nyDists[0].Attributes[domain.AttrTotalDeaths]
	assert.False(t, hasDeaths, "empty counts are omitted")
}

func TestRun_ProvenanceItems(t *testing.T) {
	sink, _, err := runFeed(t, feed.CovidTracking(testTables(t)), "testdata/daily.csv")
	require.NoError(t, err)

	sources := sink.ItemsOf(domain.ClassDataSource)
	sets := sink.ItemsOf(domain.ClassDataSet)
	require.Len(t, sources, 1)
	require.Len(t, sets, 1)
	assert.Equal(t, "COVIDTrackingProject", sources[0].Attributes["name"])
	assert.Equal(t, sources[0].Identifier, sets[0].References[domain.RefDataSource])

	// Provenance is written before any record.
	assert.Equal(t, domain.ClassDataSource, sink.Items()[0].ClassName)
	assert.Equal(t, domain.ClassDataSet, sink.Items()[1].ClassName)

	for _, d := range sink.ItemsOf(domain.ClassDistribution) {
		assert.Equal(t, []string{sets[0].Identifier}, d.Collections[domain.CollDataSets])
	}
}

func TestRun_LocationsStoredAfterChildren(t *testing.T) {
	sink, _, err := runFeed(t, feed.CovidTracking(testTables(t)), "testdata/daily.csv")
	require.NoError(t, err)

	items := sink.Items()
	lastChild, firstLocation := -1, len(items)
	for i, item := range items {
		switch item.ClassName {
		case domain.ClassDistribution:
			lastChild = i
		case domain.ClassGeoLocation:
			if i < firstLocation {
				firstLocation = i
			}
		}
	}
	assert.Less(t, lastChild, firstLocation)
}

func TestRun_RowOrderDoesNotChangeGraph(t *testing.T) {
	dir := t.TempDir()
	reversed := writeFile(t, dir, "daily.csv", `date,state,positive,death,positiveIncrease,deathIncrease
20200102,ZZ,1,0,1,0
20200102,,3,0,3,0
20200102,CA,15,2,5,1
20200101,NY,4,,4,
20200101,CA,10,1,10,1
`)

	graph := func(input string) map[string][]string {
		sink, _, err := runFeed(t, feed.CovidTracking(testTables(t)), input)
		require.NoError(t, err)
		out := make(map[string][]string)
		for _, loc := range sink.ItemsOf(domain.ClassGeoLocation) {
			var cases []string
			for _, d := range children(t, sink, loc, "distributions") {
				cases = append(cases, d.Attributes[domain.AttrDate]+"="+d.Attributes[domain.AttrTotalCases])
			}
			sort.Strings(cases)
			out[loc.Attributes[domain.AttrState]] = cases
		}
		return out
	}

	if diff := cmp.Diff(graph("testdata/daily.csv"), graph(reversed)); diff != "" {
		t.Fatalf("graph depends on row order (-original +reversed):\n%s", diff)
	}
}

func TestRun_DateErrorIsFatal(t *testing.T) {
	input := writeFile(t, t.TempDir(), "daily.csv", `date,state,positive,death,positiveIncrease,deathIncrease
2020-01-01,CA,10,1,10,1
`)
	sink, _, err := runFeed(t, feed.CovidTracking(testTables(t)), input)
	require.Error(t, err)

	var dateErr *domain.DateError
	require.ErrorAs(t, err, &dateErr)
	assert.Equal(t, "2020-01-01", dateErr.Text)
	assert.Contains(t, err.Error(), "line 2")
	assert.False(t, sink.Committed())
	assert.Empty(t, sink.ItemsOf(domain.ClassGeoLocation))
}

func TestRun_ShortRecordIsFatal(t *testing.T) {
	input := writeFile(t, t.TempDir(), "daily.csv", `date,state,positive,death,positiveIncrease,deathIncrease
20200101,CA
`)
	_, _, err := runFeed(t, feed.CovidTracking(testTables(t)), input)
	require.ErrorIs(t, err, domain.ErrShortRecord)
}

func TestRun_SingleFileReadErrorAborts(t *testing.T) {
	input := writeFile(t, t.TempDir(), "daily.csv", "date,state,positive,death,positiveIncrease,deathIncrease\n20200101,C\"A\n")
	sink, _, err := runFeed(t, feed.CovidTracking(testTables(t)), input)

	var readErr *pipeline.ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, input, readErr.Path)
	assert.False(t, sink.Committed())
}

func TestRun_MissingInput(t *testing.T) {
	_, _, err := runFeed(t, feed.CovidTracking(testTables(t)), filepath.Join(t.TempDir(), "missing.csv"))
	var readErr *pipeline.ReadError
	require.ErrorAs(t, err, &readErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_LayoutMismatch(t *testing.T) {
	_, _, err := runFeed(t, feed.CovidTracking(testTables(t)), t.TempDir())
	require.ErrorContains(t, err, "expects a file")

	_, _, err = runFeed(t, feed.OWID(testTables(t)), "testdata/daily.csv")
	require.ErrorContains(t, err, "expects a directory")
}

func TestRun_EmptyFile(t *testing.T) {
	input := writeFile(t, t.TempDir(), "daily.csv", "")
	sink, summary, err := runFeed(t, feed.CovidTracking(testTables(t)), input)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 0, summary.Rows)
	assert.True(t, sink.Committed())
	assert.Len(t, sink.Items(), 2)
}

func TestRun_SinkErrorIsFatal(t *testing.T) {
	boom := errors.New("disk full")
	sink := memory.NewSink()
	sink.FailWhen = func(item domain.Item) error {
		if item.ClassName == domain.ClassDistribution {
			return boom
		}
		return nil
	}

	_, err := newPipeline(feed.CovidTracking(testTables(t)), sink).Run(context.Background(), "testdata/daily.csv")
	require.ErrorIs(t, err, boom)
	assert.False(t, sink.Committed())
	assert.Empty(t, sink.ItemsOf(domain.ClassGeoLocation))
}

func TestRun_FlushErrorIsFatal(t *testing.T) {
	boom := errors.New("connection reset")
	sink := memory.NewSink()
	sink.FailWhen = func(item domain.Item) error {
		if item.ClassName == domain.ClassGeoLocation {
			return boom
		}
		return nil
	}

	summary, err := newPipeline(feed.CovidTracking(testTables(t)), sink).Run(context.Background(), "testdata/daily.csv")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "flush locations")
	assert.Equal(t, 0, summary.Locations)
	assert.False(t, sink.Committed())
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := memory.NewSink()
	_, err := newPipeline(feed.CovidTracking(testTables(t)), sink).Run(ctx, "testdata/daily.csv")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, sink.Committed())
}

// --- directory feeds ---

func TestRun_OWID(t *testing.T) {
	sink, summary, err := runFeed(t, feed.OWID(testTables(t)), "testdata/owid")
	require.NoError(t, err)

	want := pipeline.Summary{Files: 2, Rows: 4, Skipped: 1, Children: 3, Locations: 2}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}

	italy := locationByAttr(t, sink, domain.AttrCountry, "Italy")
	dists := children(t, sink, italy, "distributions")
	require.Len(t, dists, 2)
	assert.Equal(t, "1694", dists[0].Attributes[domain.AttrTotalCases])
	assert.Equal(t, "566", dists[0].Attributes[domain.AttrNewCases])
	assert.Equal(t, "5", dists[0].Attributes[domain.AttrNewDeaths])

	korea := locationByAttr(t, sink, domain.AttrCountry, "South Korea")
	assert.Len(t, korea.Collections["distributions"], 1)
}

func TestRun_JHU(t *testing.T) {
	sink, summary, err := runFeed(t, feed.JHU(testTables(t), nil), "testdata/jhu")
	require.NoError(t, err)

	want := pipeline.Summary{Files: 2, Rows: 5, Skipped: 1, Children: 4, Locations: 2}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}

	hubei := locationByAttr(t, sink, domain.AttrState, "Hubei")
	assert.Equal(t, "China", hubei.Attributes[domain.AttrCountry])
	assert.Equal(t, "30.9756", hubei.Attributes[domain.AttrLatitude])
	assert.Equal(t, "112.2707", hubei.Attributes[domain.AttrLongitude])

	dists := children(t, sink, hubei, "distributions")
	require.Len(t, dists, 2)
	assert.Equal(t, "5715", dists[0].Attributes[domain.AttrActiveCases], "derived from confirmed - recovered - deaths")
	assert.Equal(t, "58946", dists[0].Attributes[domain.AttrTotalRecovered])
	assert.Equal(t, "5223", dists[1].Attributes[domain.AttrActiveCases], "source value kept")

	italy := locationByAttr(t, sink, domain.AttrCountry, "Italy")
	assert.Len(t, italy.Collections["distributions"], 2)
}

func TestRun_JHU_DatesFromFilename(t *testing.T) {
	sink, _, err := runFeed(t, feed.JHU(testTables(t), time.UTC), "testdata/jhu")
	require.NoError(t, err)

	hubei := locationByAttr(t, sink, domain.AttrState, "Hubei")
	dists := children(t, sink, hubei, "distributions")
	require.Len(t, dists, 2)
	assert.Equal(t, "1584748800000", dists[0].Attributes[domain.AttrDate])
	assert.Equal(t, "1584835200000", dists[1].Attributes[domain.AttrDate])
}

func TestRun_DirectoryContinuesAfterReadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "03-20-2020.csv", "Province/State,Country/Region,Confirmed\nHubei,Chi\"na\n")
	writeFile(t, dir, "03-21-2020.csv", `Province/State,Country/Region,Last Update,Confirmed,Deaths,Recovered,Latitude,Longitude
Hubei,China,2020-03-21T10:13:08,67800,3139,58946,30.9756,112.2707
`)

	sink, summary, err := runFeed(t, feed.JHU(testTables(t), time.UTC), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 1, summary.FailedFiles)
	assert.Len(t, sink.ItemsOf(domain.ClassDistribution), 1)
	assert.True(t, sink.Committed())
}

func TestRun_FilenameWithoutDateIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "latest.csv", "Province/State,Country/Region,Confirmed\nHubei,China,1\n")

	_, _, err := runFeed(t, feed.JHU(testTables(t), time.UTC), dir)
	var dateErr *domain.DateError
	require.ErrorAs(t, err, &dateErr)
	assert.Equal(t, "latest", dateErr.Text)
}

func TestRun_EmptyDirectory(t *testing.T) {
	sink, summary, err := runFeed(t, feed.OWID(testTables(t)), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Files)
	assert.True(t, sink.Committed())
}

// --- sequences ---

func TestRun_NCBI(t *testing.T) {
	sink, summary, err := runFeed(t, feed.NCBI(testTables(t)), "testdata/sequences.fasta")
	require.NoError(t, err)

	want := pipeline.Summary{Files: 1, Rows: 4, Skipped: 1, Children: 3, Locations: 2}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}

	china := locationByAttr(t, sink, domain.AttrCountry, "China")
	strains := children(t, sink, china, "strains")
	require.Len(t, strains, 2)

	type strain struct{ ID, Ref, Complete, Length string }
	got := make([]strain, 0, len(strains))
	for _, s := range strains {
		got = append(got, strain{
			ID:       s.Attributes[domain.AttrPrimaryIdentifier],
			Ref:      s.Attributes[domain.AttrReferenceSequence],
			Complete: s.Attributes[domain.AttrNucleotideCompleteness],
			Length:   s.Attributes[domain.AttrLength],
		})
	}
	wantStrains := []strain{
		{ID: "MN908947", Ref: "N", Complete: "Y", Length: "16"},
		{ID: "NC_045512", Ref: "Y", Complete: "Y", Length: "8"},
	}
	if diff := cmp.Diff(wantStrains, got); diff != "" {
		t.Fatalf("strains mismatch (-want +got):\n%s", diff)
	}

	us := locationByAttr(t, sink, domain.AttrCountry, "United States")
	usStrains := children(t, sink, us, "strains")
	require.Len(t, usStrains, 1)
	assert.Equal(t, "N", usStrains[0].Attributes[domain.AttrNucleotideCompleteness])
}

// --- readiness ---

func TestCheckReadiness(t *testing.T) {
	p := newPipeline(feed.CovidTracking(testTables(t)), memory.NewSink())
	require.Error(t, p.CheckReadiness(context.Background()))

	_, err := p.Run(context.Background(), "testdata/daily.csv")
	require.NoError(t, err)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

// --- geocoding ---

type fakeGeocoder struct {
	places  map[string]domain.GeocodingResult
	err     error
	queries []string
}

func (g *fakeGeocoder) ForwardGeocode(_ context.Context, query string) (domain.GeocodingResult, error) {
	g.queries = append(g.queries, query)
	if g.err != nil {
		return domain.GeocodingResult{}, g.err
	}
	return g.places[query], nil
}

func TestRun_GeocoderFillsMissingCoordinates(t *testing.T) {
	g := &fakeGeocoder{places: map[string]domain.GeocodingResult{
		"California, United States": {Lat: 36.7783, Lon: -119.4179, PlaceName: "California, United States"},
	}}
	sink := memory.NewSink()
	p := pipeline.New(feed.CovidTracking(testTables(t)), sink, slog.Default(), observability.NewMetricsForTesting(),
		pipeline.WithClock(clockwork.NewFakeClock()), pipeline.WithGeocoder(g))

	summary, err := p.Run(context.Background(), "testdata/daily.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Geocoded)
	assert.Equal(t, []string{"California, United States", "New York, United States"}, g.queries,
		"one lookup per location in first-seen order")

	ca := locationByAttr(t, sink, domain.AttrState, "California")
	assert.Equal(t, "36.7783", ca.Attributes[domain.AttrLatitude])
	assert.Equal(t, "-119.4179", ca.Attributes[domain.AttrLongitude])

	ny := locationByAttr(t, sink, domain.AttrState, "New York")
	assert.NotContains(t, ny.Attributes, domain.AttrLatitude)
}

func TestRun_GeocoderFailureIsNotFatal(t *testing.T) {
	g := &fakeGeocoder{err: errors.New("mapbox API error: status 429")}
	sink := memory.NewSink()
	p := pipeline.New(feed.CovidTracking(testTables(t)), sink, slog.Default(), observability.NewMetricsForTesting(),
		pipeline.WithGeocoder(g))

	summary, err := p.Run(context.Background(), "testdata/daily.csv")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Geocoded)
	assert.Equal(t, 2, summary.Locations)
	assert.True(t, sink.Committed())
}

func TestRun_GeocoderKeepsHalfFilledFeedCoordinates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "03-22-2020.csv",
		"Province_State,Country_Region,Lat,Long_,Confirmed,Deaths,Recovered,Active\n"+
			"Hubei,China,30.9756,,67800,3144,59433,5223\n"+
			",Italy,,,59138,5476,7024,46638\n"+
			"Hubei,China,30.9756,,67900,3150,59500,5250\n")
	g := &fakeGeocoder{places: map[string]domain.GeocodingResult{
		"Hubei, China": {Lat: 1.5, Lon: 2.5, PlaceName: "Hubei, China"},
		"Italy":        {Lat: 41.8719, Lon: 12.5674, PlaceName: "Italy"},
	}}
	sink := memory.NewSink()
	p := pipeline.New(feed.JHU(testTables(t), time.UTC), sink, slog.Default(), observability.NewMetricsForTesting(),
		pipeline.WithGeocoder(g))

	summary, err := p.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Geocoded)
	assert.Equal(t, []string{"Italy"}, g.queries, "locations with a feed coordinate are not looked up")

	hubei := locationByAttr(t, sink, domain.AttrState, "Hubei")
	assert.Equal(t, "30.9756", hubei.Attributes[domain.AttrLatitude])
	assert.NotContains(t, hubei.Attributes, domain.AttrLongitude)
	assert.Len(t, hubei.Collections["distributions"], 2)

	italy := locationByAttr(t, sink, domain.AttrCountry, "Italy")
	assert.Equal(t, "41.8719", italy.Attributes[domain.AttrLatitude])
	assert.Equal(t, "12.5674", italy.Attributes[domain.AttrLongitude])
}

func TestRun_GeocoderLooksUpOncePerLocation(t *testing.T) {
	g := &fakeGeocoder{}
	sink := memory.NewSink()
	p := pipeline.New(feed.OWID(testTables(t)), sink, slog.Default(), observability.NewMetricsForTesting(),
		pipeline.WithGeocoder(g))

	summary, err := p.Run(context.Background(), "testdata/owid")
	require.NoError(t, err)
	assert.Len(t, g.queries, summary.Locations)
}
