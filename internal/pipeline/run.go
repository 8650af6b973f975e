package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/epi-data-etl/internal/aggregate"
	"github.com/couchcryptid/epi-data-etl/internal/domain"
	"github.com/couchcryptid/epi-data-etl/internal/feed"
)

// utf8BOM is stripped from the first header cell of CSV files.
const utf8BOM = "\ufeff"

// run holds the state of one Pipeline.Run call.
type run struct {
	p         *Pipeline
	cache     *aggregate.Cache
	dataSetID string
	summary   Summary
}

// storeDataSet writes the DataSource and DataSet items every child links to.
func (r *run) storeDataSet(ctx context.Context) error {
	f := r.p.feed
	sourceID := r.p.sink.NewIdentifier(domain.ClassDataSource)
	setID := r.p.sink.NewIdentifier(domain.ClassDataSet)
	source, set := domain.DataSetItems(sourceID, setID, f.DataSource, f.DataSet, f.Description)

	if err := r.store(ctx, source); err != nil {
		return fmt.Errorf("store data source: %w", err)
	}
	if err := r.store(ctx, set); err != nil {
		return fmt.Errorf("store data set: %w", err)
	}
	r.dataSetID = setID
	return nil
}

func (r *run) store(ctx context.Context, item domain.Item) error {
	if err := r.p.sink.Store(ctx, item); err != nil {
		return err
	}
	r.p.metrics.ItemsStored.WithLabelValues(item.ClassName).Inc()
	return nil
}

// processFile reads one input file. Open and tokenizer failures are returned
// as *ReadError; everything else is fatal to the run.
func (r *run) processFile(ctx context.Context, path string) error {
	f := r.p.feed

	var day time.Time
	if f.Dates == feed.DateFilename {
		d, err := domain.DateFromFilename(filepath.Base(path), f.DatePattern, f.DateLocation)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		day = d
	}

	file, err := os.Open(path)
	if err != nil {
		return &ReadError{Path: path, Err: err}
	}
	defer file.Close()
	r.p.ready.Store(true)

	rowsBefore := r.summary.Rows
	switch f.Format {
	case feed.FASTA:
		err = r.readFASTA(ctx, file, path)
	default:
		err = r.readCSV(ctx, file, path, day)
	}
	if err != nil {
		return err
	}

	r.p.logger.Info("file processed", "file", path, "rows", r.summary.Rows-rowsBefore)
	return nil
}

func (r *run) readCSV(ctx context.Context, in io.Reader, path string, day time.Time) error {
	reader := csv.NewReader(bufio.NewReader(in))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &ReadError{Path: path, Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	hm := r.p.feed.Header.Resolve(header)

	for line := 2; ; line++ {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &ReadError{Path: path, Err: err}
		}
		if err := r.processRecord(ctx, domain.Record{Values: values, Header: hm}, day); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

// readFASTA turns every sequence into a record built from its header line,
// with the residue count as its length.
func (r *run) readFASTA(ctx context.Context, in io.Reader, path string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		header  string
		started bool
		length  int
		line    int
		at      int
	)
	emit := func() error {
		if !started {
			return nil
		}
		rec := domain.ParseSequenceHeader(header).Record(length)
		if err := r.processRecord(ctx, rec, time.Time{}); err != nil {
			return fmt.Errorf("%s line %d: %w", path, at, err)
		}
		return nil
	}

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == "", strings.HasPrefix(text, ";"):
		case strings.HasPrefix(text, ">"):
			if err := emit(); err != nil {
				return err
			}
			header, started, length, at = text, true, 0, line
		default:
			length += len(text)
		}
	}
	if err := scanner.Err(); err != nil {
		return &ReadError{Path: path, Err: err}
	}
	return emit()
}

// processRecord resolves the record's location, stores its child item and
// records the child against the location.
func (r *run) processRecord(ctx context.Context, rec domain.Record, day time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := r.p.feed
	r.summary.Rows++
	r.p.metrics.RowsRead.WithLabelValues(f.Name).Inc()

	resolved, ok, err := f.Location.Resolve(rec)
	if err != nil {
		return err
	}
	if !ok {
		r.summary.Skipped++
		r.p.metrics.RowsSkipped.WithLabelValues(f.Name).Inc()
		r.p.logger.Debug("row skipped, no location", "feed", f.Name)
		return nil
	}

	loc, err := r.cache.GetOrCreate(resolved.Key, func() *domain.Location {
		return r.newLocation(ctx, resolved)
	})
	if err != nil {
		return err
	}

	item, err := r.buildChild(rec, day, loc.ID)
	if err != nil {
		return err
	}
	item.SetCollection(domain.CollDataSets, []string{r.dataSetID})

	if err := r.store(ctx, item); err != nil {
		return fmt.Errorf("store %s: %w", item.ClassName, err)
	}
	r.summary.Children++
	return r.cache.RecordChild(resolved.Key, item.Identifier)
}

// newLocation builds the location for a key seen for the first time. With a
// geocoder configured, a location the feed gave no coordinates is looked up
// here, so it is complete when cached and looked up once per key.
func (r *run) newLocation(ctx context.Context, resolved domain.ResolvedLocation) *domain.Location {
	loc := domain.NewLocation(r.p.sink.NewIdentifier(domain.ClassGeoLocation), resolved, r.p.feed.Location.Attributes)
	if r.p.geocoder == nil {
		return loc
	}
	if domain.EnrichWithGeocoding(ctx, loc, r.p.geocoder, r.p.logger) == domain.GeoSourceForward {
		r.summary.Geocoded++
	}
	return loc
}

// buildChild parses the record into the feed's child entity, linked to locationID.
func (r *run) buildChild(rec domain.Record, day time.Time, locationID string) (domain.Item, error) {
	f := r.p.feed
	switch f.ChildClass {
	case domain.ClassStrain:
		s, err := domain.BuildStrain(rec)
		if err != nil {
			return domain.Item{}, err
		}
		s.ID = r.p.sink.NewIdentifier(domain.ClassStrain)
		s.LocationID = locationID
		return s.Item(), nil

	case domain.ClassDistribution:
		date := day
		if f.Dates == feed.DateColumn {
			text, err := rec.Get(domain.FieldDate)
			if err != nil {
				return domain.Item{}, err
			}
			date, err = domain.ParseDate(text, f.DatePattern, f.DateLocation)
			if err != nil {
				return domain.Item{}, err
			}
		}
		d, err := domain.BuildDistribution(rec, date, f.DeriveActive)
		if err != nil {
			return domain.Item{}, err
		}
		d.ID = r.p.sink.NewIdentifier(domain.ClassDistribution)
		d.LocationID = locationID
		return d.Item(), nil
	}
	return domain.Item{}, fmt.Errorf("feed %s: unsupported child class %q", f.Name, f.ChildClass)
}
