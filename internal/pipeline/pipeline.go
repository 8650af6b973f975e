package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/epi-data-etl/internal/aggregate"
	"github.com/couchcryptid/epi-data-etl/internal/domain"
	"github.com/couchcryptid/epi-data-etl/internal/feed"
	"github.com/couchcryptid/epi-data-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Sink persists the items produced by a run. Commit is called once, after the
// final flush, so buffering sinks can write what they still hold.
type Sink interface {
	aggregate.Sink
	Commit(ctx context.Context) error
}

// Summary reports what a run did.
type Summary struct {
	Files       int
	FailedFiles int
	Rows        int
	Skipped     int
	Children    int
	Locations   int
	Geocoded    int
	Duration    time.Duration
}

// Pipeline runs one feed end to end: read every record, build and store its
// child item, aggregate locations, then flush the locations to the sink.
type Pipeline struct {
	feed     *feed.Feed
	sink     Sink
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	geocoder domain.Geocoder
	ready    atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the time source used to measure run duration.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithGeocoder enables coordinate lookup for locations whose feed supplies
// neither latitude nor longitude. Lookups run once per location, when it is
// first created.
func WithGeocoder(g domain.Geocoder) Option {
	return func(p *Pipeline) { p.geocoder = g }
}

// New creates a Pipeline for f writing to sink.
func New(f *feed.Feed, sink Sink, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		feed:    f,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once the run has opened its first input file.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not opened any input yet")
	}
	return nil
}

// Run processes input, a file or a directory depending on the feed layout.
// Rows without a location are skipped. Unreadable files are skipped for
// directory feeds; every other failure aborts the run, leaving whatever was
// already stored in the sink.
func (p *Pipeline) Run(ctx context.Context, input string) (Summary, error) {
	start := p.clock.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.logger.Info("run started", "feed", p.feed.Name, "input", input)

	r := &run{p: p, cache: aggregate.New()}
	defer r.cache.Close()

	if err := r.storeDataSet(ctx); err != nil {
		return r.summary, err
	}

	files, err := p.inputs(input)
	if err != nil {
		return r.summary, err
	}
	if len(files) == 0 {
		p.logger.Warn("no input files matched", "input", input, "extension", p.feed.Extension)
	}

	for _, path := range files {
		err := r.processFile(ctx, path)
		p.metrics.Locations.Set(float64(r.cache.Len()))
		if err == nil {
			r.summary.Files++
			p.metrics.Files.WithLabelValues("processed").Inc()
			continue
		}

		p.metrics.Files.WithLabelValues("failed").Inc()
		var readErr *ReadError
		if errors.As(err, &readErr) && p.feed.Layout == feed.Directory {
			r.summary.FailedFiles++
			p.logger.Error("read failed, skipping file", "file", path, "error", err)
			continue
		}
		return r.summary, err
	}

	n, err := r.cache.Flush(ctx, p.sink, p.feed.Collection)
	p.metrics.ItemsStored.WithLabelValues(domain.ClassGeoLocation).Add(float64(n))
	r.summary.Locations = n
	if err != nil {
		return r.summary, fmt.Errorf("flush locations: %w", err)
	}

	if err := p.sink.Commit(ctx); err != nil {
		return r.summary, fmt.Errorf("commit sink: %w", err)
	}

	r.summary.Duration = p.clock.Since(start)
	p.metrics.RunDuration.Observe(r.summary.Duration.Seconds())
	p.logger.Info("run completed",
		"feed", p.feed.Name,
		"files", r.summary.Files,
		"failed_files", r.summary.FailedFiles,
		"rows", r.summary.Rows,
		"skipped", r.summary.Skipped,
		"children", r.summary.Children,
		"locations", r.summary.Locations,
		"geocoded", r.summary.Geocoded,
		"duration", r.summary.Duration,
	)
	return r.summary, nil
}

// inputs lists the files to process, in name order for directory feeds.
func (p *Pipeline) inputs(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, &ReadError{Path: input, Err: err}
	}

	if p.feed.Layout == feed.SingleFile {
		if info.IsDir() {
			return nil, fmt.Errorf("feed %s expects a file, %s is a directory", p.feed.Name, input)
		}
		return []string{input}, nil
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("feed %s expects a directory, %s is a file", p.feed.Name, input)
	}
	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, &ReadError{Path: input, Err: err}
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), p.feed.Extension) {
			files = append(files, filepath.Join(input, e.Name()))
		}
	}
	return files, nil
}
