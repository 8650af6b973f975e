// Command genmock writes synthetic input files for every supported feed so
// the etl command can be run locally without downloading upstream data.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -days 14 -seed 42
//
// Layout of the output directory:
//
//	covid-tracking/daily.csv       FEED=covid-tracking INPUT_PATH=<out>/covid-tracking/daily.csv
//	owid/owid-covid-data.csv       FEED=owid           INPUT_PATH=<out>/owid
//	jhu/MM-dd-yyyy.csv             FEED=jhu            INPUT_PATH=<out>/jhu
//	ncbi/sequences.fasta           FEED=ncbi           INPUT_PATH=<out>/ncbi/sequences.fasta
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"
)

var baseDate = time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock", "output directory")
	days := flag.Int("days", 14, "number of days to generate")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *days < 1 {
		flag.Usage()
		return fmt.Errorf("-days must be at least 1")
	}

	g := newGenerator(*seed, *days)
	written, err := g.writeAll(*out)
	if err != nil {
		return err
	}
	for _, path := range written {
		log.Printf("wrote %s", path)
	}
	log.Printf("total: %d files", len(written))
	return nil
}

// generator produces cumulative case series that only grow day over day.
type generator struct {
	rng  *rand.Rand
	days int
}

func newGenerator(seed uint64, days int) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), days: days}
}

// series is a cumulative count per day.
type series struct {
	confirmed []int
	deaths    []int
	recovered []int
}

func (g *generator) series(start int) series {
	s := series{
		confirmed: make([]int, g.days),
		deaths:    make([]int, g.days),
		recovered: make([]int, g.days),
	}
	confirmed, deaths, recovered := start, start/50, start/10
	for d := 0; d < g.days; d++ {
		confirmed += g.rng.IntN(confirmed/5 + 10)
		deaths += g.rng.IntN(confirmed/200 + 2)
		recovered += g.rng.IntN(confirmed/20 + 3)
		if recovered+deaths > confirmed {
			recovered = confirmed - deaths
		}
		s.confirmed[d], s.deaths[d], s.recovered[d] = confirmed, deaths, recovered
	}
	return s
}

func (g *generator) writeAll(out string) ([]string, error) {
	writers := []func(string) ([]string, error){
		g.writeCovidTracking,
		g.writeOWID,
		g.writeJHU,
		g.writeNCBI,
	}
	var written []string
	for _, w := range writers {
		paths, err := w(out)
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}
	return written, nil
}

func day(d int) time.Time {
	return baseDate.AddDate(0, 0, d)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

func joinDir(out, name string) (string, error) {
	dir := filepath.Join(out, name)
	return dir, ensureDir(dir)
}
