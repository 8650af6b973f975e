package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	states    = []string{"CA", "NY", "WA", "TX", "FL"}
	countries = []string{"Italy", "Spain", "Germany", "Korea, South", "US"}
	// owidNames are the names the OWID file uses for countries.
	owidNames = map[string]string{"Korea, South": "South Korea", "US": "United States"}
	isoCodes  = map[string]string{
		"Italy": "ITA", "Spain": "ESP", "Germany": "DEU", "South Korea": "KOR", "United States": "USA",
	}
	provinces = []struct {
		province, country, lat, long string
	}{
		{"Hubei", "China", "30.9756", "112.2707"},
		{"Guangdong", "China", "23.3417", "113.4244"},
		{"", "Italy", "41.8719", "12.5674"},
		{"", "Korea, South", "35.9078", "127.7669"},
	}
)

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (g *generator) writeCovidTracking(out string) ([]string, error) {
	dir, err := joinDir(out, "covid-tracking")
	if err != nil {
		return nil, err
	}

	rows := [][]string{{"date", "state", "positive", "death", "positiveIncrease", "deathIncrease", "hospitalized"}}
	for _, st := range states {
		s := g.series(100)
		for d := 0; d < g.days; d++ {
			newCases, newDeaths := s.confirmed[d], s.deaths[d]
			if d > 0 {
				newCases -= s.confirmed[d-1]
				newDeaths -= s.deaths[d-1]
			}
			rows = append(rows, []string{
				day(d).Format("20060102"), st,
				strconv.Itoa(s.confirmed[d]), strconv.Itoa(s.deaths[d]),
				strconv.Itoa(newCases), strconv.Itoa(newDeaths), "",
			})
		}
	}

	path := filepath.Join(dir, "daily.csv")
	return []string{path}, writeCSV(path, rows)
}

func (g *generator) writeOWID(out string) ([]string, error) {
	dir, err := joinDir(out, "owid")
	if err != nil {
		return nil, err
	}

	rows := [][]string{{"iso_code", "location", "date", "total_cases", "new_cases", "total_deaths", "new_deaths"}}
	for _, c := range countries {
		name := c
		if n, ok := owidNames[c]; ok {
			name = n
		}
		s := g.series(500)
		for d := 0; d < g.days; d++ {
			newCases, newDeaths := s.confirmed[d], s.deaths[d]
			if d > 0 {
				newCases -= s.confirmed[d-1]
				newDeaths -= s.deaths[d-1]
			}
			rows = append(rows, []string{
				isoCodes[name], name, day(d).Format("2006-01-02"),
				strconv.Itoa(s.confirmed[d]), strconv.Itoa(newCases),
				strconv.Itoa(s.deaths[d]), strconv.Itoa(newDeaths),
			})
		}
	}

	path := filepath.Join(dir, "owid-covid-data.csv")
	return []string{path}, writeCSV(path, rows)
}

// writeJHU writes one file per day. The first half of the days uses the early
// column names, the rest the later layout with Admin2 and Active.
func (g *generator) writeJHU(out string) ([]string, error) {
	dir, err := joinDir(out, "jhu")
	if err != nil {
		return nil, err
	}

	all := make([]series, len(provinces))
	for i := range provinces {
		all[i] = g.series(1000)
	}

	var written []string
	for d := 0; d < g.days; d++ {
		early := d < g.days/2
		var rows [][]string
		if early {
			rows = append(rows, []string{"Province/State", "Country/Region", "Last Update", "Confirmed", "Deaths", "Recovered", "Latitude", "Longitude"})
		} else {
			rows = append(rows, []string{"FIPS", "Admin2", "Province_State", "Country_Region", "Last_Update", "Lat", "Long_", "Confirmed", "Deaths", "Recovered", "Active", "Combined_Key"})
		}

		updated := day(d).Add(23 * time.Hour).Format("2006-01-02T15:04:05")
		for i, p := range provinces {
			s := all[i]
			confirmed, deaths, recovered := strconv.Itoa(s.confirmed[d]), strconv.Itoa(s.deaths[d]), strconv.Itoa(s.recovered[d])
			if early {
				rows = append(rows, []string{p.province, p.country, updated, confirmed, deaths, recovered, p.lat, p.long})
				continue
			}
			active := strconv.Itoa(s.confirmed[d] - s.deaths[d] - s.recovered[d])
			combined := strings.TrimPrefix(p.province+", "+p.country, ", ")
			rows = append(rows, []string{"", "", p.province, p.country, updated, p.lat, p.long, confirmed, deaths, recovered, active, combined})
		}

		path := filepath.Join(dir, day(d).Format("01-02-2006")+".csv")
		if err := writeCSV(path, rows); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

var sequenceOrigins = []string{"China", "USA", "Italy", "Spain", "Australia"}

func (g *generator) writeNCBI(out string) ([]string, error) {
	dir, err := joinDir(out, "ncbi")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "sequences.fasta")
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, ">NC_045512 |China|refseq|complete")
	g.writeResidues(w, 29903)
	for i := 0; i < g.days*len(sequenceOrigins); i++ {
		origin := sequenceOrigins[g.rng.IntN(len(sequenceOrigins))]
		qualifier := "complete"
		length := 29700 + g.rng.IntN(200)
		if g.rng.IntN(5) == 0 {
			qualifier = "partial"
			length = 1000 + g.rng.IntN(20000)
		}
		fmt.Fprintf(w, ">MT%06d |%s|%s\n", 100000+i, origin, qualifier)
		g.writeResidues(w, length)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return []string{path}, f.Close()
}

// writeResidues writes n random nucleotides in 70-column lines.
func (g *generator) writeResidues(w *bufio.Writer, n int) {
	const bases = "ACGT"
	line := make([]byte, 0, 70)
	for i := 0; i < n; i++ {
		line = append(line, bases[g.rng.IntN(len(bases))])
		if len(line) == cap(line) || i == n-1 {
			w.Write(line)
			w.WriteByte('\n')
			line = line[:0]
		}
	}
}
