package feed

import (
	_ "embed"
	"fmt"

	"github.com/couchcryptid/epi-data-etl/internal/domain"
)

//go:embed codes/us-states.properties
var usStates []byte

//go:embed codes/countries.properties
var countries []byte

// Tables holds the code-translation tables shared by the feeds.
type Tables struct {
	States    *domain.CodeTable
	Countries *domain.CodeTable
}

// LoadTables returns the embedded tables, replacing either one with the file at
// the given path when the path is non-empty.
func LoadTables(statesPath, countriesPath string) (Tables, error) {
	var t Tables
	var err error

	if statesPath != "" {
		t.States, err = domain.LoadCodeTableFile(statesPath)
	} else {
		t.States, err = domain.LoadCodeTable("us-states.properties", usStates)
	}
	if err != nil {
		return Tables{}, fmt.Errorf("state codes: %w", err)
	}

	if countriesPath != "" {
		t.Countries, err = domain.LoadCodeTableFile(countriesPath)
	} else {
		t.Countries, err = domain.LoadCodeTable("countries.properties", countries)
	}
	if err != nil {
		return Tables{}, fmt.Errorf("country aliases: %w", err)
	}

	return t, nil
}
