package domain

import (
	"fmt"

	"github.com/magiconair/properties"
)

// CodeTable translates source codes (state abbreviations, country aliases) to
// canonical names. Tables are loaded once at startup from key=value resources.
type CodeTable struct {
	name  string
	props *properties.Properties
}

// LoadCodeTable parses a key=value properties document.
func LoadCodeTable(name string, data []byte) (*CodeTable, error) {
	p, err := properties.Load(data, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("load code table %s: %w", name, err)
	}
	p.DisableExpansion = true
	return &CodeTable{name: name, props: p}, nil
}

// LoadCodeTableFile reads a properties file from disk.
func LoadCodeTableFile(path string) (*CodeTable, error) {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("load code table %s: %w", path, err)
	}
	p.DisableExpansion = true
	return &CodeTable{name: path, props: p}, nil
}

// NewCodeTable builds a table from an in-memory map.
func NewCodeTable(name string, entries map[string]string) *CodeTable {
	p := properties.LoadMap(entries)
	p.DisableExpansion = true
	return &CodeTable{name: name, props: p}
}

// Name identifies the table in logs and errors.
func (t *CodeTable) Name() string { return t.name }

// Len returns the number of codes in the table.
func (t *CodeTable) Len() int {
	if t == nil {
		return 0
	}
	return t.props.Len()
}

// Lookup returns the canonical name for code.
func (t *CodeTable) Lookup(code string) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.props.Get(code)
}

// Translation applies a code table to one field before the location key is built.
// Strict translations drop codes missing from the table (the value becomes "");
// lenient ones keep the source value.
type Translation struct {
	Field  Field
	Table  *CodeTable
	Strict bool
}

// Apply translates a single value.
func (t Translation) Apply(value string) string {
	if value == "" {
		return ""
	}
	if name, ok := t.Table.Lookup(value); ok {
		return name
	}
	if t.Strict {
		return ""
	}
	return value
}
