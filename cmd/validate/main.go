// Command validate checks the integrity of an item graph written to a SQL
// store by the etl command: every reference and collection member resolves,
// every child is listed by the location it references, and stored attributes
// have the expected shape.
//
// Usage:
//
//	go run ./cmd/validate -driver sqlite -dsn epi-data.db
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/couchcryptid/epi-data-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/epi-data-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	driver := flag.String("driver", sqlstore.DriverSQLite, "sql driver: sqlite or postgres")
	dsn := flag.String("dsn", "", "database file (sqlite) or connection string (postgres)")
	flag.Parse()

	if *dsn == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*driver, *dsn); code != 0 {
		os.Exit(code)
	}
}

func run(driver, dsn string) int {
	store, err := sqlstore.Open(driver, dsn, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer store.Close()

	items, err := store.LoadItems(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	fmt.Println("=== Epidemiological Data Integrity Validation ===")
	fmt.Println()

	phases := validate(items)
	return report(items, phases)
}

func validate(items []domain.Item) []*phase {
	return []*phase{
		validateReferences(items),
		validateProvenance(items),
		validateAttributes(items),
	}
}

func report(items []domain.Item, phases []*phase) int {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	counts := map[string]int{}
	for _, item := range items {
		counts[item.ClassName]++
	}
	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		fmt.Printf("  %-16s %d\n", class, counts[class])
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Referential integrity ──

func validateReferences(items []domain.Item) *phase {
	p := &phase{name: "Phase 1: Referential Integrity"}
	for _, problem := range sqlstore.Verify(items).Problems {
		p.errorf("%s", problem)
	}
	return p
}

// ── Phase 2: Provenance ──
// Every child must list exactly one data set, and every data set must
// reference a data source.

func validateProvenance(items []domain.Item) *phase {
	p := &phase{name: "Phase 2: Provenance"}
	for _, item := range items {
		switch item.ClassName {
		case domain.ClassDistribution, domain.ClassStrain:
			if n := len(item.Collections[domain.CollDataSets]); n != 1 {
				p.errorf("%s: lists %d data sets, want 1", item.Identifier, n)
			}
		case domain.ClassDataSet:
			if item.References[domain.RefDataSource] == "" {
				p.errorf("%s: no data source", item.Identifier)
			}
		}
	}
	return p
}

// ── Phase 3: Attribute shape ──

var countAttributes = []string{
	domain.AttrTotalCases,
	domain.AttrTotalDeaths,
	domain.AttrTotalRecovered,
	domain.AttrActiveCases,
	domain.AttrNewCases,
	domain.AttrNewDeaths,
}

func validateAttributes(items []domain.Item) *phase {
	p := &phase{name: "Phase 3: Attribute Shape"}
	for _, item := range items {
		switch item.ClassName {
		case domain.ClassDistribution:
			checkDistribution(p, item)
		case domain.ClassStrain:
			checkStrain(p, item)
		case domain.ClassGeoLocation:
			if item.Attributes[domain.AttrCountry] == "" && item.Attributes[domain.AttrState] == "" {
				p.errorf("%s: neither country nor state set", item.Identifier)
			}
		}
	}
	return p
}

func checkDistribution(p *phase, item domain.Item) {
	date, ok := item.Attributes[domain.AttrDate]
	if !ok {
		p.errorf("%s: date missing", item.Identifier)
	} else if _, err := strconv.ParseInt(date, 10, 64); err != nil {
		p.errorf("%s: date %q is not epoch milliseconds", item.Identifier, date)
	}
	for _, attr := range countAttributes {
		v, ok := item.Attributes[attr]
		if !ok {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			p.errorf("%s: %s %q is not numeric", item.Identifier, attr, v)
		}
	}
}

func checkStrain(p *phase, item domain.Item) {
	if item.Attributes[domain.AttrPrimaryIdentifier] == "" {
		p.errorf("%s: primary identifier missing", item.Identifier)
	}
	switch ref := item.Attributes[domain.AttrReferenceSequence]; ref {
	case "Y", "N":
	default:
		p.errorf("%s: referenceSequence %q not in {Y, N}", item.Identifier, ref)
	}
	switch c := item.Attributes[domain.AttrNucleotideCompleteness]; c {
	case "Y", "N", "N/A":
	default:
		p.errorf("%s: nucleotideCompleteness %q not in {Y, N, N/A}", item.Identifier, c)
	}
}
