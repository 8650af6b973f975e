// Package xlsx exports a run's items to an Excel workbook: one sheet per item
// class plus a "Collections" sheet listing collection members in order.
package xlsx

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/couchcryptid/epi-data-etl/internal/domain"
	"github.com/xuri/excelize/v2"
)

// CollectionsSheet holds one row per collection member.
const CollectionsSheet = "Collections"

// Workbook buffers items in memory and writes the file on Commit.
// It implements pipeline.Sink.
type Workbook struct {
	path    string
	classes []string
	items   map[string][]domain.Item
	logger  *slog.Logger
}

// NewWorkbook creates a sink that saves to path.
func NewWorkbook(path string, logger *slog.Logger) *Workbook {
	return &Workbook{path: path, items: make(map[string][]domain.Item), logger: logger}
}

// NewIdentifier returns a class-scoped UUID identifier.
func (w *Workbook) NewIdentifier(className string) string {
	return domain.NewIdentifier(className)
}

func (w *Workbook) Store(_ context.Context, item domain.Item) error {
	if _, seen := w.items[item.ClassName]; !seen {
		w.classes = append(w.classes, item.ClassName)
	}
	w.items[item.ClassName] = append(w.items[item.ClassName], item)
	return nil
}

// Commit writes the workbook to disk.
func (w *Workbook) Commit(_ context.Context) error {
	f := excelize.NewFile()
	defer f.Close()

	for _, class := range w.classes {
		if err := writeClassSheet(f, class, w.items[class]); err != nil {
			return fmt.Errorf("write sheet %s: %w", class, err)
		}
	}
	if err := w.writeCollections(f); err != nil {
		return fmt.Errorf("write sheet %s: %w", CollectionsSheet, err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", w.path, err)
	}
	w.logger.Info("workbook saved", "path", w.path, "sheets", len(w.classes)+1)
	return nil
}

// writeClassSheet lays out identifier, attribute and reference columns. Columns
// are the union over the class, sorted by name; missing values are blank.
func writeClassSheet(f *excelize.File, class string, items []domain.Item) error {
	if _, err := f.NewSheet(class); err != nil {
		return err
	}

	attrs := columnNames(items, func(i domain.Item) map[string]string { return i.Attributes })
	refs := columnNames(items, func(i domain.Item) map[string]string { return i.References })

	header := []any{"identifier"}
	for _, a := range attrs {
		header = append(header, a)
	}
	for _, r := range refs {
		header = append(header, r)
	}
	if err := f.SetSheetRow(class, "A1", &header); err != nil {
		return err
	}

	for n, item := range items {
		row := make([]any, 0, len(header))
		row = append(row, item.Identifier)
		for _, a := range attrs {
			row = append(row, item.Attributes[a])
		}
		for _, r := range refs {
			row = append(row, item.References[r])
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(class, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) writeCollections(f *excelize.File) error {
	if _, err := f.NewSheet(CollectionsSheet); err != nil {
		return err
	}
	header := []any{"identifier", "collection", "position", "member"}
	if err := f.SetSheetRow(CollectionsSheet, "A1", &header); err != nil {
		return err
	}

	line := 2
	for _, class := range w.classes {
		for _, item := range w.items[class] {
			names := make([]string, 0, len(item.Collections))
			for name := range item.Collections {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				for pos, member := range item.Collections[name] {
					row := []any{item.Identifier, name, pos, member}
					cell, err := excelize.CoordinatesToCellName(1, line)
					if err != nil {
						return err
					}
					if err := f.SetSheetRow(CollectionsSheet, cell, &row); err != nil {
						return err
					}
					line++
				}
			}
		}
	}
	return nil
}

func columnNames(items []domain.Item, values func(domain.Item) map[string]string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, item := range items {
		for name := range values(item) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
