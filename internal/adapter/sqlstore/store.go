// Package sqlstore persists items to SQLite or PostgreSQL through gorm.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/epi-data-etl/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store writes each item in its own transaction, so a failed run leaves every
// item stored before the failure in place.
type Store struct {
	db  *gorm.DB
	seq int64
}

// Open connects to the database and migrates the schema.
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(
			slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if err := db.AutoMigrate(&itemRow{}, &attributeRow{}, &referenceRow{}, &collectionRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	s := &Store{db: db}
	var maxSeq sql.NullInt64
	if err := db.Model(&itemRow{}).Select("MAX(seq)").Row().Scan(&maxSeq); err != nil {
		return nil, fmt.Errorf("read item sequence: %w", err)
	}
	s.seq = maxSeq.Int64
	return s, nil
}

// NewIdentifier returns a class-scoped UUID identifier.
func (s *Store) NewIdentifier(className string) string {
	return domain.NewIdentifier(className)
}

// Store inserts item and its attributes, references and collections.
func (s *Store) Store(ctx context.Context, item domain.Item) error {
	s.seq++
	seq := s.seq
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&itemRow{ID: item.Identifier, Class: item.ClassName, Seq: seq}).Error; err != nil {
			return fmt.Errorf("insert item: %w", err)
		}

		if attrs := attributeRows(item); len(attrs) > 0 {
			if err := tx.Create(&attrs).Error; err != nil {
				return fmt.Errorf("insert attributes: %w", err)
			}
		}
		if refs := referenceRows(item); len(refs) > 0 {
			if err := tx.Create(&refs).Error; err != nil {
				return fmt.Errorf("insert references: %w", err)
			}
		}
		if members := collectionRows(item); len(members) > 0 {
			if err := tx.CreateInBatches(&members, 500).Error; err != nil {
				return fmt.Errorf("insert collections: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", item.Identifier, err)
	}
	return nil
}

// Commit is a no-op: every Store call is already committed.
func (s *Store) Commit(_ context.Context) error { return nil }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LoadItems reads every stored item back, in store order. Empty collections
// are not persisted, so they come back absent.
func (s *Store) LoadItems(ctx context.Context) ([]domain.Item, error) {
	db := s.db.WithContext(ctx)

	var rows []itemRow
	if err := db.Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	items := make([]domain.Item, len(rows))
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		items[i] = domain.NewItem(r.ID, r.Class)
		index[r.ID] = i
	}

	var attrs []attributeRow
	if err := db.Find(&attrs).Error; err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	for _, a := range attrs {
		if i, ok := index[a.ItemID]; ok {
			items[i].SetAttribute(a.Name, a.Value)
		}
	}

	var refs []referenceRow
	if err := db.Find(&refs).Error; err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}
	for _, r := range refs {
		if i, ok := index[r.ItemID]; ok {
			items[i].SetReference(r.Name, r.TargetID)
		}
	}

	var members []collectionRow
	if err := db.Order("item_id, name, position").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("load collections: %w", err)
	}
	for _, m := range members {
		i, ok := index[m.ItemID]
		if !ok {
			continue
		}
		if items[i].Collections == nil {
			items[i].Collections = make(map[string][]string)
		}
		items[i].Collections[m.Name] = append(items[i].Collections[m.Name], m.MemberID)
	}
	return items, nil
}

func attributeRows(item domain.Item) []attributeRow {
	rows := make([]attributeRow, 0, len(item.Attributes))
	for _, name := range sortedKeys(item.Attributes) {
		rows = append(rows, attributeRow{ItemID: item.Identifier, Name: name, Value: item.Attributes[name]})
	}
	return rows
}

func referenceRows(item domain.Item) []referenceRow {
	rows := make([]referenceRow, 0, len(item.References))
	for _, name := range sortedKeys(item.References) {
		rows = append(rows, referenceRow{ItemID: item.Identifier, Name: name, TargetID: item.References[name]})
	}
	return rows
}

func collectionRows(item domain.Item) []collectionRow {
	var rows []collectionRow
	names := make([]string, 0, len(item.Collections))
	for name := range item.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for pos, id := range item.Collections[name] {
			rows = append(rows, collectionRow{ItemID: item.Identifier, Name: name, Position: pos, MemberID: id})
		}
	}
	return rows
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
