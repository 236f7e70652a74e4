package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// InMemorySQLiteDSN creates an ephemeral in-memory database.
const InMemorySQLiteDSN = ":memory:"

// gormConfig silences gorm's own logging; the backend logs through zerolog.
var gormConfig = &gorm.Config{
	Logger: gormlogger.Default.LogMode(gormlogger.Silent),
}

// SQLiteStore is the embedded gorm-backed implementation of Store.
type SQLiteStore struct {
	db *gorm.DB
}

// Open opens (or creates) a file-backed SQLite database and migrates the schema.
func Open(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, "creating database directory")
		}
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		// WAL keeps readers unblocked while the CAS writes land.
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return openSQLite(dsn)
}

// OpenInMemory opens a non-persistent database, used by tests and dry runs.
func OpenInMemory() (*SQLiteStore, error) {
	return openSQLite(InMemorySQLiteDSN)
}

func openSQLite(dsn string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	if err := db.AutoMigrate(schemaModels...); err != nil {
		return nil, errors.Wrap(err, "migrating schema")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "getting underlying sql.DB")
	}
	// SQLite performs best on a single connection in WAL mode.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "retrieving native sql.DB")
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, table string, record Row) (Row, error) {
	res := s.db.WithContext(ctx).Table(table).Create(map[string]any(record))
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "insert into %s", table)
	}
	return record, nil
}

func (s *SQLiteStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	tx := s.applyFilters(s.db.WithContext(ctx).Table(table), table, q.Filters)
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: q.OrderBy},
			Desc:   q.Descending,
		})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var raw []map[string]any
	if err := tx.Find(&raw).Error; err != nil {
		return nil, errors.Wrapf(err, "select from %s", table)
	}

	rows := make([]Row, len(raw))
	for i, r := range raw {
		rows[i] = normalizeRow(table, r)
	}
	return rows, nil
}

// Update applies the patch to every row matching q as a single conditioned
// UPDATE. A conditioned write that matches nothing returns an empty slice;
// that is the CAS-miss signal the ward approval machine relies on.
func (s *SQLiteStore) Update(ctx context.Context, table string, q Query, patch Row) ([]Row, error) {
	pk := primaryKeyColumn(table)

	var ids []string
	sel := s.applyFilters(s.db.WithContext(ctx).Table(table), table, q.Filters)
	if err := sel.Pluck(pk, &ids).Error; err != nil {
		return nil, errors.Wrapf(err, "resolving %s rows to update", table)
	}

	tx := s.applyFilters(s.db.WithContext(ctx).Table(table), table, q.Filters)
	res := tx.Updates(map[string]any(patch))
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "update %s", table)
	}
	if res.RowsAffected == 0 {
		return []Row{}, nil
	}

	return s.Select(ctx, table, Where(In(pk, ids...)))
}

func (s *SQLiteStore) Delete(ctx context.Context, table string, q Query) error {
	tx := s.applyFilters(s.db.WithContext(ctx).Table(table), table, q.Filters)
	if err := tx.Delete(modelFor(table)).Error; err != nil {
		return errors.Wrapf(err, "delete from %s", table)
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, table string, record Row, conflictColumns ...string) (Row, error) {
	cols := make([]clause.Column, len(conflictColumns))
	for i, c := range conflictColumns {
		cols[i] = clause.Column{Name: c}
	}
	res := s.db.WithContext(ctx).Table(table).
		Clauses(clause.OnConflict{Columns: cols, UpdateAll: true}).
		Create(map[string]any(record))
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "upsert into %s", table)
	}
	return record, nil
}

func (s *SQLiteStore) applyFilters(tx *gorm.DB, table string, filters []Filter) *gorm.DB {
	for _, f := range filters {
		values := make([]any, len(f.Values))
		for i, v := range f.Values {
			values[i] = filterValue(table, f.Field, v)
		}
		switch f.Op {
		case OpIn:
			tx = tx.Where(fmt.Sprintf("%s IN ?", f.Field), values)
		case OpGt:
			tx = tx.Where(fmt.Sprintf("%s > ?", f.Field), values[0])
		default:
			tx = tx.Where(fmt.Sprintf("%s = ?", f.Field), values[0])
		}
	}
	return tx
}

// filterValue converts grammar-level string values into what SQLite stores,
// so boolean filters like dispatched=eq.false match the 0/1 column.
func filterValue(table, field, value string) any {
	if boolColumns[table][field] {
		return value == "true" || value == "1"
	}
	return value
}

// normalizeRow converts driver-level values back into the canonical row
// representation shared by every backend.
func normalizeRow(table string, raw map[string]any) Row {
	row := make(Row, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case []byte:
			row[k] = string(t)
		case int64:
			if boolColumns[table][k] {
				row[k] = t != 0
			} else {
				row[k] = t
			}
		case bool:
			row[k] = t
		default:
			row[k] = v
		}
	}
	return row
}

// Per-table metadata derived from the schema models.
var (
	boolColumns = map[string]map[string]bool{}
	primaryKeys = map[string]string{}
	tableModels = map[string]any{}
)

func init() {
	for _, m := range schemaModels {
		named, ok := m.(interface{ TableName() string })
		if !ok {
			continue
		}
		table := named.TableName()
		tableModels[table] = m
		boolColumns[table] = map[string]bool{}

		t := reflect.TypeOf(m).Elem()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			column, primary := parseGormTag(f.Tag.Get("gorm"))
			if column == "" {
				continue
			}
			if f.Type.Kind() == reflect.Bool {
				boolColumns[table][column] = true
			}
			if primary {
				primaryKeys[table] = column
			}
		}
	}
}

func parseGormTag(tag string) (column string, primary bool) {
	for _, part := range strings.Split(tag, ";") {
		if strings.HasPrefix(part, "column:") {
			column = strings.TrimPrefix(part, "column:")
		}
		if part == "primaryKey" {
			primary = true
		}
	}
	return column, primary
}

func primaryKeyColumn(table string) string {
	if pk, ok := primaryKeys[table]; ok {
		return pk
	}
	return "id"
}

func modelFor(table string) any {
	if m, ok := tableModels[table]; ok {
		return m
	}
	return &map[string]any{}
}
