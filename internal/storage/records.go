package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/maneesh/schematic/internal/config"
	"github.com/maneesh/schematic/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record matches a lookup
var ErrNotFound = errors.New("not found")

// dialect holds the statements that differ between MySQL/TiDB and SQLite
type dialect struct {
	driverName   string
	migrations   []string
	insertIgnore string
}

var dialects = map[string]dialect{
	config.DriverMySQL: {
		driverName: "mysql",
		migrations: []string{
			`CREATE TABLE IF NOT EXISTS records (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				date_added DATETIME(6) NOT NULL,
				content_type VARCHAR(255) NOT NULL,
				digest VARCHAR(255) NOT NULL,
				field VARCHAR(255) NOT NULL,
				UNIQUE KEY uniq_records_digest_field (digest, field),
				KEY idx_records_field (field)
			) DEFAULT CHARSET = utf8mb4 COLLATE = utf8mb4_bin`,
		},
		insertIgnore: `INSERT IGNORE INTO records (date_added, content_type, digest, field)
				  VALUES (?, ?, ?, ?)`,
	},
	config.DriverSQLite: {
		driverName: "sqlite",
		migrations: []string{
			`CREATE TABLE IF NOT EXISTS records (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				date_added DATETIME NOT NULL,
				content_type VARCHAR(255) NOT NULL,
				digest VARCHAR(255) NOT NULL,
				field VARCHAR(255) NOT NULL,
				UNIQUE (digest, field)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_records_field ON records (field)`,
		},
		insertIgnore: `INSERT OR IGNORE INTO records (date_added, content_type, digest, field)
				  VALUES (?, ?, ?, ?)`,
	},
}

// RecordStore wraps the records table with tracing
type RecordStore struct {
	db      *sql.DB
	dialect dialect
}

// NewRecordStore opens the record store for driver ("mysql" or "sqlite")
func NewRecordStore(driver, dsn string) (*RecordStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported record store driver: %s", driver)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	if driver == config.DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	return &RecordStore{db: db, dialect: d}, nil
}

// Close closes the database connection
func (rs *RecordStore) Close() error {
	return rs.db.Close()
}

// Ping checks the database connection
func (rs *RecordStore) Ping(ctx context.Context) error {
	return rs.db.PingContext(ctx)
}

// Migrate creates the records table if it does not exist
func (rs *RecordStore) Migrate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "records.migrate")
	defer span.End()

	for _, stmt := range rs.dialect.migrations {
		if _, err := rs.db.ExecContext(ctx, stmt); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to migrate records table: %w", err)
		}
	}
	return nil
}

// FindDateAdded returns when digest was first recorded; found is false for
// digests never seen.
func (rs *RecordStore) FindDateAdded(ctx context.Context, digest string) (dateAdded time.Time, found bool, err error) {
	ctx, span := tracer.Start(ctx, "records.find_date_added",
		trace.WithAttributes(
			attribute.String("digest", digest),
		),
	)
	defer span.End()

	query := `SELECT date_added FROM records WHERE digest = ? LIMIT 1`

	err = rs.db.QueryRowContext(ctx, query, digest).Scan(&dateAdded)
	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("found", false))
		return time.Time{}, false, nil
	} else if err != nil {
		span.RecordError(err)
		return time.Time{}, false, fmt.Errorf("failed to query date added: %w", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return dateAdded.UTC(), true, nil
}

// CreateRecords inserts records in one transaction. Rows that already exist
// for the same (digest, field) are skipped. When at least one row is new,
// onCreated runs before commit and its failure rolls the insert back.
// created reports whether this call inserted anything; a record set with no
// rows always counts as created.
func (rs *RecordStore) CreateRecords(ctx context.Context, records []*models.Record, onCreated func(context.Context) error) (created bool, err error) {
	ctx, span := tracer.Start(ctx, "records.create_records",
		trace.WithAttributes(
			attribute.Int("record_count", len(records)),
		),
	)
	defer span.End()

	if len(records) == 0 {
		if onCreated != nil {
			if err := onCreated(ctx); err != nil {
				span.RecordError(err)
				return false, err
			}
		}
		return true, nil
	}

	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, rs.dialect.insertIgnore)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, record := range records {
		res, err := stmt.ExecContext(ctx, record.DateAdded, record.ContentType, record.Digest, record.Field)
		if err != nil {
			span.RecordError(err)
			return false, fmt.Errorf("failed to insert record: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			span.RecordError(err)
			return false, fmt.Errorf("failed to count inserted records: %w", err)
		}
		inserted += n
	}

	span.SetAttributes(attribute.Int64("inserted", inserted))
	if inserted == 0 {
		return false, nil
	}

	if onCreated != nil {
		if err := onCreated(ctx); err != nil {
			span.RecordError(err)
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to commit records: %w", err)
	}
	return true, nil
}

// GetRecords retrieves all records of a digest ordered by field
func (rs *RecordStore) GetRecords(ctx context.Context, digest string) ([]*models.Record, error) {
	ctx, span := tracer.Start(ctx, "records.get_records",
		trace.WithAttributes(
			attribute.String("digest", digest),
		),
	)
	defer span.End()

	query := `SELECT id, date_added, content_type, digest, field
			  FROM records
			  WHERE digest = ?
			  ORDER BY field ASC`

	rows, err := rs.db.QueryContext(ctx, query, digest)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		var record models.Record
		err := rows.Scan(
			&record.ID,
			&record.DateAdded,
			&record.ContentType,
			&record.Digest,
			&record.Field,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record.DateAdded = record.DateAdded.UTC()
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("digest %s: %w", digest, ErrNotFound)
	}

	span.SetAttributes(attribute.Int("record_count", len(records)))
	return records, nil
}

// FieldsByDigest aggregates the recorded fields of every digest
func (rs *RecordStore) FieldsByDigest(ctx context.Context) (map[string][]string, error) {
	ctx, span := tracer.Start(ctx, "records.fields_by_digest")
	defer span.End()

	query := `SELECT digest, field FROM records ORDER BY digest ASC, field ASC`

	rows, err := rs.db.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query fields: %w", err)
	}
	defer rows.Close()

	fields := make(map[string][]string)
	for rows.Next() {
		var digest, field string
		if err := rows.Scan(&digest, &field); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields[digest] = append(fields[digest], field)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating fields: %w", err)
	}

	span.SetAttributes(attribute.Int("digest_count", len(fields)))
	return fields, nil
}

// DistinctFields lists every field ever recorded
func (rs *RecordStore) DistinctFields(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "records.distinct_fields")
	defer span.End()

	query := `SELECT DISTINCT field FROM records ORDER BY field ASC`

	values, err := rs.queryStrings(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query distinct fields: %w", err)
	}

	span.SetAttributes(attribute.Int("field_count", len(values)))
	return values, nil
}

// DigestsWithFields lists digests having a record for at least one of fields
func (rs *RecordStore) DigestsWithFields(ctx context.Context, fields []string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "records.digests_with_fields",
		trace.WithAttributes(
			attribute.Int("field_count", len(fields)),
		),
	)
	defer span.End()

	if len(fields) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(fields)), ", ")
	query := fmt.Sprintf(`SELECT DISTINCT digest FROM records WHERE field IN (%s) ORDER BY digest ASC`, placeholders)

	args := make([]any, len(fields))
	for i, field := range fields {
		args[i] = field
	}

	digests, err := rs.queryStrings(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query digests: %w", err)
	}

	span.SetAttributes(attribute.Int("digest_count", len(digests)))
	return digests, nil
}

func (rs *RecordStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := rs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}
