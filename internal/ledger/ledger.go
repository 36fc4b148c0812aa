package ledger

import (
	"context"
	"database/sql"
	"embed"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultFileName is the SQLite ledger used when no DSN is given.
	DefaultFileName = "datatrust.db"
)

var (
	//go:embed sql/*
	f embed.FS

	ErrUnknownDriver = errors.New("unknown ledger driver")
)

// Sighting is one recorded verification of a dataset.
type Sighting struct {
	ID               string
	DatasetHash      string
	DatasetName      string
	VerificationHash string
	SeenAt           time.Time
}

// Store remembers every dataset hash it has been shown. Entries are only
// removed by Reset.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the ledger and creates its schema if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, errors.Wrapf(ErrUnknownDriver, "driver %q", driver)
	}
	if dsn == "" {
		return nil, errors.New("ledger dsn not specified")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open ledger: %s", driver)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	ddl, err := f.ReadFile("sql/ddl.sql")
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to read the schema creation file")
	}
	if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create ledger schema")
	}

	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CheckAuthenticity records a sighting and reports whether datasetHash had
// never been seen before.
func (s *Store) CheckAuthenticity(ctx context.Context, datasetHash, name, verificationHash string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to begin ledger transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int
	if err := tx.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM sighting WHERE dataset_hash = ?"), datasetHash).Scan(&n); err != nil {
		return false, errors.Wrapf(err, "failed to look up dataset hash %s", datasetHash)
	}

	_, err = tx.ExecContext(ctx,
		s.rebind("INSERT INTO sighting (id, dataset_hash, dataset_name, verification_hash, seen_at) VALUES (?, ?, ?, ?, ?)"),
		uuid.NewString(), datasetHash, name, verificationHash, time.Now().UTC())
	if err != nil {
		return false, errors.Wrap(err, "failed to record sighting")
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit sighting")
	}
	return n == 0, nil
}

// Seen reports whether datasetHash has been recorded.
func (s *Store) Seen(ctx context.Context, datasetHash string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM sighting WHERE dataset_hash = ?"), datasetHash).Scan(&n); err != nil {
		return false, errors.Wrapf(err, "failed to look up dataset hash %s", datasetHash)
	}
	return n > 0, nil
}

// Count returns the number of distinct dataset hashes recorded.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT dataset_hash) FROM sighting").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count datasets")
	}
	return n, nil
}

// History lists the sightings of datasetHash, oldest first.
func (s *Store) History(ctx context.Context, datasetHash string) ([]Sighting, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT id, dataset_hash, dataset_name, verification_hash, seen_at FROM sighting WHERE dataset_hash = ? ORDER BY seen_at, id"),
		datasetHash)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query history of %s", datasetHash)
	}
	defer rows.Close()

	var list []Sighting
	for rows.Next() {
		var e Sighting
		if err := rows.Scan(&e.ID, &e.DatasetHash, &e.DatasetName, &e.VerificationHash, &e.SeenAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan sighting")
		}
		list = append(list, e)
	}
	return list, errors.Wrap(rows.Err(), "failed to iterate sightings")
}

// Reset forgets every recorded sighting.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sighting")
	return errors.Wrap(err, "failed to reset ledger")
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
