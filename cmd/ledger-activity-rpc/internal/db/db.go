package db

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/stellar/go/support/db"
)

//go:embed sqlmigrations/*.sql
var sqlMigrations embed.FS

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type DB struct {
	db.SessionInterface
	driver string
}

// Driver returns the name of the sql driver backing the session.
func (d *DB) Driver() string {
	return d.driver
}

func openSession(driver, dsn string) (*db.Session, error) {
	var (
		session *db.Session
		err     error
	)
	switch driver {
	case DriverSQLite:
		// 1. Use Write-Ahead Logging (WAL) so readers don't block the submission writer.
		// 2. Use synchronous=NORMAL, which is faster and still safe in WAL mode.
		session, err = db.Open(DriverSQLite, fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", dsn))
	case DriverPostgres:
		session, err = db.Open(DriverPostgres, dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}

	if err = runSQLMigrations(session.DB.DB, driver); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("could not run SQL migrations: %w", err)
	}
	return session, nil
}

// OpenWithPrometheusMetrics opens the local record store and reports session
// metrics into registry.
func OpenWithPrometheusMetrics(driver, dsn string, namespace string, sub db.Subservice, registry *prometheus.Registry) (*DB, error) {
	session, err := openSession(driver, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{
		SessionInterface: db.RegisterMetrics(session, namespace, sub, registry),
		driver:           driver,
	}, nil
}

func Open(driver, dsn string) (*DB, error) {
	session, err := openSession(driver, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{SessionInterface: session, driver: driver}, nil
}

func OpenSQLiteDB(dbFilePath string) (*DB, error) {
	return Open(DriverSQLite, dbFilePath)
}

func runSQLMigrations(db *sql.DB, dialect string) error {
	m := &migrate.AssetMigrationSource{
		Asset: sqlMigrations.ReadFile,
		AssetDir: func() func(string) ([]string, error) {
			return func(path string) ([]string, error) {
				dirEntry, err := sqlMigrations.ReadDir(path)
				if err != nil {
					return nil, err
				}
				entries := make([]string, 0)
				for _, e := range dirEntry {
					entries = append(entries, e.Name())
				}

				return entries, nil
			}
		}(),
		Dir: "sqlmigrations",
	}
	_, err := migrate.ExecMax(db, dialect, m, migrate.Up, 0)
	return err
}
