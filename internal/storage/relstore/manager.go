// Package relstore is the GORM-backed implementation of ports.RelationalStore
// plus the concrete memory.Store / knowledge.ItemStore / governance store
// interfaces, adapted from kagent's database.Manager (Postgres/SQLite
// dialector selection, env-driven log verbosity, AutoMigrate) to aeterna's
// tenant-scoped, seven-layer domain model.
package relstore

import (
	"context"
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kikokikok/aeterna-sub004/pkg/env"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

// migrationsFS embeds the versioned Postgres schema migrations (spec §6.2),
// applied via golang-migrate rather than GORM AutoMigrate: AutoMigrate
// cannot express the pgvector column type or the HNSW index, both of which
// previously required a second hand-written Exec call this replaces.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dialect selects the GORM driver backing a Manager.
type Dialect string

const (
	DialectSqlite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Config configures a Manager. DSN is either a sqlite file path (or ":memory:")
// or a Postgres connection string; DSNFile, when set, takes precedence and is
// read at Open time, matching kagent's URL-file pattern for secrets mounted
// from Kubernetes.
type Config struct {
	Dialect       Dialect
	DSN           string
	DSNFile       string
	VectorEnabled bool
}

// ConfigFromEnv builds a Config from the registered AETERNA_DATABASE_* vars.
func ConfigFromEnv() Config {
	return Config{
		Dialect:       Dialect(env.DatabaseDriver.Get()),
		DSN:           env.DatabaseDSN.Get(),
		VectorEnabled: env.VectorStoreEnabled.Get(),
	}
}

// Manager owns the *gorm.DB connection and the migration/reset lifecycle for
// every table aeterna's engines persist through.
type Manager struct {
	db       *gorm.DB
	config   Config
	initLock sync.Mutex
}

// Open connects to the configured backend and returns a Manager; call
// Initialize before handing the Manager's stores to the engines.
func Open(config Config) (*Manager, error) {
	logLevel := logger.Silent
	switch env.GormLogLevel.Get() {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}

	var db *gorm.DB
	var err error
	switch config.Dialect {
	case DialectPostgres:
		dsn := config.DSN
		if config.DSNFile != "" {
			dsn, err = resolveDSNFile(config.DSNFile)
			if err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case DialectSqlite, "":
		path := config.DSN
		if path == "" {
			path = "file::memory:?cache=shared"
		}
		db, err = gorm.Open(sqlite.Open(path), gormConfig)
	default:
		return nil, fmt.Errorf("relstore: unsupported dialect %q", config.Dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("relstore: connect: %w", err)
	}

	return &Manager{db: db, config: config}, nil
}

func resolveDSNFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("relstore: reading DSN file: %w", err)
	}
	dsn := strings.TrimSpace(string(content))
	if dsn == "" {
		return "", fmt.Errorf("relstore: DSN file %s is empty", path)
	}
	return dsn, nil
}

// Initialize brings the schema for every managed model up to date: Postgres
// runs the versioned migrations under migrations/ via golang-migrate; SQLite
// (local/dev and tests) uses GORM AutoMigrate directly, since golang-migrate
// has no pure-Go sqlite3 driver compatible with the CGO-free glebarez/sqlite
// dialector this package already standardized on.
func (m *Manager) Initialize() error {
	if !m.initLock.TryLock() {
		return fmt.Errorf("relstore: initialization already in progress")
	}
	defer m.initLock.Unlock()

	if m.config.Dialect == DialectPostgres {
		return m.migratePostgres()
	}

	if err := m.db.AutoMigrate(
		&memoryEntryModel{},
		&knowledgeItemModel{},
		&unitModel{},
		&roleAssignmentModel{},
		&policyModel{},
		&driftSuppressionModel{},
		&commitModel{},
		&syncStateModel{},
		&syncSnapshotModel{},
	); err != nil {
		return fmt.Errorf("relstore: migrate: %w", err)
	}
	return nil
}

// migratePostgres applies migrations/0001_init (the base schema) and, when
// vector search is enabled, migrations/0002_vector_search (the pgvector
// extension, the embedding column's vector(1536) type, and the HNSW index).
func (m *Manager) migratePostgres() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("relstore: sql.DB handle: %w", err)
	}
	driver, err := migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{})
	if err != nil {
		return fmt.Errorf("relstore: migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("relstore: migrate source: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("relstore: migrate init: %w", err)
	}

	target := uint(1)
	if m.config.VectorEnabled {
		target = 2
	}
	if err := mg.Migrate(target); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("relstore: migrate up: %w", err)
	}
	return nil
}

// Reset drops every managed table; recreateTables re-runs Initialize after
// dropping, for test fixtures that want a clean schema without a fresh
// connection.
func (m *Manager) Reset(recreateTables bool) error {
	if !m.initLock.TryLock() {
		return fmt.Errorf("relstore: reset already in progress")
	}
	defer m.initLock.Unlock()

	if err := m.db.Migrator().DropTable(
		&memoryEntryModel{},
		&knowledgeItemModel{},
		&unitModel{},
		&roleAssignmentModel{},
		&policyModel{},
		&driftSuppressionModel{},
		&commitModel{},
		&syncStateModel{},
		&syncSnapshotModel{},
	); err != nil {
		return fmt.Errorf("relstore: drop tables: %w", err)
	}
	if recreateTables {
		m.initLock.Unlock()
		err := m.Initialize()
		m.initLock.Lock()
		return err
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying *gorm.DB for stores constructed outside this
// package (e.g. a CommitStore shared across tenants).
func (m *Manager) DB() *gorm.DB { return m.db }

// relationalStore adapts *gorm.DB to ports.RelationalStore for components
// that only need raw Exec/Query, not one of the typed stores below.
type relationalStore struct {
	db *gorm.DB
}

// NewRelationalStore wraps db as a ports.RelationalStore.
func NewRelationalStore(m *Manager) ports.RelationalStore { return &relationalStore{db: m.db} }

var _ ports.RelationalStore = (*relationalStore)(nil)

func (s *relationalStore) Exec(ctx context.Context, query string, args ...any) error {
	return s.db.WithContext(ctx).Exec(query, args...).Error
}

func (s *relationalStore) Query(ctx context.Context, dest any, query string, args ...any) error {
	return s.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
}

// WithTx runs fn inside a GORM transaction; fn's error rolls the
// transaction back, matching ports.RelationalStore's all-or-nothing
// contract (spec §5 "sync never partially commits", generalized here to
// any multi-statement operation).
func (s *relationalStore) WithTx(ctx context.Context, fn func(tx ports.RelationalStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&relationalStore{db: tx})
	})
}
