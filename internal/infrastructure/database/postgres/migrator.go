package postgres

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Migrator applies the archive schema migrations shipped under
// migrations_dir.
type Migrator struct {
	sourceURL string
	dbURL     string
	logger    logging.Logger
}

// NewMigrator builds a migrator from the archive configuration.
func NewMigrator(cfg config.ArchiveConfig, log logging.Logger) *Migrator {
	return &Migrator{
		sourceURL: "file://" + cfg.MigrationsDir,
		dbURL:     DSN(cfg),
		logger:    log,
	}
}

// Up applies all pending migrations.  A database already at the latest
// version is not an error.
func (m *Migrator) Up() error {
	mg, err := migrate.New(m.sourceURL, m.dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to initialise migrator")
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "archive migration failed")
	}
	version, dirty, _ := mg.Version()
	m.logger.Info("Archive schema up to date",
		logging.Int("version", int(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down() error {
	mg, err := migrate.New(m.sourceURL, m.dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to initialise migrator")
	}
	defer mg.Close()

	if err := mg.Steps(-1); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "archive rollback failed")
	}
	return nil
}

// Version reports the current schema version.
func (m *Migrator) Version() (uint, bool, error) {
	mg, err := migrate.New(m.sourceURL, m.dbURL)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to initialise migrator")
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err == migrate.ErrNilVersion {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read schema version")
	}
	return version, dirty, nil
}
