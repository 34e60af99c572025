package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// SchemaTable records the applied catalog schema version.
const SchemaTable = "catalog_schema_migrations"

//go:embed sql/*.sql
var schemaFiles embed.FS

// schema binds the embedded catalog migrations to one Postgres database.
type schema struct {
	db *sql.DB
	m  *migrate.Migrate
}

func openSchema(ctx context.Context, pool *pgxpool.Pool) (*schema, error) {
	files, err := iofs.New(schemaFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("load schema files: %w", err)
	}

	// golang-migrate drives database/sql, so a short-lived handle is opened
	// from the pool's DSN.
	db, err := sql.Open("pgx", pool.Config().ConnString())
	if err != nil {
		return nil, fmt.Errorf("open schema connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping schema connection: %w", err)
	}

	target, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: SchemaTable})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bind schema table: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", files, "postgres", target)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema migrator: %w", err)
	}
	return &schema{db: db, m: m}, nil
}

func (s *schema) close() {
	s.m.Close()
	s.db.Close()
}

func (s *schema) version() (uint, bool, error) {
	v, dirty, err := s.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return v, dirty, nil
}

func schemaErr(op string, err error) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w (each schema version ships an .up.sql and a .down.sql)", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Apply brings the catalog tables to the latest schema version and returns
// it. Running it on an up-to-date database is a no-op.
func Apply(ctx context.Context, pool *pgxpool.Pool) (uint, error) {
	s, err := openSchema(ctx, pool)
	if err != nil {
		return 0, err
	}
	defer s.close()

	if err := schemaErr("apply schema", s.m.Up()); err != nil {
		return 0, err
	}
	v, _, err := s.version()
	return v, err
}

// Rollback reverts the given number of schema versions and returns the
// version left in place (0 once everything is reverted).
func Rollback(ctx context.Context, pool *pgxpool.Pool, steps int) (uint, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	s, err := openSchema(ctx, pool)
	if err != nil {
		return 0, err
	}
	defer s.close()

	if err := schemaErr("roll back schema", s.m.Steps(-steps)); err != nil {
		return 0, err
	}
	v, _, err := s.version()
	return v, err
}

// Version reports the applied schema version. dirty is set when a previous
// run failed halfway and the table needs manual repair.
func Version(ctx context.Context, pool *pgxpool.Pool) (version uint, dirty bool, err error) {
	s, err := openSchema(ctx, pool)
	if err != nil {
		return 0, false, err
	}
	defer s.close()
	return s.version()
}
