package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/peterldowns/pgtestdb"
	"github.com/peterldowns/pgtestdb/migrators/sqlmigrator"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/screwyprof/pledger/pkg/pgxdb"
	"github.com/screwyprof/pledger/reconciler"
	"github.com/screwyprof/pledger/reconciler/store/pgxstore"
)

// Migration constants
const (
	migrationsTableName = "schema_migrations"
	schemaHashPrefix    = "schema_only_"
	seededHashPrefix    = "seeded_demo_"
)

// SQL queries
const (
	initCheckpointSQL = `
		INSERT INTO scraper_checkpoint (single_row, last_id) 
		VALUES (TRUE, $1)
		ON CONFLICT (single_row) DO NOTHING`

	setCheckpointSQL = `
		INSERT INTO scraper_checkpoint (single_row, last_id) 
		VALUES (TRUE, $1)
		ON CONFLICT (single_row) DO UPDATE SET last_id = EXCLUDED.last_id`
)

// Migration-related errors
var (
	ErrMigrationExecution  = errors.New("migration execution failed")
	ErrCheckpointOperation = errors.New("checkpoint operation failed")
	ErrSeedFailed          = errors.New("demo data seeding failed")
)

// SchemaMigrator applies only database schema migrations
// Used for production and tests that need schema-only setup
type SchemaMigrator struct {
	migrationsDir string
}

// NewSchemaMigrator creates a migrator that applies schema migrations only
func NewSchemaMigrator(migrationsDir string) *SchemaMigrator {
	return &SchemaMigrator{
		migrationsDir: migrationsDir,
	}
}

func (m *SchemaMigrator) Hash() (string, error) {
	source := &migrate.FileMigrationSource{Dir: m.migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}
	sqlMigrator := sqlmigrator.New(source, migrationSet)

	baseHash, err := sqlMigrator.Hash()
	if err != nil {
		return "", fmt.Errorf("failed to calculate migration hash for %s: %w", m.migrationsDir, err)
	}

	return schemaHashPrefix + baseHash, nil
}

func (m *SchemaMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	return applyMigrations(db, m.migrationsDir)
}

// SeededMigrator applies schema migrations + seeds with demo donation data
// Used for web API tests that need realistic data to test against
type SeededMigrator struct {
	migrationsDir string
	donations     int
	seedTimeout   time.Duration
}

// NewSeededMigrator creates a migrator that applies schema + seeds the given number of demo donations
func NewSeededMigrator(migrationsDir string, donations int, seedTimeout time.Duration) *SeededMigrator {
	return &SeededMigrator{
		migrationsDir: migrationsDir,
		donations:     donations,
		seedTimeout:   seedTimeout,
	}
}

func (m *SeededMigrator) Hash() (string, error) {
	source := &migrate.FileMigrationSource{Dir: m.migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}
	sqlMigrator := sqlmigrator.New(source, migrationSet)

	baseHash, err := sqlMigrator.Hash()
	if err != nil {
		return "", fmt.Errorf("failed to calculate migration hash for %s: %w", m.migrationsDir, err)
	}

	return seededHashPrefix + baseHash + "_" + strconv.Itoa(m.donations), nil
}

func (m *SeededMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	// Apply schema migrations using common function
	if err := applyMigrations(db, m.migrationsDir); err != nil {
		return err
	}

	return m.seedDemoData(ctx, conf.URL())
}

// Demo note managers; donations rotate over them
var demoOwners = []reconciler.Owner{
	{ID: "1", Type: reconciler.OwnerUser, TypeID: "u-1", Address: "0x00000000000000000000000000000000000000d1"},
	{ID: "2", Type: reconciler.OwnerProject, TypeID: "p-2"},
	{ID: "3", Type: reconciler.OwnerCampaign, TypeID: "c-3"},
}

var demoStatuses = []reconciler.DonationStatus{
	reconciler.StatusWaiting,
	reconciler.StatusToApprove,
	reconciler.StatusCommitted,
}

// DemoSeedStart is the creation time of the first demo donation; each
// following donation is one hour younger
var DemoSeedStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seedDemoData seeds the template database through the reconciler store
func (m *SeededMigrator) seedDemoData(ctx context.Context, dbURL string) error {
	slog.InfoContext(ctx, "Seeding demo database with donation data",
		"donations", m.donations,
		"timeout", m.seedTimeout)

	seedCtx, cancel := context.WithTimeout(ctx, m.seedTimeout)
	defer cancel()

	pool, err := pgxdb.NewConnection(seedCtx, dbURL)
	if err != nil {
		return err
	}

	store, storeCloser := pgxstore.New(pool)
	defer storeCloser()

	for _, owner := range demoOwners {
		if err := store.SaveOwner(seedCtx, owner); err != nil {
			return fmt.Errorf("%w: %w", ErrSeedFailed, err)
		}
	}

	for i := range m.donations {
		owner := demoOwners[i%len(demoOwners)]
		status := demoStatuses[i%len(demoStatuses)]
		createdAt := DemoSeedStart.Add(time.Duration(i) * time.Hour)

		d, err := store.CreateDonation(seedCtx, reconciler.NewDonation{
			TxHash:       fmt.Sprintf("0x%064x", i+1),
			NoteID:       reconciler.NoteID(strconv.Itoa(100 + i)),
			Amount:       reconciler.MustParseAmount(strconv.Itoa(i+1) + "000000000000000000"),
			Owner:        owner.ID,
			OwnerID:      owner.TypeID,
			OwnerType:    owner.Type,
			Status:       status,
			PaymentState: reconciler.PaymentNotPaid,
			CreatedAt:    createdAt,
			DonorAddress: demoOwners[0].Address,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSeedFailed, err)
		}

		if status != reconciler.StatusCommitted {
			continue
		}
		_, err = store.CreateHistory(seedCtx, d.ID, reconciler.HistoryEntry{
			Status:    reconciler.HistoryPaymentCompleted,
			CreatedAt: createdAt.Add(time.Minute),
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSeedFailed, err)
		}
	}

	slog.InfoContext(ctx, "Demo database seeding completed successfully")
	return nil
}

// ApplyMigrations applies database migrations using sql-migrate with the provided pgx pool
func ApplyMigrations(pool *pgxpool.Pool, migrationsDir string) error {
	// Create sql.DB from the pgx pool for sql-migrate
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return applyMigrations(db, migrationsDir)
}

// InitializeCheckpoint initializes the scraper checkpoint if not already set
func InitializeCheckpoint(ctx context.Context, pool *pgxpool.Pool, initialCheckpoint int64) error {
	_, err := pool.Exec(ctx, initCheckpointSQL, initialCheckpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointOperation, err)
	}
	return nil
}

// SetCheckpoint sets the scraper checkpoint, overwriting any existing value
func SetCheckpoint(ctx context.Context, pool *pgxpool.Pool, checkpoint int64) error {
	_, err := pool.Exec(ctx, setCheckpointSQL, checkpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointOperation, err)
	}
	return nil
}

// applyMigrations applies database migrations using sql-migrate
func applyMigrations(db *sql.DB, migrationsDir string) error {
	source := &migrate.FileMigrationSource{Dir: migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}

	_, err := migrationSet.Exec(db, "postgres", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationExecution, err)
	}
	return nil
}
