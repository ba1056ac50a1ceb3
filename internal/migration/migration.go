package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	discountdomain "github.com/smallbiznis/backoffice/internal/discount/domain"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	plandomain "github.com/smallbiznis/backoffice/internal/plan/domain"
	quotedomain "github.com/smallbiznis/backoffice/internal/quote/domain"
	"github.com/smallbiznis/backoffice/internal/sequence"
	subscriptiondomain "github.com/smallbiznis/backoffice/internal/subscription/domain"
	tokenbalancedomain "github.com/smallbiznis/backoffice/internal/tokenbalance/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// Models lists every table the engine owns, parents first.
func Models() []any {
	return []any{
		&sequence.NumberSequence{},
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&tokenbalancedomain.TokenBalance{},
		&tokenbalancedomain.Entry{},
		&quotedomain.Quote{},
		&discountdomain.DiscountRequest{},
		&invoicedomain.Invoice{},
		&billingeventdomain.BillingEvent{},
	}
}

// Run brings the schema up to date. Postgres uses the versioned SQL files;
// sqlite and mysql fall back to AutoMigrate.
func Run(conn *gorm.DB, dbType string) error {
	if dbType == db.TypePostgres {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the gorm models. On sqlite it also adds
// the partial index that keeps one ACTIVE subscription per customer.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if conn.Dialector.Name() == "sqlite" {
		err := conn.Exec(
			`CREATE UNIQUE INDEX IF NOT EXISTS ` + subscriptiondomain.ActiveCustomerIndex +
				` ON subscriptions (customer_id) WHERE status = 'ACTIVE'`,
		).Error
		if err != nil {
			return fmt.Errorf("create active subscription index: %w", err)
		}
	}
	return nil
}
