package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nordholz-group/salesplan-api/internal/config"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := cfg.ConnectionString()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// HealthCheck pings the database.
func HealthCheck(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// HealthCheckWithStats pings the database and returns pool statistics.
func HealthCheckWithStats(db *gorm.DB) (sql.DBStats, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return sql.DBStats{}, err
	}
	if err := sqlDB.Ping(); err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}

// AutoMigrate runs automatic migrations (for development only; production
// uses the goose migrations under migrations/)
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.ProfitCenter{},
		&domain.ClientProfitCenter{},
		&domain.UnitConversion{},
		&domain.Seasonality{},
		&domain.Sale{},
		&domain.Budget{},
		&domain.BudgetCase{},
		&domain.ForecastCase{},
		&domain.Forecast{},
		&domain.ExtraQuotaAssignment{},
		&domain.SalesOpportunity{},
		&domain.ExtraQuotaForecast{},
		&domain.ExtraQuotaBudget{},
		&domain.Deviation{},
		&domain.PlanningAssignment{},
		&domain.PlanningRunLog{},
		&domain.JobLock{},
		&domain.User{},
	)
}
