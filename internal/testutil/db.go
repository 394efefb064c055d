package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/database"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens an in-memory SQLite database with the full schema
// migrated. Each call gets its own isolated database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")

	require.NoError(t, database.AutoMigrate(db), "failed to migrate schema")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SeedPair inserts a profit center and a client profit center pair and
// returns the pair.
func SeedPair(t *testing.T, db *gorm.DB, clientNumber string, pcCode, classificationID int) *domain.ClientProfitCenter {
	t.Helper()

	pc := domain.ProfitCenter{Code: pcCode, Name: "PC"}
	require.NoError(t, db.Where(&domain.ProfitCenter{Code: pcCode}).FirstOrCreate(&pc).Error)

	cpc := &domain.ClientProfitCenter{
		ID:               uuid.New(),
		ClientNumber:     clientNumber,
		ClientName:       "Client " + clientNumber,
		ProfitCenterCode: pcCode,
		ClassificationID: classificationID,
	}
	require.NoError(t, db.Create(cpc).Error)
	return cpc
}

// SeedSeasonality inserts a seasonality row from weights in fiscal order
// (index 0 = April).
func SeedSeasonality(t *testing.T, db *gorm.DB, pcCode, fiscalYear int, w [12]float64) {
	t.Helper()

	row := domain.Seasonality{
		ProfitCenterCode: pcCode,
		FiscalYear:       fiscalYear,
		Apr:              w[0], May: w[1], Jun: w[2], Jul: w[3],
		Aug: w[4], Sep: w[5], Oct: w[6], Nov: w[7],
		Dec: w[8], Jan: w[9], Feb: w[10], Mar: w[11],
	}
	require.NoError(t, db.Create(&row).Error)
}

// SeedSale inserts one month of actual sales.
func SeedSale(t *testing.T, db *gorm.DB, cpcID uuid.UUID, fiscalYear, month int, units, m3, euros float64) {
	t.Helper()

	require.NoError(t, db.Create(&domain.Sale{
		CPCID:       cpcID,
		FiscalYear:  fiscalYear,
		Month:       month,
		SalesUnits:  units,
		CubicMeters: m3,
		Euros:       euros,
	}).Error)
}

// SeedAssignment links a pair to a user.
func SeedAssignment(t *testing.T, db *gorm.DB, cpcID uuid.UUID, userID *string) {
	t.Helper()

	require.NoError(t, db.Create(&domain.PlanningAssignment{
		CPCID:  cpcID,
		UserID: userID,
	}).Error)
}

// Ptr returns a pointer to v. Convenience for optional fields in tests.
func Ptr[T any](v T) *T {
	return &v
}
