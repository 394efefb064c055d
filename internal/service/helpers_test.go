package service_test

import (
	"time"

	"github.com/nordholz-group/salesplan-api/internal/repository"
	"github.com/nordholz-group/salesplan-api/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newLockManager(db *gorm.DB, clock service.Clock) *service.JobLockManager {
	return service.NewJobLockManager(repository.NewJobLockRepository(db), clock, 0, zap.NewNop())
}

func newBudgetService(db *gorm.DB, clock service.Clock) *service.BudgetService {
	return service.NewBudgetService(db, newResolver(db), newLockManager(db, clock), clock, zap.NewNop())
}

func newDeviationService(db *gorm.DB, clock service.Clock) *service.DeviationService {
	extraQuota := service.NewExtraQuotaService(db, newResolver(db), newConverter(db))
	return service.NewDeviationService(db, extraQuota, newLockManager(db, clock), clock, zap.NewNop())
}

func septemberClock(year int) service.FixedClock {
	return service.FixedClock(time.Date(year, time.September, 15, 10, 0, 0, 0, time.UTC))
}
