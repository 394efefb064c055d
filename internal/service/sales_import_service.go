package service

import (
	"context"
	"errors"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/erp"
	"github.com/nordholz-group/salesplan-api/internal/fiscal"
	"github.com/nordholz-group/salesplan-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SalesImportService pulls monthly sales figures from the ERP feed and
// upserts them as Sale rows. Feed rows that cannot be mapped onto a known
// planning pair are counted and skipped, never invented.
type SalesImportService struct {
	erp    *erp.Client
	cpcs   *repository.CPCRepository
	sales  *repository.SalesRepository
	locks  *JobLockManager
	clock  Clock
	logger *zap.Logger
}

// NewSalesImportService creates a new SalesImportService instance. The ERP
// client may be nil when the feed is not configured; Import then rejects.
func NewSalesImportService(db *gorm.DB, erpClient *erp.Client, locks *JobLockManager, clock Clock, logger *zap.Logger) *SalesImportService {
	return &SalesImportService{
		erp:    erpClient,
		cpcs:   repository.NewCPCRepository(db),
		sales:  repository.NewSalesRepository(db),
		locks:  locks,
		clock:  clock,
		logger: logger,
	}
}

// Import fetches the given fiscal year's monthly sales from the ERP and
// upserts them. Zero fiscalYear means the current fiscal year.
func (s *SalesImportService) Import(ctx context.Context, fiscalYear int) (domain.ImportSummary, error) {
	var summary domain.ImportSummary
	if s.erp == nil {
		return summary, ErrImportDisabled
	}

	release, err := s.locks.Acquire(ctx, LockERPImport)
	if err != nil {
		return summary, err
	}
	defer release()

	if fiscalYear == 0 {
		now := s.clock.Now()
		fiscalYear = fiscal.StartYear(now.Year(), int(now.Month()))
	}

	feed, err := s.erp.FetchMonthlySales(ctx, fiscalYear)
	if err != nil {
		return summary, err
	}
	summary.RowsFetched = len(feed)

	imported := s.clock.Now()
	batch := make([]domain.Sale, 0, len(feed))
	for _, row := range feed {
		cpc, err := s.cpcs.GetByClientAndProfitCenter(ctx, row.ClientNumber, row.ProfitCenterCode)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return summary, err
			}
			summary.RowsSkipped++
			s.logger.Debug("no planning pair for feed row",
				zap.String("clientNumber", row.ClientNumber),
				zap.Int("profitCenter", row.ProfitCenterCode))
			continue
		}
		if row.Month < 1 || row.Month > 12 {
			summary.RowsSkipped++
			continue
		}
		batch = append(batch, domain.Sale{
			CPCID:       cpc.ID,
			FiscalYear:  row.FiscalYear,
			Month:       row.Month,
			SalesUnits:  row.SalesUnits,
			CubicMeters: row.CubicMeters,
			Euros:       row.Euros,
			ImportedAt:  imported,
		})
	}

	if err := s.sales.UpsertMonthly(ctx, batch); err != nil {
		return summary, err
	}
	summary.RowsUpserted = len(batch)

	s.logger.Info("erp sales import finished",
		zap.Int("fiscalYear", fiscalYear),
		zap.Int("fetched", summary.RowsFetched),
		zap.Int("upserted", summary.RowsUpserted),
		zap.Int("skipped", summary.RowsSkipped))
	return summary, nil
}
