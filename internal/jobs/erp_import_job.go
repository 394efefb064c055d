package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/service"
	"go.uber.org/zap"
)

// ERPImportJobName is the name of the scheduled ERP sales import job
const ERPImportJobName = "erp_import"

// SalesImporter defines the interface for pulling monthly sales from the
// ERP feed. Zero fiscalYear means the current fiscal year.
type SalesImporter interface {
	Import(ctx context.Context, fiscalYear int) (domain.ImportSummary, error)
}

// ERPImportJob refreshes Sale rows from the ERP feed.
type ERPImportJob struct {
	importer SalesImporter
	logger   *zap.Logger
	timeout  time.Duration
}

// NewERPImportJob creates a new ERP import job.
func NewERPImportJob(importer SalesImporter, logger *zap.Logger, timeout time.Duration) *ERPImportJob {
	return &ERPImportJob{importer: importer, logger: logger, timeout: timeout}
}

// Run executes the ERP import job.
// This is called by the scheduler according to the cron expression.
func (j *ERPImportJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting scheduled erp sales import")

	summary, err := j.importer.Import(ctx, 0)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobAlreadyRunning):
			j.logger.Warn("erp import already running, skipping this trigger")
		case errors.Is(err, service.ErrImportDisabled):
			j.logger.Warn("erp import triggered but the feed is not configured")
		default:
			j.logger.Error("scheduled erp import failed",
				zap.Error(err),
				zap.Duration("duration", time.Since(start)))
		}
		return
	}

	j.logger.Info("scheduled erp import completed",
		zap.Int("rows_fetched", summary.RowsFetched),
		zap.Int("rows_upserted", summary.RowsUpserted),
		zap.Int("rows_skipped", summary.RowsSkipped),
		zap.Duration("duration", time.Since(start)))
}

// RegisterERPImportJob registers the ERP import job with the scheduler.
func RegisterERPImportJob(scheduler *Scheduler, importer SalesImporter, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewERPImportJob(importer, logger, timeout)
	return scheduler.AddJob(ERPImportJobName, cronExpr, job.Run)
}
