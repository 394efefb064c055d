package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/service"
	"go.uber.org/zap"
)

// DeviationJobName is the name of the scheduled deviation detection job
const DeviationJobName = "deviation_detection"

// DeviationDetector defines the interface for running deviation detection.
// This interface allows the job to call the service without importing the
// concrete type directly.
type DeviationDetector interface {
	Detect(ctx context.Context, req domain.DetectDeviationsRequest) (domain.DeviationRunSummary, error)
}

// DeviationJob runs deviation detection over all assigned pairs.
type DeviationJob struct {
	detector DeviationDetector
	logger   *zap.Logger
	timeout  time.Duration
}

// NewDeviationJob creates a new deviation detection job.
// The timeout controls how long one detection run is allowed to take.
func NewDeviationJob(detector DeviationDetector, logger *zap.Logger, timeout time.Duration) *DeviationJob {
	return &DeviationJob{detector: detector, logger: logger, timeout: timeout}
}

// Run executes the deviation detection job.
// This is called by the scheduler according to the cron expression.
func (j *DeviationJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting scheduled deviation detection")

	summary, err := j.detector.Detect(ctx, domain.DetectDeviationsRequest{})
	if err != nil {
		if errors.Is(err, service.ErrJobAlreadyRunning) {
			j.logger.Warn("deviation detection already running, skipping this trigger")
			return
		}
		j.logger.Error("scheduled deviation detection failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("scheduled deviation detection completed",
		zap.Int("pairs_processed", summary.PairsProcessed),
		zap.Int("pairs_skipped", summary.PairsSkipped),
		zap.Int("forecast_deviations", summary.ForecastDeviations),
		zap.Int("sales_deviations", summary.SalesDeviations),
		zap.Duration("duration", time.Since(start)))
}

// RegisterDeviationJob registers the deviation detection job with the
// scheduler.
func RegisterDeviationJob(scheduler *Scheduler, detector DeviationDetector, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewDeviationJob(detector, logger, timeout)
	return scheduler.AddJob(DeviationJobName, cronExpr, job.Run)
}
