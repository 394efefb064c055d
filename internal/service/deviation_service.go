package service

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/fiscal"
	"github.com/nordholz-group/salesplan-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Tolerance bands. Actuals are judged more leniently than plan-vs-plan.
const (
	forecastBandLow  = 0.95
	forecastBandHigh = 1.05
	salesBandLow     = 0.90
	salesBandHigh    = 1.10

	forecastWindowMonths = 6
)

// DeviationService recomputes plan-versus-actual findings for every
// currently assigned (user, profit center) pair. Findings are upserted by
// natural key; a reviewer's justified flag survives re-detection.
type DeviationService struct {
	assignments *repository.AssignmentRepository
	budgets     *repository.BudgetRepository
	forecasts   *repository.ForecastRepository
	sales       *repository.SalesRepository
	deviations  *repository.DeviationRepository
	extraQuota  *ExtraQuotaService
	locks       *JobLockManager
	clock       Clock
	logger      *zap.Logger
}

// NewDeviationService creates a new DeviationService instance
func NewDeviationService(db *gorm.DB, extraQuota *ExtraQuotaService, locks *JobLockManager, clock Clock, logger *zap.Logger) *DeviationService {
	return &DeviationService{
		assignments: repository.NewAssignmentRepository(db),
		budgets:     repository.NewBudgetRepository(db),
		forecasts:   repository.NewForecastRepository(db),
		sales:       repository.NewSalesRepository(db),
		deviations:  repository.NewDeviationRepository(db),
		extraQuota:  extraQuota,
		locks:       locks,
		clock:       clock,
		logger:      logger,
	}
}

// Detect runs both deviation checks over all assigned pairs, optionally
// narrowed to one user. It returns a summary even under partial failure.
func (s *DeviationService) Detect(ctx context.Context, req domain.DetectDeviationsRequest) (domain.DeviationRunSummary, error) {
	var summary domain.DeviationRunSummary

	release, err := s.locks.Acquire(ctx, LockDeviationDetection)
	if err != nil {
		return summary, err
	}
	defer release()

	pairs, err := s.assignments.Pairs(ctx, req.UserID)
	if err != nil {
		return summary, err
	}

	cache := NewRunCache()
	for _, pair := range pairs {
		cpcIDs, err := s.assignments.CPCIDsFor(ctx, pair.UserID, pair.ProfitCenterCode)
		if err != nil || len(cpcIDs) == 0 {
			if err != nil {
				s.logger.Error("pair lookup failed",
					zap.String("userId", pair.UserID),
					zap.Int("profitCenter", pair.ProfitCenterCode),
					zap.Error(err))
			}
			summary.PairsSkipped++
			continue
		}
		summary.PairsProcessed++

		flagged, err := s.checkForecast(ctx, cache, pair, cpcIDs)
		if err != nil {
			s.logger.Error("forecast check failed",
				zap.String("userId", pair.UserID),
				zap.Int("profitCenter", pair.ProfitCenterCode),
				zap.Error(err))
		} else if flagged {
			summary.ForecastDeviations++
		}

		flagged, err = s.checkSales(ctx, cache, pair, cpcIDs)
		if err != nil {
			s.logger.Error("sales check failed",
				zap.String("userId", pair.UserID),
				zap.Int("profitCenter", pair.ProfitCenterCode),
				zap.Error(err))
		} else if flagged {
			summary.SalesDeviations++
		}
	}

	s.logger.Info("deviation detection finished",
		zap.Int("pairsProcessed", summary.PairsProcessed),
		zap.Int("pairsSkipped", summary.PairsSkipped),
		zap.Int("forecastDeviations", summary.ForecastDeviations),
		zap.Int("salesDeviations", summary.SalesDeviations))
	return summary, nil
}

// monthlyFigures is one month of composed plan data inside the rolling
// window.
type monthlyFigures struct {
	budget   float64
	forecast float64
	sales    float64
}

// checkForecast compares composed forecast against composed budget over a
// rolling window starting at the current fiscal month. When the window
// crosses into a fiscal year whose budget for a month is not positive,
// accumulation stops before that month: an unplanned future year must not
// feed the ratio.
func (s *DeviationService) checkForecast(ctx context.Context, cache *RunCache, pair repository.PlanningPair, cpcIDs []uuid.UUID) (bool, error) {
	now := s.clock.Now()
	startFY := fiscal.StartYear(now.Year(), int(now.Month()))
	startMonth := int(now.Month())
	unit := NativeUnit(pair.ProfitCenterCode)

	var (
		months         domain.MonthKeys
		salesSeries    domain.FloatSeries
		budgetSeries   domain.FloatSeries
		forecastSeries domain.FloatSeries
		totalBudget    float64
		totalForecast  float64
		totalSales     float64
	)

	fy, month := startFY, startMonth
	for i := 0; i < forecastWindowMonths; i++ {
		figures, err := s.composeMonth(ctx, cache, pair, cpcIDs, fy, month, unit)
		if err != nil {
			return false, err
		}

		if fy != startFY && figures.budget <= 0 {
			break
		}

		calYear := fy
		if month < 4 {
			calYear = fy + 1
		}
		months = append(months, domain.MonthKey(calYear, month))
		salesSeries = append(salesSeries, figures.sales)
		budgetSeries = append(budgetSeries, figures.budget)
		forecastSeries = append(forecastSeries, figures.forecast)
		totalSales += figures.sales
		totalBudget += figures.budget
		totalForecast += figures.forecast

		fy, month = fiscal.Next(fy, month)
	}

	if totalBudget <= 0 {
		return false, nil
	}
	ratio := totalForecast / totalBudget
	if ratio >= forecastBandLow && ratio <= forecastBandHigh {
		return false, nil
	}

	row := &domain.Deviation{
		ProfitCenterCode: pair.ProfitCenterCode,
		FiscalYear:       startFY,
		Month:            startMonth,
		Type:             domain.DeviationForecast,
		UserID:           pair.UserID,
		SalesTotal:       totalSales,
		BudgetTotal:      totalBudget,
		ForecastTotal:    totalForecast,
		Percent:          roundPercent(ratio),
		Delta:            totalForecast - totalBudget,
		Months:           months,
		SalesSeries:      salesSeries,
		BudgetSeries:     budgetSeries,
		ForecastSeries:   forecastSeries,
	}
	return true, s.deviations.UpsertByKey(ctx, row)
}

// checkSales compares actual sales of the previous calendar month against
// that month's composed budget. A month without positive budget is not
// evaluated: there is no ratio against zero.
func (s *DeviationService) checkSales(ctx context.Context, cache *RunCache, pair repository.PlanningPair, cpcIDs []uuid.UUID) (bool, error) {
	now := s.clock.Now()
	prevYear, prevMonth := now.Year(), int(now.Month())-1
	if prevMonth < 1 {
		prevYear, prevMonth = prevYear-1, 12
	}
	fy := fiscal.StartYear(prevYear, prevMonth)
	unit := NativeUnit(pair.ProfitCenterCode)

	figures, err := s.composeMonth(ctx, cache, pair, cpcIDs, fy, prevMonth, unit)
	if err != nil {
		return false, err
	}
	if figures.budget <= 0 {
		return false, nil
	}

	ratio := figures.sales / figures.budget
	if ratio >= salesBandLow && ratio <= salesBandHigh {
		return false, nil
	}

	row := &domain.Deviation{
		ProfitCenterCode: pair.ProfitCenterCode,
		FiscalYear:       fy,
		Month:            prevMonth,
		Type:             domain.DeviationSales,
		UserID:           pair.UserID,
		SalesTotal:       figures.sales,
		BudgetTotal:      figures.budget,
		ForecastTotal:    figures.forecast,
		Percent:          roundPercent(ratio),
		Delta:            figures.sales - figures.budget,
		Months:           domain.MonthKeys{domain.MonthKey(prevYear, prevMonth)},
		SalesSeries:      domain.FloatSeries{figures.sales},
		BudgetSeries:     domain.FloatSeries{figures.budget},
		ForecastSeries:   domain.FloatSeries{figures.forecast},
	}
	return true, s.deviations.UpsertByKey(ctx, row)
}

// composeMonth assembles one month's comparable figures: stored budget plus
// the extra-quota monthly share, latest-version forecast plus the open
// pipeline contribution, and actual sales.
func (s *DeviationService) composeMonth(ctx context.Context, cache *RunCache, pair repository.PlanningPair, cpcIDs []uuid.UUID, fy, month int, unit domain.VolumeUnit) (monthlyFigures, error) {
	var f monthlyFigures

	budget, err := s.budgets.SumVolume(ctx, cpcIDs, fy, []int{month})
	if err != nil {
		return f, err
	}
	effective, err := s.extraQuota.EffectiveAssignedVolume(ctx, cache, pair.UserID, pair.ProfitCenterCode, fy)
	if err != nil {
		return f, err
	}
	share, err := s.extraQuota.MonthlyShare(ctx, cache, effective, pair.ProfitCenterCode, fy, month)
	if err != nil {
		return f, err
	}
	f.budget = budget + share

	forecast, err := s.forecasts.SumLatestVolume(ctx, cpcIDs, fy, []int{month})
	if err != nil {
		return f, err
	}
	pipeline, err := s.extraQuota.OpenPipelineVolume(ctx, cache, pair.UserID, pair.ProfitCenterCode, fy, month, PipelineFull)
	if err != nil {
		return f, err
	}
	f.forecast = forecast + pipeline

	sales, err := s.sales.SumVolume(ctx, cpcIDs, fy, []int{month}, unit)
	if err != nil {
		return f, err
	}
	f.sales = sales

	return f, nil
}

// roundPercent converts a ratio to a percentage rounded to six decimals.
func roundPercent(ratio float64) float64 {
	return math.Round(ratio*100*1e6) / 1e6
}

// ListDeviations returns findings for display, mapped to the charting
// shape.
func (s *DeviationService) ListDeviations(ctx context.Context, filter repository.DeviationFilter) ([]domain.DeviationDTO, error) {
	rows, err := s.deviations.ListByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DeviationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, domain.ToDeviationDTO(&rows[i]))
	}
	return out, nil
}

// SetJustified marks one finding reviewed or unreviewed.
func (s *DeviationService) SetJustified(ctx context.Context, id uint, justified bool) error {
	err := s.deviations.SetJustified(ctx, id, justified)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
