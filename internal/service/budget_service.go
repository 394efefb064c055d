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

// Run log stages written during budget generation.
const (
	stageZeroed    = "zeroed"
	stageNoData    = "no-data"
	stageGenerated = "generated"
	stageMirrored  = "mirrored"
)

// BudgetService generates monthly budget rows for a fiscal year and seeds
// forecast versions from them. One planning pair is written per
// transaction; a failing pair is logged and skipped, the batch continues.
type BudgetService struct {
	db          *gorm.DB
	cpcs        *repository.CPCRepository
	sales       *repository.SalesRepository
	budgets     *repository.BudgetRepository
	cases       *repository.BudgetCaseRepository
	seasonality *SeasonalityResolver
	locks       *JobLockManager
	clock       Clock
	logger      *zap.Logger
}

// NewBudgetService creates a new BudgetService instance
func NewBudgetService(db *gorm.DB, seasonality *SeasonalityResolver, locks *JobLockManager, clock Clock, logger *zap.Logger) *BudgetService {
	return &BudgetService{
		db:          db,
		cpcs:        repository.NewCPCRepository(db),
		sales:       repository.NewSalesRepository(db),
		budgets:     repository.NewBudgetRepository(db),
		cases:       repository.NewBudgetCaseRepository(db),
		seasonality: seasonality,
		locks:       locks,
		clock:       clock,
		logger:      logger,
	}
}

// GenerateBudgets runs budget generation for every planning pair and the
// requested fiscal year. It returns a summary even under partial failure.
func (s *BudgetService) GenerateBudgets(ctx context.Context, req domain.GenerateBudgetRequest) (domain.GenerationSummary, error) {
	summary := domain.GenerationSummary{FiscalYear: req.FiscalYear}

	release, err := s.locks.Acquire(ctx, LockBudgetGeneration)
	if err != nil {
		return summary, err
	}
	defer release()

	pairs, err := s.cpcs.ListAll(ctx)
	if err != nil {
		return summary, err
	}

	cache := NewRunCache()
	for i := range pairs {
		cpc := &pairs[i]
		summary.Processed++

		outcome, err := s.generateForPair(ctx, cache, cpc, req)
		if err != nil {
			summary.Failed++
			s.logger.Error("budget generation failed for pair",
				zap.String("cpcId", cpc.ID.String()),
				zap.Int("fiscalYear", req.FiscalYear),
				zap.Error(err))
			continue
		}
		switch outcome {
		case stageGenerated, stageMirrored:
			summary.Written++
		case stageZeroed:
			summary.Zeroed++
		default:
			summary.Skipped++
		}
	}

	s.logger.Info("budget generation finished",
		zap.Int("fiscalYear", req.FiscalYear),
		zap.Int("processed", summary.Processed),
		zap.Int("written", summary.Written),
		zap.Int("zeroed", summary.Zeroed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// generateForPair runs the per-pair state machine and returns the terminal
// stage.
func (s *BudgetService) generateForPair(ctx context.Context, cache *RunCache, cpc *domain.ClientProfitCenter, req domain.GenerateBudgetRequest) (string, error) {
	class := cpc.Class()
	if class == domain.ClassExcluded {
		return "excluded", nil
	}

	if !req.FullRebuild {
		exists, err := s.budgets.ExistsForPair(ctx, cpc.ID, req.FiscalYear)
		if err != nil {
			return "", err
		}
		if exists {
			return "existing", nil
		}
	}

	budgetCase, err := s.cases.FindBudgetCase(ctx, cpc.ID, req.FiscalYear)
	if err != nil {
		return "", err
	}

	// Skip check. A seller-managed pair with no planner input at all is
	// zeroed, as is any pair explicitly flagged to skip.
	if (budgetCase != nil && budgetCase.SkipBudget) || (class.IsSellerManaged() && budgetCase == nil) {
		var zero [12]float64
		if err := s.writeBudgets(ctx, cpc.ID, req, zero, false, stageZeroed); err != nil {
			return "", err
		}
		return stageZeroed, nil
	}

	basis, err := s.computeBasis(ctx, cache, cpc, req.FiscalYear)
	if err != nil {
		return "", err
	}
	if basis <= 0 {
		return stageNoData, s.logStage(ctx, cpc.ID, req.FiscalYear, stageNoData, "annualized basis not positive")
	}

	pct, err := s.resolvePct(ctx, cpc, class, budgetCase, req)
	if err != nil {
		return "", err
	}

	weights, _, err := s.seasonality.WeightsFor(ctx, cache, cpc.ProfitCenterCode, req.FiscalYear)
	if err != nil {
		return "", err
	}

	volumes := DistributeMonthly(basis*(1+pct/100), weights)
	mirror := class.MirrorsForecast()
	stage := stageGenerated
	if mirror {
		stage = stageMirrored
	}
	if err := s.writeBudgets(ctx, cpc.ID, req, volumes, mirror, stage); err != nil {
		return "", err
	}
	return stage, nil
}

// computeBasis annualizes the pair's year-to-date actual sales. The window
// runs January through the last full calendar month of the fiscal year's
// start calendar year. It straddles two fiscal years, so the weight
// denominator blends the preceding year's Jan-Mar slice with the target
// year's Apr-cutoff slice.
func (s *BudgetService) computeBasis(ctx context.Context, cache *RunCache, cpc *domain.ClientProfitCenter, fiscalYear int) (float64, error) {
	cutoff := s.cutoffMonth(fiscalYear)
	if cutoff < 1 {
		return 0, nil
	}
	unit := NativeUnit(cpc.ProfitCenterCode)
	ids := []uuid.UUID{cpc.ID}

	var actual, weightPct float64

	// January through March of the start calendar year belong to the
	// preceding fiscal year.
	winterEnd := cutoff
	if winterEnd > 3 {
		winterEnd = 3
	}
	v, err := s.sales.SumVolume(ctx, ids, fiscalYear-1, monthRange(1, winterEnd), unit)
	if err != nil {
		return 0, err
	}
	actual += v

	prevWeights, _, err := s.seasonality.WeightsFor(ctx, cache, cpc.ProfitCenterCode, fiscalYear-1)
	if err != nil {
		return 0, err
	}
	weightPct += YTDPercent(prevWeights, fiscal.IndexOf(1), fiscal.IndexOf(winterEnd))

	if cutoff >= 4 {
		v, err := s.sales.SumVolume(ctx, ids, fiscalYear, monthRange(4, cutoff), unit)
		if err != nil {
			return 0, err
		}
		actual += v

		weights, _, err := s.seasonality.WeightsFor(ctx, cache, cpc.ProfitCenterCode, fiscalYear)
		if err != nil {
			return 0, err
		}
		weightPct += YTDPercent(weights, 1, fiscal.IndexOf(cutoff))
	}

	return Annualize(actual, weightPct), nil
}

// cutoffMonth returns the last full calendar month of the fiscal year's
// start calendar year relative to the injected clock: the previous month
// when the clock is inside that year, December when past it, zero when the
// year has not started yet.
func (s *BudgetService) cutoffMonth(fiscalYear int) int {
	now := s.clock.Now()
	switch {
	case now.Year() > fiscalYear:
		return 12
	case now.Year() < fiscalYear:
		return 0
	default:
		return int(now.Month()) - 1
	}
}

// resolvePct cascades through the percentage sources. Seller-managed
// classes consult the planner's growth case, then the legacy forecast-case
// table, then the request default. Centrally managed classes take the
// request default directly.
func (s *BudgetService) resolvePct(ctx context.Context, cpc *domain.ClientProfitCenter, class domain.PlanningClass, budgetCase *domain.BudgetCase, req domain.GenerateBudgetRequest) (float64, error) {
	if !class.IsSellerManaged() {
		if req.DefaultPct != nil {
			return *req.DefaultPct, nil
		}
		return 0, nil
	}

	if budgetCase != nil {
		var v *float64
		if req.Scenario == domain.ScenarioWorst {
			v = budgetCase.WorstCasePct
		} else {
			v = budgetCase.BestCasePct
		}
		if v != nil {
			return *v, nil
		}
	}

	legacy, err := s.cases.FindForecastCase(ctx, cpc.ID, req.FiscalYear)
	if err != nil {
		return 0, err
	}
	if legacy != nil {
		return legacy.Pct, nil
	}

	if req.DefaultPct != nil {
		return *req.DefaultPct, nil
	}
	return 0, nil
}

// DistributeMonthly splits an annual total across the twelve fiscal months
// by seasonality weight, rounding each month to the nearest whole unit.
// Index 0 is April.
func DistributeMonthly(annualTotal float64, weights domain.SeasonalityWeights) [12]float64 {
	var out [12]float64
	for i := 0; i < 12; i++ {
		out[i] = math.Round(annualTotal * weights[i] / 100)
	}
	return out
}

// writeBudgets persists one pair's twelve budget rows in a single
// transaction, optionally mirroring them into version 1 forecast rows.
// Full rebuilds clear the pair's prior budget and run log rows first.
func (s *BudgetService) writeBudgets(ctx context.Context, cpcID uuid.UUID, req domain.GenerateBudgetRequest, volumes [12]float64, mirror bool, stage string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		budgets := repository.NewBudgetRepository(tx)
		runLogs := repository.NewRunLogRepository(tx)

		if req.FullRebuild {
			if err := runLogs.DeleteByPairAndYear(ctx, cpcID, req.FiscalYear); err != nil {
				return err
			}
			if err := budgets.DeleteByPairAndYear(ctx, cpcID, req.FiscalYear); err != nil {
				return err
			}
		}

		rows := make([]domain.Budget, 0, 12)
		for idx := 1; idx <= 12; idx++ {
			_, month := fiscal.CalendarDate(req.FiscalYear, idx)
			rows = append(rows, domain.Budget{
				CPCID:      cpcID,
				FiscalYear: req.FiscalYear,
				Month:      month,
				Volume:     volumes[idx-1],
			})
		}
		if err := budgets.Upsert(ctx, rows); err != nil {
			return err
		}

		if mirror {
			if err := mirrorForecast(ctx, tx, cpcID, req.FiscalYear, volumes); err != nil {
				return err
			}
		}

		return runLogs.Create(ctx, &domain.PlanningRunLog{
			CPCID:      cpcID,
			FiscalYear: req.FiscalYear,
			Stage:      stage,
		})
	})
}

// mirrorForecast writes the generated budget volumes into version 1
// forecast rows. The owner is whoever currently holds the pair's planning
// assignment; an unassigned pair still gets forecast rows, with a null
// owner.
func mirrorForecast(ctx context.Context, tx *gorm.DB, cpcID uuid.UUID, fiscalYear int, volumes [12]float64) error {
	assignments := repository.NewAssignmentRepository(tx)
	forecasts := repository.NewForecastRepository(tx)

	owner, err := assignments.CurrentHolder(ctx, cpcID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := forecasts.DeleteVersion(ctx, cpcID, fiscalYear, 1, owner); err != nil {
		return err
	}

	rows := make([]domain.Forecast, 0, 12)
	for idx := 1; idx <= 12; idx++ {
		_, month := fiscal.CalendarDate(fiscalYear, idx)
		rows = append(rows, domain.Forecast{
			CPCID:      cpcID,
			FiscalYear: fiscalYear,
			Month:      month,
			UserID:     owner,
			Version:    1,
			Volume:     volumes[idx-1],
		})
	}
	return forecasts.InsertBatch(ctx, rows)
}

func (s *BudgetService) logStage(ctx context.Context, cpcID uuid.UUID, fiscalYear int, stage, message string) error {
	return repository.NewRunLogRepository(s.db).Create(ctx, &domain.PlanningRunLog{
		CPCID:      cpcID,
		FiscalYear: fiscalYear,
		Stage:      stage,
		Message:    message,
	})
}

// GenerateForecasts seeds a forecast version from the current budget
// volumes of every planning pair.
func (s *BudgetService) GenerateForecasts(ctx context.Context, req domain.GenerateForecastRequest) (domain.GenerationSummary, error) {
	summary := domain.GenerationSummary{FiscalYear: req.FiscalYear}

	release, err := s.locks.Acquire(ctx, LockForecastGeneration)
	if err != nil {
		return summary, err
	}
	defer release()

	pairs, err := s.cpcs.ListAll(ctx)
	if err != nil {
		return summary, err
	}

	for i := range pairs {
		cpc := &pairs[i]
		if cpc.Class() == domain.ClassExcluded {
			continue
		}
		summary.Processed++

		written, err := s.seedForecastForPair(ctx, cpc.ID, req)
		if err != nil {
			summary.Failed++
			s.logger.Error("forecast generation failed for pair",
				zap.String("cpcId", cpc.ID.String()),
				zap.Int("fiscalYear", req.FiscalYear),
				zap.Error(err))
			continue
		}
		if written {
			summary.Written++
		} else {
			summary.Skipped++
		}
	}

	s.logger.Info("forecast generation finished",
		zap.Int("fiscalYear", req.FiscalYear),
		zap.Int("version", req.Version),
		zap.Int("processed", summary.Processed),
		zap.Int("written", summary.Written),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (s *BudgetService) seedForecastForPair(ctx context.Context, cpcID uuid.UUID, req domain.GenerateForecastRequest) (bool, error) {
	budgets, err := s.budgets.ListByPairAndYear(ctx, cpcID, req.FiscalYear)
	if err != nil {
		return false, err
	}
	if len(budgets) == 0 {
		return false, nil
	}

	written := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignments := repository.NewAssignmentRepository(tx)
		forecasts := repository.NewForecastRepository(tx)

		owner, err := assignments.CurrentHolder(ctx, cpcID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		exists, err := forecasts.HasVersion(ctx, cpcID, req.FiscalYear, req.Version, owner)
		if err != nil {
			return err
		}
		if exists {
			if !req.Overwrite {
				return nil
			}
			if err := forecasts.DeleteVersion(ctx, cpcID, req.FiscalYear, req.Version, owner); err != nil {
				return err
			}
		}

		rows := make([]domain.Forecast, 0, len(budgets))
		for _, b := range budgets {
			rows = append(rows, domain.Forecast{
				CPCID:      cpcID,
				FiscalYear: b.FiscalYear,
				Month:      b.Month,
				UserID:     owner,
				Version:    req.Version,
				Volume:     b.Volume,
			})
		}
		if err := forecasts.InsertBatch(ctx, rows); err != nil {
			return err
		}
		written = true
		return nil
	})
	return written, err
}

// monthRange returns the inclusive calendar month range [from, to].
func monthRange(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, 0, to-from+1)
	for m := from; m <= to; m++ {
		out = append(out, m)
	}
	return out
}
