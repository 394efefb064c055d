package domain

// Scenario selects which budget-case percentage drives a generation run.
type Scenario string

const (
	ScenarioBest  Scenario = "best"
	ScenarioWorst Scenario = "worst"
)

// GenerateBudgetRequest is the payload of the budget generation entry point.
type GenerateBudgetRequest struct {
	FiscalYear  int      `json:"fiscalYear" validate:"required,gte=2000,lte=2100"`
	FullRebuild bool     `json:"fullRebuild"`
	Scenario    Scenario `json:"case" validate:"required,oneof=best worst"`
	DefaultPct  *float64 `json:"defaultPct" validate:"omitempty,gte=-100,lte=1000"`
}

// GenerateForecastRequest is the payload of the forecast generation entry
// point. The requested version is seeded from current budget volumes.
type GenerateForecastRequest struct {
	FiscalYear int  `json:"fiscalYear" validate:"required,gte=2000,lte=2100"`
	Version    int  `json:"version" validate:"required,gte=1"`
	Overwrite  bool `json:"overwrite"`
}

// DetectDeviationsRequest optionally narrows detection to a single user.
type DetectDeviationsRequest struct {
	UserID *string `json:"userId" validate:"omitempty,min=1,max=100"`
}

// GenerationSummary reports the outcome of a budget or forecast run. Batch
// entry points return a summary even under partial failure.
type GenerationSummary struct {
	FiscalYear int `json:"fiscalYear"`
	Processed  int `json:"processed"`
	Written    int `json:"written"`
	Zeroed     int `json:"zeroed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// DeviationRunSummary reports the outcome of a deviation detection run.
type DeviationRunSummary struct {
	PairsProcessed     int `json:"pairsProcessed"`
	ForecastDeviations int `json:"forecastDeviations"`
	SalesDeviations    int `json:"salesDeviations"`
	PairsSkipped       int `json:"pairsSkipped"`
}

// ImportSummary reports the outcome of an ERP sales import run.
type ImportSummary struct {
	RowsFetched  int `json:"rowsFetched"`
	RowsUpserted int `json:"rowsUpserted"`
	RowsSkipped  int `json:"rowsSkipped"`
}

// DeviationDTO is the charting-oriented view of a deviation row. The months
// and series arrays are parallel, same ordering and length.
type DeviationDTO struct {
	ID               uint          `json:"id"`
	ProfitCenterCode int           `json:"profitCenterCode"`
	FiscalYear       int           `json:"fiscalYear"`
	Month            int           `json:"month"`
	Type             DeviationType `json:"type"`
	UserID           string        `json:"userId"`
	SalesTotal       float64       `json:"salesTotal"`
	BudgetTotal      float64       `json:"budgetTotal"`
	ForecastTotal    float64       `json:"forecastTotal"`
	Percent          float64       `json:"percent"`
	Delta            float64       `json:"delta"`
	Months           []string      `json:"months"`
	SalesSeries      []float64     `json:"sales"`
	BudgetSeries     []float64     `json:"budget"`
	ForecastSeries   []float64     `json:"forecast"`
	Justified        bool          `json:"justified"`
}

// ToDeviationDTO maps a deviation row onto its charting view.
func ToDeviationDTO(d *Deviation) DeviationDTO {
	return DeviationDTO{
		ID:               d.ID,
		ProfitCenterCode: d.ProfitCenterCode,
		FiscalYear:       d.FiscalYear,
		Month:            d.Month,
		Type:             d.Type,
		UserID:           d.UserID,
		SalesTotal:       d.SalesTotal,
		BudgetTotal:      d.BudgetTotal,
		ForecastTotal:    d.ForecastTotal,
		Percent:          d.Percent,
		Delta:            d.Delta,
		Months:           d.Months,
		SalesSeries:      d.SalesSeries,
		BudgetSeries:     d.BudgetSeries,
		ForecastSeries:   d.ForecastSeries,
		Justified:        d.Justified,
	}
}
