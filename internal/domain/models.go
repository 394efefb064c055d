package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VolumeUnit identifies which native metric of a sale row is being summed.
type VolumeUnit string

const (
	UnitSales       VolumeUnit = "sales_units"
	UnitCubicMeters VolumeUnit = "cubic_meters"
	UnitEuros       VolumeUnit = "euros"
)

// PlanningClass represents the planning class derived from a client
// classification. A/B/PA/PB are seller-managed (budget driven by budget
// cases), C/D are centrally managed (budget driven by request percentages,
// forecast mirrors budget), X is excluded from generation entirely.
type PlanningClass string

const (
	ClassA        PlanningClass = "A"
	ClassB        PlanningClass = "B"
	ClassPA       PlanningClass = "PA"
	ClassPB       PlanningClass = "PB"
	ClassC        PlanningClass = "C"
	ClassD        PlanningClass = "D"
	ClassExcluded PlanningClass = "X"
)

// classByClassification maps the externally owned classification ids onto
// planning classes.
var classByClassification = map[int]PlanningClass{
	1: ClassA,
	2: ClassB,
	3: ClassC,
	4: ClassD,
	5: ClassExcluded,
	6: ClassPA,
	7: ClassPB,
}

// ClassForClassification resolves the planning class for a classification id.
// Unknown ids are treated as excluded.
func ClassForClassification(id int) PlanningClass {
	if c, ok := classByClassification[id]; ok {
		return c
	}
	return ClassExcluded
}

// IsSellerManaged reports whether budgets for this class are driven by
// seller-entered budget cases.
func (c PlanningClass) IsSellerManaged() bool {
	switch c {
	case ClassA, ClassB, ClassPA, ClassPB:
		return true
	}
	return false
}

// MirrorsForecast reports whether generated budgets for this class are
// mirrored into forecast rows.
func (c PlanningClass) MirrorsForecast() bool {
	return c == ClassC || c == ClassD
}

// ProfitCenter is a business line. Immutable reference data.
type ProfitCenter struct {
	Code      int       `gorm:"primaryKey" json:"code"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// ClientProfitCenter is the atomic planning unit: a (client, profit center)
// pair. All sales, budget and forecast rows key off its surrogate id.
type ClientProfitCenter struct {
	ID               uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ClientNumber     string        `gorm:"type:varchar(50);not null;index;column:client_number" json:"clientNumber"`
	ClientName       string        `gorm:"type:varchar(200);column:client_name" json:"clientName"`
	ProfitCenterCode int           `gorm:"not null;index;column:profit_center_code" json:"profitCenterCode"`
	ProfitCenter     *ProfitCenter `gorm:"foreignKey:ProfitCenterCode" json:"profitCenter,omitempty"`
	ClassificationID int           `gorm:"not null;column:classification_id" json:"classificationId"`
	CreatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName overrides the pluralized default.
func (ClientProfitCenter) TableName() string {
	return "client_profit_centers"
}

// Class returns the planning class of this pair.
func (c *ClientProfitCenter) Class() PlanningClass {
	return ClassForClassification(c.ClassificationID)
}

// UnitConversion holds the multiplicative factors from a profit center's raw
// sales units to cubic meters and euros. Rows may be scoped to a fiscal year;
// unscoped rows apply to all years.
type UnitConversion struct {
	ID               uint    `gorm:"primaryKey"`
	ProfitCenterCode int     `gorm:"not null;index;column:profit_center_code"`
	FiscalYear       *int    `gorm:"column:fiscal_year"`
	FactorToM3       float64 `gorm:"not null;default:1;column:factor_to_m3"`
	FactorToEuro     float64 `gorm:"not null;default:1;column:factor_to_euro"`
}

// Seasonality holds the twelve monthly percentage weights of a profit center
// for one fiscal year, April through March.
type Seasonality struct {
	ID               uint    `gorm:"primaryKey"`
	ProfitCenterCode int     `gorm:"not null;index:idx_seasonality_pc_fy;column:profit_center_code"`
	FiscalYear       int     `gorm:"not null;index:idx_seasonality_pc_fy;column:fiscal_year"`
	Apr              float64 `gorm:"not null;default:0"`
	May              float64 `gorm:"not null;default:0"`
	Jun              float64 `gorm:"not null;default:0"`
	Jul              float64 `gorm:"not null;default:0"`
	Aug              float64 `gorm:"not null;default:0"`
	Sep              float64 `gorm:"not null;default:0"`
	Oct              float64 `gorm:"not null;default:0"`
	Nov              float64 `gorm:"not null;default:0"`
	Dec              float64 `gorm:"not null;default:0"`
	Jan              float64 `gorm:"not null;default:0"`
	Feb              float64 `gorm:"not null;default:0"`
	Mar              float64 `gorm:"not null;default:0"`
}

// TableName overrides the pluralized default.
func (Seasonality) TableName() string {
	return "seasonalities"
}

// Weights returns the row's weights in fiscal order (index 0 = April).
func (s *Seasonality) Weights() SeasonalityWeights {
	return SeasonalityWeights{s.Apr, s.May, s.Jun, s.Jul, s.Aug, s.Sep, s.Oct, s.Nov, s.Dec, s.Jan, s.Feb, s.Mar}
}

// SeasonalityWeights are twelve monthly percentage weights in fiscal order
// (index 0 = April). They need not sum to exactly 100; consumers treat them
// as fractions of whatever total they sum to.
type SeasonalityWeights [12]float64

// UniformWeights is the substitute used when a weight map is entirely
// non-positive: an even 1/12 split.
func UniformWeights() SeasonalityWeights {
	var w SeasonalityWeights
	for i := range w {
		w[i] = 100.0 / 12.0
	}
	return w
}

// At returns the weight at a 1-based fiscal month index (1 = April).
func (w SeasonalityWeights) At(fiscalIndex int) float64 {
	if fiscalIndex < 1 || fiscalIndex > 12 {
		return 0
	}
	return w[fiscalIndex-1]
}

// Total returns the sum of all twelve weights.
func (w SeasonalityWeights) Total() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// AllNonPositive reports whether no weight is above zero.
func (w SeasonalityWeights) AllNonPositive() bool {
	for _, v := range w {
		if v > 0 {
			return false
		}
	}
	return true
}

// Sale is one month of actual sales for a planning pair, carrying all three
// native metrics. Rows are written by the ERP import and read-only to the
// planning engines.
type Sale struct {
	ID          uint      `gorm:"primaryKey"`
	CPCID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sales_cell;column:cpc_id"`
	FiscalYear  int       `gorm:"not null;uniqueIndex:idx_sales_cell;column:fiscal_year"`
	Month       int       `gorm:"not null;uniqueIndex:idx_sales_cell"`
	SalesUnits  float64   `gorm:"not null;default:0;column:sales_units"`
	CubicMeters float64   `gorm:"not null;default:0;column:cubic_meters"`
	Euros       float64   `gorm:"not null;default:0"`
	ImportedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;column:imported_at"`
}

// Budget is one month of planned volume for a planning pair, in the profit
// center's native unit. Unique per (cpc, fiscal year, month) and overwritten
// on regeneration.
type Budget struct {
	ID         uint      `gorm:"primaryKey"`
	CPCID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_budgets_cell;column:cpc_id"`
	FiscalYear int       `gorm:"not null;uniqueIndex:idx_budgets_cell;column:fiscal_year"`
	Month      int       `gorm:"not null;uniqueIndex:idx_budgets_cell"`
	Volume     float64   `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BudgetKey is the natural key of a budget cell.
type BudgetKey struct {
	CPCID      uuid.UUID
	FiscalYear int
	Month      int
}

// BudgetCase carries the seller-entered best/worst case adjustment and skip
// flag for one planning pair and fiscal year. Produced by the planning UI,
// consumed read-only.
type BudgetCase struct {
	ID           uint      `gorm:"primaryKey"`
	CPCID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_budget_cases_cell;column:cpc_id"`
	FiscalYear   int       `gorm:"not null;uniqueIndex:idx_budget_cases_cell;column:fiscal_year"`
	BestCasePct  *float64  `gorm:"column:best_case_pct"`
	WorstCasePct *float64  `gorm:"column:worst_case_pct"`
	SkipBudget   bool      `gorm:"not null;default:false;column:skip_budget"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// ForecastCase is the legacy percentage table consulted when a budget case
// carries no value for the requested scenario.
type ForecastCase struct {
	ID         uint      `gorm:"primaryKey"`
	CPCID      uuid.UUID `gorm:"type:uuid;not null;index;column:cpc_id"`
	FiscalYear int       `gorm:"not null;column:fiscal_year"`
	Pct        float64   `gorm:"not null;default:0"`
}

// Forecast is an append-only, versioned forecast cell. The current value of
// a cell is the row with the highest version for its (cpc, fiscal year,
// month, user) tuple; version ties break on the highest row id.
type Forecast struct {
	ID         uint      `gorm:"primaryKey"`
	CPCID      uuid.UUID `gorm:"type:uuid;not null;index:idx_forecasts_cell;column:cpc_id"`
	FiscalYear int       `gorm:"not null;index:idx_forecasts_cell;column:fiscal_year"`
	Month      int       `gorm:"not null;index:idx_forecasts_cell"`
	UserID     *string   `gorm:"type:varchar(100);column:user_id"`
	Version    int       `gorm:"not null;default:1"`
	Volume     float64   `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// ExtraQuotaAssignment grants a user additional quota volume for a profit
// center and fiscal year. Unpublished rows must not affect any calculation.
type ExtraQuotaAssignment struct {
	ID               uint      `gorm:"primaryKey"`
	FiscalYear       int       `gorm:"not null;index:idx_eq_assignments_key;column:fiscal_year"`
	ProfitCenterCode int       `gorm:"not null;index:idx_eq_assignments_key;column:profit_center_code"`
	UserID           string    `gorm:"type:varchar(100);not null;index:idx_eq_assignments_key;column:user_id"`
	Volume           float64   `gorm:"not null;default:0"`
	IsPublished      bool      `gorm:"not null;default:false;column:is_published"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// OpportunityStatus is the pipeline state of a sales opportunity.
type OpportunityStatus string

const (
	OpportunityOpen OpportunityStatus = "open"
	OpportunityWon  OpportunityStatus = "won"
	OpportunityLost OpportunityStatus = "lost"
)

// SalesOpportunity is an append-only, versioned pipeline entry. Rows sharing
// a group id describe the same opportunity; only the highest version per
// group is current.
type SalesOpportunity struct {
	ID               uint              `gorm:"primaryKey"`
	GroupID          uuid.UUID         `gorm:"type:uuid;not null;index;column:group_id"`
	Version          int               `gorm:"not null;default:1"`
	Title            string            `gorm:"type:varchar(200)"`
	Status           OpportunityStatus `gorm:"type:varchar(20);not null;default:'open'"`
	IsWon            bool              `gorm:"not null;default:false;column:is_won"` // legacy flag, still honored
	ProbabilityPct   int               `gorm:"not null;default:0;column:probability_pct"`
	UserID           string            `gorm:"type:varchar(100);not null;index;column:user_id"`
	ProfitCenterCode int               `gorm:"not null;index;column:profit_center_code"`
	FiscalYear       int               `gorm:"not null;column:fiscal_year"`
	Volume           float64           `gorm:"not null;default:0"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// Closed reports whether the opportunity has left the open pipeline.
func (o *SalesOpportunity) Closed() bool {
	return o.Status == OpportunityWon || o.Status == OpportunityLost || o.IsWon
}

// Won reports whether the opportunity counts against assigned extra quota.
func (o *SalesOpportunity) Won() bool {
	return o.Status == OpportunityWon || o.IsWon
}

// ExtraQuotaForecast is a monthly forecast contribution tied to one version
// of a sales opportunity.
type ExtraQuotaForecast struct {
	ID         uint      `gorm:"primaryKey"`
	GroupID    uuid.UUID `gorm:"type:uuid;not null;index:idx_eq_forecasts_cell;column:group_id"`
	Version    int       `gorm:"not null;index:idx_eq_forecasts_cell"`
	FiscalYear int       `gorm:"not null;index:idx_eq_forecasts_cell;column:fiscal_year"`
	Month      int       `gorm:"not null;index:idx_eq_forecasts_cell"`
	Volume     float64   `gorm:"not null;default:0"`
}

// ExtraQuotaBudget is the budget-side counterpart of ExtraQuotaForecast.
type ExtraQuotaBudget struct {
	ID         uint      `gorm:"primaryKey"`
	GroupID    uuid.UUID `gorm:"type:uuid;not null;index:idx_eq_budgets_cell;column:group_id"`
	Version    int       `gorm:"not null;index:idx_eq_budgets_cell"`
	FiscalYear int       `gorm:"not null;index:idx_eq_budgets_cell;column:fiscal_year"`
	Month      int       `gorm:"not null;index:idx_eq_budgets_cell"`
	Volume     float64   `gorm:"not null;default:0"`
}

// DeviationType distinguishes the two deviation checks.
type DeviationType string

const (
	DeviationSales    DeviationType = "SALES"
	DeviationForecast DeviationType = "FORECAST"
)

// DeviationKey is the natural key a deviation row is upserted by.
type DeviationKey struct {
	ProfitCenterCode int
	FiscalYear       int
	Month            int
	Type             DeviationType
	UserID           string
}

// Deviation is a flagged mismatch between plan and either forecast or actual
// sales, beyond a tolerance band. Exactly one row exists per key; re-running
// detection overwrites the measured fields but preserves Justified, which is
// owned by the external justification workflow.
type Deviation struct {
	ID               uint          `gorm:"primaryKey"`
	ProfitCenterCode int           `gorm:"not null;uniqueIndex:idx_deviations_key;column:profit_center_code"`
	FiscalYear       int           `gorm:"not null;uniqueIndex:idx_deviations_key;column:fiscal_year"`
	Month            int           `gorm:"not null;uniqueIndex:idx_deviations_key"`
	Type             DeviationType `gorm:"type:varchar(20);not null;uniqueIndex:idx_deviations_key;column:deviation_type"`
	UserID           string        `gorm:"type:varchar(100);not null;uniqueIndex:idx_deviations_key;column:user_id"`
	SalesTotal       float64       `gorm:"not null;default:0;column:sales_total"`
	BudgetTotal      float64       `gorm:"not null;default:0;column:budget_total"`
	ForecastTotal    float64       `gorm:"not null;default:0;column:forecast_total"`
	Percent          float64       `gorm:"not null;default:0"`
	Delta            float64       `gorm:"not null;default:0"`
	Months           MonthKeys     `gorm:"type:text"`
	SalesSeries      FloatSeries   `gorm:"type:text;column:sales_series"`
	BudgetSeries     FloatSeries   `gorm:"type:text;column:budget_series"`
	ForecastSeries   FloatSeries   `gorm:"type:text;column:forecast_series"`
	Justified        bool          `gorm:"not null;default:false"`
	CreatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// Key returns the row's natural key.
func (d *Deviation) Key() DeviationKey {
	return DeviationKey{
		ProfitCenterCode: d.ProfitCenterCode,
		FiscalYear:       d.FiscalYear,
		Month:            d.Month,
		Type:             d.Type,
		UserID:           d.UserID,
	}
}

// PlanningAssignment records which user currently holds a planning pair.
// The most recently updated assignment with a non-null user wins.
type PlanningAssignment struct {
	ID        uint      `gorm:"primaryKey"`
	CPCID     uuid.UUID `gorm:"type:uuid;not null;index;column:cpc_id"`
	UserID    *string   `gorm:"type:varchar(100);index;column:user_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// PlanningRunLog is a per-pair debug row written during budget generation.
// Full rebuilds delete these together with the budget rows.
type PlanningRunLog struct {
	ID         uint      `gorm:"primaryKey"`
	CPCID      uuid.UUID `gorm:"type:uuid;not null;index;column:cpc_id"`
	FiscalYear int       `gorm:"not null;column:fiscal_year"`
	Stage      string    `gorm:"type:varchar(50);not null"`
	Message    string    `gorm:"type:varchar(500)"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// JobLock is the single-row mutual exclusion record for a named batch job.
type JobLock struct {
	Name      string    `gorm:"type:varchar(100);primaryKey"`
	LockedAt  time.Time `gorm:"not null;column:locked_at"`
	ExpiresAt time.Time `gorm:"not null;column:expires_at"`
}

// User is the minimal user record needed for attribution. User
// administration itself is owned by an external collaborator.
type User struct {
	ID          string    `gorm:"type:varchar(100);primaryKey" json:"id"`
	Email       string    `gorm:"type:varchar(255);not null;unique" json:"email"`
	DisplayName string    `gorm:"type:varchar(200);not null;column:display_name" json:"displayName"`
	IsActive    bool      `gorm:"not null;default:true;column:is_active" json:"isActive"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// MonthKey formats a calendar year and month the way deviation series store
// them ("YYYY-MM").
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// MonthKeys is a JSON-serialized list of "YYYY-MM" strings. The stored shape
// is consumed directly by the charting UI and must stay an array of strings.
type MonthKeys []string

// Value implements driver.Valuer.
func (m MonthKeys) Value() (driver.Value, error) {
	if m == nil {
		m = MonthKeys{}
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// Scan implements sql.Scanner.
func (m *MonthKeys) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// FloatSeries is a JSON-serialized list of floats, parallel to MonthKeys.
type FloatSeries []float64

// Value implements driver.Valuer.
func (f FloatSeries) Value() (driver.Value, error) {
	if f == nil {
		f = FloatSeries{}
	}
	b, err := json.Marshal(f)
	return string(b), err
}

// Scan implements sql.Scanner.
func (f *FloatSeries) Scan(value interface{}) error {
	return scanJSON(value, f)
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
