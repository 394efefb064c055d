package service

import (
	"fmt"

	"github.com/nordholz-group/salesplan-api/internal/domain"
)

// RunCache memoizes reference lookups within one generation or detection
// run. It is created per run and discarded afterwards; nothing here may
// outlive a run, or stale reference data would leak into the next one.
type RunCache struct {
	weights   map[string]cachedWeights
	factors   map[string]float64
	effective map[string]float64
}

type cachedWeights struct {
	weights  domain.SeasonalityWeights
	usedYear int
}

// NewRunCache creates an empty per-run cache.
func NewRunCache() *RunCache {
	return &RunCache{
		weights:   make(map[string]cachedWeights),
		factors:   make(map[string]float64),
		effective: make(map[string]float64),
	}
}

func weightsKey(profitCenterCode, fiscalYear int) string {
	return fmt.Sprintf("w:%d:%d", profitCenterCode, fiscalYear)
}

func factorKey(kind string, profitCenterCode int, fiscalYear *int) string {
	if fiscalYear == nil {
		return fmt.Sprintf("f:%s:%d:any", kind, profitCenterCode)
	}
	return fmt.Sprintf("f:%s:%d:%d", kind, profitCenterCode, *fiscalYear)
}

func effectiveKey(userID string, profitCenterCode, fiscalYear int) string {
	return fmt.Sprintf("e:%s:%d:%d", userID, profitCenterCode, fiscalYear)
}

func (c *RunCache) getWeights(key string) (domain.SeasonalityWeights, int, bool) {
	v, ok := c.weights[key]
	return v.weights, v.usedYear, ok
}

func (c *RunCache) putWeights(key string, w domain.SeasonalityWeights, usedYear int) {
	c.weights[key] = cachedWeights{weights: w, usedYear: usedYear}
}

func (c *RunCache) getFactor(key string) (float64, bool) {
	v, ok := c.factors[key]
	return v, ok
}

func (c *RunCache) putFactor(key string, v float64) {
	c.factors[key] = v
}

func (c *RunCache) getEffective(key string) (float64, bool) {
	v, ok := c.effective[key]
	return v, ok
}

func (c *RunCache) putEffective(key string, v float64) {
	c.effective[key] = v
}
