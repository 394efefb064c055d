package service_test

import (
	"testing"

	"github.com/nordholz-group/salesplan-api/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestAnnualize(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		percent  float64
		expected float64
	}{
		{name: "partial year projects to full year", actual: 8000, percent: 80, expected: 10000},
		{name: "full coverage is identity", actual: 5000, percent: 100, expected: 5000},
		{name: "small coverage scales up", actual: 250, percent: 25, expected: 1000},
		{name: "zero actual yields zero", actual: 0, percent: 50, expected: 0},
		{name: "negative actual yields zero", actual: -100, percent: 50, expected: 0},
		{name: "zero weight yields zero", actual: 8000, percent: 0, expected: 0},
		{name: "negative weight yields zero", actual: 8000, percent: -10, expected: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, service.Annualize(tc.actual, tc.percent), 1e-9)
		})
	}
}
