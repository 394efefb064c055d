package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrJobAlreadyRunning is returned when a batch entry point is triggered
	// while another holder has the job's lock
	ErrJobAlreadyRunning = errors.New("job already running")

	// ErrNoSeasonalityData is returned when a profit center has no
	// seasonality history at all, so no fallback year can be resolved
	ErrNoSeasonalityData = errors.New("no seasonality data for profit center")

	// ErrImportDisabled is returned when the ERP sales import is triggered
	// without a configured ERP connection
	ErrImportDisabled = errors.New("erp import is not configured")
)
