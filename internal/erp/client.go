// Package erp provides read-only connectivity to the MS SQL ERP system that
// feeds monthly sales actuals into the planning database.
package erp

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"github.com/nordholz-group/salesplan-api/internal/config"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 10 * time.Second
	defaultBackoffFactor  = 2.0

	defaultHealthCheckTimeout = 5 * time.Second
)

// Client provides read-only access to the ERP sales feed. It manages a
// connection pool and exposes the one query the import needs.
type Client struct {
	db           *sql.DB
	salesTable   string
	logger       *zap.Logger
	queryTimeout time.Duration
}

// SalesRow is one month of actuals for a (client, profit center) pair as the
// ERP reports it.
type SalesRow struct {
	ClientNumber     string
	ProfitCenterCode int
	FiscalYear       int
	Month            int
	SalesUnits       float64
	CubicMeters      float64
	Euros            float64
}

// NewClient creates a new ERP client. Returns nil if the feed is disabled or
// not configured; the application runs without it.
func NewClient(cfg *config.ERPConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("ERP sales feed disabled")
		return nil, nil
	}

	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("ERP feed enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	connStr, err := buildConnectionString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	var db *sql.DB
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxRetries; attempt++ {
		db, err = sql.Open("sqlserver", connStr)
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

			pingCtx, cancel := context.WithTimeout(context.Background(), defaultHealthCheckTimeout)
			err = db.PingContext(pingCtx)
			cancel()
			if err == nil {
				break
			}
			_ = db.Close()
			db = nil
		}

		logger.Warn("ERP connection attempt failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", defaultMaxRetries),
		)
		if attempt < defaultMaxRetries {
			time.Sleep(backoff)
			backoff = min(time.Duration(float64(backoff)*defaultBackoffFactor), defaultMaxBackoff)
		}
	}
	if db == nil {
		return nil, fmt.Errorf("failed to connect to ERP after %d attempts: %w", defaultMaxRetries, err)
	}

	logger.Info("ERP sales feed connected",
		zap.String("sales_table", cfg.SalesTable),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return &Client{
		db:           db,
		salesTable:   cfg.SalesTable,
		logger:       logger,
		queryTimeout: cfg.QueryTimeoutDuration(),
	}, nil
}

// FetchMonthlySales returns all ERP sales rows for one fiscal year.
func (c *Client) FetchMonthlySales(ctx context.Context, fiscalYear int) ([]SalesRow, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT client_number, profit_center_code, fiscal_year, month,
		       sales_units, cubic_meters, euros
		FROM %s
		WHERE fiscal_year = @p1
		ORDER BY client_number, profit_center_code, month`, c.salesTable)

	rows, err := c.db.QueryContext(ctx, query, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query ERP sales: %w", err)
	}
	defer rows.Close()

	var result []SalesRow
	for rows.Next() {
		var r SalesRow
		if err := rows.Scan(&r.ClientNumber, &r.ProfitCenterCode, &r.FiscalYear, &r.Month,
			&r.SalesUnits, &r.CubicMeters, &r.Euros); err != nil {
			return nil, fmt.Errorf("failed to scan ERP sales row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ERP sales rows: %w", err)
	}
	return result, nil
}

// Ping checks the ERP connection.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultHealthCheckTimeout)
	defer cancel()
	return c.db.PingContext(ctx)
}

// Close closes the connection pool.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// buildConnectionString turns the host:port/database URL form into a
// sqlserver connection string.
func buildConnectionString(cfg *config.ERPConfig) (string, error) {
	parts := strings.SplitN(cfg.URL, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid ERP URL %q, expected host:port/database", cfg.URL)
	}

	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   parts[0],
	}
	q := url.Values{}
	q.Set("database", parts[1])
	q.Set("encrypt", "true")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
