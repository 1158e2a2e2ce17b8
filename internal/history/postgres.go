package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/warestack/wms-predict/internal/models"
)

const recentDailyQuery = `
SELECT demand_date, total_quantity
FROM (
    SELECT oi.sku_id,
           DATE(o.created_at) AS demand_date,
           SUM(oi.quantity)   AS total_quantity
    FROM order_items oi
    JOIN orders o ON o.order_id = oi.order_id
    WHERE oi.sku_id = $1
    GROUP BY oi.sku_id, DATE(o.created_at)
    ORDER BY demand_date DESC
    LIMIT $2
) recent
ORDER BY demand_date ASC`

const demandEventsQuery = `
SELECT oi.sku_id,
       DATE(o.created_at)                                        AS period_start,
       COUNT(DISTINCT o.order_id)                                AS order_count,
       SUM(oi.quantity)                                          AS total_quantity,
       COUNT(DISTINCT o.order_id) FILTER (WHERE o.status = 'COMPLETED') AS completed_orders
FROM order_items oi
JOIN orders o ON o.order_id = oi.order_id
WHERE o.created_at >= $1
GROUP BY oi.sku_id, DATE(o.created_at)`

const pickerEventsQuery = `
SELECT pt.picker_id,
       DATE(pt.completed_at)                                    AS period_start,
       COUNT(DISTINCT pt.order_id)                              AS orders_picked,
       SUM(pt.quantity)                                         AS items_picked,
       SUM(EXTRACT(EPOCH FROM pt.completed_at - pt.started_at)) / 3600 AS hours_worked,
       COUNT(*) FILTER (WHERE pt.status = 'COMPLETED')          AS completed_tasks,
       COUNT(*) FILTER (WHERE pt.status = 'CANCELLED')          AS cancelled_tasks
FROM pick_tasks pt
WHERE pt.completed_at >= $1
GROUP BY pt.picker_id, DATE(pt.completed_at)`

// PostgresHistory reads demand and picker activity from the warehouse
// operational database.
type PostgresHistory struct {
	db *sql.DB
}

// NewPostgresHistory opens a pooled connection to dsn and verifies it.
func NewPostgresHistory(ctx context.Context, dsn string) (*PostgresHistory, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	return &PostgresHistory{db: db}, nil
}

// NewPostgresHistoryFromDB wraps an existing pool. Used in tests.
func NewPostgresHistoryFromDB(db *sql.DB) *PostgresHistory {
	return &PostgresHistory{db: db}
}

// RecentDaily returns up to days of daily demand for a SKU, oldest first.
func (h *PostgresHistory) RecentDaily(ctx context.Context, skuID string, days int) ([]float64, error) {
	rows, err := h.db.QueryContext(ctx, recentDailyQuery, skuID, days)
	if err != nil {
		return nil, fmt.Errorf("query demand history: %w", err)
	}
	defer rows.Close()

	var quantities []float64
	for rows.Next() {
		var date time.Time
		var quantity float64
		if err := rows.Scan(&date, &quantity); err != nil {
			return nil, fmt.Errorf("scan demand history: %w", err)
		}
		quantities = append(quantities, quantity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read demand history: %w", err)
	}
	if len(quantities) == 0 {
		return nil, fmt.Errorf("sku %s: %w", skuID, models.ErrNoHistory)
	}
	return quantities, nil
}

// DemandEvents returns per-SKU daily order aggregates since the cutoff.
func (h *PostgresHistory) DemandEvents(ctx context.Context, since time.Time) ([]models.TimeSeriesPoint, error) {
	rows, err := h.db.QueryContext(ctx, demandEventsQuery, since)
	if err != nil {
		return nil, fmt.Errorf("query demand events: %w", err)
	}
	defer rows.Close()

	var points []models.TimeSeriesPoint
	for rows.Next() {
		var skuID string
		var period time.Time
		var orders, quantity, completed float64
		if err := rows.Scan(&skuID, &period, &orders, &quantity, &completed); err != nil {
			return nil, fmt.Errorf("scan demand events: %w", err)
		}
		points = append(points, models.TimeSeriesPoint{
			EntityID:    skuID,
			PeriodStart: period,
			Metrics: map[string]float64{
				"order_count":      orders,
				"total_quantity":   quantity,
				"completed_orders": completed,
			},
		})
	}
	return points, rows.Err()
}

// PickerEvents returns per-picker daily task aggregates since the cutoff.
func (h *PostgresHistory) PickerEvents(ctx context.Context, since time.Time) ([]models.TimeSeriesPoint, error) {
	rows, err := h.db.QueryContext(ctx, pickerEventsQuery, since)
	if err != nil {
		return nil, fmt.Errorf("query picker events: %w", err)
	}
	defer rows.Close()

	var points []models.TimeSeriesPoint
	for rows.Next() {
		var pickerID string
		var period time.Time
		var orders, items, hours, completed, cancelled float64
		if err := rows.Scan(&pickerID, &period, &orders, &items, &hours, &completed, &cancelled); err != nil {
			return nil, fmt.Errorf("scan picker events: %w", err)
		}
		points = append(points, models.TimeSeriesPoint{
			EntityID:    pickerID,
			PeriodStart: period,
			Metrics: map[string]float64{
				"orders_picked":   orders,
				"items_picked":    items,
				"hours_worked":    hours,
				"completed_tasks": completed,
				"cancelled_tasks": cancelled,
			},
		})
	}
	return points, rows.Err()
}

// Close releases the connection pool.
func (h *PostgresHistory) Close() error { return h.db.Close() }
