package features

import (
	"fmt"
	"iter"

	"github.com/warestack/wms-predict/internal/models"
)

// FeatureSet names a predefined feature table layout.
type FeatureSet string

const (
	// SetDemand is the per-SKU daily demand feature table.
	SetDemand FeatureSet = "demand"
	// SetPicker is the per-picker daily performance feature table.
	SetPicker FeatureSet = "picker"
)

// Sets lists the feature sets the engine can compute.
func Sets() []FeatureSet { return []FeatureSet{SetDemand, SetPicker} }

// Engine derives feature tables from raw per-entity event history. It is
// pure computation: identical input snapshots always produce identical
// vectors, and every windowed value is scoped to a single entity's series.
type Engine struct {
	granularity Granularity
}

// NewEngine creates an engine bucketing by calendar day.
func NewEngine() *Engine {
	return &Engine{granularity: PeriodDay}
}

// NewEngineWithGranularity creates an engine with an explicit period width.
func NewEngineWithGranularity(g Granularity) *Engine {
	return &Engine{granularity: g}
}

// Vectors returns the lazy feature sequence for a named set. The sequence is
// finite and restartable: ranging over it twice yields the same vectors.
func (e *Engine) Vectors(set FeatureSet, points []models.TimeSeriesPoint) (iter.Seq[models.FeatureVector], error) {
	switch set {
	case SetDemand:
		return e.Demand(points), nil
	case SetPicker:
		return e.Picker(points), nil
	default:
		return nil, fmt.Errorf("unknown feature set %q", set)
	}
}

// Demand computes the per-SKU daily demand features. Input metrics per
// period: order_count, total_quantity, completed_orders.
func (e *Engine) Demand(points []models.TimeSeriesPoint) iter.Seq[models.FeatureVector] {
	grid := BuildGrid(points, e.granularity)
	return func(yield func(models.FeatureVector) bool) {
		for _, s := range grid {
			orders := s.Column("order_count")
			quantity := s.Column("total_quantity")
			completed := s.Column("completed_orders")

			avgOrders := Mean(orders)
			stdOrders := StdDev(orders)
			avgQuantity := Mean(quantity)
			stdQuantity := StdDev(quantity)

			for t, period := range s.Periods {
				vec := models.FeatureVector{
					EntityID: s.EntityID,
					Period:   period,
					Features: []models.Feature{
						{Name: "day_of_week", Value: float64(DayOfWeek(period))},
						{Name: "day_of_month", Value: float64(DayOfMonth(period))},
						{Name: "month", Value: float64(Month(period))},
						{Name: "order_count", Value: orders[t]},
						{Name: "total_quantity", Value: quantity[t]},
						{Name: "completed_orders", Value: completed[t]},
						{Name: "order_count_lag1", Value: LagAt(orders, t, 1, 0)},
						{Name: "order_count_lag7", Value: LagAt(orders, t, 7, 0)},
						{Name: "quantity_lag1", Value: LagAt(quantity, t, 1, 0)},
						{Name: "quantity_lag7", Value: LagAt(quantity, t, 7, 0)},
						{Name: "order_count_ma7", Value: MovingAverageAt(orders, t, 7)},
						{Name: "quantity_ma7", Value: MovingAverageAt(quantity, t, 7)},
						{Name: "avg_daily_orders", Value: avgOrders},
						{Name: "std_daily_orders", Value: stdOrders},
						{Name: "avg_daily_quantity", Value: avgQuantity},
						{Name: "std_daily_quantity", Value: stdQuantity},
					},
				}
				if !yield(vec) {
					return
				}
			}
		}
	}
}

// Picker computes the per-picker daily performance features. Input metrics
// per period: orders_picked, items_picked, hours_worked, completed_tasks,
// cancelled_tasks.
func (e *Engine) Picker(points []models.TimeSeriesPoint) iter.Seq[models.FeatureVector] {
	grid := BuildGrid(points, e.granularity)
	return func(yield func(models.FeatureVector) bool) {
		for _, s := range grid {
			orders := s.Column("orders_picked")
			items := s.Column("items_picked")
			hours := s.Column("hours_worked")
			completed := s.Column("completed_tasks")
			cancelled := s.Column("cancelled_tasks")

			for t, period := range s.Periods {
				vec := models.FeatureVector{
					EntityID: s.EntityID,
					Period:   period,
					Features: []models.Feature{
						{Name: "day_of_week", Value: float64(DayOfWeek(period))},
						{Name: "orders_picked", Value: orders[t]},
						{Name: "items_picked", Value: items[t]},
						{Name: "hours_worked", Value: hours[t]},
						{Name: "orders_per_hour", Value: safeRate(orders[t], hours[t])},
						{Name: "items_per_hour", Value: safeRate(items[t], hours[t])},
						{Name: "cancellation_rate", Value: safeRate(cancelled[t], completed[t])},
						{Name: "orders_lag1", Value: LagAt(orders, t, 1, 0)},
						{Name: "items_lag1", Value: LagAt(items, t, 1, 0)},
						{Name: "orders_ma7", Value: MovingAverageAt(orders, t, 7)},
						{Name: "items_ma7", Value: MovingAverageAt(items, t, 7)},
					},
				}
				if !yield(vec) {
					return
				}
			}
		}
	}
}

func safeRate(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	return numerator / denominator
}
