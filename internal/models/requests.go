package models

import "time"

// DurationRequest carries the inputs for an order duration prediction.
type DurationRequest struct {
	OrderID          string  `json:"order_id,omitempty"`
	OrderItemCount   int     `json:"order_item_count"`
	OrderTotalValue  float64 `json:"order_total_value"`
	HourOfDay        int     `json:"hour_of_day"`
	DayOfWeek        int     `json:"day_of_week"`
	IsPeakHour       int     `json:"is_peak_hour"`
	IsWeekend        int     `json:"is_weekend"`
	SKUCount         int     `json:"sku_count"`
	AvgSKUPopularity float64 `json:"avg_sku_popularity"`
	MaxSKUPopularity float64 `json:"max_sku_popularity"`
	ZoneDiversity    int     `json:"zone_diversity"`
	MaxDistanceZone  int     `json:"max_distance_zone"`
	PriorityLevel    int     `json:"priority_level"`
	PickerCount      int     `json:"picker_count"`
}

// Validate checks every field against its declared range and returns a
// ValidationError listing all violations, or nil when the request is valid.
func (r DurationRequest) Validate() error {
	v := &ValidationError{}
	v.Check(r.OrderItemCount >= 1, "order_item_count", "must be >= 1")
	v.Check(r.OrderTotalValue >= 0, "order_total_value", "must be >= 0")
	v.Check(r.HourOfDay >= 0 && r.HourOfDay <= 23, "hour_of_day", "must be in [0,23]")
	v.Check(r.DayOfWeek >= 0 && r.DayOfWeek <= 6, "day_of_week", "must be in [0,6]")
	v.Check(r.IsPeakHour == 0 || r.IsPeakHour == 1, "is_peak_hour", "must be 0 or 1")
	v.Check(r.IsWeekend == 0 || r.IsWeekend == 1, "is_weekend", "must be 0 or 1")
	v.Check(r.SKUCount >= 1, "sku_count", "must be >= 1")
	v.Check(r.AvgSKUPopularity >= 0, "avg_sku_popularity", "must be >= 0")
	v.Check(r.MaxSKUPopularity >= 0, "max_sku_popularity", "must be >= 0")
	v.Check(r.ZoneDiversity >= 1, "zone_diversity", "must be >= 1")
	v.Check(r.MaxDistanceZone >= 1 && r.MaxDistanceZone <= 5, "max_distance_zone", "must be in [1,5]")
	v.Check(r.PriorityLevel >= 1 && r.PriorityLevel <= 4, "priority_level", "must be in [1,4]")
	v.Check(r.PickerCount >= 0, "picker_count", "must be >= 0")
	if v.Empty() {
		return nil
	}
	return v
}

// Fields exposes the request as a name->value mapping used by featurize to
// assemble a vector in the order dictated by the active model's schema.
func (r DurationRequest) Fields() map[string]float64 {
	return map[string]float64{
		"order_item_count":   float64(r.OrderItemCount),
		"order_total_value":  r.OrderTotalValue,
		"hour_of_day":        float64(r.HourOfDay),
		"day_of_week":        float64(r.DayOfWeek),
		"is_peak_hour":       float64(r.IsPeakHour),
		"is_weekend":         float64(r.IsWeekend),
		"sku_count":          float64(r.SKUCount),
		"avg_sku_popularity": r.AvgSKUPopularity,
		"max_sku_popularity": r.MaxSKUPopularity,
		"zone_diversity":     float64(r.ZoneDiversity),
		"max_distance_zone":  float64(r.MaxDistanceZone),
		"priority_level":     float64(r.PriorityLevel),
		"picker_count":       float64(r.PickerCount),
	}
}

// DemandRequest carries the inputs for a SKU demand forecast.
type DemandRequest struct {
	SKUID               string `json:"sku_id"`
	ForecastHorizonDays int    `json:"forecast_horizon_days"`
}

// Validate checks the demand request fields, collecting all violations.
func (r DemandRequest) Validate() error {
	v := &ValidationError{}
	v.Check(r.SKUID != "", "sku_id", "must not be empty")
	v.Check(r.ForecastHorizonDays >= 1 && r.ForecastHorizonDays <= 365, "forecast_horizon_days", "must be in [1,365]")
	if v.Empty() {
		return nil
	}
	return v
}

// DurationPrediction is the named output of a duration prediction.
type DurationPrediction struct {
	DurationMinutes float64 `json:"duration_minutes"`
	DurationHours   float64 `json:"duration_hours"`
}

// ForecastPoint is a single day of a demand forecast.
type ForecastPoint struct {
	Day              int     `json:"day"`
	ForecastDate     string  `json:"forecast_date"`
	ForecastQuantity float64 `json:"forecast_quantity"`
}

// DemandPrediction is the named output of a demand forecast.
type DemandPrediction struct {
	SKUID               string          `json:"sku_id"`
	ForecastHorizonDays int             `json:"forecast_horizon_days"`
	Forecasts           []ForecastPoint `json:"forecasts"`
}

// PredictionResponse is the common response envelope for prediction calls.
type PredictionResponse struct {
	PredictionID string         `json:"prediction_id"`
	ModelVersion string         `json:"model_version"`
	Prediction   any            `json:"prediction"`
	Confidence   *float64       `json:"confidence,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ModelStatus reports whether an artifact is loaded for a model type.
type ModelStatus struct {
	Type      string `json:"type"`
	Loaded    bool   `json:"loaded"`
	Algorithm string `json:"algorithm,omitempty"`
	Version   string `json:"version,omitempty"`
}

// PredictionRecord is the append-only audit row written after a prediction.
// Input features and outputs are snapshots taken at prediction time and are
// never updated afterwards.
type PredictionRecord struct {
	PredictionID  string
	ModelType     string
	ModelVersion  string
	EntityType    string
	EntityID      string
	InputFeatures map[string]float64
	Output        map[string]float64
	Confidence    float64
	CreatedAt     time.Time
}
