package models

import "time"

// TimeSeriesPoint is one observed period for an entity. Metrics maps metric
// names to the value accumulated during the period. Points are immutable once
// produced by an extraction run.
type TimeSeriesPoint struct {
	EntityID    string
	PeriodStart time.Time
	Metrics     map[string]float64
}

// Feature is a single named value inside a FeatureVector.
type Feature struct {
	Name  string
	Value float64
}

// FeatureVector is an ordered sequence of features for one entity/period.
// Order is significant: it must match the schema of the model the vector is
// intended for.
type FeatureVector struct {
	EntityID string
	Period   time.Time
	Features []Feature
}

// Values returns the feature values in schema order.
func (v FeatureVector) Values() []float64 {
	out := make([]float64, len(v.Features))
	for i, f := range v.Features {
		out[i] = f.Value
	}
	return out
}

// Names returns the feature names in schema order.
func (v FeatureVector) Names() []string {
	out := make([]string, len(v.Features))
	for i, f := range v.Features {
		out[i] = f.Name
	}
	return out
}
