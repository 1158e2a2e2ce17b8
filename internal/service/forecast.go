package service

import (
	"math"
	"time"

	"github.com/warestack/wms-predict/internal/features"
	"github.com/warestack/wms-predict/internal/models"
)

// forecastWindow is how many trailing days of demand feed the forecast.
const forecastWindow = 7

// forecastDemand projects daily demand over the horizon using a trailing
// average plus a linear trend. The trend is the average daily change across
// the last forecastWindow observations and is zero when fewer are known.
// Projected quantities are clamped at zero.
func forecastDemand(history []float64, horizon int, from time.Time) []models.ForecastPoint {
	avg := features.Mean(history)

	trend := 0.0
	if len(history) >= forecastWindow {
		trend = (history[len(history)-1] - history[len(history)-forecastWindow]) / forecastWindow
	}

	points := make([]models.ForecastPoint, 0, horizon)
	for day := 1; day <= horizon; day++ {
		quantity := avg + trend*float64(day)
		if quantity < 0 {
			quantity = 0
		}
		points = append(points, models.ForecastPoint{
			Day:              day,
			ForecastDate:     from.AddDate(0, 0, day).UTC().Format("2006-01-02"),
			ForecastQuantity: round2(quantity),
		})
	}
	return points
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
