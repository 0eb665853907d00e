package types

import "time"

// SightingsQueryRequest carries the input parameters for sighting analytics queries.
type SightingsQueryRequest struct {
	Category string
	Start    time.Time
	End      time.Time
}

// TimeSeriesPoint describes a single date/value pair returned by the query service.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// LabelValue represents a top-N entry such as model/capacity.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// SightingsQueryResponse wraps the sighting KPIs for the ops dashboard.
type SightingsQueryResponse struct {
	SightingsSeries []TimeSeriesPoint `json:"sightings"`
	SoldSeries      []TimeSeriesPoint `json:"sold"`
	TopModels       []LabelValue      `json:"top_models"`
	TopCapacities   []LabelValue      `json:"top_capacities"`
	AveragePrice    float64           `json:"average_price"`
	NewSerials      int64             `json:"new_serials"`
	RepeatSerials   int64             `json:"repeat_serials"`
}
