package query

import (
	"context"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/Luis3c4/IMEI/internal/analytics/types"
	"github.com/Luis3c4/IMEI/pkg/bigquery"
	pkgerrors "github.com/Luis3c4/IMEI/pkg/errors"
)

const (
	categoryClause = "(@category = '' OR category = @category)"

	timeSeriesSightingsSQL = `
SELECT
  FORMAT_DATE('%%F', DATE_TRUNC(occurred_at, DAY)) AS day,
  COUNTIF(event_type = 'device_reconciled') AS value
FROM %s
WHERE %s
  AND event_type = 'device_reconciled'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	timeSeriesSoldSQL = `
SELECT
  FORMAT_DATE('%%F', DATE_TRUNC(occurred_at, DAY)) AS day,
  COUNTIF(status = 'sold') AS value
FROM %s
WHERE %s
  AND event_type = 'item_status_changed'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	topModelsSQL = `
SELECT product_name AS label, COUNT(*) AS value
FROM %s
WHERE %s
  AND product_name IS NOT NULL
  AND event_type = 'device_reconciled'
  AND occurred_at BETWEEN @start AND @end
GROUP BY product_name
ORDER BY value DESC
LIMIT 5
`

	topCapacitiesSQL = `
SELECT capacity AS label, COUNT(*) AS value
FROM %s
WHERE %s
  AND capacity IS NOT NULL
  AND event_type = 'device_reconciled'
  AND occurred_at BETWEEN @start AND @end
GROUP BY capacity
ORDER BY value DESC
LIMIT 5
`

	averagePriceSQL = `
SELECT SAFE_DIVIDE(SUM(COALESCE(price_cents, 0)), NULLIF(COUNT(price_cents), 0) * 100) AS value
FROM %s
WHERE %s
  AND event_type = 'device_reconciled'
  AND price_cents IS NOT NULL
  AND occurred_at BETWEEN @start AND @end
`

	newRepeatSQL = `
WITH prior_serials AS (
  SELECT DISTINCT serial_number
  FROM %s
  WHERE %s
    AND event_type = 'device_reconciled'
    AND occurred_at < @start
),
current_serials AS (
  SELECT DISTINCT serial_number,
    CASE
      WHEN serial_number IN (SELECT serial_number FROM prior_serials) THEN 'repeat'
      ELSE 'new'
    END AS category
  FROM %s
  WHERE %s
    AND event_type = 'device_reconciled'
    AND occurred_at BETWEEN @start AND @end
)
SELECT
  COUNTIF(category = 'new') AS new_serials,
  COUNTIF(category = 'repeat') AS repeat_serials
FROM current_serials
`
)

// SightingsService provides dashboard data from BigQuery device_sightings.
type SightingsService interface {
	Query(ctx context.Context, req types.SightingsQueryRequest) (*types.SightingsQueryResponse, error)
}

type sightingsService struct {
	client   *bigquery.Client
	tableRef string
}

// NewSightingsService builds a service backed by BigQuery.
func NewSightingsService(client *bigquery.Client, project, dataset, table string) (SightingsService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if project == "" || dataset == "" || table == "" {
		return nil, fmt.Errorf("project, dataset, and table are required")
	}
	return &sightingsService{
		client:   client,
		tableRef: fmt.Sprintf("`%s.%s.%s`", project, dataset, table),
	}, nil
}

func (s *sightingsService) Query(ctx context.Context, req types.SightingsQueryRequest) (*types.SightingsQueryResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	params := s.baseParams(req)

	sightings, err := s.querySeries(ctx, fmt.Sprintf(timeSeriesSightingsSQL, s.tableRef, categoryClause), params)
	if err != nil {
		return nil, err
	}
	sold, err := s.querySeries(ctx, fmt.Sprintf(timeSeriesSoldSQL, s.tableRef, categoryClause), params)
	if err != nil {
		return nil, err
	}

	topModels, err := s.queryTopLabels(ctx, fmt.Sprintf(topModelsSQL, s.tableRef, categoryClause), params)
	if err != nil {
		return nil, err
	}
	topCapacities, err := s.queryTopLabels(ctx, fmt.Sprintf(topCapacitiesSQL, s.tableRef, categoryClause), params)
	if err != nil {
		return nil, err
	}

	averagePrice, err := s.queryAveragePrice(ctx, fmt.Sprintf(averagePriceSQL, s.tableRef, categoryClause), params)
	if err != nil {
		return nil, err
	}

	newSerials, repeatSerials, err := s.queryNewRepeat(ctx, fmt.Sprintf(newRepeatSQL, s.tableRef, categoryClause, s.tableRef, categoryClause), params)
	if err != nil {
		return nil, err
	}

	return &types.SightingsQueryResponse{
		SightingsSeries: sightings,
		SoldSeries:      sold,
		TopModels:       topModels,
		TopCapacities:   topCapacities,
		AveragePrice:    averagePrice,
		NewSerials:      newSerials,
		RepeatSerials:   repeatSerials,
	}, nil
}

func validateRequest(req types.SightingsQueryRequest) error {
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	return nil
}

func (s *sightingsService) baseParams(req types.SightingsQueryRequest) []cloudbigquery.QueryParameter {
	return []cloudbigquery.QueryParameter{
		{Name: "category", Value: req.Category},
		{Name: "start", Value: req.Start},
		{Name: "end", Value: req.End},
	}
}

func (s *sightingsService) querySeries(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.TimeSeriesPoint, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}

	var points []types.TimeSeriesPoint
	for {
		var row struct {
			Day   string `bigquery:"day"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading series row: %w", err)
		}
		points = append(points, types.TimeSeriesPoint{Date: row.Day, Value: row.Value})
	}
	return points, nil
}

func (s *sightingsService) queryTopLabels(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.LabelValue, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query top labels: %w", err)
	}

	var result []types.LabelValue
	for {
		var row struct {
			Label string `bigquery:"label"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading top label row: %w", err)
		}
		result = append(result, types.LabelValue{Label: row.Label, Value: row.Value})
	}
	return result, nil
}

func (s *sightingsService) queryAveragePrice(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (float64, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return 0, fmt.Errorf("query average price: %w", err)
	}
	var row struct {
		Value cloudbigquery.NullFloat64 `bigquery:"value"`
	}
	if err := iter.Next(&row); err != nil {
		if err == iterator.Done {
			return 0, nil
		}
		return 0, fmt.Errorf("reading average price row: %w", err)
	}
	if !row.Value.Valid {
		return 0, nil
	}
	return row.Value.Float64, nil
}

func (s *sightingsService) queryNewRepeat(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (int64, int64, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return 0, 0, fmt.Errorf("query new vs repeat: %w", err)
	}
	var row struct {
		NewSerials    int64 `bigquery:"new_serials"`
		RepeatSerials int64 `bigquery:"repeat_serials"`
	}
	if err := iter.Next(&row); err != nil {
		if err == iterator.Done {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("reading new vs repeat row: %w", err)
	}
	return row.NewSerials, row.RepeatSerials, nil
}
