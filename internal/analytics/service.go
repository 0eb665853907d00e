package analytics

import (
	"context"
	"fmt"

	"github.com/Luis3c4/IMEI/internal/analytics/query"
	"github.com/Luis3c4/IMEI/internal/analytics/types"
	"github.com/Luis3c4/IMEI/pkg/bigquery"
)

// Service provides sighting reports based on device pipeline events.
type Service interface {
	// Query returns sighting KPIs for the provided request.
	Query(ctx context.Context, req types.SightingsQueryRequest) (*types.SightingsQueryResponse, error)
}

type service struct {
	sightings query.SightingsService
}

// NewService builds an analytics service backed by BigQuery.
func NewService(client *bigquery.Client, project, dataset, table string) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}

	sightings, err := query.NewSightingsService(client, project, dataset, table)
	if err != nil {
		return nil, err
	}

	return &service{sightings: sightings}, nil
}

func (s *service) Query(ctx context.Context, req types.SightingsQueryRequest) (*types.SightingsQueryResponse, error) {
	return s.sightings.Query(ctx, req)
}
