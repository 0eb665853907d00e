package router

import (
	"context"

	"github.com/Luis3c4/IMEI/internal/analytics/types"
)

type fakeWriter struct {
	inserted []types.DeviceSightingRow
}

func (f *fakeWriter) InsertSighting(_ context.Context, row types.DeviceSightingRow) error {
	f.inserted = append(f.inserted, row)
	return nil
}
