package bigquery

import (
	"context"
	"testing"

	"github.com/Luis3c4/IMEI/pkg/config"
)

func TestConfiguredTables(t *testing.T) {
	tables := configuredTables(config.BigQueryConfig{SightingsTable: " device_sightings "})
	if len(tables) != 1 || tables[0] != "device_sightings" {
		t.Fatalf("expected trimmed sightings table, got %v", tables)
	}

	if tables := configuredTables(config.BigQueryConfig{SightingsTable: "  "}); len(tables) != 0 {
		t.Fatalf("expected no tables for blank config, got %v", tables)
	}
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name string
		gcp  config.GCPConfig
		want int
	}{
		{
			name: "json credentials win over file",
			gcp: config.GCPConfig{
				CredentialsJSON:        `{"dummy": "value"}`,
				ApplicationCredentials: "/tmp/creds",
			},
			want: 1,
		},
		{
			name: "credentials file alone",
			gcp:  config.GCPConfig{ApplicationCredentials: "/tmp/creds"},
			want: 1,
		},
		{
			name: "ambient credentials",
			gcp:  config.GCPConfig{},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(clientOptions(tt.gcp)); got != tt.want {
				t.Fatalf("expected %d options, got %d", tt.want, got)
			}
		})
	}
}

func TestNilClientGuards(t *testing.T) {
	ctx := context.Background()

	var c *Client
	if err := c.Ping(ctx); err == nil {
		t.Fatal("expected error pinging nil client")
	}
	if err := c.InsertRows(ctx, "device_sightings", []any{struct{}{}}); err == nil {
		t.Fatal("expected error inserting with nil client")
	}
	if _, err := c.Query(ctx, "SELECT 1", nil); err == nil {
		t.Fatal("expected error querying nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("expected nil close to be a no-op, got %v", err)
	}
}
