package export

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huntswarm/huntswarm/internal/hunter"
)

type staticSource struct {
	records []hunter.Record
}

func (s *staticSource) Businesses(ctx context.Context, filters Filters) ([]hunter.Record, error) {
	return s.records, nil
}

func sampleRecords() []hunter.Record {
	return []hunter.Record{
		{
			Name:         "Acme Supplies",
			Category:     "wholesale",
			Address:      "12 Commerce St, Springfield",
			Phone:        "+1-555-0000001",
			Website:      "https://acme.example.com",
			Email:        "contact@acme.example.com",
			Region:       "springfield",
			Source:       "google_maps",
			DiscoveredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			Name:     "Beta Logistics",
			Category: "logistics",
			Source:   "yellow_pages",
		},
	}
}

func TestExport_JSON(t *testing.T) {
	src := &staticSource{records: sampleRecords()}

	data, err := Export(context.Background(), src, "json", Filters{})
	require.NoError(t, err)

	var decoded []hunter.Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "Acme Supplies", decoded[0].Name)
	assert.Equal(t, "yellow_pages", decoded[1].Source)
}

func TestExport_JSONEmpty(t *testing.T) {
	src := &staticSource{}

	data, err := Export(context.Background(), src, "json", Filters{})
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestExport_CSV(t *testing.T) {
	src := &staticSource{records: sampleRecords()}

	data, err := Export(context.Background(), src, "csv", Filters{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,category,address,phone,website,email,region,source,discovered_at", lines[0])
	assert.Contains(t, lines[1], "Acme Supplies")
	assert.Contains(t, lines[2], "Beta Logistics")
}

func TestExport_UnknownFormat(t *testing.T) {
	src := &staticSource{records: sampleRecords()}

	_, err := Export(context.Background(), src, "xml", Filters{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
