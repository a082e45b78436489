package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huntswarm/huntswarm/internal/export"
	"github.com/huntswarm/huntswarm/internal/hunter"
)

func seedBusinesses(t *testing.T, s *MemoryBusinessStore) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.SaveBusinesses(context.Background(), []hunter.Record{
		{Name: "Acme Supplies", Category: "wholesale", Region: "berlin", Source: "google_maps", DiscoveredAt: now},
		{Name: "Beta Logistics", Category: "logistics", Region: "hamburg", Source: "google_maps", DiscoveredAt: now},
		{Name: "Gamma Foods", Category: "food service", Region: "berlin", Source: "yellow_pages", DiscoveredAt: now},
	}))
}

func TestMemoryBusinessStore_SaveAndList(t *testing.T) {
	s := NewMemoryBusinessStore()
	seedBusinesses(t, s)

	assert.Equal(t, 3, s.Count())

	records, err := s.Businesses(context.Background(), export.Filters{})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestMemoryBusinessStore_Filters(t *testing.T) {
	s := NewMemoryBusinessStore()
	seedBusinesses(t, s)

	tests := []struct {
		name    string
		filters export.Filters
		want    []string
	}{
		{
			name:    "by source",
			filters: export.Filters{Source: "google_maps"},
			want:    []string{"Acme Supplies", "Beta Logistics"},
		},
		{
			name:    "by region",
			filters: export.Filters{Region: "berlin"},
			want:    []string{"Acme Supplies", "Gamma Foods"},
		},
		{
			name:    "by category",
			filters: export.Filters{Category: "logistics"},
			want:    []string{"Beta Logistics"},
		},
		{
			name:    "combined",
			filters: export.Filters{Source: "google_maps", Region: "berlin"},
			want:    []string{"Acme Supplies"},
		},
		{
			name:    "no match",
			filters: export.Filters{Source: "linkedin"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := s.Businesses(context.Background(), tt.filters)
			require.NoError(t, err)

			names := make([]string, 0, len(records))
			for _, r := range records {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
