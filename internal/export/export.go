package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huntswarm/huntswarm/internal/hunter"
)

// ErrUnknownFormat is returned for unsupported export formats.
var ErrUnknownFormat = fmt.Errorf("unknown export format")

// Filters narrows which discovered businesses are exported.
type Filters struct {
	Source   string
	Region   string
	Category string
}

// RecordSource supplies the discovered businesses to serialize. The business
// store itself lives outside the coordination core.
type RecordSource interface {
	Businesses(ctx context.Context, filters Filters) ([]hunter.Record, error)
}

// Export serializes the filtered businesses into the requested format.
func Export(ctx context.Context, src RecordSource, format string, filters Filters) ([]byte, error) {
	records, err := src.Businesses(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load businesses: %w", err)
	}

	switch format {
	case "json":
		return exportJSON(records)
	case "csv":
		return exportCSV(records)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func exportJSON(records []hunter.Record) ([]byte, error) {
	if records == nil {
		records = []hunter.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal businesses: %w", err)
	}
	return data, nil
}

func exportCSV(records []hunter.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"name", "category", "address", "phone", "website", "email", "region", "source", "discovered_at"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.Name,
			r.Category,
			r.Address,
			r.Phone,
			r.Website,
			r.Email,
			r.Region,
			r.Source,
			r.DiscoveredAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return buf.Bytes(), nil
}
