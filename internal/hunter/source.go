package hunter

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// AgentType identifies the kind of external source a worker pulls from.
type AgentType string

const (
	TypeGoogleMaps    AgentType = "google_maps"
	TypeYellowPages   AgentType = "yellow_pages"
	TypeLinkedIn      AgentType = "linkedin"
	TypeTradeRegistry AgentType = "trade_registry"
)

// Query describes one hunt: which source to contact and how many records to
// pull. Proxy is filled in by the agent when proxy rotation is configured.
type Query struct {
	Source string `json:"source"`
	Region string `json:"region,omitempty"`
	Limit  int    `json:"limit"`
	Proxy  string `json:"proxy,omitempty"`
}

// Record is a single discovered business.
type Record struct {
	Name         string    `json:"name" db:"name"`
	Category     string    `json:"category" db:"category"`
	Address      string    `json:"address" db:"address"`
	Phone        string    `json:"phone" db:"phone"`
	Website      string    `json:"website" db:"website"`
	Email        string    `json:"email" db:"email"`
	Region       string    `json:"region,omitempty" db:"region"`
	Source       string    `json:"source" db:"source"`
	DiscoveredAt time.Time `json:"discovered_at" db:"discovered_at"`
}

// Source is the capability an agent composes its resilience layers around.
// Implementations perform the actual per-source discovery.
type Source interface {
	Type() AgentType
	Hunt(ctx context.Context, query Query) ([]Record, error)
}

// placeholderSource generates synthetic records in place of real per-source
// scraping, which lives outside this module.
type placeholderSource struct {
	typ AgentType
}

// NewPlaceholderSource creates a Source that fabricates records for typ.
func NewPlaceholderSource(typ AgentType) Source {
	return &placeholderSource{typ: typ}
}

func (s *placeholderSource) Type() AgentType {
	return s.typ
}

var placeholderCategories = []string{
	"manufacturing", "wholesale", "logistics", "construction",
	"food service", "professional services",
}

func (s *placeholderSource) Hunt(ctx context.Context, query Query) ([]Record, error) {
	if query.Limit <= 0 {
		return nil, NewPermanentError(fmt.Errorf("invalid limit %d", query.Limit))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	records := make([]Record, 0, query.Limit)
	now := time.Now()
	for i := 0; i < query.Limit; i++ {
		n := rand.Intn(1_000_000)
		records = append(records, Record{
			Name:         fmt.Sprintf("%s Business %06d", s.typ, n),
			Category:     placeholderCategories[rand.Intn(len(placeholderCategories))],
			Address:      fmt.Sprintf("%d Commerce St, %s", rand.Intn(9000)+100, query.Region),
			Phone:        fmt.Sprintf("+1-555-%07d", n),
			Website:      fmt.Sprintf("https://business-%06d.example.com", n),
			Email:        fmt.Sprintf("contact@business-%06d.example.com", n),
			Region:       query.Region,
			Source:       query.Source,
			DiscoveredAt: now,
		})
	}

	return records, nil
}
