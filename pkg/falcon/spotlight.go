package falcon

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/falcon-client/pkg/client"
	"github.com/Sternrassler/falcon-client/pkg/pagination"
)

// ErrInvalidQuery is returned for a vulnerability query without AID or filter.
var ErrInvalidQuery = errors.New("invalid query")

// VulnerabilityQuery selects vulnerabilities for GetVulnerabilityDetails.
type VulnerabilityQuery struct {
	// AID scopes the query to one host when Filter is empty.
	AID string

	// Filter is an FQL filter. It takes precedence over AID.
	Filter string

	// Facets adds facet data, usually DefaultFacets.
	Facets []string
}

func (q VulnerabilityQuery) filter() (string, error) {
	switch {
	case q.Filter != "":
		return q.Filter, nil
	case q.AID != "":
		return AIDFilter(q.AID), nil
	default:
		return "", fmt.Errorf("%w: aid or filter required", ErrInvalidQuery)
	}
}

// SpotlightService fetches Spotlight vulnerabilities.
type SpotlightService struct {
	client *client.Client
	logger zerolog.Logger
}

// NewSpotlightService creates a spotlight service on c.
func NewSpotlightService(c *client.Client) *SpotlightService {
	return &SpotlightService{
		client: c,
		logger: log.With().Str("component", "spotlight-service").Logger(),
	}
}

// GetVulnerabilityIDsForHost returns the ids of every vulnerability on aid.
func (s *SpotlightService) GetVulnerabilityIDsForHost(ctx context.Context, aid string) ([]string, error) {
	base := s.client.BaseURL()
	filter := AIDFilter(aid)

	ids, err := pagination.FetchAllCursor(ctx, s.client.RetryConfig(),
		getter(s.client, func(after string) string {
			return VulnerabilityQueryURL(base, filter, after)
		}, nil),
		ParsePage[string](CursorAfter),
	)
	if err != nil {
		return ids, fmt.Errorf("vulnerability ids for %s: %w", aid, err)
	}
	return ids, nil
}

// GetVulnerabilityDetails returns every vulnerability selected by q.
func (s *SpotlightService) GetVulnerabilityDetails(ctx context.Context, q VulnerabilityQuery) ([]Vulnerability, error) {
	filter, err := q.filter()
	if err != nil {
		return nil, err
	}

	base := s.client.BaseURL()
	vulns, err := pagination.FetchAllCursor(ctx, s.client.RetryConfig(),
		getter(s.client, func(after string) string {
			return VulnerabilityCombinedURL(base, filter, q.Facets, after)
		}, nil),
		ParsePage[Vulnerability](CursorAfter),
	)
	if err != nil {
		return vulns, fmt.Errorf("vulnerability details: %w", err)
	}

	s.logger.Debug().
		Str("filter", filter).
		Strs("facets", q.Facets).
		Int("count", len(vulns)).
		Msg("Fetched vulnerabilities")

	return vulns, nil
}
