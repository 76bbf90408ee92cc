package falcon

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/falcon-client/pkg/client"
	"github.com/Sternrassler/falcon-client/pkg/pagination"
)

// AlertService fetches alerts. Its operations never return a bare error;
// inspect Result.Success and Result.Err.
type AlertService struct {
	client *client.Client
	opts   Options
	logger zerolog.Logger
}

// NewAlertService creates an alert service on c.
func NewAlertService(c *client.Client, opts Options) *AlertService {
	return &AlertService{
		client: c,
		opts:   opts,
		logger: log.With().Str("component", "alert-service").Logger(),
	}
}

// GetAlertIDs returns the ids of every alert matching filter.
func (s *AlertService) GetAlertIDs(ctx context.Context, filter string) Result[[]string] {
	var rl responseLog
	base := s.client.BaseURL()

	ids, err := pagination.FetchAllCursor(ctx, s.client.RetryConfig(),
		getter(s.client, func(cursor string) string {
			return AlertQueryURL(base, filter, cursor)
		}, &rl),
		ParsePage[string](CursorNextToken),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("filter", filter).Int("partial", len(ids)).Msg("Failed to query alert ids")
		return failed(ids, err, &rl)
	}

	r := succeeded(ids, &rl)
	s.warnAPIErrors(r.APIErrors)
	return r
}

// GetAlertDetails returns the details of ids. An empty id list succeeds
// without a request.
func (s *AlertService) GetAlertDetails(ctx context.Context, ids []string) Result[[]AlertDetail] {
	var rl responseLog
	if len(ids) == 0 {
		return succeeded([]AlertDetail{}, &rl)
	}

	base := s.client.BaseURL()
	details, err := pagination.FetchChunked(ctx, s.opts.chunkConfig(s.client), ids,
		func(ctx context.Context, chunk []string) ([]AlertDetail, error) {
			return fetchEntities[AlertDetail](ctx, s.client, AlertEntitiesURL(base, chunk), &rl)
		})
	if err != nil {
		s.logger.Error().Err(err).Int("ids", len(ids)).Msg("Failed to fetch alert details")
		return failed[[]AlertDetail](nil, err, &rl)
	}

	r := succeeded(details, &rl)
	s.warnAPIErrors(r.APIErrors)
	return r
}

func (s *AlertService) warnAPIErrors(errs []client.APIError) {
	if len(errs) > 0 {
		s.logger.Warn().
			Int("error_count", len(errs)).
			Str("errors", client.FormatAPIErrors(errs)).
			Msg("Alert response carried API errors")
	}
}
