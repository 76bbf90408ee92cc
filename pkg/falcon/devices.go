package falcon

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/falcon-client/pkg/cache"
	"github.com/Sternrassler/falcon-client/pkg/client"
	"github.com/Sternrassler/falcon-client/pkg/pagination"
)

// Page sizes of the device query endpoint.
const (
	DeviceListPageSize     = 500
	DeviceHostnamePageSize = 100
)

// Cache key components of device details.
const (
	deviceCacheResource = "device"
	deviceCacheVariant  = "v2"
)

// ErrNotFound is returned when a single record lookup yields nothing.
var ErrNotFound = errors.New("not found")

// DeviceService fetches hosts.
type DeviceService struct {
	client *client.Client
	opts   Options
	logger zerolog.Logger
}

// NewDeviceService creates a device service on c.
func NewDeviceService(c *client.Client, opts Options) *DeviceService {
	return &DeviceService{
		client: c,
		opts:   opts,
		logger: log.With().Str("component", "device-service").Logger(),
	}
}

// ListDeviceIDs returns every device id matching filter (empty for all),
// most recently seen first.
func (s *DeviceService) ListDeviceIDs(ctx context.Context, filter string) ([]string, error) {
	base := s.client.BaseURL()
	ids, err := pagination.FetchAllOffset(ctx,
		pagination.OffsetConfig{
			PageSize:    DeviceListPageSize,
			Termination: pagination.UntilTotal,
			Retry:       s.client.RetryConfig(),
		},
		getter(s.client, func(offset int) string {
			return DeviceQueryURL(base, filter, DeviceListPageSize, offset, defaultDeviceSort)
		}, nil),
		ParseOffsetPage[string](),
	)
	if err != nil {
		return ids, fmt.Errorf("list device ids: %w", err)
	}

	s.logger.Debug().Int("count", len(ids)).Str("filter", filter).Msg("Listed device ids")
	return ids, nil
}

// GetDeviceIDsByHostname returns the ids of hosts named hostname. The
// endpoint does not report a reliable total for hostname filters, so paging
// stops at the first short page.
func (s *DeviceService) GetDeviceIDsByHostname(ctx context.Context, hostname string) ([]string, error) {
	base := s.client.BaseURL()
	filter := HostnameFilter(hostname)
	ids, err := pagination.FetchAllOffset(ctx,
		pagination.OffsetConfig{
			PageSize:    DeviceHostnamePageSize,
			Termination: pagination.UntilShortPage,
			Retry:       s.client.RetryConfig(),
		},
		getter(s.client, func(offset int) string {
			return DeviceQueryURL(base, filter, DeviceHostnamePageSize, offset, "")
		}, nil),
		ParseOffsetPage[string](),
	)
	if err != nil {
		return ids, fmt.Errorf("device ids for hostname %q: %w", hostname, err)
	}
	return ids, nil
}

// GetDeviceDetails returns the details of ids. With a cache, hits are served
// from Redis, only misses are requested and results follow the order of ids.
// Ids unknown to the API are absent from the result.
func (s *DeviceService) GetDeviceDetails(ctx context.Context, ids []string) ([]DeviceDetail, error) {
	if len(ids) == 0 {
		return []DeviceDetail{}, nil
	}

	store := s.client.Cache()
	hits := s.cachedDetails(ctx, store, ids)

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := hits[id]; !ok {
			missing = append(missing, id)
		}
	}

	base := s.client.BaseURL()
	fetched, err := pagination.FetchChunked(ctx, s.opts.chunkConfig(s.client), missing,
		func(ctx context.Context, chunk []string) ([]DeviceDetail, error) {
			return fetchEntities[DeviceDetail](ctx, s.client, DeviceEntitiesURL(base, chunk), nil)
		})
	if err != nil {
		return nil, fmt.Errorf("get device details: %w", err)
	}

	if store == nil {
		return fetched, nil
	}
	s.storeDetails(ctx, store, fetched)

	for _, d := range fetched {
		hits[d.DeviceID] = d
	}
	details := make([]DeviceDetail, 0, len(ids))
	for _, id := range ids {
		if d, ok := hits[id]; ok {
			details = append(details, d)
		}
	}

	s.logger.Debug().
		Int("requested", len(ids)).
		Int("cache_hits", len(ids)-len(missing)).
		Int("returned", len(details)).
		Msg("Fetched device details")

	return details, nil
}

// GetDeviceDetail returns the details of one host. With a cache, the single
// record is read and written under the same key GetDeviceDetails uses.
func (s *DeviceService) GetDeviceDetail(ctx context.Context, aid string) (*DeviceDetail, error) {
	store := s.client.Cache()
	if d, ok := s.cachedDetail(ctx, store, aid); ok {
		return d, nil
	}

	base := s.client.BaseURL()
	details, err := pagination.FetchChunked(ctx, s.opts.chunkConfig(s.client), []string{aid},
		func(ctx context.Context, chunk []string) ([]DeviceDetail, error) {
			return fetchEntities[DeviceDetail](ctx, s.client, DeviceEntitiesURL(base, chunk), nil)
		})
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", aid, err)
	}
	if len(details) == 0 {
		return nil, fmt.Errorf("device %s: %w", aid, ErrNotFound)
	}
	d := &details[0]

	if store != nil {
		entry, err := cache.NewEntry(d, s.client.CacheTTL())
		if err == nil {
			err = store.Set(ctx, deviceKey(d.DeviceID), entry)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("device_id", aid).Msg("Device cache write failed")
		}
	}
	return d, nil
}

// GetAllServerDevices returns every host that is a server or domain
// controller.
func (s *DeviceService) GetAllServerDevices(ctx context.Context) ([]DeviceDetail, error) {
	ids, err := s.ListDeviceIDs(ctx, "")
	if err != nil {
		return nil, err
	}

	details, err := s.GetDeviceDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	servers := make([]DeviceDetail, 0, len(details))
	for _, d := range details {
		if d.IsServer() {
			servers = append(servers, d)
		}
	}

	s.logger.Info().
		Int("devices", len(details)).
		Int("servers", len(servers)).
		Msg("Collected server devices")

	return servers, nil
}

func deviceKey(id string) cache.CacheKey {
	return cache.CacheKey{Resource: deviceCacheResource, ID: id, Variant: deviceCacheVariant}
}

func (s *DeviceService) cachedDetail(ctx context.Context, store *cache.Manager, aid string) (*DeviceDetail, bool) {
	if store == nil {
		return nil, false
	}

	entry, err := store.Get(ctx, deviceKey(aid))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("device_id", aid).Msg("Device cache lookup failed")
		}
		return nil, false
	}

	var d DeviceDetail
	if err := entry.Decode(&d); err != nil {
		s.logger.Debug().Err(err).Str("device_id", aid).Msg("Ignoring undecodable cache entry")
		return nil, false
	}
	return &d, true
}

// cachedDetails returns the cache hits for ids. Cache failures are logged and
// treated as misses.
func (s *DeviceService) cachedDetails(ctx context.Context, store *cache.Manager, ids []string) map[string]DeviceDetail {
	hits := make(map[string]DeviceDetail)
	if store == nil {
		return hits
	}

	keys := make([]cache.CacheKey, len(ids))
	for i, id := range ids {
		keys[i] = deviceKey(id)
	}

	entries, err := store.GetMany(ctx, keys)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Device cache lookup failed")
		return hits
	}

	for id, entry := range entries {
		var d DeviceDetail
		if err := entry.Decode(&d); err != nil {
			s.logger.Debug().Err(err).Str("device_id", id).Msg("Ignoring undecodable cache entry")
			continue
		}
		hits[id] = d
	}
	return hits
}

func (s *DeviceService) storeDetails(ctx context.Context, store *cache.Manager, details []DeviceDetail) {
	if len(details) == 0 {
		return
	}

	ttl := s.client.CacheTTL()
	entries := make(map[cache.CacheKey]*cache.Entry, len(details))
	for _, d := range details {
		entry, err := cache.NewEntry(d, ttl)
		if err != nil {
			s.logger.Warn().Err(err).Str("device_id", d.DeviceID).Msg("Failed to encode device for cache")
			continue
		}
		entries[deviceKey(d.DeviceID)] = entry
	}

	if err := store.SetMany(ctx, entries); err != nil {
		s.logger.Warn().Err(err).Int("count", len(entries)).Msg("Device cache write failed")
	}
}
