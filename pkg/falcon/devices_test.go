package falcon

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/falcon-client/internal/testutil"
	"github.com/Sternrassler/falcon-client/pkg/client"
	"github.com/Sternrassler/falcon-client/pkg/retry"
)

func TestDeviceService_ListDeviceIDs(t *testing.T) {
	mock := newMock(t)
	all := ids("dev", 1200)
	mock.ServeOffsetPages(DeviceQueryPath, anys(all), true)

	svc := NewDeviceService(newTestClient(t, mock, nil), DefaultOptions())
	got, err := svc.ListDeviceIDs(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, all, got)
	assert.Equal(t, 3, mock.RequestCount(DeviceQueryPath))
}

func TestDeviceService_ListDeviceIDs_SendsSortAndLimit(t *testing.T) {
	mock := newMock(t)
	var query string
	mock.SetHandler(DeviceQueryPath, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"resources":["a"],"meta":{"pagination":{"total":1}}}`))
	})

	svc := NewDeviceService(newTestClient(t, mock, nil), DefaultOptions())
	got, err := svc.ListDeviceIDs(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, "limit=500&offset=0&sort=last_seen.desc", query)
}

func TestDeviceService_GetDeviceIDsByHostname(t *testing.T) {
	t.Run("stops at short page", func(t *testing.T) {
		mock := newMock(t)
		all := ids("dev", 150)
		mock.ServeOffsetPages(DeviceQueryPath, anys(all), false)

		svc := NewDeviceService(newTestClient(t, mock, nil), DefaultOptions())
		got, err := svc.GetDeviceIDsByHostname(context.Background(), "web-01")

		require.NoError(t, err)
		assert.Equal(t, all, got)
		assert.Equal(t, 2, mock.RequestCount(DeviceQueryPath))
	})

	t.Run("sends hostname filter", func(t *testing.T) {
		mock := newMock(t)
		var filter string
		mock.SetHandler(DeviceQueryPath, func(w http.ResponseWriter, r *http.Request) {
			filter = r.URL.Query().Get("filter")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"resources":["dev-1"]}`))
		})

		svc := NewDeviceService(newTestClient(t, mock, nil), DefaultOptions())
		got, err := svc.GetDeviceIDsByHostname(context.Background(), "web-01")

		require.NoError(t, err)
		assert.Equal(t, []string{"dev-1"}, got)
		assert.Equal(t, "hostname:'web-01'", filter)
	})
}

func TestDeviceService_GetDeviceDetails_Chunks(t *testing.T) {
	mock := newMock(t)
	mock.ServeEntities(DeviceEntitiesPath, deviceLookup())

	requested := ids("dev", 250)
	svc := NewDeviceService(newTestClient(t, mock, nil), DefaultOptions())
	got, err := svc.GetDeviceDetails(context.Background(), requested)

	require.NoError(t, err)
	require.Len(t, got, 250)
	for i, d := range got {
		assert.Equal(t, requested[i], d.DeviceID)
	}
	assert.Equal(t, []int{100, 100, 50}, mock.EntityRequestSizes(DeviceEntitiesPath))
}

func TestDeviceService_GetDeviceDetails_Parallel(t *testing.T) {
	mock := newMock(t)
	mock.ServeEntities(DeviceEntitiesPath, deviceLookup())

	requested := ids("dev", 450)
	svc := NewDeviceService(newTestClient(t, mock, nil), Options{ChunkSize: 100, MaxConcurrency: 3})
	got, err := svc.GetDeviceDetails(context.Background(), requested)

	require.NoError(t, err)
	require.Len(t, got, 450)
	for i, d := range got {
		assert.Equal(t, requested[i], d.DeviceID)
	}
	assert.Len(t, mock.EntityRequestSizes(DeviceEntitiesPath), 5)
}

func TestDeviceService_GetDeviceDetails_Empty(t *testing.T) {
	mock := newMock(t)
	svc := NewDeviceService(newTestClient(t, mock, nil), DefaultOptions())

	got, err := svc.GetDeviceDetails(context.Background(), nil)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, mock.TokenRequestCount())
}

func TestDeviceService_GetDeviceDetails_Failure(t *testing.T) {
	mock := newMock(t)
	mock.SetResponse(DeviceEntitiesPath, testutil.MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors":[{"code":500,"message":"boom"}]}`,
	})

	svc := NewDeviceService(newTestClient(t, mock, nil), DefaultOptions())
	got, err := svc.GetDeviceDetails(context.Background(), ids("dev", 5))

	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, client.ErrTransportFailure)
	assert.ErrorIs(t, err, retry.ErrRetryExhausted)
	assert.Equal(t, http.StatusInternalServerError, client.StatusCodeOf(err))
	assert.Equal(t, 3, mock.RequestCount(DeviceEntitiesPath))
}

func TestDeviceService_GetDeviceDetail(t *testing.T) {
	mock := newMock(t)
	mock.ServeEntities(DeviceEntitiesPath, deviceLookup("gone"))
	svc := NewDeviceService(newTestClient(t, mock, nil), DefaultOptions())

	d, err := svc.GetDeviceDetail(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "host-dev-1", d.Hostname)

	_, err = svc.GetDeviceDetail(context.Background(), "gone")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeviceService_GetAllServerDevices(t *testing.T) {
	mock := newMock(t)
	mock.ServeOffsetPages(DeviceQueryPath, anys([]string{"ws", "srv", "dc", "desc"}), true)
	devices := map[string]map[string]any{
		"ws":   {"device_id": "ws", "product_type": "1", "product_type_desc": "Workstation"},
		"srv":  {"device_id": "srv", "product_type": "2"},
		"dc":   {"device_id": "dc", "product_type": "3"},
		"desc": {"device_id": "desc", "product_type_desc": " server "},
	}
	mock.ServeEntities(DeviceEntitiesPath, func(id string) any { return devices[id] })

	svc := NewDeviceService(newTestClient(t, mock, nil), DefaultOptions())
	got, err := svc.GetAllServerDevices(context.Background())

	require.NoError(t, err)
	var names []string
	for _, d := range got {
		names = append(names, d.DeviceID)
	}
	assert.Equal(t, []string{"srv", "dc", "desc"}, names)
}

func TestDeviceService_GetDeviceDetails_Cache(t *testing.T) {
	rc := localRedis(t)
	mock := newMock(t)
	mock.ServeEntities(DeviceEntitiesPath, deviceLookup())

	svc := NewDeviceService(newTestClient(t, mock, rc), DefaultOptions())
	ctx := context.Background()

	first, err := svc.GetDeviceDetails(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	got, err := svc.GetDeviceDetails(ctx, []string{"c", "b", "a"})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].DeviceID)
	assert.Equal(t, "b", got[1].DeviceID)
	assert.Equal(t, "a", got[2].DeviceID)
	assert.Equal(t, []int{2, 1}, mock.EntityRequestSizes(DeviceEntitiesPath))
}

func TestDeviceService_GetDeviceDetail_Cache(t *testing.T) {
	rc := localRedis(t)
	mock := newMock(t)
	mock.ServeEntities(DeviceEntitiesPath, deviceLookup())

	svc := NewDeviceService(newTestClient(t, mock, rc), DefaultOptions())
	ctx := context.Background()

	first, err := svc.GetDeviceDetail(ctx, "solo")
	require.NoError(t, err)
	second, err := svc.GetDeviceDetail(ctx, "solo")
	require.NoError(t, err)
	assert.Equal(t, first.Hostname, second.Hostname)
	assert.Equal(t, "solo", second.DeviceID)

	// The batch path shares the key written by the single lookup.
	got, err := svc.GetDeviceDetails(ctx, []string{"solo"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "host-solo", got[0].Hostname)
	assert.Equal(t, []int{1}, mock.EntityRequestSizes(DeviceEntitiesPath))
}
