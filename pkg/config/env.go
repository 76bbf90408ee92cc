package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Sternrassler/falcon-client/pkg/client"
)

// Environment variables.
const (
	EnvBaseURL            = "FALCON_BASE_URL"
	EnvClientID           = "FALCON_CLIENT_ID"
	EnvClientSecret       = "FALCON_CLIENT_SECRET"
	EnvRefreshBuffer      = "FALCON_REFRESH_BUFFER_SECONDS"
	EnvEarlyRefreshWindow = "FALCON_EARLY_REFRESH_WINDOW_SECONDS"
	EnvRequestsPerSecond  = "FALCON_REQUESTS_PER_SECOND"
	EnvRedisURL           = "REDIS_URL"
	EnvLogLevel           = "LOG_LEVEL"
)

// envReader overlays set variables on the file values and collects parse
// errors.
type envReader struct {
	errs []error
}

func (r *envReader) str(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func (r *envReader) intPtr(name string, dst **int) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", name, v))
		return
	}
	*dst = &n
}

func (r *envReader) float(name string, dst *float64) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a number", name, v))
		return
	}
	*dst = f
}

func applyEnv(f *File) error {
	r := &envReader{}
	r.str(EnvBaseURL, &f.Falcon.BaseURL)
	r.str(EnvClientID, &f.Falcon.ClientID)
	r.str(EnvClientSecret, &f.Falcon.ClientSecret)
	r.intPtr(EnvRefreshBuffer, &f.Falcon.RefreshBufferSeconds)
	r.intPtr(EnvEarlyRefreshWindow, &f.Falcon.EarlyRefreshWindowSeconds)
	r.float(EnvRequestsPerSecond, &f.RateLimit.RequestsPerSecond)
	r.str(EnvRedisURL, &f.Redis.URL)
	r.str(EnvLogLevel, &f.Log.Level)

	if len(r.errs) > 0 {
		return fmt.Errorf("%w: %w", client.ErrConfigurationInvalid, errors.Join(r.errs...))
	}
	return nil
}
