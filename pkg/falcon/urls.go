package falcon

import (
	"net/url"
	"strconv"
	"strings"
)

// API paths.
const (
	DeviceQueryPath           = "/devices/queries/devices/v1"
	DeviceEntitiesPath        = "/devices/entities/devices/v2"
	AlertQueryPath            = "/alerts/queries/alerts/v1"
	AlertEntitiesPath         = "/alerts/entities/alerts/v2"
	VulnerabilityQueryPath    = "/spotlight/queries/vulnerabilities/v1"
	VulnerabilityCombinedPath = "/spotlight/combined/vulnerabilities/v1"
	defaultDeviceSort         = "last_seen.desc"
)

// Facets of the combined vulnerabilities endpoint.
var DefaultFacets = []string{"remediation", "evaluation_logic"}

// Quote renders s as an FQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

// HostnameFilter matches hosts by exact hostname.
func HostnameFilter(hostname string) string {
	return "hostname:" + Quote(hostname)
}

// AIDFilter matches records of one host.
func AIDFilter(aid string) string {
	return "aid:" + Quote(aid)
}

// IDsFilter matches any of ids, as ids:['a','b'].
func IDsFilter(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = Quote(id)
	}
	return "ids:[" + strings.Join(quoted, ",") + "]"
}

// DeviceQueryURL builds a device id query. Empty filter and sort are omitted.
func DeviceQueryURL(baseURL, filter string, limit, offset int, sort string) string {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if sort != "" {
		q.Set("sort", sort)
	}
	return build(baseURL, DeviceQueryPath, q)
}

// DeviceEntitiesURL builds a device detail request with one ids value per id.
func DeviceEntitiesURL(baseURL string, ids []string) string {
	return build(baseURL, DeviceEntitiesPath, url.Values{"ids": ids})
}

// AlertQueryURL builds an alert id query. The first page has no cursor.
func AlertQueryURL(baseURL, filter, nextToken string) string {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if nextToken != "" {
		q.Set("next_token", nextToken)
	}
	return build(baseURL, AlertQueryPath, q)
}

// AlertEntitiesURL builds an alert detail request filtered by ids.
func AlertEntitiesURL(baseURL string, ids []string) string {
	return build(baseURL, AlertEntitiesPath, url.Values{"filter": {IDsFilter(ids)}})
}

// VulnerabilityQueryURL builds a vulnerability id query.
func VulnerabilityQueryURL(baseURL, filter, after string) string {
	q := url.Values{"filter": {filter}}
	if after != "" {
		q.Set("after", after)
	}
	return build(baseURL, VulnerabilityQueryPath, q)
}

// VulnerabilityCombinedURL builds a combined vulnerability request. Facets
// are sent as one comma separated value.
func VulnerabilityCombinedURL(baseURL, filter string, facets []string, after string) string {
	q := url.Values{"filter": {filter}}
	if len(facets) > 0 {
		q.Set("facet", strings.Join(facets, ","))
	}
	if after != "" {
		q.Set("after", after)
	}
	return build(baseURL, VulnerabilityCombinedPath, q)
}

func build(baseURL, path string, q url.Values) string {
	u := strings.TrimRight(baseURL, "/") + path
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}
