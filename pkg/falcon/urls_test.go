package falcon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testBase = "https://api.example.com"

func TestURLBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "device query all",
			got:  DeviceQueryURL(testBase, "", 500, 0, "last_seen.desc"),
			want: testBase + "/devices/queries/devices/v1?limit=500&offset=0&sort=last_seen.desc",
		},
		{
			name: "device query by hostname",
			got:  DeviceQueryURL(testBase, HostnameFilter("web-01"), 100, 200, ""),
			want: testBase + "/devices/queries/devices/v1?filter=hostname%3A%27web-01%27&limit=100&offset=200",
		},
		{
			name: "device entities repeat ids",
			got:  DeviceEntitiesURL(testBase, []string{"a", "b"}),
			want: testBase + "/devices/entities/devices/v2?ids=a&ids=b",
		},
		{
			name: "alert query first page",
			got:  AlertQueryURL(testBase, "", ""),
			want: testBase + "/alerts/queries/alerts/v1",
		},
		{
			name: "alert query with cursor",
			got:  AlertQueryURL(testBase, "status:'new'", "abc"),
			want: testBase + "/alerts/queries/alerts/v1?filter=status%3A%27new%27&next_token=abc",
		},
		{
			name: "alert entities",
			got:  AlertEntitiesURL(testBase, []string{"a", "b"}),
			want: testBase + "/alerts/entities/alerts/v2?filter=ids%3A%5B%27a%27%2C%27b%27%5D",
		},
		{
			name: "vulnerability query",
			got:  VulnerabilityQueryURL(testBase, AIDFilter("x"), "next"),
			want: testBase + "/spotlight/queries/vulnerabilities/v1?after=next&filter=aid%3A%27x%27",
		},
		{
			name: "combined with facets",
			got:  VulnerabilityCombinedURL(testBase, AIDFilter("x"), DefaultFacets, ""),
			want: testBase + "/spotlight/combined/vulnerabilities/v1?facet=remediation%2Cevaluation_logic&filter=aid%3A%27x%27",
		},
		{
			name: "trailing slash on base",
			got:  AlertQueryURL(testBase+"/", "", ""),
			want: testBase + "/alerts/queries/alerts/v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestFilters(t *testing.T) {
	assert.Equal(t, `'o\'brien'`, Quote("o'brien"))
	assert.Equal(t, "hostname:'web-01'", HostnameFilter("web-01"))
	assert.Equal(t, "aid:'abc'", AIDFilter("abc"))
	assert.Equal(t, "ids:['a','b']", IDsFilter([]string{"a", "b"}))
}
