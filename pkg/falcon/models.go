package falcon

import (
	"encoding/json"
	"strings"

	"github.com/Sternrassler/falcon-client/pkg/client"
)

// Envelope is the JSON body shared by the API's query and entity endpoints.
type Envelope[T any] struct {
	Resources []T               `json:"resources"`
	Meta      *Meta             `json:"meta,omitempty"`
	Errors    []client.APIError `json:"errors,omitempty"`
}

// Meta is the envelope's meta object.
type Meta struct {
	QueryTime  float64     `json:"query_time,omitempty"`
	TraceID    string      `json:"trace_id,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination holds the paging fields of meta. Every field is optional; a
// missing total is not the same as a total of zero.
type Pagination struct {
	Offset    *int    `json:"offset,omitempty"`
	Limit     *int    `json:"limit,omitempty"`
	Total     *int    `json:"total,omitempty"`
	NextToken *string `json:"next_token,omitempty"`
	After     *string `json:"after,omitempty"`
}

// Product type codes of server class hosts.
const (
	ProductTypeServer           = "2"
	ProductTypeDomainController = "3"
)

// DeviceDetail is a host record from /devices/entities/devices/v2.
type DeviceDetail struct {
	DeviceID        string   `json:"device_id"`
	CID             string   `json:"cid"`
	Hostname        string   `json:"hostname"`
	OSProductName   string   `json:"os_product_name,omitempty"`
	OSVersion       string   `json:"os_version,omitempty"`
	OSBuild         string   `json:"os_build,omitempty"`
	KernelVersion   string   `json:"kernel_version,omitempty"`
	PlatformName    string   `json:"platform_name,omitempty"`
	PlatformVersion string   `json:"platform_version,omitempty"`
	AgentVersion    string   `json:"agent_version,omitempty"`
	ProductType     string   `json:"product_type,omitempty"`
	ProductTypeDesc string   `json:"product_type_desc,omitempty"`
	Groups          []string `json:"groups,omitempty"`

	FirstSeen         string `json:"first_seen,omitempty"`
	LastSeen          string `json:"last_seen,omitempty"`
	LastLoginUser     string `json:"last_login_user,omitempty"`
	LastReboot        string `json:"last_reboot,omitempty"`
	ModifiedTimestamp string `json:"modified_timestamp,omitempty"`

	SerialNumber       string `json:"serial_number,omitempty"`
	SystemManufacturer string `json:"system_manufacturer,omitempty"`
	SystemProductName  string `json:"system_product_name,omitempty"`
	ChassisTypeDesc    string `json:"chassis_type_desc,omitempty"`
	BIOSVersion        string `json:"bios_version,omitempty"`

	Status                   string `json:"status,omitempty"`
	ProvisionStatus          string `json:"provision_status,omitempty"`
	ReducedFunctionalityMode string `json:"reduced_functionality_mode,omitempty"`
	HostHiddenStatus         string `json:"host_hidden_status,omitempty"`

	ConnectionIP     string `json:"connection_ip,omitempty"`
	LocalIP          string `json:"local_ip,omitempty"`
	ExternalIP       string `json:"external_ip,omitempty"`
	DefaultGatewayIP string `json:"default_gateway_ip,omitempty"`
	MACAddress       string `json:"mac_address,omitempty"`

	MachineDomain       string   `json:"machine_domain,omitempty"`
	SiteName            string   `json:"site_name,omitempty"`
	OrganizationalUnits []string `json:"ou,omitempty"`
	Tags                []string `json:"tags,omitempty"`
}

// IsServer reports whether the host is a server or domain controller, by
// product type code or (case-insensitively) by its description.
func (d DeviceDetail) IsServer() bool {
	if d.ProductType == ProductTypeServer || d.ProductType == ProductTypeDomainController {
		return true
	}
	desc := strings.TrimSpace(d.ProductTypeDesc)
	return strings.EqualFold(desc, "Server") || strings.EqualFold(desc, "Domain Controller")
}

// AlertDetail is an alert record from /alerts/entities/alerts/v2.
type AlertDetail struct {
	ID               string `json:"id"`
	CompositeID      string `json:"composite_id,omitempty"`
	Name             string `json:"name,omitempty"`
	Severity         int    `json:"severity,omitempty"`
	SeverityName     string `json:"severity_name,omitempty"`
	Status           string `json:"status,omitempty"`
	CreatedTimestamp string `json:"created_timestamp,omitempty"`
	AID              string `json:"aid,omitempty"`
	Hostname         string `json:"hostname,omitempty"`
	Description      string `json:"description,omitempty"`

	// Extra holds every field not mapped above.
	Extra map[string]json.RawMessage `json:"-"`
}

var alertFields = []string{
	"id", "composite_id", "name", "severity", "severity_name", "status",
	"created_timestamp", "aid", "hostname", "description",
}

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (a *AlertDetail) UnmarshalJSON(data []byte) error {
	type plain AlertDetail
	if err := json.Unmarshal(data, (*plain)(a)); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range alertFields {
		delete(all, k)
	}
	if len(all) > 0 {
		a.Extra = all
	}
	return nil
}

// Vulnerability is a record from /spotlight/combined/vulnerabilities/v1.
type Vulnerability struct {
	ID               string    `json:"id"`
	CID              string    `json:"cid,omitempty"`
	AID              string    `json:"aid,omitempty"`
	Status           string    `json:"status,omitempty"`
	CreatedTimestamp string    `json:"created_timestamp,omitempty"`
	UpdatedTimestamp string    `json:"updated_timestamp,omitempty"`
	CVE              *CVE      `json:"cve,omitempty"`
	HostInfo         *HostInfo `json:"host_info,omitempty"`
	Apps             []App     `json:"apps,omitempty"`

	// Present when requested with the remediation facet.
	Remediation *RemediationFacet `json:"remediation,omitempty"`

	// Present when requested with the evaluation_logic facet.
	EvaluationLogic *EvaluationLogicFacet `json:"evaluation_logic,omitempty"`
}

// CVE describes the vulnerability a record refers to.
type CVE struct {
	ID            string  `json:"id"`
	BaseScore     float64 `json:"base_score,omitempty"`
	Severity      string  `json:"severity,omitempty"`
	ExploitStatus int     `json:"exploit_status,omitempty"`
	Description   string  `json:"description,omitempty"`
}

// HostInfo is the host summary embedded in a vulnerability.
type HostInfo struct {
	Hostname        string `json:"hostname,omitempty"`
	LocalIP         string `json:"local_ip,omitempty"`
	MachineDomain   string `json:"machine_domain,omitempty"`
	OSVersion       string `json:"os_version,omitempty"`
	Platform        string `json:"platform,omitempty"`
	ProductTypeDesc string `json:"product_type_desc,omitempty"`
}

// App is a vulnerable application on the host.
type App struct {
	ProductNameVersion string `json:"product_name_version"`
	SubStatus          string `json:"sub_status,omitempty"`
}

// RemediationFacet lists remediations for a vulnerability.
type RemediationFacet struct {
	IDs      []string      `json:"ids,omitempty"`
	Entities []Remediation `json:"entities,omitempty"`
}

// Remediation is one remediation entity.
type Remediation struct {
	ID               string   `json:"id"`
	Name             string   `json:"name,omitempty"`
	Description      string   `json:"description,omitempty"`
	VulnerabilityIDs []string `json:"vulnerability_ids,omitempty"`
	Remediation      string   `json:"remediation,omitempty"`
	Severity         string   `json:"severity,omitempty"`
}

// EvaluationLogicFacet references how the vulnerability was detected.
type EvaluationLogicFacet struct {
	ID       string            `json:"id,omitempty"`
	Entities []EvaluationLogic `json:"entities,omitempty"`
}

// EvaluationLogic is one evaluation logic entity. Logic is kept raw; its
// shape differs between platforms.
type EvaluationLogic struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Logic       json.RawMessage `json:"logic,omitempty"`
}
