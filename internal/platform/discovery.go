package platform

import (
	"encoding/json"
	"fmt"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
)

// HealthResponse holds the parsed /xrpc/_health response.
type HealthResponse struct {
	Version string `json:"version"`
}

// DescribeServerResponse holds the parsed describeServer response.
// Beyond the standard fields, servers taking part in migrations advertise
// their capabilities and limits:
//
//	{"did": "did:web:pds.example.com",
//	 "availableUserDomains": [".example.com"],
//	 "capabilities": ["posts", "follows", "media"],
//	 "rateLimit": {"requestsPerMinute": 3000, "bytesPerHour": 1073741824},
//	 "maxAccountSize": 524288000,
//	 "supportsMigration": true}
type DescribeServerResponse struct {
	DID                  string   `json:"did"`
	AvailableUserDomains []string `json:"availableUserDomains"`
	InviteCodeRequired   bool     `json:"inviteCodeRequired"`
	Capabilities         []string `json:"capabilities"`
	RateLimit            *struct {
		RequestsPerMinute int   `json:"requestsPerMinute"`
		BytesPerHour      int64 `json:"bytesPerHour"`
	} `json:"rateLimit"`
	MaxAccountSize    *int64 `json:"maxAccountSize"`
	SupportsMigration *bool  `json:"supportsMigration"`
}

// ParseHealth extracts the version from a _health JSON response body.
func ParseHealth(body []byte) (*HealthResponse, error) {
	var resp HealthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing health response: %w", err)
	}
	if resp.Version == "" {
		return nil, fmt.Errorf("health response missing version field")
	}
	return &resp, nil
}

// ParseDescribeServer parses the describeServer response body.
func ParseDescribeServer(body []byte) (*DescribeServerResponse, error) {
	var resp DescribeServerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing describeServer response: %w", err)
	}
	return &resp, nil
}

// ToServerConfiguration maps the response onto a ServerConfiguration.
// Servers that do not advertise capabilities are assumed to carry posts and
// follows only; servers that do not say otherwise support migration.
func (d *DescribeServerResponse) ToServerConfiguration(host, version string) *models.ServerConfiguration {
	cfg := &models.ServerConfiguration{
		Hostname:          host,
		DisplayName:       host,
		Version:           version,
		Capabilities:      d.Capabilities,
		MaxAccountSize:    d.MaxAccountSize,
		SupportsMigration: true,
	}
	if len(cfg.Capabilities) == 0 {
		cfg.Capabilities = []string{models.CapabilityPosts, models.CapabilityFollows}
	}
	if d.RateLimit != nil {
		cfg.RateLimit = &models.RateLimit{
			RequestsPerMinute: d.RateLimit.RequestsPerMinute,
			BytesPerHour:      d.RateLimit.BytesPerHour,
		}
	}
	if d.SupportsMigration != nil {
		cfg.SupportsMigration = *d.SupportsMigration
	}
	if d.DID != "" {
		cfg.DisplayName = d.DID
	}
	return cfg
}
