package models

// Well-known capability names advertised by a PDS.
const (
	CapabilityPosts   = "posts"
	CapabilityFollows = "follows"
	CapabilityMedia   = "media"
	CapabilityChat    = "chat"
	CapabilityBlocks  = "blocks"
)

// RateLimit is the request budget a server advertises.
type RateLimit struct {
	RequestsPerMinute int   `json:"requests_per_minute"`
	BytesPerHour      int64 `json:"bytes_per_hour"`
}

// ServerConfiguration is a snapshot of a server's capabilities and limits.
// It is fetched fresh for every validation and never cached across operations.
type ServerConfiguration struct {
	Hostname          string     `json:"hostname"`
	DisplayName       string     `json:"display_name"`
	Version           string     `json:"version"`
	Capabilities      []string   `json:"capabilities"`
	RateLimit         *RateLimit `json:"rate_limit,omitempty"`
	MaxAccountSize    *int64     `json:"max_account_size,omitempty"`
	SupportsMigration bool       `json:"supports_migration"`
}

// HasCapability reports whether the server advertises the named capability.
func (s *ServerConfiguration) HasCapability(name string) bool {
	for _, c := range s.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// RequestsPerMinute returns the advertised request budget, or 0 when unknown.
func (s *ServerConfiguration) RequestsPerMinute() int {
	if s.RateLimit == nil {
		return 0
	}
	return s.RateLimit.RequestsPerMinute
}
