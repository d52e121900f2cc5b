package models

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Connection is a configured PDS endpoint together with the session used to
// talk to it.
type Connection struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`   // "source" or "destination"
	Scheme      string `json:"scheme"` // "http" or "https"
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Handle      string `json:"handle"`
	AccessToken string `json:"access_token,omitempty"`
	Insecure    bool   `json:"insecure"` // skip TLS verification
}

// BaseURL returns the full base URL for this connection.
func (c *Connection) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Scheme, c.Host, c.Port)
}

// MaskedToken hides the session token for display.
func (c *Connection) MaskedToken() string {
	if c.AccessToken == "" {
		return ""
	}
	return "••••••••"
}

// Public returns a copy safe to serve over the API.
func (c *Connection) Public() Connection {
	p := *c
	p.AccessToken = c.MaskedToken()
	return p
}

// ConnectionStore is an in-memory thread-safe store for connections.
type ConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewConnectionStore creates an empty connection store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{conns: make(map[string]*Connection)}
}

// Create adds a new connection, assigning it a UUID.
func (s *ConnectionStore) Create(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.New().String()
	s.conns[c.ID] = c
}

// Get returns a connection by ID, or nil if not found.
func (s *ConnectionStore) Get(id string) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[id]
}

// FindByName returns the connection with the given name, or nil.
func (s *ConnectionStore) FindByName(name string) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Lookup resolves a connection by ID or, failing that, by name.
func (s *ConnectionStore) Lookup(ref string) *Connection {
	if c := s.Get(ref); c != nil {
		return c
	}
	return s.FindByName(ref)
}

// List returns all connections.
func (s *ConnectionStore) List() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		result = append(result, c)
	}
	return result
}

// Delete removes a connection by ID.
func (s *ConnectionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return false
	}
	delete(s.conns, id)
	return true
}
